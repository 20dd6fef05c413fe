package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusLog struct {
	mu     sync.Mutex
	states []bool
}

func (s *statusLog) set(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, up)
}

func (s *statusLog) snapshot() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.states...)
}

func TestHTTPServiceServesAndShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	svc := NewHTTPService(ln.Addr().String(), handler, time.Second, quietLogger())
	status := &statusLog{}
	svc.Status = status.set

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.serve(ctx, ln) }()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ = io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Equal(t, []bool{true, false}, status.snapshot())
	assert.Equal(t, "http-server", svc.String())
}

func TestHTTPServiceListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	svc := NewHTTPService(ln.Addr().String(), http.NotFoundHandler(), 0, nil)
	status := &statusLog{}
	svc.Status = status.set

	err = svc.Serve(context.Background())
	assert.ErrorContains(t, err, "listen on")
	assert.Equal(t, []bool{false}, status.snapshot())
}
