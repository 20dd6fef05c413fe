package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPService runs an http.Server under a suture supervisor. Status, when
// set, is told whether the API is accepting connections.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	Status          func(up bool)
}

// NewHTTPService serves handler on addr.
func NewHTTPService(addr string, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Serve implements suture.Service. It returns ctx.Err() after a graceful
// shutdown and a wrapped error if the listener fails.
func (h *HTTPService) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		h.setStatus(false)
		return fmt.Errorf("listen on %s: %w", h.server.Addr, err)
	}
	return h.serve(ctx, ln)
}

func (h *HTTPService) serve(ctx context.Context, ln net.Listener) error {
	h.logger.Info("api listening", "addr", ln.Addr().String())
	h.setStatus(true)
	defer h.setStatus(false)

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		h.logger.Info("api stopped")
		return ctx.Err()
	}
}

func (h *HTTPService) setStatus(up bool) {
	if h.Status != nil {
		h.Status(up)
	}
}

// String implements fmt.Stringer for suture logging.
func (h *HTTPService) String() string { return "http-server" }
