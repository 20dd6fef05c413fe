package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cop-sim/internal/cop"
	"cop-sim/internal/metrics"
	"cop-sim/internal/sim"
)

//go:embed templates/index.html
var content embed.FS

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int // 0 disables rate limiting
	Logger             *slog.Logger
}

// Server exposes the picture over HTTP.
type Server struct {
	store   *cop.Store
	desk    sim.Commander
	hub     *Hub
	auth    *Authenticator
	logger  *slog.Logger
	tpl     *template.Template
	router  chi.Router
	origins []string
	started time.Time
}

// SendCommandRequest is the body of POST /api/commands.
type SendCommandRequest struct {
	UnitID  string `json:"unitId"`
	Content string `json:"content"`
}

// AckRequest is the optional body of POST /api/commands/{id}/ack.
type AckRequest struct {
	Response string `json:"response"`
}

// HealthResponse is returned by /actuator/health.
type HealthResponse struct {
	Status        string    `json:"status"`
	Stats         cop.Stats `json:"stats"`
	StreamClients int       `json:"streamClients"`
	Uptime        string    `json:"uptime"`
}

// NewServer wires the router. desk handles command writes so they reach the
// feed; hub may be nil, in which case /api/stream is not mounted.
func NewServer(store *cop.Store, desk sim.Commander, hub *Hub, auth *Authenticator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		store:   store,
		desk:    desk,
		hub:     hub,
		auth:    auth,
		logger:  logger.With("component", "api"),
		tpl:     template.Must(template.New("index.html").ParseFS(content, "templates/index.html")),
		origins: origins,
		started: time.Now(),
	}
	s.router = s.routes(opts.RateLimitPerMinute)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(ratePerMinute int) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// The index page shows unit positions and opens /api/stream, so it sits
	// behind the same credentials as /api.
	r.With(s.auth.Middleware).Get("/", s.handleIndex)
	r.Get("/actuator/health", s.handleHealth)
	r.Handle("/actuator/prometheus", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if ratePerMinute > 0 {
			r.Use(httprate.Limit(ratePerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Use(s.auth.Middleware)

		r.Get("/units", s.handleUnits)
		r.Get("/spectrum", s.handleSpectrum)
		r.Get("/incidents", s.handleIncidents)
		r.Get("/commands", s.handleCommands)
		r.Post("/commands", s.handleSendCommand)
		r.Post("/commands/{id}/ack", s.handleAckCommand)
		if s.hub != nil {
			r.Get("/stream", s.handleStream)
		}
	})
	return r
}

type requestInfo struct {
	user string
}

type requestInfoKey struct{}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// observe logs each request and records its metrics once the route is known.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, route, status, elapsed)

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if r.URL.Path != "/actuator/health" && r.URL.Path != "/actuator/prometheus" {
			level = slog.LevelInfo
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"user", info.user,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Stats  cop.Stats
		Units  []cop.Unit
		Stream bool
	}{
		Stats:  s.store.Stats(),
		Units:  s.store.ListUnits(),
		Stream: s.hub != nil,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.logger.Error("render index", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "UP",
		Stats:  s.store.Stats(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.hub != nil {
		resp.StreamClients = s.hub.ClientCount()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnits(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.ListUnits())
}

func (s *Server) handleSpectrum(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.ListSpectrumActivity())
}

func (s *Server) handleIncidents(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.ListIncidents())
}

func (s *Server) handleCommands(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.ListCommands())
}

func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var req SendCommandRequest
	if err := decodeBody(r, &req, false); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	cmd := s.desk.SendCommand(req.UnitID, req.Content)
	s.writeJSON(w, http.StatusOK, cmd)
}

func (s *Server) handleAckCommand(w http.ResponseWriter, r *http.Request) {
	var req AckRequest
	if err := decodeBody(r, &req, true); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	cmd, err := s.desk.AcknowledgeCommand(chi.URLParam(r, "id"), req.Response)
	if errors.Is(err, cop.ErrCommandNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("acknowledge command", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, cmd)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(s.origins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	var user string
	if p, ok := PrincipalFromContext(r.Context()); ok {
		user = p.Username
	}
	s.hub.attach(conn, user, []Message{
		{Type: MessageTypeUnits, Data: s.store.ListUnits()},
		{Type: MessageTypeSpectrum, Data: s.store.ListSpectrumActivity()},
	})
}

// decodeBody reads a JSON body into v. An empty body is an error unless
// allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		if allowEmpty {
			return nil
		}
		return errors.New("empty body")
	}
	return json.Unmarshal(body, v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}
