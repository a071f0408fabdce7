// Package api provides the admin HTTP surface for BazaarBot.
//
// It exposes a health probe, per-flow session counts, and a single-session
// debug lookup. It is an operator tool, not a user-facing API, and binds to
// localhost by default.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// DefaultAddr is the default listen address for the admin API.
const DefaultAddr = "127.0.0.1:8080"

// Opts holds configuration options for the admin API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the admin API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server is the admin API server.
type Server struct {
	store  store.Store
	server *http.Server
}

// NewServer creates an admin API server over the given store.
func NewServer(st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{store: st}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/sessions", s.sessionHandler)
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux, for tests and for mounting extra routes such as
// the Twilio webhook.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Mount adds an extra route to the server's mux.
func (s *Server) Mount(pattern string, handler http.HandlerFunc) {
	s.server.Handler.(*http.ServeMux).HandleFunc(pattern, handler)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("Admin API listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin API server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"state": "healthy"}))
}

// statsHandler reports how many sessions are parked in each flow.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counts, err := s.store.CountSessionsByFlow()
	if err != nil {
		slog.Error("Server.statsHandler: failed to count sessions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to gather stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"sessions_by_flow": counts}))
}

// sessionDebugView is the masked projection returned by the sessions
// endpoint. Raw phone numbers and temp data values stay out of API output.
type sessionDebugView struct {
	Phone       string   `json:"phone"`
	CurrentFlow string   `json:"current_flow"`
	CurrentStep string   `json:"current_step"`
	TempKeys    []string `json:"temp_keys"`
	Registered  bool     `json:"registered"`
	UpdatedAt   string   `json:"updated_at"`
}

// sessionHandler looks up one session by phone for debugging.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing phone parameter"))
		return
	}
	sess, err := s.store.GetSession(phone)
	if err != nil {
		slog.Error("Server.sessionHandler: lookup failed", "error", err, "phone", util.MaskPhone(phone))
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Lookup failed"))
		return
	}
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No session for that phone"))
		return
	}

	keys := make([]string, 0, len(sess.TempData))
	for k := range sess.TempData {
		keys = append(keys, string(k))
	}
	view := sessionDebugView{
		Phone:       util.MaskPhone(sess.Phone),
		CurrentFlow: string(sess.CurrentFlow),
		CurrentStep: string(sess.CurrentStep),
		TempKeys:    keys,
		Registered:  sess.UserID != nil,
		UpdatedAt:   sess.UpdatedAt.Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}
