// Package http serves the bot over HTTP: the LINE webhook, machine diagrams, session event
// streams, health and metrics.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/duzhibot"
	"github.com/aretw0/duzhibot/internal/logging"
	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/observability"
	"github.com/aretw0/duzhibot/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions runs messages against persisted sessions. session.Manager implements it.
type Sessions interface {
	Handle(ctx context.Context, sessionID, text string, reply domain.ReplyFunc) (*domain.State, bool, error)
	Load(ctx context.Context, sessionID string) (*domain.State, error)
}

// Server holds the handlers.
type Server struct {
	sessions Sessions
	bot      ports.Bot
	sender   ports.ReplySender
	secret   string
	insecure bool
	metrics  *observability.Metrics
	streams  *StreamManager
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithChannelSecret enables the X-Line-Signature check on /callback.
func WithChannelSecret(secret string) Option {
	return func(s *Server) { s.secret = secret }
}

// WithInsecureWebhook accepts unsigned /callback requests when no channel secret is set. Only
// for local testing: anyone reaching the port can then act as any user.
func WithInsecureWebhook() Option {
	return func(s *Server) { s.insecure = true }
}

// WithReplySender sets where webhook replies go. Without one, replies are only logged.
func WithReplySender(sender ports.ReplySender) Option {
	return func(s *Server) { s.sender = sender }
}

// WithMetrics serves m at /metrics and records webhook latency into it.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger configures the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a Server driving bot through sessions.
func NewServer(sessions Sessions, bot ports.Bot, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		bot:      bot,
		streams:  NewStreamManager(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "http")
	switch {
	case s.secret != "":
	case s.insecure:
		s.logger.Warn("No channel secret configured, webhook signatures are not checked")
	default:
		s.logger.Warn("No channel secret configured, webhook requests will be refused")
	}
	return s
}

// Streams returns the session event broadcaster.
func (s *Server) Streams() *StreamManager { return s.streams }

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/callback", s.Callback)
	r.Get("/graph", s.GetGraph)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Line-Signature")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]string{
		"app":     "duzhibot",
		"version": strings.TrimSpace(duzhibot.Version),
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "error", err)
	}
}
