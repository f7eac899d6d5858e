package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/doppel/internal/observability"
)

const defaultRequestTimeout = 60 * time.Second

// Replier produces the text answer for an inbound message.
type Replier interface {
	Reply(ctx context.Context, participant, text string) string
}

// Messenger delivers outbound messages.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendTyping(ctx context.Context, messageID string) error
}

type Options struct {
	Port           int
	VerifyToken    string
	RequestTimeout time.Duration
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
}

type Server struct {
	router    *chi.Mux
	httpSrv   *http.Server
	opts      Options
	replier   Replier
	messenger Messenger
	logger    *slog.Logger
}

func NewServer(opts Options, replier Replier, messenger Messenger, logger *slog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.RequestTimeout))

	s := &Server{
		router:    router,
		opts:      opts,
		replier:   replier,
		messenger: messenger,
		logger:    logger,
	}

	router.Get("/", s.root)
	router.Get("/health", s.health)
	router.Get("/webhook", s.verifyWebhook)
	router.Post("/webhook", s.receiveWebhook)
	if opts.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens until Shutdown is called. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "WhatsApp Bot is running!")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) countEvent(kind string) {
	s.countEvents(kind, 1)
}

func (s *Server) countEvents(kind string, n int) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.WebhookEvents.WithLabelValues(kind).Add(float64(n))
	}
}

func (s *Server) countOutboundError(op string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.OutboundErrors.WithLabelValues(op).Inc()
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
