package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/limpopoconnect/classifieds-api/internal/ads"
	"github.com/limpopoconnect/classifieds-api/internal/auth"
	"github.com/limpopoconnect/classifieds-api/internal/config"
	"github.com/limpopoconnect/classifieds-api/internal/http/handlers"
	"github.com/limpopoconnect/classifieds-api/internal/mail"
	"github.com/limpopoconnect/classifieds-api/internal/middleware"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
)

const mailTimeout = 10 * time.Second

// Server wraps an http.Server with configured routes.
type Server struct {
	inner  *http.Server
	mailer *mail.Dispatcher
	logger *slog.Logger
}

// New wires stores, services, middleware and routes, and returns a ready
// server. Password reset mail goes through sender in the background.
func New(cfg config.Config, store storage.Store, sender mail.Sender, logger *slog.Logger) *Server {
	return newServer(cfg, store, sender, logger, bcrypt.DefaultCost)
}

func newServer(cfg config.Config, store storage.Store, sender mail.Sender, logger *slog.Logger, cost int) *Server {
	mailer := mail.NewDispatcher(sender, logger, mailTimeout)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())
	accounts := auth.NewService(store, auth.NewPasswordHasher(cost), tokens, mailer, logger)
	requireUser := middleware.RequireUser(accounts, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), store.Ping).Register(mux)
	handlers.NewAuthHandler(accounts, requireUser, logger).Register(mux)
	handlers.NewAdsHandler(ads.NewService(store, cfg.AdsMaxPageSize, logger), requireUser, logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := middleware.CORS(cfg.CORSOrigins)(middleware.Observe(logger, metrics, mux)(mux))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer, mailer: mailer, logger: logger}
}

// Handler exposes the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown stops accepting requests, drains in-flight ones and then waits
// for queued mail to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.inner.Shutdown(ctx)
	s.mailer.Wait()
	return err
}
