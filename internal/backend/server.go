// Package backend is the development HTTP backend the client talks to.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/internal/audit"
	"github.com/org/stockdesk/internal/auth"
	"github.com/org/stockdesk/internal/policy"
	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit int
}

// AuditLogger is the interface the server needs from an audit logger.
type AuditLogger interface {
	LogRequest(ctx context.Context, entry *models.AuditEntry)
}

// Server is the API server.
type Server struct {
	store    storage.Backend
	tokens   *auth.TokenService
	policy   *policy.Engine
	auditor  AuditLogger
	validate *validator.Validate
	now      func() time.Time
	cfg      Config
	httpSrv  *http.Server
}

// NewServer creates a fully wired Server.
func NewServer(store storage.Backend, cfg Config) *Server {
	return &Server{
		store:    store,
		tokens:   auth.NewTokenService(store),
		policy:   policy.NewEngine(policy.Builtin()),
		auditor:  audit.NewLogger(store),
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      cfg,
	}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	if s.cfg.RateLimit > 0 {
		r.Use(newRateLimiter(s.cfg.RateLimit, 2*s.cfg.RateLimit).middleware)
	}

	r.Handle("/metrics", MetricsHandler())

	r.Group(func(r chi.Router) {
		r.Get("/api/health", s.HealthHandler)
		r.Post("/api/auth/login", s.LoginHandler)
		r.Post("/api/auth/register", s.RegisterHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.authorize)
		r.Use(auditMiddleware(s.auditor))

		r.Post("/api/auth/logout", s.LogoutHandler)

		r.Get("/api/user", s.UserDataHandler)
		r.Get("/api/users", s.UsersListHandler)

		r.Post("/api/credit/subscribe", s.CreditSubscribeHandler)
		r.Post("/api/credit/upgrade", s.CreditUpgradeHandler)
		r.Post("/api/credit/extend", s.CreditExtendHandler)
		r.Post("/api/credit/delete", s.CreditDeleteHandler)
		r.Get("/api/credit/analytics", s.CreditAnalyticsHandler)
		r.Get("/api/credit/history", s.CreditHistoryHandler)

		r.Get("/api/sites", s.SitesListHandler)
		r.Post("/api/sites/add", s.SiteAddHandler)
		r.Post("/api/sites/edit", s.SiteEditHandler)
		r.Post("/api/sites/delete", s.SiteDeleteHandler)

		r.Get("/api/pricing", s.PricingListHandler)
		r.Post("/api/pricing/add", s.PricingAddHandler)
		r.Post("/api/pricing/edit", s.PricingEditHandler)
		r.Post("/api/pricing/delete", s.PricingDeleteHandler)

		r.Get("/api/downloads", s.DownloadsListHandler)
		r.Post("/api/downloads", s.DownloadCreateHandler)
		r.Post("/api/downloads/retry", s.DownloadRetryHandler)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, errNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, errInvalidRequest, "method not allowed")
	})
	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.BuildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// EnsureAdmin creates an admin account unless one with that email exists.
func (s *Server) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("looking up admin: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Admin",
		Role:         models.RoleAdmin,
		CreatedAt:    s.now(),
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}
	log.Info().Str("email", email).Msg("admin account created")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
