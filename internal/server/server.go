package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bunkhouselabs/bunkhouse/internal/auth"
	"github.com/bunkhouselabs/bunkhouse/internal/config"
	"github.com/bunkhouselabs/bunkhouse/internal/email"
	"github.com/bunkhouselabs/bunkhouse/internal/handler"
	"github.com/bunkhouselabs/bunkhouse/internal/middleware"
	"github.com/bunkhouselabs/bunkhouse/internal/model"
	"github.com/bunkhouselabs/bunkhouse/internal/oauth"
	"github.com/bunkhouselabs/bunkhouse/internal/store"
)

type Server struct {
	db             *sql.DB
	cfg            *config.Config
	authH          *handler.AuthHandler
	sessionStore   *store.SessionStore
	mfaCodeStore   *store.MFACodeStore
	resetCodeStore *store.ResetCodeStore
	rateLimiter    *middleware.RateLimiter
	logger         *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, googleClient *oauth.Client, cfg *config.Config, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	mfaCodeStore := store.NewMFACodeStore(db)
	resetCodeStore := store.NewResetCodeStore(db)
	auditStore := store.NewAuditStore(db)

	svc := auth.NewService(
		db,
		userStore,
		sessionStore,
		mfaCodeStore,
		resetCodeStore,
		auditStore,
		emailClient,
		googleClient,
		[]byte(cfg.JWTSecret),
		cfg.TokenTTL,
		logger.With("component", "auth"),
	)

	return &Server{
		db:             db,
		cfg:            cfg,
		authH:          handler.NewAuthHandler(svc, googleClient, logger.With("component", "auth_handler")),
		sessionStore:   sessionStore,
		mfaCodeStore:   mfaCodeStore,
		resetCodeStore: resetCodeStore,
		rateLimiter:    middleware.NewRateLimiter(cfg.RateLimitBurst, cfg.RateLimitWindow),
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MFACodeStore returns the MFA code store for cleanup tasks.
func (s *Server) MFACodeStore() *store.MFACodeStore {
	return s.mfaCodeStore
}

// ResetCodeStore returns the reset code store for cleanup tasks.
func (s *Server) ResetCodeStore() *store.ResetCodeStore {
	return s.resetCodeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes. The credential endpoints are rate-limited by client IP.
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /api/auth/forgot-password", s.rateLimitedHandler(s.authH.ForgotPassword))
	outerMux.HandleFunc("POST /api/auth/reset-password", s.rateLimitedHandler(s.authH.ResetPassword))
	outerMux.HandleFunc("GET /api/auth/google", s.authH.GoogleAuthURL)
	outerMux.HandleFunc("POST /api/auth/google", s.rateLimitedHandler(s.authH.GoogleExchange))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind the bearer-token middleware.
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	protectedMux.HandleFunc("POST /api/auth/change-password", s.authH.ChangePassword)
	protectedMux.HandleFunc("GET /api/auth/me", s.authH.Me)
	protectedMux.HandleFunc("GET /api/auth/sessions", s.authH.ListSessions)
	protectedMux.HandleFunc("DELETE /api/auth/sessions/{id}", s.authH.TerminateSession)
	protectedMux.HandleFunc("POST /api/auth/mfa/enable", s.authH.EnableMFA)
	protectedMux.HandleFunc("POST /api/auth/mfa/verify", s.authH.VerifyMFA)
	protectedMux.HandleFunc("POST /api/auth/mfa/disable", s.authH.DisableMFA)

	managerOnly := middleware.RequireRole(model.RoleManager)
	protectedMux.Handle("GET /api/auth/audit", managerOnly(http.HandlerFunc(s.authH.Audit)))

	authMiddleware := middleware.RequireAuth([]byte(s.cfg.JWTSecret), s.sessionStore, s.logger.With("component", "auth_middleware"))
	outerMux.Handle("/api/auth/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
