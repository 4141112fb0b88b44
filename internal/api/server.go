// Package api exposes the campus administration HTTP surface: admin
// signup/login, student CRUD, analytics, FAQ lookups and the conversational
// chat endpoints (JSON and SSE). Routing is a method-pattern ServeMux behind
// a hand-built middleware chain; health probes bypass the chain entirely.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusagent/internal/agent"
	"campusagent/internal/auth"
	"campusagent/internal/store"
	"campusagent/internal/tools"
)

// StudentStore is the record store surface the HTTP handlers need. It is the
// tool catalog's view, activity logging included, so the REST routes and the
// agent tools share one contract and one in-memory fake in tests.
type StudentStore interface {
	tools.Records
}

// AdminStore is the admin account surface used by signup, login and the auth
// middleware.
type AdminStore interface {
	CreateAdmin(ctx context.Context, email, passwordHash, displayName string) (*store.Admin, error)
	AdminByEmail(ctx context.Context, email string) (*store.Admin, error)
}

// ChatAgent runs one conversational exchange for an admin.
type ChatAgent interface {
	Execute(ctx context.Context, ownerEmail, input string) (*agent.Response, error)
	ExecuteStream(ctx context.Context, ownerEmail, input string, callback agent.StreamCallback) (*agent.Response, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Students    StudentStore  // Required
	Admins      AdminStore    // Required
	Agent       ChatAgent     // Required
	Pool        *pgxpool.Pool // Optional: nil disables pool ping in /ready
	JWTSecret   string        // Required: 32+ characters
	TokenTTL    time.Duration // Access token lifetime (0 = 12h)
	CORSOrigins []string      // Allowed origins for CORS
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	admins AdminStore
	secret string
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Students == nil {
		return nil, errors.New("student store is required")
	}
	if cfg.Admins == nil {
		return nil, errors.New("admin store is required")
	}
	if cfg.Agent == nil {
		return nil, errors.New("chat agent is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}

	s := &Server{
		logger: logger,
		admins: cfg.Admins,
		secret: cfg.JWTSecret,
	}

	validate := validator.New()

	ah := &authHandler{
		admins:   cfg.Admins,
		secret:   cfg.JWTSecret,
		tokenTTL: tokenTTL,
		validate: validate,
		logger:   logger,
	}

	sh := &studentHandler{
		students: cfg.Students,
		validate: validate,
		logger:   logger,
	}

	an := &analyticsHandler{
		students: cfg.Students,
		logger:   logger,
	}

	fh := &faqHandler{logger: logger}

	ch := &chatHandler{
		agent:  cfg.Agent,
		logger: logger,
	}

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /{$}", liveness)
	mux.HandleFunc("POST /admin/signup", ah.signup)
	mux.HandleFunc("POST /admin/login", ah.login)

	// Protected routes (bearer token)
	protect := func(h http.HandlerFunc) http.Handler {
		return s.authMiddleware(h)
	}

	mux.Handle("GET /chat", protect(ch.send))
	mux.Handle("GET /chat/stream", protect(ch.stream))

	mux.Handle("POST /students", protect(sh.create))
	mux.Handle("GET /students", protect(sh.get))
	mux.Handle("PUT /students", protect(sh.update))
	mux.Handle("DELETE /students", protect(sh.delete))
	mux.Handle("GET /students/list", protect(sh.list))

	mux.Handle("GET /analytics/total", protect(an.total))
	mux.Handle("GET /analytics/by-department", protect(an.byDepartment))
	mux.Handle("GET /analytics/recent", protect(an.recent))
	mux.Handle("GET /analytics/active", protect(an.active))

	mux.Handle("GET /faq/cafeteria", protect(fh.cafeteria))
	mux.Handle("GET /faq/library", protect(fh.library))
	mux.Handle("GET /faq/events", protect(fh.events))

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. Auth is applied per-route above so public routes skip it.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	s.mux = topMux
	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) parseToken(token string) (*auth.Claims, error) {
	return auth.ParseToken(s.secret, token)
}
