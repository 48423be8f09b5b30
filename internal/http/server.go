package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/challenge"
	"tally/internal/ledger"
	applog "tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/services"
)

// Deps are the application services the API exposes.
type Deps struct {
	Profiles     *services.ProfileService
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Ledger       *ledger.Engine
	Enrollments  *challenge.Engine
	Catalog      *challenge.Catalog

	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Options struct {
	UserHeader         string
	RoleHeader         string
	Location           *time.Location
	RateLimitPerMinute int
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	deps    Deps
	loc     *time.Location
	logger  *applog.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User-ID"
	}
	if opts.RoleHeader == "" {
		opts.RoleHeader = "X-User-Role"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	ips := security.NewIPExtractor()
	s := &Server{
		deps:    deps,
		loc:     opts.Location,
		logger:  logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(ips.ClientIP, opts.Logger),
	}

	api := http.NewServeMux()
	s.routes(api)

	protected := s.limiter.Middleware(ips.ClientIP, ratelimit.MutatingOnly, s.onRateLimit)(
		requireIdentity(opts.UserHeader, opts.RoleHeader)(api))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/api/", protected)

	var h http.Handler = root
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = applog.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.handleGetMe)
	mux.HandleFunc("PATCH /api/me", s.handleUpdateMe)
	mux.HandleFunc("PUT /api/me/password", s.handleChangePassword)
	mux.HandleFunc("DELETE /api/me", s.handleDeleteMe)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/dashboard/summary", s.handleSummary)
	mux.HandleFunc("GET /api/dashboard/breakdown", s.handleBreakdown)
	mux.HandleFunc("GET /api/reports/expense-breakdown", s.handleBreakdown)

	mux.HandleFunc("GET /api/challenges", s.handleListChallenges)
	mux.HandleFunc("POST /api/challenges", s.handleCreateChallenge)
	mux.HandleFunc("GET /api/challenges/mine", s.handleListMyChallenges)
	mux.HandleFunc("GET /api/challenges/{id}", s.handleGetChallenge)
	mux.HandleFunc("PATCH /api/challenges/{id}", s.handleUpdateChallenge)
	mux.HandleFunc("POST /api/challenges/{id}/join", s.handleJoinChallenge)

	mux.HandleFunc("GET /api/enrollments/me", s.handleListEnrollments)
	mux.HandleFunc("POST /api/enrollments/{id}/check-in", s.handleCheckIn)
	mux.HandleFunc("DELETE /api/enrollments/{id}", s.handleLeave)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, http.StatusNotFound, "not_found", "no such route", "")
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
	writeErrorCode(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later", "")
}

// Shutdown stops the HTTP server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		m := s.tracer.GetMetrics()
		slog.InfoContext(ctx, "HTTP server shutting down",
			"total_requests", m.TotalRequests,
			"avg_response_us", m.AverageResponseTime)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
