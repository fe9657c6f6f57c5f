package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gota/internal/auth"
	"gota/internal/log"
	"gota/internal/middleware/ratelimit"
	"gota/internal/middleware/security"
	"gota/internal/middleware/trace"
	"gota/internal/services"
	"gota/internal/store"
)

// Services are the application operations behind the routes.
type Services struct {
	Auth      *auth.Service
	Expenses  *services.ExpenseService
	Income    *services.IncomeService
	Config    *services.ConfigService
	Dashboard *services.DashboardService
	Analytics *services.AnalyticsService
	Export    *services.ExportService
	Parse     *services.ParseService
	Account   *services.AccountService
	Health    store.Pinger
}

// Options configure the transport, not the application.
type Options struct {
	Addr               string
	SecureCookies      bool
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
}

// Server is the API server. Handler is fully built by NewServer, so tests can
// drive it with httptest without listening.
type Server struct {
	http.Server

	svc          Services
	secure       bool
	logger       *log.Logger
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	detector := security.NewDetector(logger)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	s := &Server{
		svc:      svc,
		secure:   opts.SecureCookies,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
	}
	s.tracer = trace.NewMiddleware(detector.ExtractClientIP, s.logger)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	protected := s.svc.Auth.Middleware(s.secure,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { UnauthorizedError().Write(w) }),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusBadGateway, msgUpstream).Write(w)
		}),
	)
	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	api("POST /api/logout", s.handleLogout)

	api("GET /api/expenses", s.handleListExpenses)
	api("POST /api/expenses", s.handleCreateExpense)
	api("GET /api/expenses/duplicates", s.handleDuplicates)
	api("PUT /api/expenses/{id}", s.handleUpdateExpense)
	api("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	api("POST /api/parse-expense", s.handleParseExpense)

	api("GET /api/monthly-income", s.handleGetIncome)
	api("POST /api/monthly-income", s.handleUpsertIncome)
	api("GET /api/user-config", s.handleGetConfig)
	api("PUT /api/user-config", s.handleUpdateConfig)
	api("POST /api/user-config/cards", s.handleAddCard)
	api("PUT /api/user-config/cards/{id}", s.handleUpdateCard)

	api("GET /api/dashboard", s.handleDashboard)
	api("GET /api/analytics", s.handleAnalytics)
	api("GET /api/export", s.handleExport)
	api("DELETE /api/account", s.handleDeleteAccount)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { NotFoundError().Write(w) })

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
		)
		ErrorResponse(http.StatusTooManyRequests, msgRateLimit).Write(w)
	})

	var h http.Handler = mux
	h = limited(h)
	h = s.tracer.Middleware(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.Middleware(s.logger.WithComponent(log.ComponentHTTP))(h)
	return h
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics is a snapshot of the middleware counters, logged on shutdown.
type Metrics struct {
	Requests  trace.Metrics
	RateLimit ratelimit.Metrics
	Security  security.DetectionMetrics
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Health.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, msgUpstream).Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}
