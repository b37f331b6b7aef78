package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"laporan/internal/calendar"
	"laporan/internal/log"
	"laporan/internal/middleware/ratelimit"
	"laporan/internal/middleware/security"
	"laporan/internal/middleware/trace"
	"laporan/internal/query"
	"laporan/internal/services"
	"laporan/internal/timeexpr"
)

// Reports is what the handlers need from the report service.
type Reports interface {
	Answer(ctx context.Context, text string) services.Outcome
	Menu(ctx context.Context, kind query.ReportType, window timeexpr.Window) (services.Outcome, error)
	Profit(ctx context.Context, year int, month time.Month) services.Outcome
	Window(text string) (timeexpr.Window, error)
	Weeks(year int, month time.Month) []calendar.Week
}

// Check is one readiness check, such as a store ping.
type Check func(ctx context.Context) error

type Server struct {
	http.Server
	reports Reports
	checks  map[string]Check
	now     func() time.Time
	started time.Time
	logger  *log.Logger

	rateLimiter     *ratelimit.Limiter
	securityHeaders *security.HeadersMiddleware
	detector        *security.Detector
	tracer          *trace.Middleware
	cacheSize       func() int

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithCheck registers a readiness check under name.
func WithCheck(name string, check Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRateLimit sets the per-client request budget per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		cfg := ratelimit.DefaultConfig()
		cfg.RequestsPerMinute = perMinute
		s.rateLimiter = ratelimit.NewLimiter(cfg)
	}
}

// WithCacheSize exposes the ledger cache size on /readyz and /metrics.
func WithCacheSize(size func() int) Option {
	return func(s *Server) { s.cacheSize = size }
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, reports Reports, opts ...Option) *Server {
	s := &Server{
		reports: reports,
		checks:  make(map[string]Check),
		now:     time.Now,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.detector = security.NewDetector()
	s.securityHeaders = security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("POST /query", s.limited(http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /reports/{type}", s.limited(http.HandlerFunc(s.handleReport)))
	mux.Handle("GET /profit", s.limited(http.HandlerFunc(s.handleProfit)))
	mux.HandleFunc("GET /weeks", s.handleWeeks)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps the mux: trace outermost so every log line of the request
// carries its id.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := s.detector.Middleware(next)
	h = s.securityHeaders.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger.WithComponent(log.ComponentHTTP))(h)
	return s.tracer.Middleware(h)
}

func (s *Server) limited(next http.Handler) http.Handler {
	return s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(next)
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
