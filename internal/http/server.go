package http

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"moneytracker/internal/cache"
	"moneytracker/internal/core"
	applog "moneytracker/internal/log"
	"moneytracker/internal/middleware/auth"
	"moneytracker/internal/middleware/ratelimit"
	"moneytracker/internal/middleware/security"
	"moneytracker/internal/middleware/trace"
	"moneytracker/internal/ports"
)

// bodyOverhead is the room left for form fields around the attachment.
const bodyOverhead = 1 << 20

// Ledger is the transaction service consumed by the handlers.
type Ledger interface {
	List(ctx context.Context, ownerID string, f core.Filter, p core.Page) (core.TransactionPage, error)
	Get(ctx context.Context, ownerID, id string) (core.Transaction, error)
	Create(ctx context.Context, ownerID string, req core.NewTransaction, upload *core.Upload) (core.Transaction, error)
	Update(ctx context.Context, ownerID, id string, patch core.TransactionPatch, upload *core.Upload) (core.Transaction, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type Stats interface {
	Summarize(ctx context.Context, ownerID string) (core.Summary, error)
	Report(ctx context.Context, ownerID string, period core.ReportPeriod, anchor time.Time) (core.Report, error)
}

type Budgets interface {
	List(ctx context.Context, ownerID string) ([]core.Budget, error)
	Create(ctx context.Context, ownerID string, b core.Budget) (core.Budget, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// AttachmentFiles serves stored receipts back to their owner.
type AttachmentFiles interface {
	Open(key string) (*os.File, time.Time, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP surface settings.
type Config struct {
	Addr               string
	APIPrefix          string
	JWTSecret          string
	MaxUploadBytes     int64
	RateLimitPerMinute int
}

// Deps are the services behind the API. Files, DB, Caches and
// InvalidateAlerts may be nil.
type Deps struct {
	Ledger           Ledger
	Stats            Stats
	Budgets          Budgets
	Alerts           ports.BudgetAlertFeed
	InvalidateAlerts func(ownerID string)
	Files            AttachmentFiles
	DB               Pinger
	Caches           *cache.Manager
	Logger           *applog.Logger
}

type Server struct {
	http.Server
	config   Config
	deps     Deps
	logger   *applog.Logger
	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	auth     *auth.Authenticator

	shutdownOnce sync.Once
}

func NewServer(config Config, deps Deps) *Server {
	if config.APIPrefix == "" {
		config.APIPrefix = "/api"
	}
	config.APIPrefix = "/" + strings.Trim(config.APIPrefix, "/")
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		config:   config,
		deps:     deps,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		detector: security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: config.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)
	s.auth = auth.New(config.JWTSecret, s.writeAuthError)

	mux := http.NewServeMux()
	p := config.APIPrefix

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET "+p+"/transactions", s.protected(s.handleListTransactions))
	mux.Handle("POST "+p+"/transactions", s.protected(s.handleCreateTransaction))
	mux.Handle("GET "+p+"/transactions/stats/summary", s.protected(s.handleSummary))
	mux.Handle("GET "+p+"/transactions/stats/report", s.protected(s.handleReport))
	mux.Handle("GET "+p+"/transactions/{id}", s.protected(s.handleGetTransaction))
	mux.Handle("PUT "+p+"/transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.Handle("DELETE "+p+"/transactions/{id}", s.protected(s.handleDeleteTransaction))

	mux.Handle("GET "+p+"/budgets", s.protected(s.handleListBudgets))
	mux.Handle("POST "+p+"/budgets", s.protected(s.handleCreateBudget))
	mux.Handle("GET "+p+"/budgets/alerts", s.protected(s.handleBudgetAlerts))
	mux.Handle("DELETE "+p+"/budgets/{id}", s.protected(s.handleDeleteBudget))

	mux.Handle("GET "+p+"/attachments/{key...}", s.protected(s.handleAttachment))

	mux.HandleFunc(p+"/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Route not found").Write(w)
	})

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ClientIP, s.writeRateLimited)(handler)
	handler = s.screen(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.tracer.Handler(handler)

	s.Server = http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// protected requires a valid token and adds the owner to the request logger.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if owner, ok := auth.OwnerFromContext(r.Context()); ok {
			logger := applog.FromContext(r.Context()).With(applog.FieldOwnerID, owner)
			r = r.WithContext(applog.NewContext(r.Context(), logger))
		}
		h(w, r)
	}))
}

// screen logs requests that look like probes. They are still served: the
// router and auth reject them on their own.
func (s *Server) screen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
				"Suspicious request detected",
				applog.NewFields().
					WithClientIP(s.detector.ClientIP(r)).
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
					ToSlice()...)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, status int, err error) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(),
		"Authentication failed",
		applog.NewFields().WithError(err, applog.ErrorTypeAuth).WithClientIP(s.detector.ClientIP(r)).ToSlice()...)
	ErrorResponse(status, err.Error()).Write(w)
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		applog.NewFields().WithClientIP(s.detector.ClientIP(r)).WithHTTPRequest(r.Method, r.URL.Path, "", "").ToSlice()...)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, please try again later.").Write(w)
}

// bodyLimit caps request bodies at the attachment limit plus form overhead.
func (s *Server) bodyLimit() int64 {
	return s.config.MaxUploadBytes + bodyOverhead
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.deps.Caches != nil {
			s.deps.Caches.Stop()
		}
		total, failed := s.tracer.Counts()
		s.logger.Info("HTTP server shutting down",
			"requests_total", total,
			"requests_failed", failed,
			"rate_limited", s.limiter.Rejected(),
			"suspicious", s.detector.SuspiciousCount())
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				applog.NewFields().WithError(err, applog.ErrorTypeDatabase).ToSlice()...)
			ErrorResponse(http.StatusServiceUnavailable, "Database unavailable").Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// ownerID returns the authenticated owner. Only called behind protected.
func ownerID(r *http.Request) string {
	owner, _ := auth.OwnerFromContext(r.Context())
	return owner
}
