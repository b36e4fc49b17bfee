package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/backend"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// Options tune the HTTP surface. Zero values fall back to defaults.
type Options struct {
	// UserIDHeader carries the caller id set by the fronting auth gateway.
	UserIDHeader       string
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	app        *backend.App
	logger     *applog.Logger
	structured *applog.StructuredLogger
	userHeader string

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, app *backend.App, opts Options, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.UserIDHeader == "" {
		opts.UserIDHeader = "X-User-ID"
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		app:              app,
		logger:           logger,
		structured:       applog.NewStructuredLogger(logger),
		userHeader:       opts.UserIDHeader,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		started:          time.Now(),
		now:              time.Now,
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.rateLimitKey, s.onRateLimit)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// No caller identity yet.
	mux.HandleFunc("POST /api/users", s.handleRegister)
	mux.HandleFunc("POST /api/password-resets", s.handleRequestReset)
	mux.HandleFunc("POST /api/password-resets/confirm", s.handleConfirmReset)

	mux.HandleFunc("GET /api/settings", s.withUser(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.withUser(s.handleUpdateSettings))

	mux.HandleFunc("GET /api/wallets", s.withUser(s.handleListWallets))
	mux.HandleFunc("POST /api/wallets", s.withUser(s.handleCreateWallet))
	mux.HandleFunc("GET /api/wallets/{id}", s.withUser(s.handleGetWallet))
	mux.HandleFunc("PUT /api/wallets/{id}", s.withUser(s.handleRenameWallet))
	mux.HandleFunc("DELETE /api/wallets/{id}", s.withUser(s.handleDeleteWallet))
	mux.HandleFunc("GET /api/wallets/{id}/audit", s.withUser(s.handleAuditWallet))

	mux.HandleFunc("GET /api/categories", s.withUser(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withUser(s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.withUser(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withUser(s.handleDeleteCategory))
	mux.HandleFunc("GET /api/categories/{id}/children", s.withUser(s.handleCategoryChildren))

	mux.HandleFunc("GET /api/transactions", s.withUser(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withUser(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.withUser(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withUser(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withUser(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/budgets", s.withUser(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", s.withUser(s.handleCreateBudget))
	mux.HandleFunc("GET /api/budgets/{id}", s.withUser(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budgets/{id}", s.withUser(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.withUser(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/reports", s.withUser(s.handleDashboard))
	mux.HandleFunc("GET /api/reports/export", s.withUser(s.handleExport))
	mux.HandleFunc("POST /api/reports/export/sheets", s.withUser(s.handleExportSheets))
	mux.HandleFunc("GET /api/reports/charts/trend.png", s.withUser(s.handleTrendChart))
	mux.HandleFunc("GET /api/reports/charts/categories.png", s.withUser(s.handleCategoryChart))

	mux.HandleFunc("POST /api/ai/suggest", s.withUser(s.handleSuggest))
	mux.HandleFunc("POST /api/ai/chat", s.withUser(s.handleChat))
	mux.HandleFunc("GET /api/ai/chat", s.withUser(s.handleChatHistory))

	mux.HandleFunc("GET /api/admin/users", s.withUser(s.handleAdminListUsers))
	mux.HandleFunc("PUT /api/admin/users/{id}/status", s.withUser(s.handleAdminSetStatus))
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.withUser(s.handleAdminDeleteUser))
	mux.HandleFunc("POST /api/admin/maintenance", s.withUser(s.handleAdminMaintenance))
}

type userKey struct{}

// withUser rejects requests without a caller id and stores it for handlers.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(s.userHeader))
		if userID == "" {
			UnauthorizedError("missing " + s.userHeader + " header").Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, userID)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, userID)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, logger)
		next(w, r.WithContext(ctx))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// rateLimitKey buckets authenticated callers by id and everyone else by IP.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(s.userHeader)); id != "" {
		return "user:" + id
	}
	return "ip:" + s.securityDetector.ExtractClientIP(r)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// respond writes v as JSON with status.
func respond(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}

// fail maps err onto a status and logs it. Server-side failures are logged
// at error, client mistakes at debug.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	m := classifyError(err)
	ctx := r.Context()
	if m.status >= http.StatusInternalServerError {
		s.structured.LogError(ctx, "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithErrorType(m.errorType).WithUser(userID(r)))
	} else {
		applog.FromContext(ctx).DebugContext(ctx, "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorType, m.errorType,
			applog.FieldError, err)
	}
	NewJSONResponse().Status(m.status).Data(m.body).Write(w)
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
