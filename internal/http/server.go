package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/fire"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/screens"
	"fintrack/internal/services"
	appweb "fintrack/web"
)

// Options are the presentation settings of the server.
type Options struct {
	Addr               string
	Currency           string
	Location           *time.Location
	RateLimitPerMinute int
	FireDefaults       fire.Parameters
	// RefreshTimeout bounds each fetch of the transaction list.
	RefreshTimeout time.Duration
}

// Dependencies are the collaborators the handlers bind to.
type Dependencies struct {
	Watcher      *auth.Watcher
	Session      *screens.Session
	Transactions *services.TransactionService
	// SignIn turns a pasted token into a principal. Nil disables /login.
	SignIn func(ctx context.Context, token string) (*auth.Principal, error)
	Caches *cache.Manager
	// Ready reports extra readiness conditions, such as the event broker.
	Ready func(ctx context.Context) error
}

// Server embeds http.Server and owns the middleware that needs stopping.
type Server struct {
	http.Server
	opts     Options
	deps     Dependencies
	logger   *log.Logger
	renderer *renderer

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime         time.Time
	created        atomic.Int64
	createFailed   atomic.Int64
	categorized    atomic.Int64
	adviceAnswered atomic.Int64
	refreshFailed  atomic.Int64
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options, deps Dependencies, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrencySymbol
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 15 * time.Second
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}

	s := &Server{
		opts:       opts,
		deps:       deps,
		logger:     logger.WithComponent(log.ComponentHTTP),
		detector:   security.NewDetector(logger),
		appMetrics: &appMetrics{uptime: time.Now()},
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		CleanupInterval:   ratelimit.DefaultConfig().CleanupInterval,
	}, logger)

	r, err := newRenderer(appweb.TemplatesFS, templateFuncs(opts.Currency, opts.Location))
	if err != nil {
		s.logger.Error("Failed parsing templates",
			log.FieldOperation, log.OpStartup,
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
	}
	s.renderer = r

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)

	var handler http.Handler = mux
	handler = postOnly(limited, handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.withWorkspace(s.handleHome))
	mux.HandleFunc("POST /transactions/refresh", s.withWorkspace(s.handleRefresh))
	mux.HandleFunc("GET /transactions/new", s.withWorkspace(s.handleNewTransaction))
	mux.HandleFunc("POST /transactions", s.withWorkspace(s.handleCreateTransaction))
	mux.HandleFunc("POST /ui/categorize", s.handleCategorize)

	mux.HandleFunc("GET /fire", s.withWorkspace(s.handleFire))
	mux.HandleFunc("POST /fire", s.withWorkspace(s.handleUpdateFire))
	mux.HandleFunc("GET /api/fire/projection", s.handleProjectionAPI)

	mux.HandleFunc("GET /advice", s.withWorkspace(s.handleAdvice))
	mux.HandleFunc("POST /advice", s.withWorkspace(s.handleAsk))

	mux.HandleFunc("GET /profile", s.withWorkspace(s.handleProfile))

	mux.HandleFunc("/", s.handleNotFound)
}

// postOnly sends POST requests through limited and everything else straight
// to next.
func postOnly(limited func(http.Handler) http.Handler, next http.Handler) http.Handler {
	wrapped := limited(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			wrapped.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	if isHX(r) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again in a minute.").
			TriggerErrorNotification("Too many requests. Please try again in a minute.").
			Write(w)
		return
	}
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

type workspaceHandler func(w http.ResponseWriter, r *http.Request, ws *screens.Workspace)

// withWorkspace resolves the signed-in workspace or sends the browser to
// /login.
func (s *Server) withWorkspace(next workspaceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ws *screens.Workspace
		if s.deps.Session != nil {
			ws = s.deps.Session.Workspace()
		}
		if ws == nil {
			if isHX(r) {
				w.Header().Set("HX-Redirect", "/login")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, ws)
	}
}

// Shutdown stops background middleware and then the HTTP server. Only the
// first call does any work.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		s.logger.Info("HTTP server stopped", log.FieldOperation, log.OpShutdown)
	})
	return shutdownErr
}
