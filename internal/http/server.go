// Package http serves the ordering and admin pages.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"teamorders/internal/core"
	"teamorders/internal/docstore"
	applog "teamorders/internal/log"
	"teamorders/internal/middleware/ratelimit"
	"teamorders/internal/middleware/security"
	"teamorders/internal/middleware/trace"
	"teamorders/internal/services"
	"teamorders/internal/session"
	appweb "teamorders/web"
)

// Documents is the flat-file store the admin pages read and replace.
type Documents interface {
	docstore.Loader
	Directory(ctx context.Context) (core.Directory, string, error)
	Menu(ctx context.Context) (core.Menu, string, error)
	Budgets(ctx context.Context) (core.Budgets, string, error)
	SaveDirectory(ctx context.Context, dir core.Directory, expected string) (string, error)
	SaveMenu(ctx context.Context, menu core.Menu, expected string) (string, error)
	SaveBudgets(ctx context.Context, budgets core.Budgets, expected string) (string, error)
}

// Pinger reports whether the ledger is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the role settings.
type Options struct {
	AdminTeam   string
	AdminMember string
}

// Deps are the collaborators every handler uses.
type Deps struct {
	Documents Documents
	Orders    *services.OrderService
	Reports   *services.ReportService
	Ledger    Pinger
	Sessions  *session.Manager
	Logger    *applog.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	opts      Options

	docs     Documents
	orders   *services.OrderService
	reports  *services.ReportService
	ledger   Pinger
	sessions *session.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	logger  *applog.Logger
	now     func() time.Time
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		opts:             opts,
		docs:             deps.Documents,
		orders:           deps.Orders,
		reports:          deps.Reports,
		ledger:           deps.Ledger,
		sessions:         deps.Sessions,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger.WithComponent(applog.ComponentTrace), detector.ExtractClientIP),
		logger:           logger,
		now:              time.Now,
		started:          time.Now(),
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	s.Handler = s.middleware(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)

	mux.HandleFunc("GET /order", s.orderer(s.handleOrderPage))
	mux.HandleFunc("POST /order/add", s.orderer(s.handleAddToOrder))
	mux.HandleFunc("POST /add_to_order", s.orderer(s.handleAddToOrder))
	mux.HandleFunc("POST /order/edit", s.orderer(s.handleEditOrder))
	mux.HandleFunc("GET /order/review", s.orderer(s.handleReviewOrder))
	mux.HandleFunc("POST /order/review", s.orderer(s.handleReviewOrder))
	mux.HandleFunc("POST /order/submit", s.orderer(s.handleSubmitOrder))

	mux.HandleFunc("GET /admin", s.admin(s.handleAdminDashboard))
	mux.HandleFunc("GET /admin/football_order", s.admin(s.handleActForAdminTeam))
	mux.HandleFunc("GET /admin/team/{team}", s.admin(s.handleTeamOrders))
	mux.HandleFunc("GET /admin/produce_hyvee", s.admin(s.handleGroupReport))
	mux.HandleFunc("GET /admin/produce_hyvee/export", s.admin(s.handleGroupExport))
	mux.HandleFunc("GET /admin/weekly_summary", s.admin(s.handleWeeklySummary))
	mux.HandleFunc("GET /admin/weekly_summary/export", s.admin(s.handleWeeklySummaryExport))
	mux.HandleFunc("GET /admin/weekly_totals", s.admin(s.handleWeeklyTotals))
	mux.HandleFunc("GET /admin/all_orders", s.admin(s.handleAllOrders))
	mux.HandleFunc("GET /admin/user/{member}", s.admin(s.handleMemberOrders))

	mux.HandleFunc("GET /admin/budgets", s.editor(s.handleBudgetsPage))
	mux.HandleFunc("POST /admin/budgets", s.editor(s.handleSaveBudgets))
	mux.HandleFunc("GET /admin/edit_menu", s.editor(s.handleMenuPage))
	mux.HandleFunc("POST /admin/edit_menu", s.editor(s.handleSaveMenu))
	mux.HandleFunc("GET /admin/edit_users", s.editor(s.handleUsersPage))
	mux.HandleFunc("POST /admin/edit_users", s.editor(s.handleSaveUsers))

	return mux
}

// middleware wraps h outermost first: tracing, headers, probe screening,
// POST rate limiting, then session decoding.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.sessions.Middleware(h)
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(h)
	h = s.securityDetector.Middleware(s.onSuspicious)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func (s *Server) onSuspicious(r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request blocked",
		applog.FieldComponent, applog.ComponentSecurity,
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
}

// orderer requires a member who may place orders; the full admin is sent to
// the dashboard until they act for the admin team.
func (s *Server) orderer(next http.HandlerFunc) http.HandlerFunc {
	return s.loggedIn(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).Identity.CanOrder() {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		next(w, r)
	})
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return s.loggedIn(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).Identity.CanViewAdmin() {
			http.Error(w, "Access Denied", http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

func (s *Server) editor(next http.HandlerFunc) http.HandlerFunc {
	return s.loggedIn(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).Identity.CanEditAdmin() {
			http.Error(w, "Access Denied", http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

func (s *Server) loggedIn(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).LoggedIn() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
