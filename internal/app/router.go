package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/auth"
	"github.com/certchain/certchain/internal/certs"
	"github.com/certchain/certchain/internal/identity"
	"github.com/certchain/certchain/internal/institutions"
	"github.com/certchain/certchain/internal/observability"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/internal/view"
	"github.com/certchain/certchain/jobs"
	"github.com/certchain/certchain/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Templates           *view.Engine
	SessionManager      *shared.SessionManager
	CSRFManager         *shared.CSRFManager
	Resolver            *access.Resolver
	AuthHandler         *auth.Handler
	IdentityHandler     *identity.Handler
	InstitutionsHandler *institutions.Handler
	CertsHandler        *certs.Handler
	Pages               *Pages
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with CertChain defaults. The URL space
// is role prefixed: each role's pages live under its own namespace, shared
// pages live at the root, and every prefixed subtree sits behind the route
// guard for its role.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	guard := access.Guard{Resolver: params.Resolver, Logger: params.Logger}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page for unauthenticated visitors.
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:     "CertChain",
			CSRFToken: csrfToken,
			Flash:     flash,
		}
		if err := params.Templates.Render(w, "pages/welcome.html", data); err != nil {
			params.Logger.Error("render welcome", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	// The root bounces visitors to the landing page and signed-in principals
	// to their own role's dashboard.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		role := params.Resolver.EffectiveRole(r.Context(), sess.User())
		http.Redirect(w, r, access.HomePath(role), http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Public certificate surfaces: verification and claim landing, plus the
	// JSON endpoint for external verifiers.
	params.CertsHandler.MountPublicRoutes(r)
	r.Route("/api/v1", params.CertsHandler.MountAPIRoutes)
	r.Get("/verify", func(w http.ResponseWriter, r *http.Request) {
		serial := r.URL.Query().Get("serial")
		if serial == "" {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/verify/"+serial, http.StatusSeeOther)
	})

	// Role-prefixed subtrees.
	r.Route("/super_admin", func(r chi.Router) {
		r.Use(guard.RequireRole(access.RoleSuperAdmin))
		r.Get("/dashboard", params.Pages.Dashboard)
		r.Get("/audit", params.Pages.AuditTrail)
		r.Route("/principals", params.IdentityHandler.MountRoutes)
		r.Route("/institutions", params.InstitutionsHandler.MountAdminRoutes)
		r.Route("/certificates", params.CertsHandler.MountIssuerRoutes)
		r.Route("/jobs", params.JobHandler.MountRoutes)
	})

	r.Route("/institution_admin", func(r chi.Router) {
		r.Use(guard.RequireRole(access.RoleInstitutionAdmin))
		r.Get("/dashboard", params.Pages.Dashboard)
		r.Route("/institutions", params.InstitutionsHandler.MountStaffRoutes)
		r.Route("/certificates", params.CertsHandler.MountIssuerRoutes)
	})

	r.Route("/instructor", func(r chi.Router) {
		r.Use(guard.RequireRole(access.RoleInstructor))
		r.Get("/dashboard", params.Pages.Dashboard)
		r.Route("/certificates", params.CertsHandler.MountIssuerRoutes)
	})

	r.Route("/candidate", func(r chi.Router) {
		r.Use(guard.RequireRole(access.RoleCandidate))
		r.Get("/dashboard", params.Pages.Dashboard)
		r.Route("/certificates", params.CertsHandler.MountHolderRoutes)
	})

	// Shared namespaces: open to every authenticated principal.
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireRole(access.RoleAny))
		r.Get("/profile", params.Pages.Profile)
		r.Get("/settings", params.Pages.Settings)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
