package app

import (
	"log/slog"
	"net/http"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/certs"
	"github.com/certchain/certchain/internal/identity"
	"github.com/certchain/certchain/internal/institutions"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/internal/view"
)

// DashboardCard is a single stat tile on a dashboard.
type DashboardCard struct {
	Title     string
	Value     int
	Link      string
	LinkLabel string
}

// Pages serves the cross-module pages: dashboards, profile, settings, and
// the audit timeline.
type Pages struct {
	logger       *slog.Logger
	templates    *view.Engine
	csrf         *shared.CSRFManager
	identity     *identity.Service
	certs        *certs.Service
	institutions *institutions.Service
	audit        *shared.AuditLogger
}

// NewPages builds the Pages handler.
func NewPages(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, identitySvc *identity.Service, certsSvc *certs.Service, institutionsSvc *institutions.Service, audit *shared.AuditLogger) *Pages {
	return &Pages{
		logger:       logger,
		templates:    templates,
		csrf:         csrf,
		identity:     identitySvc,
		certs:        certsSvc,
		institutions: institutionsSvc,
		audit:        audit,
	}
}

// Dashboard renders the role-specific landing page.
func (p *Pages) Dashboard(w http.ResponseWriter, r *http.Request) {
	role := access.RoleFromContext(r.Context())
	principalID := p.actor(r)

	displayName := ""
	if principal, err := p.identity.GetPrincipal(r.Context(), principalID); err == nil {
		displayName = principal.DisplayName
	}

	var cards []DashboardCard
	switch role {
	case access.RoleCandidate:
		held, err := p.certs.ListHeldBy(r.Context(), principalID)
		if err != nil {
			p.logger.Warn("dashboard held certs", slog.Any("error", err))
		}
		cards = append(cards, DashboardCard{Title: "Certificates held", Value: len(held), Link: access.BuildPath("certificates", role), LinkLabel: "Open wallet"})
	case access.RoleInstructor:
		issued, err := p.certs.ListIssuedBy(r.Context(), principalID)
		if err != nil {
			p.logger.Warn("dashboard issued certs", slog.Any("error", err))
		}
		cards = append(cards, DashboardCard{Title: "Certificates issued", Value: len(issued), Link: access.BuildPath("certificates", role), LinkLabel: "View issued"})
	case access.RoleInstitutionAdmin:
		issued, err := p.certs.ListIssuedBy(r.Context(), principalID)
		if err != nil {
			p.logger.Warn("dashboard issued certs", slog.Any("error", err))
		}
		memberships, err := p.institutions.InstitutionsFor(r.Context(), principalID)
		if err != nil {
			p.logger.Warn("dashboard memberships", slog.Any("error", err))
		}
		cards = append(cards,
			DashboardCard{Title: "Certificates issued", Value: len(issued), Link: access.BuildPath("certificates", role), LinkLabel: "View issued"},
			DashboardCard{Title: "Institutions managed", Value: len(memberships)},
		)
	case access.RoleSuperAdmin:
		list, err := p.institutions.List(r.Context())
		if err != nil {
			p.logger.Warn("dashboard institutions", slog.Any("error", err))
		}
		_, pagination, err := p.identity.ListPrincipals(r.Context(), 1, 1)
		if err != nil {
			p.logger.Warn("dashboard principals", slog.Any("error", err))
		}
		cards = append(cards,
			DashboardCard{Title: "Institutions", Value: len(list), Link: "/super_admin/institutions", LinkLabel: "Manage"},
			DashboardCard{Title: "Principals", Value: pagination.Total, Link: "/super_admin/principals", LinkLabel: "Manage"},
		)
	}

	p.render(w, r, "pages/dashboard.html", "Dashboard", map[string]any{
		"DisplayName": displayName,
		"Cards":       cards,
	})
}

// Profile renders the signed-in principal's profile.
func (p *Pages) Profile(w http.ResponseWriter, r *http.Request) {
	principal, err := p.identity.GetPrincipal(r.Context(), p.actor(r))
	if err != nil {
		p.logger.Warn("profile lookup", slog.Any("error", err))
		http.NotFound(w, r)
		return
	}
	p.render(w, r, "pages/profile.html", "Profile", map[string]any{"Principal": principal})
}

// Settings renders the account settings page.
func (p *Pages) Settings(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "pages/settings.html", "Settings", nil)
}

// AuditTrail renders the recent audit entries for super admins.
func (p *Pages) AuditTrail(w http.ResponseWriter, r *http.Request) {
	logs, err := p.audit.ListRecent(r.Context(), 100)
	if err != nil {
		p.logger.Error("audit list", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.render(w, r, "pages/audit.html", "Audit Trail", map[string]any{"Logs": logs})
}

func (p *Pages) actor(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.User()
	}
	return ""
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, template, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := p.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	role := access.RoleFromContext(r.Context())
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Role:        role,
		Nav:         view.NavFor(role),
		Data:        data,
	}
	if err := p.templates.Render(w, template, viewData); err != nil {
		p.logger.Error("render page", slog.String("template", template), slog.Any("error", err))
	}
}
