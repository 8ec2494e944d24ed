package identity

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/internal/view"
)

// Handler manages principal administration endpoints. The router mounts it
// under the super admin subtree, so every request here already passed the
// route guard.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers principal administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPrincipals)
	r.Get("/{principalID}", h.showPrincipal)
	r.Post("/{principalID}/roles", h.replaceRoles)
	r.Post("/{principalID}/roles/grant", h.grantRole)
	r.Post("/{principalID}/roles/revoke", h.revokeRole)
	r.Post("/{principalID}/active", h.setActive)
}

type formErrors map[string]string

func (h *Handler) listPrincipals(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	principals, pagination, err := h.service.ListPrincipals(r.Context(), page, 20)
	if err != nil {
		h.logger.Error("list principals", slog.Any("error", err))
		h.render(w, r, "pages/identity/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/identity/list.html", map[string]any{"Principals": principals, "Pagination": pagination}, http.StatusOK)
}

func (h *Handler) showPrincipal(w http.ResponseWriter, r *http.Request) {
	principal, err := h.service.GetPrincipal(r.Context(), chi.URLParam(r, "principalID"))
	if err != nil {
		h.logger.Warn("get principal", slog.Any("error", err))
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/identity/detail.html", map[string]any{"Principal": principal}, http.StatusOK)
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principalID := chi.URLParam(r, "principalID")
	actorID := h.actor(r)
	if err := h.service.GrantRole(r.Context(), actorID, principalID, r.PostFormValue("role")); err != nil {
		h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "success", "Role granted")
}

func (h *Handler) replaceRoles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principalID := chi.URLParam(r, "principalID")
	if err := h.service.ReplaceRoles(r.Context(), h.actor(r), principalID, r.PostForm["roles"]); err != nil {
		h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "success", "Role assignments replaced")
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principalID := chi.URLParam(r, "principalID")
	actorID := h.actor(r)
	if err := h.service.RevokeRole(r.Context(), actorID, principalID, r.PostFormValue("role")); err != nil {
		h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "success", "Role revoked")
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principalID := chi.URLParam(r, "principalID")
	active := r.PostFormValue("active") == "true"
	if err := h.service.SetActive(r.Context(), h.actor(r), principalID, active); err != nil {
		h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "error", shared.UserSafeMessage(err))
		return
	}
	message := "Account deactivated"
	if active {
		message = "Account activated"
	}
	h.redirectWithFlash(w, r, "/super_admin/principals/"+principalID, "success", message)
}

func (h *Handler) actor(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.User()
	}
	return ""
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	role := access.RoleFromContext(r.Context())
	viewData := view.TemplateData{Title: "Principals", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Role: role, Nav: view.NavFor(role), Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
