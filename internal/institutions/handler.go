package institutions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/internal/view"
)

// Handler manages institution endpoints. Mounted twice: the super admin
// subtree gets full CRUD, the institution admin subtree gets staff management
// scoped by the service's membership check.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, validator: validator.New()}
}

// MountAdminRoutes registers full CRUD for super admins.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.create)
	r.Get("/{institutionID}", h.show)
	r.Post("/{institutionID}", h.update)
	r.Post("/{institutionID}/archive", h.archive)
	r.Post("/{institutionID}/restore", h.restore)
	h.mountStaffRoutes(r)
}

// MountStaffRoutes registers staff management for institution admins.
func (h *Handler) MountStaffRoutes(r chi.Router) {
	r.Get("/{institutionID}", h.show)
	h.mountStaffRoutes(r)
}

func (h *Handler) mountStaffRoutes(r chi.Router) {
	r.Get("/{institutionID}/staff", h.listStaff)
	r.Post("/{institutionID}/staff", h.addStaff)
	r.Post("/{institutionID}/staff/{principalID}/remove", h.removeStaff)
}

type institutionForm struct {
	Name        string `validate:"required,min=2,max=200"`
	Website     string `validate:"omitempty,url"`
	Description string `validate:"max=2000"`
}

type formErrors map[string]string

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list institutions", slog.Any("error", err))
		h.render(w, r, "pages/institutions/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/institutions/list.html", map[string]any{"Institutions": list}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/institutions/form.html", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := institutionForm{
		Name:        r.PostFormValue("name"),
		Website:     r.PostFormValue("website"),
		Description: r.PostFormValue("description"),
	}
	if errs := h.validate(form); len(errs) > 0 {
		h.render(w, r, "pages/institutions/form.html", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}
	inst, err := h.service.Create(r.Context(), h.actor(r), Institution{
		Name:        form.Name,
		Website:     form.Website,
		Description: form.Description,
	})
	if err != nil {
		h.render(w, r, "pages/institutions/form.html", map[string]any{"Form": form, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/super_admin/institutions/"+inst.ID, "success", "Institution created")
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "institutionID")
	inst, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	staff, err := h.service.ListStaff(r.Context(), id)
	if err != nil {
		h.logger.Error("list staff", slog.Any("error", err))
	}
	h.render(w, r, "pages/institutions/detail.html", map[string]any{"Institution": inst, "Staff": staff}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "institutionID")
	form := institutionForm{
		Name:        r.PostFormValue("name"),
		Website:     r.PostFormValue("website"),
		Description: r.PostFormValue("description"),
	}
	if errs := h.validate(form); len(errs) > 0 {
		h.render(w, r, "pages/institutions/form.html", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}
	err := h.service.Update(r.Context(), h.actor(r), Institution{
		ID:          id,
		Name:        form.Name,
		Website:     form.Website,
		Description: form.Description,
	})
	if err != nil {
		h.redirectWithFlash(w, r, "/super_admin/institutions/"+id, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/super_admin/institutions/"+id, "success", "Institution updated")
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "institutionID")
	if err := h.service.Archive(r.Context(), h.actor(r), id); err != nil {
		h.redirectWithFlash(w, r, "/super_admin/institutions", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/super_admin/institutions", "success", "Institution archived")
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "institutionID")
	if err := h.service.Restore(r.Context(), h.actor(r), id); err != nil {
		h.redirectWithFlash(w, r, "/super_admin/institutions", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/super_admin/institutions", "success", "Institution restored")
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "institutionID")
	staff, err := h.service.ListStaff(r.Context(), id)
	if err != nil {
		h.logger.Error("list staff", slog.Any("error", err))
		h.render(w, r, "pages/institutions/staff.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/institutions/staff.html", map[string]any{"InstitutionID": id, "Staff": staff}, http.StatusOK)
}

func (h *Handler) addStaff(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "institutionID")
	member := StaffMember{
		InstitutionID: id,
		PrincipalID:   r.PostFormValue("principal_id"),
		Title:         r.PostFormValue("title"),
	}
	if member.PrincipalID == "" {
		h.redirectWithFlash(w, r, h.staffPath(r, id), "error", "Choose a principal to add")
		return
	}
	if err := h.service.AddStaff(r.Context(), h.actor(r), h.actorIsSuper(r), member); err != nil {
		h.redirectWithFlash(w, r, h.staffPath(r, id), "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, h.staffPath(r, id), "success", "Staff member added")
}

func (h *Handler) removeStaff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "institutionID")
	principalID := chi.URLParam(r, "principalID")
	if err := h.service.RemoveStaff(r.Context(), h.actor(r), h.actorIsSuper(r), id, principalID); err != nil {
		h.redirectWithFlash(w, r, h.staffPath(r, id), "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, h.staffPath(r, id), "success", "Staff member removed")
}

func (h *Handler) staffPath(r *http.Request, institutionID string) string {
	return "/" + access.RolePrefix(access.RoleFromContext(r.Context())) + "/institutions/" + institutionID + "/staff"
}

func (h *Handler) actor(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.User()
	}
	return ""
}

func (h *Handler) actorIsSuper(r *http.Request) bool {
	return access.RoleFromContext(r.Context()) == access.RoleSuperAdmin
}

func (h *Handler) validate(form institutionForm) formErrors {
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	return errs
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	role := access.RoleFromContext(r.Context())
	viewData := view.TemplateData{Title: "Institutions", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Role: role, Nav: view.NavFor(role), Data: data}
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
