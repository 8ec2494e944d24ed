package certs

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/platform/httpx"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/internal/view"
)

// Handler manages certificate endpoints across the instructor, candidate,
// and public surfaces.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	renderer  PDFRenderer
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, renderer PDFRenderer, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		renderer:  renderer,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountIssuerRoutes registers issuance endpoints for instructors and
// institution admins.
func (h *Handler) MountIssuerRoutes(r chi.Router) {
	r.Get("/", h.listIssued)
	r.Get("/new", h.showIssueForm)
	r.Post("/", h.issue)
	r.Post("/{certificateID}/revoke", h.revoke)
	r.Get("/{certificateID}/pdf", h.exportPDF)
}

// MountHolderRoutes registers the candidate's certificate wallet.
func (h *Handler) MountHolderRoutes(r chi.Router) {
	r.Get("/", h.listHeld)
	r.Get("/{certificateID}/pdf", h.exportPDF)
}

// MountPublicRoutes registers verify and claim pages that need no session.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/verify/{serial}", h.verify)
	r.Get("/claim/{token}", h.showClaim)
	r.Post("/claim/{token}", h.claim)
}

// MountAPIRoutes registers the JSON verification endpoint for external
// verifiers that script against CertChain.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/verify/{serial}", h.apiVerify)
}

type issueForm struct {
	InstitutionID  string `validate:"required,uuid"`
	RecipientEmail string `validate:"required,email"`
	RecipientName  string `validate:"required,min=2,max=200"`
	Title          string `validate:"required,min=2,max=200"`
	Description    string `validate:"max=2000"`
}

type formErrors map[string]string

func (h *Handler) listIssued(w http.ResponseWriter, r *http.Request) {
	certs, err := h.service.ListIssuedBy(r.Context(), h.actor(r))
	if err != nil {
		h.logger.Error("list issued", slog.Any("error", err))
		h.render(w, r, "pages/certs/issued.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/certs/issued.html", map[string]any{"Certificates": certs}, http.StatusOK)
}

func (h *Handler) showIssueForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/certs/form.html", map[string]any{"Errors": formErrors{}, "IdempotencyKey": newClaimToken()[:32]}, http.StatusOK)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := issueForm{
		InstitutionID:  r.PostFormValue("institution_id"),
		RecipientEmail: r.PostFormValue("recipient_email"),
		RecipientName:  r.PostFormValue("recipient_name"),
		Title:          r.PostFormValue("title"),
		Description:    r.PostFormValue("description"),
	}
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errs) > 0 {
		h.render(w, r, "pages/certs/form.html", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}

	cert, err := h.service.Issue(r.Context(), IssueInput{
		ActorID:        h.actor(r),
		ActorIsSuper:   h.actorIsSuper(r),
		InstitutionID:  form.InstitutionID,
		RecipientEmail: form.RecipientEmail,
		RecipientName:  form.RecipientName,
		Title:          form.Title,
		Description:    form.Description,
		IdempotencyKey: r.PostFormValue("idempotency_key"),
	})
	if err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			h.redirectWithFlash(w, r, h.certsPath(r), "info", "That certificate was already submitted")
			return
		}
		h.render(w, r, "pages/certs/form.html", map[string]any{"Form": form, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, h.certsPath(r), "success", "Certificate "+cert.Serial+" issued")
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateID")
	if err := h.service.Revoke(r.Context(), h.actor(r), h.actorIsSuper(r), certificateID); err != nil {
		h.logger.Warn("revoke certificate", slog.String("certificate", certificateID), slog.Any("error", err))
		h.redirectWithFlash(w, r, h.certsPath(r), "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, h.certsPath(r), "success", "Certificate revoked")
}

func (h *Handler) listHeld(w http.ResponseWriter, r *http.Request) {
	certs, err := h.service.ListHeldBy(r.Context(), h.actor(r))
	if err != nil {
		h.logger.Error("list held", slog.Any("error", err))
		h.render(w, r, "pages/certs/wallet.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/certs/wallet.html", map[string]any{"Certificates": certs}, http.StatusOK)
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateID")
	cert, err := h.service.Get(r.Context(), certificateID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	actor := h.actor(r)
	if !h.actorIsSuper(r) && cert.IssuerID != actor && cert.HolderID != actor {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	pdf, err := h.service.RenderPDF(r.Context(), h.renderer, certificateID)
	if err != nil {
		h.logger.Error("render certificate pdf", slog.String("certificate", certificateID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename=`+cert.Serial+`.pdf`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	result, err := h.service.Verify(r.Context(), serial)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.render(w, r, "pages/certs/verify.html", map[string]any{"Serial": serial, "NotFound": true}, http.StatusNotFound)
			return
		}
		h.logger.Error("verify certificate", slog.String("serial", serial), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/certs/verify.html", map[string]any{"Serial": serial, "Result": result}, http.StatusOK)
}

type verifyResponse struct {
	Serial        string    `json:"serial"`
	Valid         bool      `json:"valid"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	Title         string    `json:"title"`
	RecipientName string    `json:"recipient_name"`
	InstitutionID string    `json:"institution_id"`
	TxHash        string    `json:"tx_hash,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
}

func (h *Handler) apiVerify(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Verify(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	cert := result.Certificate
	httpx.JSON(w, http.StatusOK, verifyResponse{
		Serial:        cert.Serial,
		Valid:         result.Valid,
		Status:        string(cert.Status),
		Reason:        result.Reason,
		Title:         cert.Title,
		RecipientName: cert.RecipientName,
		InstitutionID: cert.InstitutionID,
		TxHash:        cert.TxHash,
		IssuedAt:      cert.IssuedAt,
	})
}

func (h *Handler) showClaim(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.render(w, r, "pages/certs/claim.html", map[string]any{"Token": token, "Authenticated": h.actor(r) != ""}, http.StatusOK)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	actor := h.actor(r)
	if actor == "" {
		http.Redirect(w, r, access.LoginPath, http.StatusSeeOther)
		return
	}
	cert, err := h.service.Claim(r.Context(), actor, token)
	if err != nil {
		if errors.Is(err, ErrClaimUnavailable) {
			h.render(w, r, "pages/certs/claim.html", map[string]any{"Token": token, "Authenticated": true, "Unavailable": true}, http.StatusGone)
			return
		}
		h.logger.Error("claim certificate", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/candidate/certificates", "success", "Certificate "+cert.Serial+" claimed")
}

func (h *Handler) certsPath(r *http.Request) string {
	return "/" + access.RolePrefix(access.RoleFromContext(r.Context())) + "/certificates"
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

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	if h.csrf != nil {
		csrfToken, _ = h.csrf.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	role := access.RoleFromContext(r.Context())
	viewData := view.TemplateData{Title: "Certificates", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Role: role, Nav: view.NavFor(role), Data: data}
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
