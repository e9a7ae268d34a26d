package authz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinea-his/clinea-his/internal/platform/httpx"
	"github.com/clinea-his/clinea-his/internal/shared"
)

// Guard protects routes behind a capability check; implemented by the
// access gate middleware.
type Guard interface {
	Require(code Code) func(http.Handler) http.Handler
}

// Handler exposes the capability catalog and role grant management.
type Handler struct {
	logger    *slog.Logger
	repo      *Repository
	engine    *Engine
	validator *validator.Validate
	guard     Guard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository, engine *Engine, guard Guard) *Handler {
	return &Handler{
		logger:    logger,
		repo:      repo,
		engine:    engine,
		validator: validator.New(),
		guard:     guard,
	}
}

// MountRoutes registers capability and grant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/capabilities", h.listCapabilities)
	r.Get("/check/{code}", h.checkCapability)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(ParamRoles))
		r.Get("/roles/{roleID}/grants", h.listGrants)
		r.Put("/roles/{roleID}/grants", h.replaceGrants)
		r.Patch("/roles/{roleID}/grants/{code}", h.toggleGrant)
	})
}

func (h *Handler) listCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := h.repo.ListCapabilities(r.Context())
	if err != nil {
		h.logger.Error("list capabilities", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	type capView struct {
		Code     string `json:"code"`
		Label    string `json:"label"`
		Category string `json:"category"`
		Icon     string `json:"icon,omitempty"`
		Order    int    `json:"order"`
	}
	out := make([]capView, 0, len(caps))
	for _, c := range caps {
		if !c.IsActive {
			continue
		}
		out = append(out, capView{
			Code:     string(c.Code),
			Label:    c.Label,
			Category: string(c.Category),
			Icon:     c.Icon,
			Order:    c.SortOrder,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// checkCapability returns the caller's effective rights over one code so
// clients can hide or disable controls. Unknown codes deny, they are not an
// error.
func (h *Handler) checkCapability(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	code := Code(chi.URLParam(r, "code"))
	rights := h.engine.CheckGranular(principal, code)
	httpx.JSON(w, http.StatusOK, rights)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid role id")
		return
	}
	grants, err := h.repo.GrantsForRole(r.Context(), roleID)
	if err != nil {
		h.logger.Error("list grants", slog.Int64("role_id", roleID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}

type grantForm struct {
	Code      string `json:"code" validate:"required"`
	CanCreate bool   `json:"can_create"`
	CanUpdate bool   `json:"can_update"`
	CanDelete bool   `json:"can_delete"`
}

func (h *Handler) replaceGrants(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid role id")
		return
	}
	var forms []grantForm
	if err := json.NewDecoder(r.Body).Decode(&forms); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload")
		return
	}
	grants := make([]Grant, 0, len(forms))
	for _, f := range forms {
		if err := h.validator.Struct(f); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "grant code required")
			return
		}
		grants = append(grants, Grant{
			RoleID:         roleID,
			CapabilityCode: Code(f.Code),
			CanCreate:      f.CanCreate,
			CanUpdate:      f.CanUpdate,
			CanDelete:      f.CanDelete,
		})
	}
	if err := h.repo.ReplaceGrants(r.Context(), roleID, grants); err != nil {
		if err == ErrUnknownCapability {
			httpx.Problem(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("replace grants", slog.Int64("role_id", roleID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toggleForm struct {
	Verb    string `json:"verb" validate:"required,oneof=create update delete"`
	Allowed bool   `json:"allowed"`
}

func (h *Handler) toggleGrant(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid role id")
		return
	}
	var form toggleForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "verb must be create, update or delete")
		return
	}
	code := Code(chi.URLParam(r, "code"))
	if err := h.repo.SetGrantVerb(r.Context(), roleID, code, Verb(form.Verb), form.Allowed); err != nil {
		switch err {
		case ErrUnknownCapability, ErrInvalidVerb:
			httpx.Problem(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("toggle grant", slog.Int64("role_id", roleID), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
