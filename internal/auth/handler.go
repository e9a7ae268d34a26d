package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinea-his/clinea-his/internal/platform/httpx"
	"github.com/clinea-his/clinea-his/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/refresh", h.handleRefresh)
	r.Get("/me", h.handleMe)
}

// handleCSRF issues the session token clients must echo in X-CSRF-Token on
// every mutating request.
func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

type loginForm struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

type principalView struct {
	UserID    int64                         `json:"user_id"`
	Username  string                        `json:"username"`
	FullName  string                        `json:"full_name"`
	RoleID    int64                         `json:"role_id"`
	RoleName  string                        `json:"role_name"`
	IsAdmin   bool                          `json:"is_admin"`
	CanEdit   bool                          `json:"can_edit"`
	CanDelete bool                          `json:"can_delete"`
	CanPrint  bool                          `json:"can_print"`
	Grants    map[string]shared.GrantRights `json:"grants"`
}

func viewOf(p *shared.Principal) principalView {
	return principalView{
		UserID:    p.UserID,
		Username:  p.Username,
		FullName:  p.FullName,
		RoleID:    p.RoleID,
		RoleName:  p.RoleName,
		IsAdmin:   p.IsAdmin(),
		CanEdit:   p.CanEdit,
		CanDelete: p.CanDelete,
		CanPrint:  p.CanPrint,
		Grants:    p.Grants,
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "username and password are required")
		return
	}

	principal, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	sess.SetUser(strconv.FormatInt(principal.UserID, 10))
	sess.SetPrincipal(principal)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, principal.UserID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	h.logger.Info("user logged in",
		slog.Int64("user_id", principal.UserID),
		slog.String("role", principal.RoleName),
	)
	httpx.JSON(w, http.StatusOK, viewOf(principal))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.ID != "" {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh rebuilds the cached principal so grant or switch changes take
// effect without a new login.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	fresh, err := h.service.Refresh(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "account disabled")
			return
		}
		h.logger.Error("refresh principal", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetPrincipal(fresh)
	}
	httpx.JSON(w, http.StatusOK, viewOf(fresh))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(principal))
}
