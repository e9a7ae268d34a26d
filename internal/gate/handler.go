package gate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/clinea-his/clinea-his/internal/authz"
	"github.com/clinea-his/clinea-his/internal/businessday"
	"github.com/clinea-his/clinea-his/internal/platform/httpx"
	"github.com/clinea-his/clinea-his/internal/shared"
)

// StateProvider supplies the day state for gate decisions: the poller's last
// observation, with a direct scan as fallback before the first tick.
type StateProvider interface {
	Last() (businessday.DayState, bool)
	Scan(ctx context.Context) (businessday.DayState, error)
}

// Handler exposes the restriction banner and navigation checks.
type Handler struct {
	logger *slog.Logger
	gate   *Gate
	state  StateProvider
	scans  singleflight.Group
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, gate *Gate, state StateProvider) *Handler {
	return &Handler{logger: logger, gate: gate, state: state}
}

// MountRoutes registers gate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/restriction", h.getRestriction)
	r.Get("/navigate/{view}", h.getNavigate)
}

type restrictionView struct {
	BusinessDate  string `json:"business_date"`
	WallClockDate string `json:"wall_clock_date"`
	Drifted       bool   `json:"drifted"`
	Restricted    bool   `json:"restricted"`
}

func (h *Handler) dayState(ctx context.Context) (businessday.DayState, error) {
	if state, ok := h.state.Last(); ok {
		return state, nil
	}
	// Before the first poll tick concurrent requests would each scan the
	// database; collapse them into one.
	v, err, _ := h.scans.Do("scan", func() (any, error) {
		state, err := h.state.Scan(ctx)
		if err == businessday.ErrClockSkew {
			return state, nil
		}
		return state, err
	})
	state, _ := v.(businessday.DayState)
	return state, err
}

// getRestriction returns the banner payload clients poll: both dates, the
// drift flag, and whether this principal is confined.
func (h *Handler) getRestriction(w http.ResponseWriter, r *http.Request) {
	state, err := h.dayState(r.Context())
	if err != nil {
		h.logger.Error("restriction state", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, restrictionView{
		BusinessDate:  state.BusinessDate.Format(time.DateOnly),
		WallClockDate: state.WallClockDate.Format(time.DateOnly),
		Drifted:       state.Drifted,
		Restricted:    h.gate.IsRestricted(state, principal),
	})
}

// getNavigate answers whether the current principal can open one view.
func (h *Handler) getNavigate(w http.ResponseWriter, r *http.Request) {
	view := authz.Code(chi.URLParam(r, "view"))
	state, err := h.dayState(r.Context())
	if err != nil {
		h.logger.Error("navigate state", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]bool{
		"allowed": h.gate.CanNavigate(state, principal, view),
	})
}
