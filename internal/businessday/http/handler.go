package businessdayhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinea-his/clinea-his/internal/authz"
	"github.com/clinea-his/clinea-his/internal/businessday"
	"github.com/clinea-his/clinea-his/internal/platform/httpx"
	"github.com/clinea-his/clinea-his/internal/shared"
)

type dayService interface {
	State(ctx context.Context) (businessday.DayState, error)
	Close(ctx context.Context, p *shared.Principal) (businessday.ClosureRecord, error)
	Reopen(ctx context.Context, p *shared.Principal, date time.Time, reason string) (businessday.ClosureRecord, error)
	Reclose(ctx context.Context, p *shared.Principal, date time.Time) (businessday.ClosureRecord, error)
	History(ctx context.Context, limit int) ([]businessday.ClosureRecord, error)
	Corrections(ctx context.Context, limit int) ([]businessday.CorrectionEntry, error)
	CorrectRecordDate(ctx context.Context, p *shared.Principal, in businessday.CorrectionInput) (businessday.Sale, error)
}

// Handler exposes the business-day clock and closure ledger over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   dayService
	validator *validator.Validate
	guard     authz.Guard
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service dayService, guard authz.Guard) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), guard: guard}
}

// MountRoutes registers the day routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/state", h.getState)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ClotureView))
		r.Get("/history", h.getHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ClotureRun))
		r.Post("/close", h.postClose)
		r.Post("/reclose", h.postReclose)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ClotureReopen))
		r.Post("/reopen", h.postReopen)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ClotureCorrect))
		r.Get("/corrections", h.getCorrections)
		r.Post("/corrections", h.postCorrection)
	})
}

type stateView struct {
	BusinessDate  string `json:"business_date"`
	WallClockDate string `json:"wall_clock_date"`
	Drifted       bool   `json:"drifted"`
	Fault         string `json:"fault,omitempty"`
}

func viewOfState(state businessday.DayState, fault string) stateView {
	return stateView{
		BusinessDate:  state.BusinessDate.Format(time.DateOnly),
		WallClockDate: state.WallClockDate.Format(time.DateOnly),
		Drifted:       state.Drifted,
		Fault:         fault,
	}
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context())
	if errors.Is(err, businessday.ErrClockSkew) {
		httpx.JSON(w, http.StatusConflict, viewOfState(state, err.Error()))
		return
	}
	if err != nil {
		h.logger.Error("day state", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	httpx.JSON(w, http.StatusOK, viewOfState(state, ""))
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("closure history", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) postClose(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	record, err := h.service.Close(r.Context(), principal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

type reopenForm struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"required,min=3"`
}

func (h *Handler) postReopen(w http.ResponseWriter, r *http.Request) {
	var form reopenForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "date (YYYY-MM-DD) and reason are required")
		return
	}
	date, _ := time.Parse(time.DateOnly, form.Date)
	principal := shared.PrincipalFromContext(r.Context())
	record, err := h.service.Reopen(r.Context(), principal, date, form.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

type recloseForm struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) postReclose(w http.ResponseWriter, r *http.Request) {
	var form recloseForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "date (YYYY-MM-DD) is required")
		return
	}
	date, _ := time.Parse(time.DateOnly, form.Date)
	principal := shared.PrincipalFromContext(r.Context())
	record, err := h.service.Reclose(r.Context(), principal, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) getCorrections(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.Corrections(r.Context(), limit)
	if err != nil {
		h.logger.Error("correction log", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

type correctionForm struct {
	SaleID  int64  `json:"sale_id" validate:"required,gt=0"`
	NewDate string `json:"new_date" validate:"required,datetime=2006-01-02"`
	Reason  string `json:"reason" validate:"required,min=3"`
}

func (h *Handler) postCorrection(w http.ResponseWriter, r *http.Request) {
	var form correctionForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "sale_id, new_date (YYYY-MM-DD) and reason are required")
		return
	}
	newDate, _ := time.Parse(time.DateOnly, form.NewDate)
	principal := shared.PrincipalFromContext(r.Context())
	sale, err := h.service.CorrectRecordDate(r.Context(), principal, businessday.CorrectionInput{
		SaleID:  form.SaleID,
		NewDate: newDate,
		Reason:  form.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, businessday.ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, err.Error())
	case errors.Is(err, businessday.ErrNoDrift),
		errors.Is(err, businessday.ErrAlreadyReopened),
		errors.Is(err, businessday.ErrNotReopened),
		errors.Is(err, businessday.ErrNotClosed),
		errors.Is(err, businessday.ErrReopenWindow),
		errors.Is(err, businessday.ErrClockSkew):
		httpx.Problem(w, http.StatusConflict, err.Error())
	case errors.Is(err, businessday.ErrReasonRequired):
		httpx.Problem(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, businessday.ErrNotAuthorized), errors.Is(err, businessday.ErrDateLocked):
		httpx.Problem(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("businessday request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "")
	}
}
