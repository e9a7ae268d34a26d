package businessday

import (
	"errors"
	"time"
)

// ClosureStatus captures the lifecycle of a ledger entry. A closed day can be
// reopened for corrections and then re-closed; it never disappears from the
// ledger.
type ClosureStatus string

const (
	StatusClosed   ClosureStatus = "CLOSED"
	StatusReopened ClosureStatus = "REOPENED"
)

// DayState is the decision surface the gate and the poller consume. The
// business date lags the wall clock until the day is closed; Drifted is true
// whenever it lags.
type DayState struct {
	BusinessDate  time.Time `json:"business_date"`
	WallClockDate time.Time `json:"wall_clock_date"`
	Drifted       bool      `json:"drifted"`
}

// Settings is the singleton row driving the clock.
type Settings struct {
	BusinessDate        time.Time
	LastClosureDate     *time.Time
	DriftAlertEnabled   bool
	MaxReopenWindowDays int
	UpdatedAt           time.Time
}

// ClosureRecord is one ledger entry. Totals are the day's aggregates frozen
// at close time and refreshed by the correction path.
type ClosureRecord struct {
	ID             int64         `json:"id"`
	ClosedDate     time.Time     `json:"closed_date"`
	RolloverDate   time.Time     `json:"rollover_date"`
	ClosedBy       *int64        `json:"closed_by,omitempty"`
	ClosedByName   string        `json:"closed_by_name,omitempty"`
	ClosedAt       time.Time     `json:"closed_at"`
	SalesCount     int           `json:"sales_count"`
	TotalCash      float64       `json:"total_cash"`
	TotalMobile    float64       `json:"total_mobile"`
	TotalInsurance float64       `json:"total_insurance"`
	Status         ClosureStatus `json:"status"`
	ReopenedBy     *int64        `json:"reopened_by,omitempty"`
	ReopenedByName string        `json:"reopened_by_name,omitempty"`
	ReopenReason   string        `json:"reopen_reason,omitempty"`
	ReopenedAt     *time.Time    `json:"reopened_at,omitempty"`
	ReclosedAt     *time.Time    `json:"reclosed_at,omitempty"`
}

// DayTotals aggregates the sales of one business date per payment mode.
type DayTotals struct {
	Count     int
	Cash      float64
	Mobile    float64
	Insurance float64
}

// Sale is the dated record the correction path can move between days.
type Sale struct {
	ID           int64     `json:"id"`
	BusinessDate time.Time `json:"business_date"`
	PaymentMode  string    `json:"payment_mode"`
	Amount       float64   `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// InsertClosureInput freezes one day into the ledger.
type InsertClosureInput struct {
	ClosedDate   time.Time
	RolloverDate time.Time
	OperatorID   int64
	Totals       DayTotals
}

// CorrectionInput moves one sale to another business date.
type CorrectionInput struct {
	SaleID  int64
	NewDate time.Time
	Reason  string
}

// CorrectionEntry is one audit row written by the correction path.
type CorrectionEntry struct {
	ID          int64     `json:"id"`
	SourceTable string    `json:"source_table"`
	RecordID    int64     `json:"record_id"`
	DateBefore  time.Time `json:"date_before"`
	DateAfter   time.Time `json:"date_after"`
	ActorID     *int64    `json:"actor_id,omitempty"`
	Reason      string    `json:"reason"`
	CorrectedAt time.Time `json:"corrected_at"`
}

var (
	// ErrNoDrift rejects a close when the business date already matches the
	// wall clock.
	ErrNoDrift = errors.New("businessday: business date already current")
	// ErrClockSkew flags a business date ahead of the wall clock. This is a
	// data integrity fault and is never auto-corrected.
	ErrClockSkew = errors.New("businessday: business date ahead of wall clock")
	// ErrNotClosed rejects reopening a date with no closed ledger entry.
	ErrNotClosed = errors.New("businessday: date is not closed")
	// ErrAlreadyReopened rejects a second reopen of the same entry.
	ErrAlreadyReopened = errors.New("businessday: date already reopened")
	// ErrNotReopened rejects re-closing an entry that is not reopened.
	ErrNotReopened = errors.New("businessday: date is not reopened")
	// ErrReasonRequired rejects audited mutations without a reason.
	ErrReasonRequired = errors.New("businessday: reason is required")
	// ErrReopenWindow rejects reopening beyond the configured window.
	ErrReopenWindow = errors.New("businessday: reopen window exceeded")
	// ErrNotAuthorized rejects a mutation the principal cannot perform.
	ErrNotAuthorized = errors.New("businessday: operation not permitted")
	// ErrDateLocked rejects moving a record onto or off a closed date the
	// principal cannot modify.
	ErrDateLocked = errors.New("businessday: date is closed")
	// ErrRecordNotFound covers missing closures and sales.
	ErrRecordNotFound = errors.New("businessday: record not found")
)

// DateOnly truncates a timestamp to its civil date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same civil date.
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
