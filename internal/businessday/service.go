package businessday

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/clinea-his/clinea-his/internal/authz"
	"github.com/clinea-his/clinea-his/internal/shared"
)

const defaultHistoryLimit = 30

// Service orchestrates the business-day clock and the closure ledger.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	now      func() time.Time
	onClosed func(ClosureRecord)
}

// NewService constructs a Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OnClosed registers a hook fired after each successful close, outside the
// transaction.
func (s *Service) OnClosed(fn func(ClosureRecord)) {
	s.onClosed = fn
}

// State reads the singleton fresh and compares it to the wall clock. A
// business date ahead of the wall clock is a data integrity fault: the state
// is still returned so callers can display it, alongside ErrClockSkew.
func (s *Service) State(ctx context.Context) (DayState, error) {
	today := DateOnly(s.now())
	settings, err := s.repo.EnsureSettings(ctx, today)
	if err != nil {
		return DayState{}, err
	}
	state := DayState{
		BusinessDate:  DateOnly(settings.BusinessDate),
		WallClockDate: today,
		Drifted:       DateOnly(settings.BusinessDate).Before(today),
	}
	if DateOnly(settings.BusinessDate).After(today) {
		return state, ErrClockSkew
	}
	return state, nil
}

// Close freezes the current business date into the ledger and advances the
// clock straight to the wall-clock date, inside a single transaction. The
// ledger insert is an upsert on the unique closed date: when another operator
// already closed the day the insert is a no-op, the clock is still advanced
// if needed, and the existing entry is returned. Requires drift, except that
// re-running the close for a drift already resolved today is a no-op success.
func (s *Service) Close(ctx context.Context, p *shared.Principal) (ClosureRecord, error) {
	state, err := s.State(ctx)
	if err != nil {
		return ClosureRecord{}, err
	}
	if !state.Drifted {
		if record, ok, err := s.resolvedClosure(ctx, state); err != nil {
			return ClosureRecord{}, err
		} else if ok {
			s.logger.Info("business day already closed", slog.Time("closed_date", record.ClosedDate))
			return record, nil
		}
		return ClosureRecord{}, ErrNoDrift
	}

	closedDate := state.BusinessDate
	rollover := state.WallClockDate
	var inserted bool

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		settings, err := tx.GetSettingsForUpdate(ctx)
		if err != nil {
			return err
		}
		// Someone advanced the clock between the read and the lock.
		if !SameDate(settings.BusinessDate, closedDate) {
			return nil
		}
		totals, err := tx.DayTotals(ctx, closedDate)
		if err != nil {
			return err
		}
		inserted, err = tx.InsertClosure(ctx, InsertClosureInput{
			ClosedDate:   closedDate,
			RolloverDate: rollover,
			OperatorID:   p.UserID,
			Totals:       totals,
		})
		if err != nil {
			return err
		}
		// The clock only moves once the ledger write is confirmed.
		return tx.AdvanceBusinessDate(ctx, rollover, closedDate)
	})
	if err != nil {
		return ClosureRecord{}, err
	}

	record, err := s.repo.GetClosure(ctx, closedDate)
	if err != nil {
		return ClosureRecord{}, err
	}
	if inserted {
		s.logger.Info("business day closed",
			slog.Time("closed_date", record.ClosedDate),
			slog.Int64("operator_id", p.UserID),
			slog.Int("sales_count", record.SalesCount),
		)
		if s.onClosed != nil {
			s.onClosed(record)
		}
	} else {
		s.logger.Info("business day already closed", slog.Time("closed_date", closedDate))
	}
	return record, nil
}

// resolvedClosure reports whether the last ledger entry is the one that
// rolled the clock forward to the current wall-clock date, meaning the drift
// the caller wants to close was already resolved.
func (s *Service) resolvedClosure(ctx context.Context, state DayState) (ClosureRecord, bool, error) {
	settings, err := s.repo.EnsureSettings(ctx, state.WallClockDate)
	if err != nil {
		return ClosureRecord{}, false, err
	}
	if settings.LastClosureDate == nil {
		return ClosureRecord{}, false, nil
	}
	record, err := s.repo.GetClosure(ctx, *settings.LastClosureDate)
	if err == ErrRecordNotFound {
		return ClosureRecord{}, false, nil
	}
	if err != nil {
		return ClosureRecord{}, false, err
	}
	if !SameDate(record.RolloverDate, state.WallClockDate) {
		return ClosureRecord{}, false, nil
	}
	return record, true, nil
}

// Reopen unlocks a closed date for corrections. The reason is mandatory, the
// entry must be closed and not already reopened, and non-administrators are
// held to the configured reopen window. The live business date never rolls
// back.
func (s *Service) Reopen(ctx context.Context, p *shared.Principal, date time.Time, reason string) (ClosureRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return ClosureRecord{}, ErrReasonRequired
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := tx.GetClosureForUpdate(ctx, date)
		if err == ErrRecordNotFound {
			return ErrNotClosed
		}
		if err != nil {
			return err
		}
		if record.Status == StatusReopened {
			return ErrAlreadyReopened
		}
		if !p.IsAdmin() {
			settings, err := tx.GetSettingsForUpdate(ctx)
			if err != nil {
				return err
			}
			age := int(DateOnly(s.now()).Sub(DateOnly(record.ClosedDate)).Hours() / 24)
			if age > settings.MaxReopenWindowDays {
				return ErrReopenWindow
			}
		}
		return tx.MarkReopened(ctx, date, p.UserID, strings.TrimSpace(reason))
	})
	if err != nil {
		return ClosureRecord{}, err
	}
	s.logger.Info("business day reopened",
		slog.Time("closed_date", DateOnly(date)),
		slog.Int64("operator_id", p.UserID),
	)
	return s.repo.GetClosure(ctx, date)
}

// Reclose seals a reopened date again, stamping the re-closure timestamp and
// refreshing the frozen totals.
func (s *Service) Reclose(ctx context.Context, p *shared.Principal, date time.Time) (ClosureRecord, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := tx.GetClosureForUpdate(ctx, date)
		if err != nil {
			return err
		}
		if record.Status != StatusReopened {
			return ErrNotReopened
		}
		if err := tx.RefreshClosureTotals(ctx, date); err != nil {
			return err
		}
		return tx.MarkReclosed(ctx, date)
	})
	if err != nil {
		return ClosureRecord{}, err
	}
	s.logger.Info("business day re-closed",
		slog.Time("closed_date", DateOnly(date)),
		slog.Int64("operator_id", p.UserID),
	)
	return s.repo.GetClosure(ctx, date)
}

// History lists the most recent ledger entries with operator names.
func (s *Service) History(ctx context.Context, limit int) ([]ClosureRecord, error) {
	if limit <= 0 || limit > 365 {
		limit = defaultHistoryLimit
	}
	return s.repo.ListClosures(ctx, limit)
}

// Corrections lists the most recent correction-log rows.
func (s *Service) Corrections(ctx context.Context, limit int) ([]CorrectionEntry, error) {
	if limit <= 0 || limit > 365 {
		limit = defaultHistoryLimit
	}
	return s.repo.ListCorrections(ctx, limit)
}

// CanModifyDate decides whether the principal may write records dated on the
// given day. Administrators always can; the live business date always can; a
// closed date needs the reopen capability.
func (s *Service) CanModifyDate(ctx context.Context, p *shared.Principal, date time.Time) (bool, error) {
	if p == nil {
		return false, nil
	}
	if p.IsAdmin() {
		return true, nil
	}
	state, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	if SameDate(date, state.BusinessDate) {
		return true, nil
	}
	_, err = s.repo.GetClosure(ctx, date)
	if err == ErrRecordNotFound {
		// Never closed and not the live date: an open future or skipped day.
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return p.HasGrant(string(authz.ClotureReopen)), nil
}

// CorrectRecordDate moves one sale to another business date, writes the
// audit row, and refreshes the frozen totals of both days in one
// transaction. Requires the correction capability and both dates modifiable
// by the principal.
func (s *Service) CorrectRecordDate(ctx context.Context, p *shared.Principal, in CorrectionInput) (Sale, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return Sale{}, ErrReasonRequired
	}
	if p == nil || (!p.IsAdmin() && !p.HasGrant(string(authz.ClotureCorrect))) {
		return Sale{}, ErrNotAuthorized
	}

	sale, err := s.repo.GetSale(ctx, in.SaleID)
	if err != nil {
		return Sale{}, err
	}
	if SameDate(sale.BusinessDate, in.NewDate) {
		return sale, nil
	}

	for _, date := range []time.Time{sale.BusinessDate, in.NewDate} {
		ok, err := s.CanModifyDate(ctx, p, date)
		if err != nil {
			return Sale{}, err
		}
		if !ok {
			return Sale{}, ErrDateLocked
		}
	}

	actorID := p.UserID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.MoveSaleDate(ctx, sale.ID, in.NewDate); err != nil {
			return err
		}
		if err := tx.InsertCorrection(ctx, CorrectionEntry{
			SourceTable: "sales",
			RecordID:    sale.ID,
			DateBefore:  sale.BusinessDate,
			DateAfter:   in.NewDate,
			ActorID:     &actorID,
			Reason:      strings.TrimSpace(in.Reason),
		}); err != nil {
			return err
		}
		if err := tx.RefreshClosureTotals(ctx, sale.BusinessDate); err != nil {
			return err
		}
		return tx.RefreshClosureTotals(ctx, in.NewDate)
	})
	if err != nil {
		return Sale{}, err
	}
	s.logger.Info("record date corrected",
		slog.Int64("sale_id", sale.ID),
		slog.Time("date_before", DateOnly(sale.BusinessDate)),
		slog.Time("date_after", DateOnly(in.NewDate)),
		slog.Int64("actor_id", actorID),
	)
	return s.repo.GetSale(ctx, sale.ID)
}
