package businessday

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines business-day data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	EnsureSettings(ctx context.Context, today time.Time) (Settings, error)
	GetClosure(ctx context.Context, date time.Time) (ClosureRecord, error)
	ListClosures(ctx context.Context, limit int) ([]ClosureRecord, error)
	ListCorrections(ctx context.Context, limit int) ([]CorrectionEntry, error)
	GetSale(ctx context.Context, id int64) (Sale, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	GetSettingsForUpdate(ctx context.Context) (Settings, error)
	AdvanceBusinessDate(ctx context.Context, newDate, closedDate time.Time) error
	InsertClosure(ctx context.Context, in InsertClosureInput) (bool, error)
	GetClosureForUpdate(ctx context.Context, date time.Time) (ClosureRecord, error)
	MarkReopened(ctx context.Context, date time.Time, operatorID int64, reason string) error
	MarkReclosed(ctx context.Context, date time.Time) error
	DayTotals(ctx context.Context, date time.Time) (DayTotals, error)
	RefreshClosureTotals(ctx context.Context, date time.Time) error
	MoveSaleDate(ctx context.Context, saleID int64, newDate time.Time) error
	InsertCorrection(ctx context.Context, entry CorrectionEntry) error
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

type pgTxRepository struct {
	tx pgx.Tx
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTxRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const settingsColumns = `business_date, last_closure_date, drift_alert_enabled, max_reopen_window_days, updated_at`

func scanSettings(row pgx.Row) (Settings, error) {
	var s Settings
	err := row.Scan(&s.BusinessDate, &s.LastClosureDate, &s.DriftAlertEnabled, &s.MaxReopenWindowDays, &s.UpdatedAt)
	return s, err
}

// EnsureSettings returns the singleton row, creating it on first run with
// today as the business date.
func (r *pgRepository) EnsureSettings(ctx context.Context, today time.Time) (Settings, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO app_settings (id, business_date)
		VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING`, DateOnly(today))
	if err != nil {
		return Settings{}, err
	}
	return scanSettings(r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM app_settings WHERE id = 1`))
}

const closureColumns = `
	c.id, c.closed_date, c.rollover_date, c.closed_by, COALESCE(cu.full_name, ''), c.closed_at,
	c.sales_count, c.total_cash, c.total_mobile, c.total_insurance, c.status,
	c.reopened_by, COALESCE(ru.full_name, ''), COALESCE(c.reopen_reason, ''), c.reopened_at, c.reclosed_at`

const closureJoins = `
	FROM closures c
	LEFT JOIN users cu ON cu.id = c.closed_by
	LEFT JOIN users ru ON ru.id = c.reopened_by`

func scanClosure(row pgx.Row) (ClosureRecord, error) {
	var rec ClosureRecord
	err := row.Scan(
		&rec.ID, &rec.ClosedDate, &rec.RolloverDate, &rec.ClosedBy, &rec.ClosedByName, &rec.ClosedAt,
		&rec.SalesCount, &rec.TotalCash, &rec.TotalMobile, &rec.TotalInsurance, &rec.Status,
		&rec.ReopenedBy, &rec.ReopenedByName, &rec.ReopenReason, &rec.ReopenedAt, &rec.ReclosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClosureRecord{}, ErrRecordNotFound
	}
	return rec, err
}

// GetClosure fetches the ledger entry for one date.
func (r *pgRepository) GetClosure(ctx context.Context, date time.Time) (ClosureRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+closureColumns+closureJoins+` WHERE c.closed_date = $1`, DateOnly(date))
	return scanClosure(row)
}

// ListClosures returns the most recent ledger entries with operator names.
func (r *pgRepository) ListClosures(ctx context.Context, limit int) ([]ClosureRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+closureColumns+closureJoins+` ORDER BY c.closed_date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClosureRecord
	for rows.Next() {
		rec, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListCorrections returns the most recent correction-log rows.
func (r *pgRepository) ListCorrections(ctx context.Context, limit int) ([]CorrectionEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_table, record_id, date_before, date_after, actor_id, reason, corrected_at
		FROM correction_log
		ORDER BY corrected_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CorrectionEntry
	for rows.Next() {
		var e CorrectionEntry
		if err := rows.Scan(&e.ID, &e.SourceTable, &e.RecordID, &e.DateBefore, &e.DateAfter, &e.ActorID, &e.Reason, &e.CorrectedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetSale fetches one dated record by id.
func (r *pgRepository) GetSale(ctx context.Context, id int64) (Sale, error) {
	var s Sale
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_date, payment_mode, amount, created_at
		FROM sales WHERE id = $1`, id,
	).Scan(&s.ID, &s.BusinessDate, &s.PaymentMode, &s.Amount, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrRecordNotFound
	}
	return s, err
}

// GetSettingsForUpdate locks the singleton row for the closure transaction.
func (t *pgTxRepository) GetSettingsForUpdate(ctx context.Context) (Settings, error) {
	return scanSettings(t.tx.QueryRow(ctx, `SELECT `+settingsColumns+` FROM app_settings WHERE id = 1 FOR UPDATE`))
}

// AdvanceBusinessDate moves the clock forward and records the last closure.
func (t *pgTxRepository) AdvanceBusinessDate(ctx context.Context, newDate, closedDate time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE app_settings
		SET business_date = $1, last_closure_date = $2, updated_at = NOW()
		WHERE id = 1`, DateOnly(newDate), DateOnly(closedDate))
	return err
}

// InsertClosure appends one ledger entry. The unique closed_date makes the
// insert idempotent: a concurrent close of the same date reports false.
func (t *pgTxRepository) InsertClosure(ctx context.Context, in InsertClosureInput) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO closures (closed_date, rollover_date, closed_by, sales_count, total_cash, total_mobile, total_insurance, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (closed_date) DO NOTHING`,
		DateOnly(in.ClosedDate), DateOnly(in.RolloverDate), in.OperatorID,
		in.Totals.Count, in.Totals.Cash, in.Totals.Mobile, in.Totals.Insurance,
		StatusClosed,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetClosureForUpdate locks one ledger entry.
func (t *pgTxRepository) GetClosureForUpdate(ctx context.Context, date time.Time) (ClosureRecord, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, closed_date, rollover_date, closed_by, closed_at,
		       sales_count, total_cash, total_mobile, total_insurance, status,
		       reopened_by, COALESCE(reopen_reason, ''), reopened_at, reclosed_at
		FROM closures WHERE closed_date = $1 FOR UPDATE`, DateOnly(date))
	var rec ClosureRecord
	err := row.Scan(
		&rec.ID, &rec.ClosedDate, &rec.RolloverDate, &rec.ClosedBy, &rec.ClosedAt,
		&rec.SalesCount, &rec.TotalCash, &rec.TotalMobile, &rec.TotalInsurance, &rec.Status,
		&rec.ReopenedBy, &rec.ReopenReason, &rec.ReopenedAt, &rec.ReclosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClosureRecord{}, ErrRecordNotFound
	}
	return rec, err
}

// MarkReopened stamps the reopen audit fields.
func (t *pgTxRepository) MarkReopened(ctx context.Context, date time.Time, operatorID int64, reason string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE closures
		SET status = $2, reopened_by = $3, reopen_reason = $4, reopened_at = NOW(), reclosed_at = NULL
		WHERE closed_date = $1`,
		DateOnly(date), StatusReopened, operatorID, reason)
	return err
}

// MarkReclosed stamps the re-closure timestamp.
func (t *pgTxRepository) MarkReclosed(ctx context.Context, date time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE closures
		SET status = $2, reclosed_at = NOW()
		WHERE closed_date = $1`,
		DateOnly(date), StatusClosed)
	return err
}

// DayTotals aggregates the sales of one business date.
func (t *pgTxRepository) DayTotals(ctx context.Context, date time.Time) (DayTotals, error) {
	var totals DayTotals
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(amount) FILTER (WHERE payment_mode = 'CASH'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE payment_mode = 'MOBILE'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE payment_mode = 'INSURANCE'), 0)
		FROM sales WHERE business_date = $1`, DateOnly(date),
	).Scan(&totals.Count, &totals.Cash, &totals.Mobile, &totals.Insurance)
	return totals, err
}

// RefreshClosureTotals recomputes the frozen aggregates of an existing ledger
// entry. Dates without an entry are left alone.
func (t *pgTxRepository) RefreshClosureTotals(ctx context.Context, date time.Time) error {
	totals, err := t.DayTotals(ctx, date)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE closures
		SET sales_count = $2, total_cash = $3, total_mobile = $4, total_insurance = $5
		WHERE closed_date = $1`,
		DateOnly(date), totals.Count, totals.Cash, totals.Mobile, totals.Insurance)
	return err
}

// MoveSaleDate rewrites the business date of one sale.
func (t *pgTxRepository) MoveSaleDate(ctx context.Context, saleID int64, newDate time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales SET business_date = $2 WHERE id = $1`, saleID, DateOnly(newDate))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// InsertCorrection appends one audit row.
func (t *pgTxRepository) InsertCorrection(ctx context.Context, entry CorrectionEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO correction_log (source_table, record_id, date_before, date_after, actor_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.SourceTable, entry.RecordID, DateOnly(entry.DateBefore), DateOnly(entry.DateAfter), entry.ActorID, entry.Reason)
	return err
}
