package businessday

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinea-his/clinea-his/internal/shared"
)

type memoryRepo struct {
	settings    Settings
	initialised bool
	closures    map[string]*ClosureRecord
	corrections []CorrectionEntry
	sales       map[int64]*Sale
	nextID      int64
}

type memoryTx struct {
	repo *memoryRepo
}

var (
	_ Repository   = (*memoryRepo)(nil)
	_ TxRepository = (*memoryTx)(nil)
)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		closures: make(map[string]*ClosureRecord),
		sales:    make(map[int64]*Sale),
	}
}

func dateKey(t time.Time) string { return DateOnly(t).Format(time.DateOnly) }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) EnsureSettings(ctx context.Context, today time.Time) (Settings, error) {
	if !r.initialised {
		r.settings = Settings{
			BusinessDate:        DateOnly(today),
			DriftAlertEnabled:   true,
			MaxReopenWindowDays: 7,
		}
		r.initialised = true
	}
	return r.settings, nil
}

func (r *memoryRepo) GetClosure(ctx context.Context, date time.Time) (ClosureRecord, error) {
	rec, ok := r.closures[dateKey(date)]
	if !ok {
		return ClosureRecord{}, ErrRecordNotFound
	}
	return *rec, nil
}

func (r *memoryRepo) ListClosures(ctx context.Context, limit int) ([]ClosureRecord, error) {
	out := make([]ClosureRecord, 0, len(r.closures))
	for _, rec := range r.closures {
		out = append(out, *rec)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) ListCorrections(ctx context.Context, limit int) ([]CorrectionEntry, error) {
	out := append([]CorrectionEntry(nil), r.corrections...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) GetSale(ctx context.Context, id int64) (Sale, error) {
	sale, ok := r.sales[id]
	if !ok {
		return Sale{}, ErrRecordNotFound
	}
	return *sale, nil
}

func (t *memoryTx) GetSettingsForUpdate(ctx context.Context) (Settings, error) {
	return t.repo.settings, nil
}

func (t *memoryTx) AdvanceBusinessDate(ctx context.Context, newDate, closedDate time.Time) error {
	closed := DateOnly(closedDate)
	t.repo.settings.BusinessDate = DateOnly(newDate)
	t.repo.settings.LastClosureDate = &closed
	return nil
}

func (t *memoryTx) InsertClosure(ctx context.Context, in InsertClosureInput) (bool, error) {
	key := dateKey(in.ClosedDate)
	if _, ok := t.repo.closures[key]; ok {
		return false, nil
	}
	t.repo.nextID++
	op := in.OperatorID
	t.repo.closures[key] = &ClosureRecord{
		ID:             t.repo.nextID,
		ClosedDate:     DateOnly(in.ClosedDate),
		RolloverDate:   DateOnly(in.RolloverDate),
		ClosedBy:       &op,
		ClosedAt:       time.Now(),
		SalesCount:     in.Totals.Count,
		TotalCash:      in.Totals.Cash,
		TotalMobile:    in.Totals.Mobile,
		TotalInsurance: in.Totals.Insurance,
		Status:         StatusClosed,
	}
	return true, nil
}

func (t *memoryTx) GetClosureForUpdate(ctx context.Context, date time.Time) (ClosureRecord, error) {
	return t.repo.GetClosure(ctx, date)
}

func (t *memoryTx) MarkReopened(ctx context.Context, date time.Time, operatorID int64, reason string) error {
	rec, ok := t.repo.closures[dateKey(date)]
	if !ok {
		return ErrRecordNotFound
	}
	now := time.Now()
	rec.Status = StatusReopened
	rec.ReopenedBy = &operatorID
	rec.ReopenReason = reason
	rec.ReopenedAt = &now
	rec.ReclosedAt = nil
	return nil
}

func (t *memoryTx) MarkReclosed(ctx context.Context, date time.Time) error {
	rec, ok := t.repo.closures[dateKey(date)]
	if !ok {
		return ErrRecordNotFound
	}
	now := time.Now()
	rec.Status = StatusClosed
	rec.ReclosedAt = &now
	return nil
}

func (t *memoryTx) DayTotals(ctx context.Context, date time.Time) (DayTotals, error) {
	var totals DayTotals
	for _, sale := range t.repo.sales {
		if !SameDate(sale.BusinessDate, date) {
			continue
		}
		totals.Count++
		switch sale.PaymentMode {
		case "CASH":
			totals.Cash += sale.Amount
		case "MOBILE":
			totals.Mobile += sale.Amount
		case "INSURANCE":
			totals.Insurance += sale.Amount
		}
	}
	return totals, nil
}

func (t *memoryTx) RefreshClosureTotals(ctx context.Context, date time.Time) error {
	rec, ok := t.repo.closures[dateKey(date)]
	if !ok {
		return nil
	}
	totals, _ := t.DayTotals(ctx, date)
	rec.SalesCount = totals.Count
	rec.TotalCash = totals.Cash
	rec.TotalMobile = totals.Mobile
	rec.TotalInsurance = totals.Insurance
	return nil
}

func (t *memoryTx) MoveSaleDate(ctx context.Context, saleID int64, newDate time.Time) error {
	sale, ok := t.repo.sales[saleID]
	if !ok {
		return ErrRecordNotFound
	}
	sale.BusinessDate = DateOnly(newDate)
	return nil
}

func (t *memoryTx) InsertCorrection(ctx context.Context, entry CorrectionEntry) error {
	t.repo.nextID++
	entry.ID = t.repo.nextID
	entry.CorrectedAt = time.Now()
	t.repo.corrections = append(t.repo.corrections, entry)
	return nil
}

func (r *memoryRepo) addSale(id int64, date time.Time, mode string, amount float64) {
	r.sales[id] = &Sale{ID: id, BusinessDate: DateOnly(date), PaymentMode: mode, Amount: amount, CreatedAt: time.Now()}
}

var (
	day1 = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
)

func testService(repo *memoryRepo, now time.Time) *Service {
	svc := NewService(repo, slog.New(slog.DiscardHandler))
	svc.WithNow(func() time.Time { return now })
	return svc
}

func adminPrincipal() *shared.Principal {
	return &shared.Principal{UserID: 1, RoleName: shared.AdminRoleName}
}

func cashierPrincipal(grants ...string) *shared.Principal {
	g := make(map[string]shared.GrantRights, len(grants))
	for _, code := range grants {
		g[code] = shared.GrantRights{CanCreate: true, CanUpdate: true}
	}
	return &shared.Principal{UserID: 2, RoleName: "Caissier", CanEdit: true, Grants: g}
}

func TestStateFirstRunInitialises(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1.Add(9*time.Hour))

	state, err := svc.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, day1, state.BusinessDate)
	require.Equal(t, day1, state.WallClockDate)
	require.False(t, state.Drifted)
}

func TestStateDetectsDrift(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	_, err := svc.State(context.Background())
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return day3 })
	state, err := svc.State(context.Background())
	require.NoError(t, err)
	require.True(t, state.Drifted)
	require.Equal(t, day1, state.BusinessDate)
	require.Equal(t, day3, state.WallClockDate)
}

func TestStateClockSkewIsAFault(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day3)
	_, err := svc.State(context.Background())
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return day1 })
	state, err := svc.State(context.Background())
	require.ErrorIs(t, err, ErrClockSkew)
	// The stale state is still reported, never auto-corrected.
	require.Equal(t, day3, state.BusinessDate)
	require.Equal(t, day3, repo.settings.BusinessDate)
}

func TestCloseRequiresDrift(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	_, err := svc.Close(context.Background(), adminPrincipal())
	require.ErrorIs(t, err, ErrNoDrift)
}

func TestCloseAdvancesClockAndFreezesTotals(t *testing.T) {
	repo := newMemoryRepo()
	repo.addSale(1, day1, "CASH", 5000)
	repo.addSale(2, day1, "MOBILE", 2500)
	repo.addSale(3, day2, "CASH", 9999)

	svc := testService(repo, day1)
	_, err := svc.State(context.Background())
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return day2 })

	var hooked []ClosureRecord
	svc.OnClosed(func(rec ClosureRecord) { hooked = append(hooked, rec) })

	record, err := svc.Close(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.Equal(t, day1, record.ClosedDate)
	require.Equal(t, day2, record.RolloverDate)
	require.Equal(t, 2, record.SalesCount)
	require.Equal(t, 5000.0, record.TotalCash)
	require.Equal(t, 2500.0, record.TotalMobile)
	require.Equal(t, day2, repo.settings.BusinessDate)
	require.NotNil(t, repo.settings.LastClosureDate)
	require.Equal(t, day1, *repo.settings.LastClosureDate)
	require.Len(t, hooked, 1)

	state, err := svc.State(context.Background())
	require.NoError(t, err)
	require.False(t, state.Drifted)
}

func TestCloseMultiDayDriftRollsToWallClock(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	_, err := svc.State(context.Background())
	require.NoError(t, err)

	// The clinic stayed shut over a weekend: the wall clock is two days
	// ahead when the close finally runs.
	svc.WithNow(func() time.Time { return day3 })

	record, err := svc.Close(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.Equal(t, day1, record.ClosedDate)
	require.Equal(t, day3, record.RolloverDate)
	require.Equal(t, day3, repo.settings.BusinessDate)

	state, err := svc.State(context.Background())
	require.NoError(t, err)
	require.False(t, state.Drifted)
}

func TestCloseAgainAfterDriftResolvedIsANoOp(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	_, err := svc.State(context.Background())
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return day2 })
	first, err := svc.Close(context.Background(), adminPrincipal())
	require.NoError(t, err)

	// A second operator submits the same close after the first resolved
	// the drift: success, same ledger entry, no second hook firing.
	var hooked int
	svc.OnClosed(func(ClosureRecord) { hooked++ })

	second, err := svc.Close(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 0, hooked)
	require.Len(t, repo.closures, 1)
	require.Equal(t, day2, repo.settings.BusinessDate)
}

func TestCloseIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	_, err := svc.State(context.Background())
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return day2 })

	first, err := svc.Close(context.Background(), adminPrincipal())
	require.NoError(t, err)

	// Roll the clock back as if a second operator raced the first close.
	repo.settings.BusinessDate = day1
	var hooked int
	svc.OnClosed(func(ClosureRecord) { hooked++ })

	second, err := svc.Close(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 0, hooked)
	require.Equal(t, day2, repo.settings.BusinessDate)
}

func closeDay(t *testing.T, svc *Service, repo *memoryRepo, wallClock time.Time) ClosureRecord {
	t.Helper()
	svc.WithNow(func() time.Time { return wallClock })
	record, err := svc.Close(context.Background(), adminPrincipal())
	require.NoError(t, err)
	return record
}

func TestReopenRules(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	ctx := context.Background()
	_, err := svc.State(ctx)
	require.NoError(t, err)
	closeDay(t, svc, repo, day2)

	_, err = svc.Reopen(ctx, cashierPrincipal(), day1, "   ")
	require.ErrorIs(t, err, ErrReasonRequired)

	_, err = svc.Reopen(ctx, cashierPrincipal(), day3, "saisie oubliee")
	require.ErrorIs(t, err, ErrNotClosed)

	record, err := svc.Reopen(ctx, cashierPrincipal(), day1, "saisie oubliee")
	require.NoError(t, err)
	require.Equal(t, StatusReopened, record.Status)
	require.Equal(t, "saisie oubliee", record.ReopenReason)
	require.NotNil(t, record.ReopenedAt)
	// The live business date never rolls back.
	require.Equal(t, day2, repo.settings.BusinessDate)

	_, err = svc.Reopen(ctx, cashierPrincipal(), day1, "encore")
	require.ErrorIs(t, err, ErrAlreadyReopened)
}

func TestReopenWindowEnforcedForNonAdmins(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	ctx := context.Background()
	_, err := svc.State(ctx)
	require.NoError(t, err)
	closeDay(t, svc, repo, day2)

	// Ten days later the 7-day window has passed for the cashier.
	svc.WithNow(func() time.Time { return day1.AddDate(0, 0, 10) })
	_, err = svc.Reopen(ctx, cashierPrincipal(), day1, "trop tard")
	require.ErrorIs(t, err, ErrReopenWindow)

	record, err := svc.Reopen(ctx, adminPrincipal(), day1, "correction tardive")
	require.NoError(t, err)
	require.Equal(t, StatusReopened, record.Status)
}

func TestRecloseRefreshesTotals(t *testing.T) {
	repo := newMemoryRepo()
	repo.addSale(1, day1, "CASH", 1000)
	svc := testService(repo, day1)
	ctx := context.Background()
	_, err := svc.State(ctx)
	require.NoError(t, err)
	closeDay(t, svc, repo, day2)

	_, err = svc.Reclose(ctx, adminPrincipal(), day1)
	require.ErrorIs(t, err, ErrNotReopened)

	_, err = svc.Reopen(ctx, adminPrincipal(), day1, "ajout vente oubliee")
	require.NoError(t, err)
	repo.addSale(2, day1, "CASH", 500)

	record, err := svc.Reclose(ctx, adminPrincipal(), day1)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, record.Status)
	require.NotNil(t, record.ReclosedAt)
	require.Equal(t, 2, record.SalesCount)
	require.Equal(t, 1500.0, record.TotalCash)
}

func TestCanModifyDate(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, day1)
	ctx := context.Background()
	_, err := svc.State(ctx)
	require.NoError(t, err)
	closeDay(t, svc, repo, day2)

	// Admin always.
	ok, err := svc.CanModifyDate(ctx, adminPrincipal(), day1)
	require.NoError(t, err)
	require.True(t, ok)

	// Current business date always.
	ok, err = svc.CanModifyDate(ctx, cashierPrincipal(), day2)
	require.NoError(t, err)
	require.True(t, ok)

	// Closed date needs the reopen capability.
	ok, err = svc.CanModifyDate(ctx, cashierPrincipal(), day1)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.CanModifyDate(ctx, cashierPrincipal("CLOTURE_REOPEN"), day1)
	require.NoError(t, err)
	require.True(t, ok)

	// A date never closed and not current is open.
	ok, err = svc.CanModifyDate(ctx, cashierPrincipal(), day3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CanModifyDate(ctx, nil, day2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCorrectRecordDate(t *testing.T) {
	repo := newMemoryRepo()
	repo.addSale(1, day1, "CASH", 1000)
	repo.addSale(2, day1, "CASH", 700)
	svc := testService(repo, day1)
	ctx := context.Background()
	_, err := svc.State(ctx)
	require.NoError(t, err)
	closeDay(t, svc, repo, day2)

	corrector := cashierPrincipal("CLOTURE_CORRECT", "CLOTURE_REOPEN")

	_, err = svc.CorrectRecordDate(ctx, corrector, CorrectionInput{SaleID: 1, NewDate: day2})
	require.ErrorIs(t, err, ErrReasonRequired)

	_, err = svc.CorrectRecordDate(ctx, cashierPrincipal(), CorrectionInput{SaleID: 1, NewDate: day2, Reason: "mauvaise date"})
	require.ErrorIs(t, err, ErrNotAuthorized)

	sale, err := svc.CorrectRecordDate(ctx, corrector, CorrectionInput{SaleID: 1, NewDate: day2, Reason: "mauvaise date"})
	require.NoError(t, err)
	require.Equal(t, day2, sale.BusinessDate)

	require.Len(t, repo.corrections, 1)
	require.Equal(t, "sales", repo.corrections[0].SourceTable)
	require.Equal(t, day1, repo.corrections[0].DateBefore)
	require.Equal(t, day2, repo.corrections[0].DateAfter)

	// The closed day's frozen totals were recomputed.
	record, err := repo.GetClosure(ctx, day1)
	require.NoError(t, err)
	require.Equal(t, 1, record.SalesCount)
	require.Equal(t, 700.0, record.TotalCash)
}

func TestCorrectRecordDateLockedTarget(t *testing.T) {
	repo := newMemoryRepo()
	repo.addSale(1, day2, "CASH", 1000)
	svc := testService(repo, day1)
	ctx := context.Background()
	_, err := svc.State(ctx)
	require.NoError(t, err)
	closeDay(t, svc, repo, day2)

	// day1 is closed; a corrector without the reopen capability cannot move
	// a record onto it.
	corrector := cashierPrincipal("CLOTURE_CORRECT")
	_, err = svc.CorrectRecordDate(ctx, corrector, CorrectionInput{SaleID: 1, NewDate: day1, Reason: "recaler"})
	require.ErrorIs(t, err, ErrDateLocked)
}
