package shifts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
)

func newActiveShift(storeID string, start time.Time) *models.Shift {
	return &models.Shift{
		StoreID:     storeID,
		CashierID:   "cashier-1",
		CashierName: "Dewi",
		Status:      enums.ShiftStatusActive,
		StartTime:   start,
		InitialCash: dec("100000"),
	}
}

func TestRepositoryRejectsSecondActiveShift(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateShift(ctx, newActiveShift("store-1", start)))

	err := repo.CreateShift(ctx, newActiveShift("store-1", start.Add(time.Minute)))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	// Other stores are unaffected.
	require.NoError(t, repo.CreateShift(ctx, newActiveShift("store-2", start)))
}

func TestRepositoryAllowsNewShiftAfterClose(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first := newActiveShift("store-1", start)
	require.NoError(t, repo.CreateShift(ctx, first))
	_, err := repo.CloseShift(ctx, first.ID, CloseFields{EndTime: start.Add(8 * time.Hour)})
	require.NoError(t, err)

	require.NoError(t, repo.CreateShift(ctx, newActiveShift("store-1", start.Add(9*time.Hour))))
}

func TestFindActiveShiftPicksLatestWhenSeveralActive(t *testing.T) {
	conn := setupShiftsTestDB(t)
	// Simulate data written before the unique index existed.
	require.NoError(t, conn.Exec("DROP INDEX ux_shifts_store_active").Error)
	repo := NewRepository(conn)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	older := newActiveShift("store-1", start)
	newer := newActiveShift("store-1", start.Add(2*time.Hour))
	require.NoError(t, repo.CreateShift(ctx, older))
	require.NoError(t, repo.CreateShift(ctx, newer))

	got, err := repo.FindActiveShift(ctx, "store-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)

	// The older one is left alone.
	stillActive, err := repo.GetShift(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ShiftStatusActive, stillActive.Status)

	stores, err := repo.ListStoresWithOrphanedShifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"store-1"}, stores)
}

func TestFindActiveShiftNone(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	got, err := repo.FindActiveShift(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApplyTotalsIncrementsAtomically(t *testing.T) {
	conn := setupShiftsTestDB(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// sqlite shared-cache tables lock under parallel writers; serialize on the pool.
	sqlDB.SetMaxOpenConns(1)
	repo := NewRepository(conn)
	ctx := context.Background()
	shift := newActiveShift("store-1", time.Now().UTC())
	require.NoError(t, repo.CreateShift(ctx, shift))

	const sales = 20
	var wg sync.WaitGroup
	errs := make(chan error, sales)
	for i := 0; i < sales; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyTotals(ctx, shift.ID, TotalsDelta{Transactions: 1, Sales: dec("1000"), CashSales: dec("1000")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(sales), got.TransactionsCount)
	assert.True(t, got.TotalCashSales.Equal(decimal.NewFromInt(sales*1000)), "got %s", got.TotalCashSales)
}

func TestApplyTotalsRejectsClosedShift(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	shift := newActiveShift("store-1", time.Now().UTC())
	require.NoError(t, repo.CreateShift(ctx, shift))
	_, err := repo.CloseShift(ctx, shift.ID, CloseFields{EndTime: time.Now().UTC()})
	require.NoError(t, err)

	_, err = repo.ApplyTotals(ctx, shift.ID, TotalsDelta{Transactions: 1, Sales: dec("10")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	_, err = repo.ApplyTotals(ctx, uuid.New(), TotalsDelta{Transactions: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCloseShiftIsConditional(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	shift := newActiveShift("store-1", time.Now().UTC())
	require.NoError(t, repo.CreateShift(ctx, shift))

	rec := Reconcile(shift, dec("100000"), dec("0"))
	closed, err := repo.CloseShift(ctx, shift.ID, CloseFields{EndTime: time.Now().UTC(), Notes: "done", Reconciliation: &rec})
	require.NoError(t, err)
	assert.Equal(t, enums.ShiftStatusClosed, closed.Status)
	require.NotNil(t, closed.ExpectedCash)
	assert.True(t, closed.ExpectedCash.Equal(dec("100000")))
	require.NotNil(t, closed.Notes)
	assert.Equal(t, "done", *closed.Notes)

	_, err = repo.CloseShift(ctx, shift.ID, CloseFields{EndTime: time.Now().UTC()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}

func TestUpdateShiftMissingRow(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	err := repo.UpdateShift(context.Background(), uuid.New(), map[string]any{"notes": "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMovementsListedInOrder(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	shift := newActiveShift("store-1", time.Now().UTC())
	require.NoError(t, repo.CreateShift(ctx, shift))

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, reason := range []string{"Beli galon", "Setor modal"} {
		require.NoError(t, repo.CreateMovement(ctx, &models.CashMovement{
			ShiftID:     shift.ID,
			StoreID:     shift.StoreID,
			Type:        enums.CashMovementOut,
			Amount:      dec("20000"),
			Reason:      reason,
			Category:    enums.DefaultCashMovementCategory,
			CashierName: shift.CashierName,
			Date:        base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rows, err := repo.ListMovements(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Beli galon", rows[0].Reason)
	assert.Equal(t, "Setor modal", rows[1].Reason)
}

func TestListStaleShifts(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	old := newActiveShift("store-1", now.Add(-30*time.Hour))
	fresh := newActiveShift("store-2", now.Add(-2*time.Hour))
	require.NoError(t, repo.CreateShift(ctx, old))
	require.NoError(t, repo.CreateShift(ctx, fresh))

	closed := newActiveShift("store-3", now.Add(-48*time.Hour))
	require.NoError(t, repo.CreateShift(ctx, closed))
	_, err := repo.CloseShift(ctx, closed.ID, CloseFields{EndTime: now})
	require.NoError(t, err)

	stale, err := repo.ListStaleShifts(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestApplyTotalsKeepsCentsExact(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	shift := newActiveShift("store-1", time.Now().UTC())
	shift.InitialCash = dec("0")
	require.NoError(t, repo.CreateShift(ctx, shift))

	var got *models.Shift
	for _, amount := range []string{"0.10", "0.20", "0.07", "1234567.89"} {
		var err error
		got, err = repo.ApplyTotals(ctx, shift.ID, TotalsDelta{Transactions: 1, Sales: dec(amount), CashSales: dec(amount)})
		require.NoError(t, err)
	}
	assert.Equal(t, "1234568.26", got.TotalCashSales.StringFixed(2))
	assert.True(t, got.TotalCashSales.Equal(dec("1234568.26")), "got %s", got.TotalCashSales)
	assert.Equal(t, int64(4), got.TransactionsCount)

	reloaded, err := repo.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.TotalSales.Equal(dec("1234568.26")), "reloaded %s", reloaded.TotalSales)
}

func TestGetShiftForUpdateLocksRowOnPostgres(t *testing.T) {
	conn, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=shiftledger dbname=shiftledger sslmode=disable"}),
		&gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	id := uuid.New()

	sql := conn.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var shift models.Shift
		return lockShift(tx, id).First(&shift)
	})
	assert.Contains(t, sql, "FOR UPDATE")
	assert.Contains(t, sql, id.String())
}

func TestGetShiftForUpdateOnSQLite(t *testing.T) {
	repo := NewRepository(setupShiftsTestDB(t))
	ctx := context.Background()
	shift := newActiveShift("store-1", time.Now().UTC())
	require.NoError(t, repo.CreateShift(ctx, shift))

	got, err := repo.GetShiftForUpdate(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shift.ID, got.ID)

	_, err = repo.GetShiftForUpdate(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
