package shifts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shiftledger/pkg/db"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
)

// Repository persists shifts and their cash movements. Errors are coded:
// NOT_FOUND for missing rows, INVALID_STATE for writes against closed shifts,
// CONFLICT for a second active shift and WRITE_ERROR for storage failures.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveShift(ctx context.Context, storeID string) (*models.Shift, error)
	ListActiveShifts(ctx context.Context, storeID string) ([]models.Shift, error)
	ListStoresWithOrphanedShifts(ctx context.Context) ([]string, error)
	ListStaleShifts(ctx context.Context, startedBefore time.Time) ([]models.Shift, error)
	GetShift(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	GetShiftForUpdate(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	CreateShift(ctx context.Context, shift *models.Shift) error
	UpdateShift(ctx context.Context, id uuid.UUID, fields map[string]any) error
	ApplyTotals(ctx context.Context, id uuid.UUID, delta TotalsDelta) (*models.Shift, error)
	CloseShift(ctx context.Context, id uuid.UUID, fields CloseFields) (*models.Shift, error)
	CreateMovement(ctx context.Context, movement *models.CashMovement) error
	ListMovements(ctx context.Context, shiftID uuid.UUID) ([]models.CashMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shift repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindActiveShift returns the store's active shift or nil. When several rows
// are active the latest start time wins and the rest are left untouched.
func (r *repository) FindActiveShift(ctx context.Context, storeID string) (*models.Shift, error) {
	rows, err := r.ListActiveShifts(ctx, storeID)
	if err != nil {
		return nil, err
	}
	picked, _ := PickActive(rows)
	return picked, nil
}

func (r *repository) ListActiveShifts(ctx context.Context, storeID string) ([]models.Shift, error) {
	var rows []models.Shift
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND status = ?", storeID, enums.ShiftStatusActive).
		Order("start_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "query active shifts")
	}
	return rows, nil
}

func (r *repository) ListStoresWithOrphanedShifts(ctx context.Context) ([]string, error) {
	var storeIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.Shift{}).
		Where("status = ?", enums.ShiftStatusActive).
		Group("store_id").
		Having("COUNT(*) > 1").
		Order("store_id").
		Pluck("store_id", &storeIDs).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "query orphaned shifts")
	}
	return storeIDs, nil
}

// ListStaleShifts returns active shifts opened before the cutoff, oldest first.
func (r *repository) ListStaleShifts(ctx context.Context, startedBefore time.Time) ([]models.Shift, error) {
	var rows []models.Shift
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time < ?", enums.ShiftStatusActive, startedBefore).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "query stale shifts")
	}
	return rows, nil
}

func (r *repository) GetShift(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return loadShift(r.db.WithContext(ctx).Where("id = ?", id))
}

// GetShiftForUpdate loads the shift and row-locks it until the surrounding
// transaction ends, so totals cannot move between the read and a close.
// SQLite has no row locks; its single writer gives the same guarantee.
func (r *repository) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return loadShift(lockShift(r.db.WithContext(ctx), id))
}

func lockShift(tx *gorm.DB, id uuid.UUID) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
}

func loadShift(query *gorm.DB) (*models.Shift, error) {
	var shift models.Shift
	if err := query.First(&shift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shift not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "load shift")
	}
	return &shift, nil
}

func (r *repository) CreateShift(ctx context.Context, shift *models.Shift) error {
	if err := r.db.WithContext(ctx).Create(shift).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "store already has an active shift").
				WithDetails(map[string]any{"store_id": shift.StoreID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "create shift")
	}
	return nil
}

func (r *repository) UpdateShift(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Shift{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeWrite, res.Error, "update shift")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "shift not found")
	}
	return nil
}

// ApplyTotals increments the running totals in a single statement so
// concurrent sales against one shift never lose an update.
func (r *repository) ApplyTotals(ctx context.Context, id uuid.UUID, delta TotalsDelta) (*models.Shift, error) {
	if db.UsesSQLite(r.db) {
		return r.applyTotalsInGo(ctx, id, delta)
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if delta.Transactions != 0 {
		updates["transactions_count"] = gorm.Expr("transactions_count + ?", delta.Transactions)
	}
	addDecimal(updates, "total_sales", delta.Sales)
	addDecimal(updates, "total_cash_sales", delta.CashSales)
	addDecimal(updates, "total_non_cash_sales", delta.NonCashSales)
	addDecimal(updates, "total_discount", delta.Discount)
	addDecimal(updates, "total_cash_in", delta.CashIn)
	addDecimal(updates, "total_cash_out", delta.CashOut)

	res := r.db.WithContext(ctx).
		Model(&models.Shift{}).
		Where("id = ? AND status = ?", id, enums.ShiftStatusActive).
		Updates(updates)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, res.Error, "apply shift totals")
	}
	if res.RowsAffected == 0 {
		return nil, r.inactiveError(ctx, id)
	}
	return r.GetShift(ctx, id)
}

// applyTotalsInGo sums with decimal arithmetic and writes the results back.
// SQL addition on SQLite would run in binary floating point.
func (r *repository) applyTotalsInGo(ctx context.Context, id uuid.UUID, delta TotalsDelta) (*models.Shift, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &repository{db: tx}
		shift, err := repo.GetShiftForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !shift.IsActive() {
			return notActive(shift)
		}
		delta.ApplyTo(shift)
		return repo.UpdateShift(ctx, id, map[string]any{
			"transactions_count":   shift.TransactionsCount,
			"total_sales":          shift.TotalSales,
			"total_cash_sales":     shift.TotalCashSales,
			"total_non_cash_sales": shift.TotalNonCashSales,
			"total_discount":       shift.TotalDiscount,
			"total_cash_in":        shift.TotalCashIn,
			"total_cash_out":       shift.TotalCashOut,
			"updated_at":           time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return r.GetShift(ctx, id)
}

// CloseShift moves an active shift to closed. The update is conditional on
// the shift still being active, so a retried close reports INVALID_STATE.
func (r *repository) CloseShift(ctx context.Context, id uuid.UUID, fields CloseFields) (*models.Shift, error) {
	updates := map[string]any{
		"status":              enums.ShiftStatusClosed,
		"end_time":            fields.EndTime,
		"terminated_by_admin": fields.TerminatedByAdmin,
		"updated_at":          time.Now().UTC(),
	}
	if fields.Notes != "" {
		updates["notes"] = fields.Notes
	}
	if rec := fields.Reconciliation; rec != nil {
		updates["expected_cash"] = rec.ExpectedCash
		updates["final_cash"] = rec.FinalCash
		updates["cash_difference"] = rec.CashDifference
		updates["expected_non_cash"] = rec.ExpectedNonCash
		updates["final_non_cash"] = rec.FinalNonCash
		updates["non_cash_difference"] = rec.NonCashDifference
	}

	res := r.db.WithContext(ctx).
		Model(&models.Shift{}).
		Where("id = ? AND status = ?", id, enums.ShiftStatusActive).
		Updates(updates)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, res.Error, "close shift")
	}
	if res.RowsAffected == 0 {
		return nil, r.inactiveError(ctx, id)
	}
	return r.GetShift(ctx, id)
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.CashMovement) error {
	if err := r.db.WithContext(ctx).Create(movement).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "create cash movement")
	}
	return nil
}

func (r *repository) ListMovements(ctx context.Context, shiftID uuid.UUID) ([]models.CashMovement, error) {
	var rows []models.CashMovement
	err := r.db.WithContext(ctx).
		Where("shift_id = ?", shiftID).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeWrite, err, "list cash movements")
	}
	return rows, nil
}

// inactiveError explains why a write guarded by status=active matched nothing.
func (r *repository) inactiveError(ctx context.Context, id uuid.UUID) error {
	shift, err := r.GetShift(ctx, id)
	if err != nil {
		return err
	}
	return notActive(shift)
}

func notActive(shift *models.Shift) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, "shift is not active").
		WithDetails(map[string]any{"shift_id": shift.ID.String(), "status": shift.Status})
}

func addDecimal(updates map[string]any, column string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	updates[column] = gorm.Expr(column+" + ?", amount)
}
