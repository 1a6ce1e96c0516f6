package shifts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/metrics"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
	"github.com/angelmondragon/shiftledger/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// saleDeduper remembers applied sale ids.
type saleDeduper interface {
	CheckAndMark(ctx context.Context, scope, id string) (bool, error)
	Forget(ctx context.Context, scope, id string) error
}

// ShiftNotifier announces lifecycle transitions. Implementations swallow
// their own failures.
type ShiftNotifier interface {
	ShiftOpened(ctx context.Context, shift *models.Shift)
	ShiftClosed(ctx context.Context, shift *models.Shift)
	ShiftTerminated(ctx context.Context, shift *models.Shift)
}

// EngineParams wires the engine. Feed, Notifier, Sales and Metrics are optional.
type EngineParams struct {
	Repo     Repository
	DB       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Feed     ChangeFeed
	Notifier ShiftNotifier
	Sales    saleDeduper
	Metrics  *metrics.ShiftMetrics
	Now      func() time.Time
}

// Engine owns the shift lifecycle: open, sales, cash movements, close and
// administrative termination.
type Engine struct {
	repo     Repository
	db       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	feed     ChangeFeed
	notifier ShiftNotifier
	sales    saleDeduper
	metrics  *metrics.ShiftMetrics
	now      func() time.Time
}

// NewEngine validates the dependencies and builds an Engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shift repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		repo:     params.Repo,
		db:       params.DB,
		outbox:   params.Outbox,
		logg:     params.Logger,
		feed:     params.Feed,
		notifier: params.Notifier,
		sales:    params.Sales,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// OpenShift starts a shift for the store. It fails with CONFLICT when the
// store already has an active shift; the unique index settles races between
// concurrent opens.
func (e *Engine) OpenShift(ctx context.Context, in OpenShiftInput) (*models.Shift, error) {
	in.StoreID = strings.TrimSpace(in.StoreID)
	in.CashierID = strings.TrimSpace(in.CashierID)
	in.CashierName = strings.TrimSpace(in.CashierName)
	if in.StoreID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if in.CashierID == "" || in.CashierName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier id and name are required")
	}
	if err := checkMoney("initial cash", in.InitialCash); err != nil {
		return nil, err
	}

	shift := &models.Shift{
		ID:          uuid.New(),
		StoreID:     in.StoreID,
		CashierID:   in.CashierID,
		CashierName: in.CashierName,
		Status:      enums.ShiftStatusActive,
		StartTime:   e.now().UTC(),
		InitialCash: in.InitialCash,
	}

	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		existing, err := repo.FindActiveShift(ctx, in.StoreID)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "store already has an active shift").
				WithDetails(map[string]any{"shift_id": existing.ID.String()})
		}
		if err := repo.CreateShift(ctx, shift); err != nil {
			return err
		}
		return e.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShiftOpened,
			AggregateType: enums.AggregateShift,
			AggregateID:   shift.ID,
			Actor:         &outbox.ActorRef{UserID: shift.CashierID, StoreID: shift.StoreID},
			OccurredAt:    shift.StartTime,
			Data: payloads.ShiftOpenedEvent{
				ShiftID:     shift.ID,
				StoreID:     shift.StoreID,
				CashierID:   shift.CashierID,
				CashierName: shift.CashierName,
				InitialCash: shift.InitialCash,
				StartTime:   shift.StartTime,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := e.shiftLogContext(ctx, shift)
	e.logg.Info(logCtx, "shift opened")
	e.metrics.IncOpened()
	e.publishChange(logCtx, shift.StoreID)
	if e.notifier != nil {
		e.notifier.ShiftOpened(logCtx, shift)
	}
	return shift, nil
}

// RecordCashMovement stores a manual drawer movement, bumps the shift's cash
// in/out total and queues the ledger mirror, all in one transaction.
func (e *Engine) RecordCashMovement(ctx context.Context, shiftID uuid.UUID, in CashMovementInput) (*MovementResult, error) {
	if shiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id is required")
	}
	if !in.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cash movement type %q", in.Type))
	}
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if err := checkMoney("amount", in.Amount); err != nil {
		return nil, err
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = enums.DefaultCashMovementCategory
	}

	var result MovementResult
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		shift, err := repo.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if !shift.IsActive() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "cash movements require an active shift")
		}

		cashier := strings.TrimSpace(in.Cashier)
		if cashier == "" {
			cashier = shift.CashierName
		}
		movement := &models.CashMovement{
			ID:          uuid.New(),
			ShiftID:     shift.ID,
			StoreID:     shift.StoreID,
			Type:        in.Type,
			Amount:      in.Amount,
			Reason:      in.Reason,
			Category:    in.Category,
			CashierName: cashier,
			Date:        e.now().UTC(),
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return err
		}
		updated, err := repo.ApplyTotals(ctx, shift.ID, MovementDelta(in.Type, in.Amount))
		if err != nil {
			return err
		}
		result = MovementResult{Movement: movement, Shift: updated}

		return e.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCashMovementRecorded,
			AggregateType: enums.AggregateCashMovement,
			AggregateID:   movement.ID,
			Actor:         &outbox.ActorRef{UserID: shift.CashierID, StoreID: shift.StoreID},
			OccurredAt:    movement.Date,
			Data: payloads.CashMovementRecordedEvent{
				MovementID:        movement.ID,
				ShiftID:           shift.ID,
				StoreID:           shift.StoreID,
				Type:              movement.Type,
				Amount:            movement.Amount,
				Reason:            movement.Reason,
				Category:          movement.Category,
				CashierName:       movement.CashierName,
				Date:              movement.Date,
				LedgerDescription: LedgerDescription(movement.Reason, shift.ID),
				LedgerCategory:    LedgerCategory(movement.Type, movement.Category),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := e.logg.WithFields(e.shiftLogContext(ctx, result.Shift), map[string]any{
		"movement_id":   result.Movement.ID.String(),
		"movement_type": result.Movement.Type,
	})
	e.logg.Info(logCtx, "cash movement recorded")
	e.metrics.IncMovement(string(in.Type))
	e.publishChange(logCtx, result.Shift.StoreID)
	return &result, nil
}

// UpdateShiftStats folds one completed sale into the running totals. A sale
// id seen before for the same shift is reported as a duplicate and changes
// nothing.
func (e *Engine) UpdateShiftStats(ctx context.Context, shiftID uuid.UUID, in SaleInput) (*SaleResult, error) {
	if shiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id is required")
	}
	delta, err := SaleDelta(in)
	if err != nil {
		return nil, err
	}

	logCtx := e.logg.WithShiftID(ctx, shiftID.String())
	saleID := strings.TrimSpace(in.SaleID)
	scope := saleScope(shiftID)
	marked := false
	if saleID != "" && e.sales != nil {
		logCtx = e.logg.WithField(logCtx, "sale_id", saleID)
		duplicate, err := e.sales.CheckAndMark(ctx, scope, saleID)
		switch {
		case err != nil:
			// Dedup is best-effort; a redis outage must not stop the register.
			e.logg.Error(logCtx, "sale dedup check failed", err)
		case duplicate:
			shift, err := e.repo.GetShift(ctx, shiftID)
			if err != nil {
				return nil, err
			}
			e.logg.Info(logCtx, "duplicate sale ignored")
			e.metrics.IncDuplicateSale()
			return &SaleResult{Shift: shift, Duplicate: true}, nil
		default:
			marked = true
		}
	}

	shift, err := e.repo.ApplyTotals(ctx, shiftID, delta)
	if err != nil {
		if marked {
			if ferr := e.sales.Forget(ctx, scope, saleID); ferr != nil {
				e.logg.Error(logCtx, "failed to release sale id", ferr)
			}
		}
		return nil, err
	}

	e.metrics.IncSale(string(in.PaymentMethod))
	e.publishChange(logCtx, shift.StoreID)
	return &SaleResult{Shift: shift}, nil
}

// EndShift reconciles the declared counts and closes the shift. A retry after
// a successful close returns INVALID_STATE instead of recomputing.
func (e *Engine) EndShift(ctx context.Context, shiftID uuid.UUID, in EndShiftInput) (*models.Shift, error) {
	if shiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id is required")
	}
	if err := checkMoney("final cash", in.FinalCash); err != nil {
		return nil, err
	}
	if err := checkMoney("final non-cash", in.FinalNonCash); err != nil {
		return nil, err
	}

	var closed *models.Shift
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		shift, err := repo.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if !shift.IsActive() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "shift is already closed")
		}

		rec := Reconcile(shift, in.FinalCash, in.FinalNonCash)
		endTime := e.now().UTC()
		closed, err = repo.CloseShift(ctx, shift.ID, CloseFields{
			EndTime:        endTime,
			Notes:          strings.TrimSpace(in.Notes),
			Reconciliation: &rec,
		})
		if err != nil {
			return err
		}

		return e.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShiftClosed,
			AggregateType: enums.AggregateShift,
			AggregateID:   shift.ID,
			Actor:         &outbox.ActorRef{UserID: shift.CashierID, StoreID: shift.StoreID},
			OccurredAt:    endTime,
			Data: payloads.ShiftClosedEvent{
				ShiftID:           shift.ID,
				StoreID:           shift.StoreID,
				CashierName:       shift.CashierName,
				EndTime:           endTime,
				TotalSales:        closed.TotalSales,
				TransactionsCount: closed.TransactionsCount,
				ExpectedCash:      rec.ExpectedCash,
				FinalCash:         rec.FinalCash,
				CashDifference:    rec.CashDifference,
				ExpectedNonCash:   rec.ExpectedNonCash,
				FinalNonCash:      rec.FinalNonCash,
				NonCashDifference: rec.NonCashDifference,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := e.logg.WithField(e.shiftLogContext(ctx, closed), "cash_difference", closed.CashDifference.String())
	e.logg.Info(logCtx, "shift closed")
	e.metrics.ObserveClosed(*closed.CashDifference)
	e.publishChange(logCtx, closed.StoreID)
	if e.notifier != nil {
		e.notifier.ShiftClosed(logCtx, closed)
	}
	return closed, nil
}

// TerminateShift force-closes a shift without reconciliation. It may be
// called by an admin on any cashier's shift.
func (e *Engine) TerminateShift(ctx context.Context, shiftID uuid.UUID, notes string) (*models.Shift, error) {
	if shiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id is required")
	}
	notes = strings.TrimSpace(notes)

	var terminated *models.Shift
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		shift, err := repo.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if !shift.IsActive() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "shift is already closed")
		}

		endTime := e.now().UTC()
		terminated, err = repo.CloseShift(ctx, shift.ID, CloseFields{
			EndTime:           endTime,
			Notes:             notes,
			TerminatedByAdmin: true,
		})
		if err != nil {
			return err
		}

		return e.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShiftTerminated,
			AggregateType: enums.AggregateShift,
			AggregateID:   shift.ID,
			Actor:         actorFromContext(ctx, shift.StoreID),
			OccurredAt:    endTime,
			Data: payloads.ShiftTerminatedEvent{
				ShiftID:     shift.ID,
				StoreID:     shift.StoreID,
				CashierName: shift.CashierName,
				EndTime:     endTime,
				Notes:       notes,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := e.shiftLogContext(ctx, terminated)
	e.logg.Warn(logCtx, "shift terminated by admin")
	e.metrics.IncTerminated()
	e.publishChange(logCtx, terminated.StoreID)
	if e.notifier != nil {
		e.notifier.ShiftTerminated(logCtx, terminated)
	}
	return terminated, nil
}

// ActiveShift returns the store's active shift, or nil when there is none.
func (e *Engine) ActiveShift(ctx context.Context, storeID string) (*models.Shift, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	return e.repo.FindActiveShift(ctx, storeID)
}

func (e *Engine) GetShift(ctx context.Context, shiftID uuid.UUID) (*models.Shift, error) {
	if shiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift id is required")
	}
	return e.repo.GetShift(ctx, shiftID)
}

func (e *Engine) ListMovements(ctx context.Context, shiftID uuid.UUID) ([]models.CashMovement, error) {
	if _, err := e.GetShift(ctx, shiftID); err != nil {
		return nil, err
	}
	return e.repo.ListMovements(ctx, shiftID)
}

func (e *Engine) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if err := e.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "queue outbox event")
	}
	return nil
}

// publishChange signals observers. Failures are logged; observers converge on
// the next signal.
func (e *Engine) publishChange(ctx context.Context, storeID string) {
	if e.feed == nil {
		return
	}
	if err := e.feed.Publish(ctx, storeID); err != nil {
		e.logg.Error(ctx, "failed to publish shift change", err)
	}
}

func (e *Engine) shiftLogContext(ctx context.Context, shift *models.Shift) context.Context {
	return e.logg.WithFields(ctx, map[string]any{
		"shift_id":   shift.ID.String(),
		"store_id":   shift.StoreID,
		"cashier_id": shift.CashierID,
	})
}

func saleScope(shiftID uuid.UUID) string {
	return "sale:" + shiftID.String()
}

type actorKey struct{}

// WithActor records who is acting so emitted events carry it.
func WithActor(ctx context.Context, actor outbox.ActorRef) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFromContext(ctx context.Context, storeID string) *outbox.ActorRef {
	if actor, ok := ctx.Value(actorKey{}).(outbox.ActorRef); ok {
		return &actor
	}
	return &outbox.ActorRef{StoreID: storeID}
}
