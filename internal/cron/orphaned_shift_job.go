package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/shiftledger/internal/shifts"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

// OrphanedShiftJobParams configure the orphaned shift audit.
type OrphanedShiftJobParams struct {
	Logger *logger.Logger
	Shifts orphanedShiftReader
}

type orphanedShiftReader interface {
	ListStoresWithOrphanedShifts(ctx context.Context) ([]string, error)
	ListActiveShifts(ctx context.Context, storeID string) ([]models.Shift, error)
}

// NewOrphanedShiftJob builds the job that reports stores holding more than
// one active shift. Orphans are only logged; an operator resolves them.
func NewOrphanedShiftJob(params OrphanedShiftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shifts == nil {
		return nil, fmt.Errorf("shift repository required")
	}
	return &orphanedShiftJob{
		logg:   params.Logger,
		shifts: params.Shifts,
	}, nil
}

type orphanedShiftJob struct {
	logg   *logger.Logger
	shifts orphanedShiftReader
}

func (j *orphanedShiftJob) Name() string { return "orphaned-shift-audit" }

func (j *orphanedShiftJob) Run(ctx context.Context) error {
	storeIDs, err := j.shifts.ListStoresWithOrphanedShifts(ctx)
	if err != nil {
		return fmt.Errorf("list stores with orphaned shifts: %w", err)
	}

	var errs []error
	orphans := 0
	for _, storeID := range storeIDs {
		count, err := j.auditStore(ctx, storeID)
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", storeID, err))
			continue
		}
		orphans += count
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stores":  len(storeIDs),
		"orphans": orphans,
	})
	j.logg.Info(logCtx, "orphaned shift audit complete")
	return multierr.Combine(errs...)
}

func (j *orphanedShiftJob) auditStore(ctx context.Context, storeID string) (int, error) {
	rows, err := j.shifts.ListActiveShifts(ctx, storeID)
	if err != nil {
		return 0, err
	}
	picked, orphans := shifts.PickActive(rows)
	if picked == nil || len(orphans) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(orphans))
	for _, orphan := range orphans {
		ids = append(ids, orphan.ID.String())
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"store_id":         storeID,
		"active_shift_id":  picked.ID.String(),
		"orphan_shift_ids": ids,
	})
	j.logg.Warn(logCtx, "store has orphaned active shifts")
	return len(orphans), nil
}
