package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

const staleShiftHours = 24

type StaleShiftJobParams struct {
	Logger     *logger.Logger
	Shifts     staleShiftReader
	StaleAfter time.Duration
}

type staleShiftReader interface {
	ListStaleShifts(ctx context.Context, startedBefore time.Time) ([]models.Shift, error)
}

// NewStaleShiftJob builds the job that flags shifts left open past the
// threshold, usually a cashier who forgot to close.
func NewStaleShiftJob(params StaleShiftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shifts == nil {
		return nil, fmt.Errorf("shift repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = staleShiftHours * time.Hour
	}
	return &staleShiftJob{
		logg:       params.Logger,
		shifts:     params.Shifts,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

type staleShiftJob struct {
	logg       *logger.Logger
	shifts     staleShiftReader
	staleAfter time.Duration
	now        func() time.Time
}

func (j *staleShiftJob) Name() string { return "stale-shift-report" }

func (j *staleShiftJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	rows, err := j.shifts.ListStaleShifts(ctx, now.Add(-j.staleAfter))
	if err != nil {
		return fmt.Errorf("list stale shifts: %w", err)
	}
	for _, shift := range rows {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"store_id":   shift.StoreID,
			"shift_id":   shift.ID.String(),
			"cashier_id": shift.CashierID,
			"open_hours": int(now.Sub(shift.StartTime).Hours()),
		})
		j.logg.Warn(logCtx, "shift still open past threshold")
	}
	j.logg.Info(j.logg.WithField(ctx, "stale_shifts", len(rows)), "stale shift report complete")
	return nil
}
