package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

type fakeShiftReader struct {
	stores      []string
	storesErr   error
	active      map[string][]models.Shift
	activeErr   map[string]error
	stale       []models.Shift
	staleCutoff time.Time
}

func (f *fakeShiftReader) ListStoresWithOrphanedShifts(context.Context) ([]string, error) {
	return f.stores, f.storesErr
}

func (f *fakeShiftReader) ListActiveShifts(_ context.Context, storeID string) ([]models.Shift, error) {
	if err := f.activeErr[storeID]; err != nil {
		return nil, err
	}
	return f.active[storeID], nil
}

func (f *fakeShiftReader) ListStaleShifts(_ context.Context, startedBefore time.Time) ([]models.Shift, error) {
	f.staleCutoff = startedBefore
	return f.stale, nil
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func activeShift(storeID string, start time.Time) models.Shift {
	return models.Shift{ID: uuid.New(), StoreID: storeID, Status: enums.ShiftStatusActive, StartTime: start}
}

func TestOrphanedShiftJobCombinesStoreErrors(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	reader := &fakeShiftReader{
		stores: []string{"store-1", "store-2", "store-3"},
		active: map[string][]models.Shift{
			"store-1": {activeShift("store-1", start), activeShift("store-1", start.Add(time.Hour))},
		},
		activeErr: map[string]error{
			"store-2": errors.New("timeout"),
			"store-3": errors.New("conn reset"),
		},
	}
	job, err := NewOrphanedShiftJob(OrphanedShiftJobParams{Logger: quietLogger(), Shifts: reader})
	if err != nil {
		t.Fatalf("NewOrphanedShiftJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 store errors, got %d", got)
	}
}

func TestOrphanedShiftJobNoStores(t *testing.T) {
	job, err := NewOrphanedShiftJob(OrphanedShiftJobParams{Logger: quietLogger(), Shifts: &fakeShiftReader{}})
	if err != nil {
		t.Fatalf("NewOrphanedShiftJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestOrphanedShiftJobPropagatesQueryError(t *testing.T) {
	job, _ := NewOrphanedShiftJob(OrphanedShiftJobParams{Logger: quietLogger(), Shifts: &fakeShiftReader{storesErr: errors.New("db down")}})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStaleShiftJobUsesThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	reader := &fakeShiftReader{stale: []models.Shift{activeShift("store-1", now.Add(-30*time.Hour))}}
	jobIface, err := NewStaleShiftJob(StaleShiftJobParams{Logger: quietLogger(), Shifts: reader, StaleAfter: 12 * time.Hour})
	if err != nil {
		t.Fatalf("NewStaleShiftJob: %v", err)
	}
	job := jobIface.(*staleShiftJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-12 * time.Hour); !reader.staleCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, reader.staleCutoff)
	}
}

func TestShiftJobsRequireDependencies(t *testing.T) {
	if _, err := NewOrphanedShiftJob(OrphanedShiftJobParams{Logger: quietLogger()}); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewStaleShiftJob(StaleShiftJobParams{Shifts: &fakeShiftReader{}}); err == nil {
		t.Fatal("expected error without logger")
	}
}
