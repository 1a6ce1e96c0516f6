package shifts

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

type activeShiftLister interface {
	ListActiveShifts(ctx context.Context, storeID string) ([]models.Shift, error)
}

// Observer streams the active shift of a store, re-querying whenever the
// change feed signals a write.
type Observer struct {
	repo activeShiftLister
	feed ChangeFeed
	logg *logger.Logger
}

func NewObserver(repo activeShiftLister, feed ChangeFeed, logg *logger.Logger) (*Observer, error) {
	if repo == nil {
		return nil, fmt.Errorf("shift repository required")
	}
	if feed == nil {
		return nil, fmt.Errorf("change feed required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Observer{repo: repo, feed: feed, logg: logg}, nil
}

// Observe emits the current active shift immediately and again after every
// change. A nil value means the store has no active shift. At most one
// snapshot is buffered; a newer one replaces an unread older one. The channel
// closes once ctx is done.
func (o *Observer) Observe(ctx context.Context, storeID string) (<-chan *models.Shift, error) {
	if storeID == "" {
		return nil, fmt.Errorf("store id required")
	}
	sub, err := o.feed.Subscribe(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("subscribe to store %s: %w", storeID, err)
	}
	out := make(chan *models.Shift, 1)
	go o.run(ctx, storeID, sub, out)
	return out, nil
}

func (o *Observer) run(ctx context.Context, storeID string, sub Subscription, out chan *models.Shift) {
	defer close(out)
	defer func() {
		if err := sub.Close(); err != nil {
			o.logg.Error(ctx, "failed to close shift subscription", err)
		}
	}()

	logCtx := o.logg.WithStoreID(ctx, storeID)
	o.refresh(logCtx, storeID, out)
	changes := sub.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			o.refresh(logCtx, storeID, out)
		}
	}
}

func (o *Observer) refresh(ctx context.Context, storeID string, out chan *models.Shift) {
	rows, err := o.repo.ListActiveShifts(ctx, storeID)
	if err != nil {
		if ctx.Err() == nil {
			o.logg.Error(ctx, "failed to query active shift", err)
		}
		return
	}
	picked, orphans := PickActive(rows)
	if len(orphans) > 0 {
		ids := make([]string, 0, len(orphans))
		for _, orphan := range orphans {
			ids = append(ids, orphan.ID.String())
		}
		o.logg.Warn(o.logg.WithField(ctx, "orphaned_shift_ids", ids), "store has more than one active shift")
	}
	offerLatest(out, picked)
}

// offerLatest replaces any unread snapshot with the newer one. Only the
// observer goroutine sends on out.
func offerLatest(out chan *models.Shift, shift *models.Shift) {
	select {
	case out <- shift:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- shift:
	default:
	}
}
