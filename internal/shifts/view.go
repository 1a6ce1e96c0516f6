package shifts

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
)

// ErrViewClosed is returned by Watch after Close.
var ErrViewClosed = errors.New("active shift view closed")

type shiftObserver interface {
	Observe(ctx context.Context, storeID string) (<-chan *models.Shift, error)
}

// ActiveShiftView caches the active shift of the store being watched. It is
// handed to whichever component needs the current shift; switching stores
// tears down the previous subscription before the next one starts.
type ActiveShiftView struct {
	observer shiftObserver

	mu      sync.RWMutex
	storeID string
	current *models.Shift
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

func NewActiveShiftView(observer shiftObserver) *ActiveShiftView {
	return &ActiveShiftView{observer: observer}
}

// Watch switches the view to storeID. Watching the store already watched is
// a no-op while its stream is alive; once the stream ends, for example
// because ctx was canceled, Watch subscribes again. The lock is not held
// while the observer subscribes.
func (v *ActiveShiftView) Watch(ctx context.Context, storeID string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.cancel != nil && v.storeID == storeID {
		v.mu.Unlock()
		return nil
	}
	prevDone := v.stopLocked()
	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.gen++
	gen := v.gen
	v.storeID = storeID
	v.current = nil
	v.cancel = cancel
	v.done = done
	v.mu.Unlock()

	waitDone(prevDone)
	updates, err := v.observer.Observe(subCtx, storeID)
	if err != nil {
		v.release(gen)
		close(done)
		return err
	}
	go v.consume(gen, updates, done)
	return nil
}

func (v *ActiveShiftView) consume(gen uint64, updates <-chan *models.Shift, done chan struct{}) {
	defer close(done)
	for shift := range updates {
		v.mu.Lock()
		if v.gen == gen {
			v.current = shift
		}
		v.mu.Unlock()
	}
	v.release(gen)
}

// release forgets the subscription started as gen unless a newer Watch or
// Close already replaced it.
func (v *ActiveShiftView) release(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.cancel()
	v.cancel = nil
	v.done = nil
	v.current = nil
}

// Current returns the cached active shift, or nil.
func (v *ActiveShiftView) Current() *models.Shift {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// StoreID returns the store being watched.
func (v *ActiveShiftView) StoreID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.storeID
}

// Forget drops the cached shift if it is shiftID, e.g. right after the
// holder terminated it and before the feed catches up.
func (v *ActiveShiftView) Forget(shiftID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current != nil && v.current.ID.String() == shiftID {
		v.current = nil
	}
}

// Close stops the subscription. It is safe to call more than once.
func (v *ActiveShiftView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	done := v.stopLocked()
	v.current = nil
	v.mu.Unlock()
	waitDone(done)
}

// stopLocked cancels the running subscription and returns its done channel
// so the caller can wait after releasing the lock.
func (v *ActiveShiftView) stopLocked() chan struct{} {
	if v.cancel == nil {
		return nil
	}
	v.cancel()
	done := v.done
	v.cancel = nil
	v.done = nil
	v.gen++
	return done
}

func waitDone(done chan struct{}) {
	if done != nil {
		<-done
	}
}
