package shifts

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// ChangeFeed carries "something changed for store X" signals between the
// writers and any number of observers. Signals carry no payload; observers
// re-query the store.
type ChangeFeed interface {
	Publish(ctx context.Context, storeID string) error
	Subscribe(ctx context.Context, storeID string) (Subscription, error)
}

// Subscription delivers change signals until Close is called.
type Subscription interface {
	Changes() <-chan struct{}
	Close() error
}

type redisPubSub interface {
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
	ShiftChangeChannel(storeID string) string
}

// RedisChangeFeed fans change signals out over Redis pub/sub so every API
// replica sees writes made by the others.
type RedisChangeFeed struct {
	client redisPubSub
}

// NewRedisChangeFeed builds a change feed on top of the shared redis client.
func NewRedisChangeFeed(client redisPubSub) (*RedisChangeFeed, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisChangeFeed{client: client}, nil
}

func (f *RedisChangeFeed) Publish(ctx context.Context, storeID string) error {
	return f.client.Publish(ctx, f.client.ShiftChangeChannel(storeID), "changed")
}

func (f *RedisChangeFeed) Subscribe(ctx context.Context, storeID string) (Subscription, error) {
	ps, err := f.client.Subscribe(ctx, f.client.ShiftChangeChannel(storeID))
	if err != nil {
		return nil, err
	}
	sub := &redisSubscription{
		ps:      ps,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps      *goredis.PubSub
	changes chan struct{}
	done    chan struct{}
	once    sync.Once
	err     error
}

// pump coalesces redis messages into at most one pending signal.
func (s *redisSubscription) pump() {
	defer close(s.changes)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.changes <- struct{}{}:
			default:
			}
		}
	}
}

func (s *redisSubscription) Changes() <-chan struct{} {
	return s.changes
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}

// LocalChangeFeed is an in-process ChangeFeed for single-replica runs and tests.
type LocalChangeFeed struct {
	mu   sync.Mutex
	subs map[string]map[*localSubscription]struct{}
}

func NewLocalChangeFeed() *LocalChangeFeed {
	return &LocalChangeFeed{subs: make(map[string]map[*localSubscription]struct{})}
}

func (f *LocalChangeFeed) Publish(_ context.Context, storeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[storeID] {
		select {
		case sub.changes <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *LocalChangeFeed) Subscribe(_ context.Context, storeID string) (Subscription, error) {
	sub := &localSubscription{
		feed:    f,
		storeID: storeID,
		changes: make(chan struct{}, 1),
	}
	f.mu.Lock()
	if f.subs[storeID] == nil {
		f.subs[storeID] = make(map[*localSubscription]struct{})
	}
	f.subs[storeID][sub] = struct{}{}
	f.mu.Unlock()
	return sub, nil
}

// Subscribers reports how many live subscriptions exist for a store.
func (f *LocalChangeFeed) Subscribers(storeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[storeID])
}

type localSubscription struct {
	feed    *LocalChangeFeed
	storeID string
	changes chan struct{}
	once    sync.Once
}

func (s *localSubscription) Changes() <-chan struct{} {
	return s.changes
}

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs[s.storeID], s)
		if len(s.feed.subs[s.storeID]) == 0 {
			delete(s.feed.subs, s.storeID)
		}
		close(s.changes)
		s.feed.mu.Unlock()
	})
	return nil
}
