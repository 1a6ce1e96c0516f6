package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shiftledger/pkg/redis"
)

const (
	processedScope = "evt:processed"
	markValue      = "1"
)

var (
	ErrScopeRequired = errors.New("idempotency scope is required")
	ErrIDRequired    = errors.New("idempotency id is required")
)

// Manager remembers which ids a scope has already seen. Marks are Redis keys
// set with SETNX and expire after ttl; a zero ttl keeps them forever.
//
// Two callers use it: event consumers mark envelope ids under
// sl:idempotency:evt:processed:<consumer>:<event_id>, and the shift engine
// marks POS sale ids under sl:idempotency:sale:<shift_id>:<sale_id>.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMark reports whether id was already marked in scope and marks it
// when it was not. Exactly one concurrent caller sees false.
func (m *Manager) CheckAndMark(ctx context.Context, scope, id string) (bool, error) {
	key, err := m.key(scope, id)
	if err != nil {
		return false, err
	}
	created, err := m.store.SetNX(ctx, key, markValue, m.ttl)
	if err != nil {
		return false, err
	}
	return !created, nil
}

// Forget drops a mark so the id can be handled again, typically after the
// work it guarded failed.
func (m *Manager) Forget(ctx context.Context, scope, id string) error {
	key, err := m.key(scope, id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// CheckAndMarkProcessed is CheckAndMark for a consumer and event id.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	scope, id, err := eventMark(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.CheckAndMark(ctx, scope, id)
}

// Processed reports whether consumer already handled eventID. It only reads
// the mark; consumers call MarkProcessed once their work is durable, so a
// failed attempt never leaves a mark behind.
func (m *Manager) Processed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	scope, id, err := eventMark(consumer, eventID)
	if err != nil {
		return false, err
	}
	key, err := m.key(scope, id)
	if err != nil {
		return false, err
	}
	value, err := m.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// MarkProcessed records that consumer handled eventID. Marking an event twice
// is not an error.
func (m *Manager) MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) error {
	_, err := m.CheckAndMarkProcessed(ctx, consumer, eventID)
	return err
}

func (m *Manager) key(scope, id string) (string, error) {
	scope, id = strings.TrimSpace(scope), strings.TrimSpace(id)
	switch {
	case scope == "":
		return "", ErrScopeRequired
	case id == "":
		return "", ErrIDRequired
	}
	return m.store.IdempotencyKey(scope, id), nil
}

func eventMark(consumer string, eventID uuid.UUID) (string, string, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return "", "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", "", errors.New("event id is required")
	}
	return processedScope + ":" + consumer, eventID.String(), nil
}
