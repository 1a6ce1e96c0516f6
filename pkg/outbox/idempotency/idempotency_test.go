package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore wraps mapStore and remembers the last SetNX.
type recordingStore struct {
	mapStore
	getErr  error
	setErr  error
	lastKey string
	lastTTL time.Duration
	deleted []string
}

func newRecordingStore() *recordingStore { return &recordingStore{mapStore: mapStore{}} }

func (s *recordingStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.lastKey, s.lastTTL = key, ttl
	if s.setErr != nil {
		return false, s.setErr
	}
	return s.mapStore.SetNX(ctx, key, value, ttl)
}

func (s *recordingStore) Get(ctx context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	value, ok := s.mapStore[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (s *recordingStore) Del(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return s.mapStore.Del(ctx, keys...)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newRecordingStore(), -time.Second)
	assert.Error(t, err)
	_, err = NewManager(newRecordingStore(), 0)
	assert.NoError(t, err)
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newRecordingStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(ctx, "ledger-mirror", eventID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, "sl:idempotency:evt:processed:ledger-mirror:"+eventID.String(), store.lastKey)
	assert.Equal(t, 24*time.Hour, store.lastTTL)

	already, err = manager.CheckAndMarkProcessed(ctx, "ledger-mirror", eventID)
	require.NoError(t, err)
	assert.True(t, already, "redelivery must be reported as processed")

	already, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.False(t, already, "consumers keep separate marks")

}

func TestProcessedOnlyReadsTheMark(t *testing.T) {
	store := newRecordingStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	seen, err := manager.Processed(ctx, "ledger-mirror", eventID)
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = manager.Processed(ctx, "ledger-mirror", eventID)
	require.NoError(t, err)
	assert.False(t, seen, "reading must not leave a mark")
	assert.Empty(t, store.lastKey)

	require.NoError(t, manager.MarkProcessed(ctx, "ledger-mirror", eventID))
	require.NoError(t, manager.MarkProcessed(ctx, "ledger-mirror", eventID))
	seen, err = manager.Processed(ctx, "ledger-mirror", eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = manager.Processed(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.False(t, seen, "consumers keep separate marks")
}

func TestProcessedPropagatesStoreErrors(t *testing.T) {
	store := newRecordingStore()
	store.getErr = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.Processed(context.Background(), "ledger-mirror", uuid.New())
	assert.ErrorIs(t, err, store.getErr)
}

func TestCheckAndMarkProcessedRejectsBadInput(t *testing.T) {
	manager, err := NewManager(newRecordingStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), " ", uuid.New())
	assert.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "ledger-mirror", uuid.Nil)
	assert.Error(t, err)
	_, err = manager.Processed(context.Background(), "", uuid.New())
	assert.Error(t, err)
	assert.Error(t, manager.MarkProcessed(context.Background(), "ledger-mirror", uuid.Nil))
}

func TestCheckAndMarkPropagatesStoreErrors(t *testing.T) {
	store := newRecordingStore()
	store.setErr = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "ledger-mirror", uuid.New())
	assert.ErrorIs(t, err, store.setErr)
}

func TestSaleScopeMarks(t *testing.T) {
	store := newRecordingStore()
	manager, err := NewManager(store, 72*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	already, err := manager.CheckAndMark(ctx, "sale:shift-1", "sale-42")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, "sl:idempotency:sale:shift-1:sale-42", store.lastKey)

	require.NoError(t, manager.Forget(ctx, "sale:shift-1", "sale-42"))
	assert.Equal(t, []string{"sl:idempotency:sale:shift-1:sale-42"}, store.deleted)

	_, err = manager.CheckAndMark(ctx, "sale:shift-1", " ")
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = manager.CheckAndMark(ctx, "", "sale-42")
	assert.ErrorIs(t, err, ErrScopeRequired)
	assert.ErrorIs(t, manager.Forget(ctx, "", "sale-42"), ErrScopeRequired)
}
