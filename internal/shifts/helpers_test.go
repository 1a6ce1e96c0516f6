package shifts

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/db"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/migrate"
	"github.com/angelmondragon/shiftledger/pkg/outbox"
)

func setupShiftsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "shifts-test", Output: io.Discard})
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type recordingNotifier struct {
	mu         sync.Mutex
	opened     []uuid.UUID
	closed     []uuid.UUID
	terminated []uuid.UUID
}

func (n *recordingNotifier) ShiftOpened(_ context.Context, shift *models.Shift) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, shift.ID)
}

func (n *recordingNotifier) ShiftClosed(_ context.Context, shift *models.Shift) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, shift.ID)
}

func (n *recordingNotifier) ShiftTerminated(_ context.Context, shift *models.Shift) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.terminated = append(n.terminated, shift.ID)
}

type memorySales struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *memorySales) CheckAndMark(_ context.Context, scope, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	key := scope + ":" + id
	if m.seen[key] {
		return true, nil
	}
	m.seen[key] = true
	return false, nil
}

func (m *memorySales) Forget(_ context.Context, scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, scope+":"+id)
	return nil
}

type engineFixture struct {
	conn     *gorm.DB
	engine   *Engine
	repo     Repository
	feed     *LocalChangeFeed
	notifier *recordingNotifier
	sales    *memorySales
	clock    *time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	conn := setupShiftsTestDB(t)
	repo := NewRepository(conn)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f := &engineFixture{
		conn:     conn,
		repo:     repo,
		feed:     NewLocalChangeFeed(),
		notifier: &recordingNotifier{},
		sales:    &memorySales{},
		clock:    &now,
	}
	engine, err := NewEngine(EngineParams{
		Repo:     repo,
		DB:       db.NewFromConn(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), testLogger()),
		Logger:   testLogger(),
		Feed:     f.feed,
		Notifier: f.notifier,
		Sales:    f.sales,
		Now:      func() time.Time { return *f.clock },
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *engineFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *engineFixture) outboxCount(t *testing.T, eventType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}
