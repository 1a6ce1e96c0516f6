package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

type drawerRow struct {
	ID      int
	StoreID string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&drawerRow{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&drawerRow{StoreID: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&drawerRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&drawerRow{StoreID: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&drawerRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&drawerRow{StoreID: "store-1"}).Error; err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := db.Create(&drawerRow{StoreID: "store-1"}).Error
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("disk full"), "") {
		t.Fatal("unrelated errors must not match")
	}
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_shifts_store_active"})
	if !IsUniqueViolation(err, "ux_shifts_store_active") {
		t.Fatal("expected constraint match")
	}
	if IsUniqueViolation(err, "ledger_entries_ref_id_key") {
		t.Fatal("expected constraint mismatch")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected match without constraint name")
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    "file::memory:",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestWithTxRetriesTransientFailures(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	calls := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("close shift: %w", &pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
		}
		return tx.Create(&drawerRow{StoreID: "after-retry"}).Error
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected two attempts, got %d", calls)
	}

	calls = 0
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "23505"}
	})
	if err == nil || calls != 1 {
		t.Fatalf("constraint errors must not be retried: calls=%d err=%v", calls, err)
	}

	calls = 0
	_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	if calls != maxTxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxTxAttempts, calls)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn)
	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&drawerRow{StoreID: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()
	var count int64
	if err := conn.Model(&drawerRow{}).Where("store_id = ?", "panicked").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, found %d rows", count)
	}
}

func TestQueryLoggerWritesSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	ql := newQueryLogger(logger.New(logger.Options{ServiceName: "db-test", Output: buf}), 50*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(context.Background(), time.Now(), stmt, nil)
	ql.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found statements should be silent: %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "db.slow_query") {
		t.Fatalf("expected slow query entry: %s", buf.String())
	}
	buf.Reset()
	ql.Trace(context.Background(), time.Now(), stmt, errors.New("syntax error"))
	if !strings.Contains(buf.String(), "db.query_failed") || !strings.Contains(buf.String(), "syntax error") {
		t.Fatalf("expected failed query entry: %s", buf.String())
	}
}
