package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/shiftledger/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestShiftsMigrationEnforcesSingleActiveShift(t *testing.T) {
	content := readMigration(t, "*_create_shifts.sql")
	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS shifts",
		"CHECK (status IN ('active', 'closed'))",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_shifts_store_active",
		"WHERE status = 'active'",
		"DROP TABLE IF EXISTS shifts",
	})
}

func TestCashMovementsMigrationRejectsNonPositiveAmounts(t *testing.T) {
	content := readMigration(t, "*_create_cash_movements.sql")
	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS cash_movements",
		"CHECK (amount > 0)",
		"DEFAULT 'General'",
		"FOREIGN KEY (shift_id) REFERENCES shifts(id)",
		"DROP TABLE IF EXISTS cash_movements",
	})
}

func TestLedgerEntriesMigrationDedupsByRef(t *testing.T) {
	content := readMigration(t, "*_create_ledger_entries.sql")
	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS ledger_entries",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_ref_id",
		"DROP TABLE IF EXISTS ledger_entries",
	})
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected migrations to validate: %v", err)
	}
}
