package migrate

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/config"
	"github.com/angelmondragon/shiftledger/pkg/db"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "prod"}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.New(logger.Options{Output: io.Discard}), nil))
}

func TestMaybeRunDevBuildsSQLiteSchema(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:autorun?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{Driver: config.DBDriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.New(logger.Options{Output: io.Discard}), db.NewFromConn(conn)))

	for _, table := range []string{"shifts", "cash_movements", "ledger_entries", "store_notification_settings", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}
	require.True(t, conn.Migrator().HasIndex("shifts", "ux_shifts_store_active"))
}
