package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/migrate"
)

func TestRepositoryUpsertAndGet(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	repo := NewRepository(conn)
	ctx := context.Background()

	missing, err := repo.Get(ctx, "store-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	setting := enabledSetting()
	require.NoError(t, repo.Upsert(ctx, setting))

	setting.TelegramChatID = "-2002"
	require.NoError(t, repo.Upsert(ctx, setting))

	stored, err := repo.Get(ctx, "store-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "-2002", stored.TelegramChatID)
	assert.True(t, stored.Deliverable())
}
