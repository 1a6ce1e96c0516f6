package notifications

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
)

// Repository persists per-store notification settings.
type Repository interface {
	Get(ctx context.Context, storeID string) (*models.StoreNotificationSetting, error)
	Upsert(ctx context.Context, setting *models.StoreNotificationSetting) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a settings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Get returns nil without error when the store has never configured notifications.
func (r *repositoryImpl) Get(ctx context.Context, storeID string) (*models.StoreNotificationSetting, error) {
	var setting models.StoreNotificationSetting
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification settings")
	}
	return &setting, nil
}

func (r *repositoryImpl) Upsert(ctx context.Context, setting *models.StoreNotificationSetting) error {
	if setting == nil || strings.TrimSpace(setting.StoreID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"shift_notifications_enabled",
			"telegram_bot_token",
			"telegram_chat_id",
			"updated_at",
		}),
	}).Create(setting).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeWrite, err, "save notification settings")
	}
	return nil
}
