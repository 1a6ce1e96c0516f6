package models

import "time"

// StoreNotificationSetting holds a store's outbound shift-notification target.
type StoreNotificationSetting struct {
	StoreID                   string    `gorm:"column:store_id;primaryKey"`
	ShiftNotificationsEnabled bool      `gorm:"column:shift_notifications_enabled;not null;default:false"`
	TelegramBotToken          string    `gorm:"column:telegram_bot_token"`
	TelegramChatID            string    `gorm:"column:telegram_chat_id"`
	UpdatedAt                 time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StoreNotificationSetting) TableName() string { return "store_notification_settings" }

// Deliverable reports whether notifications are switched on and a destination is configured.
func (s *StoreNotificationSetting) Deliverable() bool {
	return s != nil && s.ShiftNotificationsEnabled && s.TelegramBotToken != "" && s.TelegramChatID != ""
}
