package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shiftledger/api/responses"
	"github.com/angelmondragon/shiftledger/api/validators"
	"github.com/angelmondragon/shiftledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

type notificationSettingsStore interface {
	Get(ctx context.Context, storeID string) (*models.StoreNotificationSetting, error)
	Upsert(ctx context.Context, setting *models.StoreNotificationSetting) error
}

type notificationSettingsRequest struct {
	Enabled          bool    `json:"shift_notifications_enabled"`
	TelegramBotToken *string `json:"telegram_bot_token" validate:"omitempty,max=200"`
	TelegramChatID   string  `json:"telegram_chat_id" validate:"max=64"`
}

type notificationSettingsResponse struct {
	StoreID          string     `json:"store_id"`
	Enabled          bool       `json:"shift_notifications_enabled"`
	TelegramBotToken string     `json:"telegram_bot_token"`
	TelegramChatID   string     `json:"telegram_chat_id"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// GetNotificationSettings returns a store's notification target with the bot token masked.
func GetNotificationSettings(store notificationSettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := storeIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		setting, err := store.Get(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if setting == nil {
			setting = &models.StoreNotificationSetting{StoreID: storeID}
		}
		responses.WriteSuccess(w, toNotificationSettingsResponse(setting))
	}
}

// PutNotificationSettings replaces a store's notification target. Omitting
// telegram_bot_token keeps the stored token.
func PutNotificationSettings(store notificationSettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := storeIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req notificationSettingsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current, err := store.Get(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		setting := &models.StoreNotificationSetting{StoreID: storeID}
		if current != nil {
			setting.TelegramBotToken = current.TelegramBotToken
		}
		if req.TelegramBotToken != nil {
			setting.TelegramBotToken = strings.TrimSpace(*req.TelegramBotToken)
		}
		setting.TelegramChatID = strings.TrimSpace(req.TelegramChatID)
		setting.ShiftNotificationsEnabled = req.Enabled

		if setting.ShiftNotificationsEnabled && (setting.TelegramBotToken == "" || setting.TelegramChatID == "") {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "telegram bot token and chat id are required when notifications are enabled"))
			return
		}

		if err := store.Upsert(r.Context(), setting); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toNotificationSettingsResponse(setting))
	}
}

func storeIDParam(r *http.Request) (string, error) {
	storeID := strings.TrimSpace(chi.URLParam(r, "storeId"))
	if storeID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	return storeID, nil
}

func toNotificationSettingsResponse(setting *models.StoreNotificationSetting) notificationSettingsResponse {
	resp := notificationSettingsResponse{
		StoreID:          setting.StoreID,
		Enabled:          setting.ShiftNotificationsEnabled,
		TelegramBotToken: maskToken(setting.TelegramBotToken),
		TelegramChatID:   setting.TelegramChatID,
	}
	if !setting.UpdatedAt.IsZero() {
		updated := setting.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
