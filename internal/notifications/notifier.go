package notifications

import (
	"context"

	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
)

// Destination addresses one chat through one bot.
type Destination struct {
	Token  string
	ChatID string
}

// Notifier is a best-effort message sink. The result is advisory.
type Notifier interface {
	Send(ctx context.Context, message string, dest Destination) bool
}

type messageSender interface {
	SendMessage(ctx context.Context, token, chatID, text string) error
}

// TelegramNotifier adapts a Bot API client to Notifier.
type TelegramNotifier struct {
	client messageSender
	logg   *logger.Logger
}

func NewTelegramNotifier(client messageSender, logg *logger.Logger) *TelegramNotifier {
	return &TelegramNotifier{client: client, logg: logg}
}

func (n *TelegramNotifier) Send(ctx context.Context, message string, dest Destination) bool {
	if err := n.client.SendMessage(ctx, dest.Token, dest.ChatID, message); err != nil {
		if n.logg != nil {
			n.logg.Warn(n.logg.WithField(ctx, "error", pkgerrors.Wrap(pkgerrors.CodeNotification, err, "telegram send failed").Error()), "notification not delivered")
		}
		return false
	}
	return true
}
