// Package notify delivers fan-out notifications to Telegram. Delivery is
// best-effort: failures are logged by callers and never propagate to the
// user-facing action.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"opsboard/internal/amqp"
)

// Dispatcher sends a notification to some channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *amqp.NotificationMessage) error
}

// TelegramDispatcher posts notifications to a fixed chat.
type TelegramDispatcher struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramDispatcher(token string, chatID int64) (*TelegramDispatcher, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramDispatcher{bot: bot, chatID: chatID}, nil
}

// Dispatch formats and sends one notification.
func (d *TelegramDispatcher) Dispatch(_ context.Context, msg *amqp.NotificationMessage) error {
	text := FormatMessage(msg)
	out := tgbotapi.NewMessage(d.chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := d.bot.Send(out); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatMessage renders a notification as Telegram HTML.
func FormatMessage(msg *amqp.NotificationMessage) string {
	var sb strings.Builder
	sb.WriteString("🔔 <b>")
	sb.WriteString(html.EscapeString(msg.Action))
	sb.WriteString("</b>\n")
	sb.WriteString(html.EscapeString(msg.Subject))
	if msg.Actor != "" {
		sb.WriteString("\nby ")
		sb.WriteString(html.EscapeString(msg.Actor))
	}
	if msg.Detail != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(msg.Detail))
	}
	return sb.String()
}
