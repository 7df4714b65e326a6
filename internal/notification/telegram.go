package notification

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends messages to a Telegram chat via a bot token.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier authenticates a Telegram bot and targets chatID for
// every Send call.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot api: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Send posts subject/message to the configured chat, ignoring recipient.
func (t *TelegramNotifier) Send(ctx context.Context, _, subject, message string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	text := fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(subject), escapeMarkdown(message))
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// Channel identifies this notifier as "telegram".
func (t *TelegramNotifier) Channel() string { return "telegram" }

// escapeMarkdown escapes the characters with special meaning in Telegram's
// legacy Markdown parse mode.
func escapeMarkdown(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '_', '*', '`', '[':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
