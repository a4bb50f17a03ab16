package telegram

import (
	"context"
	"errors"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"autoshorts/internal/config"
	"autoshorts/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*BotNotifier)(nil)

// Telegram rejects longer messages.
const maxMessageRunes = 4096

// BotNotifier sends operator messages to one chat.
type BotNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

// NewBotNotifier validates the token with getMe. endpoint overrides the Bot
// API URL format ("https://api.telegram.org/bot%s/%s") and is mostly for tests.
func NewBotNotifier(cfg *config.BotConfig, endpoint string, logger *zerolog.Logger) (*BotNotifier, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("bot chat_id is empty")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "TelegramNotifier").Str("bot", bot.Self.UserName).Logger()
	return &BotNotifier{bot: bot, chatID: cfg.ChatID, log: &l}, nil
}

func (n *BotNotifier) Notify(ctx context.Context, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(n.chatID, truncate(text, maxMessageRunes))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return err
	}
	n.log.Debug().Int64("chat_id", n.chatID).Msg("notification sent")
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
