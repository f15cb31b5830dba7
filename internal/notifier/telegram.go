// Package notifier pushes alerts about strong trading signals.
package notifier

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradebot/models"
)

// Notifier receives analysis results that contain at least one strong signal.
type Notifier interface {
	NotifyStrongSignals(result models.AnalysisResult) error
}

// Noop discards all notifications. Used when no Telegram token is configured.
type Noop struct{}

func (Noop) NotifyStrongSignals(models.AnalysisResult) error { return nil }

// Telegram sends strong-signal alerts to a Telegram chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram authenticates against the Bot API and returns a notifier bound
// to the given chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	logger := log.With().Str("component", "telegram_notifier").Logger()
	logger.Info().Str("account", bot.Self.UserName).Msg("telegram bot authorized")

	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// NotifyStrongSignals formats the strong signals of the result into a single
// message. Results without strong signals are ignored.
func (t *Telegram) NotifyStrongSignals(result models.AnalysisResult) error {
	var strong []models.Signal
	for _, s := range result.Signals {
		if s.Strength == models.StrengthStrong {
			strong = append(strong, s)
		}
	}
	if len(strong) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d strong signal(s)\n", result.Symbol, result.Timeframe, len(strong))
	for _, s := range strong {
		fmt.Fprintf(&b, "- %s: %s\n", strings.ToUpper(string(s.Type)), s.Reason)
	}
	fmt.Fprintf(&b, "Trend: %s, Risk: %s", result.TrendDirection, result.RiskLevel)

	msg := tgbotapi.NewMessage(t.chatID, b.String())
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Str("symbol", result.Symbol).Msg("failed to send alert")
		return fmt.Errorf("send telegram alert: %w", err)
	}

	t.logger.Info().
		Str("symbol", result.Symbol).
		Str("timeframe", result.Timeframe).
		Int("signals", len(strong)).
		Msg("alert sent")
	return nil
}
