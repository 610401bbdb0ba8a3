// Package notify reports portfolio refresh progress to operators.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stratfolio/internal/config"
	"stratfolio/internal/domain"
)

// Notifier receives one event per refreshed portfolio.
type Notifier interface {
	PortfolioUpdated(rec domain.PortfolioRecord)
	UpdateFailed(rec domain.PortfolioRecord, err error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) PortfolioUpdated(domain.PortfolioRecord)    {}
func (Nop) UpdateFailed(domain.PortfolioRecord, error) {}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts events to a chat. A disabled or unreachable bot turns it
// into a no-op; delivery failures are logged and never returned.
type Telegram struct {
	bot     sender
	chatID  int64
	enabled bool
	log     *slog.Logger
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram connects the bot described by cfg.
func NewTelegram(cfg config.Telegram, log *slog.Logger) *Telegram {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telegram")
	if !cfg.Enabled {
		return &Telegram{log: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Telegram{log: log}
	}
	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Telegram{bot: bot, chatID: cfg.ChatID, enabled: true, log: log}
}

// Enabled reports whether messages are actually sent.
func (n *Telegram) Enabled() bool { return n.enabled }

func (n *Telegram) PortfolioUpdated(rec domain.PortfolioRecord) {
	n.send(fmt.Sprintf("✅ *%s* (#%d) updated to %s\nReturn: %.2f%%  Sharpe: %.2f  MaxDD: %.2f%%",
		escape(rec.Name), rec.ID, rec.EndDate.Format("2006-01-02"),
		rec.TotalReturn*100, rec.SharpeRatio, rec.MaxDrawdown*100))
}

func (n *Telegram) UpdateFailed(rec domain.PortfolioRecord, err error) {
	n.send(fmt.Sprintf("⚠️ *%s* (#%d) update failed\n%s", escape(rec.Name), rec.ID, escape(err.Error())))
}

// escape quotes Markdown control characters; portfolio names always carry
// an underscore.
func escape(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

func (n *Telegram) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error("send telegram message", "error", err)
	}
}
