package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stratfolio/internal/config"
	"stratfolio/internal/domain"
)

type captureSender struct {
	msgs []tgbotapi.MessageConfig
	err  error
}

func (c *captureSender) Send(m tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.msgs = append(c.msgs, m.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, c.err
}

func testRecord() domain.PortfolioRecord {
	return domain.PortfolioRecord{
		ID:          7,
		Name:        "RSI3_AAPL",
		EndDate:     time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		TotalReturn: 0.25,
		SharpeRatio: 1.4,
		MaxDrawdown: 0.1,
	}
}

func TestTelegramDisabled(t *testing.T) {
	n := NewTelegram(config.Telegram{Enabled: false}, nil)
	if n.Enabled() {
		t.Fatal("Enabled() = true for a disabled config")
	}
	// Must not panic with a nil bot.
	n.PortfolioUpdated(testRecord())
	n.UpdateFailed(testRecord(), errors.New("boom"))
}

func TestTelegramSend(t *testing.T) {
	s := &captureSender{}
	n := &Telegram{bot: s, chatID: 42, enabled: true, log: NewTelegram(config.Telegram{}, nil).log}

	n.PortfolioUpdated(testRecord())
	n.UpdateFailed(testRecord(), errors.New("no data for *NOT_REAL*"))

	if len(s.msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(s.msgs))
	}
	if s.msgs[0].ChatID != 42 || s.msgs[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("message = %+v, want chat 42 in markdown", s.msgs[0])
	}
	if !strings.Contains(s.msgs[0].Text, `*RSI3\_AAPL*`) || !strings.Contains(s.msgs[0].Text, "2024-06-03") {
		t.Errorf("update text = %q, want the escaped name", s.msgs[0].Text)
	}
	if !strings.Contains(s.msgs[1].Text, `*RSI3\_AAPL*`) || !strings.Contains(s.msgs[1].Text, `no data for \*NOT\_REAL\*`) {
		t.Errorf("failure text = %q, want escaped name and error", s.msgs[1].Text)
	}

	// Delivery errors are swallowed.
	s.err = errors.New("network down")
	n.PortfolioUpdated(testRecord())
}
