package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stratfolio.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
		"ALPACA_BASE_URL", "ALPACA_FEED",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "LOG_LEVEL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/stratfolio/data"
  sqlite_path: "/tmp/stratfolio/stratfolio.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
logging:
  level: "debug"
  format: "text"
backtest:
  fees: 0.002
  slippage: 0.0005
  size: 250
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/stratfolio/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/stratfolio/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/stratfolio/stratfolio.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/stratfolio/stratfolio.db")
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want default %q", cfg.Alpaca.Feed, "iex")
	}
	if cfg.Alpaca.RateLimitPerMin != 200 {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want default %d", cfg.Alpaca.RateLimitPerMin, 200)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want level debug, format text", cfg.Logging)
	}

	// -- Backtest --
	if cfg.Backtest.Fees != 0.002 {
		t.Errorf("Backtest.Fees = %v, want %v", cfg.Backtest.Fees, 0.002)
	}
	if cfg.Backtest.Slippage != 0.0005 {
		t.Errorf("Backtest.Slippage = %v, want %v", cfg.Backtest.Slippage, 0.0005)
	}
	if cfg.Backtest.Size != 250 {
		t.Errorf("Backtest.Size = %v, want %v", cfg.Backtest.Size, 250.0)
	}
	if cfg.Backtest.FreqDays != 1 {
		t.Errorf("Backtest.FreqDays = %d, want default 1", cfg.Backtest.FreqDays)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Telegram.ChatID != 42 {
		t.Errorf("Telegram.ChatID = %d, want 42 (env override)", cfg.Telegram.ChatID)
	}
}

func TestLoadBacktestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Backtest.Fees != 0.001 || cfg.Backtest.Slippage != 0.001 || cfg.Backtest.Size != 100 {
		t.Errorf("Backtest defaults = %+v, want fees 0.001, slippage 0.001, size 100", cfg.Backtest)
	}
	if cfg.Storage.SQLitePath == "" {
		t.Error("Storage.SQLitePath default is empty")
	}
}

func TestLoadFrictionlessBacktest(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "backtest:\n  fees: 0\n  slippage: 0\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Backtest.Fees != 0 || cfg.Backtest.Slippage != 0 {
		t.Errorf("Backtest fees/slippage = %v/%v, want 0/0", cfg.Backtest.Fees, cfg.Backtest.Slippage)
	}
	if cfg.Backtest.Size != 100 {
		t.Errorf("Backtest.Size = %v, want default 100", cfg.Backtest.Size)
	}
}

func TestValidateTelegram(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "telegram:\n  enabled: true\n"))
	if err == nil {
		t.Fatal("Load() should fail when telegram is enabled without a token")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() error = %v, want os.ErrNotExist", err)
	}
}
