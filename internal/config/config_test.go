package config

import (
	"testing"
	"time"
)

func TestLoadRequiresEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when ENCRYPTION_KEY is unset")
	}
}

func TestLoadRejectsWrongSizeEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "too-short")

	if _, err := Load(); err == nil {
		t.Error("expected error for an encryption key that isn't 32 bytes")
	}
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_RETRIES", "7")
	t.Setenv("ADVISOR_API_KEY", "secret-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected overridden SERVER_PORT=9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default SERVER_HOST, got %q", cfg.Server.Host)
	}
	if cfg.Bot.MaxRetries != 7 {
		t.Errorf("expected overridden MAX_RETRIES=7, got %d", cfg.Bot.MaxRetries)
	}
	if cfg.Arbitrage.Guardrails.APIKey != "secret-key" {
		t.Errorf("expected ADVISOR_API_KEY propagated, got %q", cfg.Arbitrage.Guardrails.APIKey)
	}
	if cfg.Arbitrage.Engine.Symbol != "BTCUSDT" {
		t.Errorf("expected default arbitrage engine symbol, got %q", cfg.Arbitrage.Engine.Symbol)
	}
}

func TestLoadArbitrageConfigDefaults(t *testing.T) {
	cfg, err := loadArbitrageConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Thresholds.MinSpreadPct != 0.3 {
		t.Errorf("expected default MinSpreadPct=0.3, got %v", cfg.Thresholds.MinSpreadPct)
	}
	if cfg.Caps.MaxArbitragePerDay != 100 {
		t.Errorf("expected default MaxArbitragePerDay=100, got %d", cfg.Caps.MaxArbitragePerDay)
	}
	if !cfg.Execution.AtomicExecutionEnabled {
		t.Error("expected atomic execution enabled by default")
	}
	if cfg.Shadow.Enabled {
		t.Error("expected shadow mode disabled by default")
	}
}

func TestLoadArbitrageConfigHonorsEnvOverride(t *testing.T) {
	t.Setenv("ARB_THRESHOLDS_MIN_SPREAD_PCT", "1.5")

	cfg, err := loadArbitrageConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Thresholds.MinSpreadPct != 1.5 {
		t.Errorf("expected ARB_ env override to win, got %v", cfg.Thresholds.MinSpreadPct)
	}
}

func TestFeeForReturnsConfiguredSchedule(t *testing.T) {
	cfg := ArbitrageConfig{Fees: map[string]FeeSchedule{"bybit": {Maker: 0.0001, Taker: 0.0005}}}

	fee := cfg.FeeFor("bybit")
	if fee.Taker != 0.0005 {
		t.Errorf("expected configured taker fee, got %v", fee.Taker)
	}
}

func TestFeeForFallsBackToDefault(t *testing.T) {
	cfg := ArbitrageConfig{Fees: map[string]FeeSchedule{}}

	fee := cfg.FeeFor("unknown-venue")
	if fee.Taker != 0.0006 || fee.Maker != 0.0002 {
		t.Errorf("expected default 6bps/2bps fallback, got %+v", fee)
	}
}

func TestGetEnvReturnsDefaultWhenUnset(t *testing.T) {
	if got := getEnv("DOES_NOT_EXIST_KEY", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestGetEnvAsIntFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("BAD_INT_KEY", "not-a-number")

	if got := getEnvAsInt("BAD_INT_KEY", 42); got != 42 {
		t.Errorf("expected fallback 42 for unparseable int, got %d", got)
	}
}

func TestGetEnvAsBoolParsesTrue(t *testing.T) {
	t.Setenv("BOOL_KEY", "true")

	if got := getEnvAsBool("BOOL_KEY", false); !got {
		t.Error("expected true")
	}
}

func TestGetEnvAsDurationFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("BAD_DURATION_KEY", "not-a-duration")

	if got := getEnvAsDuration("BAD_DURATION_KEY", 5*time.Second); got != 5*time.Second {
		t.Errorf("expected fallback duration, got %v", got)
	}
}
