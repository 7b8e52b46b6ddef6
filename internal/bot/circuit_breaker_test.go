package bot

import (
	"testing"
	"time"

	"arbitrage/internal/config"
	"arbitrage/internal/models"
)

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		MaxConsecutiveLosses: 3,
		MaxDailyLossPct:      0.05,
		MinAccountBalancePct: 0.8,
		ConsecutiveLossPause: time.Hour,
		DailyLossPause:       2 * time.Hour,
		DrawdownPause:        24 * time.Hour,
	}
}

func TestCircuitBreaker_AllowsTradingInitially(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(), 10000, nil)

	if !cb.CheckTradingAllowed() {
		t.Error("expected trading allowed before any trigger fires")
	}
}

func TestCircuitBreaker_ConsecutiveLossesPause(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(), 10000, nil)

	cb.RecordTrade(-10, 10000)
	cb.RecordTrade(-10, 9990)
	if !cb.CheckTradingAllowed() {
		t.Error("expected trading still allowed after 2 losses")
	}

	cb.RecordTrade(-10, 9980)
	if cb.CheckTradingAllowed() {
		t.Error("expected trading paused after 3 consecutive losses")
	}

	state := cb.State()
	if !state.IsPaused {
		t.Error("expected state.IsPaused to be true")
	}
	if state.PauseUntil == nil {
		t.Fatal("expected PauseUntil to be set")
	}
}

func TestCircuitBreaker_WinResetsConsecutiveLosses(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(), 10000, nil)

	cb.RecordTrade(-10, 9990)
	cb.RecordTrade(-10, 9980)
	cb.RecordTrade(5, 9985)
	cb.RecordTrade(-10, 9975)
	cb.RecordTrade(-10, 9965)

	if !cb.CheckTradingAllowed() {
		t.Error("expected trading allowed - win should have reset the consecutive loss streak")
	}
}

func TestCircuitBreaker_DailyLossPause(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.MaxConsecutiveLosses = 100 // избегаем пересечения с consecutive-loss триггером
	cb := NewCircuitBreaker(cfg, 10000, nil)

	cb.RecordTrade(-600, 9400) // 6% дневной просадки > 5% порога

	if cb.CheckTradingAllowed() {
		t.Error("expected trading paused after daily loss threshold breached")
	}
	if cb.State().PauseReason == "" {
		t.Error("expected a pause reason to be recorded")
	}
}

func TestCircuitBreaker_DrawdownPause(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.MaxConsecutiveLosses = 100
	cfg.MaxDailyLossPct = 1 // отключаем дневной триггер для изоляции теста
	cb := NewCircuitBreaker(cfg, 10000, nil)

	// баланс счёта упал до 70% от начального - ниже порога 80%
	cb.RecordTrade(-1, 7000)

	if cb.CheckTradingAllowed() {
		t.Error("expected trading paused after equity drawdown below minimum")
	}
}

func TestCircuitBreaker_PauseLiftsAfterExpiry(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.ConsecutiveLossPause = time.Millisecond
	cb := NewCircuitBreaker(cfg, 10000, nil)

	cb.RecordTrade(-10, 9990)
	cb.RecordTrade(-10, 9980)
	cb.RecordTrade(-10, 9970)

	if cb.CheckTradingAllowed() {
		t.Fatal("expected trading paused immediately after trigger")
	}

	time.Sleep(5 * time.Millisecond)

	if !cb.CheckTradingAllowed() {
		t.Error("expected trading allowed again after pause window elapsed")
	}
	if cb.State().IsPaused {
		t.Error("expected IsPaused cleared after expiry")
	}
}

func TestCircuitBreaker_RestoreLoadsPersistedState(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(), 10000, nil)

	until := time.Now().Add(time.Hour)
	cb.Restore(models.CircuitBreakerState{
		IsPaused:    true,
		PauseUntil:  &until,
		PauseReason: "restored from disk",
	})

	if cb.CheckTradingAllowed() {
		t.Error("expected trading paused after restoring a paused state")
	}
	if cb.State().PauseReason != "restored from disk" {
		t.Errorf("expected restored pause reason preserved, got %q", cb.State().PauseReason)
	}
}

func TestCircuitBreaker_ResetDailyClearsCounters(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(), 10000, nil)
	cb.RecordTrade(-100, 9900)

	cb.ResetDaily(9900)

	state := cb.State()
	if state.DailyPnl != 0 {
		t.Errorf("expected DailyPnl reset to 0, got %v", state.DailyPnl)
	}
	if state.DailyStartBalance != 9900 {
		t.Errorf("expected DailyStartBalance reset to 9900, got %v", state.DailyStartBalance)
	}
}

func TestCircuitBreaker_PersistFnCalledOnMutation(t *testing.T) {
	var persisted []models.CircuitBreakerState
	cb := NewCircuitBreaker(testBreakerConfig(), 10000, func(s models.CircuitBreakerState) {
		persisted = append(persisted, s)
	})

	cb.RecordTrade(-1, 9999)

	if len(persisted) != 1 {
		t.Fatalf("expected persistFn called once, got %d calls", len(persisted))
	}
}
