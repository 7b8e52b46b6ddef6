package bot

import (
	"fmt"
	"sync"
	"time"

	"arbitrage/internal/config"
	"arbitrage/internal/models"
)

// CircuitBreaker приостанавливает торговлю при серии убытков, дневной
// просадке или истощении счёта. Пауза персистится через persistFn после
// каждой мутации, чтобы она переживала перезапуск процесса.
type CircuitBreaker struct {
	mu sync.Mutex

	cfg   config.BreakerConfig
	state models.CircuitBreakerState

	initialBalance float64

	persistFn func(models.CircuitBreakerState)
}

// NewCircuitBreaker создаёт предохранитель с начальным балансом счёта
func NewCircuitBreaker(cfg config.BreakerConfig, initialBalance float64, persistFn func(models.CircuitBreakerState)) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:            cfg,
		initialBalance: initialBalance,
		persistFn:      persistFn,
		state: models.CircuitBreakerState{
			DailyStartBalance: initialBalance,
			UpdatedAt:         time.Now(),
		},
	}
}

// Restore загружает персистированное состояние (например, после рестарта)
func (cb *CircuitBreaker) Restore(state models.CircuitBreakerState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = state
}

// RecordTrade мутирует состояние предохранителя по результату закрытой сделки
// и проверяет триггеры в порядке "первое совпадение побеждает".
func (cb *CircuitBreaker) RecordTrade(pnl, currentBalance float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if pnl < 0 {
		cb.state.ConsecutiveLosses++
	} else if pnl > 0 {
		cb.state.ConsecutiveLosses = 0
	}
	cb.state.DailyPnl += pnl

	now := time.Now()

	switch {
	case cb.state.ConsecutiveLosses >= cb.cfg.MaxConsecutiveLosses:
		cb.pauseLocked(cb.cfg.ConsecutiveLossPause,
			fmt.Sprintf("%d consecutive losses", cb.state.ConsecutiveLosses), now)

	case cb.state.DailyPnl < 0 && cb.state.DailyStartBalance > 0 &&
		(-cb.state.DailyPnl)/cb.state.DailyStartBalance >= cb.cfg.MaxDailyLossPct:
		lossPct := (-cb.state.DailyPnl) / cb.state.DailyStartBalance * 100
		cb.pauseLocked(cb.cfg.DailyLossPause, fmt.Sprintf("daily loss -%.1f%%", lossPct), now)

	case cb.initialBalance > 0 && currentBalance/cb.initialBalance <= cb.cfg.MinAccountBalancePct:
		pct := currentBalance / cb.initialBalance * 100
		cb.pauseLocked(cb.cfg.DrawdownPause, fmt.Sprintf("equity drawdown to %.0f%% of initial", pct), now)
	}

	cb.state.UpdatedAt = now
	cb.persistLocked()
}

func (cb *CircuitBreaker) pauseLocked(duration time.Duration, message string, now time.Time) {
	until := now.Add(duration)
	cb.state.IsPaused = true
	cb.state.PauseUntil = &until
	cb.state.PauseReason = message
}

// CheckTradingAllowed сообщает, разрешена ли торговля. Если пауза истекла,
// она снимается при первом же вызове после истечения.
func (cb *CircuitBreaker) CheckTradingAllowed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.state.IsPaused {
		return true
	}

	if cb.state.PauseUntil != nil && time.Now().Before(*cb.state.PauseUntil) {
		return false
	}

	cb.state.IsPaused = false
	cb.state.PauseUntil = nil
	cb.state.PauseReason = ""
	cb.state.UpdatedAt = time.Now()
	cb.persistLocked()
	return true
}

// ResetDaily обнуляет дневные счётчики и переустанавливает стартовый баланс дня
func (cb *CircuitBreaker) ResetDaily(currentBalance float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.DailyPnl = 0
	cb.state.DailyStartBalance = currentBalance
	cb.state.UpdatedAt = time.Now()
	cb.persistLocked()
}

// State возвращает копию текущего состояния
func (cb *CircuitBreaker) State() models.CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) persistLocked() {
	if cb.persistFn != nil {
		cb.persistFn(cb.state)
	}
}
