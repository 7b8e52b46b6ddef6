package models

import "time"

// CircuitBreakerState фиксирует состояние предохранителя (Circuit Breaker, 4.I).
// Мутируется при закрытии каждой сделки и сохраняется после каждого изменения.
type CircuitBreakerState struct {
	ConsecutiveLosses  int        `json:"consecutive_losses" db:"consecutive_losses"`
	DailyPnl           float64    `json:"daily_pnl" db:"daily_pnl"`
	DailyStartBalance  float64    `json:"daily_start_balance" db:"daily_start_balance"`
	IsPaused           bool       `json:"is_paused" db:"is_paused"`
	PauseUntil         *time.Time `json:"pause_until,omitempty" db:"pause_until"`
	PauseReason        string     `json:"pause_reason,omitempty" db:"pause_reason"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Причины паузы предохранителя
const (
	PauseReasonConsecutiveLosses = "consecutive_losses_exceeded"
	PauseReasonDailyLoss         = "daily_loss_exceeded"
	PauseReasonDrawdown          = "balance_drawdown_exceeded"
)

// GuardrailsState фиксирует бюджет и кэш вызовов советника (Advisor Guardrails, 4.L)
type GuardrailsState struct {
	TotalCalls      int                          `json:"total_calls"`
	DailyCalls      int                          `json:"daily_calls"`
	DailyCost       float64                      `json:"daily_cost"`
	DailyResetDate  string                        `json:"daily_reset_date"` // YYYY-MM-DD
	Cache           map[string]GuardrailsCacheEntry `json:"-"`
	ValidationFail  int                          `json:"validation_fail"`
	TimeoutFail     int                          `json:"timeout_fail"`
	BudgetStop      int                          `json:"budget_stop"`
}

// GuardrailsCacheEntry представляет закэшированный результат advisor-вызова по fingerprint'у
type GuardrailsCacheEntry struct {
	Result    AdvisorDecision
	ExpiresAt time.Time
}

// GuardrailsCounters это снимок публичных счётчиков для отображения/мониторинга
type GuardrailsCounters struct {
	TotalCalls            int     `json:"total_calls"`
	CacheHits             int     `json:"cache_hits"`
	ValidationFailures    int     `json:"validation_failures"`
	TimeoutFailures       int     `json:"timeout_failures"`
	BudgetStops           int     `json:"budget_stops"`
	RemainingDailyCalls   int     `json:"remaining_daily_calls"`
	RemainingDailyBudget  float64 `json:"remaining_daily_budget"`
}

// ConfigRollbackRecord фиксирует одно срабатывание менеджера отката конфигурации (4.J)
type ConfigRollbackRecord struct {
	ID              int       `json:"id" db:"id"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	Trigger         string    `json:"trigger" db:"trigger"` // daily_loss, win_rate, drawdown
	WinRate         float64   `json:"win_rate" db:"win_rate"`
	CumulativePnl   float64   `json:"cumulative_pnl" db:"cumulative_pnl"`
	MaxDrawdownPct  float64   `json:"max_drawdown_pct" db:"max_drawdown_pct"`
	BackupPath      string    `json:"backup_path" db:"backup_path"`
	RestoredFrom    string    `json:"restored_from" db:"restored_from"`
}

// Триггеры отката конфигурации
const (
	RollbackTriggerDailyLoss = "daily_loss"
	RollbackTriggerWinRate   = "win_rate"
	RollbackTriggerDrawdown  = "drawdown"
)
