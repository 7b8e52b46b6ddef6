package models

import "time"

// Стадии сигнального пайплайна (Signal Pipeline, 4.K)
const (
	PipelineStageStrategy  = "strategy"
	PipelineStageTrend     = "trend_filter"
	PipelineStageAdvisor   = "advisor"
	PipelineStageExecution = "execution_filter"
)

// PipelineDecision фиксирует один проход пайплайна по одному бару/сигналу.
// Запись добавляется один раз (append-only) и позже дополняется полями исхода.
type PipelineDecision struct {
	ID                        int        `json:"id" db:"id"`
	TradeID                   *int       `json:"trade_id,omitempty" db:"trade_id"`
	Timestamp                 time.Time  `json:"ts" db:"ts"`
	Price                     float64    `json:"price" db:"price"`
	Regime                    string     `json:"regime" db:"regime"` // trend, mean_revert, chop
	Volatility                float64    `json:"volatility" db:"volatility"`
	Signal                    string     `json:"signal" db:"signal"`
	Strength                  float64    `json:"strength" db:"strength"`
	Confidence                float64    `json:"confidence" db:"confidence"`
	WouldExecuteStrategy      bool       `json:"would_execute_strategy" db:"would_execute_strategy"`
	WouldExecuteAfterTrend    bool       `json:"would_execute_after_trend" db:"would_execute_after_trend"`
	WouldExecuteAfterAdvisor  bool       `json:"would_execute_after_advisor" db:"would_execute_after_advisor"`
	WouldExecuteAfterExec     bool       `json:"would_execute_after_exec" db:"would_execute_after_exec"`
	FinalWouldExecute         bool       `json:"final_would_execute" db:"final_would_execute"`
	RejectionStage            string     `json:"rejection_stage,omitempty" db:"rejection_stage"`
	RejectionReason           string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	PerStageDetails           string     `json:"per_stage_details,omitempty" db:"per_stage_details"` // JSON-сериализованные детали по стадиям
	ActuallyExecuted          bool       `json:"actually_executed" db:"actually_executed"`
	ActualEntry               *float64   `json:"actual_entry,omitempty" db:"actual_entry"`
	ActualExit                *float64   `json:"actual_exit,omitempty" db:"actual_exit"`
	ActualPnl                 *float64   `json:"actual_pnl,omitempty" db:"actual_pnl"`
}

// StageResult представляет результат одной стадии пайплайна
type StageResult struct {
	Stage   string                 `json:"stage"`
	Pass    bool                   `json:"pass"`
	Reason  string                 `json:"reason,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// AdvisorDecision представляет структурированный ответ советника (или fallback)
type AdvisorDecision struct {
	Execute       bool     `json:"execute"`
	Confidence    float64  `json:"confidence"`
	Regime        string   `json:"regime"`         // trend, mean_revert, chop
	SignalQuality float64  `json:"signal_quality"` // [0,1]
	RiskFlags     []string `json:"risk_flags,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	FromCache     bool     `json:"from_cache,omitempty"`
	FromFallback  bool     `json:"from_fallback,omitempty"`
}

// ABComparisonRow агрегирует сделки по counterfactual-префиксу для A/B анализа
type ABComparisonRow struct {
	Prefix          string  `json:"prefix"` // strategy, after_trend, after_advisor, after_exec, final
	TotalSignals    int     `json:"total_signals"`
	AcceptedSignals int     `json:"accepted_signals"`
	AcceptanceRate  float64 `json:"acceptance_rate"`
	RealizedTrades  int     `json:"realized_trades"`
	ExpectancyPnl   float64 `json:"expectancy_pnl"`
}
