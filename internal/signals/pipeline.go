package signals

import (
	"context"
	"sync"
	"time"

	"arbitrage/internal/config"
	"arbitrage/internal/models"
)

// Направления внешнего торгового сигнала, подаваемого на вход стратегией
const (
	SignalLong    = "long"
	SignalShort   = "short"
	SignalNeutral = "neutral"
)

// Signal - один сигнал стратегии, оцениваемый пайплайном
type Signal struct {
	Strategy   string
	Direction  string // long, short, neutral
	Strength   float64
	Confidence float64
	Price      float64
	Regime     string  // регим старшего таймфрейма: trend, mean_revert, chop
	Volatility float64
	RSI        float64
	MACD       float64
	ADX        float64
	EMAUp      bool
}

// ExecutionSnapshot - рыночные метрики, проверяемые последним фильтром перед исполнением
type ExecutionSnapshot struct {
	SpreadPct     float64
	VolumeRatio   float64
	ATRSpikeRatio float64
}

// Pipeline прогоняет сигнал через четыре упорядоченные стадии (strategy →
// trend_filter → advisor → execution_filter). В shadow-режиме все стадии
// выполняются всегда, даже после первого отказа, чтобы получить полный
// counterfactual для A/B анализа; в live-режиме пайплайн останавливается
// на первом отказе ради задержки.
type Pipeline struct {
	mu sync.Mutex

	guardrails *Guardrails
	shadow     config.ShadowConfig
	execFilter config.ExecFilterConfig

	lastArbTs time.Time

	decisions  []models.PipelineDecision
	nextID     int
	persistFn  func(*models.PipelineDecision)
	updateFn   func(id int, actuallyExecuted bool, entry, exit, pnl *float64)
}

// NewPipeline создаёт сигнальный пайплайн. updateFn может быть nil, если
// фактические исходы сделок не нужно сохранять отдельно от решения.
func NewPipeline(guardrails *Guardrails, shadow config.ShadowConfig, execFilter config.ExecFilterConfig, persistFn func(*models.PipelineDecision), updateFn func(id int, actuallyExecuted bool, entry, exit, pnl *float64)) *Pipeline {
	return &Pipeline{
		guardrails: guardrails,
		shadow:     shadow,
		execFilter: execFilter,
		persistFn:  persistFn,
		updateFn:   updateFn,
	}
}

// Evaluate проводит сигнал через все стадии и возвращает итоговое решение.
// exec может быть нулевым значением, если рыночный снимок ещё не готов -
// тогда исполнительный фильтр отклоняет сигнал явно.
func (p *Pipeline) Evaluate(ctx context.Context, sig Signal, snapshot ExecutionSnapshot) models.PipelineDecision {
	shadowMode := p.shadow.Enabled

	decision := models.PipelineDecision{
		Timestamp:  time.Now(),
		Price:      sig.Price,
		Regime:     sig.Regime,
		Volatility: sig.Volatility,
		Signal:     sig.Direction,
		Strength:   sig.Strength,
		Confidence: sig.Confidence,
	}

	strategyPass, strategyReason := stageStrategy(sig)
	decision.WouldExecuteStrategy = strategyPass
	if !strategyPass && !shadowMode {
		return p.finalize(decision, models.PipelineStageStrategy, strategyReason)
	}

	trendPass, trendReason := stageTrendFilter(sig)
	decision.WouldExecuteAfterTrend = strategyPass && trendPass
	if !decision.WouldExecuteAfterTrend && !shadowMode {
		return p.finalize(decision, models.PipelineStageTrend, trendReason)
	}

	advisorPass, advisorReason := p.stageAdvisor(ctx, sig)
	decision.WouldExecuteAfterAdvisor = decision.WouldExecuteAfterTrend && advisorPass
	if !decision.WouldExecuteAfterAdvisor && !shadowMode {
		return p.finalize(decision, models.PipelineStageAdvisor, advisorReason)
	}

	execPass, execReason := p.stageExecutionFilter(snapshot)
	decision.WouldExecuteAfterExec = decision.WouldExecuteAfterAdvisor && execPass
	decision.FinalWouldExecute = decision.WouldExecuteAfterExec

	if !decision.FinalWouldExecute {
		var stage, reason string
		switch {
		case !strategyPass:
			stage, reason = models.PipelineStageStrategy, strategyReason
		case !trendPass:
			stage, reason = models.PipelineStageTrend, trendReason
		case !advisorPass:
			stage, reason = models.PipelineStageAdvisor, advisorReason
		default:
			stage, reason = models.PipelineStageExecution, execReason
		}
		return p.finalize(decision, stage, reason)
	}

	p.mu.Lock()
	p.lastArbTs = time.Now()
	p.mu.Unlock()

	return p.finalize(decision, "", "")
}

func (p *Pipeline) finalize(decision models.PipelineDecision, rejectionStage, rejectionReason string) models.PipelineDecision {
	decision.RejectionStage = rejectionStage
	decision.RejectionReason = rejectionReason

	p.mu.Lock()
	p.nextID++
	decision.ID = p.nextID
	p.decisions = append(p.decisions, decision)
	p.mu.Unlock()

	if p.persistFn != nil {
		p.persistFn(&decision)
	}

	return decision
}

// stageStrategy проверяет, что внешний сигнал существует и не нейтрален
func stageStrategy(sig Signal) (bool, string) {
	if sig.Direction == "" || sig.Direction == SignalNeutral {
		return false, "no non-neutral signal"
	}
	return true, ""
}

// stageTrendFilter требует согласия сигнала со старшим таймфреймом, если
// режим явно не mean_revert
func stageTrendFilter(sig Signal) (bool, string) {
	if sig.Regime == "mean_revert" {
		return true, ""
	}
	switch sig.Direction {
	case SignalLong:
		if sig.Regime == "trend" && !sig.EMAUp {
			return false, "long signal against downward higher-timeframe trend"
		}
	case SignalShort:
		if sig.Regime == "trend" && sig.EMAUp {
			return false, "short signal against upward higher-timeframe trend"
		}
	}
	return true, ""
}

func (p *Pipeline) stageAdvisor(ctx context.Context, sig Signal) (bool, string) {
	if p.guardrails == nil {
		return true, ""
	}

	prompt := advisorPrompt(sig)
	decision := p.guardrails.Evaluate(ctx, prompt, SignalContext{
		Strategy:   sig.Strategy,
		SignalKind: sig.Direction,
		RSI:        sig.RSI,
		MACD:       sig.MACD,
		ADX:        sig.ADX,
		EMAUp:      sig.EMAUp,
	})

	if !decision.Execute {
		return false, decision.Reason
	}
	return true, ""
}

func (p *Pipeline) stageExecutionFilter(snapshot ExecutionSnapshot) (bool, string) {
	if snapshot.SpreadPct > p.execFilter.MaxSpreadPct {
		return false, "spread above maximum"
	}
	if snapshot.VolumeRatio < p.execFilter.MinVolumeRatio {
		return false, "volume ratio below minimum"
	}
	if snapshot.ATRSpikeRatio > p.execFilter.MaxATRSpikeRatio {
		return false, "ATR spike ratio above maximum"
	}

	p.mu.Lock()
	lastArb := p.lastArbTs
	p.mu.Unlock()

	if !lastArb.IsZero() && time.Since(lastArb) < p.execFilter.Cooldown {
		return false, "cooldown not elapsed"
	}

	return true, ""
}

func advisorPrompt(sig Signal) string {
	return "strategy=" + sig.Strategy + " direction=" + sig.Direction + " regime=" + sig.Regime
}

// RecordOutcome обновляет ранее добавленную запись реализованным исходом
// сделки после её закрытия
func (p *Pipeline) RecordOutcome(decisionID int, actuallyExecuted bool, entry, exit, pnl *float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.decisions {
		if p.decisions[i].ID != decisionID {
			continue
		}
		p.decisions[i].ActuallyExecuted = actuallyExecuted
		p.decisions[i].ActualEntry = entry
		p.decisions[i].ActualExit = exit
		p.decisions[i].ActualPnl = pnl
		break
	}

	if p.updateFn != nil {
		p.updateFn(decisionID, actuallyExecuted, entry, exit, pnl)
	}
}
