package signals

import (
	"arbitrage/internal/models"
)

// Префиксы воронки пайплайна, используемые в A/B сравнении
const (
	prefixStrategy   = "strategy"
	prefixAfterTrend = "after_trend"
	prefixAfterAdvisor = "after_advisor"
	prefixFinal      = "final"
)

// ABComparison возвращает срез по каждому префиксу воронки: сколько сигналов
// прошло бы на этой стадии, долю принятия и реализованную экспектансию по
// фактически закрытым сделкам среди тех, что прошли бы именно этот префикс.
func (p *Pipeline) ABComparison() []models.ABComparisonRow {
	p.mu.Lock()
	decisions := append([]models.PipelineDecision{}, p.decisions...)
	p.mu.Unlock()

	total := len(decisions)
	if total == 0 {
		return nil
	}

	rows := []models.ABComparisonRow{
		buildRow(prefixStrategy, decisions, func(d models.PipelineDecision) bool { return d.WouldExecuteStrategy }),
		buildRow(prefixAfterTrend, decisions, func(d models.PipelineDecision) bool { return d.WouldExecuteAfterTrend }),
		buildRow(prefixAfterAdvisor, decisions, func(d models.PipelineDecision) bool { return d.WouldExecuteAfterAdvisor }),
		buildRow(prefixFinal, decisions, func(d models.PipelineDecision) bool { return d.FinalWouldExecute }),
	}

	return rows
}

func buildRow(prefix string, decisions []models.PipelineDecision, accepted func(models.PipelineDecision) bool) models.ABComparisonRow {
	row := models.ABComparisonRow{Prefix: prefix, TotalSignals: len(decisions)}

	var pnlSum float64
	for _, d := range decisions {
		if !accepted(d) {
			continue
		}
		row.AcceptedSignals++
		if d.ActuallyExecuted && d.ActualPnl != nil {
			row.RealizedTrades++
			pnlSum += *d.ActualPnl
		}
	}

	if row.TotalSignals > 0 {
		row.AcceptanceRate = float64(row.AcceptedSignals) / float64(row.TotalSignals)
	}
	if row.RealizedTrades > 0 {
		row.ExpectancyPnl = pnlSum / float64(row.RealizedTrades)
	}

	return row
}

// RejectionBreakdown группирует записи по стадии отказа, возвращая количество
// и среднюю силу сигнала для каждой стадии
type RejectionBucket struct {
	Stage             string
	Count             int
	AvgSignalStrength float64
	AvgConfidence     float64
}

// RejectionBreakdown возвращает распределение причин отказа по стадиям пайплайна
func (p *Pipeline) RejectionBreakdown() []RejectionBucket {
	p.mu.Lock()
	decisions := append([]models.PipelineDecision{}, p.decisions...)
	p.mu.Unlock()

	totals := make(map[string]*RejectionBucket)
	order := make([]string, 0, 4)

	for _, d := range decisions {
		if d.RejectionStage == "" {
			continue
		}
		bucket, ok := totals[d.RejectionStage]
		if !ok {
			bucket = &RejectionBucket{Stage: d.RejectionStage}
			totals[d.RejectionStage] = bucket
			order = append(order, d.RejectionStage)
		}
		bucket.Count++
		bucket.AvgSignalStrength += d.Strength
		bucket.AvgConfidence += d.Confidence
	}

	result := make([]RejectionBucket, 0, len(order))
	for _, stage := range order {
		bucket := totals[stage]
		if bucket.Count > 0 {
			bucket.AvgSignalStrength /= float64(bucket.Count)
			bucket.AvgConfidence /= float64(bucket.Count)
		}
		result = append(result, *bucket)
	}

	return result
}
