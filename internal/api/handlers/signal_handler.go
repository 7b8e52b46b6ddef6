package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"arbitrage/internal/signals"

	"github.com/gorilla/mux"
)

// SignalHandler отвечает за прогон внешних торговых сигналов через
// сигнальный пайплайн (strategy -> trend_filter -> advisor -> execution_filter)
// и за отчетность shadow-режима (A/B сравнение, разбивка отказов по стадиям)
//
// Endpoints:
// - POST /api/v1/signals/evaluate - оценка сигнала
// - GET /api/v1/signals/ab-comparison - сравнение live/shadow по стадиям
// - GET /api/v1/signals/rejection-breakdown - разбивка причин отказа
// - POST /api/v1/signals/{id}/outcome - запись фактического результата сделки по решению
type SignalHandler struct {
	pipeline *signals.Pipeline
}

// NewSignalHandler создает новый SignalHandler с внедрением зависимостей
func NewSignalHandler(pipeline *signals.Pipeline) *SignalHandler {
	return &SignalHandler{pipeline: pipeline}
}

type evaluateSignalRequest struct {
	Strategy   string  `json:"strategy"`
	Direction  string  `json:"direction"`
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
	Price      float64 `json:"price"`
	Regime     string  `json:"regime"`
	Volatility float64 `json:"volatility"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	ADX        float64 `json:"adx"`
	EMAUp      bool    `json:"ema_up"`

	SpreadPct     float64 `json:"spread_pct"`
	VolumeRatio   float64 `json:"volume_ratio"`
	ATRSpikeRatio float64 `json:"atr_spike_ratio"`
}

// EvaluateSignal прогоняет внешний сигнал стратегии через пайплайн
//
// POST /api/v1/signals/evaluate
func (h *SignalHandler) EvaluateSignal(w http.ResponseWriter, r *http.Request) {
	var req evaluateSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sig := signals.Signal{
		Strategy:   req.Strategy,
		Direction:  req.Direction,
		Strength:   req.Strength,
		Confidence: req.Confidence,
		Price:      req.Price,
		Regime:     req.Regime,
		Volatility: req.Volatility,
		RSI:        req.RSI,
		MACD:       req.MACD,
		ADX:        req.ADX,
		EMAUp:      req.EMAUp,
	}
	snapshot := signals.ExecutionSnapshot{
		SpreadPct:     req.SpreadPct,
		VolumeRatio:   req.VolumeRatio,
		ATRSpikeRatio: req.ATRSpikeRatio,
	}

	decision := h.pipeline.Evaluate(r.Context(), sig, snapshot)
	respondJSON(w, http.StatusOK, decision)
}

// GetABComparison возвращает сравнение принятых/отклоненных сигналов по стадиям
//
// GET /api/v1/signals/ab-comparison
func (h *SignalHandler) GetABComparison(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pipeline.ABComparison())
}

// GetRejectionBreakdown возвращает разбивку причин отказа по стадиям
//
// GET /api/v1/signals/rejection-breakdown
func (h *SignalHandler) GetRejectionBreakdown(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pipeline.RejectionBreakdown())
}

type recordOutcomeRequest struct {
	ActuallyExecuted bool     `json:"actually_executed"`
	Entry            *float64 `json:"entry"`
	Exit             *float64 `json:"exit"`
	Pnl              *float64 `json:"pnl"`
}

// RecordOutcome записывает фактический результат по ранее оцененному решению
//
// POST /api/v1/signals/{id}/outcome
func (h *SignalHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid decision id")
		return
	}

	var req recordOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.pipeline.RecordOutcome(id, req.ActuallyExecuted, req.Entry, req.Exit, req.Pnl)
	w.WriteHeader(http.StatusNoContent)
}
