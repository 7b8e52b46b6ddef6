package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"arbitrage/internal/config"
	"arbitrage/internal/models"
	"arbitrage/internal/signals"
)

func testExecFilterConfig() config.ExecFilterConfig {
	return config.ExecFilterConfig{MaxSpreadPct: 1.0, MinVolumeRatio: 0.5, MaxATRSpikeRatio: 3.0}
}

func TestSignalHandler_EvaluateSignalPassesAllStages(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	body, _ := json.Marshal(map[string]interface{}{
		"direction":    "long",
		"regime":       "chop",
		"confidence":   0.9,
		"spread_pct":   0.1,
		"volume_ratio": 1.0,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/evaluate", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.EvaluateSignal(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var decision models.PipelineDecision
	if err := json.NewDecoder(w.Body).Decode(&decision); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !decision.FinalWouldExecute {
		t.Errorf("expected the signal to pass all stages, got %+v", decision)
	}
}

func TestSignalHandler_EvaluateSignalRejectsMalformedBody(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/evaluate", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	h.EvaluateSignal(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestSignalHandler_EvaluateSignalReportsRejectionStage(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	body, _ := json.Marshal(map[string]interface{}{"direction": "neutral"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/evaluate", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.EvaluateSignal(w, req)

	var decision models.PipelineDecision
	if err := json.NewDecoder(w.Body).Decode(&decision); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decision.FinalWouldExecute {
		t.Error("expected neutral direction to be rejected")
	}
	if decision.RejectionStage != models.PipelineStageStrategy {
		t.Errorf("expected rejection at strategy stage, got %q", decision.RejectionStage)
	}
}

func TestSignalHandler_GetABComparison(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/ab-comparison", nil)
	w := httptest.NewRecorder()

	h.GetABComparison(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSignalHandler_GetRejectionBreakdown(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/rejection-breakdown", nil)
	w := httptest.NewRecorder()

	h.GetRejectionBreakdown(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSignalHandler_RecordOutcomeRejectsInvalidID(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/abc/outcome", bytes.NewReader([]byte(`{}`)))
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})
	w := httptest.NewRecorder()

	h.RecordOutcome(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", w.Code)
	}
}

func TestSignalHandler_RecordOutcomeRejectsMalformedBody(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/1/outcome", bytes.NewReader([]byte("{not json")))
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	w := httptest.NewRecorder()

	h.RecordOutcome(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestSignalHandler_RecordOutcomeSucceeds(t *testing.T) {
	pipeline := signals.NewPipeline(nil, config.ShadowConfig{}, testExecFilterConfig(), nil, nil)
	h := NewSignalHandler(pipeline)

	pnl := 12.5
	body, _ := json.Marshal(map[string]interface{}{"actually_executed": true, "pnl": pnl})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/1/outcome", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	w := httptest.NewRecorder()

	h.RecordOutcome(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}
