package repository

import (
	"database/sql"

	jsoniter "github.com/json-iterator/go"

	"arbitrage/internal/models"
)

var shadowJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ShadowRepository - работа с таблицей shadow_decisions, в которую Signal
// Pipeline (4.K) пишет один append-only ряд на сигнал и позже дополняет его
// реализованным исходом
type ShadowRepository struct {
	db *sql.DB
}

// NewShadowRepository создает новый экземпляр репозитория
func NewShadowRepository(db *sql.DB) *ShadowRepository {
	return &ShadowRepository{db: db}
}

// Create сохраняет новую запись пайплайна и заполняет её ID
func (r *ShadowRepository) Create(d *models.PipelineDecision) error {
	query := `
		INSERT INTO shadow_decisions (
			trade_id, ts, price, regime, volatility, signal, strength, confidence,
			would_execute_strategy, would_execute_after_trend, would_execute_after_advisor,
			would_execute_after_exec, final_would_execute,
			rejection_stage, rejection_reason, per_stage_details,
			actually_executed, actual_entry, actual_exit, actual_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`

	return r.db.QueryRow(
		query,
		d.TradeID, d.Timestamp, d.Price, d.Regime, d.Volatility, d.Signal, d.Strength, d.Confidence,
		d.WouldExecuteStrategy, d.WouldExecuteAfterTrend, d.WouldExecuteAfterAdvisor,
		d.WouldExecuteAfterExec, d.FinalWouldExecute,
		d.RejectionStage, d.RejectionReason, d.PerStageDetails,
		d.ActuallyExecuted, d.ActualEntry, d.ActualExit, d.ActualPnl,
	).Scan(&d.ID)
}

// UpdateOutcome дополняет ранее вставленную запись фактическим исходом сделки
func (r *ShadowRepository) UpdateOutcome(id int, actuallyExecuted bool, entry, exit, pnl *float64) error {
	query := `
		UPDATE shadow_decisions
		SET actually_executed = $1, actual_entry = $2, actual_exit = $3, actual_pnl = $4
		WHERE id = $5`

	_, err := r.db.Exec(query, actuallyExecuted, entry, exit, pnl, id)
	return err
}

// GetSince возвращает все записи пайплайна после указанного момента - основа
// для A/B сравнения и разбора причин отказа
func (r *ShadowRepository) GetSince(sinceUnixMs int64) ([]*models.PipelineDecision, error) {
	query := `
		SELECT id, trade_id, ts, price, regime, volatility, signal, strength, confidence,
			would_execute_strategy, would_execute_after_trend, would_execute_after_advisor,
			would_execute_after_exec, final_would_execute,
			rejection_stage, rejection_reason, per_stage_details,
			actually_executed, actual_entry, actual_exit, actual_pnl
		FROM shadow_decisions
		WHERE ts >= to_timestamp($1 / 1000.0)
		ORDER BY ts ASC`

	rows, err := r.db.Query(query, sinceUnixMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.PipelineDecision
	for rows.Next() {
		d := &models.PipelineDecision{}
		if err := rows.Scan(
			&d.ID, &d.TradeID, &d.Timestamp, &d.Price, &d.Regime, &d.Volatility, &d.Signal, &d.Strength, &d.Confidence,
			&d.WouldExecuteStrategy, &d.WouldExecuteAfterTrend, &d.WouldExecuteAfterAdvisor,
			&d.WouldExecuteAfterExec, &d.FinalWouldExecute,
			&d.RejectionStage, &d.RejectionReason, &d.PerStageDetails,
			&d.ActuallyExecuted, &d.ActualEntry, &d.ActualExit, &d.ActualPnl,
		); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

// marshalDetails сериализует произвольные детали стадии в JSON-строку для
// хранения в колонке per_stage_details
func marshalDetails(details map[string]interface{}) (string, error) {
	if len(details) == 0 {
		return "", nil
	}
	raw, err := shadowJSON.Marshal(details)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
