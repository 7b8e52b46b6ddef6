package repository

import (
	"database/sql"

	"arbitrage/internal/models"
)

// RollbackRepository - работа с таблицей config_rollback_history, журналом
// срабатываний Config Rollback Manager-а (4.J)
type RollbackRepository struct {
	db *sql.DB
}

// NewRollbackRepository создает новый экземпляр репозитория
func NewRollbackRepository(db *sql.DB) *RollbackRepository {
	return &RollbackRepository{db: db}
}

// Create сохраняет одно срабатывание отката и заполняет его ID
func (r *RollbackRepository) Create(rec *models.ConfigRollbackRecord) error {
	query := `
		INSERT INTO config_rollback_history (
			timestamp, trigger, win_rate, cumulative_pnl, max_drawdown_pct, backup_path, restored_from
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return r.db.QueryRow(
		query,
		rec.Timestamp, rec.Trigger, rec.WinRate, rec.CumulativePnl, rec.MaxDrawdownPct, rec.BackupPath, rec.RestoredFrom,
	).Scan(&rec.ID)
}

// GetLast возвращает последнее по времени срабатывание, или nil если откатов не было
func (r *RollbackRepository) GetLast() (*models.ConfigRollbackRecord, error) {
	query := `
		SELECT id, timestamp, trigger, win_rate, cumulative_pnl, max_drawdown_pct, backup_path, restored_from
		FROM config_rollback_history
		ORDER BY timestamp DESC
		LIMIT 1`

	rec := &models.ConfigRollbackRecord{}
	err := r.db.QueryRow(query).Scan(
		&rec.ID, &rec.Timestamp, &rec.Trigger, &rec.WinRate, &rec.CumulativePnl, &rec.MaxDrawdownPct, &rec.BackupPath, &rec.RestoredFrom,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// GetAll возвращает всю историю откатов по убыванию времени
func (r *RollbackRepository) GetAll() ([]*models.ConfigRollbackRecord, error) {
	query := `
		SELECT id, timestamp, trigger, win_rate, cumulative_pnl, max_drawdown_pct, backup_path, restored_from
		FROM config_rollback_history
		ORDER BY timestamp DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.ConfigRollbackRecord
	for rows.Next() {
		rec := &models.ConfigRollbackRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.Trigger, &rec.WinRate, &rec.CumulativePnl, &rec.MaxDrawdownPct, &rec.BackupPath, &rec.RestoredFrom,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
