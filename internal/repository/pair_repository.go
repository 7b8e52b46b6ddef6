package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"arbitrage/internal/models"
)

// Ошибки репозитория торговых пар
var (
	ErrPairNotFound = errors.New("pair not found")
	ErrPairExists   = errors.New("pair already exists")
)

// PairRepository - работа с таблицей pairs
type PairRepository struct {
	db *sql.DB
}

// NewPairRepository создает новый экземпляр репозитория
func NewPairRepository(db *sql.DB) *PairRepository {
	return &PairRepository{db: db}
}

// Create создает новую торговую пару. Статус по умолчанию - paused.
func (r *PairRepository) Create(pair *models.PairConfig) error {
	status := pair.Status
	if status == "" {
		status = models.PairStatusPaused
	}

	query := `
		INSERT INTO pairs (
			symbol, base, quote, entry_spread_pct, exit_spread_pct, volume_asset,
			n_orders, stop_loss, status, trades_count, total_pnl, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	now := time.Now()
	pair.CreatedAt = now
	pair.UpdatedAt = now

	err := r.db.QueryRow(
		query,
		pair.Symbol, pair.Base, pair.Quote, pair.EntrySpreadPct, pair.ExitSpreadPct, pair.VolumeAsset,
		pair.NOrders, pair.StopLoss, status, 0, float64(0), pair.CreatedAt, pair.UpdatedAt,
	).Scan(&pair.ID)

	if err != nil {
		if isPairUniqueViolation(err) {
			return ErrPairExists
		}
		return err
	}

	pair.Status = status
	return nil
}

const pairColumns = `id, symbol, base, quote, entry_spread_pct, exit_spread_pct, volume_asset, n_orders, stop_loss, status, trades_count, total_pnl, created_at, updated_at`

// GetByID возвращает пару по ID
func (r *PairRepository) GetByID(id int) (*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE id = $1`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySymbol возвращает пару по символу
func (r *PairRepository) GetBySymbol(symbol string) (*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE symbol = $1`
	return r.scanOne(r.db.QueryRow(query, symbol))
}

func (r *PairRepository) scanOne(row *sql.Row) (*models.PairConfig, error) {
	pair := &models.PairConfig{}
	err := row.Scan(
		&pair.ID, &pair.Symbol, &pair.Base, &pair.Quote, &pair.EntrySpreadPct, &pair.ExitSpreadPct, &pair.VolumeAsset,
		&pair.NOrders, &pair.StopLoss, &pair.Status, &pair.TradesCount, &pair.TotalPnl, &pair.CreatedAt, &pair.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}
	return pair, nil
}

// GetAll возвращает все пары, отсортированные по дате создания
func (r *PairRepository) GetAll() ([]*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs ORDER BY created_at DESC`
	return r.queryMany(query)
}

// GetActive возвращает активные пары
func (r *PairRepository) GetActive() ([]*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE status = $1`
	return r.queryMany(query, models.PairStatusActive)
}

// GetPaused возвращает приостановленные пары
func (r *PairRepository) GetPaused() ([]*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE status = $1`
	return r.queryMany(query, models.PairStatusPaused)
}

// Search ищет пары по символу или базовому активу (регистронезависимо)
func (r *PairRepository) Search(q string) ([]*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE LOWER(symbol) LIKE LOWER($1) OR LOWER(base) LIKE LOWER($2)`
	like := "%" + q + "%"
	return r.queryMany(query, like, like)
}

func (r *PairRepository) queryMany(query string, args ...interface{}) ([]*models.PairConfig, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.PairConfig
	for rows.Next() {
		pair := &models.PairConfig{}
		if err := rows.Scan(
			&pair.ID, &pair.Symbol, &pair.Base, &pair.Quote, &pair.EntrySpreadPct, &pair.ExitSpreadPct, &pair.VolumeAsset,
			&pair.NOrders, &pair.StopLoss, &pair.Status, &pair.TradesCount, &pair.TotalPnl, &pair.CreatedAt, &pair.UpdatedAt,
		); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	return pairs, rows.Err()
}

// Update полностью обновляет данные пары
func (r *PairRepository) Update(pair *models.PairConfig) error {
	query := `
		UPDATE pairs SET
			symbol = $1, base = $2, quote = $3, entry_spread_pct = $4, exit_spread_pct = $5, volume_asset = $6,
			n_orders = $7, stop_loss = $8, status = $9, trades_count = $10, total_pnl = $11, updated_at = $12
		WHERE id = $13`

	pair.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		query,
		pair.Symbol, pair.Base, pair.Quote, pair.EntrySpreadPct, pair.ExitSpreadPct, pair.VolumeAsset,
		pair.NOrders, pair.StopLoss, pair.Status, pair.TradesCount, pair.TotalPnl, pair.UpdatedAt,
		pair.ID,
	)
	if err != nil {
		return err
	}

	return checkRowsAffected(result, ErrPairNotFound)
}

// UpdateParams обновляет только торговые параметры пары
func (r *PairRepository) UpdateParams(id int, entrySpreadPct, exitSpreadPct, volumeAsset float64, nOrders int, stopLoss float64) error {
	query := `UPDATE pairs SET entry_spread_pct = $1, exit_spread_pct = $2, volume_asset = $3, n_orders = $4, stop_loss = $5, updated_at = $6 WHERE id = $7`

	result, err := r.db.Exec(query, entrySpreadPct, exitSpreadPct, volumeAsset, nOrders, stopLoss, time.Now(), id)
	if err != nil {
		return err
	}

	return checkRowsAffected(result, ErrPairNotFound)
}

// Delete удаляет пару по ID
func (r *PairRepository) Delete(id int) error {
	query := `DELETE FROM pairs WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	return checkRowsAffected(result, ErrPairNotFound)
}

// UpdateStatus переключает статус пары (active/paused)
func (r *PairRepository) UpdateStatus(id int, status string) error {
	if status != models.PairStatusActive && status != models.PairStatusPaused {
		return fmt.Errorf("invalid pair status: %s", status)
	}

	query := `UPDATE pairs SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return err
	}

	return checkRowsAffected(result, ErrPairNotFound)
}

// IncrementTrades увеличивает счетчик сделок пары на единицу
func (r *PairRepository) IncrementTrades(id int) error {
	query := `UPDATE pairs SET trades_count = trades_count + 1, updated_at = $1 WHERE id = $2`

	_, err := r.db.Exec(query, time.Now(), id)
	return err
}

// UpdatePnl добавляет значение к накопленному PnL пары
func (r *PairRepository) UpdatePnl(id int, pnl float64) error {
	query := `UPDATE pairs SET total_pnl = total_pnl + $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.Exec(query, pnl, time.Now(), id)
	return err
}

// ResetStats обнуляет локальную статистику пары
func (r *PairRepository) ResetStats(id int) error {
	query := `UPDATE pairs SET trades_count = 0, total_pnl = 0, updated_at = $1 WHERE id = $2`

	_, err := r.db.Exec(query, time.Now(), id)
	return err
}

// Count возвращает общее количество пар
func (r *PairRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pairs`).Scan(&count)
	return count, err
}

// CountActive возвращает количество активных пар
func (r *PairRepository) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pairs WHERE status = $1`, models.PairStatusActive).Scan(&count)
	return count, err
}

// ExistsBySymbol проверяет существование пары по символу
func (r *PairRepository) ExistsBySymbol(symbol string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM pairs WHERE symbol = $1)`, symbol).Scan(&exists)
	return exists, err
}

// isPairUniqueViolation распознаёт нарушение уникального ограничения по тексту ошибки драйвера
func isPairUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505") || strings.Contains(msg, "unique constraint")
}
