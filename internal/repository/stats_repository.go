package repository

import (
	"database/sql"
	"strings"
	"time"

	"arbitrage/internal/models"
)

// StatsRepository - агрегация статистики из таблицы trades
type StatsRepository struct {
	db *sql.DB
}

// NewStatsRepository создает новый экземпляр репозитория
func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// RecordTrade записывает завершенную сделку в журнал статистики
func (r *StatsRepository) RecordTrade(pairID int, symbol string, exchanges [2]string, entryTime, exitTime time.Time, pnl float64, wasStopLoss, wasLiquidation bool) error {
	query := `
		INSERT INTO trades (pair_id, symbol, exchanges, entry_time, exit_time, pnl, was_stop_loss, was_liquidation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	exchangesStr := strings.Join(exchanges[:], ",")

	_, err := r.db.Exec(query, pairID, symbol, exchangesStr, entryTime, exitTime, pnl, wasStopLoss, wasLiquidation, time.Now())
	return err
}

// GetStats рассчитывает полный набор агрегатов за все время, день, неделю и месяц
func (r *StatsRepository) GetStats() (*models.Stats, error) {
	now := time.Now()
	stats := &models.Stats{}

	totalTrades, totalPnl, err := r.getTradesStats(time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	stats.TotalTrades, stats.TotalPnl = totalTrades, totalPnl

	todayTrades, todayPnl, err := r.getTradesStats(now.Truncate(24*time.Hour), now)
	if err != nil {
		return nil, err
	}
	stats.TodayTrades, stats.TodayPnl = todayTrades, todayPnl

	weekTrades, weekPnl, err := r.getTradesStats(now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, err
	}
	stats.WeekTrades, stats.WeekPnl = weekTrades, weekPnl

	monthTrades, monthPnl, err := r.getTradesStats(now.AddDate(0, -1, 0), now)
	if err != nil {
		return nil, err
	}
	stats.MonthTrades, stats.MonthPnl = monthTrades, monthPnl

	topByTrades, err := r.GetTopPairsByTrades(5)
	if err != nil {
		return nil, err
	}
	stats.TopPairsByTrades = topByTrades

	topByProfit, err := r.GetTopPairsByProfit(5)
	if err != nil {
		return nil, err
	}
	stats.TopPairsByProfit = topByProfit

	topByLoss, err := r.GetTopPairsByLoss(5)
	if err != nil {
		return nil, err
	}
	stats.TopPairsByLoss = topByLoss

	return stats, nil
}

// getTradesStats возвращает количество сделок и суммарный PnL за период. Нулевые
// from/to означают весь журнал без ограничения по времени.
func (r *StatsRepository) getTradesStats(from, to time.Time) (int, float64, error) {
	var query string
	var args []interface{}

	if from.IsZero() && to.IsZero() {
		query = `SELECT COUNT(*), COALESCE(SUM(pnl), 0) FROM trades`
	} else {
		query = `SELECT COUNT(*), COALESCE(SUM(pnl), 0) FROM trades WHERE exit_time >= $1 AND exit_time <= $2`
		args = []interface{}{from, to}
	}

	var count int
	var pnl float64
	err := r.db.QueryRow(query, args...).Scan(&count, &pnl)
	return count, pnl, err
}

// GetTopPairsByTrades возвращает топ пар по количеству сделок
func (r *StatsRepository) GetTopPairsByTrades(limit int) ([]models.PairStat, error) {
	query := `SELECT symbol, COUNT(*) as trade_count FROM trades GROUP BY symbol ORDER BY trade_count DESC LIMIT $1`
	return r.queryPairStats(query, limit)
}

// GetTopPairsByProfit возвращает топ прибыльных пар
func (r *StatsRepository) GetTopPairsByProfit(limit int) ([]models.PairStat, error) {
	query := `SELECT symbol, SUM(pnl) as total_pnl FROM trades GROUP BY symbol HAVING SUM(pnl) > 0 ORDER BY total_pnl DESC LIMIT $1`
	return r.queryPairStats(query, limit)
}

// GetTopPairsByLoss возвращает топ убыточных пар
func (r *StatsRepository) GetTopPairsByLoss(limit int) ([]models.PairStat, error) {
	query := `SELECT symbol, SUM(pnl) as total_pnl FROM trades GROUP BY symbol HAVING SUM(pnl) < 0 ORDER BY total_pnl ASC LIMIT $1`
	return r.queryPairStats(query, limit)
}

func (r *StatsRepository) queryPairStats(query string, limit int) ([]models.PairStat, error) {
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.PairStat
	for rows.Next() {
		var stat models.PairStat
		if err := rows.Scan(&stat.Symbol, &stat.Value); err != nil {
			return nil, err
		}
		result = append(result, stat)
	}

	return result, rows.Err()
}

// GetPNLBySymbol возвращает суммарный PnL по символу
func (r *StatsRepository) GetPNLBySymbol(symbol string) (float64, error) {
	var pnl float64
	err := r.db.QueryRow(`SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE symbol = $1`, symbol).Scan(&pnl)
	return pnl, err
}

const tradeRecordColumns = `id, pair_id, symbol, exchanges, entry_time, exit_time, pnl, was_stop_loss, was_liquidation, created_at`

// Trade представляет завершенную сделку в журнале статистики (таблица trades)
type Trade struct {
	ID             int       `json:"id" db:"id"`
	PairID         int       `json:"pair_id" db:"pair_id"`
	Symbol         string    `json:"symbol" db:"symbol"`
	Exchanges      [2]string `json:"exchanges" db:"exchanges"`
	EntryTime      time.Time `json:"entry_time" db:"entry_time"`
	ExitTime       time.Time `json:"exit_time" db:"exit_time"`
	Pnl            float64   `json:"pnl" db:"pnl"`
	WasStopLoss    bool      `json:"was_stop_loss" db:"was_stop_loss"`
	WasLiquidation bool      `json:"was_liquidation" db:"was_liquidation"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// GetTradesByPairID возвращает последние N сделок по паре
func (r *StatsRepository) GetTradesByPairID(pairID, limit int) ([]*Trade, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trades WHERE pair_id = $1 ORDER BY exit_time DESC LIMIT $2`
	return r.queryTrades(query, pairID, limit)
}

// GetTradesInTimeRange возвращает до limit сделок в заданном временном окне
func (r *StatsRepository) GetTradesInTimeRange(from, to time.Time, limit int) ([]*Trade, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trades WHERE exit_time >= $1 AND exit_time <= $2 ORDER BY exit_time DESC LIMIT $3`
	return r.queryTrades(query, from, to, limit)
}

func (r *StatsRepository) queryTrades(query string, args ...interface{}) ([]*Trade, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		t := &Trade{}
		var exchangesStr string
		if err := rows.Scan(
			&t.ID, &t.PairID, &t.Symbol, &exchangesStr, &t.EntryTime, &t.ExitTime, &t.Pnl, &t.WasStopLoss, &t.WasLiquidation, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		parts := strings.SplitN(exchangesStr, ",", 2)
		if len(parts) == 2 {
			t.Exchanges = [2]string{parts[0], parts[1]}
		} else if len(parts) == 1 {
			t.Exchanges = [2]string{parts[0], ""}
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// Count возвращает общее количество записанных сделок
func (r *StatsRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count)
	return count, err
}

// ResetCounters очищает журнал сделок (обнуление дисплейных данных статистики)
func (r *StatsRepository) ResetCounters() error {
	_, err := r.db.Exec(`DELETE FROM trades`)
	return err
}

// DeleteOlderThan удаляет записи сделок старше указанного момента
func (r *StatsRepository) DeleteOlderThan(threshold time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM trades WHERE exit_time < $1`, threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
