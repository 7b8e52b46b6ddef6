package repository

import (
	"database/sql"
	"time"

	"arbitrage/internal/models"
)

// ArbitrageSpreadRepository - работа с таблицей arbitrage_spreads, которая
// хранит каждый направленный спред, вычисленный Spread Monitor-ом (4.C)
type ArbitrageSpreadRepository struct {
	db *sql.DB
}

// NewArbitrageSpreadRepository создает новый экземпляр репозитория
func NewArbitrageSpreadRepository(db *sql.DB) *ArbitrageSpreadRepository {
	return &ArbitrageSpreadRepository{db: db}
}

// Create сохраняет один снимок спреда
func (r *ArbitrageSpreadRepository) Create(s *models.Spread) error {
	query := `
		INSERT INTO arbitrage_spreads (buy_venue, sell_venue, symbol, buy_ask, sell_bid, spread_pct, ts_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query, s.BuyVenue, s.SellVenue, s.Symbol, s.BuyAsk, s.SellBid, s.SpreadPct, s.TimestampMs)
	return err
}

// GetHistory возвращает последние N спредов для заданного направления
func (r *ArbitrageSpreadRepository) GetHistory(buyVenue, sellVenue, symbol string, limit int) ([]*models.Spread, error) {
	query := `
		SELECT buy_venue, sell_venue, symbol, buy_ask, sell_bid, spread_pct, ts_ms
		FROM arbitrage_spreads
		WHERE buy_venue = $1 AND sell_venue = $2 AND symbol = $3
		ORDER BY ts_ms DESC
		LIMIT $4`

	rows, err := r.db.Query(query, buyVenue, sellVenue, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spreads []*models.Spread
	for rows.Next() {
		s := &models.Spread{}
		if err := rows.Scan(&s.BuyVenue, &s.SellVenue, &s.Symbol, &s.BuyAsk, &s.SellBid, &s.SpreadPct, &s.TimestampMs); err != nil {
			return nil, err
		}
		spreads = append(spreads, s)
	}

	return spreads, rows.Err()
}

// DeleteOlderThan удаляет снимки спредов старше указанного момента, чтобы
// таблица не росла неограниченно при высокой частоте опроса
func (r *ArbitrageSpreadRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM arbitrage_spreads WHERE ts_ms < $1`

	result, err := r.db.Exec(query, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
