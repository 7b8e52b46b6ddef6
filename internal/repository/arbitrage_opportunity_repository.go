package repository

import (
	"database/sql"

	"arbitrage/internal/models"
)

// ArbitrageOpportunityRepository - работа с таблицей arbitrage_opportunities,
// куда Arbitrage Engine (4.H) записывает каждую оценённую возможность, прошедшую
// фильтры Opportunity Detector-а (4.D), независимо от того, была ли она разрешена гейтом
type ArbitrageOpportunityRepository struct {
	db *sql.DB
}

// NewArbitrageOpportunityRepository создает новый экземпляр репозитория
func NewArbitrageOpportunityRepository(db *sql.DB) *ArbitrageOpportunityRepository {
	return &ArbitrageOpportunityRepository{db: db}
}

// Create сохраняет одну оценённую возможность
func (r *ArbitrageOpportunityRepository) Create(o *models.Opportunity) error {
	query := `
		INSERT INTO arbitrage_opportunities (
			buy_venue, sell_venue, symbol, buy_ask, sell_bid, spread_pct, ts_ms,
			gross_profit, net_profit, buy_fee_rate, sell_fee_rate,
			est_buy_slip, est_sell_slip, buy_depth_usd, sell_depth_usd, risk_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.Exec(query,
		o.BuyVenue, o.SellVenue, o.Symbol, o.BuyAsk, o.SellBid, o.SpreadPct, o.TimestampMs,
		o.GrossProfit, o.NetProfit, o.BuyFeeRate, o.SellFeeRate,
		o.EstBuySlip, o.EstSellSlip, o.BuyDepthUSD, o.SellDepthUSD, o.RiskScore,
	)
	return err
}

// GetTopByNetProfit возвращает последние N возможностей, отсортированных по
// чистой прибыли по убыванию - для обзорных дашбордов
func (r *ArbitrageOpportunityRepository) GetTopByNetProfit(limit int) ([]*models.Opportunity, error) {
	query := `
		SELECT buy_venue, sell_venue, symbol, buy_ask, sell_bid, spread_pct, ts_ms,
			gross_profit, net_profit, buy_fee_rate, sell_fee_rate,
			est_buy_slip, est_sell_slip, buy_depth_usd, sell_depth_usd, risk_score
		FROM arbitrage_opportunities
		ORDER BY net_profit DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opportunities []*models.Opportunity
	for rows.Next() {
		o := &models.Opportunity{}
		if err := rows.Scan(
			&o.BuyVenue, &o.SellVenue, &o.Symbol, &o.BuyAsk, &o.SellBid, &o.SpreadPct, &o.TimestampMs,
			&o.GrossProfit, &o.NetProfit, &o.BuyFeeRate, &o.SellFeeRate,
			&o.EstBuySlip, &o.EstSellSlip, &o.BuyDepthUSD, &o.SellDepthUSD, &o.RiskScore,
		); err != nil {
			return nil, err
		}
		opportunities = append(opportunities, o)
	}

	return opportunities, rows.Err()
}

// CountSince возвращает количество возможностей, записанных после указанной временной метки
func (r *ArbitrageOpportunityRepository) CountSince(tsMs int64) (int, error) {
	query := `SELECT COUNT(*) FROM arbitrage_opportunities WHERE ts_ms >= $1`

	var count int
	err := r.db.QueryRow(query, tsMs).Scan(&count)
	return count, err
}
