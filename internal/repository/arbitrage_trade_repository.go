package repository

import (
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbitrage/internal/models"
)

var tradeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrArbitrageTradeNotFound возвращается, когда сделка с указанным ID отсутствует
var ErrArbitrageTradeNotFound = errors.New("arbitrage trade not found")

// ArbitrageTradeRepository - работа с таблицей arbitrage_trades, журналом
// сделок Execution Coordinator-а (4.G). Ордера обеих ног сериализуются в JSON,
// поскольку их форма (биржевой ответ) различается между площадками.
type ArbitrageTradeRepository struct {
	db *sql.DB
}

// NewArbitrageTradeRepository создает новый экземпляр репозитория
func NewArbitrageTradeRepository(db *sql.DB) *ArbitrageTradeRepository {
	return &ArbitrageTradeRepository{db: db}
}

// Create сохраняет новую сделку и заполняет её ID
func (r *ArbitrageTradeRepository) Create(t *models.ArbitrageTrade) error {
	buyOrderJSON, sellOrderJSON, err := marshalOrders(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO arbitrage_trades (
			buy_venue, sell_venue, symbol, amount_usd, status,
			expected_pnl, actual_pnl, failure_reason,
			buy_order, sell_order, created_at, updated_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	return r.db.QueryRow(
		query,
		t.Opportunity.BuyVenue, t.Opportunity.SellVenue, t.Opportunity.Symbol, t.AmountUSD, t.Status,
		t.ExpectedPnl, t.ActualPnl, t.FailureReason,
		buyOrderJSON, sellOrderJSON, t.CreatedAt, t.UpdatedAt, t.ClosedAt,
	).Scan(&t.ID)
}

// UpdateStatus обновляет статус, ордера и, при терминальном статусе, итоговый PnL сделки
func (r *ArbitrageTradeRepository) UpdateStatus(t *models.ArbitrageTrade) error {
	buyOrderJSON, sellOrderJSON, err := marshalOrders(t)
	if err != nil {
		return err
	}

	t.UpdatedAt = time.Now()

	query := `
		UPDATE arbitrage_trades
		SET status = $1, actual_pnl = $2, failure_reason = $3,
			buy_order = $4, sell_order = $5, updated_at = $6, closed_at = $7
		WHERE id = $8`

	result, err := r.db.Exec(query, t.Status, t.ActualPnl, t.FailureReason, buyOrderJSON, sellOrderJSON, t.UpdatedAt, t.ClosedAt, t.ID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrArbitrageTradeNotFound
	}
	return nil
}

// GetByID возвращает сделку по ID
func (r *ArbitrageTradeRepository) GetByID(id int) (*models.ArbitrageTrade, error) {
	query := `
		SELECT id, buy_venue, sell_venue, symbol, amount_usd, status,
			expected_pnl, actual_pnl, failure_reason, buy_order, sell_order,
			created_at, updated_at, closed_at
		FROM arbitrage_trades
		WHERE id = $1`

	t := &models.ArbitrageTrade{}
	var buyOrderJSON, sellOrderJSON sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&t.ID, &t.Opportunity.BuyVenue, &t.Opportunity.SellVenue, &t.Opportunity.Symbol, &t.AmountUSD, &t.Status,
		&t.ExpectedPnl, &t.ActualPnl, &t.FailureReason, &buyOrderJSON, &sellOrderJSON,
		&t.CreatedAt, &t.UpdatedAt, &t.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArbitrageTradeNotFound
		}
		return nil, err
	}

	if err := unmarshalOrders(t, buyOrderJSON, sellOrderJSON); err != nil {
		return nil, err
	}

	return t, nil
}

// GetRecent возвращает последние N сделок по убыванию времени создания
func (r *ArbitrageTradeRepository) GetRecent(limit int) ([]*models.ArbitrageTrade, error) {
	query := `
		SELECT id, buy_venue, sell_venue, symbol, amount_usd, status,
			expected_pnl, actual_pnl, failure_reason, buy_order, sell_order,
			created_at, updated_at, closed_at
		FROM arbitrage_trades
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.ArbitrageTrade
	for rows.Next() {
		t := &models.ArbitrageTrade{}
		var buyOrderJSON, sellOrderJSON sql.NullString
		if err := rows.Scan(
			&t.ID, &t.Opportunity.BuyVenue, &t.Opportunity.SellVenue, &t.Opportunity.Symbol, &t.AmountUSD, &t.Status,
			&t.ExpectedPnl, &t.ActualPnl, &t.FailureReason, &buyOrderJSON, &sellOrderJSON,
			&t.CreatedAt, &t.UpdatedAt, &t.ClosedAt,
		); err != nil {
			return nil, err
		}
		if err := unmarshalOrders(t, buyOrderJSON, sellOrderJSON); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// GetClosedSince возвращает завершённые сделки (успешные или неуспешные),
// закрытые после указанного момента - используется Circuit Breaker-ом и
// Config Rollback Manager-ом для восстановления состояния после рестарта
func (r *ArbitrageTradeRepository) GetClosedSince(since time.Time) ([]*models.ArbitrageTrade, error) {
	query := `
		SELECT id, buy_venue, sell_venue, symbol, amount_usd, status,
			expected_pnl, actual_pnl, failure_reason, buy_order, sell_order,
			created_at, updated_at, closed_at
		FROM arbitrage_trades
		WHERE closed_at IS NOT NULL AND closed_at >= $1
		ORDER BY closed_at ASC`

	rows, err := r.db.Query(query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.ArbitrageTrade
	for rows.Next() {
		t := &models.ArbitrageTrade{}
		var buyOrderJSON, sellOrderJSON sql.NullString
		if err := rows.Scan(
			&t.ID, &t.Opportunity.BuyVenue, &t.Opportunity.SellVenue, &t.Opportunity.Symbol, &t.AmountUSD, &t.Status,
			&t.ExpectedPnl, &t.ActualPnl, &t.FailureReason, &buyOrderJSON, &sellOrderJSON,
			&t.CreatedAt, &t.UpdatedAt, &t.ClosedAt,
		); err != nil {
			return nil, err
		}
		if err := unmarshalOrders(t, buyOrderJSON, sellOrderJSON); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

func marshalOrders(t *models.ArbitrageTrade) (buyOrderJSON, sellOrderJSON []byte, err error) {
	if t.BuyOrder != nil {
		buyOrderJSON, err = tradeJSON.Marshal(t.BuyOrder)
		if err != nil {
			return nil, nil, err
		}
	}
	if t.SellOrder != nil {
		sellOrderJSON, err = tradeJSON.Marshal(t.SellOrder)
		if err != nil {
			return nil, nil, err
		}
	}
	return buyOrderJSON, sellOrderJSON, nil
}

func unmarshalOrders(t *models.ArbitrageTrade, buyOrderJSON, sellOrderJSON sql.NullString) error {
	if buyOrderJSON.Valid && buyOrderJSON.String != "" {
		var order models.OrderResult
		if err := tradeJSON.UnmarshalFromString(buyOrderJSON.String, &order); err != nil {
			return err
		}
		t.BuyOrder = &order
	}
	if sellOrderJSON.Valid && sellOrderJSON.String != "" {
		var order models.OrderResult
		if err := tradeJSON.UnmarshalFromString(sellOrderJSON.String, &order); err != nil {
			return err
		}
		t.SellOrder = &order
	}
	return nil
}
