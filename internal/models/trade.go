package models

import "time"

// Состояния жизненного цикла арбитражной сделки (Execution Coordinator, 4.G)
const (
	TradeStatusPending       = "PENDING"
	TradeStatusExecutingBuy  = "EXECUTING_BUY"
	TradeStatusExecutingSell = "EXECUTING_SELL"
	TradeStatusRollingBack   = "ROLLING_BACK"
	TradeStatusCompleted     = "COMPLETED"
	TradeStatusFailed        = "FAILED"
)

// OrderResult описывает исход одного обращения к бирже, затрагивающего ордер
type OrderResult struct {
	Success   bool    `json:"success"`
	OrderID   string  `json:"order_id,omitempty"`
	AvgPrice  float64 `json:"avg_price,omitempty"`
	FilledQty float64 `json:"filled_qty,omitempty"`
	Fee       float64 `json:"fee,omitempty"`
	Status    string  `json:"status"` // open, closed, canceled
	Raw       string  `json:"raw,omitempty"`
}

// Статусы OrderResult
const (
	OrderResultOpen     = "open"
	OrderResultClosed   = "closed"
	OrderResultCanceled = "canceled"
)

// ArbitrageTrade представляет одну исполняемую арбитражную сделку
type ArbitrageTrade struct {
	ID             int         `json:"id" db:"id"`
	Opportunity    Opportunity `json:"opportunity" db:"-"`
	Status         string      `json:"status" db:"status"`
	AmountUSD      float64     `json:"amount_usd" db:"amount_usd"`
	BuyOrder       *OrderResult `json:"buy_order,omitempty" db:"-"`
	SellOrder      *OrderResult `json:"sell_order,omitempty" db:"-"`
	ExpectedPnl    float64     `json:"expected_pnl" db:"expected_pnl"`
	ActualPnl      *float64    `json:"actual_pnl,omitempty" db:"actual_pnl"`
	FailureReason  string      `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
	ClosedAt       *time.Time  `json:"closed_at,omitempty" db:"closed_at"`
}

// IsTerminal возвращает true для конечных состояний сделки
func (t *ArbitrageTrade) IsTerminal() bool {
	return t.Status == TradeStatusCompleted || t.Status == TradeStatusFailed
}

// IsSuccessful возвращает true если сделка завершилась успешно
func (t *ArbitrageTrade) IsSuccessful() bool {
	return t.Status == TradeStatusCompleted
}
