package bot

import (
	"context"
	"fmt"
	"time"

	"arbitrage/internal/config"
	"arbitrage/internal/exchange"
	"arbitrage/internal/models"
	"arbitrage/pkg/utils"
)

// ExecutionCoordinator управляет последовательной state machine одной
// арбитражной сделки: PENDING → EXECUTING_BUY → EXECUTING_SELL →
// [ROLLING_BACK] → COMPLETED/FAILED. В отличие от OrderExecutor.ExecuteParallel
// (ноги отправляются одновременно), здесь вторая нога открывается только
// после подтверждённого исполнения первой - так первая нога может быть
// откачена независимо, если вторая не заполнится.
type ExecutionCoordinator struct {
	registry  *exchange.Registry
	validator *OrderValidator
	execCfg   config.ExecutionConfig
	ledger    *PositionLedger
}

// NewExecutionCoordinator создаёт координатор исполнения
func NewExecutionCoordinator(registry *exchange.Registry, validator *OrderValidator, execCfg config.ExecutionConfig, ledger *PositionLedger) *ExecutionCoordinator {
	return &ExecutionCoordinator{
		registry:  registry,
		validator: validator,
		execCfg:   execCfg,
		ledger:    ledger,
	}
}

// Execute проводит сделку через всю state machine и мутирует trade на месте.
// Любая неперехваченная ошибка внутри трактуется как отказ продажи, если
// покупка уже исполнена (запускается откат), иначе как отказ покупки.
func (c *ExecutionCoordinator) Execute(ctx context.Context, trade *models.ArbitrageTrade) {
	totalCtx, cancel := context.WithTimeout(ctx, c.execCfg.MaxTotalExecutionTime)
	defer cancel()

	trade.Status = models.TradeStatusPending
	trade.UpdatedAt = time.Now()

	buyVenue := trade.Opportunity.BuyVenue
	sellVenue := trade.Opportunity.SellVenue
	symbol := trade.Opportunity.Symbol

	buyExch, err := c.registry.Get(buyVenue)
	if err != nil {
		c.fail(trade, fmt.Sprintf("buy venue unavailable: %v", err))
		return
	}
	sellExch, err := c.registry.Get(sellVenue)
	if err != nil {
		c.fail(trade, fmt.Sprintf("sell venue unavailable: %v", err))
		return
	}

	buyQty := safeDiv(trade.AmountUSD, trade.Opportunity.BuyAsk)
	if c.validator != nil {
		if limits := c.validator.GetLimits(buyVenue, symbol); limits != nil {
			buyQty = utils.RoundToLotSize(buyQty, limits.QtyStep)
		}
	}

	trade.Status = models.TradeStatusExecutingBuy
	trade.UpdatedAt = time.Now()

	buyResult, err := c.executeLeg(totalCtx, buyExch, symbol, exchange.SideBuy, buyQty)
	if err != nil || buyResult == nil || buyResult.FilledQty <= 0 {
		c.fail(trade, fmt.Sprintf("buy leg failed: %v", err))
		return
	}
	trade.BuyOrder = orderToResult(buyResult)
	if c.ledger != nil {
		c.ledger.Update(buyVenue, symbol, "buy", buyResult.FilledQty, fmt.Sprintf("trade:%d", trade.ID))
	}

	sellQty := buyResult.FilledQty

	trade.Status = models.TradeStatusExecutingSell
	trade.UpdatedAt = time.Now()

	sellResult, sellErr := c.executeLeg(totalCtx, sellExch, symbol, exchange.SideSell, sellQty)
	if sellErr != nil || sellResult == nil || sellResult.FilledQty <= 0 {
		trade.Status = models.TradeStatusRollingBack
		trade.UpdatedAt = time.Now()

		if c.execCfg.AtomicExecutionEnabled {
			if err := c.rollbackBuy(buyExch, symbol, buyResult.FilledQty); err != nil {
				if logger := utils.GetGlobalLogger(); logger != nil {
					logger.Sugar().Errorf("rollback of buy leg on %s failed: %v", buyVenue, err)
				}
			}
		}

		c.fail(trade, fmt.Sprintf("sell leg failed: %v", sellErr))
		return
	}
	trade.SellOrder = orderToResult(sellResult)
	if c.ledger != nil {
		c.ledger.Update(sellVenue, symbol, "sell", sellResult.FilledQty, fmt.Sprintf("trade:%d", trade.ID))
	}

	buyFee := feeOrDefault(buyResult.AvgFillPrice, buyResult.FilledQty)
	sellFee := feeOrDefault(sellResult.AvgFillPrice, sellResult.FilledQty)

	buyCost := buyResult.AvgFillPrice * buyResult.FilledQty
	sellRevenue := sellResult.AvgFillPrice * sellResult.FilledQty
	actualPnl := sellRevenue - buyCost - buyFee - sellFee

	now := time.Now()
	trade.ActualPnl = &actualPnl
	trade.Status = models.TradeStatusCompleted
	trade.UpdatedAt = now
	trade.ClosedAt = &now
}

// executeLeg отправляет рыночный ордер и ограничивает время ожидания
// исполнения max_execution_time_per_leg. Рыночные ордера у подключённых
// адаптеров исполняются синхронно - граница таймаута защищает от
// зависшего сетевого вызова, а не опрашивает отдельный статус ордера.
func (c *ExecutionCoordinator) executeLeg(ctx context.Context, exch exchange.Exchange, symbol, side string, qty float64) (*exchange.Order, error) {
	legCtx, cancel := context.WithTimeout(ctx, c.execCfg.MaxExecutionTimePerLeg)
	defer cancel()

	type legOutcome struct {
		order *exchange.Order
		err   error
	}
	resultCh := make(chan legOutcome, 1)

	go func() {
		order, err := exch.PlaceMarketOrder(legCtx, symbol, side, qty)
		resultCh <- legOutcome{order: order, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.order, res.err
	case <-legCtx.Done():
		return nil, legCtx.Err()
	}
}

// rollbackBuy продаёт обратно исполненное количество покупки на той же бирже.
// Ошибка отката логируется вызывающей стороной, но не эскалируется дальше -
// вложенных откатов не бывает.
func (c *ExecutionCoordinator) rollbackBuy(exch exchange.Exchange, symbol string, qty float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.execCfg.MaxExecutionTimePerLeg)
	defer cancel()

	_, err := exch.PlaceMarketOrder(ctx, symbol, exchange.SideSell, qty)
	return err
}

func (c *ExecutionCoordinator) fail(trade *models.ArbitrageTrade, reason string) {
	now := time.Now()
	trade.Status = models.TradeStatusFailed
	trade.FailureReason = reason
	trade.UpdatedAt = now
	trade.ClosedAt = &now
}

func orderToResult(o *exchange.Order) *models.OrderResult {
	if o == nil {
		return nil
	}
	status := models.OrderResultOpen
	switch o.Status {
	case exchange.OrderStatusFilled:
		status = models.OrderResultClosed
	case exchange.OrderStatusCancelled, exchange.OrderStatusRejected:
		status = models.OrderResultCanceled
	}
	return &models.OrderResult{
		Success:   o.FilledQty > 0,
		OrderID:   o.ID,
		AvgPrice:  o.AvgFillPrice,
		FilledQty: o.FilledQty,
		Status:    status,
	}
}

// feeOrDefault оценивает комиссию в 6 б.п. от notional, когда биржа не
// сообщает комиссию напрямую в ответе ордера.
func feeOrDefault(price, qty float64) float64 {
	return price * qty * 0.0006
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
