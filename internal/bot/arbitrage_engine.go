package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"arbitrage/internal/config"
	"arbitrage/internal/exchange"
	"arbitrage/internal/models"
	"arbitrage/pkg/utils"
)

// rollbackAuditBatch - сколько новых закрытых сделок накапливается перед
// очередным обращением к ConfigRollbackManager.Evaluate
const rollbackAuditBatch = 10

// ArbitrageEngine - супервизор верхнего уровня: на каждом тике спрашивает
// Spread Monitor о последних спредах, Opportunity Detector - о ранжированных
// возможностях, пропускает лучшую через риск-гейт и, если разрешено,
// проводит её через Execution Coordinator. Владеет ровно одним символом
// арбитража и торговым циклом полностью сам.
type ArbitrageEngine struct {
	monitor    *SpreadMonitor
	detector   *OpportunityDetector
	gate       *ArbitrageRiskGate
	coordinator *ExecutionCoordinator
	ledger     *PositionLedger
	breaker    *CircuitBreaker
	rollback   *ConfigRollbackManager
	registry   *exchange.Registry

	cfg config.EngineConfig

	persistTrade       func(*models.ArbitrageTrade)
	persistOpportunity func(*models.Opportunity)

	nextTradeID int64

	mu              sync.Mutex
	recentTrades    []*models.ArbitrageTrade
	dailyStart      float64
	sinceLastAudit  int
	paused          atomic.Bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewArbitrageEngine собирает супервизор из уже построенных компонентов
func NewArbitrageEngine(
	monitor *SpreadMonitor,
	detector *OpportunityDetector,
	gate *ArbitrageRiskGate,
	coordinator *ExecutionCoordinator,
	ledger *PositionLedger,
	breaker *CircuitBreaker,
	rollback *ConfigRollbackManager,
	registry *exchange.Registry,
	cfg config.EngineConfig,
	persistTrade func(*models.ArbitrageTrade),
	persistOpportunity func(*models.Opportunity),
) *ArbitrageEngine {
	return &ArbitrageEngine{
		monitor:            monitor,
		detector:           detector,
		gate:               gate,
		coordinator:        coordinator,
		ledger:             ledger,
		breaker:            breaker,
		rollback:           rollback,
		registry:           registry,
		cfg:                cfg,
		persistTrade:       persistTrade,
		persistOpportunity: persistOpportunity,
	}
}

// Start запускает цикл Spread Monitor-а и собственный цикл сканирования как
// фоновые задачи
func (e *ArbitrageEngine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopCh != nil {
		e.mu.Unlock()
		return
	}
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	if e.monitor != nil {
		e.monitor.Start(ctx)
	}

	go e.loop(ctx)
}

// Stop сигнализирует обоим циклам остановиться и ждёт завершения с ограничением 10с
func (e *ArbitrageEngine) Stop() {
	e.mu.Lock()
	stopCh := e.stopCh
	doneCh := e.doneCh
	if stopCh == nil {
		e.mu.Unlock()
		return
	}
	select {
	case <-stopCh:
		// повторный Stop - no-op
		e.mu.Unlock()
		return
	default:
		close(stopCh)
	}
	e.mu.Unlock()

	select {
	case <-doneCh:
	case <-time.After(10 * time.Second):
	}

	if e.monitor != nil {
		e.monitor.Stop()
	}
}

// Pause приостанавливает открытие новых сделок без остановки фоновых циклов
func (e *ArbitrageEngine) Pause() {
	e.paused.Store(true)
}

// Resume возобновляет открытие новых сделок
func (e *ArbitrageEngine) Resume() {
	e.paused.Store(false)
}

func (e *ArbitrageEngine) loop(ctx context.Context) {
	defer close(e.doneCh)

	interval := e.cfg.OpportunityScanInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.scan(ctx)
		}
	}
}

func (e *ArbitrageEngine) scan(ctx context.Context) {
	if e.paused.Load() {
		return
	}
	if e.breaker != nil && !e.breaker.CheckTradingAllowed() {
		return
	}

	spreads := e.monitor.LatestSpreads()
	if len(spreads) == 0 {
		return
	}

	amount := e.cfg.PositionSizeUSD
	opportunities := e.detector.Detect(ctx, spreads, amount)

	for _, opp := range opportunities {
		if e.persistOpportunity != nil {
			e.persistOpportunity(opp)
		}
	}

	if len(opportunities) == 0 {
		return
	}

	top := opportunities[0]

	permitted, reason := e.gate.Permit(ctx, top, amount)
	if !permitted {
		if logger := utils.GetGlobalLogger(); logger != nil {
			logger.Sugar().Debugf("arbitrage engine: opportunity rejected: %s", reason)
		}
		return
	}

	e.executeTop(ctx, top, amount)
}

func (e *ArbitrageEngine) executeTop(ctx context.Context, opp *models.Opportunity, amount float64) {
	buyVenue := opp.BuyVenue
	sellVenue := opp.SellVenue

	e.gate.Reserve(buyVenue, sellVenue, amount)
	defer e.gate.Release(buyVenue, sellVenue, amount)

	trade := &models.ArbitrageTrade{
		ID:          int(atomic.AddInt64(&e.nextTradeID, 1)),
		Opportunity: *opp,
		Status:      models.TradeStatusPending,
		AmountUSD:   amount,
		ExpectedPnl: opp.NetProfit,
		CreatedAt:   time.Now(),
	}

	e.coordinator.Execute(ctx, trade)

	if e.persistTrade != nil {
		e.persistTrade(trade)
	}

	e.recordOutcome(ctx, trade)
}

// recordOutcome обновляет предохранитель и оценивает необходимость отката
// конфигурации по серии последних закрытых сделок
func (e *ArbitrageEngine) recordOutcome(ctx context.Context, trade *models.ArbitrageTrade) {
	if !trade.IsTerminal() || trade.ActualPnl == nil {
		return
	}

	if e.breaker != nil {
		balance := e.currentBalance(ctx)
		e.breaker.RecordTrade(*trade.ActualPnl, balance)
	}

	if e.rollback == nil {
		return
	}

	e.mu.Lock()
	e.recentTrades = append(e.recentTrades, trade)
	if len(e.recentTrades) > 500 {
		e.recentTrades = e.recentTrades[len(e.recentTrades)-500:]
	}
	e.sinceLastAudit++
	dailyStart := e.dailyStart
	shouldAudit := e.sinceLastAudit >= rollbackAuditBatch
	trades := append([]*models.ArbitrageTrade{}, e.recentTrades...)
	if shouldAudit {
		e.sinceLastAudit = 0
	}
	e.mu.Unlock()

	if !shouldAudit {
		return
	}

	if _, err := e.rollback.Evaluate(trades, dailyStart); err != nil {
		if logger := utils.GetGlobalLogger(); logger != nil {
			logger.Sugar().Errorf("config rollback evaluation failed: %v", err)
		}
	}
}

func (e *ArbitrageEngine) currentBalance(ctx context.Context) float64 {
	if e.registry == nil {
		return 0
	}
	exch, err := e.registry.Active()
	if err != nil {
		return 0
	}
	balance, err := exch.GetBalance(ctx)
	if err != nil {
		return 0
	}
	return balance
}

// SetDailyStartBalance re-анкерит стартовый баланс дня, используемый расчётом
// доли дневного убытка в аудите отката
func (e *ArbitrageEngine) SetDailyStartBalance(balance float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dailyStart = balance
}
