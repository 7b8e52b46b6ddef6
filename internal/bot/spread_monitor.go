package bot

import (
	"context"
	"sort"
	"sync"
	"time"

	"arbitrage/internal/exchange"
	"arbitrage/internal/models"
	"arbitrage/pkg/utils"
)

// tickerFetchTimeout ограничивает один вызов GetTicker внутри раунда опроса
const tickerFetchTimeout = 5 * time.Second

// SpreadMonitor опрашивает все настроенные биржи по тикеру, строит пары
// направленных спредов (buy-venue/sell-venue) и хранит их в кольцевом
// буфере для запросов истории. Это модель "опрос", а не push через
// WebSocket - подключённые адаптеры не держат живой стакан между опросами.
type SpreadMonitor struct {
	mu sync.RWMutex

	registry *exchange.Registry
	venues   []string
	symbol   string
	interval time.Duration
	ringSize int

	rings    map[string][]models.Spread // ключ "buyVenue:sellVenue"
	lastScan int64                      // ts_ms последнего завершённого раунда

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSpreadMonitor создаёт монитор спредов для одного символа на заданном наборе бирж
func NewSpreadMonitor(registry *exchange.Registry, symbol string, venues []string, interval time.Duration, ringSize int) *SpreadMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	if ringSize <= 0 {
		ringSize = 100
	}
	return &SpreadMonitor{
		registry: registry,
		venues:   append([]string{}, venues...),
		symbol:   symbol,
		interval: interval,
		ringSize: ringSize,
		rings:    make(map[string][]models.Spread),
	}
}

// Start запускает фоновый цикл опроса. Возвращается немедленно; остановка - через Stop.
func (m *SpreadMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return // уже запущен
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx)
}

// Stop сигнализирует циклу остановиться и ждёт завершения с ограничением по времени
func (m *SpreadMonitor) Stop() {
	m.mu.Lock()
	stopCh := m.stopCh
	doneCh := m.doneCh
	if stopCh == nil {
		m.mu.Unlock()
		return
	}
	select {
	case <-stopCh:
		// повторный Stop - no-op
		m.mu.Unlock()
		return
	default:
		close(stopCh)
	}
	m.mu.Unlock()

	select {
	case <-doneCh:
	case <-time.After(10 * time.Second):
	}
}

func (m *SpreadMonitor) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runRound(ctx)
		}
	}
}

// runRound опрашивает все биржи параллельно с таймаутом и публикует новые спреды.
// Если ответили меньше двух бирж, раунд пропускается - недостаточно данных для пары.
func (m *SpreadMonitor) runRound(parentCtx context.Context) {
	roundCtx, cancel := context.WithTimeout(parentCtx, tickerFetchTimeout)
	defer cancel()

	type tickerResult struct {
		venue  string
		ticker *exchange.Ticker
	}

	resultsCh := make(chan tickerResult, len(m.venues))
	var wg sync.WaitGroup

	for _, venue := range m.venues {
		venue := venue
		wg.Add(1)
		go func() {
			defer wg.Done()

			exch, err := m.registry.Get(venue)
			if err != nil {
				return
			}
			t, err := exch.GetTicker(roundCtx, m.symbol)
			if err != nil || t == nil {
				return
			}
			resultsCh <- tickerResult{venue: venue, ticker: t}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	tickers := make(map[string]*exchange.Ticker)
	for res := range resultsCh {
		tickers[res.venue] = res.ticker
	}

	if len(tickers) < 2 {
		if logger := utils.GetGlobalLogger(); logger != nil {
			logger.Sugar().Debugf("spread monitor: only %d venues responded, skipping round", len(tickers))
		}
		return
	}

	nowMs := time.Now().UnixMilli()

	venueNames := make([]string, 0, len(tickers))
	for v := range tickers {
		venueNames = append(venueNames, v)
	}
	sort.Strings(venueNames)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < len(venueNames); i++ {
		for j := 0; j < len(venueNames); j++ {
			if i == j {
				continue
			}
			buyVenue := venueNames[i]
			sellVenue := venueNames[j]
			buyTicker := tickers[buyVenue]
			sellTicker := tickers[sellVenue]

			if buyTicker.AskPrice <= 0 || sellTicker.BidPrice <= 0 {
				continue
			}

			spreadPct := (sellTicker.BidPrice - buyTicker.AskPrice) / buyTicker.AskPrice * 100

			spread := models.Spread{
				BuyVenue:    buyVenue,
				SellVenue:   sellVenue,
				Symbol:      m.symbol,
				BuyAsk:      buyTicker.AskPrice,
				SellBid:     sellTicker.BidPrice,
				SpreadPct:   spreadPct,
				TimestampMs: nowMs,
			}

			key := ringKey(buyVenue, sellVenue)
			m.rings[key] = appendRing(m.rings[key], spread, m.ringSize)
		}
	}

	m.lastScan = nowMs
}

func ringKey(buyVenue, sellVenue string) string {
	return buyVenue + ":" + sellVenue
}

func appendRing(ring []models.Spread, s models.Spread, max int) []models.Spread {
	ring = append(ring, s)
	if len(ring) > max {
		ring = ring[len(ring)-max:]
	}
	return ring
}

// LatestSpreads возвращает все направленные спреды последнего завершённого раунда
func (m *SpreadMonitor) LatestSpreads() []models.Spread {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastScan == 0 {
		return nil
	}

	var out []models.Spread
	for _, ring := range m.rings {
		if len(ring) == 0 {
			continue
		}
		last := ring[len(ring)-1]
		if last.TimestampMs == m.lastScan {
			out = append(out, last)
		}
	}
	return out
}

// History возвращает последние n спредов для направленной пары (buyVenue, sellVenue)
func (m *SpreadMonitor) History(buyVenue, sellVenue string, n int) []models.Spread {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ring := m.rings[ringKey(buyVenue, sellVenue)]
	if n <= 0 || n > len(ring) {
		n = len(ring)
	}

	out := make([]models.Spread, n)
	copy(out, ring[len(ring)-n:])
	return out
}
