package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage/internal/models"
)

// PositionLedger хранит чистую позицию по каждой (бирже, символу) и
// append-only историю мутаций. Buy увеличивает net_qty, sell уменьшает.
// Сверка с балансом биржи только фиксирует расхождение (drift), но
// никогда не исправляет его автоматически — это решение оператора.
type PositionLedger struct {
	mu        sync.RWMutex
	positions map[string]decimal.Decimal // ключ venue:symbol → net_qty
	history   []models.LedgerMutation
	drifts    []models.ReconcileDrift

	maxHistory int
}

// NewPositionLedger создаёт пустой леджер. maxHistory ограничивает
// количество хранимых в памяти записей истории (0 = без ограничения).
func NewPositionLedger(maxHistory int) *PositionLedger {
	return &PositionLedger{
		positions:  make(map[string]decimal.Decimal),
		maxHistory: maxHistory,
	}
}

func ledgerKey(venue, symbol string) string {
	return venue + ":" + symbol
}

// Update применяет мутацию позиции: buy добавляет qty, sell вычитает.
// source обычно содержит ID сделки, породившей мутацию.
func (l *PositionLedger) Update(venue, symbol, side string, qty float64, source string) (float64, error) {
	if qty < 0 {
		return 0, fmt.Errorf("ledger: negative quantity %.8f for %s/%s", qty, venue, symbol)
	}

	delta := decimal.NewFromFloat(qty)
	switch side {
	case "sell", "short":
		delta = delta.Neg()
	case "buy", "long":
		// без изменений, положительная дельта
	default:
		return 0, fmt.Errorf("ledger: unknown side %q", side)
	}

	key := ledgerKey(venue, symbol)

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.positions[key]
	result := current.Add(delta)
	l.positions[key] = result

	resultF, _ := result.Float64()
	l.history = append(l.history, models.LedgerMutation{
		Venue:     venue,
		Symbol:    symbol,
		Side:      side,
		DeltaQty:  qty,
		ResultQty: resultF,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
	})
	l.trimHistoryLocked()

	return resultF, nil
}

// Get возвращает текущую net_qty для (venue, symbol)
func (l *PositionLedger) Get(venue, symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	d, ok := l.positions[ledgerKey(venue, symbol)]
	if !ok {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// Snapshot возвращает копию всех ненулевых позиций
func (l *PositionLedger) Snapshot() []models.VenuePosition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.VenuePosition, 0, len(l.positions))
	for key, d := range l.positions {
		if d.IsZero() {
			continue
		}
		venue, symbol := splitLedgerKey(key)
		qty, _ := d.Float64()
		out = append(out, models.VenuePosition{Venue: venue, Symbol: symbol, NetQty: qty})
	}
	return out
}

// History возвращает последние n записей истории (0 = всю доступную)
func (l *PositionLedger) History(n int) []models.LedgerMutation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n >= len(l.history) {
		out := make([]models.LedgerMutation, len(l.history))
		copy(out, l.history)
		return out
	}
	out := make([]models.LedgerMutation, n)
	copy(out, l.history[len(l.history)-n:])
	return out
}

// Reconcile сравнивает локальную net_qty с сообщённым биржей значением
// и записывает drift. Локальная позиция не изменяется.
func (l *PositionLedger) Reconcile(venue, symbol string, venueQty float64) models.ReconcileDrift {
	localQty := l.Get(venue, symbol)
	driftQty, _ := decimal.NewFromFloat(venueQty).Sub(decimal.NewFromFloat(localQty)).Float64()
	drift := models.ReconcileDrift{
		Venue:     venue,
		Symbol:    symbol,
		LocalQty:  localQty,
		VenueQty:  venueQty,
		Drift:     driftQty,
		Timestamp: time.Now().UnixMilli(),
	}

	l.mu.Lock()
	l.drifts = append(l.drifts, drift)
	if l.maxHistory > 0 && len(l.drifts) > l.maxHistory {
		l.drifts = l.drifts[len(l.drifts)-l.maxHistory:]
	}
	l.mu.Unlock()

	return drift
}

// Drifts возвращает зафиксированные расхождения сверки
func (l *PositionLedger) Drifts() []models.ReconcileDrift {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.ReconcileDrift, len(l.drifts))
	copy(out, l.drifts)
	return out
}

func (l *PositionLedger) trimHistoryLocked() {
	if l.maxHistory > 0 && len(l.history) > l.maxHistory {
		l.history = l.history[len(l.history)-l.maxHistory:]
	}
}

func splitLedgerKey(key string) (venue, symbol string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
