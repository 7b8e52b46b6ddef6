package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arbitrage/internal/config"
	"arbitrage/internal/exchange"
	"arbitrage/internal/models"
)

// ArbitrageRiskGate пропускает возможность в исполнение только если
// проходят все шесть проверок по порядку: лимиты позиций, частота,
// прибыльность, глубина стакана, здоровье бирж, баланс.
//
// Reserve резервирует счётчики экспозиции при старте исполнения;
// Release отпускает их независимо от исхода (COMPLETED или FAILED) -
// резервации переживают сбой исполнителя.
type ArbitrageRiskGate struct {
	mu sync.Mutex

	caps       config.CapsConfig
	thresholds config.ThresholdsConfig
	registry   *exchange.Registry

	exposurePerVenue map[string]float64
	positionCount    map[string]int
	globalExposure   float64

	lastArbitrageTs time.Time
	hourlyTs        []time.Time
	dailyTs         []time.Time
}

// NewArbitrageRiskGate создаёт риск-гейт арбитража
func NewArbitrageRiskGate(caps config.CapsConfig, thresholds config.ThresholdsConfig, registry *exchange.Registry) *ArbitrageRiskGate {
	return &ArbitrageRiskGate{
		caps:             caps,
		thresholds:       thresholds,
		registry:         registry,
		exposurePerVenue: make(map[string]float64),
		positionCount:    make(map[string]int),
	}
}

// Permit проверяет, разрешено ли исполнять opportunity на сумму amount.
// Возвращает (true, "") при разрешении, иначе (false, причина отказа).
func (g *ArbitrageRiskGate) Permit(ctx context.Context, opp *models.Opportunity, amount float64) (bool, string) {
	if ok, reason := g.checkPositionCaps(opp, amount); !ok {
		return false, reason
	}
	if ok, reason := g.checkRateLimits(); !ok {
		return false, reason
	}
	if ok, reason := g.checkProfitability(opp); !ok {
		return false, reason
	}
	if ok, reason := g.checkDepth(opp, amount); !ok {
		return false, reason
	}
	if ok, reason := g.checkVenueHealth(opp); !ok {
		return false, reason
	}
	if ok, reason := g.checkBalance(ctx, opp, amount); !ok {
		return false, reason
	}
	return true, ""
}

// checkPositionCaps - шаг 1
func (g *ArbitrageRiskGate) checkPositionCaps(opp *models.Opportunity, amount float64) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.exposurePerVenue[opp.BuyVenue]+amount > g.caps.MaxPositionPerVenue {
		return false, "position cap exceeded on buy venue"
	}
	if g.exposurePerVenue[opp.SellVenue]+amount > g.caps.MaxPositionPerVenue {
		return false, "position cap exceeded on sell venue"
	}
	if g.globalExposure+2*amount > g.caps.MaxTotalExposure {
		return false, "total exposure cap exceeded"
	}
	if g.caps.MaxPositionCountPerVenue > 0 {
		if g.positionCount[opp.BuyVenue] >= g.caps.MaxPositionCountPerVenue {
			return false, "open position count cap exceeded on buy venue"
		}
		if g.positionCount[opp.SellVenue] >= g.caps.MaxPositionCountPerVenue {
			return false, "open position count cap exceeded on sell venue"
		}
	}
	return true, ""
}

// checkRateLimits - шаг 2
func (g *ArbitrageRiskGate) checkRateLimits() (bool, string) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastArbitrageTs.IsZero() && now.Sub(g.lastArbitrageTs) < g.caps.MinIntervalBetweenArbs {
		return false, "minimum interval between arbitrages not elapsed"
	}

	g.hourlyTs = pruneOlderThan(g.hourlyTs, now, time.Hour)
	if g.caps.MaxArbitragePerHour > 0 && len(g.hourlyTs) >= g.caps.MaxArbitragePerHour {
		return false, "hourly arbitrage cap reached"
	}

	g.dailyTs = pruneOlderThan(g.dailyTs, now, 24*time.Hour)
	if g.caps.MaxArbitragePerDay > 0 && len(g.dailyTs) >= g.caps.MaxArbitragePerDay {
		return false, "daily arbitrage cap reached"
	}

	return true, ""
}

func pruneOlderThan(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append([]time.Time{}, ts[i:]...)
}

// checkProfitability - шаг 3, повторно проверяет пороги §4.D актуальными цифрами
func (g *ArbitrageRiskGate) checkProfitability(opp *models.Opportunity) (bool, string) {
	if opp.NetProfit < g.thresholds.MinNetProfitQuote {
		return false, "net profit below threshold"
	}
	if opp.GrossProfit > 0 && opp.NetProfit/opp.GrossProfit < g.thresholds.MinProfitRatio {
		return false, "profit ratio below threshold"
	}
	return true, ""
}

// checkDepth - шаг 4
func (g *ArbitrageRiskGate) checkDepth(opp *models.Opportunity, amount float64) (bool, string) {
	minDepth := opp.MinDepthUSD()
	if minDepth < g.thresholds.MinOrderbookDepthUSD {
		return false, "depth below minimum"
	}
	if minDepth < amount*g.thresholds.MinDepthMultiplier {
		return false, "depth below amount multiplier"
	}
	return true, ""
}

// checkVenueHealth - шаг 5
func (g *ArbitrageRiskGate) checkVenueHealth(opp *models.Opportunity) (bool, string) {
	if g.registry == nil {
		return true, ""
	}
	if !g.registry.Connected(opp.BuyVenue) {
		return false, "buy venue not connected"
	}
	if !g.registry.Connected(opp.SellVenue) {
		return false, "sell venue not connected"
	}
	return true, ""
}

// checkBalance - шаг 6
func (g *ArbitrageRiskGate) checkBalance(ctx context.Context, opp *models.Opportunity, amount float64) (bool, string) {
	if g.registry == nil {
		return true, ""
	}

	buyExch, err := g.registry.Get(opp.BuyVenue)
	if err != nil {
		return false, fmt.Sprintf("buy venue unavailable: %v", err)
	}
	sellExch, err := g.registry.Get(opp.SellVenue)
	if err != nil {
		return false, fmt.Sprintf("sell venue unavailable: %v", err)
	}

	buyBalance, err := buyExch.GetBalance(ctx)
	if err != nil {
		return false, fmt.Sprintf("buy venue balance check failed: %v", err)
	}
	if buyBalance < amount {
		return false, "insufficient balance on buy venue"
	}

	sellBalance, err := sellExch.GetBalance(ctx)
	if err != nil {
		return false, fmt.Sprintf("sell venue balance check failed: %v", err)
	}
	if sellBalance < amount {
		return false, "insufficient balance on sell venue"
	}

	return true, ""
}

// Reserve резервирует счётчики экспозиции и позиций при старте исполнения
func (g *ArbitrageRiskGate) Reserve(buyVenue, sellVenue string, amount float64) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.exposurePerVenue[buyVenue] += amount
	g.exposurePerVenue[sellVenue] += amount
	g.globalExposure += 2 * amount
	g.positionCount[buyVenue]++
	g.positionCount[sellVenue]++

	g.lastArbitrageTs = now
	g.hourlyTs = append(g.hourlyTs, now)
	g.dailyTs = append(g.dailyTs, now)
}

// Release отпускает счётчики, зарезервированные Reserve, независимо от исхода
func (g *ArbitrageRiskGate) Release(buyVenue, sellVenue string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exposurePerVenue[buyVenue] -= amount
	if g.exposurePerVenue[buyVenue] < 0 {
		g.exposurePerVenue[buyVenue] = 0
	}
	g.exposurePerVenue[sellVenue] -= amount
	if g.exposurePerVenue[sellVenue] < 0 {
		g.exposurePerVenue[sellVenue] = 0
	}

	g.globalExposure -= 2 * amount
	if g.globalExposure < 0 {
		g.globalExposure = 0
	}

	if g.positionCount[buyVenue] > 0 {
		g.positionCount[buyVenue]--
	}
	if g.positionCount[sellVenue] > 0 {
		g.positionCount[sellVenue]--
	}
}
