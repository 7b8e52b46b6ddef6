package bot

import (
	"context"
	"sort"

	"arbitrage/internal/config"
	"arbitrage/internal/exchange"
	"arbitrage/internal/models"
)

// orderbookDepthLevels - сколько уровней стакана суммируется при расчёте глубины
const orderbookDepthLevels = 20

// OpportunityDetector превращает направленные спреды в оценённые по прибыльности
// возможности. Использует пошаговую VWAP-оценку проскальзывания через
// OrderBookAnalyzer, когда стакан доступен, и откатывается на табличную модель
// по объёму иначе - совмещение обеих моделей сохраняет текстуру
// калькулятора спреда, на котором этот расчёт основан.
type OpportunityDetector struct {
	registry   *exchange.Registry
	thresholds config.ThresholdsConfig
	feesFor    func(venue string) config.FeeSchedule
	analyzer   *OrderBookAnalyzer
}

// NewOpportunityDetector создаёт детектор возможностей
func NewOpportunityDetector(registry *exchange.Registry, thresholds config.ThresholdsConfig, feesFor func(venue string) config.FeeSchedule, analyzer *OrderBookAnalyzer) *OpportunityDetector {
	if analyzer == nil {
		analyzer = NewOrderBookAnalyzer(orderbookDepthLevels, 0)
	}
	return &OpportunityDetector{
		registry:   registry,
		thresholds: thresholds,
		feesFor:    feesFor,
		analyzer:   analyzer,
	}
}

// Detect оценивает каждый спред на сумму amount и возвращает прошедшие фильтр
// возможности, отсортированные по убыванию net_profit
func (d *OpportunityDetector) Detect(ctx context.Context, spreads []models.Spread, amount float64) []*models.Opportunity {
	var out []*models.Opportunity

	for _, spread := range spreads {
		if spread.SpreadPct < d.thresholds.MinSpreadPct {
			continue
		}

		opp := d.evaluate(ctx, spread, amount)
		if opp == nil {
			continue
		}

		if opp.NetProfit < d.thresholds.MinNetProfitQuote {
			continue
		}
		if opp.GrossProfit > 0 && opp.NetProfit/opp.GrossProfit < d.thresholds.MinProfitRatio {
			continue
		}
		minDepth := opp.MinDepthUSD()
		if minDepth < d.thresholds.MinOrderbookDepthUSD {
			continue
		}
		if minDepth < amount*d.thresholds.MinDepthMultiplier {
			continue
		}

		out = append(out, opp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].NetProfit > out[j].NetProfit
	})

	return out
}

func (d *OpportunityDetector) evaluate(ctx context.Context, spread models.Spread, amount float64) *models.Opportunity {
	buyFee := d.feeFor(spread.BuyVenue)
	sellFee := d.feeFor(spread.SellVenue)

	estBuySlip, buyDepthUSD := d.estimateLeg(ctx, spread.BuyVenue, spread.Symbol, amount, true)
	estSellSlip, sellDepthUSD := d.estimateLeg(ctx, spread.SellVenue, spread.Symbol, amount, false)

	gross := (spread.SellBid - spread.BuyAsk) * amount / spread.BuyAsk
	fees := amount * (buyFee + sellFee)
	slip := amount * (estBuySlip + estSellSlip)
	buffer := amount * 0.001
	net := gross - fees - slip - buffer

	opp := &models.Opportunity{
		Spread:       spread,
		GrossProfit:  gross,
		NetProfit:    net,
		BuyFeeRate:   buyFee,
		SellFeeRate:  sellFee,
		EstBuySlip:   estBuySlip,
		EstSellSlip:  estSellSlip,
		BuyDepthUSD:  buyDepthUSD,
		SellDepthUSD: sellDepthUSD,
	}
	opp.RiskScore = riskScore(spread.SpreadPct, buyDepthUSD, sellDepthUSD, estBuySlip+estSellSlip)

	return opp
}

func (d *OpportunityDetector) feeFor(venue string) float64 {
	if d.feesFor == nil {
		return 0.0006
	}
	return d.feesFor(venue).Taker
}

// estimateLeg возвращает (проскальзывание в долях, глубина в quote-валюте) для одной
// ноги сделки. isBuy=true проходит по Ask-стороне (покупка), false - по Bid (продажа).
func (d *OpportunityDetector) estimateLeg(ctx context.Context, venue, symbol string, amount float64, isBuy bool) (float64, float64) {
	book := d.fetchOrderBook(ctx, venue, symbol)
	if book == nil {
		return bucketSlippage(amount), 0
	}

	var levels []exchange.PriceLevel
	if isBuy {
		levels = book.Asks
	} else {
		levels = book.Bids
	}
	depthUSD := cumulativeQuoteDepth(levels, orderbookDepthLevels)

	d.analyzer.UpdateOrderBook(symbol, venue, toAnalyzerLevels(book.Bids), toAnalyzerLevels(book.Asks))

	volume := amount / avgPriceOf(levels)
	if volume <= 0 {
		return bucketSlippage(amount), depthUSD
	}

	var sim *ExecutionSimulation
	if isBuy {
		sim = d.analyzer.SimulateBuy(symbol, venue, volume)
	} else {
		sim = d.analyzer.SimulateSell(symbol, venue, volume)
	}
	if sim == nil {
		return bucketSlippage(amount), depthUSD
	}

	return sim.Slippage / 100, depthUSD
}

func (d *OpportunityDetector) fetchOrderBook(ctx context.Context, venue, symbol string) *exchange.OrderBook {
	if d.registry == nil {
		return nil
	}
	exch, err := d.registry.Get(venue)
	if err != nil {
		return nil
	}
	book, err := exch.GetOrderBook(ctx, symbol, orderbookDepthLevels)
	if err != nil || book == nil {
		return nil
	}
	return book
}

func toAnalyzerLevels(levels []exchange.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Volume: l.Volume}
	}
	return out
}

func cumulativeQuoteDepth(levels []exchange.PriceLevel, maxLevels int) float64 {
	total := 0.0
	for i, l := range levels {
		if i >= maxLevels {
			break
		}
		total += l.Price * l.Volume
	}
	return total
}

func avgPriceOf(levels []exchange.PriceLevel) float64 {
	if len(levels) == 0 {
		return 0
	}
	return levels[0].Price
}

// bucketSlippage - табличная модель проскальзывания по объёму сделки (в долях),
// используется когда стакан недоступен
func bucketSlippage(amount float64) float64 {
	switch {
	case amount < 100:
		return 0.0001
	case amount < 500:
		return 0.0002
	case amount < 1000:
		return 0.0003
	default:
		return 0.0005
	}
}

// riskScore комбинирует узость спреда, тонкость глубины и суммарное
// проскальзывание в единую оценку риска, ограниченную 1.0
func riskScore(spreadPct, buyDepthUSD, sellDepthUSD, totalSlip float64) float64 {
	score := 0.0

	switch {
	case spreadPct < 0.5:
		score += 0.3
	case spreadPct < 1.0:
		score += 0.2
	default:
		score += 0.1
	}

	if buyDepthUSD < 10000 {
		score += 0.2
	}
	if sellDepthUSD < 10000 {
		score += 0.2
	}

	slipBp := totalSlip * 10000
	switch {
	case slipBp > 10:
		score += 0.2
	case slipBp > 5:
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
