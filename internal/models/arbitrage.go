package models

// Spread представляет направленный спред между двумя биржами в один момент времени
type Spread struct {
	BuyVenue   string  `json:"buy_venue"`
	SellVenue  string  `json:"sell_venue"`
	Symbol     string  `json:"symbol"`
	BuyAsk     float64 `json:"buy_ask"`
	SellBid    float64 `json:"sell_bid"`
	SpreadPct  float64 `json:"spread_pct"`
	TimestampMs int64  `json:"ts_ms"`
}

// Opportunity расширяет Spread оценкой прибыльности после комиссий и проскальзывания
type Opportunity struct {
	Spread
	GrossProfit  float64 `json:"gross_profit"`
	NetProfit    float64 `json:"net_profit"`
	BuyFeeRate   float64 `json:"buy_fee_rate"`
	SellFeeRate  float64 `json:"sell_fee_rate"`
	EstBuySlip   float64 `json:"est_buy_slip"`
	EstSellSlip  float64 `json:"est_sell_slip"`
	BuyDepthUSD  float64 `json:"buy_depth_usd"`
	SellDepthUSD float64 `json:"sell_depth_usd"`
	RiskScore    float64 `json:"risk_score"` // [0,1]
}

// MinDepthUSD возвращает меньшую из двух сторон глубины стакана
func (o *Opportunity) MinDepthUSD() float64 {
	if o.BuyDepthUSD < o.SellDepthUSD {
		return o.BuyDepthUSD
	}
	return o.SellDepthUSD
}

// VenuePosition хранит чистую позицию по (биржа, символ); long положительна, short отрицательна
type VenuePosition struct {
	Venue  string  `json:"venue"`
	Symbol string  `json:"symbol"`
	NetQty float64 `json:"net_qty"`
}

// Key возвращает составной ключ позиции
func (vp *VenuePosition) Key() string {
	return vp.Venue + ":" + vp.Symbol
}

// LedgerMutation представляет одну запись в истории изменений позиции
type LedgerMutation struct {
	Venue     string  `json:"venue"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"` // buy, sell
	DeltaQty  float64 `json:"delta_qty"`
	ResultQty float64 `json:"result_qty"` // qty после применения
	Source    string  `json:"source"`     // trade id или "reconcile"
	Timestamp int64   `json:"ts_ms"`
}

// ReconcileDrift представляет расхождение между локальным учётом и данными биржи
type ReconcileDrift struct {
	Venue     string  `json:"venue"`
	Symbol    string  `json:"symbol"`
	LocalQty  float64 `json:"local_qty"`
	VenueQty  float64 `json:"venue_qty"`
	Drift     float64 `json:"drift"` // venue_qty - local_qty
	Timestamp int64   `json:"ts_ms"`
}
