package bot

import (
	"context"
	"testing"
	"time"

	"arbitrage/internal/config"
	"arbitrage/internal/models"
)

func testCapsConfig() config.CapsConfig {
	return config.CapsConfig{
		MaxPositionPerVenue:      1000,
		MaxTotalExposure:         2000,
		MaxPositionCountPerVenue: 2,
		MaxArbitragePerHour:      10,
		MaxArbitragePerDay:       50,
		MinIntervalBetweenArbs:   time.Millisecond,
	}
}

func testThresholdsConfig() config.ThresholdsConfig {
	return config.ThresholdsConfig{
		MinSpreadPct:         0.1,
		MinNetProfitQuote:    1,
		MinProfitRatio:       0.5,
		MinOrderbookDepthUSD: 100,
		MinDepthMultiplier:   2,
	}
}

func testOpportunity() *models.Opportunity {
	return &models.Opportunity{
		Spread: models.Spread{
			BuyVenue:  "bybit",
			SellVenue: "okx",
			Symbol:    "BTCUSDT",
		},
		GrossProfit:  10,
		NetProfit:    8,
		BuyDepthUSD:  1000,
		SellDepthUSD: 1000,
	}
}

func TestArbitrageRiskGate_PermitAllowsWithinCaps(t *testing.T) {
	g := NewArbitrageRiskGate(testCapsConfig(), testThresholdsConfig(), nil)

	ok, reason := g.Permit(context.Background(), testOpportunity(), 100)
	if !ok {
		t.Fatalf("expected permit to pass, got rejection: %s", reason)
	}
}

func TestArbitrageRiskGate_RejectsPositionCapExceeded(t *testing.T) {
	caps := testCapsConfig()
	caps.MaxPositionPerVenue = 50
	g := NewArbitrageRiskGate(caps, testThresholdsConfig(), nil)

	ok, reason := g.Permit(context.Background(), testOpportunity(), 100)
	if ok {
		t.Fatal("expected rejection due to per-venue position cap")
	}
	if reason == "" {
		t.Error("expected a non-empty rejection reason")
	}
}

func TestArbitrageRiskGate_RejectsTotalExposureCapExceeded(t *testing.T) {
	caps := testCapsConfig()
	caps.MaxTotalExposure = 50
	g := NewArbitrageRiskGate(caps, testThresholdsConfig(), nil)

	ok, _ := g.Permit(context.Background(), testOpportunity(), 100)
	if ok {
		t.Fatal("expected rejection due to total exposure cap")
	}
}

func TestArbitrageRiskGate_RejectsPositionCountCapExceeded(t *testing.T) {
	caps := testCapsConfig()
	caps.MaxPositionCountPerVenue = 1
	g := NewArbitrageRiskGate(caps, testThresholdsConfig(), nil)

	opp := testOpportunity()
	g.Reserve(opp.BuyVenue, opp.SellVenue, 10)

	ok, reason := g.Permit(context.Background(), opp, 10)
	if ok {
		t.Fatal("expected rejection due to open position count cap")
	}
	if reason == "" {
		t.Error("expected a non-empty rejection reason")
	}
}

func TestArbitrageRiskGate_RejectsMinIntervalNotElapsed(t *testing.T) {
	caps := testCapsConfig()
	caps.MinIntervalBetweenArbs = time.Hour
	g := NewArbitrageRiskGate(caps, testThresholdsConfig(), nil)

	opp := testOpportunity()
	g.Reserve(opp.BuyVenue, opp.SellVenue, 10)
	g.Release(opp.BuyVenue, opp.SellVenue, 10)

	ok, reason := g.Permit(context.Background(), opp, 10)
	if ok {
		t.Fatal("expected rejection due to minimum interval between arbitrages")
	}
	if reason == "" {
		t.Error("expected a non-empty rejection reason")
	}
}

func TestArbitrageRiskGate_RejectsHourlyCapReached(t *testing.T) {
	caps := testCapsConfig()
	caps.MaxArbitragePerHour = 1
	caps.MinIntervalBetweenArbs = 0
	g := NewArbitrageRiskGate(caps, testThresholdsConfig(), nil)

	opp := testOpportunity()
	g.Reserve(opp.BuyVenue, opp.SellVenue, 10)
	g.Release(opp.BuyVenue, opp.SellVenue, 10)

	ok, _ := g.Permit(context.Background(), opp, 10)
	if ok {
		t.Fatal("expected rejection once hourly cap is reached")
	}
}

func TestArbitrageRiskGate_RejectsBelowMinProfit(t *testing.T) {
	g := NewArbitrageRiskGate(testCapsConfig(), testThresholdsConfig(), nil)

	opp := testOpportunity()
	opp.NetProfit = 0.5

	ok, reason := g.Permit(context.Background(), opp, 100)
	if ok {
		t.Fatal("expected rejection due to net profit below threshold")
	}
	if reason == "" {
		t.Error("expected a non-empty rejection reason")
	}
}

func TestArbitrageRiskGate_RejectsBelowProfitRatio(t *testing.T) {
	g := NewArbitrageRiskGate(testCapsConfig(), testThresholdsConfig(), nil)

	opp := testOpportunity()
	opp.GrossProfit = 100
	opp.NetProfit = 10 // ratio 0.1 < 0.5 threshold

	ok, _ := g.Permit(context.Background(), opp, 100)
	if ok {
		t.Fatal("expected rejection due to profit ratio below threshold")
	}
}

func TestArbitrageRiskGate_RejectsInsufficientDepth(t *testing.T) {
	g := NewArbitrageRiskGate(testCapsConfig(), testThresholdsConfig(), nil)

	opp := testOpportunity()
	opp.BuyDepthUSD = 50
	opp.SellDepthUSD = 50

	ok, reason := g.Permit(context.Background(), opp, 100)
	if ok {
		t.Fatal("expected rejection due to insufficient depth")
	}
	if reason == "" {
		t.Error("expected a non-empty rejection reason")
	}
}

func TestArbitrageRiskGate_RejectsDepthBelowAmountMultiplier(t *testing.T) {
	g := NewArbitrageRiskGate(testCapsConfig(), testThresholdsConfig(), nil)

	opp := testOpportunity()
	opp.BuyDepthUSD = 150
	opp.SellDepthUSD = 150

	// amount*multiplier = 100*2 = 200 > 150 depth
	ok, _ := g.Permit(context.Background(), opp, 100)
	if ok {
		t.Fatal("expected rejection because depth is below amount * multiplier")
	}
}

func TestArbitrageRiskGate_ReserveAndReleaseRoundTrip(t *testing.T) {
	g := NewArbitrageRiskGate(testCapsConfig(), testThresholdsConfig(), nil)

	g.Reserve("bybit", "okx", 500)
	if g.exposurePerVenue["bybit"] != 500 || g.exposurePerVenue["okx"] != 500 {
		t.Fatalf("expected exposure reserved, got %+v", g.exposurePerVenue)
	}
	if g.globalExposure != 1000 {
		t.Errorf("expected global exposure 1000, got %v", g.globalExposure)
	}

	g.Release("bybit", "okx", 500)
	if g.exposurePerVenue["bybit"] != 0 || g.exposurePerVenue["okx"] != 0 {
		t.Fatalf("expected exposure released, got %+v", g.exposurePerVenue)
	}
	if g.globalExposure != 0 {
		t.Errorf("expected global exposure 0 after release, got %v", g.globalExposure)
	}
}

func TestArbitrageRiskGate_ReleaseNeverGoesNegative(t *testing.T) {
	g := NewArbitrageRiskGate(testCapsConfig(), testThresholdsConfig(), nil)

	g.Release("bybit", "okx", 500)

	if g.exposurePerVenue["bybit"] < 0 || g.globalExposure < 0 {
		t.Errorf("expected exposure floored at 0, got venue=%v global=%v", g.exposurePerVenue["bybit"], g.globalExposure)
	}
}
