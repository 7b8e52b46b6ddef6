package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"arbitrage/internal/models"
)

func TestArbitrageSpreadRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	s := &models.Spread{BuyVenue: "bybit", SellVenue: "okx", Symbol: "BTCUSDT", BuyAsk: 100, SellBid: 101, SpreadPct: 1.0, TimestampMs: 1000}
	mock.ExpectExec(`INSERT INTO arbitrage_spreads`).
		WithArgs(s.BuyVenue, s.SellVenue, s.Symbol, s.BuyAsk, s.SellBid, s.SpreadPct, s.TimestampMs).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewArbitrageSpreadRepository(db)
	if err := repo.Create(s); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestArbitrageSpreadRepositoryCreatePropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO arbitrage_spreads`).
		WillReturnError(errors.New("database error"))

	repo := NewArbitrageSpreadRepository(db)
	if err := repo.Create(&models.Spread{}); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestArbitrageSpreadRepositoryGetHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"buy_venue", "sell_venue", "symbol", "buy_ask", "sell_bid", "spread_pct", "ts_ms"}).
		AddRow("bybit", "okx", "BTCUSDT", 100.0, 101.0, 1.0, 2000).
		AddRow("bybit", "okx", "BTCUSDT", 100.0, 100.8, 0.8, 1000)
	mock.ExpectQuery(`SELECT .+ FROM arbitrage_spreads WHERE buy_venue = \$1 AND sell_venue = \$2 AND symbol = \$3 ORDER BY ts_ms DESC LIMIT \$4`).
		WithArgs("bybit", "okx", "BTCUSDT", 2).
		WillReturnRows(rows)

	repo := NewArbitrageSpreadRepository(db)
	result, err := repo.GetHistory("bybit", "okx", "BTCUSDT", 2)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 spreads, got %d", len(result))
	}
	if result[0].TimestampMs != 2000 {
		t.Errorf("expected most recent entry first, got %+v", result[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestArbitrageSpreadRepositoryDeleteOlderThan(t *testing.T) {
	cutoff := time.Now().AddDate(0, 0, -1)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM arbitrage_spreads WHERE ts_ms < \$1`).
		WithArgs(cutoff.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 42))

	repo := NewArbitrageSpreadRepository(db)
	deleted, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if deleted != 42 {
		t.Errorf("expected 42 deleted, got %d", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
