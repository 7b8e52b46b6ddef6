package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"arbitrage/internal/models"
)

func TestCircuitBreakerRepositoryLoad(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"consecutive_losses", "daily_pnl", "daily_start_balance", "is_paused", "pause_until", "pause_reason", "updated_at",
	}).AddRow(2, -50.0, 10000.0, false, nil, "", now)
	mock.ExpectQuery(`SELECT .+ FROM circuit_breaker_state WHERE id = 1`).WillReturnRows(rows)

	repo := NewCircuitBreakerRepository(db)
	state, err := repo.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.ConsecutiveLosses != 2 {
		t.Errorf("expected ConsecutiveLosses=2, got %d", state.ConsecutiveLosses)
	}
	if state.DailyPnl != -50.0 {
		t.Errorf("expected DailyPnl=-50.0, got %v", state.DailyPnl)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCircuitBreakerRepositoryLoadNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM circuit_breaker_state WHERE id = 1`).WillReturnError(sql.ErrNoRows)

	repo := NewCircuitBreakerRepository(db)
	_, err = repo.Load()
	if !errors.Is(err, ErrCircuitBreakerStateNotFound) {
		t.Errorf("expected ErrCircuitBreakerStateNotFound, got %v", err)
	}
}

func TestCircuitBreakerRepositorySave(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	state := models.CircuitBreakerState{
		ConsecutiveLosses: 1, DailyPnl: -10, DailyStartBalance: 10000,
		IsPaused: true, PauseReason: models.PauseReasonConsecutiveLosses, UpdatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO circuit_breaker_state`).
		WithArgs(state.ConsecutiveLosses, state.DailyPnl, state.DailyStartBalance, state.IsPaused,
			state.PauseUntil, state.PauseReason, state.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCircuitBreakerRepository(db)
	if err := repo.Save(state); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCircuitBreakerRepositorySaveFillsZeroUpdatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO circuit_breaker_state`).
		WithArgs(0, float64(0), float64(0), false, nil, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCircuitBreakerRepository(db)
	if err := repo.Save(models.CircuitBreakerState{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
