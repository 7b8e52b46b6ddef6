package repository

import (
	"database/sql"
	"errors"
	"time"

	"arbitrage/internal/models"
)

// ErrCircuitBreakerStateNotFound возвращается, если строка состояния ещё не создана
var ErrCircuitBreakerStateNotFound = errors.New("circuit breaker state not found")

// CircuitBreakerRepository - работа с единственной строкой таблицы
// circuit_breaker_state, хранящей состояние предохранителя (4.I) между рестартами
type CircuitBreakerRepository struct {
	db *sql.DB
}

// NewCircuitBreakerRepository создает новый экземпляр репозитория
func NewCircuitBreakerRepository(db *sql.DB) *CircuitBreakerRepository {
	return &CircuitBreakerRepository{db: db}
}

// Load читает текущее состояние предохранителя. Если строка ещё не создана,
// возвращает ErrCircuitBreakerStateNotFound и вызывающий код инициализирует
// состояние по умолчанию.
func (r *CircuitBreakerRepository) Load() (*models.CircuitBreakerState, error) {
	query := `
		SELECT consecutive_losses, daily_pnl, daily_start_balance, is_paused,
			pause_until, pause_reason, updated_at
		FROM circuit_breaker_state
		WHERE id = 1`

	s := &models.CircuitBreakerState{}
	err := r.db.QueryRow(query).Scan(
		&s.ConsecutiveLosses, &s.DailyPnl, &s.DailyStartBalance, &s.IsPaused,
		&s.PauseUntil, &s.PauseReason, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCircuitBreakerStateNotFound
		}
		return nil, err
	}
	return s, nil
}

// Save вставляет или обновляет единственную строку состояния (upsert по id=1)
func (r *CircuitBreakerRepository) Save(s models.CircuitBreakerState) error {
	query := `
		INSERT INTO circuit_breaker_state (
			id, consecutive_losses, daily_pnl, daily_start_balance, is_paused,
			pause_until, pause_reason, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			consecutive_losses = EXCLUDED.consecutive_losses,
			daily_pnl = EXCLUDED.daily_pnl,
			daily_start_balance = EXCLUDED.daily_start_balance,
			is_paused = EXCLUDED.is_paused,
			pause_until = EXCLUDED.pause_until,
			pause_reason = EXCLUDED.pause_reason,
			updated_at = EXCLUDED.updated_at`

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}

	_, err := r.db.Exec(query,
		s.ConsecutiveLosses, s.DailyPnl, s.DailyStartBalance, s.IsPaused,
		s.PauseUntil, s.PauseReason, s.UpdatedAt,
	)
	return err
}
