package repository

import (
	"database/sql"
	"fmt"
)

// tableStatements - DDL таблиц в порядке создания. Повторяет CREATE TABLE IF NOT
// EXISTS идиому, которой тестовое окружение поднимает схему, расширенную
// таблицами арбитражного движка и сигнального пайплайна.
var tableStatements = []string{
	`CREATE TABLE IF NOT EXISTS exchanges (
		id SERIAL PRIMARY KEY,
		name VARCHAR(50) UNIQUE NOT NULL,
		api_key TEXT NOT NULL DEFAULT '',
		secret_key TEXT NOT NULL DEFAULT '',
		passphrase TEXT DEFAULT '',
		connected BOOLEAN DEFAULT false,
		balance DECIMAL(20, 8) DEFAULT 0,
		last_error TEXT DEFAULT '',
		updated_at TIMESTAMP DEFAULT NOW(),
		created_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pairs (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		base VARCHAR(10) NOT NULL,
		quote VARCHAR(10) NOT NULL,
		entry_spread_pct DECIMAL(10, 4) NOT NULL,
		exit_spread_pct DECIMAL(10, 4) NOT NULL,
		volume_asset DECIMAL(20, 8) NOT NULL,
		n_orders INT DEFAULT 1,
		stop_loss DECIMAL(20, 2),
		status VARCHAR(20) DEFAULT 'paused',
		trades_count INT DEFAULT 0,
		total_pnl DECIMAL(20, 2) DEFAULT 0,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		pair_id INT REFERENCES pairs(id) ON DELETE CASCADE,
		exchange VARCHAR(50) NOT NULL,
		side VARCHAR(10) NOT NULL,
		type VARCHAR(20) DEFAULT 'market',
		part_index INT DEFAULT 0,
		quantity DECIMAL(20, 8) NOT NULL,
		price_avg DECIMAL(20, 8),
		status VARCHAR(20) NOT NULL,
		error_message TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT NOW(),
		filled_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP DEFAULT NOW(),
		type VARCHAR(50) NOT NULL,
		severity VARCHAR(10) DEFAULT 'info',
		pair_id INT,
		message TEXT NOT NULL,
		meta JSONB DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id INT PRIMARY KEY DEFAULT 1,
		consider_funding BOOLEAN DEFAULT false,
		max_concurrent_trades INT,
		notification_prefs JSONB DEFAULT '{"open":true,"close":true,"stop_loss":true,"liquidation":true,"api_error":true,"margin":true,"pause":true,"second_leg_fail":true}',
		updated_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS blacklist (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(20) UNIQUE NOT NULL,
		reason TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id SERIAL PRIMARY KEY,
		pair_id INT,
		symbol VARCHAR(20) NOT NULL,
		exchanges VARCHAR(100) DEFAULT '',
		entry_time TIMESTAMP NOT NULL DEFAULT NOW(),
		exit_time TIMESTAMP NOT NULL DEFAULT NOW(),
		pnl DECIMAL(20, 2) NOT NULL DEFAULT 0,
		was_stop_loss BOOLEAN DEFAULT false,
		was_liquidation BOOLEAN DEFAULT false,
		created_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS arbitrage_spreads (
		id SERIAL PRIMARY KEY,
		buy_venue VARCHAR(50) NOT NULL,
		sell_venue VARCHAR(50) NOT NULL,
		symbol VARCHAR(20) NOT NULL,
		spread_pct DECIMAL(10, 4) NOT NULL,
		buy_price DECIMAL(20, 8) NOT NULL,
		sell_price DECIMAL(20, 8) NOT NULL,
		ts_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
		id SERIAL PRIMARY KEY,
		buy_venue VARCHAR(50) NOT NULL,
		sell_venue VARCHAR(50) NOT NULL,
		symbol VARCHAR(20) NOT NULL,
		spread_pct DECIMAL(10, 4) NOT NULL,
		buy_price DECIMAL(20, 8) NOT NULL,
		sell_price DECIMAL(20, 8) NOT NULL,
		ts_ms BIGINT NOT NULL,
		net_profit DECIMAL(20, 8) NOT NULL,
		net_profit_pct DECIMAL(10, 4) NOT NULL,
		buy_depth_usd DECIMAL(20, 2) NOT NULL,
		sell_depth_usd DECIMAL(20, 2) NOT NULL,
		risk_score DECIMAL(6, 4) NOT NULL,
		fee_bucket VARCHAR(20) NOT NULL,
		passed BOOLEAN NOT NULL DEFAULT false,
		reject_reason TEXT DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS arbitrage_trades (
		id SERIAL PRIMARY KEY,
		buy_venue VARCHAR(50) NOT NULL,
		sell_venue VARCHAR(50) NOT NULL,
		symbol VARCHAR(20) NOT NULL,
		amount_usd DECIMAL(20, 2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		expected_pnl DECIMAL(20, 8),
		actual_pnl DECIMAL(20, 8),
		failure_reason TEXT DEFAULT '',
		buy_order JSONB,
		sell_order JSONB,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW(),
		closed_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS shadow_decisions (
		id SERIAL PRIMARY KEY,
		trade_id VARCHAR(50) DEFAULT '',
		ts TIMESTAMP DEFAULT NOW(),
		price DECIMAL(20, 8) NOT NULL,
		regime VARCHAR(20) DEFAULT '',
		volatility DECIMAL(10, 6) DEFAULT 0,
		signal VARCHAR(10) NOT NULL,
		strength DECIMAL(6, 4) DEFAULT 0,
		confidence DECIMAL(6, 4) DEFAULT 0,
		would_execute_strategy BOOLEAN DEFAULT false,
		would_execute_after_trend BOOLEAN DEFAULT false,
		would_execute_after_advisor BOOLEAN DEFAULT false,
		would_execute_after_exec BOOLEAN DEFAULT false,
		final_would_execute BOOLEAN DEFAULT false,
		rejection_stage VARCHAR(30) DEFAULT '',
		rejection_reason TEXT DEFAULT '',
		per_stage_details JSONB,
		actually_executed BOOLEAN DEFAULT false,
		actual_entry DECIMAL(20, 8),
		actual_exit DECIMAL(20, 8),
		actual_pnl DECIMAL(20, 8)
	)`,
	`CREATE TABLE IF NOT EXISTS circuit_breaker_state (
		id INT PRIMARY KEY DEFAULT 1,
		consecutive_losses INT DEFAULT 0,
		daily_pnl DECIMAL(20, 8) DEFAULT 0,
		daily_start_balance DECIMAL(20, 8) DEFAULT 0,
		is_paused BOOLEAN DEFAULT false,
		pause_until TIMESTAMP,
		pause_reason TEXT DEFAULT '',
		updated_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS config_rollback_history (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP DEFAULT NOW(),
		trigger VARCHAR(30) NOT NULL,
		win_rate DECIMAL(6, 4),
		cumulative_pnl DECIMAL(20, 8),
		max_drawdown_pct DECIMAL(10, 4),
		backup_path TEXT DEFAULT '',
		restored_from TEXT DEFAULT ''
	)`,
}

// Migrate создает все таблицы схемы, если их ещё нет, и заводит строку настроек
// по умолчанию (id=1). Безопасно вызывать на каждый старт сервера.
func Migrate(db *sql.DB) error {
	for _, stmt := range tableStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("repository: migrate: %w", err)
		}
	}

	if _, err := db.Exec(`INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return fmt.Errorf("repository: migrate: default settings: %w", err)
	}

	return nil
}
