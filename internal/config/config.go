package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Bot       BotConfig
	Logging   LoggingConfig
	Arbitrage ArbitrageConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	JWTSecret      string
	EncryptionKey  string
	SessionTimeout int
}

// BotConfig - настройки бота
type BotConfig struct {
	// WebSocket настройки (event-driven, без polling)
	WSReconnectDelay  time.Duration // задержка перед переподключением WS
	WSPingInterval    time.Duration // интервал ping для поддержания соединения
	WSReadTimeout     time.Duration // таймаут чтения WS сообщений

	// Периодические задачи (не влияют на торговлю)
	BalanceUpdateFreq time.Duration // обновление балансов для UI
	StatsUpdateFreq   time.Duration // обновление статистики для UI

	// Retry логика для критических операций
	MaxRetries      int
	RetryBackoff    time.Duration
	OrderTimeout    time.Duration // таймаут ожидания исполнения ордера

	// Торговые параметры
	MaxConcurrentArbs int // максимум одновременных арбитражей (0 = без лимита)
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// ArbitrageConfig собирает все пороги и лимиты арбитражного движка.
// В отличие от BotConfig (env-only), эти ключи дополнительно читаются
// через viper из необязательного config.yaml — число настроечных
// параметров арбитража сильно превышает то, что есть в BotConfig.
type ArbitrageConfig struct {
	Engine      EngineConfig
	Thresholds  ThresholdsConfig
	Caps        CapsConfig
	Execution   ExecutionConfig
	Fees        map[string]FeeSchedule // по ключу venue
	Breaker     BreakerConfig
	Guardrails  GuardrailsConfig
	Shadow      ShadowConfig
	ExecFilter  ExecFilterConfig
}

// EngineConfig - базовые параметры движка (§6 "Engine")
type EngineConfig struct {
	Symbol               string
	Exchanges            []string
	MonitorInterval      time.Duration
	OpportunityScanInterval time.Duration
	PositionSizeUSD      float64
}

// ThresholdsConfig - пороги отсечения возможностей (§6 "Thresholds")
type ThresholdsConfig struct {
	MinSpreadPct          float64
	MinNetProfitQuote     float64
	MinProfitRatio        float64
	MinOrderbookDepthUSD  float64
	MinDepthMultiplier    float64
}

// CapsConfig - лимиты экспозиции и частоты (§6 "Caps")
type CapsConfig struct {
	MaxPositionPerVenue      float64
	MaxTotalExposure         float64
	MaxPositionCountPerVenue int
	MaxArbitragePerHour      int
	MaxArbitragePerDay       int
	MinIntervalBetweenArbs   time.Duration
}

// ExecutionConfig - параметры исполнения сделки (§6 "Execution")
type ExecutionConfig struct {
	MaxExecutionTimePerLeg time.Duration
	MaxTotalExecutionTime  time.Duration
	MaxSlippageTolerance   float64
	AtomicExecutionEnabled bool
}

// FeeSchedule - комиссии одной биржи
type FeeSchedule struct {
	Maker float64
	Taker float64
}

// BreakerConfig - параметры предохранителя (§6 "Breaker")
type BreakerConfig struct {
	MaxConsecutiveLosses int
	MaxDailyLossPct      float64
	MinAccountBalancePct float64
	ConsecutiveLossPause time.Duration
	DailyLossPause       time.Duration
	DrawdownPause        time.Duration
}

// GuardrailsConfig - бюджет и поведение советника (§6 "Guardrails")
type GuardrailsConfig struct {
	CacheTTL      time.Duration
	MaxDailyCalls int
	MaxDailyCost  float64
	Timeout       time.Duration
	FailureMode   string // pass, reject

	// Подключение к внешнему советнику. Секреты, поэтому читаются из env, не из config.yaml
	Endpoint string
	APIKey   string
	Model    string
}

// Режимы отказа guardrails при исчерпании бюджета
const (
	GuardrailsFailureModePass   = "pass"
	GuardrailsFailureModeReject = "reject"
)

// ShadowConfig - параметры shadow-режима (§6 "Shadow")
type ShadowConfig struct {
	Enabled bool
}

// ExecFilterConfig - пороги стадии исполнительного фильтра сигнального пайплайна (4.K)
type ExecFilterConfig struct {
	MaxSpreadPct    float64
	MinVolumeRatio  float64
	MaxATRSpikeRatio float64
	Cooldown        time.Duration
}

// defaultArbitrageConfig возвращает значения по умолчанию, совпадающие со спецификацией
func defaultArbitrageConfig() ArbitrageConfig {
	return ArbitrageConfig{
		Engine: EngineConfig{
			Symbol:                  "BTCUSDT",
			Exchanges:               []string{"bybit", "bitget"},
			MonitorInterval:         1 * time.Second,
			OpportunityScanInterval: 2 * time.Second,
			PositionSizeUSD:         500,
		},
		Thresholds: ThresholdsConfig{
			MinSpreadPct:         0.3,
			MinNetProfitQuote:    0.5,
			MinProfitRatio:       0.1,
			MinOrderbookDepthUSD: 10000,
			MinDepthMultiplier:   3,
		},
		Caps: CapsConfig{
			MaxPositionPerVenue:      5000,
			MaxTotalExposure:         20000,
			MaxPositionCountPerVenue: 3,
			MaxArbitragePerHour:      20,
			MaxArbitragePerDay:       100,
			MinIntervalBetweenArbs:   5 * time.Second,
		},
		Execution: ExecutionConfig{
			MaxExecutionTimePerLeg: 10 * time.Second,
			MaxTotalExecutionTime:  30 * time.Second,
			MaxSlippageTolerance:   0.002,
			AtomicExecutionEnabled: true,
		},
		Fees: map[string]FeeSchedule{},
		Breaker: BreakerConfig{
			MaxConsecutiveLosses: 3,
			MaxDailyLossPct:      0.05,
			MinAccountBalancePct: 0.70,
			ConsecutiveLossPause: 30 * time.Minute,
			DailyLossPause:       60 * time.Minute,
			DrawdownPause:        120 * time.Minute,
		},
		Guardrails: GuardrailsConfig{
			CacheTTL:      300 * time.Second,
			MaxDailyCalls: 500,
			MaxDailyCost:  10.0,
			Timeout:       10 * time.Second,
			FailureMode:   GuardrailsFailureModePass,
			Endpoint:      "https://api.anthropic.com/v1/messages",
			Model:         "claude-3-5-sonnet-20241022",
		},
		Shadow: ShadowConfig{
			Enabled: false,
		},
		ExecFilter: ExecFilterConfig{
			MaxSpreadPct:     2.0,
			MinVolumeRatio:   0.5,
			MaxATRSpikeRatio: 3.0,
			Cooldown:         30 * time.Second,
		},
	}
}

// loadArbitrageConfig строит ArbitrageConfig поверх значений по умолчанию,
// слоями накладывая config.yaml (если присутствует) и переменные окружения
// с префиксом ARB_. Viper не заменяет Load() — он обслуживает только
// арбитражные пороги, которых у исходного BotConfig никогда не было.
func loadArbitrageConfig() (ArbitrageConfig, error) {
	cfg := defaultArbitrageConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("engine.symbol", cfg.Engine.Symbol)
	v.SetDefault("engine.exchanges", cfg.Engine.Exchanges)
	v.SetDefault("engine.monitor_interval", cfg.Engine.MonitorInterval)
	v.SetDefault("engine.opportunity_scan_interval", cfg.Engine.OpportunityScanInterval)
	v.SetDefault("engine.position_size_usd", cfg.Engine.PositionSizeUSD)

	v.SetDefault("thresholds.min_spread_pct", cfg.Thresholds.MinSpreadPct)
	v.SetDefault("thresholds.min_net_profit_quote", cfg.Thresholds.MinNetProfitQuote)
	v.SetDefault("thresholds.min_profit_ratio", cfg.Thresholds.MinProfitRatio)
	v.SetDefault("thresholds.min_orderbook_depth_usd", cfg.Thresholds.MinOrderbookDepthUSD)
	v.SetDefault("thresholds.min_depth_multiplier", cfg.Thresholds.MinDepthMultiplier)

	v.SetDefault("caps.max_position_per_venue", cfg.Caps.MaxPositionPerVenue)
	v.SetDefault("caps.max_total_exposure", cfg.Caps.MaxTotalExposure)
	v.SetDefault("caps.max_position_count_per_venue", cfg.Caps.MaxPositionCountPerVenue)
	v.SetDefault("caps.max_arbitrage_per_hour", cfg.Caps.MaxArbitragePerHour)
	v.SetDefault("caps.max_arbitrage_per_day", cfg.Caps.MaxArbitragePerDay)
	v.SetDefault("caps.min_interval_between_arbitrage", cfg.Caps.MinIntervalBetweenArbs)

	v.SetDefault("execution.max_execution_time_per_leg", cfg.Execution.MaxExecutionTimePerLeg)
	v.SetDefault("execution.max_total_execution_time", cfg.Execution.MaxTotalExecutionTime)
	v.SetDefault("execution.max_slippage_tolerance", cfg.Execution.MaxSlippageTolerance)
	v.SetDefault("execution.atomic_execution_enabled", cfg.Execution.AtomicExecutionEnabled)

	v.SetDefault("breaker.max_consecutive_losses", cfg.Breaker.MaxConsecutiveLosses)
	v.SetDefault("breaker.max_daily_loss_pct", cfg.Breaker.MaxDailyLossPct)
	v.SetDefault("breaker.min_account_balance_pct", cfg.Breaker.MinAccountBalancePct)

	v.SetDefault("guardrails.cache_ttl", cfg.Guardrails.CacheTTL)
	v.SetDefault("guardrails.max_daily_calls", cfg.Guardrails.MaxDailyCalls)
	v.SetDefault("guardrails.max_daily_cost", cfg.Guardrails.MaxDailyCost)
	v.SetDefault("guardrails.timeout", cfg.Guardrails.Timeout)
	v.SetDefault("guardrails.failure_mode", cfg.Guardrails.FailureMode)

	v.SetDefault("shadow.enable_shadow_mode", cfg.Shadow.Enabled)

	v.SetDefault("exec_filter.max_spread_pct", cfg.ExecFilter.MaxSpreadPct)
	v.SetDefault("exec_filter.min_volume_ratio", cfg.ExecFilter.MinVolumeRatio)
	v.SetDefault("exec_filter.max_atr_spike_ratio", cfg.ExecFilter.MaxATRSpikeRatio)
	v.SetDefault("exec_filter.cooldown", cfg.ExecFilter.Cooldown)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("reading config.yaml: %w", err)
		}
	}

	cfg.Engine.Symbol = v.GetString("engine.symbol")
	cfg.Engine.Exchanges = v.GetStringSlice("engine.exchanges")
	cfg.Engine.MonitorInterval = v.GetDuration("engine.monitor_interval")
	cfg.Engine.OpportunityScanInterval = v.GetDuration("engine.opportunity_scan_interval")
	cfg.Engine.PositionSizeUSD = v.GetFloat64("engine.position_size_usd")

	cfg.Thresholds.MinSpreadPct = v.GetFloat64("thresholds.min_spread_pct")
	cfg.Thresholds.MinNetProfitQuote = v.GetFloat64("thresholds.min_net_profit_quote")
	cfg.Thresholds.MinProfitRatio = v.GetFloat64("thresholds.min_profit_ratio")
	cfg.Thresholds.MinOrderbookDepthUSD = v.GetFloat64("thresholds.min_orderbook_depth_usd")
	cfg.Thresholds.MinDepthMultiplier = v.GetFloat64("thresholds.min_depth_multiplier")

	cfg.Caps.MaxPositionPerVenue = v.GetFloat64("caps.max_position_per_venue")
	cfg.Caps.MaxTotalExposure = v.GetFloat64("caps.max_total_exposure")
	cfg.Caps.MaxPositionCountPerVenue = v.GetInt("caps.max_position_count_per_venue")
	cfg.Caps.MaxArbitragePerHour = v.GetInt("caps.max_arbitrage_per_hour")
	cfg.Caps.MaxArbitragePerDay = v.GetInt("caps.max_arbitrage_per_day")
	cfg.Caps.MinIntervalBetweenArbs = v.GetDuration("caps.min_interval_between_arbitrage")

	cfg.Execution.MaxExecutionTimePerLeg = v.GetDuration("execution.max_execution_time_per_leg")
	cfg.Execution.MaxTotalExecutionTime = v.GetDuration("execution.max_total_execution_time")
	cfg.Execution.MaxSlippageTolerance = v.GetFloat64("execution.max_slippage_tolerance")
	cfg.Execution.AtomicExecutionEnabled = v.GetBool("execution.atomic_execution_enabled")

	cfg.Breaker.MaxConsecutiveLosses = v.GetInt("breaker.max_consecutive_losses")
	cfg.Breaker.MaxDailyLossPct = v.GetFloat64("breaker.max_daily_loss_pct")
	cfg.Breaker.MinAccountBalancePct = v.GetFloat64("breaker.min_account_balance_pct")
	cfg.Breaker.ConsecutiveLossPause = 30 * time.Minute
	cfg.Breaker.DailyLossPause = 60 * time.Minute
	cfg.Breaker.DrawdownPause = 120 * time.Minute

	cfg.Guardrails.CacheTTL = v.GetDuration("guardrails.cache_ttl")
	cfg.Guardrails.MaxDailyCalls = v.GetInt("guardrails.max_daily_calls")
	cfg.Guardrails.MaxDailyCost = v.GetFloat64("guardrails.max_daily_cost")
	cfg.Guardrails.Timeout = v.GetDuration("guardrails.timeout")
	cfg.Guardrails.FailureMode = v.GetString("guardrails.failure_mode")

	if fees := v.GetStringMap("fees"); len(fees) > 0 {
		cfg.Fees = make(map[string]FeeSchedule, len(fees))
		for venue := range fees {
			cfg.Fees[venue] = FeeSchedule{
				Maker: v.GetFloat64(fmt.Sprintf("fees.%s.maker", venue)),
				Taker: v.GetFloat64(fmt.Sprintf("fees.%s.taker", venue)),
			}
		}
	}

	cfg.Shadow.Enabled = v.GetBool("shadow.enable_shadow_mode")

	cfg.ExecFilter.MaxSpreadPct = v.GetFloat64("exec_filter.max_spread_pct")
	cfg.ExecFilter.MinVolumeRatio = v.GetFloat64("exec_filter.min_volume_ratio")
	cfg.ExecFilter.MaxATRSpikeRatio = v.GetFloat64("exec_filter.max_atr_spike_ratio")
	cfg.ExecFilter.Cooldown = v.GetDuration("exec_filter.cooldown")

	return cfg, nil
}

// FeeFor возвращает taker-комиссию биржи, либо дефолт 6 б.п. если не задана
func (c *ArbitrageConfig) FeeFor(venue string) FeeSchedule {
	if f, ok := c.Fees[venue]; ok {
		return f
	}
	return FeeSchedule{Maker: 0.0002, Taker: 0.0006}
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "arbitrage"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			SessionTimeout: getEnvAsInt("SESSION_TIMEOUT", 3600),
		},
		Bot: BotConfig{
			// WebSocket - event-driven, без polling!
			WSReconnectDelay:  getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSPingInterval:    getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			WSReadTimeout:     getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),

			// Периодические задачи для UI (не критичны для торговли)
			BalanceUpdateFreq: getEnvAsDuration("BALANCE_UPDATE_FREQ", 1*time.Minute),
			StatsUpdateFreq:   getEnvAsDuration("STATS_UPDATE_FREQ", 5*time.Second),

			// Retry для ордеров
			MaxRetries:   getEnvAsInt("MAX_RETRIES", 4),
			RetryBackoff: getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),
			OrderTimeout: getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),

			// Торговые лимиты
			MaxConcurrentArbs: getEnvAsInt("MAX_CONCURRENT_ARBS", 0), // 0 = без лимита
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	arbCfg, err := loadArbitrageConfig()
	if err != nil {
		return nil, err
	}
	arbCfg.Guardrails.Endpoint = getEnv("ADVISOR_ENDPOINT", arbCfg.Guardrails.Endpoint)
	arbCfg.Guardrails.APIKey = getEnv("ADVISOR_API_KEY", "")
	arbCfg.Guardrails.Model = getEnv("ADVISOR_MODEL", arbCfg.Guardrails.Model)
	cfg.Arbitrage = arbCfg

	// Валидация критичных параметров
	if cfg.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(cfg.Security.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return cfg, nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
