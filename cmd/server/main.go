package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"arbitrage/internal/api"
	"arbitrage/internal/bot"
	"arbitrage/internal/config"
	"arbitrage/internal/exchange"
	"arbitrage/internal/models"
	"arbitrage/internal/repository"
	"arbitrage/internal/service"
	"arbitrage/internal/signals"
	"arbitrage/internal/websocket"
	"arbitrage/pkg/crypto"
	"arbitrage/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := repository.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	log.Println("Connected to database successfully")

	// Инициализация репозиториев
	exchangeRepo := repository.NewExchangeRepository(db)
	pairRepo := repository.NewPairRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	spreadRepo := repository.NewArbitrageSpreadRepository(db)
	opportunityRepo := repository.NewArbitrageOpportunityRepository(db)
	tradeRepo := repository.NewArbitrageTradeRepository(db)
	breakerRepo := repository.NewCircuitBreakerRepository(db)
	rollbackRepo := repository.NewRollbackRepository(db)
	shadowRepo := repository.NewShadowRepository(db)

	// Инициализация сервисов
	exchangeService := service.NewExchangeService(
		exchangeRepo,
		pairRepo,
		cfg.Security.EncryptionKey,
	)

	pairService := service.NewPairService(
		pairRepo,
		exchangeRepo,
		exchangeService,
	)

	notificationService := service.NewNotificationService(notificationRepo, settingsRepo)
	statsService := service.NewStatsService(statsRepo, pairRepo)
	blacklistService := service.NewBlacklistService(blacklistRepo)
	settingsService := service.NewSettingsService(settingsRepo)

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	exchangeService.SetWebSocketHub(hub)
	notificationService.SetWebSocketHub(hub)
	statsService.SetWebSocketHub(hub)

	// Реестр бирж арбитражного движка: учётные данные расшифровываются из тех
	// же зашифрованных записей, что читает ExchangeService
	registry := exchange.NewRegistry()
	creds, err := loadArbitrageCredentials(exchangeRepo, []byte(cfg.Security.EncryptionKey), cfg.Arbitrage.Engine.Exchanges)
	if err != nil {
		log.Fatalf("Failed to load exchange credentials: %v", err)
	}
	if len(cfg.Arbitrage.Engine.Exchanges) == 0 {
		log.Fatalf("Arbitrage engine requires at least one configured exchange")
	}
	if err := registry.Initialize(creds, cfg.Arbitrage.Engine.Exchanges[0]); err != nil {
		log.Fatalf("Failed to initialize exchange registry: %v", err)
	}

	// Компоненты арбитражного движка
	analyzer := bot.NewOrderBookAnalyzer(20, 5*time.Second)
	monitor := bot.NewSpreadMonitor(registry, cfg.Arbitrage.Engine.Symbol, cfg.Arbitrage.Engine.Exchanges, cfg.Arbitrage.Engine.MonitorInterval, 500)
	detector := bot.NewOpportunityDetector(registry, cfg.Arbitrage.Thresholds, cfg.Arbitrage.FeeFor, analyzer)
	gate := bot.NewArbitrageRiskGate(cfg.Arbitrage.Caps, cfg.Arbitrage.Thresholds, registry)
	ledger := bot.NewPositionLedger(1000)

	validator := bot.NewOrderValidator(priceGetterFor(monitor))
	coordinator := bot.NewExecutionCoordinator(registry, validator, cfg.Arbitrage.Execution, ledger)

	initialBalance := sumBalances(creds, exchangeRepo)
	breaker := bot.NewCircuitBreaker(cfg.Arbitrage.Breaker, initialBalance, func(s models.CircuitBreakerState) {
		if err := breakerRepo.Save(s); err != nil && logger != nil {
			logger.Sugar().Errorf("persist circuit breaker state: %v", err)
		}
	})
	if state, err := breakerRepo.Load(); err == nil && state != nil {
		breaker.Restore(*state)
	}

	backupStore := bot.NewFileConfigBackupStore("config.yaml", "config_backups")
	rollback := bot.NewConfigRollbackManager(backupStore, time.Hour, func(rec models.ConfigRollbackRecord) {
		if err := rollbackRepo.Create(&rec); err != nil && logger != nil {
			logger.Sugar().Errorf("persist rollback record: %v", err)
		}
	})

	engine := bot.NewArbitrageEngine(
		monitor, detector, gate, coordinator, ledger, breaker, rollback, registry,
		cfg.Arbitrage.Engine,
		func(t *models.ArbitrageTrade) {
			if err := tradeRepo.Create(t); err != nil && logger != nil {
				logger.Sugar().Errorf("persist arbitrage trade: %v", err)
			}
		},
		func(o *models.Opportunity) {
			if err := opportunityRepo.Create(o); err != nil && logger != nil {
				logger.Sugar().Errorf("persist arbitrage opportunity: %v", err)
			}
		},
	)

	// Сигнальный пайплайн с shadow-записью и advisor guardrails
	advisorClient := signals.NewHTTPAdvisorClient(cfg.Arbitrage.Guardrails)
	guardrails := signals.NewGuardrails(advisorClient, cfg.Arbitrage.Guardrails)
	pipeline := signals.NewPipeline(guardrails, cfg.Arbitrage.Shadow, cfg.Arbitrage.ExecFilter,
		func(d *models.PipelineDecision) {
			if err := shadowRepo.Create(d); err != nil && logger != nil {
				logger.Sugar().Errorf("persist shadow decision: %v", err)
			}
		},
		func(id int, actuallyExecuted bool, entry, exit, pnl *float64) {
			if err := shadowRepo.UpdateOutcome(id, actuallyExecuted, entry, exit, pnl); err != nil && logger != nil {
				logger.Sugar().Errorf("persist shadow outcome: %v", err)
			}
		},
	)

	ctx, cancelEngine := context.WithCancel(context.Background())

	reconciler := bot.NewStartupReconciler(registry, ledger)
	if drifts := reconciler.Reconcile(ctx); len(drifts) > 0 && logger != nil {
		logger.Sugar().Warnf("startup reconciliation found %d position drifts", len(drifts))
	}

	engine.Start(ctx)

	go persistSpreads(ctx, monitor, spreadRepo, cfg.Arbitrage.Engine.MonitorInterval, logger)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		ExchangeService:     exchangeService,
		PairService:         pairService,
		NotificationService: notificationService,
		StatsService:        statsService,
		BlacklistService:    blacklistService,
		SettingsService:     settingsService,
		Hub:                 hub,
		Pipeline:            pipeline,
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	engine.Stop()
	cancelEngine()
	monitor.Stop()

	// Закрываем соединения с биржами
	if err := exchangeService.Close(); err != nil {
		log.Printf("Error closing exchange connections: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// loadArbitrageCredentials расшифровывает учётные данные для всех бирж,
// настроенных в движке арбитража. Биржа, отсутствующая в БД или ещё не
// подключённая, просто не попадает в карту - реестр обнаружит нехватку
// при первом Get и вернёт ошибку тому раунду, который её запросил.
func loadArbitrageCredentials(repo *repository.ExchangeRepository, encryptionKey []byte, venues []string) (map[string]exchange.Credentials, error) {
	accounts, err := repo.GetConnected()
	if err != nil {
		return nil, fmt.Errorf("load exchange credentials: %w", err)
	}

	wanted := make(map[string]bool, len(venues))
	for _, v := range venues {
		wanted[strings.ToLower(v)] = true
	}

	creds := make(map[string]exchange.Credentials)
	for _, account := range accounts {
		name := strings.ToLower(account.Name)
		if !wanted[name] {
			continue
		}

		apiKey, err := crypto.Decrypt(account.APIKey, encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt api key for %s: %w", name, err)
		}
		secretKey, err := crypto.Decrypt(account.SecretKey, encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt secret key for %s: %w", name, err)
		}

		var passphrase string
		if account.Passphrase != "" {
			passphrase, err = crypto.Decrypt(account.Passphrase, encryptionKey)
			if err != nil {
				return nil, fmt.Errorf("decrypt passphrase for %s: %w", name, err)
			}
		}

		creds[name] = exchange.Credentials{APIKey: apiKey, Secret: secretKey, Passphrase: passphrase}
	}

	return creds, nil
}

// sumBalances возвращает суммарный баланс подключённых бирж, участвующих в
// арбитраже - используется предохранителем как точка отсчёта для просадки
func sumBalances(creds map[string]exchange.Credentials, repo *repository.ExchangeRepository) float64 {
	accounts, err := repo.GetConnected()
	if err != nil {
		return 0
	}

	var total float64
	for _, account := range accounts {
		if _, ok := creds[strings.ToLower(account.Name)]; ok {
			total += account.Balance
		}
	}
	return total
}

// priceGetterFor строит функцию котировки для OrderValidator поверх
// последнего завершённого раунда Spread Monitor-а: для направления "покупка"
// берёт ask биржи как buy-venue, для "продажи" - bid как sell-venue.
func priceGetterFor(monitor *bot.SpreadMonitor) func(symbol, exchangeName string) float64 {
	return func(symbol, exchangeName string) float64 {
		for _, s := range monitor.LatestSpreads() {
			if s.Symbol != symbol {
				continue
			}
			if s.BuyVenue == exchangeName {
				return s.BuyAsk
			}
			if s.SellVenue == exchangeName {
				return s.SellBid
			}
		}
		return 0
	}
}

// persistSpreads периодически сохраняет последний раунд котировок спредов
// Spread Monitor-а в arbitrage_spread_repository - история спредов не
// участвует в принятии решений движком, только в отчетности
func persistSpreads(ctx context.Context, monitor *bot.SpreadMonitor, repo *repository.ArbitrageSpreadRepository, interval time.Duration, logger *utils.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range monitor.LatestSpreads() {
				spread := s
				if err := repo.Create(&spread); err != nil && logger != nil {
					logger.Sugar().Errorf("persist spread: %v", err)
				}
			}
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
