// Package bootstrap wires configuration, storage, exchange and the engine
// into a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"trade_engine/internal/config"
	"trade_engine/internal/core"
	"trade_engine/internal/engine"
	"trade_engine/internal/exchange"
	"trade_engine/internal/feed"
	"trade_engine/internal/infrastructure/metrics"
	"trade_engine/internal/storage"
	"trade_engine/internal/trading/monitor"
	"trade_engine/internal/trading/order"
	"trade_engine/internal/trading/strategy"
	"trade_engine/internal/trading/wallet"
	"trade_engine/pkg/concurrency"
	"trade_engine/pkg/logging"
	"trade_engine/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// App holds the fully wired application.
type App struct {
	Cfg    *config.Config
	Logger core.ILogger

	store     *storage.Store
	tel       *telemetry.Telemetry
	metrics   *metrics.Server
	fetchPool *concurrency.WorkerPool
	engine    *engine.Engine
}

// NewApp bootstraps every dependency from the config file. Any failure here
// is fatal to startup.
func NewApp(configPath, exchangeOverride, logLevelOverride string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if exchangeOverride != "" {
		cfg.App.Exchange = exchangeOverride
	}
	if logLevelOverride != "" {
		cfg.System.LogLevel = logLevelOverride
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	tel, err := telemetry.Setup("trade_engine")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store, err := storage.NewStore(cfg.App.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	priceFeed := feed.NewHTTPFeed(cfg.App.PriceFeedURL, cfg.ExchangeTimeout(), logger)

	exchangeClient, err := exchange.NewExchange(cfg.App.Exchange, cfg, priceFeed, logger)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}

	ledger := wallet.NewService(exchangeClient, store, logger)

	executor := order.NewExecutor(exchangeClient, ledger, store, logger, order.Config{
		RateLimit:   float64(cfg.Engine.OrderRateLimit),
		RateBurst:   cfg.Engine.OrderRateBurst,
		CallTimeout: cfg.ExchangeTimeout(),
	})

	posMonitor := monitor.NewPositionMonitor(monitor.Config{
		PeakDropWait: cfg.PeakDropWait(),
		StopLossPct:  decimal.NewFromFloat(cfg.Monitor.StopLossPct),
		HistorySize:  cfg.Monitor.PriceHistorySize,
	}, store, logger)

	strategies, err := buildStrategies(cfg, logger)
	if err != nil {
		return nil, err
	}

	fetchPool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "snapshot_fetch",
		MaxWorkers:  cfg.Engine.FetchPoolSize,
		MaxCapacity: cfg.Engine.FetchPoolSize * 4,
		IdleTimeout: time.Minute,
	}, logger)

	eng := engine.NewEngine(engine.Config{
		PollInterval:  cfg.PollInterval(),
		MaxBackoff:    cfg.MaxBackoff(),
		QuoteCurrency: cfg.Engine.QuoteCurrency,
	}, priceFeed, strategies, executor, posMonitor, fetchPool, logger)

	var metricsServer *metrics.Server
	if cfg.Telemetry.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger, executor)
	}

	return &App{
		Cfg:       cfg,
		Logger:    logger,
		store:     store,
		tel:       tel,
		metrics:   metricsServer,
		fetchPool: fetchPool,
		engine:    eng,
	}, nil
}

// buildStrategies instantiates every configured strategy kind through the
// closed registry. An unknown kind fails startup.
func buildStrategies(cfg *config.Config, logger core.ILogger) ([]core.SignalGenerator, error) {
	registry := strategy.NewRegistry()
	params := strategy.ParamsFromConfig(cfg.Strategy)

	strategies := make([]core.SignalGenerator, 0, len(cfg.Strategy.Kinds))
	for _, kind := range cfg.Strategy.Kinds {
		s, err := registry.Create(strategy.Kind(kind), params, logger)
		if err != nil {
			return nil, fmt.Errorf("strategy: %w", err)
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// Run starts everything and blocks until ctx is done, then shuts down in
// reverse order.
func (a *App) Run(ctx context.Context) error {
	if a.metrics != nil {
		a.metrics.Start()
	}
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	<-ctx.Done()

	a.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.engine.Stop(); err != nil {
		a.Logger.Error("Engine stop failed", "error", err.Error())
	}
	a.fetchPool.Stop()
	if a.metrics != nil {
		if err := a.metrics.Stop(shutdownCtx); err != nil {
			a.Logger.Error("Metrics server stop failed", "error", err.Error())
		}
	}
	if err := a.store.Close(); err != nil {
		a.Logger.Error("Store close failed", "error", err.Error())
	}
	if err := a.tel.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("Telemetry shutdown failed", "error", err.Error())
	}
	return nil
}
