package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/arbitrage"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/datasource"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/cache"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/config"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/observability"
	"github.com/DorianYoung7702/ChainMonitorV2/internal/storage"
)

func main() {
	// Create root context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	log.Println("Loading configuration...")
	cfg := config.MustLoad("config.yaml")

	// Setup observability (foundational - must be first)
	log.Println("Setting up observability...")
	logger := observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	metrics, err := observability.NewMetrics("amm-arb-scanner", cfg.Observability.Metrics.Enabled)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, "amm-arb-scanner", cfg.Observability.Tracing.Endpoint, cfg.Observability.Tracing.Enabled)
	if err != nil {
		log.Fatalf("Failed to create tracer: %v", err)
	}
	defer tracerProvider.Shutdown(ctx)

	var tracer observability.Tracer = observability.NewNoopTracer()
	if cfg.Observability.Tracing.Enabled {
		tracer = observability.NewTracer("amm-arb-scanner")
	}

	logger.Info("observability setup complete")

	// Setup infrastructure
	logger.Info("setting up infrastructure...")

	// Memory cache, layered over Redis when configured
	memCache := cache.NewMemoryCache(cfg.Cache.L1MaxSize)
	defer memCache.Close()

	var tokenCache cache.Cache = memCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.LogError(ctx, "failed to create Redis cache", err)
			log.Fatalf("Failed to create Redis cache: %v", err)
		}
		defer redisCache.Close()
		tokenCache = cache.NewLayeredCache(memCache, redisCache)
	}

	// Warm token metadata so the first pass skips ERC20 lookups
	warmer := cache.NewWarmer(logger, cache.DefaultWarmupConfig())
	warmer.RegisterProvider(datasource.NewTokenMetaWarmer(tokenCache, cfg.Cache.L2TTL))
	if results := warmer.Warmup(ctx); results.HasErrors() {
		logger.Warn("cache warmup had errors", "errors", results.Errors)
	}

	// Create Ethereum client pool
	logger.Info("connecting to Ethereum...")
	endpoints := make([]datasource.EndpointConfig, len(cfg.Ethereum.RPCEndpoints))
	for i, ep := range cfg.Ethereum.RPCEndpoints {
		endpoints[i] = datasource.EndpointConfig{
			URL:    ep.URL,
			Weight: ep.Weight,
		}
	}

	clientPool, err := datasource.NewClientPool(datasource.ClientPoolConfig{
		Endpoints: endpoints,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create client pool", err)
		log.Fatalf("Failed to create client pool: %v", err)
	}
	defer clientPool.Close()

	// Pool state fetcher
	fetcher, err := datasource.NewPoolFetcher(datasource.PoolFetcherConfig{
		Clients: clientPool,
		Cache:   tokenCache,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create pool fetcher", err)
		log.Fatalf("Failed to create pool fetcher: %v", err)
	}

	// Opportunity persistence
	var store *storage.OpportunityStore
	if cfg.Storage.Enabled {
		store, err = storage.NewOpportunityStore(cfg.Storage.Path)
		if err != nil {
			logger.LogError(ctx, "failed to open opportunity store", err)
			log.Fatalf("Failed to open opportunity store: %v", err)
		}
		defer store.Close()
	}

	// Batch evaluator
	strategy, err := parseStrategy(cfg.Scan.Mode)
	if err != nil {
		log.Fatalf("Invalid scan mode: %v", err)
	}

	gas := arbitrage.GasConfig{
		GasUnits:         cfg.Gas.GasUnits,
		GasPriceWei:      cfg.Gas.GasPriceWeiInt(),
		NumeraireSymbols: cfg.Gas.NumeraireSymbols,
		TradeSizeToken0:  cfg.Scan.TradeSizeToken0,
	}

	evaluator := arbitrage.NewEvaluator(arbitrage.EvaluatorConfig{
		Strategy: strategy,
		Exact: arbitrage.ExactConfig{
			TradeSizeToken0:  cfg.Scan.TradeSizeToken0,
			MaxTickCrossings: cfg.Scan.MaxTickCrossings,
			Gas:              gas,
		},
		Screen: arbitrage.ScreenConfig{
			Gas:         gas,
			MaxReported: cfg.Scan.MaxReported,
		},
		Concurrency:       cfg.Scan.Concurrency,
		MaxPairs:          cfg.Scan.MaxPairs,
		Source:            fetcher,
		InitialTickWindow: cfg.Scan.TickWindow,
		MaxWindowRetries:  cfg.Scan.MaxWindowRetries,
		Logger:            logger,
		Metrics:           metrics,
		Tracer:            tracer,
	})

	// Start HTTP server for health checks and metrics
	logger.Info("starting HTTP server...")
	go startHTTPServer(cfg.HTTP.Port, metrics, logger)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Run scan loop
	logger.Info("starting arbitrage scanner...",
		"mode", cfg.Scan.Mode,
		"pools", len(cfg.Scan.Pools),
		"interval", cfg.Scan.Interval.String())
	go func() {
		if err := runScanner(ctx, cfg, evaluator, fetcher, store, logger); err != nil {
			logger.LogError(ctx, "scanner error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	select {
	case <-sigCh:
		logger.Info("shutdown signal received, gracefully stopping...")
	case <-ctx.Done():
	}
	cancel()
	logger.Info("application stopped")
}

// parseStrategy maps the config mode string to an evaluation strategy
func parseStrategy(mode string) (arbitrage.Strategy, error) {
	switch mode {
	case "screen":
		return arbitrage.StrategyScreen, nil
	case "exact":
		return arbitrage.StrategyExact, nil
	case "constant_product":
		return arbitrage.StrategyConstantProduct, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", mode)
	}
}

// runScanner runs the periodic scan loop
func runScanner(
	ctx context.Context,
	cfg *config.Config,
	evaluator *arbitrage.Evaluator,
	fetcher *datasource.PoolFetcher,
	store *storage.OpportunityStore,
	logger *observability.Logger,
) error {
	poolAddrs := make([]common.Address, len(cfg.Scan.Pools))
	for i, p := range cfg.Scan.Pools {
		poolAddrs[i] = common.HexToAddress(p)
	}
	reserveAddrs := make([]common.Address, len(cfg.Scan.ReservePools))
	for i, p := range cfg.Scan.ReservePools {
		reserveAddrs[i] = common.HexToAddress(p)
	}

	ticker := time.NewTicker(cfg.Scan.Interval)
	defer ticker.Stop()

	for {
		if cfg.Scan.Mode == "constant_product" {
			scanReservePools(ctx, cfg, evaluator, fetcher, reserveAddrs, logger)
		} else {
			scanV3Pools(ctx, cfg, evaluator, fetcher, store, poolAddrs, logger)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Info("context cancelled, stopping scanner")
			return nil
		}
	}
}

// scanV3Pools runs one screen or exact pass over the configured pools
func scanV3Pools(
	ctx context.Context,
	cfg *config.Config,
	evaluator *arbitrage.Evaluator,
	fetcher *datasource.PoolFetcher,
	store *storage.OpportunityStore,
	poolAddrs []common.Address,
	logger *observability.Logger,
) {
	start := time.Now()

	snapshots := fetcher.FetchSnapshots(ctx, poolAddrs, cfg.Scan.TickWindow)
	if len(snapshots) == 0 {
		logger.Warn("no pool snapshots fetched, skipping pass")
		return
	}

	result := evaluator.Run(ctx, snapshots)

	for _, w := range result.Warnings {
		logger.Warn("scan warning", "warning", w)
	}
	if result.Best != nil {
		logger.Info("best candidate",
			"pair", result.Best.Symbol0+"-"+result.Best.Symbol1,
			"buy_pool", result.Best.BuyPool.Hex(),
			"sell_pool", result.Best.SellPool.Hex(),
			"net_spread_bps", result.Best.NetSpreadBps,
			"executable", result.Best.Executable,
		)
	}

	if store != nil && len(result.Opportunities) > 0 {
		if n, err := store.SaveBatch(ctx, result.Opportunities); err != nil {
			logger.LogError(ctx, "failed to persist opportunities", err)
		} else {
			logger.Debug("opportunities persisted", "rows", n)
		}
	}

	logger.Info("scan pass finished",
		"pools", len(snapshots),
		"pairs", result.PairsTried,
		"opportunities", len(result.Opportunities),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// scanReservePools runs one constant-product pass
func scanReservePools(
	ctx context.Context,
	cfg *config.Config,
	evaluator *arbitrage.Evaluator,
	fetcher *datasource.PoolFetcher,
	reserveAddrs []common.Address,
	logger *observability.Logger,
) {
	start := time.Now()

	pools := make([]*arbitrage.ReservePool, 0, len(reserveAddrs))
	for _, addr := range reserveAddrs {
		rp, err := fetcher.FetchReserves(ctx, addr)
		if err != nil {
			logger.Warn("reserve fetch failed, skipping pool",
				"pool", addr.Hex(),
				"error", err.Error())
			continue
		}
		pools = append(pools, rp)
	}
	if len(pools) < 2 {
		logger.Warn("fewer than two reserve pools fetched, skipping pass")
		return
	}

	results := evaluator.RunReserves(ctx, pools, arbitrage.ScanConfig{
		Steps:            cfg.Scan.ScanSteps,
		MaxFracOfReserve: cfg.Scan.MaxFracOfReserve,
	})

	for _, res := range results {
		logger.Info("profitable cycle",
			"start_token", res.StartToken.String(),
			"amount_in", res.AmountIn.String(),
			"profit", res.Profit.String(),
		)
	}

	logger.Info("reserve scan pass finished",
		"pools", len(pools),
		"cycles_found", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// startHTTPServer starts HTTP server for health checks and metrics
func startHTTPServer(port int, metrics *observability.Metrics, logger *observability.Logger) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Readiness check
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// Metrics endpoint
	mux.Handle("/metrics", metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("HTTP server listening", "address", addr)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.LogError(context.Background(), "HTTP server error", err)
	}
}
