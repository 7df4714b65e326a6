// Command tradingbot runs the real-time paper-trading engine: it connects to
// the exchange websocket feed, drives trades through the range-bar,
// volume-profile, order-flow, and strategy stages, simulates leveraged
// positions against the live book, and fans out execution events to the
// notification and trade-log sinks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/20hyo/rusto/internal/adapter/feed"
	"github.com/20hyo/rusto/internal/adapter/preflight"
	"github.com/20hyo/rusto/internal/config"
	"github.com/20hyo/rusto/internal/domain"
	"github.com/20hyo/rusto/internal/logger"
	"github.com/20hyo/rusto/internal/notification"
	"github.com/20hyo/rusto/internal/orderbook"
	"github.com/20hyo/rusto/internal/orderflow"
	"github.com/20hyo/rusto/internal/pipeline"
	"github.com/20hyo/rusto/internal/rangebar"
	"github.com/20hyo/rusto/internal/risk"
	"github.com/20hyo/rusto/internal/simulator"
	"github.com/20hyo/rusto/internal/strategy"
	"github.com/20hyo/rusto/internal/tradelog"
	"github.com/20hyo/rusto/internal/volumeprofile"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	configPath := os.Getenv("TRADINGBOT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	loader := config.NewLoader(configPath, log)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	defer loader.Close()

	log = logger.NewWithLevel(cfg.General.LogLevel)

	if err := loader.Watch(func(next *config.Config) {
		// Most settings take effect on restart; the global log level applies live.
		logger.SetLevel(next.General.LogLevel)
		log.Info().Str("log_level", next.General.LogLevel).Msg("configuration file changed")
	}); err != nil {
		log.Warn().Err(err).Msg("config hot reload unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exchangeInfo, netStats, err := runPreflight(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("preflight checks failed, aborting startup")
	}

	tradelogSink, err := buildTradelogSink(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize trade log sink")
	}
	defer tradelogSink.Close()

	notifSvc := buildNotificationService(log)

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.PingMS = float64(netStats.AvgLatency.Microseconds()) / 1000
	executionCh := make(chan domain.ExecutionEvent, pipelineCfg.ExecutionEventBuffer)

	riskMgr := risk.NewManager(riskConfigFrom(cfg), log)
	books := orderbook.NewManager(cfg.Simulator.OrderBookDepth)
	sim := simulator.NewSimulator(simulatorConfigFrom(cfg), riskMgr, books, executionCh, log)

	resolver := &rangebar.ConfigResolver{
		SymbolRanges: cfg.RangeBar.SymbolRanges,
		DefaultPct:   defaultPctPtr(cfg),
	}
	rangeBarBuilder := rangebar.NewBuilder(resolver, cfg.VolumeProfile.TickSize, log)
	profiler := volumeprofile.NewProfiler(cfg.VolumeProfile.TickSize, decimal.NewFromFloat(cfg.VolumeProfile.ValueAreaPct), cfg.VolumeProfile.SessionResetHours)
	applyExchangeInfo(cfg, exchangeInfo, sim, profiler, rangeBarBuilder, log)
	flowTracker := orderflow.NewTracker(orderflowConfigFrom(cfg))
	strategyEngine := strategy.NewEngine(strategyConfigFrom(cfg))
	strategyEngine.SetLogger(log)

	pl := pipeline.NewPipeline(pipelineCfg, rangeBarBuilder, profiler, flowTracker, strategyEngine, sim, executionCh, log)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		pl.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		notifSvc.Run(ctx)
	}()

	go fanOutExecutionEvents(ctx, pl, notifSvc, tradelogSink)

	feedHandlers := feed.Handlers{
		OnTrade: pl.PublishTrade,
		OnDepth: pl.PublishDepth,
	}
	feedClient := feed.New(feed.DefaultConfig(cfg.General.Symbols), feedHandlers, log)

	wg.Add(1)
	go func() {
		defer wg.Done()
		feedClient.Run(ctx)
	}()

	log.Info().Strs("symbols", cfg.General.Symbols).Msg("tradingbot started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining in-flight work")
	wg.Wait()

	summary := tradelogSink.Summary()
	log.Info().
		Int("total_trades", summary.TotalTrades).
		Int("winners", summary.Winners).
		Int("losers", summary.Losers).
		Str("total_pnl", summary.TotalPnL.String()).
		Str("max_drawdown_pct", summary.MaxDrawdownPct.String()).
		Msg("final performance summary")
}

func fanOutExecutionEvents(ctx context.Context, pl *pipeline.Pipeline, notifSvc *notification.Service, sink *tradelog.Sink) {
	events := pl.ExecutionEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			notifSvc.Enqueue(ev)
			switch ev.Kind {
			case domain.EventPositionClosed, domain.EventPositionLiquidated:
				sink.Record(ev.Position)
			}
		}
	}
}

func runPreflight(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*preflight.ExchangeInfoLoader, preflight.NetworkStats, error) {
	pfCfg := preflight.DefaultConfig()

	checker := preflight.NewTimeSyncChecker(pfCfg)
	stats, err := checker.Check(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("time sync check: %w", err)
	}
	log.Info().
		Dur("avg_latency", stats.AvgLatency).
		Dur("time_offset", stats.TimeOffset).
		Msg("preflight time sync ok")

	loader := preflight.NewExchangeInfoLoader(pfCfg)
	if err := loader.Sync(ctx); err != nil {
		return nil, stats, fmt.Errorf("exchange info sync: %w", err)
	}

	for _, symbol := range cfg.General.Symbols {
		if _, ok := loader.Get(symbol); !ok {
			log.Warn().Str("symbol", symbol).Msg("symbol not found in exchange info, filters will be unavailable")
		}
	}

	return loader, stats, nil
}

// applyExchangeInfo distributes each configured symbol's exchange filters to
// the simulator and its scaled tick size to the profiler and range-bar
// builder, so footprint buckets line up with profile levels.
func applyExchangeInfo(cfg *config.Config, loader *preflight.ExchangeInfoLoader, sim *simulator.Simulator, profiler *volumeprofile.Profiler, builder *rangebar.Builder, log *zerolog.Logger) {
	multiplier := decimal.NewFromFloat(cfg.VolumeProfile.TickMultiplier)
	if !multiplier.IsPositive() {
		multiplier = decimal.NewFromInt(1)
	}

	for _, symbol := range cfg.General.Symbols {
		info, ok := loader.Get(symbol)
		if !ok {
			continue
		}
		sim.SetExchangeFilters(symbol, &simulator.ExchangeFilters{
			TickSize:    info.TickSize,
			StepSize:    info.StepSize,
			MinQty:      info.MinQuantity,
			MaxQty:      info.MaxQuantity,
			MinNotional: info.MinNotional,
		})
		tick := info.TickSize.Mul(multiplier)
		profiler.SetSymbolTick(symbol, tick)
		builder.SetSymbolTick(symbol, tick)
		log.Debug().Str("symbol", symbol).Str("tick", tick.String()).Msg("exchange filters applied")
	}
}

func buildTradelogSink(cfg *config.Config, log *zerolog.Logger) (*tradelog.Sink, error) {
	dbPath := os.Getenv("TRADINGBOT_SQLITE_PATH")
	if dbPath == "" {
		dbPath = "data/tradelog.db"
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening trade log database: %w", err)
	}

	return tradelog.NewSink(tradelog.Config{
		CSVPath:   "data/trades.csv",
		JSONPath:  "data/trades.jsonl",
		DB:        db,
		MigrateDB: true,
	}, log)
}

func buildNotificationService(log *zerolog.Logger) *notification.Service {
	registry := buildNotifierRegistry(log)
	var routes []notification.Route

	if slackChannel := os.Getenv("SLACK_CHANNEL"); slackChannel != "" {
		routes = append(routes, notification.Route{Channel: "slack", Recipient: slackChannel})
	}
	if telegramChat := os.Getenv("TELEGRAM_CHAT_ID"); telegramChat != "" {
		routes = append(routes, notification.Route{Channel: "telegram", Recipient: telegramChat})
	}

	return notification.NewService(registry, routes, 256, 2, log)
}

func buildNotifierRegistry(log *zerolog.Logger) *notification.Registry {
	var notifiers []notification.Notifier

	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		channel := os.Getenv("SLACK_CHANNEL")
		slackNotifier, err := notification.NewSlackNotifier(token, channel)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize slack notifier, disabling slack")
		} else {
			notifiers = append(notifiers, slackNotifier)
		}
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		chatID := parseInt64OrZero(os.Getenv("TELEGRAM_CHAT_ID"))
		telegramNotifier, err := notification.NewTelegramNotifier(token, chatID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize telegram notifier, disabling telegram")
		} else {
			notifiers = append(notifiers, telegramNotifier)
		}
	}

	return notification.NewRegistry(notifiers...)
}

func parseInt64OrZero(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}

func defaultPctPtr(cfg *config.Config) *decimal.Decimal {
	if cfg.RangeBar.DefaultPct.IsZero() {
		return nil
	}
	pct := cfg.RangeBar.DefaultPct
	return &pct
}

func riskConfigFrom(cfg *config.Config) risk.Config {
	return risk.Config{
		InitialBalance:           cfg.Risk.InitialBalance,
		MaxRiskPerTrade:          cfg.Risk.MaxRiskPerTrade,
		DailyLossLimitPct:        cfg.Risk.DailyLossLimitPct,
		MaxConcurrentPositions:   cfg.Risk.MaxConcurrentPositions,
		Leverage:                 cfg.Simulator.Leverage,
		BreakEvenTicks:           cfg.Risk.BreakEven.Ticks,
		BreakEvenMinHoldSecs:     cfg.Risk.BreakEven.MinHoldSecs,
		BreakEvenTriggerRR:       cfg.Risk.BreakEven.TriggerRR,
		BreakEvenProfitLockTicks: cfg.Risk.BreakEven.ProfitLockTicks,
	}
}

func simulatorConfigFrom(cfg *config.Config) simulator.Config {
	s := cfg.Simulator
	return simulator.Config{
		TakerFee:                   s.TakerFee,
		OrderBookDepth:             s.OrderBookDepth,
		Leverage:                   s.Leverage,
		MarginType:                 s.MarginType,
		MaintenanceMarginRate:      s.MaintenanceMarginRate,
		SoftStopSeconds:            s.SoftStop.Seconds,
		SoftStopDrawdownPct:        s.SoftStop.DrawdownPct,
		RequireOrderbookForEntry:   s.RequireOrderbookForEntry,
		MaxSpreadBps:               s.MaxSpreadBps,
		MinDepthImbalanceRatio:     s.MinDepthImbalanceRatio,
		ExpectancyFilterEnabled:    s.Expectancy.FilterEnabled,
		ExpectancyMinTradesPerHour: s.Expectancy.MinTradesPerHour,
		ExpectancyMinAvgPnL:        s.Expectancy.MinAvgPnL,
		ExpectancyLookbackTrades:   s.Expectancy.LookbackTrades,
		SlippageModelEnabled:       s.SlippageModelEnabled,
		MaxModelSlippageBps:        s.MaxModelSlippageBps,
		ImpactDepthLevels:          s.Impact.DepthLevels,
		ImpactWeightBps:            s.Impact.WeightBps,
	}
}

func orderflowConfigFrom(cfg *config.Config) orderflow.Config {
	return orderflow.Config{
		AbsorptionDeltaRatio:  cfg.OrderFlow.AbsorptionDeltaRatio,
		MaxPriceDeltaTicks:    cfg.OrderFlow.MaxPriceDeltaTicks,
		VolumeBaselineBars:    cfg.OrderFlow.VolumeBaselineBars,
		VolumeBurstMultiplier: cfg.OrderFlow.VolumeBurstMultiplier,
	}
}

func strategyConfigFrom(cfg *config.Config) strategy.Config {
	s := cfg.Strategy
	return strategy.Config{
		EnabledSetups:               s.EnabledSetups,
		AAAPOCDistanceTicks:         s.AAAPocDistanceTicks,
		MomentumLookbackBars:        s.MomentumLookbackBars,
		MinDeltaConfirmation:        s.MinDeltaConfirmation,
		DefaultStopTicks:            cfg.Risk.DefaultStopTicks,
		DefaultTargetMultiplier:     cfg.Risk.DefaultTargetMultiplier,
		AdvancedZoneTicks:           s.Advanced.ZoneTicks,
		AdvancedMinImbalanceRatio:   s.Advanced.MinImbalanceRatio,
		AdvancedMinCVD1MinChange:    s.Advanced.MinCVD1MinChange,
		AdvancedMinBarRangePct:      s.Advanced.MinBarRangePct,
		AdvancedCooldownBars:        s.Advanced.CooldownBars,
		AdvancedRequireReversalBar:  s.Advanced.RequireReversalBar,
		AdvancedMinVolumeBurstRatio: s.Advanced.MinVolumeBurstRatio,
		AutoTuneVolumeBurst:         s.Advanced.AutoTuneVolumeBurst,
		TuningLookbackBars:          s.Advanced.TuningLookbackBars,
		TuningLookaheadBars:         s.Advanced.TuningLookaheadBars,
		TuningStopPct:               s.Advanced.TuningStopPct,
		TuningTargetPct:             s.Advanced.TuningTargetPct,
		TuningMinTrades:             s.Advanced.TuningMinTrades,
	}
}
