// Package config loads the bot's flat configuration schema from a YAML file
// plus environment variable overrides, validates the enforced bounds, and
// supports hot reload via fsnotify.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// General holds symbol selection and logging settings.
type General struct {
	Symbols           []string `mapstructure:"symbols"`
	LogLevel          string   `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error fatal panic"`
	AutoSelectSymbols bool     `mapstructure:"auto_select_symbols"`
	TopNSymbols       int      `mapstructure:"top_n_symbols" validate:"gte=0"`
}

// RangeBarConfig controls the per-symbol range-bar threshold.
type RangeBarConfig struct {
	DefaultPct   decimal.Decimal            `mapstructure:"default_pct"`
	SymbolRanges map[string]decimal.Decimal `mapstructure:"symbol_ranges"`
}

// VolumeProfileConfig controls tick bucketing and session reset.
type VolumeProfileConfig struct {
	TickSize          decimal.Decimal `mapstructure:"tick_size"`
	ValueAreaPct      float64         `mapstructure:"value_area_pct"`
	SessionResetHours float64         `mapstructure:"session_reset_hours"`
	TickMultiplier    float64         `mapstructure:"tick_multiplier"`
}

// OrderFlowConfig controls absorption detection and volume-burst baseline.
type OrderFlowConfig struct {
	AbsorptionDeltaRatio  decimal.Decimal `mapstructure:"absorption_delta_ratio"`
	MaxPriceDeltaTicks    decimal.Decimal `mapstructure:"max_price_delta_ticks"`
	LargeVolumeMultiplier decimal.Decimal `mapstructure:"large_volume_multiplier"`
	VolumeBaselineBars    int             `mapstructure:"volume_baseline_bars"`
	VolumeBurstMultiplier decimal.Decimal `mapstructure:"volume_burst_multiplier"`
}

// AdvancedSetupConfig controls the Advanced Order Flow setup and its
// adaptive burst-threshold tuning loop.
type AdvancedSetupConfig struct {
	ZoneTicks           decimal.Decimal `mapstructure:"zone_ticks"`
	MinImbalanceRatio   decimal.Decimal `mapstructure:"min_imbalance_ratio"`
	MinCVD1MinChange    decimal.Decimal `mapstructure:"min_cvd_1min_change"`
	MinBarRangePct      decimal.Decimal `mapstructure:"min_bar_range_pct"`
	CooldownBars        int             `mapstructure:"cooldown_bars"`
	RequireReversalBar  bool            `mapstructure:"require_reversal_bar"`
	MinVolumeBurstRatio decimal.Decimal `mapstructure:"min_volume_burst_ratio"`
	AutoTuneVolumeBurst bool            `mapstructure:"auto_tune_volume_burst"`
	TuningLookbackBars  int             `mapstructure:"tuning_lookback_bars"`
	TuningLookaheadBars int             `mapstructure:"tuning_lookahead_bars"`
	TuningStopPct       decimal.Decimal `mapstructure:"tuning_stop_pct"`
	TuningTargetPct     decimal.Decimal `mapstructure:"tuning_target_pct"`
	TuningMinTrades     int             `mapstructure:"tuning_min_trades"`
}

// StrategyConfig selects enabled setups and their thresholds.
type StrategyConfig struct {
	EnabledSetups        []string            `mapstructure:"enabled_setups"`
	AAAPocDistanceTicks  decimal.Decimal     `mapstructure:"aaa_poc_distance_ticks"`
	MomentumLookbackBars int                 `mapstructure:"momentum_lookback_bars"`
	MinDeltaConfirmation decimal.Decimal     `mapstructure:"min_delta_confirmation"`
	Advanced             AdvancedSetupConfig `mapstructure:"advanced"`
}

// BreakEvenConfig controls stop-to-breakeven arming.
type BreakEvenConfig struct {
	Ticks           decimal.Decimal `mapstructure:"ticks"`
	MinHoldSecs     int64           `mapstructure:"min_hold_secs"`
	TriggerRR       decimal.Decimal `mapstructure:"trigger_rr"`
	ProfitLockTicks decimal.Decimal `mapstructure:"profit_lock_ticks"`
}

// RiskConfig controls sizing, the daily halt, and concurrency limits.
type RiskConfig struct {
	InitialBalance          decimal.Decimal `mapstructure:"initial_balance"`
	MaxRiskPerTrade         decimal.Decimal `mapstructure:"max_risk_per_trade"`
	DailyLossLimitPct       decimal.Decimal `mapstructure:"daily_loss_limit_pct"`
	MaxConcurrentPositions  int             `mapstructure:"max_concurrent_positions"`
	BreakEven               BreakEvenConfig `mapstructure:"break_even"`
	DefaultStopTicks        decimal.Decimal `mapstructure:"default_stop_ticks"`
	DefaultTargetMultiplier decimal.Decimal `mapstructure:"default_target_multiplier"`
}

// SoftStopConfig controls the time/drawdown-gated soft exit.
type SoftStopConfig struct {
	Seconds     int64           `mapstructure:"seconds"`
	DrawdownPct decimal.Decimal `mapstructure:"drawdown_pct"`
}

// ExpectancyConfig controls the per-(symbol, entry-hour) expectancy gate.
type ExpectancyConfig struct {
	FilterEnabled    bool            `mapstructure:"filter_enabled"`
	MinTradesPerHour int             `mapstructure:"min_trades_per_hour"`
	MinAvgPnL        decimal.Decimal `mapstructure:"min_avg_pnl"`
	LookbackTrades   int             `mapstructure:"lookback_trades"`
}

// ImpactConfig controls the slippage model's market-impact component.
type ImpactConfig struct {
	DepthLevels int             `mapstructure:"depth_levels"`
	WeightBps   decimal.Decimal `mapstructure:"weight_bps"`
}

// SimulatorConfig controls fees, leverage, margin, and the entry gates.
type SimulatorConfig struct {
	SlippageTicks            decimal.Decimal  `mapstructure:"slippage_ticks"`
	MakerFee                 decimal.Decimal  `mapstructure:"maker_fee"`
	TakerFee                 decimal.Decimal  `mapstructure:"taker_fee"`
	OrderBookDepth           int              `mapstructure:"order_book_depth"`
	Leverage                 int              `mapstructure:"leverage"`
	MarginType               string           `mapstructure:"margin_type"`
	MaintenanceMarginRate    decimal.Decimal  `mapstructure:"maintenance_margin_rate"`
	SoftStop                 SoftStopConfig   `mapstructure:"soft_stop"`
	RequireOrderbookForEntry bool             `mapstructure:"require_orderbook_for_entry"`
	MaxSpreadBps             decimal.Decimal  `mapstructure:"max_spread_bps"`
	MinDepthImbalanceRatio   decimal.Decimal  `mapstructure:"min_depth_imbalance_ratio"`
	Expectancy               ExpectancyConfig `mapstructure:"expectancy"`
	SlippageModelEnabled     bool             `mapstructure:"slippage_model_enabled"`
	MaxModelSlippageBps      decimal.Decimal  `mapstructure:"max_model_slippage_bps"`
	Impact                   ImpactConfig     `mapstructure:"impact"`
}

// Config is the complete flat configuration schema.
type Config struct {
	General       General             `mapstructure:"general"`
	RangeBar      RangeBarConfig      `mapstructure:"range_bar"`
	VolumeProfile VolumeProfileConfig `mapstructure:"volume_profile"`
	OrderFlow     OrderFlowConfig     `mapstructure:"order_flow"`
	Strategy      StrategyConfig      `mapstructure:"strategy"`
	Risk          RiskConfig          `mapstructure:"risk"`
	Simulator     SimulatorConfig     `mapstructure:"simulator"`
}

// Loader loads Config from file and environment, optionally watching the
// file for hot reload.
type Loader struct {
	v       *viper.Viper
	logger  *zerolog.Logger
	path    string
	onLoad  func(*Config)
	watcher *fsnotify.Watcher
}

// NewLoader creates a Loader reading configPath (a YAML file) and honoring
// environment-variable overrides with "." replaced by "_".
func NewLoader(configPath string, logger *zerolog.Logger) *Loader {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return &Loader{v: v, logger: logger, path: configPath}
}

// Load reads, unmarshals, and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if l.logger != nil {
			l.logger.Warn().Str("path", l.path).Msg("config file not found, using defaults and environment variables")
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := l.v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch enables hot reload: onChange is called with the freshly validated
// config on every file write. Invalid reloads are logged and discarded,
// keeping the last-good configuration in effect.
func (l *Loader) Watch(onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(l.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watching config file: %w", err)
	}
	l.watcher = watcher
	l.onLoad = onChange

	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := l.Load()
			if err != nil {
				if l.logger != nil {
					l.logger.Error().Err(err).Msg("config reload failed, keeping previous configuration")
				}
				continue
			}
			if l.logger != nil {
				l.logger.Info().Msg("configuration reloaded")
			}
			l.onLoad(cfg)
		}
	}()
	return nil
}

// Close stops the file watcher, if one is running.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.auto_select_symbols", false)
	v.SetDefault("general.top_n_symbols", 10)

	v.SetDefault("volume_profile.value_area_pct", 0.70)
	v.SetDefault("volume_profile.session_reset_hours", 24)
	v.SetDefault("volume_profile.tick_multiplier", 1)

	v.SetDefault("order_flow.volume_baseline_bars", 20)

	v.SetDefault("strategy.momentum_lookback_bars", 20)
	v.SetDefault("strategy.advanced.cooldown_bars", 10)
	v.SetDefault("strategy.advanced.tuning_lookback_bars", 200)
	v.SetDefault("strategy.advanced.tuning_lookahead_bars", 20)
	v.SetDefault("strategy.advanced.tuning_min_trades", 10)

	v.SetDefault("risk.max_concurrent_positions", 3)

	v.SetDefault("simulator.order_book_depth", 20)
	v.SetDefault("simulator.leverage", 10)
	v.SetDefault("simulator.margin_type", "isolated")
	v.SetDefault("simulator.expectancy.lookback_trades", 50)
	v.SetDefault("simulator.impact.depth_levels", 5)
}
