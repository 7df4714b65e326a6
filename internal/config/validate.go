package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	maxRiskPerTradeCeiling   = decimal.NewFromFloat(0.1)
	dailyLossLimitPctCeiling = decimal.NewFromFloat(0.5)
)

// Validate enforces the documented bounds on load. The risk and simulator
// decimal bounds are only checked when the field is non-zero;
// volume_profile.value_area_pct and simulator.expectancy.lookback_trades are
// always checked and must be positive. Fields such as General.Symbols are not
// checked here.
func Validate(cfg *Config) error {
	if cfg.VolumeProfile.ValueAreaPct <= 0 || cfg.VolumeProfile.ValueAreaPct > 1 {
		return fmt.Errorf("volume_profile.value_area_pct must be in (0, 1], got %v", cfg.VolumeProfile.ValueAreaPct)
	}

	if !cfg.Risk.MaxRiskPerTrade.IsZero() {
		if cfg.Risk.MaxRiskPerTrade.IsNegative() || cfg.Risk.MaxRiskPerTrade.GreaterThan(maxRiskPerTradeCeiling) {
			return fmt.Errorf("risk.max_risk_per_trade must be in (0, 0.1], got %s", cfg.Risk.MaxRiskPerTrade)
		}
	}
	if !cfg.Risk.DailyLossLimitPct.IsZero() {
		if cfg.Risk.DailyLossLimitPct.IsNegative() || cfg.Risk.DailyLossLimitPct.GreaterThan(dailyLossLimitPctCeiling) {
			return fmt.Errorf("risk.daily_loss_limit_pct must be in (0, 0.5], got %s", cfg.Risk.DailyLossLimitPct)
		}
	}

	switch cfg.Simulator.MarginType {
	case "", "isolated", "cross":
	default:
		return fmt.Errorf("simulator.margin_type must be isolated or cross, got %q", cfg.Simulator.MarginType)
	}

	if !cfg.Simulator.MaxSpreadBps.IsZero() && !cfg.Simulator.MaxSpreadBps.IsPositive() {
		return fmt.Errorf("simulator.max_spread_bps must be > 0")
	}
	if !cfg.Simulator.MinDepthImbalanceRatio.IsZero() && !cfg.Simulator.MinDepthImbalanceRatio.IsPositive() {
		return fmt.Errorf("simulator.min_depth_imbalance_ratio must be > 0")
	}
	if cfg.Simulator.Expectancy.FilterEnabled && cfg.Simulator.Expectancy.MinTradesPerHour <= 0 {
		return fmt.Errorf("simulator.expectancy.min_trades_per_hour must be > 0 when the expectancy filter is enabled")
	}
	if cfg.Simulator.Expectancy.LookbackTrades <= 0 {
		return fmt.Errorf("simulator.expectancy.lookback_trades must be > 0")
	}
	if cfg.Simulator.SlippageModelEnabled && !cfg.Simulator.MaxModelSlippageBps.IsPositive() {
		return fmt.Errorf("simulator.max_model_slippage_bps must be > 0 when the slippage model is enabled")
	}
	if cfg.Simulator.SlippageModelEnabled && cfg.Simulator.Impact.DepthLevels <= 0 {
		return fmt.Errorf("simulator.impact.depth_levels must be > 0 when the slippage model is enabled")
	}

	return nil
}
