// Package strategy evaluates range bars against a fixed family of setups and
// emits trade signals, with an adaptive burst-threshold tuner for the
// Advanced Order Flow setup.
package strategy

import "github.com/shopspring/decimal"

// Config holds every tunable threshold of the strategy engine.
type Config struct {
	EnabledSetups []string

	AAAPOCDistanceTicks decimal.Decimal

	MomentumLookbackBars int
	MinDeltaConfirmation decimal.Decimal

	DefaultStopTicks        decimal.Decimal
	DefaultTargetMultiplier decimal.Decimal

	AdvancedZoneTicks           decimal.Decimal
	AdvancedMinImbalanceRatio   decimal.Decimal
	AdvancedMinCVD1MinChange    decimal.Decimal
	AdvancedMinBarRangePct      decimal.Decimal
	AdvancedCooldownBars        int
	AdvancedRequireReversalBar  bool
	AdvancedMinVolumeBurstRatio decimal.Decimal

	AutoTuneVolumeBurst bool
	TuningLookbackBars  int
	TuningLookaheadBars int
	TuningStopPct       decimal.Decimal
	TuningTargetPct     decimal.Decimal
	TuningMinTrades     int
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
