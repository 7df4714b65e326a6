// Package simulator runs accepted trade signals through pre-entry gates,
// opens leveraged paper positions, and advances their lifecycle against the
// live trade stream: excursion tracking, liquidation, staged exits, standard
// stop/target exits, and break-even arming.
package simulator

import "github.com/shopspring/decimal"

// Config holds the simulator's tunable parameters, named per the flat
// configuration schema.
type Config struct {
	TakerFee              decimal.Decimal
	OrderBookDepth        int
	Leverage              int
	MarginType            string // "isolated" or "cross"
	MaintenanceMarginRate decimal.Decimal

	SoftStopSeconds     int64
	SoftStopDrawdownPct decimal.Decimal

	RequireOrderbookForEntry bool
	MaxSpreadBps             decimal.Decimal
	MinDepthImbalanceRatio   decimal.Decimal

	ExpectancyFilterEnabled    bool
	ExpectancyMinTradesPerHour int
	ExpectancyMinAvgPnL        decimal.Decimal
	ExpectancyLookbackTrades   int

	SlippageModelEnabled bool
	MaxModelSlippageBps  decimal.Decimal
	ImpactDepthLevels    int
	ImpactWeightBps      decimal.Decimal
}

// ExchangeFilters describes one symbol's exchange-reported tick/step/notional
// constraints, applied to signals before a position is opened.
type ExchangeFilters struct {
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinNotional decimal.Decimal
}
