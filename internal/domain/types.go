// Package domain defines the fixed-precision event and entity types shared
// by every stage of the trading pipeline: trades and depth from the feed,
// range bars, volume-profile snapshots, order-flow metrics, trade signals,
// and simulated positions.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the aggressor side of a trade or the direction of a position.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// MarginType selects isolated vs cross margin accounting.
type MarginType int

const (
	Isolated MarginType = iota
	Cross
)

func (m MarginType) String() string {
	if m == Isolated {
		return "Isolated"
	}
	return "Cross"
}

// PositionStatus tracks the lifecycle state of a simulated Position.
type PositionStatus int

const (
	PositionOpen PositionStatus = iota
	PositionClosed
	PositionLiquidated
)

func (p PositionStatus) String() string {
	switch p {
	case PositionOpen:
		return "Open"
	case PositionClosed:
		return "Closed"
	default:
		return "Liquidated"
	}
}

// SetupType names the strategy family that produced a TradeSignal.
type SetupType int

const (
	SetupAAA SetupType = iota
	SetupMomentumSqueeze
	SetupAbsorptionReversal
	SetupAdvancedOrderFlow
)

func (s SetupType) String() string {
	switch s {
	case SetupAAA:
		return "AAA"
	case SetupMomentumSqueeze:
		return "MomentumSqueeze"
	case SetupAbsorptionReversal:
		return "AbsorptionReversal"
	default:
		return "AdvancedOrderFlow"
	}
}

// ExitReason records why a Position was closed.
type ExitReason int

const (
	ExitStopLoss ExitReason = iota
	ExitTakeProfit
	ExitTP2
	ExitSoftStop
	ExitLiquidation
)

func (e ExitReason) String() string {
	switch e {
	case ExitStopLoss:
		return "StopLoss"
	case ExitTakeProfit:
		return "TakeProfit"
	case ExitTP2:
		return "TP2"
	case ExitSoftStop:
		return "SoftStop"
	default:
		return "Liquidation"
	}
}

// NormalizedTrade is one aggregated trade from the market feed.
type NormalizedTrade struct {
	Symbol    string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Side      Side
	Timestamp time.Time
	TradeID   uint64
}

// DepthLevel is one price level of an order-book snapshot delta.
// Quantity == 0 means the level must be removed.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// DepthUpdate is a batch of bid/ask level deltas for one symbol.
type DepthUpdate struct {
	Symbol    string
	Bids      []DepthLevel
	Asks      []DepthLevel
	Timestamp time.Time
}

// FootprintLevel accumulates bid/ask (maker-side) volume traded at one
// price bucket within a RangeBar.
type FootprintLevel struct {
	BidVolume decimal.Decimal
	AskVolume decimal.Decimal
}

// RangeBar is a completed price-range bar with its per-price footprint.
type RangeBar struct {
	Symbol     string
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	BuyVolume  decimal.Decimal
	SellVolume decimal.Decimal
	OpenTime   time.Time
	CloseTime  time.Time
	Footprint  map[int64]*FootprintLevel
	BarIndex   uint64
}

// Delta is buy volume minus sell volume for this bar.
func (b *RangeBar) Delta() decimal.Decimal {
	return b.BuyVolume.Sub(b.SellVolume)
}

// Range is the bar's high-low excursion.
func (b *RangeBar) Range() decimal.Decimal {
	return b.High.Sub(b.Low)
}

// VolumeProfileSnapshot is the derived session statistics for one symbol.
type VolumeProfileSnapshot struct {
	Symbol      string
	POC         decimal.Decimal
	VAH         decimal.Decimal
	VAL         decimal.Decimal
	TotalVolume decimal.Decimal
	SessionHigh decimal.Decimal
	SessionLow  decimal.Decimal
	VWAP        decimal.Decimal
	HVN         *decimal.Decimal
	Timestamp   time.Time
}

// OrderFlowMetrics is the per-bar flow analysis for one symbol.
type OrderFlowMetrics struct {
	Symbol             string
	CVD                decimal.Decimal
	BarDelta           decimal.Decimal
	AbsorptionDetected bool
	AbsorptionSide     *Side
	ImbalanceRatio     decimal.Decimal
	CVD1MinChange      decimal.Decimal
	CVDRapidDrop       bool
	CVDRapidRise       bool
	AvgBarVolume       decimal.Decimal
	VolumeBurstRatio   decimal.Decimal
	VolumeBurst        bool
	Timestamp          time.Time
}

// EntryFeatures captures the signal-time feature vector for the Advanced
// Order Flow setup, recorded for later analysis/tuning.
type EntryFeatures struct {
	ImbalanceRatio   decimal.Decimal
	CVD1MinChange    decimal.Decimal
	VolumeBurstRatio decimal.Decimal
	BarRangePct      decimal.Decimal
	ZoneDistancePct  decimal.Decimal
	NearVAL          bool
	NearVAH          bool
	NearHVN          bool
}

// TradeSignal is a proposed entry emitted by the strategy engine.
type TradeSignal struct {
	ID            string
	Symbol        string
	Side          Side
	Setup         SetupType
	EntryPrice    decimal.Decimal
	StopLoss      decimal.Decimal
	TakeProfit    decimal.Decimal
	Confidence    float64
	EntryFeatures *EntryFeatures
	Timestamp     time.Time
}

// NewTradeSignal builds a TradeSignal with a fresh id and timestamp.
func NewTradeSignal(symbol string, side Side, setup SetupType, entry, stop, target decimal.Decimal, confidence float64, ts time.Time) TradeSignal {
	return TradeSignal{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Side:       side,
		Setup:      setup,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		Confidence: confidence,
		Timestamp:  ts,
	}
}

// WithEntryFeatures attaches an EntryFeatures record and returns the signal.
func (s TradeSignal) WithEntryFeatures(f EntryFeatures) TradeSignal {
	s.EntryFeatures = &f
	return s
}
