// Package volumeprofile maintains a per-symbol tick-bucketed trade-volume
// histogram and derives the point of control, value area, session high/low,
// trailing VWAP, and trailing high-volume node.
package volumeprofile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/collections"
	"github.com/20hyo/rusto/internal/domain"
)

func lessInt64(a, b int64) bool { return a < b }

type recentTrade struct {
	price     decimal.Decimal
	quantity  decimal.Decimal
	timestamp time.Time
}

type symbolProfile struct {
	levels       *collections.OrderedMap[int64, decimal.Decimal]
	sessionStart time.Time
	totalVolume  decimal.Decimal
	sessionHigh  decimal.Decimal
	sessionLow   decimal.Decimal
	recent       []recentTrade // trailing 1h window, oldest first
}

func newSymbolProfile(now time.Time) *symbolProfile {
	return &symbolProfile{
		levels:       collections.New[int64, decimal.Decimal](lessInt64),
		sessionStart: now,
		totalVolume:  decimal.Zero,
	}
}

func (p *symbolProfile) reset(now time.Time) {
	p.levels = collections.New[int64, decimal.Decimal](lessInt64)
	p.sessionStart = now
	p.totalVolume = decimal.Zero
	p.sessionHigh = decimal.Zero
	p.sessionLow = decimal.Zero
	p.recent = nil
}

// Profiler is the per-symbol volume profile engine.
type Profiler struct {
	tickSize          decimal.Decimal
	symbolTicks       map[string]decimal.Decimal
	valueAreaPct      decimal.Decimal
	sessionResetHours float64
	profiles          map[string]*symbolProfile
}

// NewProfiler creates a Profiler. tickSize is the default bucket width; it
// must match the range-bar builder's tick size so footprint buckets and
// profile levels line up for zone reasoning.
func NewProfiler(tickSize, valueAreaPct decimal.Decimal, sessionResetHours float64) *Profiler {
	return &Profiler{
		tickSize:          tickSize,
		symbolTicks:       make(map[string]decimal.Decimal),
		valueAreaPct:      valueAreaPct,
		sessionResetHours: sessionResetHours,
		profiles:          make(map[string]*symbolProfile),
	}
}

// SetSymbolTick overrides the bucket width for one symbol, typically the
// exchange tick size scaled by the configured multiplier. Call before the
// first trade for that symbol arrives.
func (p *Profiler) SetSymbolTick(symbol string, tick decimal.Decimal) {
	if tick.IsPositive() {
		p.symbolTicks[symbol] = tick
	}
}

func (p *Profiler) tickFor(symbol string) decimal.Decimal {
	if tick, ok := p.symbolTicks[symbol]; ok {
		return tick
	}
	return p.tickSize
}

func priceToTick(price, tickSize decimal.Decimal) int64 {
	if tickSize.IsZero() {
		return price.IntPart()
	}
	return price.Div(tickSize).Floor().IntPart()
}

func tickToPrice(tick int64, tickSize decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(tick).Mul(tickSize)
}

// ProcessTrade folds one trade into the symbol's histogram and trailing
// window, returning a snapshot (and true) once at least 3 buckets are
// populated.
func (p *Profiler) ProcessTrade(trade domain.NormalizedTrade) (domain.VolumeProfileSnapshot, bool) {
	prof, ok := p.profiles[trade.Symbol]
	if !ok {
		prof = newSymbolProfile(trade.Timestamp)
		p.profiles[trade.Symbol] = prof
	}

	if !prof.sessionStart.IsZero() {
		elapsedHours := trade.Timestamp.Sub(prof.sessionStart).Hours()
		if elapsedHours > p.sessionResetHours {
			prof.reset(trade.Timestamp)
		}
	}

	tick := priceToTick(trade.Price, p.tickFor(trade.Symbol))
	existing, _ := prof.levels.Get(tick)
	prof.levels.Set(tick, existing.Add(trade.Quantity))
	prof.totalVolume = prof.totalVolume.Add(trade.Quantity)

	if prof.sessionHigh.IsZero() || trade.Price.GreaterThan(prof.sessionHigh) {
		prof.sessionHigh = trade.Price
	}
	if prof.sessionLow.IsZero() || trade.Price.LessThan(prof.sessionLow) {
		prof.sessionLow = trade.Price
	}

	prof.recent = append(prof.recent, recentTrade{price: trade.Price, quantity: trade.Quantity, timestamp: trade.Timestamp})
	cutoff := trade.Timestamp.Add(-time.Hour)
	trimmed := prof.recent[:0]
	for _, rt := range prof.recent {
		if rt.timestamp.After(cutoff) {
			trimmed = append(trimmed, rt)
		}
	}
	prof.recent = trimmed

	if prof.levels.Len() < 3 {
		return domain.VolumeProfileSnapshot{}, false
	}
	return p.computeSnapshot(trade.Symbol, prof, trade.Timestamp), true
}

func (p *Profiler) computeSnapshot(symbol string, prof *symbolProfile, now time.Time) domain.VolumeProfileSnapshot {
	tickSize := p.tickFor(symbol)
	pocTick, pocVolume := findPOC(prof.levels)

	target := prof.totalVolume.Mul(p.valueAreaPct)
	areaVolume := pocVolume
	highEdge, lowEdge := pocTick, pocTick

	for areaVolume.LessThan(target) {
		aboveTick, hasAbove := prof.levels.NextAbove(highEdge)
		belowTick, hasBelow := prof.levels.NextBelow(lowEdge)
		if !hasAbove && !hasBelow {
			break
		}

		var aboveVol, belowVol decimal.Decimal
		if hasAbove {
			aboveVol, _ = prof.levels.Get(aboveTick)
		}
		if hasBelow {
			belowVol, _ = prof.levels.Get(belowTick)
		}

		switch {
		case hasAbove && !hasBelow:
			highEdge = aboveTick
			areaVolume = areaVolume.Add(aboveVol)
		case !hasAbove && hasBelow:
			lowEdge = belowTick
			areaVolume = areaVolume.Add(belowVol)
		case aboveVol.GreaterThanOrEqual(belowVol):
			// Ties favor the upper side.
			highEdge = aboveTick
			areaVolume = areaVolume.Add(aboveVol)
		default:
			lowEdge = belowTick
			areaVolume = areaVolume.Add(belowVol)
		}
	}

	vwap := computeVWAP(prof.recent)
	hvn := computeHVN(prof.recent, tickSize)

	return domain.VolumeProfileSnapshot{
		Symbol:      symbol,
		POC:         tickToPrice(pocTick, tickSize),
		VAH:         tickToPrice(highEdge, tickSize),
		VAL:         tickToPrice(lowEdge, tickSize),
		TotalVolume: prof.totalVolume,
		SessionHigh: prof.sessionHigh,
		SessionLow:  prof.sessionLow,
		VWAP:        vwap,
		HVN:         hvn,
		Timestamp:   now,
	}
}

// findPOC returns the tick with maximum volume, breaking ties toward the
// numerically lowest tick.
func findPOC(levels *collections.OrderedMap[int64, decimal.Decimal]) (int64, decimal.Decimal) {
	var bestTick int64
	var bestVolume decimal.Decimal
	first := true
	levels.Each(func(tick int64, volume decimal.Decimal) {
		if first || volume.GreaterThan(bestVolume) {
			bestTick = tick
			bestVolume = volume
			first = false
		}
	})
	return bestTick, bestVolume
}

func computeVWAP(recent []recentTrade) decimal.Decimal {
	if len(recent) == 0 {
		return decimal.Zero
	}
	var notional, qty decimal.Decimal
	for _, rt := range recent {
		notional = notional.Add(rt.price.Mul(rt.quantity))
		qty = qty.Add(rt.quantity)
	}
	if qty.IsZero() {
		return decimal.Zero
	}
	return notional.Div(qty)
}

func computeHVN(recent []recentTrade, tickSize decimal.Decimal) *decimal.Decimal {
	if len(recent) == 0 {
		return nil
	}
	buckets := collections.New[int64, decimal.Decimal](lessInt64)
	for _, rt := range recent {
		tick := priceToTick(rt.price, tickSize)
		existing, _ := buckets.Get(tick)
		buckets.Set(tick, existing.Add(rt.quantity))
	}
	bestTick, _ := findPOC(buckets)
	price := tickToPrice(bestTick, tickSize)
	return &price
}
