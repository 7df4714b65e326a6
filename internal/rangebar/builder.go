// Package rangebar compresses a per-symbol trade stream into price-range
// bars: a bar closes once its running high-low excursion meets or exceeds a
// configured range size, and a new bar opens immediately at the same trade.
package rangebar

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

// RangeResolver resolves the range size for a symbol at the current price.
// Implementations consult an explicit per-symbol override, falling back to
// a percentage of the current price, and finally a hard default.
type RangeResolver interface {
	RangeFor(symbol string, currentPrice decimal.Decimal) decimal.Decimal
}

type buildingBar struct {
	bar *domain.RangeBar
}

func newBuildingBar(trade domain.NormalizedTrade, tick decimal.Decimal) *buildingBar {
	bar := &domain.RangeBar{
		Symbol:    trade.Symbol,
		Open:      trade.Price,
		High:      trade.Price,
		Low:       trade.Price,
		Close:     trade.Price,
		OpenTime:  trade.Timestamp,
		CloseTime: trade.Timestamp,
		Footprint: make(map[int64]*domain.FootprintLevel),
		Volume:    decimal.Zero,
	}
	bb := &buildingBar{bar: bar}
	bb.apply(trade, tick)
	return bb
}

func (bb *buildingBar) apply(trade domain.NormalizedTrade, tick decimal.Decimal) {
	bar := bb.bar
	if trade.Price.GreaterThan(bar.High) {
		bar.High = trade.Price
	}
	if trade.Price.LessThan(bar.Low) {
		bar.Low = trade.Price
	}
	bar.Close = trade.Price
	bar.CloseTime = trade.Timestamp
	bar.Volume = bar.Volume.Add(trade.Quantity)
	if trade.Side == domain.Buy {
		bar.BuyVolume = bar.BuyVolume.Add(trade.Quantity)
	} else {
		bar.SellVolume = bar.SellVolume.Add(trade.Quantity)
	}

	key := priceKey(trade.Price, tick)
	level, ok := bar.Footprint[key]
	if !ok {
		level = &domain.FootprintLevel{BidVolume: decimal.Zero, AskVolume: decimal.Zero}
		bar.Footprint[key] = level
	}
	// Aggressor=Sell hits the bid; Aggressor=Buy lifts the ask.
	if trade.Side == domain.Sell {
		level.BidVolume = level.BidVolume.Add(trade.Quantity)
	} else {
		level.AskVolume = level.AskVolume.Add(trade.Quantity)
	}
}

func (bb *buildingBar) rng() decimal.Decimal {
	return bb.bar.High.Sub(bb.bar.Low)
}

// priceKey quantizes a price to an integer tick bucket, shared with the
// volume profiler so zone reasoning uses one consistent bucketing scheme.
func priceKey(price, tick decimal.Decimal) int64 {
	if tick.IsZero() {
		return price.IntPart()
	}
	return price.Div(tick).Floor().IntPart()
}

type symbolState struct {
	tickSize decimal.Decimal
	current  *buildingBar
	barCount uint64
}

// Builder is the per-symbol range-bar state machine.
type Builder struct {
	resolver    RangeResolver
	tickSize    decimal.Decimal
	symbolTicks map[string]decimal.Decimal
	symbols     map[string]*symbolState
	logger      *zerolog.Logger
}

// NewBuilder creates a Builder. tickSize buckets the footprint; it must be
// the same tick size used by the volume profiler for the same symbol set.
func NewBuilder(resolver RangeResolver, tickSize decimal.Decimal, logger *zerolog.Logger) *Builder {
	return &Builder{
		resolver:    resolver,
		tickSize:    tickSize,
		symbolTicks: make(map[string]decimal.Decimal),
		symbols:     make(map[string]*symbolState),
		logger:      logger,
	}
}

// SetSymbolTick overrides the footprint bucket width for one symbol. Call
// before the first trade for that symbol arrives; the override is ignored
// once a bar is already building.
func (b *Builder) SetSymbolTick(symbol string, tick decimal.Decimal) {
	if tick.IsPositive() {
		b.symbolTicks[symbol] = tick
	}
}

func (b *Builder) tickFor(symbol string) decimal.Decimal {
	if tick, ok := b.symbolTicks[symbol]; ok {
		return tick
	}
	return b.tickSize
}

// ProcessTrade feeds one trade into the builder for its symbol, returning a
// completed bar (and true) when the trade closes the current bar.
func (b *Builder) ProcessTrade(trade domain.NormalizedTrade) (domain.RangeBar, bool) {
	st, ok := b.symbols[trade.Symbol]
	if !ok {
		st = &symbolState{tickSize: b.tickFor(trade.Symbol)}
		b.symbols[trade.Symbol] = st
	}

	if st.current == nil {
		st.current = newBuildingBar(trade, st.tickSize)
		return domain.RangeBar{}, false
	}

	rangeSize := b.resolver.RangeFor(trade.Symbol, trade.Price)
	st.current.apply(trade, st.tickSize)

	if st.current.rng().GreaterThanOrEqual(rangeSize) {
		completed := *st.current.bar
		st.barCount++
		completed.BarIndex = st.barCount
		if b.logger != nil {
			b.logger.Info().
				Str("symbol", trade.Symbol).
				Uint64("bar_index", completed.BarIndex).
				Str("close", completed.Close.String()).
				Msg("range bar completed")
		}
		st.current = newBuildingBar(trade, st.tickSize)
		return completed, true
	}
	return domain.RangeBar{}, false
}
