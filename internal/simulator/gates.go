package simulator

import (
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
	"github.com/20hyo/rusto/internal/orderbook"
)

var tenThousand = decimal.NewFromInt(10_000)

// checkExecutionQuality is gate 1: spread/depth-imbalance requirements
// against the live order book.
func (s *Simulator) checkExecutionQuality(signal domain.TradeSignal) (decimal.Decimal, decimal.Decimal, bool) {
	book, ok := s.books.Lookup(signal.Symbol)
	if !ok {
		if s.cfg.RequireOrderbookForEntry {
			return decimal.Zero, decimal.Zero, false
		}
		return decimal.Zero, decimal.Zero, true
	}

	spread, spreadOK := book.Spread()
	mid, midOK := book.Mid()
	if !spreadOK || !midOK {
		return decimal.Zero, decimal.Zero, false
	}
	if mid.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	spreadBps := spread.Div(mid).Mul(tenThousand)
	if spreadBps.GreaterThan(s.cfg.MaxSpreadBps) {
		return decimal.Zero, decimal.Zero, false
	}

	bidTotal, askTotal, _ := book.DepthImbalance()
	var favorRatio decimal.Decimal
	if signal.Side == domain.Buy {
		if askTotal.IsZero() {
			return decimal.Zero, decimal.Zero, false
		}
		favorRatio = bidTotal.Div(askTotal)
	} else {
		if bidTotal.IsZero() {
			return decimal.Zero, decimal.Zero, false
		}
		favorRatio = askTotal.Div(bidTotal)
	}
	if favorRatio.LessThan(s.cfg.MinDepthImbalanceRatio) {
		return decimal.Zero, decimal.Zero, false
	}

	return spread, mid, true
}

// checkExpectancy is gate 2: per-(symbol, entry hour) rolling PnL average.
func (s *Simulator) checkExpectancy(symbol string, hour int) bool {
	if !s.cfg.ExpectancyFilterEnabled {
		return true
	}
	ring := s.expectancyRingFor(symbol, hour)
	if len(ring) < s.cfg.ExpectancyMinTradesPerHour {
		return true
	}
	sum := decimal.Zero
	for _, pnl := range ring {
		sum = sum.Add(pnl)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(ring))))
	return avg.GreaterThanOrEqual(s.cfg.ExpectancyMinAvgPnL)
}

// applyExchangeFilters is gate 5: snaps entry price/qty to exchange
// granularity and enforces min/max quantity and minimum notional.
func applyExchangeFilters(filters *ExchangeFilters, entry, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal, bool) {
	if filters == nil {
		return entry, qty, true
	}
	if !filters.TickSize.IsZero() {
		entry = snapToStep(entry, filters.TickSize)
	}
	if !filters.StepSize.IsZero() {
		qty = snapToStep(qty, filters.StepSize)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return entry, qty, false
	}
	if !filters.MinQty.IsZero() && qty.LessThan(filters.MinQty) {
		return entry, qty, false
	}
	if !filters.MaxQty.IsZero() && qty.GreaterThan(filters.MaxQty) {
		return entry, qty, false
	}
	notional := entry.Mul(qty)
	if !filters.MinNotional.IsZero() && notional.LessThan(filters.MinNotional) {
		return entry, qty, false
	}
	return entry, qty, true
}

func snapToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return value
	}
	units := value.Div(step).Round(0)
	return units.Mul(step)
}

// estimateSlippage is gate 6: a linear spread+impact model against top-N
// same-side depth.
func estimateSlippage(cfg Config, side domain.Side, book *orderbook.Book, spread, mid, qty decimal.Decimal) (decimal.Decimal, bool) {
	if !cfg.SlippageModelEnabled {
		return decimal.Zero, true
	}
	if book == nil || mid.IsZero() {
		return decimal.Zero, false
	}

	var sameDepth decimal.Decimal
	if side == domain.Buy {
		sameDepth = book.TopNAskDepth(cfg.ImpactDepthLevels)
	} else {
		sameDepth = book.TopNBidDepth(cfg.ImpactDepthLevels)
	}
	if sameDepth.IsZero() {
		return decimal.Zero, false
	}

	half := decimal.NewFromFloat(0.5)
	spreadComponent := half.Mul(spread.Div(mid)).Mul(tenThousand)
	impactComponent := qty.Div(sameDepth).Mul(cfg.ImpactWeightBps)
	slippageBps := spreadComponent.Add(impactComponent)

	return slippageBps, slippageBps.LessThanOrEqual(cfg.MaxModelSlippageBps)
}
