package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

// candidateBurstRatios are the volume-burst thresholds tried by the rolling
// backtest each tuning pass.
var candidateBurstRatios = []decimal.Decimal{
	decimal.NewFromFloat(1.2),
	decimal.NewFromFloat(1.4),
	decimal.NewFromFloat(1.6),
	decimal.NewFromFloat(1.8),
	decimal.NewFromFloat(2.1),
	decimal.NewFromFloat(2.4),
	decimal.NewFromFloat(2.8),
	decimal.NewFromFloat(3.2),
}

// tuneBurstRatio replays the retained sample history against every candidate
// burst threshold and picks the one with the best expectancy. Each sample
// whose burst ratio clears the candidate becomes a hypothetical entry in the
// direction the rapid CVD move would trade (drop buys, rise sells); the entry
// is then walked forward bar by bar against percentage stop/target levels,
// with the stop checked first on every bar so a bar that touches both counts
// as a loss.
func (e *Engine) tuneBurstRatio(st *symbolState) (decimal.Decimal, bool) {
	lookback := e.cfg.TuningLookbackBars
	if lookback <= 0 || lookback > len(st.samples) {
		lookback = len(st.samples)
	}
	window := st.samples[len(st.samples)-lookback:]

	var bestRatio decimal.Decimal
	var bestExpectancy decimal.Decimal
	bestTrades := 0
	found := false

	for _, candidate := range candidateBurstRatios {
		wins, losses := 0, 0

		for i := 0; i < len(window)-1; i++ {
			s := window[i]
			if !s.flow.VolumeBurst || s.flow.VolumeBurstRatio.LessThan(candidate) {
				continue
			}

			var side domain.Side
			switch {
			case s.flow.CVDRapidDrop:
				side = domain.Buy
			case s.flow.CVDRapidRise:
				side = domain.Sell
			default:
				continue
			}

			won, ok := e.evaluateHypothetical(window, i, side)
			if !ok {
				continue
			}
			if won {
				wins++
			} else {
				losses++
			}
		}

		trades := wins + losses
		if trades < e.cfg.TuningMinTrades {
			continue
		}

		// expectancy = (wins*target - losses*stop) / trades
		w := decimal.NewFromInt(int64(wins)).Mul(e.cfg.TuningTargetPct)
		l := decimal.NewFromInt(int64(losses)).Mul(e.cfg.TuningStopPct)
		expectancy := w.Sub(l).Div(decimal.NewFromInt(int64(trades)))

		better := !found ||
			expectancy.GreaterThan(bestExpectancy) ||
			(expectancy.Equal(bestExpectancy) && trades > bestTrades)
		if better {
			found = true
			bestExpectancy = expectancy
			bestTrades = trades
			bestRatio = candidate
		}
	}

	return bestRatio, found
}

// evaluateHypothetical walks up to TuningLookaheadBars bars after entry
// against percentage stop/target levels. The stop is checked before the
// target on every bar. An entry that resolves neither way within the window
// is scored by the sign of its final close-to-close move.
func (e *Engine) evaluateHypothetical(window []sample, entryIdx int, side domain.Side) (won, ok bool) {
	entry := window[entryIdx].bar.Close
	if entry.IsZero() {
		return false, false
	}

	one := decimal.NewFromInt(1)
	var stop, target decimal.Decimal
	if side == domain.Buy {
		stop = entry.Mul(one.Sub(e.cfg.TuningStopPct))
		target = entry.Mul(one.Add(e.cfg.TuningTargetPct))
	} else {
		stop = entry.Mul(one.Add(e.cfg.TuningStopPct))
		target = entry.Mul(one.Sub(e.cfg.TuningTargetPct))
	}

	end := entryIdx + e.cfg.TuningLookaheadBars
	if end >= len(window) {
		end = len(window) - 1
	}
	if end <= entryIdx {
		return false, false
	}

	for i := entryIdx + 1; i <= end; i++ {
		bar := window[i].bar
		low, high := bar.Low, bar.High
		if low.IsZero() && high.IsZero() {
			low, high = bar.Close, bar.Close
		}
		if side == domain.Buy {
			if low.LessThanOrEqual(stop) {
				return false, true
			}
			if high.GreaterThanOrEqual(target) {
				return true, true
			}
		} else {
			if high.GreaterThanOrEqual(stop) {
				return false, true
			}
			if low.LessThanOrEqual(target) {
				return true, true
			}
		}
	}

	final := window[end].bar.Close
	if side == domain.Buy {
		return final.GreaterThan(entry), true
	}
	return final.LessThan(entry), true
}
