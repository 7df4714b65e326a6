// Package orderflow derives cumulative-delta, absorption, and volume-burst
// metrics from completed range bars.
package orderflow

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

const (
	cvdHistoryWindow  = 5 * time.Minute
	recentDeltasCap   = 50
	rapidChangeWindow = time.Minute
	rapidMultiplier   = 5
	sentinelRatio     = 999
	minBurstSamples   = 5
)

type cvdPoint struct {
	timestamp time.Time
	cvd       decimal.Decimal
}

type symbolFlow struct {
	cvd           decimal.Decimal
	cvdHistory    []cvdPoint
	recentDeltas  []decimal.Decimal
	recentVolumes []decimal.Decimal
}

// Config holds the tunable thresholds for absorption and volume-burst
// detection.
type Config struct {
	AbsorptionDeltaRatio  decimal.Decimal
	MaxPriceDeltaTicks    decimal.Decimal
	VolumeBaselineBars    int
	VolumeBurstMultiplier decimal.Decimal
}

// Tracker is the per-symbol order-flow analysis engine.
type Tracker struct {
	cfg     Config
	symbols map[string]*symbolFlow
}

// NewTracker creates a Tracker with the given thresholds.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, symbols: make(map[string]*symbolFlow)}
}

func (t *Tracker) stateFor(symbol string) *symbolFlow {
	st, ok := t.symbols[symbol]
	if !ok {
		st = &symbolFlow{}
		t.symbols[symbol] = st
	}
	return st
}

// AnalyzeBar computes OrderFlowMetrics for one completed bar and updates the
// symbol's running state.
func (t *Tracker) AnalyzeBar(bar domain.RangeBar) domain.OrderFlowMetrics {
	st := t.stateFor(bar.Symbol)

	delta := bar.Delta()
	st.cvd = st.cvd.Add(delta)
	st.cvdHistory = append(st.cvdHistory, cvdPoint{timestamp: bar.CloseTime, cvd: st.cvd})
	st.cvdHistory = pruneCVDHistory(st.cvdHistory, bar.CloseTime)

	st.recentDeltas = append(st.recentDeltas, delta)
	if len(st.recentDeltas) > recentDeltasCap {
		st.recentDeltas = st.recentDeltas[1:]
	}

	st.recentVolumes = append(st.recentVolumes, bar.Volume)
	if len(st.recentVolumes) > t.cfg.VolumeBaselineBars {
		st.recentVolumes = st.recentVolumes[1:]
	}

	cvd1MinChange := cvd1MinChange(st.cvdHistory, st.cvd, bar.CloseTime)
	avgAbsDelta := avgAbsDelta(st.recentDeltas)
	rapidThreshold := avgAbsDelta.Mul(decimal.NewFromInt(rapidMultiplier))
	rapidDrop := cvd1MinChange.IsNegative() && cvd1MinChange.Abs().GreaterThan(rapidThreshold) && !rapidThreshold.IsZero()
	rapidRise := cvd1MinChange.IsPositive() && cvd1MinChange.Abs().GreaterThan(rapidThreshold) && !rapidThreshold.IsZero()

	absorptionDetected, absorptionSide := t.detectAbsorption(bar)

	imbalance := imbalanceRatio(bar.BuyVolume, bar.SellVolume)

	burstRatio, burst := volumeBurstMetrics(st.recentVolumes, bar.Volume, t.cfg.VolumeBurstMultiplier)

	// Like the burst ratio, the baseline average is only meaningful once
	// enough samples exist.
	avgBarVolume := decimal.Zero
	if len(st.recentVolumes) >= minBurstSamples {
		avgBarVolume = avgVolume(st.recentVolumes)
	}

	return domain.OrderFlowMetrics{
		Symbol:             bar.Symbol,
		CVD:                st.cvd,
		BarDelta:           delta,
		AbsorptionDetected: absorptionDetected,
		AbsorptionSide:     absorptionSide,
		ImbalanceRatio:     imbalance,
		CVD1MinChange:      cvd1MinChange,
		CVDRapidDrop:       rapidDrop,
		CVDRapidRise:       rapidRise,
		AvgBarVolume:       avgBarVolume,
		VolumeBurstRatio:   burstRatio,
		VolumeBurst:        burst,
		Timestamp:          bar.CloseTime,
	}
}

func pruneCVDHistory(history []cvdPoint, now time.Time) []cvdPoint {
	cutoff := now.Add(-cvdHistoryWindow)
	out := history[:0]
	for _, p := range history {
		if p.timestamp.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// cvd1MinChange finds the CVD value from ~1 minute ago by scanning history
// in reverse for the first entry at or before now-1min.
func cvd1MinChange(history []cvdPoint, current decimal.Decimal, now time.Time) decimal.Decimal {
	target := now.Add(-rapidChangeWindow)
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].timestamp.After(target) {
			return current.Sub(history[i].cvd)
		}
	}
	return decimal.Zero
}

func avgAbsDelta(deltas []decimal.Decimal) decimal.Decimal {
	if len(deltas) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, d := range deltas {
		sum = sum.Add(d.Abs())
	}
	return sum.Div(decimal.NewFromInt(int64(len(deltas))))
}

func avgVolume(volumes []decimal.Decimal) decimal.Decimal {
	if len(volumes) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range volumes {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(volumes))))
}

func imbalanceRatio(buyVol, sellVol decimal.Decimal) decimal.Decimal {
	if sellVol.IsZero() {
		if buyVol.IsZero() {
			return decimal.NewFromInt(1)
		}
		return decimal.NewFromInt(sentinelRatio)
	}
	return buyVol.Div(sellVol)
}

// detectAbsorption scans the bar's footprint in ascending price-bucket key
// order. The first level whose bid/ask ratio exceeds the threshold with a
// contained price move wins.
func (t *Tracker) detectAbsorption(bar domain.RangeBar) (bool, *domain.Side) {
	priceDelta := bar.Close.Sub(bar.Open).Abs()
	if priceDelta.GreaterThan(t.cfg.MaxPriceDeltaTicks) {
		return false, nil
	}

	keys := make([]int64, 0, len(bar.Footprint))
	for k := range bar.Footprint {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		level := bar.Footprint[k]
		if level.AskVolume.IsPositive() && level.BidVolume.Div(level.AskVolume).GreaterThan(t.cfg.AbsorptionDeltaRatio) {
			side := domain.Sell
			return true, &side
		}
		if level.BidVolume.IsPositive() && level.AskVolume.Div(level.BidVolume).GreaterThan(t.cfg.AbsorptionDeltaRatio) {
			side := domain.Buy
			return true, &side
		}
	}
	return false, nil
}

func volumeBurstMetrics(recentVolumes []decimal.Decimal, currentVolume, multiplier decimal.Decimal) (decimal.Decimal, bool) {
	if len(recentVolumes) < minBurstSamples {
		return decimal.Zero, false
	}
	avg := avgVolume(recentVolumes)
	if avg.IsZero() {
		return decimal.Zero, false
	}
	ratio := currentVolume.Div(avg)
	return ratio, ratio.GreaterThanOrEqual(multiplier)
}
