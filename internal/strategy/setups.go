package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

// checkAAA: absorption at the session's value-area edge, targeting the
// opposite edge.
func (e *Engine) checkAAA(bar domain.RangeBar, flow domain.OrderFlowMetrics, profile domain.VolumeProfileSnapshot) (domain.TradeSignal, bool) {
	if !flow.AbsorptionDetected || flow.AbsorptionSide == nil {
		return domain.TradeSignal{}, false
	}

	close := bar.Close
	if *flow.AbsorptionSide == domain.Sell {
		if close.Sub(profile.VAL).Abs().LessThanOrEqual(e.cfg.AAAPOCDistanceTicks) {
			stop := close.Sub(e.cfg.DefaultStopTicks)
			sig := domain.NewTradeSignal(bar.Symbol, domain.Buy, domain.SetupAAA, close, stop, profile.VAH, 0.70, bar.CloseTime)
			return sig, true
		}
	} else {
		if close.Sub(profile.VAH).Abs().LessThanOrEqual(e.cfg.AAAPOCDistanceTicks) {
			stop := close.Add(e.cfg.DefaultStopTicks)
			sig := domain.NewTradeSignal(bar.Symbol, domain.Sell, domain.SetupAAA, close, stop, profile.VAL, 0.70, bar.CloseTime)
			return sig, true
		}
	}
	return domain.TradeSignal{}, false
}

// checkMomentumSqueeze: breakout/breakdown through the session high/low with
// a confirming bar delta.
func (e *Engine) checkMomentumSqueeze(bar domain.RangeBar, flow domain.OrderFlowMetrics, profile domain.VolumeProfileSnapshot, st *symbolState) (domain.TradeSignal, bool) {
	if len(st.recentBars) < e.cfg.MomentumLookbackBars {
		return domain.TradeSignal{}, false
	}

	close := bar.Close
	if close.GreaterThan(profile.SessionHigh) && flow.BarDelta.GreaterThan(e.cfg.MinDeltaConfirmation) {
		stop := close.Sub(e.cfg.DefaultStopTicks)
		target := close.Add(e.cfg.DefaultStopTicks.Mul(e.cfg.DefaultTargetMultiplier))
		sig := domain.NewTradeSignal(bar.Symbol, domain.Buy, domain.SetupMomentumSqueeze, close, stop, target, 0.60, bar.CloseTime)
		return sig, true
	}
	if close.LessThan(profile.SessionLow) && flow.BarDelta.LessThan(e.cfg.MinDeltaConfirmation.Neg()) {
		stop := close.Add(e.cfg.DefaultStopTicks)
		target := close.Sub(e.cfg.DefaultStopTicks.Mul(e.cfg.DefaultTargetMultiplier))
		sig := domain.NewTradeSignal(bar.Symbol, domain.Sell, domain.SetupMomentumSqueeze, close, stop, target, 0.60, bar.CloseTime)
		return sig, true
	}
	return domain.TradeSignal{}, false
}

// checkAbsorptionReversal: any absorption fades in the opposite direction.
func (e *Engine) checkAbsorptionReversal(bar domain.RangeBar, flow domain.OrderFlowMetrics) (domain.TradeSignal, bool) {
	if !flow.AbsorptionDetected || flow.AbsorptionSide == nil {
		return domain.TradeSignal{}, false
	}
	close := bar.Close
	stopDist := e.cfg.DefaultStopTicks
	targetDist := stopDist.Mul(e.cfg.DefaultTargetMultiplier)

	side := flow.AbsorptionSide.Opposite()
	if side == domain.Buy {
		sig := domain.NewTradeSignal(bar.Symbol, domain.Buy, domain.SetupAbsorptionReversal, close, close.Sub(stopDist), close.Add(targetDist), 0.65, bar.CloseTime)
		return sig, true
	}
	sig := domain.NewTradeSignal(bar.Symbol, domain.Sell, domain.SetupAbsorptionReversal, close, close.Add(stopDist), close.Sub(targetDist), 0.65, bar.CloseTime)
	return sig, true
}

var stopPctAdvanced = decimal.NewFromFloat(0.004)

// checkAdvancedOrderFlow evaluates the full order-flow conjunction (zone,
// rapid CVD, absorption, imbalance, reversal bar, VWAP placement, CVD change,
// bar range, volume burst) for both directions.
func (e *Engine) checkAdvancedOrderFlow(bar domain.RangeBar, flow domain.OrderFlowMetrics, profile domain.VolumeProfileSnapshot, st *symbolState) (domain.TradeSignal, bool) {
	if sig, ok := e.evaluateAdvancedSide(domain.Buy, bar, flow, profile, st); ok {
		return sig, true
	}
	if sig, ok := e.evaluateAdvancedSide(domain.Sell, bar, flow, profile, st); ok {
		return sig, true
	}
	return domain.TradeSignal{}, false
}

func (e *Engine) evaluateAdvancedSide(side domain.Side, bar domain.RangeBar, flow domain.OrderFlowMetrics, profile domain.VolumeProfileSnapshot, st *symbolState) (domain.TradeSignal, bool) {
	close := bar.Close

	// 1. Zone: near VAL/HVN (Buy) or VAH/HVN (Sell).
	var zoneDistance decimal.Decimal
	nearVAL, nearVAH, nearHVN := false, false, false
	if side == domain.Buy {
		zoneDistance = close.Sub(profile.VAL).Abs()
		nearVAL = zoneDistance.LessThanOrEqual(e.cfg.AdvancedZoneTicks)
		if profile.HVN != nil {
			hvnDist := close.Sub(*profile.HVN).Abs()
			if hvnDist.LessThanOrEqual(e.cfg.AdvancedZoneTicks) {
				nearHVN = true
				if hvnDist.LessThan(zoneDistance) {
					zoneDistance = hvnDist
				}
			}
		}
		if !nearVAL && !nearHVN {
			return domain.TradeSignal{}, false
		}
	} else {
		zoneDistance = close.Sub(profile.VAH).Abs()
		nearVAH = zoneDistance.LessThanOrEqual(e.cfg.AdvancedZoneTicks)
		if profile.HVN != nil {
			hvnDist := close.Sub(*profile.HVN).Abs()
			if hvnDist.LessThanOrEqual(e.cfg.AdvancedZoneTicks) {
				nearHVN = true
				if hvnDist.LessThan(zoneDistance) {
					zoneDistance = hvnDist
				}
			}
		}
		if !nearVAH && !nearHVN {
			return domain.TradeSignal{}, false
		}
	}

	// 2. CVD rapid move in the matching direction.
	if side == domain.Buy && !flow.CVDRapidDrop {
		return domain.TradeSignal{}, false
	}
	if side == domain.Sell && !flow.CVDRapidRise {
		return domain.TradeSignal{}, false
	}

	// 3. Absorption of the matching side.
	if !flow.AbsorptionDetected || flow.AbsorptionSide == nil || *flow.AbsorptionSide != side {
		return domain.TradeSignal{}, false
	}

	// 4. Imbalance beyond threshold.
	if flow.ImbalanceRatio.LessThan(e.cfg.AdvancedMinImbalanceRatio) {
		return domain.TradeSignal{}, false
	}

	// 5. Optional reversal bar.
	if e.cfg.AdvancedRequireReversalBar {
		if side == domain.Buy && !bar.Close.GreaterThan(bar.Open) {
			return domain.TradeSignal{}, false
		}
		if side == domain.Sell && !bar.Close.LessThan(bar.Open) {
			return domain.TradeSignal{}, false
		}
	}

	// 6. VWAP on the correct side, and VAH/VAL positioned beyond VWAP.
	if side == domain.Buy {
		if !(profile.VWAP.GreaterThan(close) && profile.VAH.GreaterThan(profile.VWAP)) {
			return domain.TradeSignal{}, false
		}
	} else {
		if !(profile.VWAP.LessThan(close) && profile.VAL.LessThan(profile.VWAP)) {
			return domain.TradeSignal{}, false
		}
	}

	// 7. Minimum CVD 1-minute change magnitude.
	if flow.CVD1MinChange.Abs().LessThan(e.cfg.AdvancedMinCVD1MinChange) {
		return domain.TradeSignal{}, false
	}

	// 8. Minimum bar range percentage.
	barRangePct := bar.Range().Div(close).Mul(decimal.NewFromInt(100))
	if barRangePct.LessThan(e.cfg.AdvancedMinBarRangePct) {
		return domain.TradeSignal{}, false
	}

	// 9. Volume burst beyond the tuned threshold.
	if !flow.VolumeBurst || flow.VolumeBurstRatio.LessThan(st.tunedBurstRatio) {
		return domain.TradeSignal{}, false
	}

	var stop, target decimal.Decimal
	if side == domain.Buy {
		stop = close.Mul(decimal.NewFromInt(1).Sub(stopPctAdvanced))
		target = profile.VAH
	} else {
		stop = close.Mul(decimal.NewFromInt(1).Add(stopPctAdvanced))
		target = profile.VAL
	}

	zoneDistancePct := zoneDistance.Div(close).Mul(decimal.NewFromInt(100))
	features := domain.EntryFeatures{
		ImbalanceRatio:   flow.ImbalanceRatio,
		CVD1MinChange:    flow.CVD1MinChange,
		VolumeBurstRatio: flow.VolumeBurstRatio,
		BarRangePct:      barRangePct,
		ZoneDistancePct:  zoneDistancePct,
		NearVAL:          nearVAL,
		NearVAH:          nearVAH,
		NearHVN:          nearHVN,
	}

	sig := domain.NewTradeSignal(bar.Symbol, side, domain.SetupAdvancedOrderFlow, close, stop, target, 0.85, bar.CloseTime).WithEntryFeatures(features)
	return sig, true
}
