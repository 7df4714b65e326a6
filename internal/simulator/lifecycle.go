package simulator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

// OnDepth applies a depth delta to the symbol's order book.
func (s *Simulator) OnDepth(update domain.DepthUpdate) {
	s.books.BookFor(update.Symbol).Update(update)
}

func signOf(side domain.Side) decimal.Decimal {
	if side == domain.Buy {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// pnlForClose realizes one closed leg:
// pnl_delta = side*(exit-entry)*closed_qty - (entry*closed_qty+exit*closed_qty)*taker_fee.
func pnlForClose(side domain.Side, entry, exit, closedQty, takerFee decimal.Decimal) decimal.Decimal {
	gross := exit.Sub(entry).Mul(closedQty).Mul(signOf(side))
	fees := entry.Mul(closedQty).Add(exit.Mul(closedQty)).Mul(takerFee)
	return gross.Sub(fees)
}

// OnTrade advances every open position on trade.Symbol through the lifecycle
// in a fixed order: excursion, liquidation, multi-stage exits, standard
// exits, break-even.
func (s *Simulator) OnTrade(trade domain.NormalizedTrade, now time.Time) {
	mark := trade.Price
	open := make([]*domain.Position, len(s.bySymbol[trade.Symbol]))
	copy(open, s.bySymbol[trade.Symbol])
	for _, pos := range open {
		if pos.Status != domain.PositionOpen {
			continue
		}

		pos.UpdateExcursion(mark, now)
		pos.UnrealizedPnL = pos.CalculateUnrealizedPnL(mark)

		if pos.ShouldLiquidate(mark) {
			s.closeFull(pos, pos.LiquidationPrice, domain.ExitLiquidation, domain.PositionLiquidated, domain.EventPositionLiquidated, now)
			continue
		}

		if pos.Setup == domain.SetupAdvancedOrderFlow {
			if s.handleStagedExits(pos, mark, now) {
				continue
			}
		}

		if s.handleStandardExits(pos, mark, now) {
			continue
		}

		if s.risk.ShouldMoveToBreakEven(pos, mark, now) {
			pos.StopLoss = s.risk.BreakEvenStop(pos)
			pos.BreakEvenMoved = true
			s.emit(domain.ExecutionEvent{Kind: domain.EventStopMoved, PositionID: pos.ID, NewStop: pos.StopLoss})
		}
	}
}

// handleStagedExits implements the Advanced-only TP1/TP2/SoftStop ladder.
// Returns true if the position was fully closed.
func (s *Simulator) handleStagedExits(pos *domain.Position, mark decimal.Decimal, now time.Time) bool {
	if pos.TP1Price != nil && !pos.TP1Filled && reachedTarget(pos.Side, mark, *pos.TP1Price) {
		half := pos.Quantity.Div(decimal.NewFromInt(2))
		pnlDelta := pnlForClose(pos.Side, pos.EntryPrice, *pos.TP1Price, half, s.cfg.TakerFee)
		pos.PnL = pos.PnL.Add(pnlDelta)
		pos.Quantity = pos.Quantity.Sub(half)
		pos.TP1Filled = true
		pos.StopLoss = s.risk.BreakEvenStop(pos)
		pos.BreakEvenMoved = true
		s.emit(domain.ExecutionEvent{Kind: domain.EventTP1Filled, PositionID: pos.ID, TP1Price: *pos.TP1Price, PartialPnL: pnlDelta})
		return false
	}

	if pos.TP1Filled && pos.TP2Price != nil && reachedTarget(pos.Side, mark, *pos.TP2Price) {
		s.closeFull(pos, *pos.TP2Price, domain.ExitTP2, domain.PositionClosed, domain.EventPositionClosed, now)
		return true
	}

	if !pos.TP1Filled && s.cfg.SoftStopSeconds > 0 {
		elapsed := now.Sub(pos.EntryTime).Seconds()
		if elapsed >= float64(s.cfg.SoftStopSeconds) && beyondSoftStopDrawdown(pos.Side, mark, pos.EntryPrice, s.cfg.SoftStopDrawdownPct) {
			s.closeFull(pos, mark, domain.ExitSoftStop, domain.PositionClosed, domain.EventPositionClosed, now)
			return true
		}
	}

	return false
}

// handleStandardExits applies the plain stop-loss/take-profit checks.
// Returns true if the position was fully closed.
func (s *Simulator) handleStandardExits(pos *domain.Position, mark decimal.Decimal, now time.Time) bool {
	if triggersStop(pos.Side, mark, pos.StopLoss) {
		s.closeFull(pos, pos.StopLoss, domain.ExitStopLoss, domain.PositionClosed, domain.EventPositionClosed, now)
		return true
	}
	if triggersTarget(pos.Side, mark, pos.TakeProfit) {
		s.closeFull(pos, pos.TakeProfit, domain.ExitTakeProfit, domain.PositionClosed, domain.EventPositionClosed, now)
		return true
	}
	return false
}

func triggersStop(side domain.Side, mark, stop decimal.Decimal) bool {
	if side == domain.Buy {
		return mark.LessThanOrEqual(stop)
	}
	return mark.GreaterThanOrEqual(stop)
}

func triggersTarget(side domain.Side, mark, target decimal.Decimal) bool {
	if side == domain.Buy {
		return mark.GreaterThanOrEqual(target)
	}
	return mark.LessThanOrEqual(target)
}

// reachedTarget is the same directional check as triggersTarget, named
// separately for the staged-exit call sites.
func reachedTarget(side domain.Side, mark, target decimal.Decimal) bool {
	return triggersTarget(side, mark, target)
}

func beyondSoftStopDrawdown(side domain.Side, mark, entry, drawdownPct decimal.Decimal) bool {
	frac := drawdownPct.Div(decimal.NewFromInt(100))
	if side == domain.Buy {
		threshold := entry.Mul(decimal.NewFromInt(1).Sub(frac))
		return mark.LessThanOrEqual(threshold)
	}
	threshold := entry.Mul(decimal.NewFromInt(1).Add(frac))
	return mark.GreaterThanOrEqual(threshold)
}

// closeFull closes the remaining quantity of pos, updates risk/stats/
// expectancy bookkeeping, and emits the matching execution event.
func (s *Simulator) closeFull(pos *domain.Position, exitPrice decimal.Decimal, reason domain.ExitReason, status domain.PositionStatus, kind domain.ExecutionEventKind, now time.Time) {
	closedQty := pos.Quantity
	pnlDelta := pnlForClose(pos.Side, pos.EntryPrice, exitPrice, closedQty, s.cfg.TakerFee)
	pos.PnL = pos.PnL.Add(pnlDelta)
	pos.Quantity = decimal.Zero
	pos.UnrealizedPnL = decimal.Zero
	pos.Status = status
	exitPriceCopy := exitPrice
	nowCopy := now
	reasonCopy := reason
	pos.ExitPrice = &exitPriceCopy
	pos.ExitTime = &nowCopy
	pos.ExitReason = &reasonCopy

	halted := s.risk.ClosePosition(pos)
	s.dropPosition(pos)

	s.statsMu.Lock()
	s.statsFor(pos.Symbol).RecordClose(pos.PnL)
	s.totalTrades++
	s.statsMu.Unlock()

	s.recordHourlyExpectancy(pos.Symbol, pos.EntryTime.UTC().Hour(), pos.PnL)

	s.emit(domain.ExecutionEvent{Kind: kind, Position: pos, PositionID: pos.ID})
	if halted {
		_, dailyPnL, _ := s.risk.Snapshot()
		s.emit(domain.ExecutionEvent{Kind: domain.EventDailyLimitReached, DailyPnL: dailyPnL})
	}
}

// dropPosition removes a closed position from the live indexes. OnTrade
// iterates a snapshot of the per-symbol slice, so removal here is safe.
func (s *Simulator) dropPosition(pos *domain.Position) {
	delete(s.positions, pos.ID)
	open := s.bySymbol[pos.Symbol]
	for i, p := range open {
		if p.ID == pos.ID {
			s.bySymbol[pos.Symbol] = append(open[:i], open[i+1:]...)
			break
		}
	}
}
