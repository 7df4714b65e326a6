package notification

import (
	"fmt"

	"github.com/20hyo/rusto/internal/domain"
)

// Format renders an ExecutionEvent into a Slack/Telegram-friendly
// subject/message pair.
func Format(ev domain.ExecutionEvent) (subject, message string) {
	switch ev.Kind {
	case domain.EventPositionOpened:
		p := ev.Position
		return "Position opened", fmt.Sprintf("%s %s %s @ %s (setup %s, qty %s)",
			p.Symbol, p.Side, p.ID, p.EntryPrice, p.Setup, p.Quantity)
	case domain.EventPositionClosed:
		p := ev.Position
		return "Position closed", fmt.Sprintf("%s %s closed @ %s, pnl %s, reason %s",
			p.Symbol, p.Side, exitPriceOf(p), p.PnL, exitReasonOf(p))
	case domain.EventPositionLiquidated:
		p := ev.Position
		return "Position LIQUIDATED", fmt.Sprintf("%s %s liquidated @ %s, pnl %s",
			p.Symbol, p.Side, exitPriceOf(p), p.PnL)
	case domain.EventTP1Filled:
		return "TP1 filled", fmt.Sprintf("position %s hit TP1 @ %s, partial pnl %s",
			ev.PositionID, ev.TP1Price, ev.PartialPnL)
	case domain.EventStopMoved:
		return "Stop moved", fmt.Sprintf("position %s stop moved to %s", ev.PositionID, ev.NewStop)
	case domain.EventDailyLimitReached:
		return "Daily loss limit reached", fmt.Sprintf("daily pnl %s breached the configured limit, trading halted", ev.DailyPnL)
	case domain.EventHourlyReport:
		return "Hourly report", fmt.Sprintf("balance %s, daily pnl %s, open positions %d, total trades %d, ping %.1fms",
			ev.Balance, ev.DailyPnL, ev.OpenPositions, ev.TotalTrades, ev.PingMS)
	default:
		return "Execution event", ""
	}
}

func exitPriceOf(p *domain.Position) string {
	if p.ExitPrice == nil {
		return "?"
	}
	return p.ExitPrice.String()
}

func exitReasonOf(p *domain.Position) string {
	if p.ExitReason == nil {
		return "?"
	}
	return p.ExitReason.String()
}
