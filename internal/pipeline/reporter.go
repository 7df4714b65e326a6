package pipeline

import (
	"context"
	"time"

	"github.com/20hyo/rusto/internal/domain"
)

// runHourlyReporter periodically snapshots the simulator's aggregate
// performance and emits it as an execution event, independent of the
// simulator's own goroutine. The first report fires at the next wall-clock
// interval boundary, subsequent reports every interval after that.
func (p *Pipeline) runHourlyReporter(ctx context.Context) {
	defer p.wg.Done()

	interval := p.cfg.HourlyReportInterval
	if interval <= 0 {
		interval = time.Hour
	}

	untilBoundary := time.Until(time.Now().Truncate(interval).Add(interval))
	boundary := time.NewTimer(untilBoundary)
	defer boundary.Stop()

	select {
	case <-ctx.Done():
		return
	case <-boundary.C:
	}
	p.emitReport()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emitReport()
		}
	}
}

func (p *Pipeline) emitReport() {
	snap := p.sim.Snapshot()
	select {
	case p.executionCh <- domain.ExecutionEvent{
		Kind:             domain.EventHourlyReport,
		Balance:          snap.Balance,
		DailyPnL:         snap.DailyPnL,
		OpenPositions:    snap.OpenPositions,
		PingMS:           p.cfg.PingMS,
		TotalTrades:      snap.TotalTrades,
		SymbolStatsByKey: snap.SymbolStats,
	}:
	default:
		if p.logger != nil {
			p.logger.Warn().Msg("execution event queue full, dropping hourly report")
		}
	}
}
