package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/20hyo/rusto/internal/domain"
	"github.com/20hyo/rusto/internal/risk"
)

// best_bid=99.99, best_ask=100.01 -> spread=0.02, mid=100, bps=2 by
// the spread/mid*10_000 formula used consistently elsewhere in this package
// (see the slippage model). A threshold below that observed 2bps rejects the
// signal before a position is ever opened.
func TestProcessSignal_RejectedBySpreadGate(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxSpreadBps = d(1)
	cfg.MinDepthImbalanceRatio = d(0)
	sim, rm, events := newTestSimulator(cfg, risk.Config{InitialBalance: d(10000), MaxRiskPerTrade: d(0.01), DailyLossLimitPct: d(1), MaxConcurrentPositions: 10, Leverage: 100})
	_ = rm

	book := sim.books.BookFor("BTCUSDT")
	book.Update(domain.DepthUpdate{
		Bids: []domain.DepthLevel{{Price: d(99.99), Quantity: d(10)}},
		Asks: []domain.DepthLevel{{Price: d(100.01), Quantity: d(10)}},
	})

	signal := domain.NewTradeSignal("BTCUSDT", domain.Buy, domain.SetupAdvancedOrderFlow, d(100), d(99), d(102), 0.85, time.Now())
	sim.ProcessSignal(signal, time.Now())

	assert.Empty(t, sim.positions)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev.Kind)
	default:
	}
}

func TestProcessSignal_AcceptedOpensPositionAndEmitsEvent(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxSpreadBps = d(100)
	cfg.MinDepthImbalanceRatio = d(0)
	sim, _, events := newTestSimulator(cfg, risk.Config{InitialBalance: d(10000), MaxRiskPerTrade: d(0.01), DailyLossLimitPct: d(1), MaxConcurrentPositions: 10, Leverage: 100})

	book := sim.books.BookFor("BTCUSDT")
	book.Update(domain.DepthUpdate{
		Bids: []domain.DepthLevel{{Price: d(99.9), Quantity: d(10)}},
		Asks: []domain.DepthLevel{{Price: d(100.1), Quantity: d(10)}},
	})

	signal := domain.NewTradeSignal("BTCUSDT", domain.Buy, domain.SetupAAA, d(100), d(90), d(120), 0.7, time.Now())
	sim.ProcessSignal(signal, time.Now())

	require.Len(t, sim.positions, 1)
	ev := <-events
	assert.Equal(t, domain.EventPositionOpened, ev.Kind)
	assert.Equal(t, domain.PositionOpen, ev.Position.Status)
}

func TestProcessSignal_RejectedWhenRiskManagerSaysNo(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxSpreadBps = d(100)
	cfg.MinDepthImbalanceRatio = d(0)
	riskCfg := risk.Config{InitialBalance: d(10000), MaxRiskPerTrade: d(0.01), DailyLossLimitPct: d(1), MaxConcurrentPositions: 1, Leverage: 100}
	sim, rm, _ := newTestSimulator(cfg, riskCfg)

	existing := domain.NewPosition(domain.NewTradeSignal("BTCUSDT", domain.Buy, domain.SetupAAA, d(100), d(90), d(120), 1, time.Now()), d(1), 100, domain.Isolated, time.Now())
	rm.RegisterPosition(existing)

	book := sim.books.BookFor("BTCUSDT")
	book.Update(domain.DepthUpdate{
		Bids: []domain.DepthLevel{{Price: d(99.9), Quantity: d(10)}},
		Asks: []domain.DepthLevel{{Price: d(100.1), Quantity: d(10)}},
	})

	signal := domain.NewTradeSignal("BTCUSDT", domain.Buy, domain.SetupAAA, d(100), d(90), d(120), 0.7, time.Now())
	sim.ProcessSignal(signal, time.Now())

	assert.Empty(t, sim.positions)
}

func TestLiquidationPrice_LongApproximation(t *testing.T) {
	liq := liquidationPrice(domain.Buy, d(100), 100, d(0.004), d(0.0004))
	assert.True(t, liq.Sub(d(99.48)).Abs().LessThan(d(0.001)), "liq=%s", liq)
}
