package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/20hyo/rusto/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestUpdate_BestBidAskMidSpread(t *testing.T) {
	b := NewBook("BTCUSDT", 50)
	b.Update(domain.DepthUpdate{
		Bids: []domain.DepthLevel{{Price: d(99.9), Quantity: d(5)}, {Price: d(99.8), Quantity: d(3)}},
		Asks: []domain.DepthLevel{{Price: d(100.1), Quantity: d(5)}, {Price: d(100.2), Quantity: d(2)}},
	})

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(d(99.9)))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(d(100.1)))

	mid, ok := b.Mid()
	require.True(t, ok)
	assert.True(t, mid.Equal(d(100.0)))

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(d(0.2)))
}

func TestUpdate_ZeroQuantityDeletes(t *testing.T) {
	b := NewBook("BTCUSDT", 50)
	b.Update(domain.DepthUpdate{Bids: []domain.DepthLevel{{Price: d(99.9), Quantity: d(5)}}})
	b.Update(domain.DepthUpdate{Bids: []domain.DepthLevel{{Price: d(99.9), Quantity: d(0)}}})

	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestUpdate_IdempotentApplyTwice(t *testing.T) {
	b1 := NewBook("BTCUSDT", 50)
	update := domain.DepthUpdate{
		Bids: []domain.DepthLevel{{Price: d(99.9), Quantity: d(5)}},
		Asks: []domain.DepthLevel{{Price: d(100.1), Quantity: d(5)}},
	}
	b1.Update(update)
	b1.Update(update)

	b2 := NewBook("BTCUSDT", 50)
	b2.Update(update)

	assert.Equal(t, b2.TotalBidVolume().String(), b1.TotalBidVolume().String())
	assert.Equal(t, b2.TotalAskVolume().String(), b1.TotalAskVolume().String())
}

func TestUpdate_TrimsToMaxDepthEvictingWorst(t *testing.T) {
	b := NewBook("BTCUSDT", 2)
	b.Update(domain.DepthUpdate{
		Bids: []domain.DepthLevel{
			{Price: d(100), Quantity: d(1)},
			{Price: d(99), Quantity: d(1)},
			{Price: d(98), Quantity: d(1)},
		},
	})

	assert.Equal(t, 2, b.bids.Len())
	// the lowest bid (98) is the worst-priced and should be evicted
	_, ok := b.bids.Get(d(98))
	assert.False(t, ok)
	_, ok = b.bids.Get(d(100))
	assert.True(t, ok)
}

func TestDepthImbalance(t *testing.T) {
	b := NewBook("BTCUSDT", 50)
	b.Update(domain.DepthUpdate{
		Bids: []domain.DepthLevel{{Price: d(99.9), Quantity: d(10)}},
		Asks: []domain.DepthLevel{{Price: d(100.1), Quantity: d(5)}},
	})

	bidTotal, askTotal, ratio := b.DepthImbalance()
	assert.True(t, bidTotal.Equal(d(10)))
	assert.True(t, askTotal.Equal(d(5)))
	assert.True(t, ratio.Equal(d(2)))
}

func TestTopNDepth(t *testing.T) {
	b := NewBook("BTCUSDT", 50)
	b.Update(domain.DepthUpdate{
		Bids: []domain.DepthLevel{
			{Price: d(100), Quantity: d(1)},
			{Price: d(99), Quantity: d(2)},
			{Price: d(98), Quantity: d(3)},
		},
		Asks: []domain.DepthLevel{
			{Price: d(101), Quantity: d(1)},
			{Price: d(102), Quantity: d(2)},
			{Price: d(103), Quantity: d(3)},
		},
	})

	assert.True(t, b.TopNBidDepth(2).Equal(d(3))) // 100+99
	assert.True(t, b.TopNAskDepth(2).Equal(d(3))) // 101+102
}

func TestManager_BookForCreatesOncePerSymbol(t *testing.T) {
	m := NewManager(10)
	b1 := m.BookFor("BTCUSDT")
	b2 := m.BookFor("BTCUSDT")
	assert.Same(t, b1, b2)

	_, ok := m.Lookup("ETHUSDT")
	assert.False(t, ok)
}
