package rangebar

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/20hyo/rusto/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

type fixedResolver struct{ size decimal.Decimal }

func (f fixedResolver) RangeFor(symbol string, currentPrice decimal.Decimal) decimal.Decimal {
	return f.size
}

func trade(symbol string, price float64, side domain.Side, ts time.Time) domain.NormalizedTrade {
	return domain.NormalizedTrade{Symbol: symbol, Price: d(price), Quantity: d(1), Side: side, Timestamp: ts}
}

// range_size=1.0, trades at 100.0/100.4/100.9/101.05 (all Buy, qty=1)
// complete one bar: O=100.0 H=101.05 L=100.0 C=101.05 volume=4 buy=4 sell=0 index=1.
func TestProcessTrade_CompletesOnThreshold(t *testing.T) {
	b := NewBuilder(fixedResolver{size: d(1.0)}, d(0.01), nil)
	now := time.Now()

	prices := []float64{100.0, 100.4, 100.9, 101.05}
	var completed domain.RangeBar
	var gotBar bool
	for i, p := range prices {
		bar, ok := b.ProcessTrade(trade("BTCUSDT", p, domain.Buy, now.Add(time.Duration(i)*time.Second)))
		if ok {
			completed = bar
			gotBar = true
		}
	}

	require.True(t, gotBar)
	assert.True(t, completed.Open.Equal(d(100.0)))
	assert.True(t, completed.High.Equal(d(101.05)))
	assert.True(t, completed.Low.Equal(d(100.0)))
	assert.True(t, completed.Close.Equal(d(101.05)))
	assert.True(t, completed.Volume.Equal(d(4)))
	assert.True(t, completed.BuyVolume.Equal(d(4)))
	assert.True(t, completed.SellVolume.Equal(d(0)))
	assert.Equal(t, uint64(1), completed.BarIndex)
}

func TestProcessTrade_NewBarOpensAtClosingTrade(t *testing.T) {
	b := NewBuilder(fixedResolver{size: d(1.0)}, d(0.01), nil)
	now := time.Now()

	for i, p := range []float64{100.0, 100.4, 100.9, 101.05} {
		b.ProcessTrade(trade("BTCUSDT", p, domain.Buy, now.Add(time.Duration(i)*time.Second)))
	}

	bar, ok := b.ProcessTrade(trade("BTCUSDT", 101.2, domain.Buy, now.Add(4*time.Second)))
	assert.False(t, ok)
	_ = bar

	st := b.symbols["BTCUSDT"]
	require.NotNil(t, st.current)
	assert.True(t, st.current.bar.Open.Equal(d(101.05)))
}

func TestProcessTrade_SideTaggedVolumeAndFootprint(t *testing.T) {
	b := NewBuilder(fixedResolver{size: d(1.0)}, d(1), nil)
	now := time.Now()

	b.ProcessTrade(trade("ETHUSDT", 100.0, domain.Buy, now))
	bar, ok := b.ProcessTrade(trade("ETHUSDT", 101.0, domain.Sell, now.Add(time.Second)))
	require.True(t, ok)

	assert.True(t, bar.BuyVolume.Equal(d(1)))
	assert.True(t, bar.SellVolume.Equal(d(1)))
	assert.True(t, bar.Volume.Equal(bar.BuyVolume.Add(bar.SellVolume)))

	// Aggressor=Sell hits the bid side of its own price bucket.
	level, ok := bar.Footprint[priceKey(d(101.0), d(1))]
	require.True(t, ok)
	assert.True(t, level.BidVolume.Equal(d(1)))
	assert.True(t, level.AskVolume.IsZero())
}

func TestProcessTrade_PerSymbolIsolation(t *testing.T) {
	b := NewBuilder(fixedResolver{size: d(1.0)}, d(0.01), nil)
	now := time.Now()

	b.ProcessTrade(trade("BTCUSDT", 100.0, domain.Buy, now))
	b.ProcessTrade(trade("ETHUSDT", 5.0, domain.Buy, now))

	assert.True(t, b.symbols["BTCUSDT"].current.bar.Open.Equal(d(100.0)))
	assert.True(t, b.symbols["ETHUSDT"].current.bar.Open.Equal(d(5.0)))
}
