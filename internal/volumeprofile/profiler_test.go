package volumeprofile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/20hyo/rusto/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func tradeAt(symbol string, price float64, qty float64, ts time.Time) domain.NormalizedTrade {
	return domain.NormalizedTrade{Symbol: symbol, Price: d(price), Quantity: d(qty), Side: domain.Buy, Timestamp: ts}
}

// tick_size=1, value_area_pct=0.70, volumes 99->1 100->3 101->5 102->2 103->1.
// POC=101, VAH=102, VAL=100.
func TestProcessTrade_POCAndValueArea(t *testing.T) {
	p := NewProfiler(d(1), d(0.70), 24)
	now := time.Now()

	levels := []struct {
		price float64
		qty   float64
	}{
		{99, 1}, {100, 3}, {101, 5}, {102, 2}, {103, 1},
	}

	var snap domain.VolumeProfileSnapshot
	var ok bool
	for _, lvl := range levels {
		for i := 0; i < int(lvl.qty); i++ {
			snap, ok = p.ProcessTrade(tradeAt("BTCUSDT", lvl.price, 1, now))
		}
	}

	require.True(t, ok)
	assert.True(t, snap.POC.Equal(d(101)), "poc=%s", snap.POC)
	assert.True(t, snap.VAH.Equal(d(102)), "vah=%s", snap.VAH)
	assert.True(t, snap.VAL.Equal(d(100)), "val=%s", snap.VAL)
	assert.True(t, snap.TotalVolume.Equal(d(12)))
}

func TestProcessTrade_NoSnapshotBelowThreeBuckets(t *testing.T) {
	p := NewProfiler(d(1), d(0.70), 24)
	now := time.Now()

	_, ok := p.ProcessTrade(tradeAt("BTCUSDT", 100, 1, now))
	assert.False(t, ok)
	_, ok = p.ProcessTrade(tradeAt("BTCUSDT", 101, 1, now))
	assert.False(t, ok)
	_, ok = p.ProcessTrade(tradeAt("BTCUSDT", 102, 1, now))
	assert.True(t, ok)
}

func TestProcessTrade_SessionResetsAfterElapsedHours(t *testing.T) {
	p := NewProfiler(d(1), d(0.70), 1)
	now := time.Now()

	for _, price := range []float64{100, 101, 102} {
		p.ProcessTrade(tradeAt("BTCUSDT", price, 1, now))
	}

	later := now.Add(2 * time.Hour)
	snap, ok := p.ProcessTrade(tradeAt("BTCUSDT", 50, 1, later))
	// a single trade after reset isn't enough to satisfy the 3-bucket floor
	assert.False(t, ok)
	prof := p.profiles["BTCUSDT"]
	assert.Equal(t, 1, prof.levels.Len())
	_ = snap
}

func TestProcessTrade_InvariantValLeqPocLeqVah(t *testing.T) {
	p := NewProfiler(d(1), d(0.70), 24)
	now := time.Now()

	for _, price := range []float64{99, 100, 101, 102, 103} {
		p.ProcessTrade(tradeAt("BTCUSDT", price, 2, now))
	}
	snap, ok := p.ProcessTrade(tradeAt("BTCUSDT", 104, 1, now))
	require.True(t, ok)

	assert.True(t, snap.VAL.LessThanOrEqual(snap.POC))
	assert.True(t, snap.POC.LessThanOrEqual(snap.VAH))
	assert.True(t, snap.SessionLow.LessThanOrEqual(snap.POC))
	assert.True(t, snap.POC.LessThanOrEqual(snap.SessionHigh))
}

func TestVWAP_WeightedByPriceAndQuantity(t *testing.T) {
	p := NewProfiler(d(1), d(0.70), 24)
	now := time.Now()

	p.ProcessTrade(tradeAt("BTCUSDT", 100, 1, now))
	p.ProcessTrade(tradeAt("BTCUSDT", 102, 1, now))
	snap, ok := p.ProcessTrade(tradeAt("BTCUSDT", 104, 2, now))
	require.True(t, ok)

	// vwap = (100*1 + 102*1 + 104*2) / 4 = 102.5
	assert.True(t, snap.VWAP.Equal(d(102.5)), "vwap=%s", snap.VWAP)
}
