package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/20hyo/rusto/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func baseConfig() Config {
	return Config{
		EnabledSetups:               []string{"AAA", "MomentumSqueeze", "AbsorptionReversal", "AdvancedOrderFlow"},
		AAAPOCDistanceTicks:         d(0.5),
		MomentumLookbackBars:        1,
		MinDeltaConfirmation:        d(1),
		DefaultStopTicks:            d(1),
		DefaultTargetMultiplier:     d(2),
		AdvancedZoneTicks:           d(0.5),
		AdvancedMinImbalanceRatio:   d(1.5),
		AdvancedMinCVD1MinChange:    d(1),
		AdvancedMinBarRangePct:      d(0.1),
		AdvancedCooldownBars:        3,
		AdvancedMinVolumeBurstRatio: d(2),
	}
}

func sideP(s domain.Side) *domain.Side { return &s }

func TestCheckAAA_BuySideAtVAL(t *testing.T) {
	e := NewEngine(baseConfig())
	bar := domain.RangeBar{Symbol: "BTCUSDT", Close: d(100), CloseTime: time.Now()}
	flow := domain.OrderFlowMetrics{AbsorptionDetected: true, AbsorptionSide: sideP(domain.Sell)}
	profile := domain.VolumeProfileSnapshot{VAL: d(100.2), VAH: d(103)}

	sig, ok := e.checkAAA(bar, flow, profile)
	require.True(t, ok)
	assert.Equal(t, domain.Buy, sig.Side)
	assert.True(t, sig.TakeProfit.Equal(d(103)))
	assert.True(t, sig.StopLoss.LessThan(sig.EntryPrice))
	assert.True(t, sig.EntryPrice.LessThan(sig.TakeProfit))
}

func TestCheckAAA_NoSignalWithoutAbsorption(t *testing.T) {
	e := NewEngine(baseConfig())
	bar := domain.RangeBar{Symbol: "BTCUSDT", Close: d(100), CloseTime: time.Now()}
	flow := domain.OrderFlowMetrics{AbsorptionDetected: false}
	profile := domain.VolumeProfileSnapshot{VAL: d(100.2), VAH: d(103)}

	_, ok := e.checkAAA(bar, flow, profile)
	assert.False(t, ok)
}

func TestCheckMomentumSqueeze_BreakoutAboveSessionHigh(t *testing.T) {
	e := NewEngine(baseConfig())
	bar := domain.RangeBar{Symbol: "BTCUSDT", Close: d(105), CloseTime: time.Now()}
	flow := domain.OrderFlowMetrics{BarDelta: d(5)}
	profile := domain.VolumeProfileSnapshot{SessionHigh: d(104), SessionLow: d(95)}
	st := &symbolState{recentBars: make([]domain.RangeBar, 5)}

	sig, ok := e.checkMomentumSqueeze(bar, flow, profile, st)
	require.True(t, ok)
	assert.Equal(t, domain.Buy, sig.Side)
	assert.True(t, sig.StopLoss.Equal(d(104)))
	assert.True(t, sig.TakeProfit.Equal(d(107)))
}

func TestCheckMomentumSqueeze_RequiresLookbackHistory(t *testing.T) {
	cfg := baseConfig()
	cfg.MomentumLookbackBars = 10
	e := NewEngine(cfg)
	bar := domain.RangeBar{Symbol: "BTCUSDT", Close: d(105), CloseTime: time.Now()}
	flow := domain.OrderFlowMetrics{BarDelta: d(5)}
	profile := domain.VolumeProfileSnapshot{SessionHigh: d(104), SessionLow: d(95)}
	st := &symbolState{recentBars: make([]domain.RangeBar, 2)}

	_, ok := e.checkMomentumSqueeze(bar, flow, profile, st)
	assert.False(t, ok)
}

func TestCheckAbsorptionReversal_FadesOppositeOfAbsorbedSide(t *testing.T) {
	e := NewEngine(baseConfig())
	bar := domain.RangeBar{Symbol: "BTCUSDT", Close: d(100), CloseTime: time.Now()}
	flow := domain.OrderFlowMetrics{AbsorptionDetected: true, AbsorptionSide: sideP(domain.Sell)}

	sig, ok := e.checkAbsorptionReversal(bar, flow)
	require.True(t, ok)
	assert.Equal(t, domain.Buy, sig.Side)
}

func TestProcessBar_RespectsEnabledSetupsFilter(t *testing.T) {
	cfg := baseConfig()
	cfg.EnabledSetups = []string{"MomentumSqueeze"}
	e := NewEngine(cfg)

	bar := domain.RangeBar{Symbol: "BTCUSDT", Close: d(100), CloseTime: time.Now(), Footprint: map[int64]*domain.FootprintLevel{}}
	flow := domain.OrderFlowMetrics{AbsorptionDetected: true, AbsorptionSide: sideP(domain.Sell)}
	profile := domain.VolumeProfileSnapshot{VAL: d(100.1), VAH: d(103), SessionHigh: d(200), SessionLow: d(1)}

	sigs := e.ProcessBar(bar, flow, profile, true)
	assert.Empty(t, sigs, "AAA/AbsorptionReversal disabled, MomentumSqueeze shouldn't fire on this bar")
}

func TestProcessBar_AdvancedCooldownSuppressesRepeats(t *testing.T) {
	cfg := baseConfig()
	cfg.EnabledSetups = []string{"AdvancedOrderFlow"}
	cfg.AdvancedRequireReversalBar = false
	e := NewEngine(cfg)

	bar := domain.RangeBar{
		Symbol: "BTCUSDT", Open: d(99.9), Close: d(100), CloseTime: time.Now(),
		High: d(100.2), Low: d(99.8),
		Footprint: map[int64]*domain.FootprintLevel{},
	}
	flow := domain.OrderFlowMetrics{
		AbsorptionDetected: true, AbsorptionSide: sideP(domain.Buy),
		CVDRapidDrop: true, ImbalanceRatio: d(2), CVD1MinChange: d(5),
		VolumeBurst: true, VolumeBurstRatio: d(5),
	}
	profile := domain.VolumeProfileSnapshot{VAL: d(100), VAH: d(110), VWAP: d(105)}

	sigs1 := e.ProcessBar(bar, flow, profile, true)
	require.Len(t, sigs1, 1)
	assert.Equal(t, domain.SetupAdvancedOrderFlow, sigs1[0].Setup)

	sigs2 := e.ProcessBar(bar, flow, profile, true)
	assert.Empty(t, sigs2, "cooldown should suppress an immediate repeat")
}
