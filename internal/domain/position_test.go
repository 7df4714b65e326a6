package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dd(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestCalculateUnrealizedPnL_BuyAndSell(t *testing.T) {
	now := time.Now()
	buy := NewPosition(NewTradeSignal("BTCUSDT", Buy, SetupAAA, dd(100), dd(90), dd(120), 1, now), dd(2), 10, Isolated, now)
	assert.True(t, buy.CalculateUnrealizedPnL(dd(105)).Equal(dd(10)))

	sell := NewPosition(NewTradeSignal("BTCUSDT", Sell, SetupAAA, dd(100), dd(110), dd(80), 1, now), dd(2), 10, Isolated, now)
	assert.True(t, sell.CalculateUnrealizedPnL(dd(95)).Equal(dd(10)))
}

func TestShouldLiquidate_BuyAndSell(t *testing.T) {
	now := time.Now()
	buy := NewPosition(NewTradeSignal("BTCUSDT", Buy, SetupAAA, dd(100), dd(90), dd(120), 1, now), dd(1), 100, Isolated, now)
	buy.LiquidationPrice = dd(99.48)
	assert.True(t, buy.ShouldLiquidate(dd(99.48)))
	assert.True(t, buy.ShouldLiquidate(dd(99.0)))
	assert.False(t, buy.ShouldLiquidate(dd(99.5)))

	sell := NewPosition(NewTradeSignal("BTCUSDT", Sell, SetupAAA, dd(100), dd(110), dd(80), 1, now), dd(1), 100, Isolated, now)
	sell.LiquidationPrice = dd(100.52)
	assert.True(t, sell.ShouldLiquidate(dd(100.52)))
	assert.False(t, sell.ShouldLiquidate(dd(100.51)))
}

func TestSymbolStats_RecordCloseAndDerivedMetrics(t *testing.T) {
	s := &SymbolStats{}
	s.RecordClose(dd(10))
	s.RecordClose(dd(-5))
	s.RecordClose(dd(20))

	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.True(t, s.TotalPnL.Equal(dd(25)))

	pf := s.ProfitFactor()
	if assert.NotNil(t, pf) {
		assert.True(t, pf.Equal(dd(6)), "profit_factor=%s", pf)
	}
	assert.True(t, s.AvgWin().Equal(dd(15)))
	assert.True(t, s.AvgLoss().Equal(dd(-5)))
}

func TestSymbolStats_ProfitFactorNilWithNoLosses(t *testing.T) {
	s := &SymbolStats{}
	s.RecordClose(dd(10))
	assert.Nil(t, s.ProfitFactor())
}

func TestWinRate_ZeroWithNoTrades(t *testing.T) {
	s := &SymbolStats{}
	assert.True(t, s.WinRate().IsZero())
}
