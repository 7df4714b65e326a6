package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/20hyo/rusto/internal/domain"
)

func TestHandleMessage_AggTrade_BuyerMakerIsSellAggressor(t *testing.T) {
	var got domain.NormalizedTrade
	f := New(DefaultConfig([]string{"BTCUSDT"}), Handlers{
		OnTrade: func(t domain.NormalizedTrade) { got = t },
	}, nil)

	raw := []byte(`{
		"stream": "btcusdt@aggTrade",
		"data": {
			"e": "aggTrade", "E": 123456789, "s": "BTCUSDT", "a": 5933014,
			"p": "100.50", "q": "1.000", "f": 100, "l": 105, "T": 123456785, "m": true
		}
	}`)

	f.handleMessage(raw)

	require.Equal(t, "btcusdt", got.Symbol)
	assert.True(t, got.Price.Equal(decimal.NewFromFloat(100.50)))
	assert.True(t, got.Quantity.Equal(decimal.NewFromFloat(1.0)))
	assert.Equal(t, domain.Sell, got.Side)
	assert.Equal(t, uint64(5933014), got.TradeID)
}

func TestHandleMessage_AggTrade_NonBuyerMakerIsBuyAggressor(t *testing.T) {
	var got domain.NormalizedTrade
	f := New(DefaultConfig([]string{"BTCUSDT"}), Handlers{
		OnTrade: func(t domain.NormalizedTrade) { got = t },
	}, nil)

	raw := []byte(`{
		"stream": "btcusdt@aggTrade",
		"data": {"s": "BTCUSDT", "a": 1, "p": "100", "q": "1", "T": 1, "m": false}
	}`)

	f.handleMessage(raw)

	assert.Equal(t, domain.Buy, got.Side)
}

func TestHandleMessage_Depth(t *testing.T) {
	var got domain.DepthUpdate
	f := New(DefaultConfig([]string{"BTCUSDT"}), Handlers{
		OnDepth: func(d domain.DepthUpdate) { got = d },
	}, nil)

	raw := []byte(`{
		"stream": "btcusdt@depth@100ms",
		"data": {
			"e": "depthUpdate", "E": 123456789, "T": 123456788, "s": "BTCUSDT",
			"U": 157, "u": 160, "pu": 149,
			"b": [["99.90", "5.0"], ["bad", "1.0"]],
			"a": [["100.10", "3.0"]]
		}
	}`)

	f.handleMessage(raw)

	require.Equal(t, "btcusdt", got.Symbol)
	require.Len(t, got.Bids, 1, "malformed price level must be skipped")
	assert.True(t, got.Bids[0].Price.Equal(decimal.NewFromFloat(99.90)))
	require.Len(t, got.Asks, 1)
	assert.True(t, got.Asks[0].Price.Equal(decimal.NewFromFloat(100.10)))
}

func TestBuildURL_CombinesAggTradeAndDepthPerSymbol(t *testing.T) {
	cfg := DefaultConfig([]string{"BTCUSDT", "ETHUSDT"})
	url := cfg.buildURL()

	assert.Contains(t, url, "btcusdt@aggTrade")
	assert.Contains(t, url, "btcusdt@depth@100ms")
	assert.Contains(t, url, "ethusdt@aggTrade")
	assert.Contains(t, url, "ethusdt@depth@100ms")
}
