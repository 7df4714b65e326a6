package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExchangeInfo = `{
	"symbols": [
		{
			"symbol": "BTCUSDT",
			"status": "TRADING",
			"baseAsset": "BTC",
			"quoteAsset": "USDT",
			"filters": [
				{"filterType": "PRICE_FILTER", "minPrice": "0.10", "maxPrice": "1000000", "tickSize": "0.10"},
				{"filterType": "LOT_SIZE", "minQty": "0.001", "maxQty": "1000", "stepSize": "0.001"},
				{"filterType": "MIN_NOTIONAL", "notional": "5"}
			]
		},
		{
			"symbol": "DELISTEDUSDT",
			"status": "BREAK",
			"baseAsset": "DELISTED",
			"quoteAsset": "USDT",
			"filters": []
		}
	]
}`

func TestExchangeInfoLoader_SyncSkipsNonTradingSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleExchangeInfo))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	loader := NewExchangeInfoLoader(cfg)

	require.NoError(t, loader.Sync(context.Background()))

	_, ok := loader.Get("btcusdt")
	assert.True(t, ok)
	_, ok = loader.Get("delistedusdt")
	assert.False(t, ok, "non-TRADING symbols must be excluded")
}

func TestSymbolInfo_RoundPriceAndQuantity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleExchangeInfo))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	loader := NewExchangeInfoLoader(cfg)
	require.NoError(t, loader.Sync(context.Background()))

	info, ok := loader.Get("BTCUSDT")
	require.True(t, ok)

	rounded, err := info.RoundPrice(decimal.NewFromFloat(100.07))
	require.NoError(t, err)
	assert.True(t, rounded.Equal(decimal.NewFromFloat(100.0)))

	roundedQty, err := info.RoundQuantity(decimal.NewFromFloat(0.0015))
	require.NoError(t, err)
	assert.True(t, roundedQty.Equal(decimal.NewFromFloat(0.001)))

	_, err = info.RoundPrice(decimal.NewFromFloat(0.01))
	assert.Error(t, err, "price below minimum must be rejected")

	err = info.ValidateNotional(decimal.NewFromFloat(100), decimal.NewFromFloat(0.001))
	assert.Error(t, err, "notional below minimum must be rejected")
}
