package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// SymbolInfo holds the trading filters Binance enforces for a symbol.
type SymbolInfo struct {
	Symbol      string
	Status      string
	BaseAsset   string
	QuoteAsset  string
	TickSize    decimal.Decimal
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	StepSize    decimal.Decimal
	MinQuantity decimal.Decimal
	MaxQuantity decimal.Decimal
	MinNotional decimal.Decimal
}

type exchangeInfoResponse struct {
	Symbols []symbolData `json:"symbols"`
}

type symbolData struct {
	Symbol     string       `json:"symbol"`
	Status     string       `json:"status"`
	BaseAsset  string       `json:"baseAsset"`
	QuoteAsset string       `json:"quoteAsset"`
	Filters    []filterData `json:"filters"`
}

type filterData struct {
	FilterType string `json:"filterType"`
	MinPrice   string `json:"minPrice"`
	MaxPrice   string `json:"maxPrice"`
	TickSize   string `json:"tickSize"`
	MinQty     string `json:"minQty"`
	MaxQty     string `json:"maxQty"`
	StepSize   string `json:"stepSize"`
	Notional   string `json:"notional"`
}

// ExchangeInfoLoader fetches and caches symbol trading filters.
type ExchangeInfoLoader struct {
	cfg    Config
	client *http.Client

	mu      sync.RWMutex
	symbols map[string]SymbolInfo
}

// NewExchangeInfoLoader builds a loader using cfg.HTTPTimeout as the client
// deadline.
func NewExchangeInfoLoader(cfg Config) *ExchangeInfoLoader {
	return &ExchangeInfoLoader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		symbols: make(map[string]SymbolInfo),
	}
}

// Sync fetches /fapi/v1/exchangeInfo and replaces the cached symbol set,
// keeping only symbols with status TRADING. Symbols missing a required
// filter are skipped rather than failing the whole sync.
func (l *ExchangeInfoLoader) Sync(ctx context.Context) error {
	url := l.cfg.BaseURL + "/fapi/v1/exchangeInfo"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch exchange info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange info request failed with status %d", resp.StatusCode)
	}

	var parsed exchangeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to parse exchange info: %w", err)
	}

	loaded := make(map[string]SymbolInfo, len(parsed.Symbols))
	for _, sd := range parsed.Symbols {
		if sd.Status != "TRADING" {
			continue
		}
		info, ok := parseSymbolInfo(sd)
		if !ok {
			continue
		}
		loaded[strings.ToLower(info.Symbol)] = info
	}

	l.mu.Lock()
	l.symbols = loaded
	l.mu.Unlock()
	return nil
}

func parseSymbolInfo(sd symbolData) (SymbolInfo, bool) {
	info := SymbolInfo{
		Symbol:      sd.Symbol,
		Status:      sd.Status,
		BaseAsset:   sd.BaseAsset,
		QuoteAsset:  sd.QuoteAsset,
		MaxPrice:    decimal.NewFromInt(1 << 62),
		MaxQuantity: decimal.NewFromInt(1 << 62),
	}

	var haveTickSize, haveStepSize bool
	for _, f := range sd.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			info.TickSize = parseDecimalOrZero(f.TickSize)
			info.MinPrice = parseDecimalOrZero(f.MinPrice)
			info.MaxPrice = parseDecimalOrZero(f.MaxPrice)
			haveTickSize = true
		case "LOT_SIZE":
			info.StepSize = parseDecimalOrZero(f.StepSize)
			info.MinQuantity = parseDecimalOrZero(f.MinQty)
			info.MaxQuantity = parseDecimalOrZero(f.MaxQty)
			haveStepSize = true
		case "MIN_NOTIONAL":
			info.MinNotional = parseDecimalOrZero(f.Notional)
		}
	}

	if !haveTickSize || !haveStepSize {
		return SymbolInfo{}, false
	}
	return info, true
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Get returns the cached filters for symbol (case-insensitive).
func (l *ExchangeInfoLoader) Get(symbol string) (SymbolInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.symbols[strings.ToLower(symbol)]
	return info, ok
}

// RoundPrice rounds price down to the nearest tick, rejecting prices
// outside [MinPrice, MaxPrice].
func (info SymbolInfo) RoundPrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.LessThan(info.MinPrice) {
		return decimal.Zero, fmt.Errorf("price %s below minimum %s", price, info.MinPrice)
	}
	if price.GreaterThan(info.MaxPrice) {
		return decimal.Zero, fmt.Errorf("price %s above maximum %s", price, info.MaxPrice)
	}
	return roundToStep(price, info.TickSize), nil
}

// RoundQuantity rounds quantity down to the nearest step, rejecting
// quantities outside [MinQuantity, MaxQuantity].
func (info SymbolInfo) RoundQuantity(quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.LessThan(info.MinQuantity) {
		return decimal.Zero, fmt.Errorf("quantity %s below minimum %s", quantity, info.MinQuantity)
	}
	if quantity.GreaterThan(info.MaxQuantity) {
		return decimal.Zero, fmt.Errorf("quantity %s above maximum %s", quantity, info.MaxQuantity)
	}
	return roundToStep(quantity, info.StepSize), nil
}

// ValidateNotional rejects an order whose notional value falls below
// MinNotional.
func (info SymbolInfo) ValidateNotional(price, quantity decimal.Decimal) error {
	notional := price.Mul(quantity)
	if notional.LessThan(info.MinNotional) {
		return fmt.Errorf("notional %s below minimum %s", notional, info.MinNotional)
	}
	return nil
}

func roundToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return value
	}
	return value.Div(step).Truncate(0).Mul(step)
}
