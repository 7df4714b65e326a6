package rangebar

import "github.com/shopspring/decimal"

// defaultFallbackRange is used when neither an explicit override nor a
// default percentage is configured for a symbol.
var defaultFallbackRange = decimal.NewFromInt(10)

// ConfigResolver resolves range size from an explicit per-symbol override
// map, falling back to a percentage of current price, and finally a hard
// default.
type ConfigResolver struct {
	SymbolRanges map[string]decimal.Decimal
	DefaultPct   *decimal.Decimal
}

// RangeFor implements RangeResolver.
func (c *ConfigResolver) RangeFor(symbol string, currentPrice decimal.Decimal) decimal.Decimal {
	if explicit, ok := c.SymbolRanges[symbol]; ok {
		return explicit
	}
	if c.DefaultPct != nil {
		return currentPrice.Mul(*c.DefaultPct).Div(decimal.NewFromInt(100))
	}
	if fallback, ok := c.SymbolRanges["default"]; ok {
		return fallback
	}
	return defaultFallbackRange
}
