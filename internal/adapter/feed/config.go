// Package feed connects to the exchange's combined aggTrade/depth websocket
// stream, normalizes raw wire messages into domain events, and reconnects
// on any read or dial failure.
package feed

import (
	"strings"
	"time"
)

const defaultBaseURL = "wss://fstream.binance.com/stream?streams="

// Config holds the symbols to subscribe to and the reconnect cadence.
type Config struct {
	Symbols        []string
	BaseURL        string
	ReconnectDelay time.Duration
}

// DefaultConfig returns a Config for symbols with the standard Binance
// futures combined-stream base URL and a 5-second reconnect delay.
func DefaultConfig(symbols []string) Config {
	return Config{
		Symbols:        symbols,
		BaseURL:        defaultBaseURL,
		ReconnectDelay: 5 * time.Second,
	}
}

// buildURL composes the combined-stream URL from every symbol's aggTrade
// and 100ms depth streams.
func (c Config) buildURL() string {
	streams := make([]string, 0, len(c.Symbols)*2)
	for _, symbol := range c.Symbols {
		lower := strings.ToLower(symbol)
		streams = append(streams, lower+"@aggTrade", lower+"@depth@100ms")
	}
	return c.BaseURL + strings.Join(streams, "/")
}
