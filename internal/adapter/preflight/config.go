// Package preflight runs one-shot startup checks against the exchange REST
// API: round-trip latency and clock offset measurement, and symbol trading
// filter discovery.
package preflight

import "time"

const defaultBaseURL = "https://fapi.binance.com"

// Config controls the time-sync check.
type Config struct {
	BaseURL       string
	PingSamples   int
	MaxTimeOffset time.Duration
	MaxLatency    time.Duration
	PingInterval  time.Duration
	HTTPTimeout   time.Duration
}

// DefaultConfig returns the standard Binance futures preflight settings:
// 5 ping samples, 500ms max clock offset, 15ms max average latency.
func DefaultConfig() Config {
	return Config{
		BaseURL:       defaultBaseURL,
		PingSamples:   5,
		MaxTimeOffset: 500 * time.Millisecond,
		MaxLatency:    15 * time.Millisecond,
		PingInterval:  50 * time.Millisecond,
		HTTPTimeout:   5 * time.Second,
	}
}
