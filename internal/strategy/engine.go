package strategy

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

const sampleHistoryCap = 400

// sample is one bar+flow+profile triple retained for the adaptive tuner.
type sample struct {
	bar     domain.RangeBar
	flow    domain.OrderFlowMetrics
	profile domain.VolumeProfileSnapshot
}

type symbolState struct {
	recentBars        []domain.RangeBar // capped at the 100 most recent bars
	samples           []sample          // capped at sampleHistoryCap
	tunedBurstRatio   decimal.Decimal
	barsSinceTune     int
	cooldownRemaining int
}

// Engine evaluates completed bars against the four setup families and the
// adaptive burst tuner.
type Engine struct {
	cfg     Config
	symbols map[string]*symbolState
	logger  *zerolog.Logger
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, symbols: make(map[string]*symbolState)}
}

// SetLogger attaches a logger for tuning telemetry.
func (e *Engine) SetLogger(logger *zerolog.Logger) {
	e.logger = logger
}

func (e *Engine) stateFor(symbol string) *symbolState {
	st, ok := e.symbols[symbol]
	if !ok {
		st = &symbolState{tunedBurstRatio: e.cfg.AdvancedMinVolumeBurstRatio}
		e.symbols[symbol] = st
	}
	return st
}

// ProcessBar evaluates every enabled setup against the latest bar, flow, and
// profile, returning zero or more signals. It also advances the adaptive
// tuner and per-symbol cooldown/history bookkeeping.
func (e *Engine) ProcessBar(bar domain.RangeBar, flow domain.OrderFlowMetrics, profile domain.VolumeProfileSnapshot, hasProfile bool) []domain.TradeSignal {
	st := e.stateFor(bar.Symbol)

	st.recentBars = append(st.recentBars, bar)
	if len(st.recentBars) > 100 {
		st.recentBars = st.recentBars[1:]
	}

	st.samples = append(st.samples, sample{bar: bar, flow: flow, profile: profile})
	if len(st.samples) > sampleHistoryCap {
		st.samples = st.samples[1:]
	}

	if st.cooldownRemaining > 0 {
		st.cooldownRemaining--
	}

	var signals []domain.TradeSignal

	if contains(e.cfg.EnabledSetups, domain.SetupAAA.String()) && hasProfile {
		if sig, ok := e.checkAAA(bar, flow, profile); ok {
			signals = append(signals, sig)
		}
	}
	if contains(e.cfg.EnabledSetups, domain.SetupMomentumSqueeze.String()) && hasProfile {
		if sig, ok := e.checkMomentumSqueeze(bar, flow, profile, st); ok {
			signals = append(signals, sig)
		}
	}
	if contains(e.cfg.EnabledSetups, domain.SetupAbsorptionReversal.String()) {
		if sig, ok := e.checkAbsorptionReversal(bar, flow); ok {
			signals = append(signals, sig)
		}
	}
	if contains(e.cfg.EnabledSetups, domain.SetupAdvancedOrderFlow.String()) && hasProfile && st.cooldownRemaining == 0 {
		if sig, ok := e.checkAdvancedOrderFlow(bar, flow, profile, st); ok {
			signals = append(signals, sig)
			st.cooldownRemaining = e.cfg.AdvancedCooldownBars
		}
	}

	if e.cfg.AutoTuneVolumeBurst {
		st.barsSinceTune++
		if st.barsSinceTune >= 5 && len(st.samples) >= e.cfg.TuningMinTrades {
			st.barsSinceTune = 0
			if tuned, ok := e.tuneBurstRatio(st); ok {
				if !tuned.Equal(st.tunedBurstRatio) && e.logger != nil {
					e.logger.Info().
						Str("symbol", bar.Symbol).
						Str("old_ratio", st.tunedBurstRatio.String()).
						Str("new_ratio", tuned.String()).
						Msg("volume burst threshold retuned")
				}
				st.tunedBurstRatio = tuned
			}
		}
	}

	return signals
}

// TunedBurstRatio exposes the currently tuned volume-burst ratio for symbol,
// used by tests and the tuning-event sink.
func (e *Engine) TunedBurstRatio(symbol string) decimal.Decimal {
	return e.stateFor(symbol).tunedBurstRatio
}
