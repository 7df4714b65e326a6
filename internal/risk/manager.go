// Package risk implements position sizing, concurrency limits, break-even
// arming, and the daily loss halt.
package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

// Config holds the risk manager's tunable parameters.
type Config struct {
	InitialBalance           decimal.Decimal
	MaxRiskPerTrade          decimal.Decimal
	DailyLossLimitPct        decimal.Decimal
	MaxConcurrentPositions   int
	Leverage                 int
	BreakEvenTicks           decimal.Decimal
	BreakEvenMinHoldSecs     int64
	BreakEvenTriggerRR       decimal.Decimal
	BreakEvenProfitLockTicks decimal.Decimal
}

// Manager is the risk gate and position-sizing engine shared across symbols.
// mu guards all mutable state (Balance, DailyPnL, the halt flag, and the
// open-position index), so the periodic reporter can read a snapshot while
// the simulator goroutine updates it.
type Manager struct {
	cfg Config

	mu            sync.RWMutex
	Balance       decimal.Decimal
	DailyPnL      decimal.Decimal
	dailyLimit    decimal.Decimal
	halted        bool
	openPositions map[string][]string // symbol -> position ids

	logger *zerolog.Logger
}

// NewManager creates a Manager from cfg.
func NewManager(cfg Config, logger *zerolog.Logger) *Manager {
	return &Manager{
		cfg:           cfg,
		Balance:       cfg.InitialBalance,
		dailyLimit:    cfg.InitialBalance.Mul(cfg.DailyLossLimitPct),
		openPositions: make(map[string][]string),
		logger:        logger,
	}
}

// CanTrade reports whether a new position may be opened for symbol.
func (m *Manager) CanTrade(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.halted {
		return false
	}
	total := 0
	for _, ids := range m.openPositions {
		total += len(ids)
	}
	if total >= m.cfg.MaxConcurrentPositions {
		return false
	}
	if ids, ok := m.openPositions[symbol]; ok && len(ids) > 0 {
		return false
	}
	return true
}

// CalculatePositionSize returns balance*max_risk_per_trade/|entry-stop|,
// clamped to the leverage-backed max notional the balance can support.
func (m *Manager) CalculatePositionSize(entry, stop decimal.Decimal) decimal.Decimal {
	m.mu.RLock()
	balance := m.Balance
	m.mu.RUnlock()

	stopDistance := entry.Sub(stop).Abs()
	if stopDistance.IsZero() {
		return decimal.Zero
	}
	riskAmount := balance.Mul(m.cfg.MaxRiskPerTrade)
	qty := riskAmount.Div(stopDistance)

	leverage := decimal.NewFromInt(int64(m.cfg.Leverage))
	if leverage.IsZero() {
		leverage = decimal.NewFromInt(1)
	}
	maxQtyByMargin := balance.Mul(leverage).Div(entry)
	requiredMargin := entry.Mul(qty).Div(leverage)
	if requiredMargin.GreaterThan(balance) {
		qty = maxQtyByMargin
	}
	return qty
}

// RegisterPosition records a newly opened position against the concurrency index.
func (m *Manager) RegisterPosition(p *domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions[p.Symbol] = append(m.openPositions[p.Symbol], p.ID)
}

// ClosePosition removes a position from the concurrency index and applies
// its realized pnl to balance/daily pnl, halting trading if the daily limit
// is breached. Returns true if this close triggered the halt.
func (m *Manager) ClosePosition(p *domain.Position) (haltedNow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.openPositions[p.Symbol]
	for i, id := range ids {
		if id == p.ID {
			m.openPositions[p.Symbol] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	m.Balance = m.Balance.Add(p.PnL)
	m.DailyPnL = m.DailyPnL.Add(p.PnL)

	if m.DailyPnL.LessThan(m.dailyLimit.Neg()) && !m.halted {
		m.halted = true
		if m.logger != nil {
			m.logger.Warn().
				Str("daily_pnl", m.DailyPnL.String()).
				Str("daily_limit", m.dailyLimit.String()).
				Msg("daily loss limit breached, trading halted")
		}
		return true
	}
	return false
}

// ShouldMoveToBreakEven reports whether p's stop should move to break-even
// given the current mark price and elapsed hold time.
func (m *Manager) ShouldMoveToBreakEven(p *domain.Position, mark decimal.Decimal, now time.Time) bool {
	if p.BreakEvenMoved {
		return false
	}

	var favorable decimal.Decimal
	if p.Side == domain.Buy {
		favorable = mark.Sub(p.EntryPrice)
	} else {
		favorable = p.EntryPrice.Sub(mark)
	}
	if favorable.LessThan(m.cfg.BreakEvenTicks) {
		return false
	}

	held := now.Sub(p.EntryTime).Seconds()
	if held < float64(m.cfg.BreakEvenMinHoldSecs) {
		return false
	}

	stopDistance := p.EntryPrice.Sub(p.StopLoss).Abs()
	if stopDistance.IsZero() {
		return false
	}
	rr := favorable.Div(stopDistance)
	return rr.GreaterThanOrEqual(m.cfg.BreakEvenTriggerRR)
}

// BreakEvenStop returns the protected break-even stop price for p.
func (m *Manager) BreakEvenStop(p *domain.Position) decimal.Decimal {
	if p.Side == domain.Buy {
		return p.EntryPrice.Add(m.cfg.BreakEvenProfitLockTicks)
	}
	return p.EntryPrice.Sub(m.cfg.BreakEvenProfitLockTicks)
}

// ResetDaily zeros the daily pnl counter and clears the halt flag, called on
// the daily rollover boundary.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DailyPnL = decimal.Zero
	m.halted = false
}

// Halted reports the current halt state.
func (m *Manager) Halted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.halted
}

// Snapshot returns a read-only copy of balance/daily-pnl/open-position count
// for the periodic reporter.
func (m *Manager) Snapshot() (balance, dailyPnL decimal.Decimal, openPositions int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, ids := range m.openPositions {
		total += len(ids)
	}
	return m.Balance, m.DailyPnL, total
}
