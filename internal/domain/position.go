package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position is a simulated leveraged order tracked from entry to close.
type Position struct {
	ID                       string
	Symbol                   string
	Side                     Side
	EntryPrice               decimal.Decimal
	Quantity                 decimal.Decimal
	StopLoss                 decimal.Decimal
	TakeProfit               decimal.Decimal
	Setup                    SetupType
	Status                   PositionStatus
	PnL                      decimal.Decimal
	EntryTime                time.Time
	ExitTime                 *time.Time
	ExitPrice                *decimal.Decimal
	ExitReason               *ExitReason
	BreakEvenMoved           bool
	Leverage                 int
	MarginType               MarginType
	LiquidationPrice         decimal.Decimal
	UnrealizedPnL            decimal.Decimal
	InitialMargin            decimal.Decimal
	MaintenanceMargin        decimal.Decimal
	TP1Filled                bool
	TP1Price                 *decimal.Decimal
	TP2Price                 *decimal.Decimal
	OriginalQuantity         decimal.Decimal
	EntryFeatures            *EntryFeatures
	MaxFavorableExcursionPct decimal.Decimal
	MaxAdverseExcursionPct   decimal.Decimal
	TimeToMFESecs            *int64
	TimeToMAESecs            *int64
}

// NewPosition opens a Position from an accepted signal and sizing decision.
func NewPosition(signal TradeSignal, quantity decimal.Decimal, leverage int, marginType MarginType, entryTime time.Time) *Position {
	return &Position{
		ID:               uuid.New().String(),
		Symbol:           signal.Symbol,
		Side:             signal.Side,
		EntryPrice:       signal.EntryPrice,
		Quantity:         quantity,
		OriginalQuantity: quantity,
		StopLoss:         signal.StopLoss,
		TakeProfit:       signal.TakeProfit,
		Setup:            signal.Setup,
		Status:           PositionOpen,
		EntryTime:        entryTime,
		Leverage:         leverage,
		MarginType:       marginType,
		EntryFeatures:    signal.EntryFeatures,
	}
}

// sign returns +1 for Buy and -1 for Sell, used in PnL/price direction math.
func (s Side) sign() int64 {
	if s == Buy {
		return 1
	}
	return -1
}

// CalculateUnrealizedPnL returns mark-to-market PnL at the given mark price.
func (p *Position) CalculateUnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	sign := decimal.NewFromInt(p.Side.sign())
	return mark.Sub(p.EntryPrice).Mul(p.Quantity).Mul(sign)
}

// CalculateMarginRatio returns the equity-to-maintenance-margin percentage.
// Returns 999 when MaintenanceMargin is zero (matches the no-liquidation-risk sentinel).
func (p *Position) CalculateMarginRatio(accountBalance, mark decimal.Decimal) decimal.Decimal {
	if p.MaintenanceMargin.IsZero() {
		return decimal.NewFromInt(999)
	}
	equity := accountBalance.Add(p.CalculateUnrealizedPnL(mark))
	return equity.Div(p.MaintenanceMargin).Mul(decimal.NewFromInt(100))
}

// ShouldLiquidate reports whether mark has crossed the liquidation price.
func (p *Position) ShouldLiquidate(mark decimal.Decimal) bool {
	if p.Side == Buy {
		return mark.LessThanOrEqual(p.LiquidationPrice)
	}
	return mark.GreaterThanOrEqual(p.LiquidationPrice)
}

// UpdateExcursion refreshes the MFE/MAE stats against the given mark price.
func (p *Position) UpdateExcursion(mark decimal.Decimal, now time.Time) {
	sign := decimal.NewFromInt(p.Side.sign())
	movePct := mark.Sub(p.EntryPrice).Mul(sign).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
	if movePct.GreaterThan(p.MaxFavorableExcursionPct) {
		p.MaxFavorableExcursionPct = movePct
		secs := int64(now.Sub(p.EntryTime).Seconds())
		p.TimeToMFESecs = &secs
	}
	if movePct.LessThan(p.MaxAdverseExcursionPct) {
		p.MaxAdverseExcursionPct = movePct
		secs := int64(now.Sub(p.EntryTime).Seconds())
		p.TimeToMAESecs = &secs
	}
}

// SymbolStats aggregates closed-trade performance for one symbol.
type SymbolStats struct {
	TotalTrades   int
	Wins          int
	Losses        int
	TotalPnL      decimal.Decimal
	TotalWinPnL   decimal.Decimal
	TotalLossPnL  decimal.Decimal
	OpenPositions int
}

// RecordClose updates the running stats with one closed trade's realized pnl.
func (s *SymbolStats) RecordClose(pnl decimal.Decimal) {
	s.TotalTrades++
	s.TotalPnL = s.TotalPnL.Add(pnl)
	if pnl.IsPositive() {
		s.Wins++
		s.TotalWinPnL = s.TotalWinPnL.Add(pnl)
	} else if pnl.IsNegative() {
		s.Losses++
		s.TotalLossPnL = s.TotalLossPnL.Add(pnl)
	}
}

// WinRate returns wins/total_trades, or zero with no trades.
func (s *SymbolStats) WinRate() decimal.Decimal {
	if s.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(s.TotalTrades)))
}

// ProfitFactor returns gross wins over absolute gross losses; nil when there
// are no losses.
func (s *SymbolStats) ProfitFactor() *decimal.Decimal {
	if s.Losses == 0 || s.TotalLossPnL.IsZero() {
		return nil
	}
	pf := s.TotalWinPnL.Abs().Div(s.TotalLossPnL.Abs())
	return &pf
}

// AvgWin returns the mean pnl of winning trades.
func (s *SymbolStats) AvgWin() decimal.Decimal {
	if s.Wins == 0 {
		return decimal.Zero
	}
	return s.TotalWinPnL.Div(decimal.NewFromInt(int64(s.Wins)))
}

// AvgLoss returns the mean pnl of losing trades.
func (s *SymbolStats) AvgLoss() decimal.Decimal {
	if s.Losses == 0 {
		return decimal.Zero
	}
	return s.TotalLossPnL.Div(decimal.NewFromInt(int64(s.Losses)))
}

// BotStats is the shared read-mostly snapshot updated by the simulator and
// read by the periodic reporter.
type BotStats struct {
	Balance       decimal.Decimal
	DailyPnL      decimal.Decimal
	OpenPositions int
	TotalTrades   int
	SymbolStats   map[string]*SymbolStats
}

// ExecutionEventKind discriminates the outbound notification events.
type ExecutionEventKind int

const (
	EventPositionOpened ExecutionEventKind = iota
	EventPositionClosed
	EventPositionLiquidated
	EventTP1Filled
	EventStopMoved
	EventDailyLimitReached
	EventHourlyReport
)

// ExecutionEvent is the tagged union of outbound notification payloads.
type ExecutionEvent struct {
	Kind             ExecutionEventKind
	Position         *Position
	PositionID       string
	TP1Price         decimal.Decimal
	PartialPnL       decimal.Decimal
	NewStop          decimal.Decimal
	DailyPnL         decimal.Decimal
	Balance          decimal.Decimal
	OpenPositions    int
	PingMS           float64
	TotalTrades      int
	SymbolStatsByKey map[string]*SymbolStats
}
