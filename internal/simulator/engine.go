package simulator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
	"github.com/20hyo/rusto/internal/orderbook"
	"github.com/20hyo/rusto/internal/risk"
)

// Simulator owns every open Position and advances their lifecycle against
// the live trade stream, gated by execution-quality, expectancy, risk, and
// exchange-filter checks on entry.
type Simulator struct {
	cfg     Config
	risk    *risk.Manager
	books   *orderbook.Manager
	filters map[string]*ExchangeFilters
	events  chan<- domain.ExecutionEvent
	logger  *zerolog.Logger

	positions map[string]*domain.Position // id -> position
	bySymbol  map[string][]*domain.Position

	expectancy map[string][]decimal.Decimal // "SYMBOL:HOUR" -> ring of realized pnl

	latestProfile map[string]domain.VolumeProfileSnapshot

	statsMu     sync.RWMutex
	stats       map[string]*domain.SymbolStats
	totalTrades int
}

// NewSimulator creates a Simulator wired to the shared risk manager, order
// book manager, and outbound event channel.
func NewSimulator(cfg Config, riskMgr *risk.Manager, books *orderbook.Manager, events chan<- domain.ExecutionEvent, logger *zerolog.Logger) *Simulator {
	return &Simulator{
		cfg:           cfg,
		risk:          riskMgr,
		books:         books,
		filters:       make(map[string]*ExchangeFilters),
		events:        events,
		logger:        logger,
		positions:     make(map[string]*domain.Position),
		bySymbol:      make(map[string][]*domain.Position),
		expectancy:    make(map[string][]decimal.Decimal),
		latestProfile: make(map[string]domain.VolumeProfileSnapshot),
		stats:         make(map[string]*domain.SymbolStats),
	}
}

// SetExchangeFilters registers symbol's exchange granularity rules.
func (s *Simulator) SetExchangeFilters(symbol string, f *ExchangeFilters) {
	s.filters[symbol] = f
}

// NoteProfile records the latest volume-profile snapshot for symbol, used to
// seed Advanced-setup staged take-profit targets.
func (s *Simulator) NoteProfile(profile domain.VolumeProfileSnapshot) {
	s.latestProfile[profile.Symbol] = profile
}

func (s *Simulator) expectancyRingFor(symbol string, hour int) []decimal.Decimal {
	return s.expectancy[expectancyKey(symbol, hour)]
}

func expectancyKey(symbol string, hour int) string {
	return symbol + ":" + decimal.NewFromInt(int64(hour)).String()
}

// recordHourlyExpectancy appends a closed position's realized pnl to its
// entry-hour ring, trimming the oldest sample once the configured lookback
// is reached.
func (s *Simulator) recordHourlyExpectancy(symbol string, hour int, pnl decimal.Decimal) {
	key := expectancyKey(symbol, hour)
	ring := s.expectancy[key]
	ring = append(ring, pnl)
	if limit := s.cfg.ExpectancyLookbackTrades; limit > 0 && len(ring) > limit {
		ring = ring[1:]
	}
	s.expectancy[key] = ring
}

func (s *Simulator) statsFor(symbol string) *domain.SymbolStats {
	st, ok := s.stats[symbol]
	if !ok {
		st = &domain.SymbolStats{}
		s.stats[symbol] = st
	}
	return st
}

func (s *Simulator) emit(ev domain.ExecutionEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		if s.logger != nil {
			s.logger.Warn().Msg("execution event queue full, dropping event")
		}
	}
}

// ProcessSignal runs signal through the six pre-entry gates in order and, on
// acceptance, opens a Position. Any gate failure rejects the signal silently
// after logging.
func (s *Simulator) ProcessSignal(signal domain.TradeSignal, now time.Time) {
	log := s.logger

	spread, mid, ok := s.checkExecutionQuality(signal)
	if !ok {
		if log != nil {
			log.Warn().Str("symbol", signal.Symbol).Str("setup", signal.Setup.String()).Msg("signal rejected: execution quality gate")
		}
		return
	}

	if !s.checkExpectancy(signal.Symbol, now.UTC().Hour()) {
		if log != nil {
			log.Warn().Str("symbol", signal.Symbol).Msg("signal rejected: expectancy gate")
		}
		return
	}

	if !s.risk.CanTrade(signal.Symbol) {
		if log != nil {
			log.Warn().Str("symbol", signal.Symbol).Msg("signal rejected: risk manager")
		}
		return
	}

	qty := s.risk.CalculatePositionSize(signal.EntryPrice, signal.StopLoss)
	if qty.LessThanOrEqual(decimal.Zero) {
		if log != nil {
			log.Warn().Str("symbol", signal.Symbol).Msg("signal rejected: non-positive size")
		}
		return
	}

	entry, qty, ok := applyExchangeFilters(s.filters[signal.Symbol], signal.EntryPrice, qty)
	if !ok {
		if log != nil {
			log.Warn().Str("symbol", signal.Symbol).Msg("signal rejected: exchange filters")
		}
		return
	}
	signal.EntryPrice = entry

	var book *orderbook.Book
	if b, exists := s.books.Lookup(signal.Symbol); exists {
		book = b
	}
	if _, ok := estimateSlippage(s.cfg, signal.Side, book, spread, mid, qty); !ok {
		if log != nil {
			log.Warn().Str("symbol", signal.Symbol).Msg("signal rejected: slippage model")
		}
		return
	}

	marginType := domain.Isolated
	if s.cfg.MarginType == "cross" {
		marginType = domain.Cross
	}
	pos := domain.NewPosition(signal, qty, s.cfg.Leverage, marginType, now)
	pos.InitialMargin = pos.EntryPrice.Mul(pos.Quantity).Div(decimal.NewFromInt(int64(s.cfg.Leverage)))
	pos.MaintenanceMargin = pos.EntryPrice.Mul(pos.Quantity).Mul(s.cfg.MaintenanceMarginRate)
	pos.LiquidationPrice = liquidationPrice(pos.Side, pos.EntryPrice, s.cfg.Leverage, s.cfg.MaintenanceMarginRate, s.cfg.TakerFee)

	if signal.Setup == domain.SetupAdvancedOrderFlow {
		if profile, ok := s.latestProfile[signal.Symbol]; ok {
			vwap := profile.VWAP
			pos.TP1Price = &vwap
			var tp2 decimal.Decimal
			if signal.Side == domain.Buy {
				tp2 = profile.VAH
			} else {
				tp2 = profile.VAL
			}
			pos.TP2Price = &tp2
		}
	}

	s.positions[pos.ID] = pos
	s.bySymbol[pos.Symbol] = append(s.bySymbol[pos.Symbol], pos)
	s.risk.RegisterPosition(pos)

	s.emit(domain.ExecutionEvent{Kind: domain.EventPositionOpened, Position: pos, PositionID: pos.ID})
}

// Snapshot returns a read-only copy of the bot's aggregate performance,
// safe to call from the periodic reporter goroutine while OnTrade runs
// concurrently on the simulator goroutine.
func (s *Simulator) Snapshot() domain.BotStats {
	balance, dailyPnL, openPositions := s.risk.Snapshot()

	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	bySymbol := make(map[string]*domain.SymbolStats, len(s.stats))
	for symbol, st := range s.stats {
		cp := *st
		bySymbol[symbol] = &cp
	}

	return domain.BotStats{
		Balance:       balance,
		DailyPnL:      dailyPnL,
		OpenPositions: openPositions,
		TotalTrades:   s.totalTrades,
		SymbolStats:   bySymbol,
	}
}

// liquidationPrice implements the approximated isolated-margin liquidation
// formula: adj = 1/leverage - maintenance_margin_rate - 2*taker_fee.
func liquidationPrice(side domain.Side, entry decimal.Decimal, leverage int, maintenanceMarginRate, takerFee decimal.Decimal) decimal.Decimal {
	adj := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(leverage))).
		Sub(maintenanceMarginRate).
		Sub(takerFee.Mul(decimal.NewFromInt(2)))
	if side == domain.Buy {
		return entry.Mul(decimal.NewFromInt(1).Sub(adj))
	}
	return entry.Mul(decimal.NewFromInt(1).Add(adj))
}
