package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/20hyo/rusto/internal/domain"
	"github.com/20hyo/rusto/internal/orderflow"
	"github.com/20hyo/rusto/internal/rangebar"
	"github.com/20hyo/rusto/internal/simulator"
	"github.com/20hyo/rusto/internal/strategy"
	"github.com/20hyo/rusto/internal/volumeprofile"
)

// Pipeline owns the market-event broadcast and drives trades through the
// volume profiler, range-bar builder, order-flow tracker, and strategy
// engine, handing the resulting signals to a single simulator goroutine that
// also consumes the raw trade/depth stream directly.
type Pipeline struct {
	cfg Config

	market       *broadcaster[domain.MarketEvent]
	processingCh chan domain.ProcessingEvent
	executionCh  chan domain.ExecutionEvent

	rangeBar *rangebar.Builder
	profiler *volumeprofile.Profiler
	flow     *orderflow.Tracker
	strategy *strategy.Engine
	sim      *simulator.Simulator

	latestProfile map[string]domain.VolumeProfileSnapshot
	hasProfile    map[string]bool

	logger *zerolog.Logger
	wg     sync.WaitGroup
}

// NewPipeline wires the processing stages and the simulator into a Pipeline.
// sim must have been constructed with executionCh as its event sink.
func NewPipeline(cfg Config, rangeBar *rangebar.Builder, profiler *volumeprofile.Profiler, flow *orderflow.Tracker, strategyEngine *strategy.Engine, sim *simulator.Simulator, executionCh chan domain.ExecutionEvent, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:           cfg,
		market:        newBroadcaster[domain.MarketEvent](cfg.MarketEventBuffer),
		processingCh:  make(chan domain.ProcessingEvent, cfg.ProcessingEventBuffer),
		executionCh:   executionCh,
		rangeBar:      rangeBar,
		profiler:      profiler,
		flow:          flow,
		strategy:      strategyEngine,
		sim:           sim,
		latestProfile: make(map[string]domain.VolumeProfileSnapshot),
		hasProfile:    make(map[string]bool),
		logger:        logger,
	}
}

// ExecutionEvents exposes the outbound channel for notification and
// trade-log sinks to range over.
func (p *Pipeline) ExecutionEvents() <-chan domain.ExecutionEvent { return p.executionCh }

// PublishTrade fans a normalized trade out to every pipeline subscriber.
func (p *Pipeline) PublishTrade(trade domain.NormalizedTrade) {
	p.market.Publish(domain.MarketEvent{Kind: domain.MarketEventTrade, Trade: trade})
}

// PublishDepth fans a depth update out to every pipeline subscriber.
func (p *Pipeline) PublishDepth(update domain.DepthUpdate) {
	p.market.Publish(domain.MarketEvent{Kind: domain.MarketEventDepth, Depth: update})
}

// Run starts the processing, simulator, and hourly-reporter goroutines and
// blocks until ctx is cancelled and all three have returned.
func (p *Pipeline) Run(ctx context.Context) {
	processingSub := p.market.Subscribe()
	simSub := p.market.Subscribe()

	p.wg.Add(3)
	go p.runProcessing(ctx, processingSub)
	go p.runSimulator(ctx, simSub)
	go p.runHourlyReporter(ctx)

	p.wg.Wait()
}

func (p *Pipeline) runProcessing(ctx context.Context, sub <-chan domain.MarketEvent) {
	defer p.wg.Done()
	if p.logger != nil {
		p.logger.Info().Msg("processing pipeline started")
	}
	for {
		select {
		case <-ctx.Done():
			if p.logger != nil {
				p.logger.Info().Msg("processing pipeline shutting down")
			}
			return
		case ev := <-sub:
			if ev.Kind != domain.MarketEventTrade {
				continue
			}
			p.processTrade(ev.Trade)
		}
	}
}

func (p *Pipeline) processTrade(trade domain.NormalizedTrade) {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error().Interface("panic", r).Msg("recovered in processing pipeline")
		}
	}()

	if vp, ok := p.profiler.ProcessTrade(trade); ok {
		p.latestProfile[trade.Symbol] = vp
		p.hasProfile[trade.Symbol] = true
		p.emitProcessing(domain.ProcessingEvent{Kind: domain.ProcessingEventVolumeProfile, VolumeProfile: vp})
	}

	bar, ok := p.rangeBar.ProcessTrade(trade)
	if !ok {
		return
	}

	flow := p.flow.AnalyzeBar(bar)
	p.emitProcessing(domain.ProcessingEvent{Kind: domain.ProcessingEventOrderFlow, OrderFlow: flow})

	profile := p.latestProfile[trade.Symbol]
	signals := p.strategy.ProcessBar(bar, flow, profile, p.hasProfile[trade.Symbol])
	p.emitProcessing(domain.ProcessingEvent{Kind: domain.ProcessingEventNewBar, Bar: bar})

	for _, signal := range signals {
		if p.logger != nil {
			p.logger.Info().
				Str("symbol", signal.Symbol).
				Str("setup", signal.Setup.String()).
				Str("side", signal.Side.String()).
				Str("entry", signal.EntryPrice.String()).
				Msg("signal generated")
		}
		p.emitProcessing(domain.ProcessingEvent{Kind: domain.ProcessingEventSignal, Signal: signal})
	}
}

func (p *Pipeline) emitProcessing(ev domain.ProcessingEvent) {
	select {
	case p.processingCh <- ev:
	default:
		if p.logger != nil {
			p.logger.Warn().Msg("processing event queue full, dropping event")
		}
	}
}

// runSimulator is the sole goroutine that mutates the Simulator: it selects
// between processing-stage signals and the simulator's own direct
// subscription to raw trades/depth, so no locking is needed inside Simulator
// itself.
func (p *Pipeline) runSimulator(ctx context.Context, sub <-chan domain.MarketEvent) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub:
			switch ev.Kind {
			case domain.MarketEventTrade:
				p.sim.OnTrade(ev.Trade, ev.Trade.Timestamp)
			case domain.MarketEventDepth:
				p.sim.OnDepth(ev.Depth)
			}
		case pev := <-p.processingCh:
			switch pev.Kind {
			case domain.ProcessingEventSignal:
				p.sim.ProcessSignal(pev.Signal, pev.Signal.Timestamp)
			case domain.ProcessingEventVolumeProfile:
				p.sim.NoteProfile(pev.VolumeProfile)
			}
		}
	}
}
