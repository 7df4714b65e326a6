package notification

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/20hyo/rusto/internal/domain"
)

// Route pairs a channel name with the recipient address notifications for
// that channel should be sent to (a Slack channel ID, a Telegram chat ID).
type Route struct {
	Channel   string
	Recipient string
}

// Service formats ExecutionEvents and dispatches them to every configured
// route through a bounded queue and a small worker pool, so a blocked or
// failing provider never backs up into the simulator goroutine.
type Service struct {
	registry *Registry
	routes   []Route
	queue    chan domain.ExecutionEvent
	workers  int
	logger   *zap.Logger
	zlog     *zerolog.Logger
	wg       sync.WaitGroup
}

// NewService builds a Service with the given queue capacity and worker
// count, dispatching to every route whose channel has a registered notifier.
func NewService(registry *Registry, routes []Route, queueCapacity, workers int, zlog *zerolog.Logger) *Service {
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	if workers <= 0 {
		workers = 2
	}
	logger, _ := zap.NewProduction()
	return &Service{
		registry: registry,
		routes:   routes,
		queue:    make(chan domain.ExecutionEvent, queueCapacity),
		workers:  workers,
		logger:   logger,
		zlog:     zlog,
	}
}

// Enqueue submits ev for delivery, dropping it and logging if the queue is
// full rather than blocking the caller.
func (s *Service) Enqueue(ev domain.ExecutionEvent) {
	select {
	case s.queue <- ev:
	default:
		if s.zlog != nil {
			s.zlog.Warn().Msg("notification queue full, dropping event")
		}
	}
}

// Run starts the worker pool; it returns once ctx is cancelled and every
// worker has drained in-flight sends.
func (s *Service) Run(ctx context.Context) {
	s.wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx)
	}
	s.wg.Wait()
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, ev domain.ExecutionEvent) {
	subject, message := Format(ev)
	for _, route := range s.routes {
		notifier, ok := s.registry.Get(route.Channel)
		if !ok {
			continue
		}
		if err := notifier.Send(ctx, route.Recipient, subject, message); err != nil {
			s.logger.Warn("notification send failed",
				zap.String("channel", route.Channel),
				zap.String("subject", subject),
				zap.Error(err))
		}
	}
}
