package chatsync

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/rentsync/pkg/logger"
	"github.com/angelmondragon/rentsync/pkg/metrics"
)

const defaultPollInterval = 12 * time.Second

// Synchronizer is one polling shape: customer or admin.
type Synchronizer interface {
	Shape() string
	Inbox() *Inbox
	PollOnce(ctx context.Context) error
	SendMessage(ctx context.Context, receiverID, text string) error
}

// ServiceParams configure the poll loop.
type ServiceParams struct {
	Logger   *logger.Logger
	Metrics  *metrics.SyncMetrics
	Sync     Synchronizer
	Interval time.Duration
}

// Service drives a synchronizer on a fixed cadence. Cycles are serialized:
// a cycle runs to completion before the next one starts, so cursor updates
// can never interleave across overlapping polls.
type Service struct {
	logg     *logger.Logger
	metrics  *metrics.SyncMetrics
	sync     Synchronizer
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Sync == nil {
		return nil, errors.New("synchronizer is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Service{
		logg:     params.Logger,
		metrics:  params.Metrics,
		sync:     params.Sync,
		interval: interval,
	}, nil
}

// Run polls immediately so first paint does not wait a full interval, then
// keeps a fixed cadence until the context is canceled. Background poll
// failures are logged and absorbed; the interval never backs off.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.logg.WithField(ctx, "shape", s.sync.Shape())
	s.logg.Info(ctx, "chat synchronizer starting")

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "chat synchronizer context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := s.sync.PollOnce(ctx)
	duration := time.Since(start)

	shape := s.sync.Shape()
	s.metrics.ObserveCycle(shape, duration, err != nil)
	s.metrics.SetUnread(shape, s.sync.Inbox().UnreadTotal())

	if err != nil && !errors.Is(err, context.Canceled) {
		cycleCtx := s.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
		s.logg.Warn(s.logg.WithField(cycleCtx, "error", err.Error()), "poll cycle reported errors")
	}
}
