package ranking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"volumeScope/internal/model"
)

const DefaultInterval = time.Second

// Source supplies the current pool records. *aggregate.Aggregator satisfies it.
type Source interface {
	Snapshot() []model.PoolRecord
}

// Result is one leaderboard computation.
type Result struct {
	Window    model.TimeWindow   `json:"window"`
	Pools     []model.RankedPool `json:"pools"`
	Stats     model.Stats        `json:"stats"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type ServiceConfig struct {
	Interval time.Duration
	Window   model.TimeWindow
	Options  Options
	// Publish is called after every recompute. It must not block for long.
	Publish func(Result)
	Logger  *zap.Logger
	Now     func() time.Time
}

// Service recomputes the leaderboard on a fixed interval.
type Service struct {
	source   Source
	interval time.Duration
	opts     Options
	publish  func(Result)
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	window model.TimeWindow
	latest Result
}

func NewService(source Source, cfg ServiceConfig) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Window == "" {
		cfg.Window = model.Window5m
	}
	if cfg.Options.TopN <= 0 {
		cfg.Options.TopN = DefaultTopN
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		source:   source,
		interval: cfg.Interval,
		opts:     cfg.Options,
		publish:  cfg.Publish,
		logger:   cfg.Logger,
		now:      cfg.Now,
		window:   cfg.Window,
		latest:   Result{Window: cfg.Window, Pools: []model.RankedPool{}},
	}
}

// Run recomputes once immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Recompute()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Recompute()
		}
	}
}

// Recompute ranks the current snapshot, stores and publishes the result.
func (s *Service) Recompute() Result {
	s.mu.RLock()
	window := s.window
	s.mu.RUnlock()

	pools, stats := Rank(s.source.Snapshot(), window, s.opts)
	result := Result{
		Window:    window,
		Pools:     pools,
		Stats:     stats,
		UpdatedAt: s.now(),
	}

	s.mu.Lock()
	// A window change during ranking makes this result stale.
	if s.window != window {
		latest := s.latest
		s.mu.Unlock()
		return latest
	}
	s.latest = result
	s.mu.Unlock()

	if s.publish != nil {
		s.publish(result)
	}
	return result
}

// SetWindow switches the ranking window. It takes effect on the next recompute.
func (s *Service) SetWindow(window model.TimeWindow) {
	s.mu.Lock()
	s.window = window
	s.mu.Unlock()
	s.logger.Info("ranking window changed", zap.String("window", string(window)))
}

func (s *Service) Window() model.TimeWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// Latest returns the most recent result.
func (s *Service) Latest() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
