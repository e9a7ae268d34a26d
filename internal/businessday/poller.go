package businessday

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval matches the 30s cadence clients expect for the drift
// banner.
const DefaultPollInterval = 30 * time.Second

// Poller periodically re-reads the day state so the gate and the metrics
// layer see drift without querying the database on every request. Scan is
// exposed separately so tests drive ticks manually instead of sleeping.
type Poller struct {
	service  *Service
	logger   *slog.Logger
	interval time.Duration
	onState  func(DayState)

	mu   sync.RWMutex
	last DayState
	seen bool
}

// NewPoller constructs a Poller. A non-positive interval falls back to the
// default.
func NewPoller(service *Service, logger *slog.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{service: service, logger: logger, interval: interval}
}

// OnState registers a hook invoked after every successful scan.
func (p *Poller) OnState(fn func(DayState)) {
	p.onState = fn
}

// Scan performs one state read and records the result.
func (p *Poller) Scan(ctx context.Context) (DayState, error) {
	state, err := p.service.State(ctx)
	if err != nil && err != ErrClockSkew {
		return DayState{}, err
	}
	if err == ErrClockSkew {
		p.logger.Error("business date ahead of wall clock",
			slog.Time("business_date", state.BusinessDate),
			slog.Time("wall_clock_date", state.WallClockDate),
		)
	}
	p.mu.Lock()
	p.last = state
	p.seen = true
	p.mu.Unlock()
	if p.onState != nil {
		p.onState(state)
	}
	return state, err
}

// Last returns the most recent observed state; ok is false before the first
// scan completes.
func (p *Poller) Last() (DayState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.seen
}

// Run scans immediately, then on every tick until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if _, err := p.Scan(ctx); err != nil {
		p.logger.Error("drift scan", slog.Any("error", err))
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Scan(ctx); err != nil {
				p.logger.Error("drift scan", slog.Any("error", err))
			}
		}
	}
}
