package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleEvent is the outcome of one completed sync cycle, published to
// subscribers (the websocket event feed, tests).
type CycleEvent struct {
	NewReviews int       `json:"new_reviews"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Poller triggers sync cycles on a fixed interval and guarantees at most one
// concurrent cycle: if a cycle is still running when the ticker fires, the
// trigger is a no-op.
type Poller struct {
	orchestrator *Orchestrator
	interval     time.Duration

	mu          sync.Mutex
	inflight    bool
	subscribers map[chan CycleEvent]struct{}
}

// NewPoller creates a Poller around the orchestrator.
func NewPoller(orchestrator *Orchestrator, interval time.Duration) *Poller {
	return &Poller{
		orchestrator: orchestrator,
		interval:     interval,
		subscribers:  make(map[chan CycleEvent]struct{}),
	}
}

// Start runs the scheduling loop in a background goroutine until ctx is
// cancelled. The first cycle fires immediately.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		slog.Info("review poller started", "interval", p.interval)

		p.Trigger(ctx)
		for {
			select {
			case <-ticker.C:
				p.Trigger(ctx)
			case <-ctx.Done():
				slog.Info("review poller shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Trigger starts a cycle on its own worker goroutine unless one is already in
// flight. Returns false when the trigger was a no-op.
func (p *Poller) Trigger(ctx context.Context) bool {
	p.mu.Lock()
	if p.inflight {
		p.mu.Unlock()
		return false
	}
	p.inflight = true
	p.mu.Unlock()

	go p.runCycle(ctx)
	return true
}

// InFlight reports whether a cycle is currently running.
func (p *Poller) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

func (p *Poller) runCycle(ctx context.Context) {
	event := CycleEvent{StartedAt: time.Now()}

	count, err := p.orchestrator.RunCycle(ctx)
	event.NewReviews = count
	event.FinishedAt = time.Now()
	if err != nil {
		event.Error = err.Error()
		slog.Error("sync cycle failed", "error", err)
	} else {
		slog.Info("sync cycle finished", "new_reviews", count,
			"duration", event.FinishedAt.Sub(event.StartedAt))
	}

	p.mu.Lock()
	p.inflight = false
	for subscriber := range p.subscribers {
		select {
		case subscriber <- event:
		default:
			// Slow subscriber; drop rather than stall the pipeline.
		}
	}
	p.mu.Unlock()
}

// Subscribe registers for cycle events. The returned cancel function must be
// called to release the subscription.
func (p *Poller) Subscribe() (<-chan CycleEvent, func()) {
	ch := make(chan CycleEvent, 8)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.subscribers, ch)
		p.mu.Unlock()
	}
	return ch, cancel
}
