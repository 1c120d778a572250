package engine

import (
	"context"
	"sync"
	"time"

	"sentryvision/internal/model"
)

// Gate is the process-wide cooldown suppression state machine. After a
// high-severity decision it blocks escalation until the configured duration
// has elapsed. Expiry is lazy: it is applied on read and by a periodic
// sweep, so a reader just past the deadline may still briefly observe the
// gate as suppressed. Not persisted; a restart opens the gate.
type Gate struct {
	mu        sync.Mutex
	active    bool
	startedAt time.Time
	duration  time.Duration
	now       func() time.Time
	onChange  func(active bool)
}

func NewGate(duration time.Duration) *Gate {
	return &Gate{duration: duration, now: func() time.Time { return time.Now().UTC() }}
}

// OnChange registers fn to run whenever the gate flips between open and
// suppressed, including lazy and sweep expiry. fn is invoked with the gate
// lock held and must not call back into the gate.
func (g *Gate) OnChange(fn func(active bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Active reports whether the gate is suppressed, expiring it first if the
// duration has elapsed. Expiry is idempotent.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return g.active
}

// Trip (re)starts suppression. Last write wins on the timestamp; one High
// decision is enough to start the window, so losing an earlier concurrent
// timestamp only extends suppression.
func (g *Gate) Trip() {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasActive := g.active
	g.active = true
	g.startedAt = g.now()
	if !wasActive && g.onChange != nil {
		g.onChange(true)
	}
}

// Reset opens the gate immediately, regardless of elapsed time.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasActive := g.active
	g.active = false
	g.startedAt = time.Time{}
	if wasActive && g.onChange != nil {
		g.onChange(false)
	}
}

func (g *Gate) Snapshot() model.CooldownState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return model.CooldownState{
		Active:    g.active,
		StartedAt: g.startedAt,
		Duration:  g.duration.String(),
	}
}

func (g *Gate) expireLocked() {
	if g.active && g.now().Sub(g.startedAt) >= g.duration {
		g.active = false
		g.startedAt = time.Time{}
		if g.onChange != nil {
			g.onChange(false)
		}
	}
}

// Sweep expires the gate on a fixed interval until ctx is done, bounding how
// stale a lazy reader can observe the state.
func (g *Gate) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.mu.Lock()
			g.expireLocked()
			g.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
