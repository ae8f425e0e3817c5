package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/bus"
)

// MinShutdownGrace is the shortest grace period Shutdown will use. It covers
// one error cooldown plus scheduling slack.
const MinShutdownGrace = time.Second

// Group supervises a set of runtimes sharing one bus.
type Group struct {
	bus      *bus.Bus
	runtimes []*Runtime
	logger   Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewGroup creates a Group over the given runtimes.
func NewGroup(b *bus.Bus, logger Logger, runtimes ...*Runtime) *Group {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Group{
		bus:      b,
		runtimes: runtimes,
		logger:   logger,
	}
}

// Runtimes returns the supervised runtimes in start order.
func (g *Group) Runtimes() []*Runtime {
	out := make([]*Runtime, len(g.runtimes))
	copy(out, g.runtimes)
	return out
}

// Start starts every runtime under a context derived from ctx.
// If one fails to start, the ones already started are cancelled and the
// error is returned.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	for _, r := range g.runtimes {
		if err := r.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("starting agent %s: %w", r.Name(), err)
		}
	}

	g.logger.Info("agents started", "count", len(g.runtimes))
	return nil
}

// Shutdown signals every runtime to stop, waits up to grace for their loops
// to exit, and then clears the bus. Grace periods below MinShutdownGrace are
// raised to it.
//
// Returns ErrShutdownTimeout naming the agents still running when the grace
// period expired. The bus is cleared either way.
func (g *Group) Shutdown(grace time.Duration) error {
	if grace < MinShutdownGrace {
		grace = MinShutdownGrace
	}

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	var stuck []string
	for _, r := range g.runtimes {
		if err := r.Wait(ctx); err != nil {
			stuck = append(stuck, r.Name())
		}
	}

	g.bus.Clear()

	if len(stuck) > 0 {
		g.logger.Warn("agents did not stop within grace period", "agents", stuck, "grace", grace)
		return fmt.Errorf("%w: %v", ErrShutdownTimeout, stuck)
	}

	g.logger.Info("agents stopped", "count", len(g.runtimes))
	return nil
}

// Stats returns a copy of every runtime's counters in start order.
func (g *Group) Stats() []Stats {
	out := make([]Stats, 0, len(g.runtimes))
	for _, r := range g.runtimes {
		out = append(out, r.Stats())
	}
	return out
}

// Healthy reports whether every runtime is healthy.
func (g *Group) Healthy() bool {
	for _, r := range g.runtimes {
		if !r.IsHealthy() {
			return false
		}
	}
	return true
}
