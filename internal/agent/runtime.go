package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/bus"
)

// Status represents the lifecycle state of a Runtime.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Default timings.
const (
	DefaultInterval          = 10 * time.Millisecond
	DefaultErrorCooldown     = 500 * time.Millisecond
	DefaultHealthWindow      = 5 * time.Second
	DefaultUrgentSendTimeout = 20 * time.Millisecond
	DefaultSendTimeout       = 50 * time.Millisecond
)

// Logger defines the logging interface for agent runtimes and policies.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() Logger {
	return noopLogger{}
}

// Mailbox is a policy's view of the message bus.
type Mailbox interface {
	// Send stamps the sender and send time and enqueues the payload.
	// It reports whether the bus accepted the message.
	Send(p bus.Payload) bool

	// ReceiveAll drains every pending message, highest priority first.
	ReceiveAll() []bus.Message
}

// Policy is the per-agent control logic called once per cycle.
type Policy interface {
	Cycle(ctx context.Context, mb Mailbox) error
}

// Starter is implemented by policies that need set-up before the first cycle.
type Starter interface {
	OnStart(ctx context.Context, mb Mailbox) error
}

// Stopper is implemented by policies that need clean-up after the last cycle.
type Stopper interface {
	OnStop(mb Mailbox)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, mb Mailbox) error

// Cycle calls f(ctx, mb).
func (f PolicyFunc) Cycle(ctx context.Context, mb Mailbox) error {
	return f(ctx, mb)
}

// Config holds the timing of a Runtime.
type Config struct {
	// Name identifies the agent in logs, statistics and message senders.
	Name string

	// Interval is the pause after a successful cycle.
	Interval time.Duration

	// ErrorCooldown is the pause after a failed cycle.
	ErrorCooldown time.Duration

	// HealthWindow is how recently a cycle must have completed for
	// IsHealthy to report true.
	HealthWindow time.Duration

	// UrgentSendTimeout bounds the bus lock wait for high and critical
	// messages. SendTimeout applies to everything else.
	UrgentSendTimeout time.Duration
	SendTimeout       time.Duration
}

// DefaultConfig returns a Config with the default timings.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		Interval:          DefaultInterval,
		ErrorCooldown:     DefaultErrorCooldown,
		HealthWindow:      DefaultHealthWindow,
		UrgentSendTimeout: DefaultUrgentSendTimeout,
		SendTimeout:       DefaultSendTimeout,
	}
}

// Timings are the loop settings shared by every agent of a process.
type Timings struct {
	ErrorCooldown time.Duration
	HealthWindow  time.Duration
}

// Config returns the runtime Config for the named agent ticking at interval.
// Zero values keep the defaults.
func (t Timings) Config(name string, interval time.Duration) Config {
	c := DefaultConfig(name)
	if interval > 0 {
		c.Interval = interval
	}
	if t.ErrorCooldown > 0 {
		c.ErrorCooldown = t.ErrorCooldown
	}
	if t.HealthWindow > 0 {
		c.HealthWindow = t.HealthWindow
	}
	return c
}

// Stats is a copy of a runtime's counters.
type Stats struct {
	Name             string        `json:"name"`
	Status           Status        `json:"status"`
	Cycles           uint64        `json:"ciclos_ejecutados"`
	MessagesSent     uint64        `json:"mensajes_enviados"`
	MessagesReceived uint64        `json:"mensajes_recibidos"`
	Errors           uint64        `json:"errores"`
	BusyTime         time.Duration `json:"tiempo_total_ejecucion"`
	LastCycle        time.Time     `json:"ultimo_ciclo,omitempty"`
	LastError        string        `json:"last_error,omitempty"`
	Healthy          bool          `json:"healthy"`
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime's logger.
func WithLogger(l Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the clock used for statistics and message stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// Runtime drives one Policy on its own goroutine.
//
// Thread Safety: Stats, Status, IsRunning and IsHealthy may be called from
// any goroutine. The Policy is only ever called from the loop goroutine.
type Runtime struct {
	cfg    Config
	policy Policy
	bus    *bus.Bus
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	status    Status
	started   bool
	stats     Stats
	lastCycle time.Time
	lastError error
	done      chan struct{}
}

// New creates a Runtime for policy. Zero timings in cfg take their defaults.
func New(cfg Config, b *bus.Bus, policy Policy, opts ...Option) *Runtime {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = DefaultErrorCooldown
	}
	if cfg.HealthWindow <= 0 {
		cfg.HealthWindow = DefaultHealthWindow
	}
	if cfg.UrgentSendTimeout <= 0 {
		cfg.UrgentSendTimeout = DefaultUrgentSendTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}

	r := &Runtime{
		cfg:    cfg,
		policy: policy,
		bus:    b,
		logger: noopLogger{},
		now:    time.Now,
		status: StatusStopped,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the agent name.
func (r *Runtime) Name() string {
	return r.cfg.Name
}

// Config returns the runtime's effective configuration.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Start runs the policy's OnStart hook, if any, and launches the loop.
// Cancelling ctx stops the loop. A Runtime can be started once.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, r.cfg.Name)
	}
	r.started = true
	r.status = StatusStarting
	r.lastCycle = r.now()
	r.mu.Unlock()

	mb := &mailbox{r: r}

	if s, ok := r.policy.(Starter); ok {
		if err := s.OnStart(ctx, mb); err != nil {
			r.mu.Lock()
			r.status = StatusStopped
			r.lastError = err
			r.mu.Unlock()
			close(r.done)
			return fmt.Errorf("%w: %s: %w", ErrStartHook, r.cfg.Name, err)
		}
	}

	r.logger.Info("agent started", "agent", r.cfg.Name, "interval", r.cfg.Interval)

	go r.loop(ctx, mb)
	return nil
}

// loop is the Running state.
func (r *Runtime) loop(ctx context.Context, mb *mailbox) {
	defer close(r.done)

	loopStart := r.now()
	r.setStatus(StatusRunning)

	for ctx.Err() == nil {
		cycleStart := r.now()
		err := r.runCycle(ctx, mb)

		pause := r.cfg.Interval
		switch {
		case err == nil:
			end := r.now()
			r.mu.Lock()
			r.stats.Cycles++
			r.stats.BusyTime += end.Sub(cycleStart)
			r.lastCycle = end
			r.mu.Unlock()
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			// Cancelled mid-cycle; not a fault.
		default:
			r.mu.Lock()
			r.stats.Errors++
			r.lastError = err
			r.mu.Unlock()
			r.logger.Error("agent cycle failed", "agent", r.cfg.Name, "error", err)
			pause = r.cfg.ErrorCooldown
		}

		if !sleep(ctx, pause) {
			break
		}
	}

	r.setStatus(StatusStopping)
	r.runStopHook(mb)

	total := r.now().Sub(loopStart)
	r.mu.Lock()
	r.stats.BusyTime = total
	r.status = StatusStopped
	r.mu.Unlock()

	r.logger.Info("agent stopped", "agent", r.cfg.Name, "total", total)
}

// runCycle calls the policy, converting a panic into an error.
func (r *Runtime) runCycle(ctx context.Context, mb Mailbox) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, rec)
		}
	}()
	return r.policy.Cycle(ctx, mb)
}

// runStopHook calls the policy's OnStop hook, if any, recovering a panic.
func (r *Runtime) runStopHook(mb Mailbox) {
	s, ok := r.policy.(Stopper)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.mu.Lock()
			r.stats.Errors++
			r.mu.Unlock()
			r.logger.Error("agent stop hook panicked", "agent", r.cfg.Name, "panic", fmt.Sprint(rec))
		}
	}()
	s.OnStop(mb)
}

// sleep pauses for d or until ctx is done. It reports whether the full pause
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runtime) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Status returns the current lifecycle state.
func (r *Runtime) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// IsRunning reports whether the loop is in the running state.
func (r *Runtime) IsRunning() bool {
	return r.Status() == StatusRunning
}

// IsHealthy reports whether a cycle completed within the health window.
// A runtime that was never started is not healthy.
func (r *Runtime) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthyLocked()
}

func (r *Runtime) healthyLocked() bool {
	if !r.started || r.status == StatusStopped {
		return false
	}
	return r.now().Sub(r.lastCycle) < r.cfg.HealthWindow
}

// Stats returns a copy of the runtime's counters.
func (r *Runtime) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.stats
	s.Name = r.cfg.Name
	s.Status = r.status
	s.Healthy = r.healthyLocked()
	if r.stats.Cycles > 0 {
		s.LastCycle = r.lastCycle
	}
	if r.lastError != nil {
		s.LastError = r.lastError.Error()
	}
	return s
}

// Done returns a channel closed when the loop has exited.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the loop exits or ctx is done. It returns immediately for
// a runtime that was never started.
func (r *Runtime) Wait(ctx context.Context) error {
	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if !started {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mailbox is the Mailbox a Runtime hands its policy.
type mailbox struct {
	r *Runtime
}

func (m *mailbox) Send(p bus.Payload) bool {
	r := m.r
	msg := bus.Message{
		From:    r.cfg.Name,
		SentAt:  r.now(),
		Payload: p,
	}

	timeout := r.cfg.SendTimeout
	if bus.EffectivePriority(msg) > bus.PriorityNormal {
		timeout = r.cfg.UrgentSendTimeout
	}

	if !r.bus.Send(msg, timeout) {
		r.logger.Warn("agent send failed", "agent", r.cfg.Name, "kind", string(msg.Kind()))
		return false
	}

	r.mu.Lock()
	r.stats.MessagesSent++
	r.mu.Unlock()
	return true
}

func (m *mailbox) ReceiveAll() (msgs []bus.Message) {
	r := m.r
	defer func() {
		if rec := recover(); rec != nil {
			r.mu.Lock()
			r.stats.Errors++
			r.mu.Unlock()
			r.logger.Error("agent receive failed", "agent", r.cfg.Name, "panic", fmt.Sprint(rec))
			msgs = nil
		}
	}()

	msgs = r.bus.DrainAll()
	if len(msgs) > 0 {
		r.mu.Lock()
		r.stats.MessagesReceived += uint64(len(msgs))
		r.mu.Unlock()
	}
	return msgs
}
