package bus

import (
	"container/heap"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Defaults for a new Bus.
const (
	// DefaultCapacity is the queue length at which eviction sweeps start.
	DefaultCapacity = 100

	// DefaultMaxAge is the age past which normal-priority messages may be evicted.
	DefaultMaxAge = 2 * time.Second
)

// Logger defines the logging interface used by the Bus.
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

// Stats is a point-in-time copy of the bus counters.
type Stats struct {
	Sent         uint64 `json:"mensajes_enviados"`
	Received     uint64 `json:"mensajes_recibidos"`
	Lost         uint64 `json:"mensajes_perdidos"`
	HighPriority uint64 `json:"mensajes_alta_prioridad"`
	Evicted      uint64 `json:"mensajes_descartados"`
	Queued       int    `json:"en_cola"`
}

// Option configures a Bus.
type Option func(*Bus)

// WithCapacity sets the eviction threshold. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithMaxAge sets the age past which normal-priority messages may be evicted.
func WithMaxAge(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.maxAge = d
		}
	}
}

// WithClock overrides the clock used for enqueue times and eviction.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger used to report lost messages.
func WithLogger(l Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// entry is a queued message with its ordering keys.
type entry struct {
	msg      Message
	priority Priority
	enqueued time.Time
	seq      uint64
}

// queue implements heap.Interface ordered by (-priority, enqueued, seq).
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if !a.enqueued.Equal(b.enqueued) {
		return a.enqueued.Before(b.enqueued)
	}
	return a.seq < b.seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(*entry)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Bus is a bounded, priority-ordered mailbox shared by every agent.
//
// Thread Safety: all methods are safe for concurrent use. The queue is guarded
// by a one-slot semaphore so that Send can bound its wait for the lock.
type Bus struct {
	lock chan struct{}

	// Guarded by lock.
	queue    queue
	seq      uint64
	sent     uint64
	received uint64
	high     uint64
	evicted  uint64
	wake     chan struct{}

	// lost is updated without the lock: a lock timeout is itself a loss.
	lost atomic.Uint64

	capacity int
	maxAge   time.Duration
	now      func() time.Time
	logger   Logger
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		lock:     make(chan struct{}, 1),
		queue:    make(queue, 0, DefaultCapacity),
		wake:     make(chan struct{}),
		capacity: DefaultCapacity,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Capacity returns the eviction threshold.
func (b *Bus) Capacity() int {
	return b.capacity
}

// acquire takes the queue lock, waiting at most timeout.
// A non-positive timeout makes a single non-blocking attempt.
func (b *Bus) acquire(timeout time.Duration) bool {
	select {
	case b.lock <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b.lock <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// lockQueue takes the queue lock without a deadline.
// Critical sections are short, so this never waits long.
func (b *Bus) lockQueue() {
	b.lock <- struct{}{}
}

func (b *Bus) unlock() {
	<-b.lock
}

// Send enqueues a copy of msg.
//
// The effective priority is computed with EffectivePriority and stored on the
// queued copy. An empty ID is replaced by a fresh UUID. timeout bounds only
// the wait for the queue lock.
//
// Returns true when the message was queued. False means the message was lost:
// the lock was not acquired in time, the message had no payload, or an
// internal fault was recovered.
//
// Priority does not bypass the lock wait. Under contention even a critical
// message is dropped once timeout (agent.Config.UrgentSendTimeout for agent
// runtimes) expires, so callers such as console.Service.ResetAlert must check
// the result before acting as if the message was delivered.
func (b *Bus) Send(msg Message, timeout time.Duration) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.lose(msg, fmt.Errorf("%w: recovered: %v", ErrMessageLost, r))
			ok = false
		}
	}()

	if msg.Payload == nil {
		b.lose(msg, ErrNoPayload)
		return false
	}

	if !b.acquire(timeout) {
		b.lose(msg, ErrLockTimeout)
		return false
	}
	defer b.unlock()

	msg.Priority = EffectivePriority(msg)
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	now := b.now()
	if len(b.queue) >= b.capacity {
		b.evictLocked(now)
	}

	b.seq++
	heap.Push(&b.queue, &entry{
		msg:      msg,
		priority: msg.Priority,
		enqueued: now,
		seq:      b.seq,
	})

	b.sent++
	if msg.Priority > PriorityNormal {
		b.high++
	}

	// Wake every waiting receiver.
	close(b.wake)
	b.wake = make(chan struct{})

	return true
}

// lose counts and logs a lost message.
func (b *Bus) lose(msg Message, err error) {
	b.lost.Add(1)
	b.logger.Warn("bus message lost",
		"kind", string(msg.Kind()),
		"from", msg.From,
		"error", err,
	)
}

// evictLocked drops normal-priority messages older than maxAge and rebuilds
// the heap. Caller must hold the lock.
func (b *Bus) evictLocked(now time.Time) {
	kept := make(queue, 0, len(b.queue))
	for _, e := range b.queue {
		if now.Sub(e.enqueued) < b.maxAge || e.priority > PriorityNormal {
			kept = append(kept, e)
		}
	}

	dropped := len(b.queue) - len(kept)
	if dropped == 0 {
		return
	}

	b.evicted += uint64(dropped)
	b.queue = kept
	heap.Init(&b.queue)
	b.logger.Debug("bus eviction sweep", "evicted", dropped, "remaining", len(kept))
}

// Receive returns the highest-priority message, waiting up to timeout for one
// to arrive. It returns false when the timeout elapses or ctx is done first.
// A message enqueued before the deadline is always observed.
func (b *Bus) Receive(ctx context.Context, timeout time.Duration) (msg Message, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus receive fault", "panic", fmt.Sprint(r))
			msg, ok = Message{}, false
		}
	}()

	if m, found, _ := b.tryPop(); found || timeout <= 0 {
		return m, found
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		m, found, wake := b.tryPop()
		if found {
			return m, true
		}

		select {
		case <-wake:
		case <-deadline.C:
			m, found, _ := b.tryPop()
			return m, found
		case <-ctx.Done():
			return Message{}, false
		}
	}
}

// tryPop pops the head of the queue if there is one. When the queue is empty
// it returns the wake channel that the next Send will close.
func (b *Bus) tryPop() (Message, bool, <-chan struct{}) {
	b.lockQueue()
	defer b.unlock()

	if len(b.queue) == 0 {
		return Message{}, false, b.wake
	}
	e := heap.Pop(&b.queue).(*entry)
	b.received++
	return e.msg, true, nil
}

// DrainAll removes and returns every queued message, highest priority first.
// It never blocks on an empty queue.
func (b *Bus) DrainAll() []Message {
	b.lockQueue()
	defer b.unlock()

	if len(b.queue) == 0 {
		return nil
	}
	out := make([]Message, 0, len(b.queue))
	for len(b.queue) > 0 {
		e := heap.Pop(&b.queue).(*entry)
		out = append(out, e.msg)
	}
	b.received += uint64(len(out))
	return out
}

// Clear discards every queued message without counting them as received.
func (b *Bus) Clear() {
	b.lockQueue()
	b.queue = make(queue, 0, b.capacity)
	b.unlock()
}

// IsEmpty reports whether no message is queued.
func (b *Bus) IsEmpty() bool {
	return b.Len() == 0
}

// Len returns the number of queued messages.
func (b *Bus) Len() int {
	b.lockQueue()
	defer b.unlock()
	return len(b.queue)
}

// Stats returns a copy of the bus counters.
func (b *Bus) Stats() Stats {
	b.lockQueue()
	defer b.unlock()
	return Stats{
		Sent:         b.sent,
		Received:     b.received,
		Lost:         b.lost.Load(),
		HighPriority: b.high,
		Evicted:      b.evicted,
		Queued:       len(b.queue),
	}
}
