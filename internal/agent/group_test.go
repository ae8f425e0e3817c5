package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/bus"
)

func TestGroup_StartAndShutdown(t *testing.T) {
	b := bus.New()
	idle := PolicyFunc(func(context.Context, Mailbox) error { return nil })

	g := NewGroup(b, nil,
		New(fastConfig("one"), b, idle),
		New(fastConfig("two"), b, idle),
	)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := g.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	waitFor(t, func() bool {
		for _, s := range g.Stats() {
			if s.Cycles == 0 {
				return false
			}
		}
		return true
	})
	if !g.Healthy() {
		t.Error("Healthy() = false with every agent cycling")
	}

	b.Send(bus.Message{Payload: bus.SimulatedMotion{}}, time.Second)

	if err := g.Shutdown(0); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	for _, r := range g.Runtimes() {
		if r.Status() != StatusStopped {
			t.Errorf("%s Status() = %q, want stopped", r.Name(), r.Status())
		}
	}
	if !b.IsEmpty() {
		t.Error("bus not cleared after shutdown")
	}
}

func TestGroup_ShutdownReportsStuckAgent(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the minimum grace period")
	}

	b := bus.New()
	release := make(chan struct{})
	defer close(release)

	stuck := PolicyFunc(func(context.Context, Mailbox) error {
		<-release
		return nil
	})

	g := NewGroup(b, nil, New(fastConfig("stuck"), b, stuck))
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	err := g.Shutdown(10 * time.Millisecond)
	if !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("Shutdown() error = %v, want ErrShutdownTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < MinShutdownGrace {
		t.Errorf("Shutdown() waited %v, want at least %v", elapsed, MinShutdownGrace)
	}
}

func TestGroup_StartFailureCancelsStarted(t *testing.T) {
	b := bus.New()
	ok := New(fastConfig("ok"), b, PolicyFunc(func(context.Context, Mailbox) error { return nil }))
	bad := New(fastConfig("bad"), b, &hookPolicy{startErr: errors.New("boom")})

	g := NewGroup(b, nil, ok, bad)
	if err := g.Start(context.Background()); !errors.Is(err, ErrStartHook) {
		t.Fatalf("Start() error = %v, want ErrStartHook", err)
	}

	select {
	case <-ok.Done():
	case <-time.After(time.Second):
		t.Fatal("already-started agent was not cancelled")
	}
}
