package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// busMailbox adapts a real Bus for tests that depend on delivery order.
type busMailbox struct {
	b    *bus.Bus
	sent []bus.Payload
}

func (m *busMailbox) Send(p bus.Payload) bool {
	m.sent = append(m.sent, p)
	return m.b.Send(bus.Message{From: Name, Payload: p}, time.Second)
}

func (m *busMailbox) ReceiveAll() []bus.Message {
	return m.b.DrainAll()
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func never() float64  { return 0.99 }
func always() float64 { return 0 }

func newPolicy(t *testing.T, presence, night bool, clock *testClock) (*Policy, *state.Store) {
	t.Helper()
	st := state.New()
	if err := st.SetBool(state.FieldPresenceExpected, presence); err != nil {
		t.Fatal(err)
	}
	if err := st.SetBool(state.FieldIsNight, night); err != nil {
		t.Fatal(err)
	}
	return NewPolicy(DefaultConfig(), st, nil, WithClock(clock.Now), WithRand(never)), st
}

func alertOn(t *testing.T, st *state.Store) bool {
	t.Helper()
	on, err := st.Bool(state.FieldSecurityAlert)
	if err != nil {
		t.Fatal(err)
	}
	return on
}

func newClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)}
}

func sendAll(t *testing.T, b *bus.Bus, payloads ...bus.Payload) {
	t.Helper()
	for _, p := range payloads {
		if !b.Send(bus.Message{From: "test", Payload: p}, time.Second) {
			t.Fatalf("Send(%T) failed", p)
		}
	}
}

func TestCycle_MotionWithoutPresenceRaisesAlert(t *testing.T) {
	clock := newClock()
	p, st := newPolicy(t, false, false, clock)
	b := bus.New()
	mb := &busMailbox{b: b}

	sendAll(t, b, bus.Motion{Detected: true})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	if !alertOn(t, st) {
		t.Fatal("alert not raised")
	}
	var gotLights, gotAlert bool
	for _, pl := range mb.sent {
		switch v := pl.(type) {
		case bus.Command:
			gotLights = v.Target == bus.TargetLighting && v.Action == bus.ActionLightsOn
		case bus.Alert:
			gotAlert = true
		}
	}
	if !gotLights || !gotAlert {
		t.Errorf("sent %v, want an alert and a lights-on command", mb.sent)
	}
}

func TestCycle_MotionWithPresenceIgnored(t *testing.T) {
	p, st := newPolicy(t, true, false, newClock())
	b := bus.New()

	sendAll(t, b, bus.Motion{Detected: true})
	if err := p.Cycle(context.Background(), &busMailbox{b: b}); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if alertOn(t, st) {
		t.Error("alert raised with presence expected")
	}
}

func TestCycle_AlertCooldown(t *testing.T) {
	clock := newClock()
	p, st := newPolicy(t, false, false, clock)
	b := bus.New()
	mb := &busMailbox{b: b}

	sendAll(t, b, bus.Motion{Detected: true})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}
	b.Clear()

	// Clear the flag without resetting the cooldown.
	if err := st.SetBool(state.FieldSecurityAlert, false); err != nil {
		t.Fatal(err)
	}

	clock.Advance(3 * time.Second)
	sendAll(t, b, bus.Motion{Detected: true})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}
	if alertOn(t, st) {
		t.Error("alert raised again inside the cooldown")
	}

	clock.Advance(3 * time.Second)
	sendAll(t, b, bus.Motion{Detected: true})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}
	if !alertOn(t, st) {
		t.Error("alert not raised after the cooldown")
	}
}

// Motion is queued before the reset, but the reset is critical priority and
// drains first. It clears the cooldown, so the motion then raises a fresh
// alert. Processing in send order would have left the alert cleared.
func TestCycle_ResetHandledBeforeMotion(t *testing.T) {
	clock := newClock()
	p, st := newPolicy(t, false, false, clock)
	b := bus.New()
	mb := &busMailbox{b: b}

	sendAll(t, b, bus.Motion{Detected: true})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}
	b.Clear()
	clock.Advance(time.Second)

	sendAll(t, b,
		bus.Motion{Detected: true},
		bus.Command{Target: bus.TargetSecurity, Action: bus.ActionResetAlert},
	)
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}

	events := st.Events()
	if len(events) < 2 {
		t.Fatalf("Events = %v, want at least two", events)
	}
	if !strings.Contains(events[0], "ALERTA") || !strings.Contains(events[1], "reiniciada") {
		t.Errorf("Events = %v, want reset followed by a fresh alert", events[:2])
	}
	if !alertOn(t, st) {
		t.Error("alert not re-raised by motion evaluated after the reset")
	}
}

func TestCycle_ResetIsIdempotent(t *testing.T) {
	p, st := newPolicy(t, false, false, newClock())
	b := bus.New()
	mb := &busMailbox{b: b}

	sendAll(t, b, bus.Motion{Detected: true})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}
	b.Clear()

	sendAll(t, b, bus.AlertReset{}, bus.Command{Target: bus.TargetSecurity, Action: bus.ActionResetAlert})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}

	if alertOn(t, st) {
		t.Error("alert still on after two resets")
	}
	if !p.lastAlert.IsZero() {
		t.Error("cooldown not cleared by reset")
	}
}

func TestCycle_SimulatedMotionAtNightRequestsLights(t *testing.T) {
	p, st := newPolicy(t, true, true, newClock())
	b := bus.New()
	mb := &busMailbox{b: b}

	sendAll(t, b, bus.SimulatedMotion{})
	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}

	kinds := map[bus.Kind]bool{}
	for _, pl := range mb.sent {
		kinds[pl.Kind()] = true
	}
	if !kinds[bus.KindMotion] || !kinds[bus.KindCommand] {
		t.Errorf("sent %v, want motion and a lights command", mb.sent)
	}
	if motion, _ := st.Bool(state.FieldMotionDetected); !motion {
		t.Error("MotionDetected = false after simulated motion")
	}
}

func TestCycle_RandomSensorTrigger(t *testing.T) {
	st := state.New()
	p := NewPolicy(DefaultConfig(), st, nil, WithClock(newClock().Now), WithRand(always))
	mb := &busMailbox{b: bus.New()}

	if err := p.Cycle(context.Background(), mb); err != nil {
		t.Fatal(err)
	}
	if len(mb.sent) != 1 || mb.sent[0].Kind() != bus.KindMotion {
		t.Errorf("sent %v, want a single motion report during the day", mb.sent)
	}
}

func TestOnStop_ClearsAlert(t *testing.T) {
	p, st := newPolicy(t, false, false, newClock())
	if err := st.SetBool(state.FieldSecurityAlert, true); err != nil {
		t.Fatal(err)
	}

	p.OnStop(&busMailbox{b: bus.New()})

	if alertOn(t, st) {
		t.Error("alert still on after stop")
	}
}

func TestNewAgent_AppliesTimings(t *testing.T) {
	cfg := DefaultConfig()
	r := NewAgent(bus.New(), state.New(), cfg, agent.Timings{ErrorCooldown: 2 * time.Second}, nil)

	got := r.Config()
	if got.Name != Name {
		t.Errorf("Name = %q, want %q", got.Name, Name)
	}
	if got.Interval != cfg.Interval {
		t.Errorf("Interval = %v, want %v", got.Interval, cfg.Interval)
	}
	if got.ErrorCooldown != 2*time.Second {
		t.Errorf("ErrorCooldown = %v, want 2s", got.ErrorCooldown)
	}
}
