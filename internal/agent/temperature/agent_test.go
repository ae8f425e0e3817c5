package temperature

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// fakeMailbox serves queued messages and records sends.
type fakeMailbox struct {
	inbox []bus.Message
	sent  []bus.Payload
}

func (m *fakeMailbox) Send(p bus.Payload) bool {
	m.sent = append(m.sent, p)
	return true
}

func (m *fakeMailbox) ReceiveAll() []bus.Message {
	msgs := m.inbox
	m.inbox = nil
	return msgs
}

// noDrift makes the random perturbation zero.
func noDrift() float64 { return 0.5 }

func newTestPolicy(t *testing.T, temp float64, heating, fan bool) (*Policy, *state.Store) {
	t.Helper()
	st := state.New()
	if err := st.SetFloat(state.FieldTemperature, temp); err != nil {
		t.Fatal(err)
	}
	if err := st.SetBool(state.FieldHeatingOn, heating); err != nil {
		t.Fatal(err)
	}
	if err := st.SetBool(state.FieldFanOn, fan); err != nil {
		t.Fatal(err)
	}
	return NewPolicy(DefaultConfig(), st, nil, WithRand(noDrift)), st
}

func countEvents(events []string, substr string) int {
	n := 0
	for _, e := range events {
		if strings.Contains(e, substr) {
			n++
		}
	}
	return n
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCycle_LowTemperatureTurnsHeatingOn(t *testing.T) {
	p, st := newTestPolicy(t, 19.0, false, false)

	if err := p.Cycle(context.Background(), &fakeMailbox{}); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	snap := st.Snapshot()
	if !snap.HeatingOn {
		t.Error("HeatingOn = false, want true")
	}
	if n := countEvents(snap.Events, "calefacción activada"); n != 1 {
		t.Errorf("found %d heating events, want exactly 1: %v", n, snap.Events)
	}
	if want := 19.0 + 0.08*effectFactor; !approxEqual(snap.Temperature, want) {
		t.Errorf("Temperature = %v, want %v", snap.Temperature, want)
	}
}

func TestCycle_HighTemperatureTurnsFanOn(t *testing.T) {
	p, st := newTestPolicy(t, 27.0, false, false)

	if err := p.Cycle(context.Background(), &fakeMailbox{}); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	snap := st.Snapshot()
	if !snap.FanOn {
		t.Error("FanOn = false, want true")
	}
	if snap.HeatingOn {
		t.Error("HeatingOn = true, want false")
	}
	if n := countEvents(snap.Events, "ventilador activado"); n != 1 {
		t.Errorf("found %d fan events, want 1: %v", n, snap.Events)
	}
}

func TestCycle_OptimalTurnsBothOff(t *testing.T) {
	p, st := newTestPolicy(t, 22.0, true, true)

	if err := p.Cycle(context.Background(), &fakeMailbox{}); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	snap := st.Snapshot()
	if snap.HeatingOn || snap.FanOn {
		t.Errorf("HeatingOn=%v FanOn=%v, want both off", snap.HeatingOn, snap.FanOn)
	}
	if len(snap.Events) != 2 {
		t.Errorf("len(Events) = %d, want 2: %v", len(snap.Events), snap.Events)
	}
	if !approxEqual(snap.Temperature, 22.0) {
		t.Errorf("Temperature = %v, want 22.0", snap.Temperature)
	}
}

func TestCycle_HysteresisBandKeepsState(t *testing.T) {
	// Between Low and OptimalMin heating stays on.
	p, st := newTestPolicy(t, 20.0, true, false)

	if err := p.Cycle(context.Background(), &fakeMailbox{}); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	snap := st.Snapshot()
	if !snap.HeatingOn {
		t.Error("HeatingOn = false inside the hysteresis band")
	}
	if len(snap.Events) != 0 {
		t.Errorf("Events = %v, want none", snap.Events)
	}
}

func TestCycle_Commands(t *testing.T) {
	tests := []struct {
		name        string
		msg         bus.Message
		wantHeating bool
		wantFan     bool
		wantEvent   string
	}{
		{
			name:      "fan on",
			msg:       bus.Message{Payload: bus.Command{Target: bus.TargetTemperature, Action: bus.ActionFanOn}},
			wantFan:   true,
			wantEvent: "Comando ejecutado: activar_ventilador",
		},
		{
			name:        "heating on",
			msg:         bus.Message{Payload: bus.Command{Target: bus.TargetTemperature, Action: bus.ActionHeatingOn}},
			wantHeating: true,
			wantEvent:   "Comando ejecutado: activar_calefaccion",
		},
		{
			name: "other target ignored",
			msg:  bus.Message{Payload: bus.Command{Target: bus.TargetLighting, Action: bus.ActionLightsOn}},
		},
		{
			name: "motion ignored",
			msg:  bus.Message{Payload: bus.Motion{Detected: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, st := newTestPolicy(t, 22.0, false, false)
			mb := &fakeMailbox{inbox: []bus.Message{tt.msg}}

			if err := p.Cycle(context.Background(), mb); err != nil {
				t.Fatalf("Cycle() error = %v", err)
			}

			snap := st.Snapshot()
			if snap.HeatingOn != tt.wantHeating || snap.FanOn != tt.wantFan {
				t.Errorf("HeatingOn=%v FanOn=%v, want %v %v", snap.HeatingOn, snap.FanOn, tt.wantHeating, tt.wantFan)
			}
			if tt.wantEvent != "" && countEvents(snap.Events, tt.wantEvent) != 1 {
				t.Errorf("Events = %v, want one %q", snap.Events, tt.wantEvent)
			}
			if tt.wantEvent == "" && len(snap.Events) != 0 {
				t.Errorf("Events = %v, want none", snap.Events)
			}
		})
	}
}

func TestCycle_BothActuatorsApplyCumulatively(t *testing.T) {
	// 20.0 is in the hysteresis band, so regulation leaves both on.
	p, st := newTestPolicy(t, 20.0, true, true)

	if err := p.Cycle(context.Background(), &fakeMailbox{}); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	want := 20.0 + (0.08-0.10)*effectFactor
	if got := st.Snapshot().Temperature; !approxEqual(got, want) {
		t.Errorf("Temperature = %v, want %v", got, want)
	}
}

func TestDrift_Bounds(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		r    float64
		want float64
	}{
		{0, -cfg.Variation},
		{0.5, 0},
		{0.75, cfg.Variation / 2},
	}
	for _, tt := range tests {
		p := NewPolicy(cfg, state.New(), nil, WithRand(func() float64 { return tt.r }))
		if got := p.drift(); !approxEqual(got, tt.want) {
			t.Errorf("drift() with r=%v = %v, want %v", tt.r, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"low above optimal", func(c *Config) { c.Low = 21 }, true},
		{"optimal inverted", func(c *Config) { c.OptimalMin = 25; c.High = 30 }, true},
		{"optimal above high", func(c *Config) { c.OptimalMax = 26 }, true},
		{"negative power", func(c *Config) { c.HeatingPower = -1 }, true},
		{"negative variation", func(c *Config) { c.Variation = -0.1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
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
