package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/console"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-agents/internal/journal"
	"github.com/nerrad567/gray-logic-agents/internal/metrics"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

type fakeAgents struct {
	stats   []agent.Stats
	healthy bool
}

func (f *fakeAgents) Stats() []agent.Stats { return f.stats }
func (f *fakeAgents) Healthy() bool        { return f.healthy }

type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	filter  journal.Filter
	err     error
}

func (f *fakeJournal) Record(_ context.Context, e *journal.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeJournal) List(_ context.Context, filter journal.Filter) (*journal.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return &journal.ListResult{Entries: f.entries, Total: len(f.entries), Limit: filter.Limit}, nil
}

// busyConsole fails every bus send.
type busyConsole struct {
	*console.Service
}

func (busyConsole) SimulateMotion(context.Context, string) error { return console.ErrSendFailed }

type testEnv struct {
	srv     *Server
	store   *state.Store
	bus     *bus.Bus
	journal *fakeJournal
	agents  *fakeAgents
}

func testDeps(env *testEnv) Deps {
	env.store = state.New()
	env.bus = bus.New()
	env.journal = &fakeJournal{}
	env.agents = &fakeAgents{
		stats:   []agent.Stats{{Name: "temperature", Status: agent.StatusRunning, Healthy: true}},
		healthy: true,
	}
	svc := console.New(env.store, env.bus, console.WithJournal(env.journal))

	return Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			PushInterval:   10 * time.Millisecond,
		},
		Logger:  logging.Discard(),
		Console: svc,
		Agents:  env.agents,
		Journal: env.journal,
		Version: "test",
	}
}

// testServer creates a Server over a fresh store and bus.
func testServer(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{}
	deps := testDeps(env)
	for _, m := range mutate {
		m(&deps)
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	env.srv = srv
	return env
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Console: console.New(state.New(), bus.New())}); err == nil {
		t.Error("New() without logger: expected error")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without console: expected error")
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != "ok" || resp.Version != "test" || !resp.AgentsHealthy {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_Degraded(t *testing.T) {
	tests := []struct {
		name          string
		agentsHealthy bool
		checkErr      error
		wantComponent string
	}{
		{name: "unhealthy agent", agentsHealthy: false, wantComponent: "ok"},
		{name: "dependency down", agentsHealthy: true, checkErr: errors.New("redis: connection refused"), wantComponent: "redis: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t, func(d *Deps) {
				d.Checks = map[string]HealthCheckFunc{
					"redis": func(context.Context) error { return tt.checkErr },
				}
			})
			env.agents.healthy = tt.agentsHealthy

			w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/health", "")
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", w.Code)
			}
			var resp HealthResponse
			decode(t, w, &resp)
			if resp.Status != "degraded" {
				t.Errorf("Status = %q, want degraded", resp.Status)
			}
			if resp.Components["redis"] != tt.wantComponent {
				t.Errorf("redis component = %q, want %q", resp.Components["redis"], tt.wantComponent)
			}
		})
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	env := testServer(t)
	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/presence/toggle", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
	if env.store.Snapshot().PresenceExpected != true {
		t.Error("preflight toggled presence")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)
	if w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRecovery(t *testing.T) {
	env := testServer(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	if w := do(t, h, http.MethodGet, "/", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Security.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	})
	h := env.srv.Handler()

	for i := 0; i < 2; i++ {
		if w := do(t, h, http.MethodPost, "/api/v1/night/toggle", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
	w := do(t, h, http.MethodPost, "/api/v1/night/toggle", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Reads are not limited.
	if w := do(t, h, http.MethodGet, "/api/v1/state", ""); w.Code != http.StatusOK {
		t.Errorf("GET /state status = %d, want 200", w.Code)
	}
}

// ─── Console Endpoint Tests ────────────────────────────────────────

func TestGetState(t *testing.T) {
	env := testServer(t)
	if err := env.store.SetBool(state.FieldLightsOn, true); err != nil {
		t.Fatal(err)
	}

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap state.Snapshot
	decode(t, w, &snap)
	if !snap.LightsOn || snap.Temperature != 22 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestOperatorActions(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		wantStatus  int
		wantJournal string
		check       func(t *testing.T, env *testEnv)
	}{
		{
			name:        "toggle presence",
			method:      http.MethodPost,
			path:        "/api/v1/presence/toggle",
			wantStatus:  http.StatusOK,
			wantJournal: "toggle_presence",
			check: func(t *testing.T, env *testEnv) {
				if env.store.Snapshot().PresenceExpected {
					t.Error("presence still expected")
				}
			},
		},
		{
			name:        "toggle night",
			method:      http.MethodPost,
			path:        "/api/v1/night/toggle",
			wantStatus:  http.StatusOK,
			wantJournal: "toggle_night",
			check: func(t *testing.T, env *testEnv) {
				if snap := env.store.Snapshot(); !snap.IsNight || !snap.LightsOn {
					t.Errorf("after dusk with presence: %+v", snap)
				}
			},
		},
		{
			name:        "adjust temperature",
			method:      http.MethodPost,
			path:        "/api/v1/temperature/adjust",
			body:        `{"delta": -1.5}`,
			wantStatus:  http.StatusOK,
			wantJournal: "adjust_temperature",
			check: func(t *testing.T, env *testEnv) {
				if got := env.store.Snapshot().Temperature; got != 20.5 {
					t.Errorf("Temperature = %v, want 20.5", got)
				}
			},
		},
		{
			name:        "simulate motion",
			method:      http.MethodPost,
			path:        "/api/v1/security/motion",
			wantStatus:  http.StatusAccepted,
			wantJournal: "simulate_motion",
			check: func(t *testing.T, env *testEnv) {
				if env.bus.Len() != 1 {
					t.Errorf("bus holds %d messages, want 1", env.bus.Len())
				}
			},
		},
		{
			name:        "reset alert",
			method:      http.MethodPost,
			path:        "/api/v1/security/reset",
			wantStatus:  http.StatusAccepted,
			wantJournal: "reset_alert",
		},
		{
			name:        "send command",
			method:      http.MethodPost,
			path:        "/api/v1/commands",
			body:        `{"target":"iluminacion","action":"activar_luces"}`,
			wantStatus:  http.StatusAccepted,
			wantJournal: "command",
		},
		{
			name:        "clear events",
			method:      http.MethodDelete,
			path:        "/api/v1/events",
			wantStatus:  http.StatusNoContent,
			wantJournal: "clear_log",
			check: func(t *testing.T, env *testEnv) {
				if n := len(env.store.Events()); n != 0 {
					t.Errorf("%d events left", n)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.store.LogEvent("before")

			w := do(t, env.srv.Handler(), tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if len(env.journal.entries) != 1 || env.journal.entries[0].Action != tt.wantJournal {
				t.Errorf("journal = %+v, want one %q", env.journal.entries, tt.wantJournal)
			}
			if env.journal.entries[0].Source != journal.SourceAPI {
				t.Errorf("Source = %q, want api", env.journal.entries[0].Source)
			}
			if tt.check != nil {
				tt.check(t, env)
			}
		})
	}
}

func TestOperatorActions_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode string
	}{
		{"temperature invalid json", "/api/v1/temperature/adjust", `{`, ErrCodeBadRequest},
		{"temperature missing delta", "/api/v1/temperature/adjust", `{}`, ErrCodeValidation},
		{"command invalid json", "/api/v1/commands", `nope`, ErrCodeBadRequest},
		{"command missing action", "/api/v1/commands", `{"target":"iluminacion"}`, ErrCodeValidation},
		{"command unknown target", "/api/v1/commands", `{"target":"cocina","action":"activar_luces"}`, ErrCodeValidation},
		{"command wrong action", "/api/v1/commands", `{"target":"iluminacion","action":"activar_ventilador"}`, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			w := do(t, env.srv.Handler(), http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var e Error
			decode(t, w, &e)
			if e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
			if env.bus.Len() != 0 {
				t.Error("rejected request reached the bus")
			}
		})
	}
}

func TestSimulateMotion_BusBusy(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Console = busyConsole{d.Console.(*console.Service)}
	})

	w := do(t, env.srv.Handler(), http.MethodPost, "/api/v1/security/motion", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var e Error
	decode(t, w, &e)
	if e.Code != ErrCodeBusBusy {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeBusBusy)
	}
}

// ─── Inspection Endpoint Tests ─────────────────────────────────────

func TestListAgents(t *testing.T) {
	env := testServer(t)

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/agents", "")
	var resp AgentsResponse
	decode(t, w, &resp)
	if len(resp.Agents) != 1 || resp.Agents[0].Name != "temperature" || !resp.Healthy {
		t.Errorf("agents = %+v", resp)
	}
}

func TestListAgents_NoSource(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.Agents = nil })

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/agents", "")
	if !strings.Contains(w.Body.String(), `"agents":[]`) {
		t.Errorf("body = %s, want empty agents list", w.Body.String())
	}
}

func TestBusStats(t *testing.T) {
	env := testServer(t)
	env.bus.Send(bus.Message{From: "test", Payload: bus.Motion{}}, time.Second)

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/bus", "")
	var stats bus.Stats
	decode(t, w, &stats)
	if stats.Sent != 1 || stats.Queued != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestListJournal(t *testing.T) {
	env := testServer(t)
	env.journal.entries = []journal.Entry{{ID: "op-1", Action: "toggle_night", Source: journal.SourceSchedule}}

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/journal?source=schedule&limit=10&offset=x", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if f := env.journal.filter; f.Source != journal.SourceSchedule || f.Limit != 10 || f.Offset != 0 {
		t.Errorf("filter = %+v", f)
	}
	var res journal.ListResult
	decode(t, w, &res)
	if res.Total != 1 || res.Entries[0].ID != "op-1" {
		t.Errorf("result = %+v", res)
	}
}

func TestListJournal_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := testServer(t, func(d *Deps) { d.Journal = nil })
		if w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/journal", ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})
	t.Run("repository error", func(t *testing.T) {
		env := testServer(t)
		env.journal.err = errors.New("disk I/O error")
		if w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/journal", ""); w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
	})
}

func TestSystem(t *testing.T) {
	env := testServer(t)
	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/system", "")
	var m SystemMetrics
	decode(t, w, &m)
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("system = %+v", m)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	env := testServer(t)
	env.srv.metrics = metrics.NewRegistry(metrics.NewCollector(env.bus, env.agents, env.store))
	h := env.srv.Handler()

	do(t, h, http.MethodGet, "/api/v1/state", "")
	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`graylogic_http_requests_total{method="GET",route="/api/v1/state",status="200"} 1`,
		"graylogic_bus_queued_messages",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetrics_NotMountedWithoutRegistry(t *testing.T) {
	env := testServer(t)
	if w := do(t, env.srv.Handler(), http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPanelRoutes(t *testing.T) {
	env := testServer(t)
	h := env.srv.Handler()

	if w := do(t, h, http.MethodGet, "/panel", ""); w.Code != http.StatusMovedPermanently {
		t.Errorf("/panel status = %d, want 301", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/", ""); w.Code != http.StatusFound {
		t.Errorf("/ status = %d, want 302", w.Code)
	}
	w := do(t, h, http.MethodGet, "/panel/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Errorf("/panel/ status = %d", w.Code)
	}
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	port := 19180
	env := testServer(t, func(d *Deps) { d.Config.Port = port })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := env.srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() after Start = %v", err)
	}

	addr := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		if resp, err = http.Get(addr); err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := http.Get(addr); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_HealthCheckNotStarted(t *testing.T) {
	env := testServer(t)
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start: expected error")
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() before Start = %v", err)
	}
}
