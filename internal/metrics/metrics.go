// Package metrics exposes the bus, the agents and the home state to
// Prometheus. Values are read on each scrape; nothing is cached here.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

const namespace = "graylogic"

// BusSource provides bus counters.
type BusSource interface {
	Stats() bus.Stats
}

// AgentSource provides per-agent statistics.
type AgentSource interface {
	Stats() []agent.Stats
}

// StateSource provides the home state.
type StateSource interface {
	Snapshot() state.Snapshot
}

var (
	busMessagesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "bus", "messages_total"),
		"Messages seen by the bus, by outcome.",
		[]string{"outcome"}, nil,
	)
	busQueuedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "bus", "queued_messages"),
		"Messages currently queued on the bus.",
		nil, nil,
	)
	agentCyclesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "cycles_total"),
		"Completed agent cycles.",
		[]string{"agent"}, nil,
	)
	agentErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "errors_total"),
		"Failed agent cycles.",
		[]string{"agent"}, nil,
	)
	agentMessagesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "messages_total"),
		"Messages sent or received by an agent.",
		[]string{"agent", "direction"}, nil,
	)
	agentBusyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "busy_seconds_total"),
		"Time spent inside agent cycles.",
		[]string{"agent"}, nil,
	)
	agentHealthyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "healthy"),
		"1 when the agent completed a cycle within its health window.",
		[]string{"agent"}, nil,
	)
	temperatureDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "home", "temperature_celsius"),
		"Simulated indoor temperature.",
		nil, nil,
	)
	flagDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "home", "flag"),
		"Boolean home state fields, 1 when set.",
		[]string{"field"}, nil,
	)
)

// Collector reads its sources on every scrape. Nil sources are skipped.
type Collector struct {
	bus    BusSource
	agents AgentSource
	state  StateSource
}

// NewCollector creates a Collector.
func NewCollector(b BusSource, agents AgentSource, st StateSource) *Collector {
	return &Collector{bus: b, agents: agents, state: st}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		busMessagesDesc, busQueuedDesc,
		agentCyclesDesc, agentErrorsDesc, agentMessagesDesc, agentBusyDesc, agentHealthyDesc,
		temperatureDesc, flagDesc,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.bus != nil {
		s := c.bus.Stats()
		for outcome, v := range map[string]uint64{
			"sent":          s.Sent,
			"received":      s.Received,
			"lost":          s.Lost,
			"high_priority": s.HighPriority,
			"evicted":       s.Evicted,
		} {
			ch <- prometheus.MustNewConstMetric(busMessagesDesc, prometheus.CounterValue, float64(v), outcome)
		}
		ch <- prometheus.MustNewConstMetric(busQueuedDesc, prometheus.GaugeValue, float64(s.Queued))
	}

	if c.agents != nil {
		for _, s := range c.agents.Stats() {
			ch <- prometheus.MustNewConstMetric(agentCyclesDesc, prometheus.CounterValue, float64(s.Cycles), s.Name)
			ch <- prometheus.MustNewConstMetric(agentErrorsDesc, prometheus.CounterValue, float64(s.Errors), s.Name)
			ch <- prometheus.MustNewConstMetric(agentMessagesDesc, prometheus.CounterValue, float64(s.MessagesSent), s.Name, "sent")
			ch <- prometheus.MustNewConstMetric(agentMessagesDesc, prometheus.CounterValue, float64(s.MessagesReceived), s.Name, "received")
			ch <- prometheus.MustNewConstMetric(agentBusyDesc, prometheus.CounterValue, s.BusyTime.Seconds(), s.Name)
			ch <- prometheus.MustNewConstMetric(agentHealthyDesc, prometheus.GaugeValue, boolValue(s.Healthy), s.Name)
		}
	}

	if c.state != nil {
		snap := c.state.Snapshot()
		ch <- prometheus.MustNewConstMetric(temperatureDesc, prometheus.GaugeValue, snap.Temperature)
		for field, v := range map[state.Field]bool{
			state.FieldIsNight:          snap.IsNight,
			state.FieldPresenceExpected: snap.PresenceExpected,
			state.FieldMotionDetected:   snap.MotionDetected,
			state.FieldHeatingOn:        snap.HeatingOn,
			state.FieldFanOn:            snap.FanOn,
			state.FieldLightsOn:         snap.LightsOn,
			state.FieldSecurityAlert:    snap.SecurityAlert,
		} {
			ch <- prometheus.MustNewConstMetric(flagDesc, prometheus.GaugeValue, boolValue(v), string(field))
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Registry bundles the collector, HTTP request metrics and the Go runtime
// collectors in a private prometheus.Registry.
type Registry struct {
	reg             *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRegistry registers c alongside the process and Go collectors.
func NewRegistry(c *Collector) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	r.reg.MustRegister(
		c,
		r.requestsTotal,
		r.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, d time.Duration) {
	r.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
