package telemetry

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/influxdb"
)

// PointWriter queues points for a time-series store.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Sources bundles what the recorder samples. Bus and Agents are optional.
type Sources struct {
	State  StateSource
	Bus    BusSource
	Agents AgentSource
}

// InfluxRecorder writes home, bus and agent points on a fixed interval.
type InfluxRecorder struct {
	writer   PointWriter
	site     string
	sources  Sources
	interval time.Duration
	now      func() time.Time
}

// NewInfluxRecorder creates a recorder tagging every point with site.
func NewInfluxRecorder(writer PointWriter, site string, sources Sources, interval time.Duration) *InfluxRecorder {
	return &InfluxRecorder{
		writer:   writer,
		site:     site,
		sources:  sources,
		interval: interval,
		now:      time.Now,
	}
}

// Run records one sample per interval until ctx is cancelled.
func (r *InfluxRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.record()
		}
	}
}

// record writes one sample. Returns the number of points written.
func (r *InfluxRecorder) record() int {
	at := r.now()
	n := 0

	if r.sources.State != nil {
		r.writer.WritePoint(influxdb.HomeStatePoint(r.site, r.sources.State.Snapshot(), at))
		n++
	}
	if r.sources.Bus != nil {
		r.writer.WritePoint(influxdb.BusStatsPoint(r.site, r.sources.Bus.Stats(), at))
		n++
	}
	if r.sources.Agents != nil {
		for _, s := range r.sources.Agents.Stats() {
			r.writer.WritePoint(influxdb.AgentStatsPoint(r.site, s, at))
			n++
		}
	}
	return n
}
