// Package influxdb writes home telemetry to InfluxDB v2.
//
// Points are batched by the client library and flushed on size or
// interval. The point builders in write.go are pure functions so the
// telemetry recorder can be tested without a server.
//
// Measurements:
//   - home_state: temperature and the boolean home fields
//   - bus_stats: bus counters and queue length
//   - agent_stats: per-agent counters, tagged by agent
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint(influxdb.HomeStatePoint(site, store.Snapshot(), time.Now()))
package influxdb
