// Package metrics provides observability for the simulation server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64
	EventsDropped    int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// HTTP metrics
	HTTPRequests    int64
	HTTPRateLimited int64
	HTTPRejected    int64 // schema validation failures

	// Chain relay metrics
	ChainRequests   int64
	ChainFailures   int64
	ChainLatencySum int64

	// Fleet gauges, refreshed every tick
	DronesTotal     int64
	DronesFlying    int64
	DronesCharging  int64
	MissionsPending int64
	MissionsActive  int64
	MissionsDone    int64
	AgentsOnline    int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// SetEventsDropped mirrors the event log's drop counter.
func (c *Collector) SetEventsDropped(n int64) {
	atomic.StoreInt64(&c.EventsDropped, n)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// RecordHTTP records one API request and whether it was throttled or rejected.
func (c *Collector) RecordHTTP(limited, rejected bool) {
	atomic.AddInt64(&c.HTTPRequests, 1)
	if limited {
		atomic.AddInt64(&c.HTTPRateLimited, 1)
	}
	if rejected {
		atomic.AddInt64(&c.HTTPRejected, 1)
	}
}

// RecordChainCall records a relay round trip.
func (c *Collector) RecordChainCall(latency time.Duration, err error) {
	atomic.AddInt64(&c.ChainRequests, 1)
	atomic.AddInt64(&c.ChainLatencySum, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.ChainFailures, 1)
	}
}

// FleetGauges is the per-tick census of the world.
type FleetGauges struct {
	Drones, Flying, Charging      int
	Pending, Active, Done, Online int
}

// SetFleet overwrites the fleet gauges.
func (c *Collector) SetFleet(g FleetGauges) {
	atomic.StoreInt64(&c.DronesTotal, int64(g.Drones))
	atomic.StoreInt64(&c.DronesFlying, int64(g.Flying))
	atomic.StoreInt64(&c.DronesCharging, int64(g.Charging))
	atomic.StoreInt64(&c.MissionsPending, int64(g.Pending))
	atomic.StoreInt64(&c.MissionsActive, int64(g.Active))
	atomic.StoreInt64(&c.MissionsDone, int64(g.Done))
	atomic.StoreInt64(&c.AgentsOnline, int64(g.Online))
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)
	chainRequests := atomic.LoadInt64(&c.ChainRequests)

	// Calculate averages
	var tickAvg, eventAvg, chainAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}
	if chainRequests > 0 {
		chainAvg = float64(atomic.LoadInt64(&c.ChainLatencySum)) / float64(chainRequests) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
			"dropped":          atomic.LoadInt64(&c.EventsDropped),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},

		"http": map[string]interface{}{
			"requests":     atomic.LoadInt64(&c.HTTPRequests),
			"rate_limited": atomic.LoadInt64(&c.HTTPRateLimited),
			"rejected":     atomic.LoadInt64(&c.HTTPRejected),
		},

		"chain": map[string]interface{}{
			"requests":       chainRequests,
			"failures":       atomic.LoadInt64(&c.ChainFailures),
			"avg_latency_ms": chainAvg,
		},

		"fleet": map[string]interface{}{
			"drones":           atomic.LoadInt64(&c.DronesTotal),
			"drones_flying":    atomic.LoadInt64(&c.DronesFlying),
			"drones_charging":  atomic.LoadInt64(&c.DronesCharging),
			"missions_pending": atomic.LoadInt64(&c.MissionsPending),
			"missions_active":  atomic.LoadInt64(&c.MissionsActive),
			"missions_done":    atomic.LoadInt64(&c.MissionsDone),
			"agents_online":    atomic.LoadInt64(&c.AgentsOnline),
		},
	}
}

// Handler returns an HTTP handler for the /metrics.json endpoint.
// extra, when non-nil, is merged into the body under its own keys.
func Handler(extra func(snapshot map[string]interface{}) map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		if extra != nil {
			for k, v := range extra(snapshot) {
				snapshot[k] = v
			}
		}
		json.NewEncoder(w).Encode(snapshot)
	}
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value interface{}) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(w, "%s %.2f\n\n", name, v)
	default:
		fmt.Fprintf(w, "%s %v\n\n", name, v)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		writeMetric(w, "fleet_tick_count", "counter", "Total tick cycles", atomic.LoadInt64(&c.TickCount))
		writeMetric(w, "fleet_tick_latency_max_ms", "gauge", "Maximum tick latency", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		writeMetric(w, "fleet_events_written", "counter", "Total events written", atomic.LoadInt64(&c.EventsWritten))
		writeMetric(w, "fleet_event_write_errors", "counter", "Total event write errors", atomic.LoadInt64(&c.EventWriteErrors))
		writeMetric(w, "fleet_events_dropped", "counter", "Events dropped by the persistence queue", atomic.LoadInt64(&c.EventsDropped))

		writeMetric(w, "fleet_ws_connections", "gauge", "Active WebSocket connections", atomic.LoadInt64(&c.WSConnectionsActive))
		fmt.Fprintf(w, "# HELP fleet_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE fleet_ws_messages_total counter\n")
		fmt.Fprintf(w, "fleet_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "fleet_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		writeMetric(w, "fleet_http_requests", "counter", "Total API requests", atomic.LoadInt64(&c.HTTPRequests))
		writeMetric(w, "fleet_http_rate_limited", "counter", "API requests rejected with 429", atomic.LoadInt64(&c.HTTPRateLimited))

		writeMetric(w, "fleet_chain_requests", "counter", "Chain relay calls", atomic.LoadInt64(&c.ChainRequests))
		writeMetric(w, "fleet_chain_failures", "counter", "Failed chain relay calls", atomic.LoadInt64(&c.ChainFailures))

		writeMetric(w, "fleet_drones", "gauge", "Registered drones", atomic.LoadInt64(&c.DronesTotal))
		writeMetric(w, "fleet_drones_flying", "gauge", "Drones on a mission", atomic.LoadInt64(&c.DronesFlying))
		writeMetric(w, "fleet_drones_charging", "gauge", "Drones returning or charging", atomic.LoadInt64(&c.DronesCharging))
		writeMetric(w, "fleet_missions_pending", "gauge", "Missions waiting for a drone", atomic.LoadInt64(&c.MissionsPending))
		writeMetric(w, "fleet_missions_active", "gauge", "Missions being flown", atomic.LoadInt64(&c.MissionsActive))
		writeMetric(w, "fleet_missions_completed", "gauge", "Completed missions", atomic.LoadInt64(&c.MissionsDone))
		writeMetric(w, "fleet_agents_online", "gauge", "Agents not offline", atomic.LoadInt64(&c.AgentsOnline))
	}
}
