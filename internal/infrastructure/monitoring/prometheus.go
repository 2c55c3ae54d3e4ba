package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler serves the counters in Prometheus text exposition
// format. Mount it at "/metrics".
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			{"srcchat_requests_total", "Total chat API requests", "counter", atomic.LoadUint64(&m.metrics.RequestsTotal)},
			{"srcchat_requests_failed_total", "Chat API requests answered with an error", "counter", atomic.LoadUint64(&m.metrics.RequestsFailed)},

			{"srcchat_sessions_started_total", "Chat sessions created", "counter", atomic.LoadUint64(&m.metrics.SessionsStarted)},
			{"srcchat_sessions_reused_total", "Start requests that returned an open session", "counter", atomic.LoadUint64(&m.metrics.SessionsReused)},
			{"srcchat_sessions_auto_assigned_total", "Sessions auto-assigned at creation", "counter", atomic.LoadUint64(&m.metrics.SessionsAutoAssigned)},
			{"srcchat_sessions_queued_total", "Sessions left waiting at creation", "counter", atomic.LoadUint64(&m.metrics.SessionsQueued)},
			{"srcchat_sessions_assigned_total", "Explicit assignments and transfers", "counter", atomic.LoadUint64(&m.metrics.SessionsAssigned)},
			{"srcchat_sessions_ended_total", "Chat sessions ended", "counter", atomic.LoadUint64(&m.metrics.SessionsEnded)},

			{"srcchat_messages_sent_total", "Chat messages appended", "counter", atomic.LoadUint64(&m.metrics.MessagesSent)},
			{"srcchat_messages_read_total", "Chat messages flipped to read", "counter", atomic.LoadUint64(&m.metrics.MessagesRead)},
			{"srcchat_slot_conflicts_total", "Agent slot reservations lost to a concurrent assignment", "counter", atomic.LoadUint64(&m.metrics.SlotConflicts)},

			{"srcchat_ws_connections", "Open websocket push connections", "gauge", atomic.LoadInt64(&m.metrics.WSConnections)},
			{"srcchat_ws_dropped_total", "Push clients disconnected for a full buffer", "counter", atomic.LoadUint64(&m.metrics.WSDropped)},
			{"srcchat_events_dropped_total", "Domain events dropped on a full bus", "counter", atomic.LoadUint64(&m.metrics.EventsDropped)},
			{"srcchat_rate_limited_total", "Sends rejected by the rate limiter", "counter", atomic.LoadUint64(&m.metrics.RateLimited)},
			{"srcchat_errors_total", "Internal errors", "counter", atomic.LoadUint64(&m.metrics.ErrorsTotal)},

			{"srcchat_uptime_seconds", "Process uptime in seconds", "gauge", time.Since(m.metrics.StartTime).Seconds()},
			{"srcchat_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"srcchat_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
			{"srcchat_gc_cycles_total", "Total number of completed GC cycles", "counter", memStats.NumGC},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			case uint32:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			}
			fmt.Fprintln(w)
		}

		if atomic.LoadUint64(&m.metrics.RequestLatencyCount) > 0 {
			fmt.Fprintf(w, "# HELP srcchat_request_latency_avg_ms Average request latency in milliseconds\n")
			fmt.Fprintf(w, "# TYPE srcchat_request_latency_avg_ms gauge\n")
			fmt.Fprintf(w, "srcchat_request_latency_avg_ms %f\n\n", m.avgLatencyMs())
		}
	})
}
