package monitoring

import "time"

// Summary is the JSON view of the collector served next to the health check.
type Summary struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	AuthRejections int64   `json:"auth_rejections"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
}

// Snapshot returns a copy of the tracked counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Summary condenses the snapshot for the JSON API
func (m *Metrics) Summary() Summary {
	snap := m.Snapshot()

	var avg float64
	if snap.RequestCount > 0 {
		avg = snap.TotalDuration / float64(snap.RequestCount) * 1000
	}

	return Summary{
		UptimeSeconds:  time.Since(m.startTime).Seconds(),
		TotalRequests:  snap.TotalRequests,
		TotalErrors:    snap.TotalErrors,
		AuthRejections: snap.AuthRejections,
		AvgLatencyMS:   avg,
	}
}
