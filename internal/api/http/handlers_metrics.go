package http

import (
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/monitoring"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil collector records nothing.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackPortalOperation times one engine call and records its outcome class
// when the returned func is called with the call's error.
func (hm *HandlerMetrics) TrackPortalOperation(operation string) func(err error) {
	var timer *monitoring.Timer
	if hm != nil {
		timer = monitoring.NewTimer(hm.metrics, "portal", operation)
	}
	return func(err error) {
		if timer != nil {
			timer.Stop(outcome(err))
		}
	}
}
