package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	unmatchedRoute = "unmatched"
	preflightRoute = "preflight"
)

// Middleware records count, latency and sizes per route template. Requests
// for the paths in skip, typically the scrape endpoint, are not recorded.
func Middleware(metrics *Metrics, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		metrics.RecordHTTPRequest(
			c.Request.Method,
			routeLabel(c),
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			nonNegative(c.Request.ContentLength),
			nonNegative(int64(c.Writer.Size())),
		)
	}
}

// routeLabel keeps label cardinality bounded. CORS preflights are aborted
// before routing, so they get a label of their own.
func routeLabel(c *gin.Context) string {
	if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
		return preflightRoute
	}
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// Timer times one engine call.
type Timer struct {
	metrics *Metrics
	service string
	method  string
	start   time.Time
}

// NewTimer starts a timer. A nil metrics makes Stop a no-op.
func NewTimer(metrics *Metrics, service, method string) *Timer {
	return &Timer{metrics: metrics, service: service, method: method, start: time.Now()}
}

// Stop records the call under the given outcome.
func (t *Timer) Stop(status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordServiceCall(t.service, t.method, status, time.Since(t.start))
}
