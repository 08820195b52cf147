package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fan-out metrics
	FanoutWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "juggle_fanout_writes_total",
			Help: "Fan-out write operations by record kind and result",
		},
		[]string{"kind", "result"},
	)

	// Relay metrics
	TriggerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "juggle_trigger_events_total",
			Help: "On-create trigger events published by kind",
		},
		[]string{"kind"},
	)

	TriggerEventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "juggle_trigger_events_dropped_total",
			Help: "Trigger events dropped because a queue was full",
		},
		[]string{"kind", "stage"},
	)

	PushSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "juggle_push_sends_total",
			Help: "Push notification sends by type and result",
		},
		[]string{"type", "result"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "juggle_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "juggle_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(FanoutWritesTotal)
	prometheus.MustRegister(TriggerEventsTotal)
	prometheus.MustRegister(TriggerEventsDroppedTotal)
	prometheus.MustRegister(PushSendsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Timer measures elapsed time for histogram observations.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// Middleware records request counts and latencies per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			timer := NewTimer()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method + " " + c.Path()
			APIRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
			timer.ObserveDuration(APIRequestDuration.WithLabelValues(method))
			return err
		}
	}
}
