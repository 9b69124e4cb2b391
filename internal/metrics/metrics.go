// Package metrics exposes Prometheus collectors for the approval service.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/garyjia/doc-approval/internal/domain/event"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_transitions_total",
			Help: "Committed document status transitions",
		},
		[]string{"action", "from", "to"},
	)

	transitionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_transition_failures_total",
			Help: "Refused or failed transition attempts by error kind",
		},
		[]string{"action", "kind"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_notifications_total",
			Help: "Notification deliveries by kind and result",
		},
		[]string{"kind", "result"},
	)

	userCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_user_cache_lookups_total",
			Help: "User directory cache lookups",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docflow_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveTransition is a dispatcher handler counting committed transitions
func ObserveTransition(_ context.Context, evt *event.Event) error {
	if evt.Transition == nil {
		return nil
	}
	t := evt.Transition
	transitionsTotal.WithLabelValues(t.Action.String(), t.OldStatus.String(), t.NewStatus.String()).Inc()
	return nil
}

// TransitionFailed counts a refused transition
func TransitionFailed(action, kind string) {
	transitionFailuresTotal.WithLabelValues(action, kind).Inc()
}

// NotificationDelivered counts one delivery attempt
func NotificationDelivered(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

// UserCacheLookup counts a cache hit or miss
func UserCacheLookup(hit bool) {
	if hit {
		userCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	userCacheTotal.WithLabelValues("miss").Inc()
}

// Middleware records request count and latency per route template.
// Unmatched routes are grouped under "unmatched" to bound cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
