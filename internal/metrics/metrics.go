package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

var (
	UnreadConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_unread_conflict_retries_total",
		Help: "Unread counter writes retried after a conflicting concurrent write.",
	})
	UnreadConflictFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_unread_conflict_failures_total",
		Help: "Unread counter updates abandoned after exhausting retries.",
	})
	ProjectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_projection_failures_total",
		Help: "Denormalized preview/counter updates that failed after a persisted send.",
	})
)
