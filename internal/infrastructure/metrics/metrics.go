package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the broker and gateway counters every binary reports.
type Metrics struct {
	MessagesPublished    *prometheus.CounterVec
	MessagesConsumed     *prometheus.CounterVec
	MessagesRetried      *prometheus.CounterVec
	MessagesDeadLettered *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		MessagesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emporion_messages_published_total",
			Help: "Events published to the broker, by exchange and routing key.",
		}, []string{"exchange", "key"}),
		MessagesConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emporion_messages_consumed_total",
			Help: "Messages consumed from a queue, by event name and outcome.",
		}, []string{"queue", "event", "outcome"}),
		MessagesRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emporion_messages_retried_total",
			Help: "Messages requeued with backoff after a transient failure.",
		}, []string{"queue"}),
		MessagesDeadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emporion_messages_dead_lettered_total",
			Help: "Messages routed to the dead-letter queue.",
		}, []string{"queue"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emporion_gateway_request_duration_seconds",
			Help:    "Gateway request latency by operation and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
}

// NewDefault registers on the global prometheus registerer.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
