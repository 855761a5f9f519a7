package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts publisher loop activity. A nil registerer yields metrics
// that are collected nowhere, which keeps tests quiet.
type Metrics struct {
	Published       *prometheus.CounterVec
	PublishFailures prometheus.Counter
	Reconnects      prometheus.Counter
	EncodeDrops     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_published_total",
			Help: "Events confirmed by the broker, by queue",
		}, []string{"queue"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_publish_failures_total",
			Help: "Publish attempts that failed or were nacked",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_reconnects_total",
			Help: "Broker reconnect cycles entered",
		}),
		EncodeDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_encode_drops_total",
			Help: "Events dropped due to serialization failure",
		}),
	}
}
