package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutboxResultPublished = "published"
	OutboxResultRetry     = "retry"
	OutboxResultTerminal  = "terminal"
)

// OutboxMetrics counts publish attempts made by the outbox publisher.
type OutboxMetrics struct {
	results *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "outbox_publish_total",
			Help:      "Outbox publish attempts by event type and result.",
		}, []string{"event_type", "result"}),
	}
	reg.MustRegister(m.results)
	return m
}

func (m *OutboxMetrics) Result(eventType, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(eventType, result).Inc()
}
