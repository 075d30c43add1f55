package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts publisher outcomes per event type.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	retried   *prometheus.CounterVec
	terminal  *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events delivered to the broker.",
	}, []string{"event_type"})
	retried := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_retries_total",
		Help: "Outbox publish attempts that will be retried.",
	}, []string{"event_type"})
	terminal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_terminal_total",
		Help: "Outbox events given up on.",
	}, []string{"event_type", "reason"})
	reg.MustRegister(published, retried, terminal)
	return &OutboxMetrics{
		published: published,
		retried:   retried,
		terminal:  terminal,
	}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(jobLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncRetry(eventType string) {
	if o == nil || o.retried == nil {
		return
	}
	o.retried.WithLabelValues(jobLabel(eventType)).Inc()
}

// IncTerminal counts an event that will never be retried, labelled with why.
func (o *OutboxMetrics) IncTerminal(eventType, reason string) {
	if o == nil || o.terminal == nil {
		return
	}
	o.terminal.WithLabelValues(jobLabel(eventType), jobLabel(reason)).Inc()
}
