package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics tracks the order lifecycle counters exposed by the API and
// workers.
type PipelineMetrics struct {
	ordersCreated      prometheus.Counter
	orderTransitions   *prometheus.CounterVec
	assignmentOutcomes *prometheus.CounterVec
	webhookResults     *prometheus.CounterVec
	notifications      *prometheus.CounterVec
}

// NewPipelineMetrics registers the lifecycle metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders accepted through checkout.",
	})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions applied, by target status.",
	}, []string{"status"})
	assignmentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_assignments_total",
		Help: "Driver assignment attempts, by outcome.",
	}, []string{"outcome"})
	webhookResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Payment webhook deliveries, by result.",
	}, []string{"result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notifications dispatched, by channel.",
	}, []string{"channel"})
	reg.MustRegister(ordersCreated, orderTransitions, assignmentOutcomes, webhookResults, notifications)
	return &PipelineMetrics{
		ordersCreated:      ordersCreated,
		orderTransitions:   orderTransitions,
		assignmentOutcomes: assignmentOutcomes,
		webhookResults:     webhookResults,
		notifications:      notifications,
	}
}

// IncOrderCreated counts a successful checkout.
func (m *PipelineMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncOrderTransition counts a transition into the given status.
func (m *PipelineMetrics) IncOrderTransition(status string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncAssignmentOutcome counts an assignment attempt result
// (assigned, no_driver, conflict, error).
func (m *PipelineMetrics) IncAssignmentOutcome(outcome string) {
	if m == nil || m.assignmentOutcomes == nil {
		return
	}
	m.assignmentOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhookResult counts a payment webhook delivery result
// (verified, duplicate, invalid_signature, error).
func (m *PipelineMetrics) IncWebhookResult(result string) {
	if m == nil || m.webhookResults == nil {
		return
	}
	m.webhookResults.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncNotificationDispatched counts a dispatched notification per channel.
func (m *PipelineMetrics) IncNotificationDispatched(channel string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(channel)).Inc()
}
