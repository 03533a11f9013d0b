// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// EventsReceived tracks inbound live-channel events by type.
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_events_received_total",
			Help: "Inbound events accepted from the live channel",
		},
		[]string{"type"},
	)

	// EventsDropped tracks inbound events rejected at the transport boundary.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_events_dropped_total",
			Help: "Inbound events dropped at the transport boundary",
		},
		[]string{"reason"},
	)

	// CommandsPublished tracks outbound commands.
	CommandsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_commands_published_total",
			Help: "Outbound commands published on the live channel",
		},
		[]string{"type", "status"},
	)

	// ReconcileOutcomes tracks how the engine applied messages.
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_messages_total",
			Help: "Messages applied by the reconciliation engine by outcome",
		},
		[]string{"outcome"},
	)

	// ConversationsTracked tracks conversations held in the store.
	ConversationsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_conversations",
			Help: "Conversations currently held in the store",
		},
	)

	// CapabilityResolved records capability probe results.
	CapabilityResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capability_resolved_total",
			Help: "Backend capability probe resolutions",
		},
		[]string{"capability", "result"},
	)

	// SuggestionsGenerated tracks auto-response suggestions.
	SuggestionsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoresponse_suggestions_total",
			Help: "Auto-response suggestions generated",
		},
		[]string{"intent", "auto_send"},
	)

	// CollaboratorRequests tracks REST collaborator calls.
	CollaboratorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_requests_total",
			Help: "REST collaborator requests by outcome",
		},
		[]string{"collaborator", "outcome"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

// RecordEvent records an accepted inbound event.
func RecordEvent(eventType string) {
	EventsReceived.WithLabelValues(eventType).Inc()
}

// RecordDroppedEvent records an inbound event rejected at the boundary.
func RecordDroppedEvent(reason string) {
	EventsDropped.WithLabelValues(reason).Inc()
}

// RecordCommand records an outbound command publish.
func RecordCommand(commandType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CommandsPublished.WithLabelValues(commandType, status).Inc()
}

// RecordReconcile records one engine outcome: appended, replaced,
// duplicate or discarded.
func RecordReconcile(outcome string) {
	ReconcileOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCapability records a capability resolution.
func RecordCapability(capability, result string) {
	CapabilityResolved.WithLabelValues(capability, result).Inc()
}

// RecordSuggestion records a generated suggestion.
func RecordSuggestion(intent string, autoSend bool) {
	label := "false"
	if autoSend {
		label = "true"
	}
	SuggestionsGenerated.WithLabelValues(intent, label).Inc()
}

// RecordCollaboratorRequest records a REST collaborator call.
func RecordCollaboratorRequest(collaborator, outcome string) {
	CollaboratorRequests.WithLabelValues(collaborator, outcome).Inc()
}
