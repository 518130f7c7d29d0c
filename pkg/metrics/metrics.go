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
			Name:    "sessiond_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RemoteCallDuration tracks calls to the record store and document service.
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessiond_remote_call_duration_seconds",
			Help:    "Duration of calls to remote collaborators",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "outcome"},
	)

	// TenantSwitchesTotal counts tenant switch attempts by outcome.
	TenantSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_tenant_switches_total",
			Help: "Tenant switch attempts",
		},
		[]string{"outcome"},
	)

	// UploadsTotal counts upload items by final status.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_uploads_total",
			Help: "Upload items by status",
		},
		[]string{"status"},
	)

	// UploadsActive tracks upload items still processing.
	UploadsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessiond_uploads_active",
			Help: "Upload items still processing",
		},
	)

	// ConversationReconciliationsTotal counts local corrections of the conversation cache.
	ConversationReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_conversation_reconciliations_total",
			Help: "Local conversation cache corrections",
		},
		[]string{"kind"},
	)

	// MessagesTotal tracks messages appended to transcripts.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_messages_total",
			Help: "Messages appended to transcripts",
		},
		[]string{"role"},
	)

	// NoticesTotal counts user-visible notices by level.
	NoticesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiond_notices_total",
			Help: "User-visible notices",
		},
		[]string{"level"},
	)

	// WorkspacesActive tracks live per-principal workspaces.
	WorkspacesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessiond_workspaces_active",
			Help: "Number of live workspaces",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRemoteCall records the duration and outcome of a remote call.
func RecordRemoteCall(operation string, err error, duration float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RemoteCallDuration.WithLabelValues(operation, outcome).Observe(duration)
}
