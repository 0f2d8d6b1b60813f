// Package metrics defines and registers all Prometheus metrics used by the
// devportal-sync service, and serves the metrics and health endpoints.
// Metrics are organised by functional area and share the common "devportal_"
// prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector used by devportal-sync.
type Metrics struct {
	// ---------------------------------------------------------------
	// Sync
	// ---------------------------------------------------------------

	// SyncRunsTotal counts sync runs by job type and status.
	SyncRunsTotal *prometheus.CounterVec

	// SyncDuration observes how long each sync run takes.
	SyncDuration *prometheus.HistogramVec

	// SyncLastSuccess records the Unix timestamp of the last successful sync per job type.
	SyncLastSuccess *prometheus.GaugeVec

	// ResourcesUpsertedTotal counts resource upserts by kind.
	ResourcesUpsertedTotal *prometheus.CounterVec

	// ResourcesPrunedTotal counts records pruned from the store by kind.
	ResourcesPrunedTotal *prometheus.CounterVec

	// ApplicationsUpsertedTotal counts application upserts.
	ApplicationsUpsertedTotal prometheus.Counter

	// ---------------------------------------------------------------
	// Discovery
	// ---------------------------------------------------------------

	// ServicesDiscoveredTotal counts newly synthesized service records.
	ServicesDiscoveredTotal prometheus.Counter

	// ServicesRefreshedTotal counts refreshes of existing service records.
	ServicesRefreshedTotal prometheus.Counter

	// ---------------------------------------------------------------
	// Health Evaluation
	// ---------------------------------------------------------------

	// HealthVerdictsTotal counts health evaluations by verdict.
	HealthVerdictsTotal *prometheus.CounterVec

	// ServicesByHealth tracks the current number of services per verdict.
	ServicesByHealth *prometheus.GaugeVec

	// ---------------------------------------------------------------
	// Webhook
	// ---------------------------------------------------------------

	// WebhookEventsTotal counts received webhook deliveries by event type and outcome.
	WebhookEventsTotal *prometheus.CounterVec

	// WebhookSyncsTriggeredTotal counts per-application syncs triggered by webhooks.
	WebhookSyncsTriggeredTotal prometheus.Counter

	// ---------------------------------------------------------------
	// ArgoCD Client
	// ---------------------------------------------------------------

	// ArgoCDRequestsTotal counts ArgoCD API requests by operation and status.
	ArgoCDRequestsTotal *prometheus.CounterVec

	// ---------------------------------------------------------------
	// Store
	// ---------------------------------------------------------------

	// StoreDocumentsTotal tracks document counts per collection.
	StoreDocumentsTotal *prometheus.GaugeVec

	// ---------------------------------------------------------------
	// Cleanup
	// ---------------------------------------------------------------

	// CleanupRunsTotal counts retention cleanup runs by status.
	CleanupRunsTotal *prometheus.CounterVec

	// CleanupJobsDeleted counts sync job records removed by retention cleanup.
	CleanupJobsDeleted prometheus.Counter

	// ---------------------------------------------------------------
	// Component Health
	// ---------------------------------------------------------------

	// ComponentUp indicates whether a component is healthy (1) or not (0).
	ComponentUp *prometheus.GaugeVec

	// ComponentLastSuccess records the Unix timestamp of each component's last success.
	ComponentLastSuccess *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics with the supplied
// registerer. Pass prometheus.DefaultRegisterer for global registration or a
// custom registry for testing.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{}

	// -------------------------------------------------------------------
	// Sync Metrics
	// -------------------------------------------------------------------

	m.SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devportal_sync_runs_total",
		Help: "Total sync runs by job type and status.",
	}, []string{"job_type", "status"})
	registerer.MustRegister(m.SyncRunsTotal)

	m.SyncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devportal_sync_duration_seconds",
		Help:    "Duration of each sync run.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"job_type"})
	registerer.MustRegister(m.SyncDuration)

	m.SyncLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devportal_sync_last_success_timestamp",
		Help: "Unix timestamp of the last successful sync per job type.",
	}, []string{"job_type"})
	registerer.MustRegister(m.SyncLastSuccess)

	m.ResourcesUpsertedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devportal_resources_upserted_total",
		Help: "Total resource records upserted by kind.",
	}, []string{"kind"})
	registerer.MustRegister(m.ResourcesUpsertedTotal)

	m.ResourcesPrunedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devportal_resources_pruned_total",
		Help: "Total stale records pruned from the store by kind.",
	}, []string{"kind"})
	registerer.MustRegister(m.ResourcesPrunedTotal)

	m.ApplicationsUpsertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devportal_applications_upserted_total",
		Help: "Total application records upserted.",
	})
	registerer.MustRegister(m.ApplicationsUpsertedTotal)

	// -------------------------------------------------------------------
	// Discovery Metrics
	// -------------------------------------------------------------------

	m.ServicesDiscoveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devportal_services_discovered_total",
		Help: "Total service records synthesized from live Deployments.",
	})
	registerer.MustRegister(m.ServicesDiscoveredTotal)

	m.ServicesRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devportal_services_refreshed_total",
		Help: "Total service records refreshed from cluster state.",
	})
	registerer.MustRegister(m.ServicesRefreshedTotal)

	// -------------------------------------------------------------------
	// Health Evaluation Metrics
	// -------------------------------------------------------------------

	m.HealthVerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devportal_health_verdicts_total",
		Help: "Total health evaluations by verdict.",
	}, []string{"verdict"})
	registerer.MustRegister(m.HealthVerdictsTotal)

	m.ServicesByHealth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devportal_services_by_health",
		Help: "Current number of services per health verdict.",
	}, []string{"verdict"})
	registerer.MustRegister(m.ServicesByHealth)

	// -------------------------------------------------------------------
	// Webhook Metrics
	// -------------------------------------------------------------------

	m.WebhookEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devportal_webhook_events_total",
		Help: "Total webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
	registerer.MustRegister(m.WebhookEventsTotal)

	m.WebhookSyncsTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devportal_webhook_syncs_triggered_total",
		Help: "Total per-application syncs triggered by webhook deliveries.",
	})
	registerer.MustRegister(m.WebhookSyncsTriggeredTotal)

	// -------------------------------------------------------------------
	// ArgoCD Client Metrics
	// -------------------------------------------------------------------

	m.ArgoCDRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devportal_argocd_requests_total",
		Help: "Total ArgoCD API requests by operation and status.",
	}, []string{"operation", "status"})
	registerer.MustRegister(m.ArgoCDRequestsTotal)

	// -------------------------------------------------------------------
	// Store Metrics
	// -------------------------------------------------------------------

	m.StoreDocumentsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devportal_store_documents_total",
		Help: "Current document counts per collection.",
	}, []string{"collection"})
	registerer.MustRegister(m.StoreDocumentsTotal)

	// -------------------------------------------------------------------
	// Cleanup Metrics
	// -------------------------------------------------------------------

	m.CleanupRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devportal_cleanup_runs_total",
		Help: "Total retention cleanup runs by status.",
	}, []string{"status"})
	registerer.MustRegister(m.CleanupRunsTotal)

	m.CleanupJobsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devportal_cleanup_jobs_deleted_total",
		Help: "Total sync job records removed by retention cleanup.",
	})
	registerer.MustRegister(m.CleanupJobsDeleted)

	// -------------------------------------------------------------------
	// Component Health Metrics
	// -------------------------------------------------------------------

	m.ComponentUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devportal_component_up",
		Help: "Whether a component is healthy (1 = up, 0 = down).",
	}, []string{"component"})
	registerer.MustRegister(m.ComponentUp)

	m.ComponentLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devportal_component_last_success_timestamp",
		Help: "Unix timestamp of each component's last success.",
	}, []string{"component"})
	registerer.MustRegister(m.ComponentLastSuccess)

	return m
}
