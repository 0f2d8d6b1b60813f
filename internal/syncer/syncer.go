// Package syncer implements the sync orchestrator: the periodic loop that
// pulls cluster and GitOps state, reconciles it into the store, runs service
// discovery, and recomputes health verdicts. Every run is recorded as a sync
// job for provenance.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

// KubeReader is the cluster read surface the syncer consumes. An empty
// namespace means all namespaces.
type KubeReader interface {
	ListResources(ctx context.Context, kind, namespace string) ([]*models.ClusterResource, error)
	ClusterSummary(ctx context.Context) (*models.K8sClusterSummary, error)
}

// ArgoReader is the GitOps controller read surface the syncer consumes.
type ArgoReader interface {
	ListApplications(ctx context.Context) ([]*models.Application, error)
	Summary(ctx context.Context, apps []*models.Application) *models.ArgoCDSummary
}

// Discoverer is the service discovery surface the syncer drives.
type Discoverer interface {
	DiscoverServices(ctx context.Context) (int, error)
	RefreshServices(ctx context.Context) (int, error)
}

// Evaluator recomputes health verdicts after a sync pass.
type Evaluator interface {
	EvaluateAll(ctx context.Context) (int, error)
}

// Syncer orchestrates sync runs and owns the scheduling loop.
type Syncer struct {
	store      store.Store
	kube       KubeReader
	argo       ArgoReader
	discoverer Discoverer
	evaluator  Evaluator
	cfg        config.SyncConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Syncer with the provided dependencies.
func New(
	st store.Store,
	kube KubeReader,
	argo ArgoReader,
	disc Discoverer,
	eval Evaluator,
	cfg config.SyncConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Syncer {
	return &Syncer{
		store:      st,
		kube:       kube,
		argo:       argo,
		discoverer: disc,
		evaluator:  eval,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
	}
}

// StartScheduler launches the background sync loop. Calling it while the
// loop is already running is a no-op that returns false.
func (s *Syncer) StartScheduler(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("sync scheduler already running")
		return false
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run(ctx, s.stopCh)

	s.logger.Info("sync scheduler started",
		zap.Duration("interval", s.cfg.Interval.Duration),
		zap.Bool("on_startup", s.cfg.OnStartup),
	)
	return true
}

// StopScheduler stops the scheduling loop and waits for it to exit. An
// in-flight sync run is allowed to finish; only future runs are cancelled.
func (s *Syncer) StopScheduler() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

// IsRunning reports whether the scheduling loop is active.
func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the scheduling loop: one full sync up front, then prune-free
// incremental passes on the interval. A failed run is retried after the
// error backoff instead of the full interval.
func (s *Syncer) run(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.cfg.OnStartup {
		if err := s.FullSync(ctx); err != nil {
			s.logger.Error("startup sync failed", zap.Error(err))
		}
	}

	timer := time.NewTimer(s.cfg.Interval.Duration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopping", zap.Error(ctx.Err()))
			return
		case <-stopCh:
			return
		case <-timer.C:
			if err := s.IncrementalSync(ctx); err != nil {
				s.logger.Error("scheduled sync failed",
					zap.Error(err),
					zap.Duration("retry_in", s.cfg.ErrorBackoff.Duration))
				timer.Reset(s.cfg.ErrorBackoff.Duration)
			} else {
				timer.Reset(s.cfg.Interval.Duration)
			}
		}
	}
}

// FullSync performs one complete sync pass: cluster info, resources with
// pruning, service discovery, applications with pruning, and health
// re-evaluation.
func (s *Syncer) FullSync(ctx context.Context) error {
	return s.runSync(ctx, models.JobTypeFull, true)
}

// IncrementalSync performs the same pass as FullSync but never prunes, so a
// partial read can never delete records.
func (s *Syncer) IncrementalSync(ctx context.Context) error {
	return s.runSync(ctx, models.JobTypeIncremental, false)
}

// Status reports the orchestrator state for operators.
func (s *Syncer) Status(ctx context.Context) (*models.SyncStatus, error) {
	status := &models.SyncStatus{
		IsRunning:    s.IsRunning(),
		SyncInterval: s.cfg.Interval.Duration.String(),
	}

	full, err := s.store.LatestSyncJob(ctx, models.JobTypeFull)
	if err != nil {
		return nil, fmt.Errorf("getting latest full sync: %w", err)
	}
	status.LatestFullSync = full

	incremental, err := s.store.LatestSyncJob(ctx, models.JobTypeIncremental)
	if err != nil {
		return nil, fmt.Errorf("getting latest incremental sync: %w", err)
	}
	status.LatestIncrementalSync = incremental

	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting store documents: %w", err)
	}
	status.ResourceCounts = *counts

	return status, nil
}

// newJobID builds the provenance identifier for a run.
func newJobID(jobType string, startedAt time.Time) string {
	return fmt.Sprintf("%s_%s", jobType, startedAt.Format("20060102_150405"))
}

// runSync executes one sync pass and records it as a job. Stage failures are
// accumulated rather than aborting the pass; the job is finalized exactly
// once, to failed when any stage errored and completed otherwise.
func (s *Syncer) runSync(ctx context.Context, jobType string, prune bool) error {
	start := time.Now().UTC()
	job := &models.SyncJob{
		JobID:     newJobID(jobType, start),
		JobType:   jobType,
		Status:    models.JobStatusRunning,
		StartedAt: start,
	}
	if err := s.store.InsertSyncJob(ctx, job); err != nil {
		return fmt.Errorf("recording sync job: %w", err)
	}

	s.logger.Info("sync started",
		zap.String("job_id", job.JobID),
		zap.String("job_type", jobType),
		zap.Bool("prune", prune))

	var errs []string
	record := func(stage string, err error) {
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", stage, err))
			s.logger.Error("sync stage failed", zap.String("stage", stage), zap.Error(err))
		}
	}

	record("cluster info", s.syncClusterInfo(ctx))
	record("resources", s.syncResources(ctx, prune))

	created, err := s.discoverer.DiscoverServices(ctx)
	record("service discovery", err)
	if created > 0 {
		s.metrics.ServicesDiscoveredTotal.Add(float64(created))
	}

	refreshed, err := s.discoverer.RefreshServices(ctx)
	record("service refresh", err)
	if refreshed > 0 {
		s.metrics.ServicesRefreshedTotal.Add(float64(refreshed))
	}

	record("applications", s.syncApplications(ctx, prune))
	record("health evaluation", s.evaluateHealth(ctx))

	// Finalize exactly once.
	completed := time.Now().UTC()
	job.CompletedAt = &completed
	job.Errors = errs
	if len(errs) > 0 {
		job.Status = models.JobStatusFailed
		job.LastError = errs[len(errs)-1]
	} else {
		job.Status = models.JobStatusCompleted
	}
	if err := s.store.UpdateSyncJob(ctx, job); err != nil {
		s.logger.Error("failed to finalize sync job",
			zap.String("job_id", job.JobID), zap.Error(err))
	}

	duration := completed.Sub(start)
	s.metrics.SyncRunsTotal.WithLabelValues(jobType, job.Status).Inc()
	s.metrics.SyncDuration.WithLabelValues(jobType).Observe(duration.Seconds())

	if job.Status == models.JobStatusFailed {
		return fmt.Errorf("sync %s failed: %s", job.JobID, strings.Join(errs, "; "))
	}

	s.metrics.SyncLastSuccess.WithLabelValues(jobType).SetToCurrentTime()
	s.logger.Info("sync completed",
		zap.String("job_id", job.JobID),
		zap.Duration("duration", duration))
	return nil
}

// syncClusterInfo snapshots the Kubernetes cluster subsystem.
func (s *Syncer) syncClusterInfo(ctx context.Context) error {
	summary, err := s.kube.ClusterSummary(ctx)
	if err != nil {
		return fmt.Errorf("reading cluster summary: %w", err)
	}
	info := &models.ClusterInfo{
		ClusterType: models.ClusterTypeK8s,
		Info: map[string]interface{}{
			"cluster_name":      summary.ClusterName,
			"server_version":    summary.ServerVersion,
			"nodes_count":       summary.NodesCount,
			"namespaces":        summary.Namespaces,
			"total_pods":        summary.TotalPods,
			"total_services":    summary.TotalServices,
			"total_deployments": summary.TotalDeployments,
		},
		LastSync: time.Now().UTC(),
	}
	if err := s.store.UpsertClusterInfo(ctx, info); err != nil {
		return fmt.Errorf("storing cluster info: %w", err)
	}
	return nil
}

// syncResources pulls every tracked kind, upserts what it sees, and, when
// pruning, removes records whose UID was not observed. A kind whose listing
// failed is never pruned: an API error must not wipe its records.
func (s *Syncer) syncResources(ctx context.Context, prune bool) error {
	var errs []string
	for _, kind := range models.TrackedKinds {
		resources, err := s.kube.ListResources(ctx, kind, "")
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", kind, err))
			continue
		}

		liveUIDs := make([]string, 0, len(resources))
		for _, res := range resources {
			if err := s.store.UpsertResource(ctx, res); err != nil {
				s.logger.Error("failed to upsert resource",
					zap.String("kind", kind),
					zap.String("name", res.Name),
					zap.String("namespace", res.Namespace),
					zap.Error(err))
				continue
			}
			liveUIDs = append(liveUIDs, res.UID)
			s.metrics.ResourcesUpsertedTotal.WithLabelValues(kind).Inc()
		}

		if prune {
			removed, err := s.store.DeleteResourcesNotIn(ctx, kind, liveUIDs)
			if err != nil {
				errs = append(errs, fmt.Sprintf("pruning %s: %v", kind, err))
				continue
			}
			if removed > 0 {
				s.metrics.ResourcesPrunedTotal.WithLabelValues(kind).Add(float64(removed))
				s.logger.Info("pruned stale resources",
					zap.String("kind", kind), zap.Int64("removed", removed))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// syncApplications pulls the GitOps applications, upserts them, prunes
// departed ones when asked, and snapshots the controller subsystem.
func (s *Syncer) syncApplications(ctx context.Context, prune bool) error {
	apps, err := s.argo.ListApplications(ctx)
	if err != nil {
		return fmt.Errorf("listing applications: %w", err)
	}

	liveUIDs := make([]string, 0, len(apps))
	for _, app := range apps {
		if err := s.store.UpsertApplication(ctx, app); err != nil {
			s.logger.Error("failed to upsert application",
				zap.String("application", app.Name), zap.Error(err))
			continue
		}
		liveUIDs = append(liveUIDs, app.UID)
		s.metrics.ApplicationsUpsertedTotal.Inc()
	}

	if prune {
		removed, err := s.store.DeleteApplicationsNotIn(ctx, liveUIDs)
		if err != nil {
			return fmt.Errorf("pruning applications: %w", err)
		}
		if removed > 0 {
			s.metrics.ResourcesPrunedTotal.WithLabelValues("Application").Add(float64(removed))
			s.logger.Info("pruned departed applications", zap.Int64("removed", removed))
		}
	}

	summary := s.argo.Summary(ctx, apps)
	info := &models.ClusterInfo{
		ClusterType: models.ClusterTypeArgoCD,
		Info: map[string]interface{}{
			"version":            summary.Version,
			"applications_count": summary.ApplicationsCount,
			"healthy_apps":       summary.HealthyApps,
			"degraded_apps":      summary.DegradedApps,
			"out_of_sync_apps":   summary.OutOfSyncApps,
		},
		LastSync: time.Now().UTC(),
	}
	if err := s.store.UpsertClusterInfo(ctx, info); err != nil {
		return fmt.Errorf("storing argocd info: %w", err)
	}
	return nil
}

// evaluateHealth recomputes verdicts and refreshes the per-verdict gauges.
func (s *Syncer) evaluateHealth(ctx context.Context) error {
	if _, err := s.evaluator.EvaluateAll(ctx); err != nil {
		return err
	}

	verdicts, err := s.store.ListServiceHealth(ctx, "")
	if err != nil {
		return fmt.Errorf("listing health verdicts: %w", err)
	}
	byVerdict := map[string]int{
		models.HealthHealthy:   0,
		models.HealthUnhealthy: 0,
		models.HealthUnknown:   0,
	}
	for _, v := range verdicts {
		byVerdict[v.OverallStatus]++
		s.metrics.HealthVerdictsTotal.WithLabelValues(v.OverallStatus).Inc()
	}
	for verdict, count := range byVerdict {
		s.metrics.ServicesByHealth.WithLabelValues(verdict).Set(float64(count))
	}
	return nil
}
