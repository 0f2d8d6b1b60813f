package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quanmbl4255142/devportal-sync/internal/models"
)

// MemoryStore is an in-memory Store implementation. It backs unit tests and
// local development runs where no MongoDB is available, and mirrors the
// MongoStore semantics: replace-style upserts, (nil, nil) for absent records,
// and a unique (service_name, namespace) constraint.
type MemoryStore struct {
	mu sync.RWMutex

	resources    map[string]models.ClusterResource // by UID
	applications map[string]models.Application     // by UID
	services     map[string]models.ServiceMetadata // by name/namespace key
	health       map[string]models.ServiceHealth   // by name/namespace key
	jobs         map[string]models.SyncJob         // by job ID
	clusterInfo  map[string]models.ClusterInfo     // by cluster type
}

// Ensure MemoryStore satisfies the Store interface at compile time.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources:    make(map[string]models.ClusterResource),
		applications: make(map[string]models.Application),
		services:     make(map[string]models.ServiceMetadata),
		health:       make(map[string]models.ServiceHealth),
		jobs:         make(map[string]models.SyncJob),
		clusterInfo:  make(map[string]models.ClusterInfo),
	}
}

func svcKey(name, namespace string) string {
	return namespace + "/" + name
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// UpsertResource writes a cluster resource record keyed by its UID.
func (s *MemoryStore) UpsertResource(ctx context.Context, res *models.ClusterResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[res.UID] = *res
	return nil
}

// GetResourceByUID retrieves a resource by its cluster-assigned UID.
func (s *MemoryStore) GetResourceByUID(ctx context.Context, uid string) (*models.ClusterResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources[uid]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

// ListResources returns resources matching the filter plus the total match count.
func (s *MemoryStore) ListResources(ctx context.Context, f ResourceFilter) ([]*models.ClusterResource, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.ClusterResource
	for _, res := range s.resources {
		if f.Kind != "" && res.Kind != f.Kind {
			continue
		}
		if f.Namespace != "" && res.Namespace != f.Namespace {
			continue
		}
		r := res
		matched = append(matched, &r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Namespace != matched[j].Namespace {
			return matched[i].Namespace < matched[j].Namespace
		}
		return matched[i].Name < matched[j].Name
	})
	return paginate(matched, f.Skip, f.Limit), int64(len(matched)), nil
}

// DeleteResourcesNotIn removes resources of one kind absent from the live set.
func (s *MemoryStore) DeleteResourcesNotIn(ctx context.Context, kind string, liveUIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]bool, len(liveUIDs))
	for _, uid := range liveUIDs {
		live[uid] = true
	}
	var removed int64
	for uid, res := range s.resources {
		if res.Kind == kind && !live[uid] {
			delete(s.resources, uid)
			removed++
		}
	}
	return removed, nil
}

// UpsertApplication writes an application record keyed by its UID.
func (s *MemoryStore) UpsertApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[app.UID] = *app
	return nil
}

// GetApplicationByName retrieves an application by its exact name.
func (s *MemoryStore) GetApplicationByName(ctx context.Context, name string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.applications {
		if app.Name == name {
			a := app
			return &a, nil
		}
	}
	return nil, nil
}

// FindApplicationForService returns the first application whose name contains
// the service name, case-insensitively. Candidates are scanned in name order
// so the result is deterministic.
func (s *MemoryStore) FindApplicationForService(ctx context.Context, serviceName string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(serviceName)
	var candidates []models.Application
	for _, app := range s.applications {
		if strings.Contains(strings.ToLower(app.Name), needle) {
			candidates = append(candidates, app)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return &candidates[0], nil
}

// ListApplications returns applications matching the filter plus the total match count.
func (s *MemoryStore) ListApplications(ctx context.Context, f AppFilter) ([]*models.Application, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Application
	for _, app := range s.applications {
		if f.Project != "" && app.Project != f.Project {
			continue
		}
		if f.Health != "" && app.Health != f.Health {
			continue
		}
		if f.Sync != "" && app.Sync != f.Sync {
			continue
		}
		a := app
		matched = append(matched, &a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return paginate(matched, f.Skip, f.Limit), int64(len(matched)), nil
}

// DeleteApplicationsNotIn removes applications absent from the live set.
func (s *MemoryStore) DeleteApplicationsNotIn(ctx context.Context, liveUIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]bool, len(liveUIDs))
	for _, uid := range liveUIDs {
		live[uid] = true
	}
	var removed int64
	for uid := range s.applications {
		if !live[uid] {
			delete(s.applications, uid)
			removed++
		}
	}
	return removed, nil
}

// GetService retrieves a service metadata record by its identity pair.
func (s *MemoryStore) GetService(ctx context.Context, name, namespace string) (*models.ServiceMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[svcKey(name, namespace)]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

// InsertService creates a new service metadata record. Duplicate identity
// pairs are rejected, matching the unique index of the Mongo implementation.
func (s *MemoryStore) InsertService(ctx context.Context, svc *models.ServiceMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := svcKey(svc.ServiceName, svc.Namespace)
	if _, exists := s.services[key]; exists {
		return fmt.Errorf("service %s/%s already exists", svc.Namespace, svc.ServiceName)
	}
	s.services[key] = *svc
	return nil
}

// UpdateServiceFromK8s refreshes the discovery-derived fields of an existing
// service record.
func (s *MemoryStore) UpdateServiceFromK8s(ctx context.Context, name, namespace string, upd *models.ServiceK8sUpdate, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := svcKey(name, namespace)
	svc, ok := s.services[key]
	if !ok {
		return nil
	}
	svc.DockerImage = upd.DockerImage
	svc.DeployConfig.MemoryRequest = upd.MemoryRequest
	svc.DeployConfig.MemoryLimit = upd.MemoryLimit
	svc.DeployConfig.CPURequest = upd.CPURequest
	svc.DeployConfig.CPULimit = upd.CPULimit
	svc.DeployConfig.Replicas = upd.Replicas
	svc.Labels = upd.Labels
	svc.Annotations = upd.Annotations
	ts := syncedAt
	svc.LastK8sSync = &ts
	svc.UpdatedAt = syncedAt
	s.services[key] = svc
	return nil
}

// UpdateServiceHealthStatus sets the denormalized health_status field.
func (s *MemoryStore) UpdateServiceHealthStatus(ctx context.Context, name, namespace, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := svcKey(name, namespace)
	svc, ok := s.services[key]
	if !ok {
		return nil
	}
	svc.HealthStatus = status
	svc.UpdatedAt = time.Now().UTC()
	s.services[key] = svc
	return nil
}

// ListServices returns service records matching the filter plus the total match count.
func (s *MemoryStore) ListServices(ctx context.Context, f ServiceFilter) ([]*models.ServiceMetadata, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.ServiceMetadata
	for _, svc := range s.services {
		if f.Namespace != "" && svc.Namespace != f.Namespace {
			continue
		}
		if f.DiscoveredOnly && !svc.DiscoveredFromK8s {
			continue
		}
		v := svc
		matched = append(matched, &v)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Namespace != matched[j].Namespace {
			return matched[i].Namespace < matched[j].Namespace
		}
		return matched[i].ServiceName < matched[j].ServiceName
	})
	return paginate(matched, f.Skip, f.Limit), int64(len(matched)), nil
}

// DeleteService removes a service record, reporting whether one existed.
func (s *MemoryStore) DeleteService(ctx context.Context, name, namespace string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := svcKey(name, namespace)
	if _, ok := s.services[key]; !ok {
		return false, nil
	}
	delete(s.services, key)
	delete(s.health, key)
	return true, nil
}

// CountServicesByNamespace groups service records by namespace.
func (s *MemoryStore) CountServicesByNamespace(ctx context.Context) ([]models.NamespaceServiceCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[string]*models.NamespaceServiceCount)
	for _, svc := range s.services {
		b, ok := buckets[svc.Namespace]
		if !ok {
			b = &models.NamespaceServiceCount{Namespace: svc.Namespace}
			buckets[svc.Namespace] = b
		}
		b.Count++
		if svc.DiscoveredFromK8s {
			b.DiscoveredCount++
		}
	}

	out := make([]models.NamespaceServiceCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out, nil
}

// UpsertServiceHealth writes a health verdict keyed by the service identity pair.
func (s *MemoryStore) UpsertServiceHealth(ctx context.Context, h *models.ServiceHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[svcKey(h.ServiceName, h.Namespace)] = *h
	return nil
}

// GetServiceHealth retrieves the current health verdict for a service.
func (s *MemoryStore) GetServiceHealth(ctx context.Context, name, namespace string) (*models.ServiceHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.health[svcKey(name, namespace)]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

// ListServiceHealth returns all health verdicts, optionally restricted to one namespace.
func (s *MemoryStore) ListServiceHealth(ctx context.Context, namespace string) ([]*models.ServiceHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ServiceHealth
	for _, h := range s.health {
		if namespace != "" && h.Namespace != namespace {
			continue
		}
		v := h
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].ServiceName < out[j].ServiceName
	})
	return out, nil
}

// InsertSyncJob creates a sync job record.
func (s *MemoryStore) InsertSyncJob(ctx context.Context, job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("sync job %s already exists", job.JobID)
	}
	s.jobs[job.JobID] = *job
	return nil
}

// UpdateSyncJob overwrites a sync job record keyed by its job ID.
func (s *MemoryStore) UpdateSyncJob(ctx context.Context, job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = *job
	return nil
}

// GetSyncJob retrieves a sync job by its ID.
func (s *MemoryStore) GetSyncJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

// ListSyncJobs returns jobs matching the filter, newest first.
func (s *MemoryStore) ListSyncJobs(ctx context.Context, f JobFilter) ([]*models.SyncJob, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.SyncJob
	for _, job := range s.jobs {
		if f.JobType != "" && job.JobType != f.JobType {
			continue
		}
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		j := job
		matched = append(matched, &j)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })
	return paginate(matched, f.Skip, f.Limit), int64(len(matched)), nil
}

// LatestSyncJob returns the most recently started job of the given type.
func (s *MemoryStore) LatestSyncJob(ctx context.Context, jobType string) (*models.SyncJob, error) {
	jobs, _, err := s.ListSyncJobs(ctx, JobFilter{JobType: jobType, Limit: 1})
	if err != nil || len(jobs) == 0 {
		return nil, err
	}
	return jobs[0], nil
}

// DeleteSyncJobsBefore removes terminal jobs started before the cutoff.
func (s *MemoryStore) DeleteSyncJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, job := range s.jobs {
		if job.IsTerminal() && job.StartedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// UpsertClusterInfo writes a cluster snapshot keyed by subsystem type.
func (s *MemoryStore) UpsertClusterInfo(ctx context.Context, info *models.ClusterInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusterInfo[info.ClusterType] = *info
	return nil
}

// GetClusterInfo retrieves the snapshot for one cluster subsystem.
func (s *MemoryStore) GetClusterInfo(ctx context.Context, clusterType string) (*models.ClusterInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.clusterInfo[clusterType]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Counts reports the current record count per collection.
func (s *MemoryStore) Counts(ctx context.Context) (*models.StoreCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &models.StoreCounts{
		Resources:     int64(len(s.resources)),
		Applications:  int64(len(s.applications)),
		Services:      int64(len(s.services)),
		ServiceHealth: int64(len(s.health)),
		SyncJobs:      int64(len(s.jobs)),
	}, nil
}

// paginate applies skip/limit to an already-sorted slice.
func paginate[T any](items []T, skip, limit int64) []T {
	if skip > 0 {
		if skip >= int64(len(items)) {
			return nil
		}
		items = items[skip:]
	}
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}
