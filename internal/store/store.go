// Package store defines the persistence contract for the devportal-sync
// service and its implementations. All reconciled cluster state, service
// metadata, health verdicts, and sync-job history flow through the Store
// interface.
package store

import (
	"context"
	"time"

	"github.com/quanmbl4255142/devportal-sync/internal/models"
)

// ResourceFilter narrows and paginates resource listings. Zero-valued fields
// are ignored; a zero Limit means no limit.
type ResourceFilter struct {
	Kind      string
	Namespace string
	Limit     int64
	Skip      int64
}

// AppFilter narrows and paginates application listings.
type AppFilter struct {
	Project string
	Health  string
	Sync    string
	Limit   int64
	Skip    int64
}

// ServiceFilter narrows and paginates service metadata listings.
type ServiceFilter struct {
	Namespace      string
	DiscoveredOnly bool
	Limit          int64
	Skip           int64
}

// JobFilter narrows and paginates sync job listings. Jobs are always returned
// newest first.
type JobFilter struct {
	JobType string
	Status  string
	Limit   int64
	Skip    int64
}

// Store defines the contract for persistent storage of reconciled state.
// Implementations must be safe for concurrent use by multiple goroutines.
//
// Lookup methods return (nil, nil) when no matching record exists; a non-nil
// error always indicates a store failure, never absence.
type Store interface {
	// Close releases any resources held by the store connection.
	Close(ctx context.Context) error

	// Ping verifies the store connection is still alive.
	Ping(ctx context.Context) error

	// UpsertResource writes a cluster resource record keyed by its UID,
	// replacing any prior observation of the same object.
	UpsertResource(ctx context.Context, res *models.ClusterResource) error

	// GetResourceByUID retrieves a resource by its cluster-assigned UID.
	GetResourceByUID(ctx context.Context, uid string) (*models.ClusterResource, error)

	// ListResources returns resources matching the filter plus the total
	// number of matches before pagination.
	ListResources(ctx context.Context, f ResourceFilter) ([]*models.ClusterResource, int64, error)

	// DeleteResourcesNotIn removes resources of the given kind whose UID is
	// not in the live set, returning the number removed.
	DeleteResourcesNotIn(ctx context.Context, kind string, liveUIDs []string) (int64, error)

	// UpsertApplication writes an application record keyed by its UID.
	UpsertApplication(ctx context.Context, app *models.Application) error

	// GetApplicationByName retrieves an application by its exact name.
	GetApplicationByName(ctx context.Context, name string) (*models.Application, error)

	// FindApplicationForService returns the first application whose name
	// contains the service name, case-insensitively. Used to associate a
	// discovered service with the GitOps application that manages it.
	FindApplicationForService(ctx context.Context, serviceName string) (*models.Application, error)

	// ListApplications returns applications matching the filter plus the
	// total number of matches before pagination.
	ListApplications(ctx context.Context, f AppFilter) ([]*models.Application, int64, error)

	// DeleteApplicationsNotIn removes applications whose UID is not in the
	// live set, returning the number removed.
	DeleteApplicationsNotIn(ctx context.Context, liveUIDs []string) (int64, error)

	// GetService retrieves a service metadata record by its identity pair.
	GetService(ctx context.Context, name, namespace string) (*models.ServiceMetadata, error)

	// InsertService creates a new service metadata record. The
	// (service_name, namespace) pair is unique; inserting a duplicate fails.
	InsertService(ctx context.Context, svc *models.ServiceMetadata) error

	// UpdateServiceFromK8s refreshes the discovery-derived fields of an
	// existing record and stamps the sync time. Operator-set fields are
	// left untouched.
	UpdateServiceFromK8s(ctx context.Context, name, namespace string, upd *models.ServiceK8sUpdate, syncedAt time.Time) error

	// UpdateServiceHealthStatus sets the denormalized health_status field on
	// a service record.
	UpdateServiceHealthStatus(ctx context.Context, name, namespace, status string) error

	// ListServices returns service records matching the filter plus the
	// total number of matches before pagination.
	ListServices(ctx context.Context, f ServiceFilter) ([]*models.ServiceMetadata, int64, error)

	// DeleteService removes a service record, reporting whether one existed.
	DeleteService(ctx context.Context, name, namespace string) (bool, error)

	// CountServicesByNamespace groups service records by namespace and
	// returns per-namespace totals and discovered-record counts.
	CountServicesByNamespace(ctx context.Context) ([]models.NamespaceServiceCount, error)

	// UpsertServiceHealth writes a health verdict keyed by the service
	// identity pair, replacing the prior verdict.
	UpsertServiceHealth(ctx context.Context, h *models.ServiceHealth) error

	// GetServiceHealth retrieves the current health verdict for a service.
	GetServiceHealth(ctx context.Context, name, namespace string) (*models.ServiceHealth, error)

	// ListServiceHealth returns all health verdicts, optionally restricted
	// to one namespace.
	ListServiceHealth(ctx context.Context, namespace string) ([]*models.ServiceHealth, error)

	// InsertSyncJob creates a sync job record.
	InsertSyncJob(ctx context.Context, job *models.SyncJob) error

	// UpdateSyncJob overwrites a sync job record keyed by its job ID.
	UpdateSyncJob(ctx context.Context, job *models.SyncJob) error

	// GetSyncJob retrieves a sync job by its ID.
	GetSyncJob(ctx context.Context, jobID string) (*models.SyncJob, error)

	// ListSyncJobs returns jobs matching the filter, newest first, plus the
	// total number of matches before pagination.
	ListSyncJobs(ctx context.Context, f JobFilter) ([]*models.SyncJob, int64, error)

	// LatestSyncJob returns the most recently started job of the given type.
	LatestSyncJob(ctx context.Context, jobType string) (*models.SyncJob, error)

	// DeleteSyncJobsBefore removes terminal jobs started before the cutoff,
	// returning the number removed.
	DeleteSyncJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// UpsertClusterInfo writes a cluster snapshot keyed by subsystem type.
	UpsertClusterInfo(ctx context.Context, info *models.ClusterInfo) error

	// GetClusterInfo retrieves the snapshot for one cluster subsystem.
	GetClusterInfo(ctx context.Context, clusterType string) (*models.ClusterInfo, error)

	// Counts reports the current document count per collection.
	Counts(ctx context.Context) (*models.StoreCounts, error)
}
