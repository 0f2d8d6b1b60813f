package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/quanmbl4255142/devportal-sync/internal/models"
)

// MockStore is a testify/mock implementation of the Store interface.
type MockStore struct {
	mock.Mock
}

// Ensure MockStore satisfies the Store interface at compile time.
var _ Store = (*MockStore)(nil)

// Close mocks the Close method.
func (m *MockStore) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Ping mocks the Ping method.
func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// UpsertResource mocks the UpsertResource method.
func (m *MockStore) UpsertResource(ctx context.Context, res *models.ClusterResource) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

// GetResourceByUID mocks the GetResourceByUID method.
func (m *MockStore) GetResourceByUID(ctx context.Context, uid string) (*models.ClusterResource, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClusterResource), args.Error(1)
}

// ListResources mocks the ListResources method.
func (m *MockStore) ListResources(ctx context.Context, f ResourceFilter) ([]*models.ClusterResource, int64, error) {
	args := m.Called(ctx, f)
	var out []*models.ClusterResource
	if args.Get(0) != nil {
		out = args.Get(0).([]*models.ClusterResource)
	}
	return out, args.Get(1).(int64), args.Error(2)
}

// DeleteResourcesNotIn mocks the DeleteResourcesNotIn method.
func (m *MockStore) DeleteResourcesNotIn(ctx context.Context, kind string, liveUIDs []string) (int64, error) {
	args := m.Called(ctx, kind, liveUIDs)
	return args.Get(0).(int64), args.Error(1)
}

// UpsertApplication mocks the UpsertApplication method.
func (m *MockStore) UpsertApplication(ctx context.Context, app *models.Application) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

// GetApplicationByName mocks the GetApplicationByName method.
func (m *MockStore) GetApplicationByName(ctx context.Context, name string) (*models.Application, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Application), args.Error(1)
}

// FindApplicationForService mocks the FindApplicationForService method.
func (m *MockStore) FindApplicationForService(ctx context.Context, serviceName string) (*models.Application, error) {
	args := m.Called(ctx, serviceName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Application), args.Error(1)
}

// ListApplications mocks the ListApplications method.
func (m *MockStore) ListApplications(ctx context.Context, f AppFilter) ([]*models.Application, int64, error) {
	args := m.Called(ctx, f)
	var out []*models.Application
	if args.Get(0) != nil {
		out = args.Get(0).([]*models.Application)
	}
	return out, args.Get(1).(int64), args.Error(2)
}

// DeleteApplicationsNotIn mocks the DeleteApplicationsNotIn method.
func (m *MockStore) DeleteApplicationsNotIn(ctx context.Context, liveUIDs []string) (int64, error) {
	args := m.Called(ctx, liveUIDs)
	return args.Get(0).(int64), args.Error(1)
}

// GetService mocks the GetService method.
func (m *MockStore) GetService(ctx context.Context, name, namespace string) (*models.ServiceMetadata, error) {
	args := m.Called(ctx, name, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceMetadata), args.Error(1)
}

// InsertService mocks the InsertService method.
func (m *MockStore) InsertService(ctx context.Context, svc *models.ServiceMetadata) error {
	args := m.Called(ctx, svc)
	return args.Error(0)
}

// UpdateServiceFromK8s mocks the UpdateServiceFromK8s method.
func (m *MockStore) UpdateServiceFromK8s(ctx context.Context, name, namespace string, upd *models.ServiceK8sUpdate, syncedAt time.Time) error {
	args := m.Called(ctx, name, namespace, upd, syncedAt)
	return args.Error(0)
}

// UpdateServiceHealthStatus mocks the UpdateServiceHealthStatus method.
func (m *MockStore) UpdateServiceHealthStatus(ctx context.Context, name, namespace, status string) error {
	args := m.Called(ctx, name, namespace, status)
	return args.Error(0)
}

// ListServices mocks the ListServices method.
func (m *MockStore) ListServices(ctx context.Context, f ServiceFilter) ([]*models.ServiceMetadata, int64, error) {
	args := m.Called(ctx, f)
	var out []*models.ServiceMetadata
	if args.Get(0) != nil {
		out = args.Get(0).([]*models.ServiceMetadata)
	}
	return out, args.Get(1).(int64), args.Error(2)
}

// DeleteService mocks the DeleteService method.
func (m *MockStore) DeleteService(ctx context.Context, name, namespace string) (bool, error) {
	args := m.Called(ctx, name, namespace)
	return args.Bool(0), args.Error(1)
}

// CountServicesByNamespace mocks the CountServicesByNamespace method.
func (m *MockStore) CountServicesByNamespace(ctx context.Context) ([]models.NamespaceServiceCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NamespaceServiceCount), args.Error(1)
}

// UpsertServiceHealth mocks the UpsertServiceHealth method.
func (m *MockStore) UpsertServiceHealth(ctx context.Context, h *models.ServiceHealth) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

// GetServiceHealth mocks the GetServiceHealth method.
func (m *MockStore) GetServiceHealth(ctx context.Context, name, namespace string) (*models.ServiceHealth, error) {
	args := m.Called(ctx, name, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceHealth), args.Error(1)
}

// ListServiceHealth mocks the ListServiceHealth method.
func (m *MockStore) ListServiceHealth(ctx context.Context, namespace string) ([]*models.ServiceHealth, error) {
	args := m.Called(ctx, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ServiceHealth), args.Error(1)
}

// InsertSyncJob mocks the InsertSyncJob method.
func (m *MockStore) InsertSyncJob(ctx context.Context, job *models.SyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// UpdateSyncJob mocks the UpdateSyncJob method.
func (m *MockStore) UpdateSyncJob(ctx context.Context, job *models.SyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// GetSyncJob mocks the GetSyncJob method.
func (m *MockStore) GetSyncJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncJob), args.Error(1)
}

// ListSyncJobs mocks the ListSyncJobs method.
func (m *MockStore) ListSyncJobs(ctx context.Context, f JobFilter) ([]*models.SyncJob, int64, error) {
	args := m.Called(ctx, f)
	var out []*models.SyncJob
	if args.Get(0) != nil {
		out = args.Get(0).([]*models.SyncJob)
	}
	return out, args.Get(1).(int64), args.Error(2)
}

// LatestSyncJob mocks the LatestSyncJob method.
func (m *MockStore) LatestSyncJob(ctx context.Context, jobType string) (*models.SyncJob, error) {
	args := m.Called(ctx, jobType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncJob), args.Error(1)
}

// DeleteSyncJobsBefore mocks the DeleteSyncJobsBefore method.
func (m *MockStore) DeleteSyncJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// UpsertClusterInfo mocks the UpsertClusterInfo method.
func (m *MockStore) UpsertClusterInfo(ctx context.Context, info *models.ClusterInfo) error {
	args := m.Called(ctx, info)
	return args.Error(0)
}

// GetClusterInfo mocks the GetClusterInfo method.
func (m *MockStore) GetClusterInfo(ctx context.Context, clusterType string) (*models.ClusterInfo, error) {
	args := m.Called(ctx, clusterType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClusterInfo), args.Error(1)
}

// Counts mocks the Counts method.
func (m *MockStore) Counts(ctx context.Context) (*models.StoreCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoreCounts), args.Error(1)
}
