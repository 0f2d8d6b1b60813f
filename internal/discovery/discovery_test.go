package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

func testConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		DefaultDomain: "apps.example.com",
		DefaultPort:   8000,
		PVCSize:       "1Gi",
		StorageClass:  "standard",
	}
}

func deploymentResource(name, namespace string, containers ...models.ContainerInfo) *models.ClusterResource {
	return &models.ClusterResource{
		UID:       "uid-" + namespace + "-" + name,
		Kind:      models.KindDeployment,
		Name:      name,
		Namespace: namespace,
		Labels:    map[string]string{"app": name},
		Deployment: &models.DeploymentInfo{
			Replicas:      2,
			ReadyReplicas: 2,
			Containers:    containers,
		},
		LastObserved: time.Now().UTC(),
	}
}

func TestDiscoverServicesSynthesizesMetadata(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.UpsertResource(ctx, deploymentResource("orders", "prod", models.ContainerInfo{
		Name:          "orders",
		Image:         "registry.example.com/orders:v3",
		MemoryRequest: "128Mi",
		CPURequest:    "100m",
	})))

	d := NewDiscoverer(st, testConfig(), zap.NewNop())
	created, err := d.DiscoverServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	svc, err := st.GetService(ctx, "orders", "prod")
	require.NoError(t, err)
	require.NotNil(t, svc)

	assert.Equal(t, "orders", svc.ServiceName)
	assert.Equal(t, "prod", svc.Namespace)
	assert.Equal(t, "orders", svc.ProjectName)
	assert.Equal(t, "api", svc.AppName)
	assert.Equal(t, "registry.example.com/orders:v3", svc.DockerImage)
	assert.True(t, svc.DiscoveredFromK8s)
	assert.Equal(t, models.K8sStatusRunning, svc.Status)
	assert.Equal(t, models.HealthUnknown, svc.HealthStatus)
	assert.Equal(t, "orders-app", svc.ArgoCDAppName)
	assert.Equal(t, "https://orders.apps.example.com", svc.IngressURL)

	// Explicit values from the Deployment win, gaps take defaults.
	assert.Equal(t, "128Mi", svc.DeployConfig.MemoryRequest)
	assert.Equal(t, "512Mi", svc.DeployConfig.MemoryLimit)
	assert.Equal(t, "100m", svc.DeployConfig.CPURequest)
	assert.Equal(t, "500m", svc.DeployConfig.CPULimit)
	assert.Equal(t, int32(2), svc.DeployConfig.Replicas)
	assert.Equal(t, int32(8000), svc.DeployConfig.Port)
	assert.Equal(t, "orders.apps.example.com", svc.DeployConfig.Domain)
	assert.True(t, svc.DeployConfig.EnableTLS)
}

func TestDiscoverServicesProjectNameUnderscores(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.UpsertResource(ctx, deploymentResource("user-profile-api", "prod", models.ContainerInfo{
		Name: "app", Image: "registry/user-profile-api:v1",
	})))

	d := NewDiscoverer(st, testConfig(), zap.NewNop())
	_, err := d.DiscoverServices(ctx)
	require.NoError(t, err)

	svc, err := st.GetService(ctx, "user-profile-api", "prod")
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, "user_profile_api", svc.ProjectName)
}

func TestDiscoverServicesSkipsExistingAndEmpty(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Already-registered service: not duplicated.
	require.NoError(t, st.InsertService(ctx, &models.ServiceMetadata{
		ServiceName: "orders", Namespace: "prod", IngressURL: "https://custom.example.com",
	}))
	require.NoError(t, st.UpsertResource(ctx, deploymentResource("orders", "prod", models.ContainerInfo{
		Name: "orders", Image: "registry/orders:v3",
	})))

	// Deployment with no containers: skipped with a warning.
	require.NoError(t, st.UpsertResource(ctx, deploymentResource("empty", "prod")))

	d := NewDiscoverer(st, testConfig(), zap.NewNop())
	created, err := d.DiscoverServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	// The pre-existing record kept its operator-set fields.
	svc, err := st.GetService(ctx, "orders", "prod")
	require.NoError(t, err)
	assert.Equal(t, "https://custom.example.com", svc.IngressURL)

	missing, err := st.GetService(ctx, "empty", "prod")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRefreshServicesUpdatesOnlyK8sFields(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.InsertService(ctx, &models.ServiceMetadata{
		ServiceName: "orders",
		Namespace:   "prod",
		DockerImage: "registry/orders:v1",
		IngressURL:  "https://orders.custom.example.com",
		DeployConfig: models.DeployConfig{
			MemoryRequest: "64Mi",
			Domain:        "custom.example.com",
			Port:          9000,
		},
	}))
	require.NoError(t, st.UpsertResource(ctx, deploymentResource("orders", "prod", models.ContainerInfo{
		Name:          "orders",
		Image:         "registry/orders:v2",
		MemoryRequest: "128Mi",
	})))

	d := NewDiscoverer(st, testConfig(), zap.NewNop())
	updated, err := d.RefreshServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	svc, err := st.GetService(ctx, "orders", "prod")
	require.NoError(t, err)

	assert.Equal(t, "registry/orders:v2", svc.DockerImage)
	assert.Equal(t, "128Mi", svc.DeployConfig.MemoryRequest)
	assert.Equal(t, int32(2), svc.DeployConfig.Replicas)
	require.NotNil(t, svc.LastK8sSync)

	// Operator-owned fields survive the refresh.
	assert.Equal(t, "https://orders.custom.example.com", svc.IngressURL)
	assert.Equal(t, "custom.example.com", svc.DeployConfig.Domain)
	assert.Equal(t, int32(9000), svc.DeployConfig.Port)
}

func TestRefreshServicesIgnoresUnknownDeployments(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.UpsertResource(ctx, deploymentResource("ghost", "prod", models.ContainerInfo{
		Name: "ghost", Image: "registry/ghost:v1",
	})))

	d := NewDiscoverer(st, testConfig(), zap.NewNop())
	updated, err := d.RefreshServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestGetSummary(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.InsertService(ctx, &models.ServiceMetadata{ServiceName: "orders", Namespace: "prod", DiscoveredFromK8s: true}))
	require.NoError(t, st.InsertService(ctx, &models.ServiceMetadata{ServiceName: "billing", Namespace: "prod"}))
	require.NoError(t, st.InsertService(ctx, &models.ServiceMetadata{ServiceName: "payments", Namespace: "staging", DiscoveredFromK8s: true}))

	d := NewDiscoverer(st, testConfig(), zap.NewNop())
	summary, err := d.GetSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalServices)
	assert.Equal(t, int64(2), summary.DiscoveredServices)
	assert.Equal(t, int64(1), summary.ManualServices)
	require.Len(t, summary.ByNamespace, 2)
	assert.Equal(t, "prod", summary.ByNamespace[0].Namespace)
	assert.Equal(t, int64(2), summary.ByNamespace[0].Count)
}
