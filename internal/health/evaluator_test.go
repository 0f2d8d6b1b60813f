package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

func TestOverall(t *testing.T) {
	tests := []struct {
		name       string
		k8sStatus  string
		argoStatus string
		want       string
	}{
		{"both healthy", models.K8sStatusRunning, models.ArgoHealthHealthy, models.HealthHealthy},
		{"deploying takes precedence over degraded", models.K8sStatusDeploying, models.ArgoHealthDegraded, models.HealthUnknown},
		{"unknown k8s", models.K8sStatusUnknown, models.ArgoHealthHealthy, models.HealthUnknown},
		{"progressing argo", models.K8sStatusRunning, models.ArgoHealthProgressing, models.HealthUnknown},
		{"unknown argo", models.K8sStatusFailed, models.ArgoHealthUnknown, models.HealthUnknown},
		{"failed and degraded", models.K8sStatusFailed, models.ArgoHealthDegraded, models.HealthUnhealthy},
		{"running but degraded", models.K8sStatusRunning, models.ArgoHealthDegraded, models.HealthUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.k8sStatus, tt.argoStatus))
		})
	}
}

func storedDeployment(name, namespace string, replicas, ready int32) *models.ClusterResource {
	return &models.ClusterResource{
		UID:       "dep-" + namespace + "-" + name,
		Kind:      models.KindDeployment,
		Name:      name,
		Namespace: namespace,
		Deployment: &models.DeploymentInfo{
			Replicas:      replicas,
			ReadyReplicas: ready,
		},
		Raw: map[string]interface{}{
			"replicas":       replicas,
			"ready_replicas": ready,
		},
		LastObserved: time.Now().UTC(),
	}
}

func TestEvaluateServiceHealthy(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.UpsertResource(ctx, storedDeployment("orders", "prod", 2, 2)))
	require.NoError(t, st.UpsertApplication(ctx, &models.Application{
		UID: "a1", Name: "orders-app", Health: models.ArgoHealthHealthy, Sync: "Synced",
	}))

	e := NewEvaluator(st, zap.NewNop())
	verdict, err := e.EvaluateService(ctx, "orders", "prod")
	require.NoError(t, err)

	assert.Equal(t, models.K8sStatusRunning, verdict.K8sStatus)
	assert.Equal(t, models.ArgoHealthHealthy, verdict.ArgoCDStatus)
	assert.Equal(t, models.HealthHealthy, verdict.OverallStatus)
	assert.False(t, verdict.LastCheck.IsZero())
	assert.NotNil(t, verdict.Details.Deployment)
	assert.Equal(t, "orders-app", verdict.Details.Application["name"])
}

func TestEvaluateServiceReplicaStates(t *testing.T) {
	tests := []struct {
		name     string
		replicas int32
		ready    int32
		want     string
	}{
		{"all ready", 3, 3, models.K8sStatusRunning},
		{"partially ready", 3, 1, models.K8sStatusDeploying},
		{"none ready", 3, 0, models.K8sStatusFailed},
		{"scaled to zero", 0, 0, models.K8sStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			ctx := context.Background()
			require.NoError(t, st.UpsertResource(ctx, storedDeployment("orders", "prod", tt.replicas, tt.ready)))

			e := NewEvaluator(st, zap.NewNop())
			verdict, err := e.EvaluateService(ctx, "orders", "prod")
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict.K8sStatus)
		})
	}
}

func TestEvaluateServiceNoDeploymentNoApp(t *testing.T) {
	st := store.NewMemoryStore()

	e := NewEvaluator(st, zap.NewNop())
	verdict, err := e.EvaluateService(context.Background(), "ghost", "prod")
	require.NoError(t, err)

	assert.Equal(t, models.K8sStatusUnknown, verdict.K8sStatus)
	assert.Equal(t, models.ArgoHealthUnknown, verdict.ArgoCDStatus)
	assert.Equal(t, models.HealthUnknown, verdict.OverallStatus)
}

func TestEvaluateServiceGathersNamedDetails(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.UpsertResource(ctx, storedDeployment("orders", "prod", 2, 2)))
	require.NoError(t, st.UpsertResource(ctx, &models.ClusterResource{
		UID: "svc-1", Kind: models.KindService, Name: "orders-service", Namespace: "prod",
		Raw: map[string]interface{}{"type": "ClusterIP"},
	}))
	require.NoError(t, st.UpsertResource(ctx, &models.ClusterResource{
		UID: "ing-1", Kind: models.KindIngress, Name: "orders-ingress", Namespace: "prod",
		Raw: map[string]interface{}{"hosts": []string{"orders.example.com"}},
	}))
	// A service resource in another namespace must not leak into the details.
	require.NoError(t, st.UpsertResource(ctx, &models.ClusterResource{
		UID: "svc-2", Kind: models.KindService, Name: "orders-service", Namespace: "staging",
		Raw: map[string]interface{}{"type": "NodePort"},
	}))

	e := NewEvaluator(st, zap.NewNop())
	verdict, err := e.EvaluateService(ctx, "orders", "prod")
	require.NoError(t, err)

	assert.Equal(t, "ClusterIP", verdict.Details.Service["type"])
	assert.NotNil(t, verdict.Details.Ingress)
	assert.Nil(t, verdict.Details.Application)
}

func TestEvaluateAllPersistsVerdicts(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.InsertService(ctx, &models.ServiceMetadata{ServiceName: "orders", Namespace: "prod"}))
	require.NoError(t, st.InsertService(ctx, &models.ServiceMetadata{ServiceName: "billing", Namespace: "prod"}))
	require.NoError(t, st.UpsertResource(ctx, storedDeployment("orders", "prod", 2, 2)))
	require.NoError(t, st.UpsertResource(ctx, storedDeployment("billing", "prod", 2, 0)))
	require.NoError(t, st.UpsertApplication(ctx, &models.Application{
		UID: "a1", Name: "orders-app", Health: models.ArgoHealthHealthy,
	}))
	require.NoError(t, st.UpsertApplication(ctx, &models.Application{
		UID: "a2", Name: "billing-app", Health: models.ArgoHealthDegraded,
	}))

	e := NewEvaluator(st, zap.NewNop())
	evaluated, err := e.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, evaluated)

	orders, err := st.GetServiceHealth(ctx, "orders", "prod")
	require.NoError(t, err)
	require.NotNil(t, orders)
	assert.Equal(t, models.HealthHealthy, orders.OverallStatus)

	billing, err := st.GetServiceHealth(ctx, "billing", "prod")
	require.NoError(t, err)
	require.NotNil(t, billing)
	assert.Equal(t, models.HealthUnhealthy, billing.OverallStatus)

	// The denormalized field on the service record follows the verdict.
	svc, err := st.GetService(ctx, "billing", "prod")
	require.NoError(t, err)
	assert.Equal(t, models.HealthUnhealthy, svc.HealthStatus)
}

func TestEvaluateAllIsolatesFailures(t *testing.T) {
	mockSt := &store.MockStore{}
	ctx := context.Background()

	services := []*models.ServiceMetadata{
		{ServiceName: "broken", Namespace: "prod"},
		{ServiceName: "orders", Namespace: "prod"},
	}
	mockSt.On("ListServices", ctx, store.ServiceFilter{}).Return(services, int64(2), nil)

	// The first service fails at the resource listing stage.
	mockSt.On("ListResources", ctx, store.ResourceFilter{Kind: models.KindDeployment, Namespace: "prod"}).
		Return(nil, int64(0), assert.AnError).Once()

	// The second service evaluates cleanly.
	mockSt.On("ListResources", ctx, store.ResourceFilter{Kind: models.KindDeployment, Namespace: "prod"}).
		Return([]*models.ClusterResource{storedDeployment("orders", "prod", 1, 1)}, int64(1), nil)
	mockSt.On("FindApplicationForService", ctx, "orders").
		Return(&models.Application{Name: "orders-app", Health: models.ArgoHealthHealthy}, nil)
	mockSt.On("ListResources", ctx, store.ResourceFilter{Kind: models.KindService, Namespace: "prod"}).
		Return(nil, int64(0), nil)
	mockSt.On("ListResources", ctx, store.ResourceFilter{Kind: models.KindIngress, Namespace: "prod"}).
		Return(nil, int64(0), nil)
	mockSt.On("UpsertServiceHealth", ctx, mock.AnythingOfType("*models.ServiceHealth")).Return(nil)
	mockSt.On("UpdateServiceHealthStatus", ctx, "orders", "prod", models.HealthHealthy).Return(nil)

	e := NewEvaluator(mockSt, zap.NewNop())
	evaluated, err := e.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evaluated)
	mockSt.AssertExpectations(t)
}
