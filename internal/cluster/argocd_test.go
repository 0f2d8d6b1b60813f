package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
)

const appListResponse = `{
  "items": [
    {
      "metadata": {"name": "orders-app", "namespace": "argocd", "uid": "app-uid-1"},
      "spec": {
        "project": "default",
        "source": {"repoURL": "https://github.com/acme/manifests", "path": "apps/orders", "targetRevision": "HEAD"},
        "destination": {"server": "https://kubernetes.default.svc", "namespace": "prod"}
      },
      "status": {
        "health": {"status": "Healthy"},
        "sync": {"status": "Synced"},
        "resources": [
          {"kind": "Deployment", "name": "orders", "namespace": "prod", "status": "Synced", "health": {"status": "Healthy"}}
        ],
        "conditions": []
      }
    },
    {
      "metadata": {"name": "billing-app", "namespace": "argocd", "uid": "app-uid-2"},
      "spec": {"project": "default", "source": {}, "destination": {}},
      "status": {"health": {"status": "Degraded"}, "sync": {"status": "OutOfSync"}}
    },
    {
      "metadata": {"name": "new-app", "namespace": "argocd", "uid": "app-uid-3"},
      "spec": {"project": "default", "source": {}, "destination": {}},
      "status": {"health": {}, "sync": {}}
    }
  ]
}`

func newTestArgoClient(t *testing.T, handler http.Handler) *ArgoClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewArgoClient(config.ArgoCDConfig{
		ServerURL: server.URL,
		AuthToken: "test-token",
		Timeout:   config.Duration{Duration: 5 * time.Second},
	}, metrics.NewMetrics(prometheus.NewRegistry()), zap.NewNop())
}

func TestListApplications(t *testing.T) {
	client := newTestArgoClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/applications", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(appListResponse))
	}))

	apps, err := client.ListApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 3)

	orders := apps[0]
	assert.Equal(t, "app-uid-1", orders.UID)
	assert.Equal(t, "orders-app", orders.Name)
	assert.Equal(t, "default", orders.Project)
	assert.Equal(t, "apps/orders", orders.Source.Path)
	assert.Equal(t, "prod", orders.Destination.Namespace)
	assert.Equal(t, models.ArgoHealthHealthy, orders.Health)
	assert.Equal(t, "Synced", orders.Sync)
	require.Len(t, orders.Resources, 1)
	assert.Equal(t, "Deployment", orders.Resources[0].Kind)
	assert.Equal(t, models.ArgoHealthHealthy, orders.Resources[0].Health)

	// A missing health status maps to Unknown rather than empty.
	assert.Equal(t, models.ArgoHealthUnknown, apps[2].Health)
}

func TestListApplicationsServerError(t *testing.T) {
	client := newTestArgoClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))

	_, err := client.ListApplications(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, float64(1),
		testutil.ToFloat64(client.metrics.ArgoCDRequestsTotal.WithLabelValues("list_applications", "403")))
}

func TestSummaryCountsVerdicts(t *testing.T) {
	client := newTestArgoClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.Write([]byte(`{"Version": "v2.9.3"}`))
			return
		}
		http.NotFound(w, r)
	}))

	apps := []*models.Application{
		{Name: "a", Health: models.ArgoHealthHealthy, Sync: "Synced"},
		{Name: "b", Health: models.ArgoHealthDegraded, Sync: "OutOfSync"},
		{Name: "c", Health: models.ArgoHealthProgressing, Sync: "OutOfSync"},
	}
	summary := client.Summary(context.Background(), apps)

	assert.Equal(t, "v2.9.3", summary.Version)
	assert.Equal(t, 3, summary.ApplicationsCount)
	assert.Equal(t, 1, summary.HealthyApps)
	assert.Equal(t, 1, summary.DegradedApps)
	assert.Equal(t, 2, summary.OutOfSyncApps)
}

func TestSyncApplication(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}
	client := newTestArgoClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.SyncApplication(context.Background(), "orders-app"))
	assert.Equal(t, "/api/v1/applications/orders-app/sync", gotPath)
	assert.Equal(t, false, gotPayload["prune"])
}

func TestRefreshApplicationSet(t *testing.T) {
	var gotPath, gotMethod string
	client := newTestArgoClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.RefreshApplicationSet(context.Background(), "django-apps"))
	assert.Equal(t, "/api/v1/applicationsets/django-apps/refresh", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestSyncApplicationFailure(t *testing.T) {
	client := newTestArgoClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "application not found", http.StatusNotFound)
	}))

	err := client.SyncApplication(context.Background(), "ghost-app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost-app")
}
