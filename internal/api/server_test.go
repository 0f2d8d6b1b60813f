package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/discovery"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
	"github.com/quanmbl4255142/devportal-sync/internal/webhook"
)

type fakeSyncer struct {
	running      bool
	fulls        int
	incrementals int
	syncErr      error
}

func (f *fakeSyncer) StartScheduler(context.Context) bool {
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeSyncer) StopScheduler()  { f.running = false }
func (f *fakeSyncer) IsRunning() bool { return f.running }

func (f *fakeSyncer) FullSync(context.Context) error {
	f.fulls++
	return f.syncErr
}

func (f *fakeSyncer) IncrementalSync(context.Context) error {
	f.incrementals++
	return f.syncErr
}

func (f *fakeSyncer) Status(context.Context) (*models.SyncStatus, error) {
	return &models.SyncStatus{IsRunning: f.running, SyncInterval: "5m0s"}, nil
}

type fakeWebhook struct {
	eventType string
	signature string
	payload   []byte
	result    *webhook.Result
	err       error
}

func (f *fakeWebhook) Handle(_ context.Context, eventType string, payload []byte, signature string) (*webhook.Result, error) {
	f.eventType = eventType
	f.payload = payload
	f.signature = signature
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEvaluator struct {
	verdict *models.ServiceHealth
	err     error
}

func (f *fakeEvaluator) EvaluateService(_ context.Context, name, namespace string) (*models.ServiceHealth, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.verdict != nil {
		return f.verdict, nil
	}
	return &models.ServiceHealth{ServiceName: name, Namespace: namespace, OverallStatus: models.HealthHealthy}, nil
}

type fakeDiscovery struct {
	summary *discovery.Summary
}

func (f *fakeDiscovery) GetSummary(context.Context) (*discovery.Summary, error) {
	return f.summary, nil
}

type testServer struct {
	server  *Server
	store   *store.MemoryStore
	syncer  *fakeSyncer
	webhook *fakeWebhook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	sc := &fakeSyncer{}
	wh := &fakeWebhook{result: &webhook.Result{Status: "success"}}
	srv := NewServer(st, sc, wh, &fakeEvaluator{}, &fakeDiscovery{
		summary: &discovery.Summary{TotalServices: 2, DiscoveredServices: 1, ManualServices: 1},
	}, config.APIConfig{Port: 0}, zap.NewNop())
	return &testServer{server: srv, store: st, syncer: sc, webhook: wh}
}

func (ts *testServer) do(t *testing.T, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhookDelivery(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/webhook/github", `{"zen": "ok"}`, map[string]string{
		"X-GitHub-Event":      "push",
		"X-Hub-Signature-256": "sha256=abc",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "push", ts.webhook.eventType)
	assert.Equal(t, "sha256=abc", ts.webhook.signature)
	assert.Equal(t, `{"zen": "ok"}`, string(ts.webhook.payload))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWebhookErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"bad signature", webhook.ErrInvalidSignature, http.StatusUnauthorized},
		{"bad payload", webhook.ErrInvalidPayload, http.StatusBadRequest},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.webhook.err = tt.err

			rec := ts.do(t, http.MethodPost, "/webhook/github", `{}`, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestSyncStartStop(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sync/start", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Starting again while running conflicts.
	rec = ts.do(t, http.MethodPost, "/api/sync/start", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sync/stop", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.syncer.running)
}

func TestSyncTrigger(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sync/trigger?type=full", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.syncer.fulls)

	// Defaults to incremental.
	rec = ts.do(t, http.MethodPost, "/api/sync/trigger", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.syncer.incrementals)

	rec = ts.do(t, http.MethodPost, "/api/sync/trigger?type=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncTriggerFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.syncer.syncErr = assert.AnError

	rec := ts.do(t, http.MethodPost, "/api/sync/trigger?type=full", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSyncStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/sync/status", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["is_running"])
	assert.Equal(t, "5m0s", body["sync_interval"])
}

func TestListResourcesPagination(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for _, uid := range []string{"a", "b", "c"} {
		require.NoError(t, ts.store.UpsertResource(ctx, &models.ClusterResource{
			UID: uid, Kind: models.KindDeployment, Name: "svc-" + uid, Namespace: "prod",
		}))
	}

	rec := ts.do(t, http.MethodGet, "/api/resources?kind=Deployment&limit=2", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["items"], 2)
	assert.Equal(t, float64(2), body["limit"])
}

func TestListApplications(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.UpsertApplication(ctx, &models.Application{
		UID: "a1", Name: "orders-app", Health: models.ArgoHealthHealthy,
	}))
	require.NoError(t, ts.store.UpsertApplication(ctx, &models.Application{
		UID: "a2", Name: "billing-app", Health: models.ArgoHealthDegraded,
	}))

	rec := ts.do(t, http.MethodGet, "/api/applications?health=Healthy", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])
}

func TestServiceLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.InsertService(ctx, &models.ServiceMetadata{
		ServiceName: "orders", Namespace: "prod",
	}))

	rec := ts.do(t, http.MethodGet, "/api/services/prod/orders", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "orders", decode(t, rec)["service_name"])

	rec = ts.do(t, http.MethodGet, "/api/services/prod/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/services/prod/orders", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/services/prod/orders", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServiceHealthDrilldown(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.InsertService(context.Background(), &models.ServiceMetadata{
		ServiceName: "orders", Namespace: "prod",
	}))

	rec := ts.do(t, http.MethodGet, "/api/services/prod/orders/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, models.HealthHealthy, body["overall_status"])

	// The drill-down 404s before evaluating an unknown service.
	rec = ts.do(t, http.MethodGet, "/api/services/prod/missing/health", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListHealthByNamespace(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.UpsertServiceHealth(ctx, &models.ServiceHealth{
		ServiceName: "orders", Namespace: "prod", OverallStatus: models.HealthHealthy,
	}))
	require.NoError(t, ts.store.UpsertServiceHealth(ctx, &models.ServiceHealth{
		ServiceName: "billing", Namespace: "staging", OverallStatus: models.HealthUnknown,
	}))

	rec := ts.do(t, http.MethodGet, "/api/health?namespace=prod", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])
}

func TestSyncJobs(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.InsertSyncJob(ctx, &models.SyncJob{
		JobID: "full_sync_20260101_000000", JobType: models.JobTypeFull,
		Status: models.JobStatusCompleted, StartedAt: time.Now().UTC(),
	}))

	rec := ts.do(t, http.MethodGet, "/api/sync/jobs?type=full_sync", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])

	rec = ts.do(t, http.MethodGet, "/api/sync/jobs/full_sync_20260101_000000", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/sync/jobs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiscoverySummary(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/discovery/summary", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["total_services"])
}

func TestClusterInfo(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.UpsertClusterInfo(context.Background(), &models.ClusterInfo{
		ClusterType: models.ClusterTypeK8s,
		Info:        map[string]interface{}{"nodes_count": 3},
		LastSync:    time.Now().UTC(),
	}))

	rec := ts.do(t, http.MethodGet, "/api/cluster/k8s", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/cluster/argocd", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/cluster/openstack", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
