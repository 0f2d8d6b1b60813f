package cluster

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
)

// ArgoClient talks to the ArgoCD API server over HTTP.
type ArgoClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewArgoClient creates a client for the configured ArgoCD server.
func NewArgoClient(cfg config.ArgoCDConfig, m *metrics.Metrics, logger *zap.Logger) *ArgoClient {
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &ArgoClient{
		baseURL:   strings.TrimRight(cfg.ServerURL, "/"),
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout.Duration,
			Transport: transport,
		},
		metrics: m,
		logger:  logger,
	}
}

// Wire types for the subset of the ArgoCD application payload the sync
// engine consumes.
type argoAppList struct {
	Items []argoApp `json:"items"`
}

type argoApp struct {
	Metadata struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
		UID       string `json:"uid"`
	} `json:"metadata"`
	Spec struct {
		Project string `json:"project"`
		Source  struct {
			RepoURL        string `json:"repoURL"`
			Path           string `json:"path"`
			TargetRevision string `json:"targetRevision"`
		} `json:"source"`
		Destination struct {
			Server    string `json:"server"`
			Namespace string `json:"namespace"`
		} `json:"destination"`
	} `json:"spec"`
	Status struct {
		Health struct {
			Status string `json:"status"`
		} `json:"health"`
		Sync struct {
			Status string `json:"status"`
		} `json:"sync"`
		Resources []struct {
			Kind      string `json:"kind"`
			Name      string `json:"name"`
			Namespace string `json:"namespace"`
			Status    string `json:"status"`
			Health    struct {
				Status string `json:"status"`
			} `json:"health"`
		} `json:"resources"`
		Conditions []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"conditions"`
	} `json:"status"`
}

func (c *ArgoClient) do(ctx context.Context, operation, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ArgoCDRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.metrics.ArgoCDRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// ListApplications fetches all applications and normalizes them.
func (c *ArgoClient) ListApplications(ctx context.Context) ([]*models.Application, error) {
	data, err := c.do(ctx, "list_applications", http.MethodGet, "/api/v1/applications", nil)
	if err != nil {
		return nil, err
	}

	var list argoAppList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding applications: %w", err)
	}

	now := time.Now().UTC()
	out := make([]*models.Application, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, normalizeArgoApp(item, now))
	}
	return out, nil
}

// Summary derives a controller-level snapshot from an already-fetched
// application list, adding the server version.
func (c *ArgoClient) Summary(ctx context.Context, apps []*models.Application) *models.ArgoCDSummary {
	summary := &models.ArgoCDSummary{ApplicationsCount: len(apps)}
	for _, app := range apps {
		switch app.Health {
		case models.ArgoHealthHealthy:
			summary.HealthyApps++
		case models.ArgoHealthDegraded:
			summary.DegradedApps++
		}
		if app.Sync == "OutOfSync" {
			summary.OutOfSyncApps++
		}
	}

	if data, err := c.do(ctx, "version", http.MethodGet, "/api/version", nil); err == nil {
		var version struct {
			Version string `json:"Version"`
		}
		if json.Unmarshal(data, &version) == nil {
			summary.Version = version.Version
		}
	} else {
		c.logger.Warn("failed to read argocd version", zap.Error(err))
	}

	return summary
}

// SyncApplication triggers a sync of one application.
func (c *ArgoClient) SyncApplication(ctx context.Context, name string) error {
	payload := map[string]interface{}{
		"prune":        false,
		"syncStrategy": map[string]interface{}{"apply": map[string]interface{}{}},
	}
	if _, err := c.do(ctx, "sync_application", http.MethodPost, "/api/v1/applications/"+name+"/sync", payload); err != nil {
		return fmt.Errorf("syncing application %s: %w", name, err)
	}
	c.logger.Info("triggered application sync", zap.String("application", name))
	return nil
}

// RefreshApplicationSet forces a refresh of the named ApplicationSet so newly
// added directories generate applications without waiting for the controller's
// own requeue.
func (c *ArgoClient) RefreshApplicationSet(ctx context.Context, name string) error {
	if _, err := c.do(ctx, "refresh_applicationset", http.MethodPost, "/api/v1/applicationsets/"+name+"/refresh", map[string]interface{}{}); err != nil {
		return fmt.Errorf("refreshing applicationset %s: %w", name, err)
	}
	c.logger.Info("triggered applicationset refresh", zap.String("applicationset", name))
	return nil
}

func normalizeArgoApp(item argoApp, now time.Time) *models.Application {
	app := &models.Application{
		UID:       item.Metadata.UID,
		Name:      item.Metadata.Name,
		Namespace: item.Metadata.Namespace,
		Project:   item.Spec.Project,
		Source: models.ApplicationSource{
			RepoURL:        item.Spec.Source.RepoURL,
			Path:           item.Spec.Source.Path,
			TargetRevision: item.Spec.Source.TargetRevision,
		},
		Destination: models.ApplicationDestination{
			Server:    item.Spec.Destination.Server,
			Namespace: item.Spec.Destination.Namespace,
		},
		Health:       item.Status.Health.Status,
		Sync:         item.Status.Sync.Status,
		SyncStatus:   "synced",
		LastObserved: now,
	}
	if app.Health == "" {
		app.Health = models.ArgoHealthUnknown
	}

	for _, res := range item.Status.Resources {
		app.Resources = append(app.Resources, models.ApplicationResource{
			Kind:      res.Kind,
			Name:      res.Name,
			Namespace: res.Namespace,
			Status:    res.Status,
			Health:    res.Health.Status,
		})
	}
	for _, cond := range item.Status.Conditions {
		app.Conditions = append(app.Conditions, models.ApplicationCondition{
			Type:    cond.Type,
			Message: cond.Message,
		})
	}
	return app
}
