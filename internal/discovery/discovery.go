// Package discovery synthesizes service metadata records from live
// Deployments and keeps the Kubernetes-derived fields of existing records
// fresh. Discovery never deletes a service record; removal is an explicit
// operator action.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

// Fallback resource values applied when a Deployment omits requests or limits.
const (
	defaultMemoryRequest = "256Mi"
	defaultMemoryLimit   = "512Mi"
	defaultCPURequest    = "250m"
	defaultCPULimit      = "500m"
)

// Summary is the operator-facing discovery report.
type Summary struct {
	TotalServices      int64                          `json:"total_services"`
	DiscoveredServices int64                          `json:"discovered_services"`
	ManualServices     int64                          `json:"manual_services"`
	ByNamespace        []models.NamespaceServiceCount `json:"by_namespace"`
}

// Discoverer synthesizes and refreshes service metadata from stored
// Deployment observations.
type Discoverer struct {
	store  store.Store
	cfg    config.DiscoveryConfig
	logger *zap.Logger
}

// NewDiscoverer creates a Discoverer with the provided dependencies.
func NewDiscoverer(st store.Store, cfg config.DiscoveryConfig, logger *zap.Logger) *Discoverer {
	return &Discoverer{store: st, cfg: cfg, logger: logger}
}

// DiscoverServices creates metadata records for Deployments that have no
// corresponding service record yet. One bad Deployment never aborts the pass;
// it is logged and skipped. Returns the number of records created.
func (d *Discoverer) DiscoverServices(ctx context.Context) (int, error) {
	deployments, _, err := d.store.ListResources(ctx, store.ResourceFilter{Kind: models.KindDeployment})
	if err != nil {
		return 0, fmt.Errorf("listing deployments: %w", err)
	}

	created := 0
	for _, dep := range deployments {
		existing, err := d.store.GetService(ctx, dep.Name, dep.Namespace)
		if err != nil {
			d.logger.Error("failed to check for existing service",
				zap.String("service", dep.Name),
				zap.String("namespace", dep.Namespace),
				zap.Error(err))
			continue
		}
		if existing != nil {
			continue
		}

		svc := d.synthesize(dep)
		if svc == nil {
			d.logger.Warn("skipping deployment with no containers",
				zap.String("deployment", dep.Name),
				zap.String("namespace", dep.Namespace))
			continue
		}

		if err := d.store.InsertService(ctx, svc); err != nil {
			d.logger.Error("failed to insert discovered service",
				zap.String("service", svc.ServiceName),
				zap.String("namespace", svc.Namespace),
				zap.Error(err))
			continue
		}
		created++
		d.logger.Info("discovered new service",
			zap.String("service", svc.ServiceName),
			zap.String("namespace", svc.Namespace),
			zap.String("image", svc.DockerImage))
	}

	d.logger.Info("service discovery completed", zap.Int("created", created))
	return created, nil
}

// RefreshServices re-reads the Kubernetes-derived fields of existing service
// records from stored Deployments. Operator-set fields are never touched.
// Returns the number of records refreshed.
func (d *Discoverer) RefreshServices(ctx context.Context) (int, error) {
	deployments, _, err := d.store.ListResources(ctx, store.ResourceFilter{Kind: models.KindDeployment})
	if err != nil {
		return 0, fmt.Errorf("listing deployments: %w", err)
	}

	updated := 0
	now := time.Now().UTC()
	for _, dep := range deployments {
		existing, err := d.store.GetService(ctx, dep.Name, dep.Namespace)
		if err != nil || existing == nil {
			continue
		}
		if dep.Deployment == nil || len(dep.Deployment.Containers) == 0 {
			continue
		}

		main := dep.Deployment.Containers[0]
		upd := &models.ServiceK8sUpdate{
			DockerImage:   orDefault(main.Image, existing.DockerImage),
			MemoryRequest: orDefault(main.MemoryRequest, existing.DeployConfig.MemoryRequest),
			MemoryLimit:   orDefault(main.MemoryLimit, existing.DeployConfig.MemoryLimit),
			CPURequest:    orDefault(main.CPURequest, existing.DeployConfig.CPURequest),
			CPULimit:      orDefault(main.CPULimit, existing.DeployConfig.CPULimit),
			Replicas:      dep.Deployment.Replicas,
			Labels:        dep.Labels,
			Annotations:   dep.Annotations,
		}

		if err := d.store.UpdateServiceFromK8s(ctx, dep.Name, dep.Namespace, upd, now); err != nil {
			d.logger.Error("failed to refresh service from cluster state",
				zap.String("service", dep.Name),
				zap.String("namespace", dep.Namespace),
				zap.Error(err))
			continue
		}
		updated++
	}

	d.logger.Info("service refresh completed", zap.Int("updated", updated))
	return updated, nil
}

// GetSummary reports discovery totals and the per-namespace breakdown.
func (d *Discoverer) GetSummary(ctx context.Context) (*Summary, error) {
	_, total, err := d.store.ListServices(ctx, store.ServiceFilter{})
	if err != nil {
		return nil, fmt.Errorf("counting services: %w", err)
	}
	_, discovered, err := d.store.ListServices(ctx, store.ServiceFilter{DiscoveredOnly: true})
	if err != nil {
		return nil, fmt.Errorf("counting discovered services: %w", err)
	}
	byNamespace, err := d.store.CountServicesByNamespace(ctx)
	if err != nil {
		return nil, fmt.Errorf("grouping services by namespace: %w", err)
	}

	return &Summary{
		TotalServices:      total,
		DiscoveredServices: discovered,
		ManualServices:     total - discovered,
		ByNamespace:        byNamespace,
	}, nil
}

// synthesize builds a new metadata record from a Deployment observation.
// Returns nil when the Deployment carries no containers.
func (d *Discoverer) synthesize(dep *models.ClusterResource) *models.ServiceMetadata {
	if dep.Deployment == nil || len(dep.Deployment.Containers) == 0 {
		return nil
	}

	// The first container is treated as the main one.
	main := dep.Deployment.Containers[0]
	name := dep.Name
	now := time.Now().UTC()

	return &models.ServiceMetadata{
		ServiceName: name,
		Namespace:   dep.Namespace,
		ProjectName: strings.ReplaceAll(name, "-", "_"),
		AppName:     "api",
		DockerImage: orDefault(main.Image, "unknown"),
		DeployConfig: models.DeployConfig{
			MemoryRequest:         orDefault(main.MemoryRequest, defaultMemoryRequest),
			MemoryLimit:           orDefault(main.MemoryLimit, defaultMemoryLimit),
			CPURequest:            orDefault(main.CPURequest, defaultCPURequest),
			CPULimit:              orDefault(main.CPULimit, defaultCPULimit),
			Replicas:              dep.Deployment.Replicas,
			Port:                  d.cfg.DefaultPort,
			PVCSize:               d.cfg.PVCSize,
			StorageClass:          d.cfg.StorageClass,
			Domain:                fmt.Sprintf("%s.%s", name, d.cfg.DefaultDomain),
			EnableTLS:             true,
			LivenessInitialDelay:  30,
			ReadinessInitialDelay: 5,
		},
		Status:            models.K8sStatusRunning,
		HealthStatus:      models.HealthUnknown,
		ArgoCDAppName:     name + "-app",
		IngressURL:        fmt.Sprintf("https://%s.%s", name, d.cfg.DefaultDomain),
		DiscoveredFromK8s: true,
		Labels:            dep.Labels,
		Annotations:       dep.Annotations,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
