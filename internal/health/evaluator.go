// Package health derives a per-service health verdict from the two status
// sources the store holds: the observed Deployment state and the GitOps
// application health.
package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

// Evaluator computes and persists health verdicts for registered services.
type Evaluator struct {
	store  store.Store
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator over the given store.
func NewEvaluator(st store.Store, logger *zap.Logger) *Evaluator {
	return &Evaluator{store: st, logger: logger}
}

// Overall combines the two status sources into one verdict. The unknown
// check runs before the unhealthy fallback: an in-flight rollout is not a
// failure.
func Overall(k8sStatus, argoStatus string) string {
	if k8sStatus == models.K8sStatusRunning && argoStatus == models.ArgoHealthHealthy {
		return models.HealthHealthy
	}
	if k8sStatus == models.K8sStatusDeploying || k8sStatus == models.K8sStatusUnknown ||
		argoStatus == models.ArgoHealthProgressing || argoStatus == models.ArgoHealthUnknown {
		return models.HealthUnknown
	}
	return models.HealthUnhealthy
}

// EvaluateAll recomputes the verdict for every registered service. A failure
// on one service is logged and never blocks the rest. Returns the number of
// services evaluated.
func (e *Evaluator) EvaluateAll(ctx context.Context) (int, error) {
	services, _, err := e.store.ListServices(ctx, store.ServiceFilter{})
	if err != nil {
		return 0, fmt.Errorf("listing services: %w", err)
	}

	evaluated := 0
	for _, svc := range services {
		verdict, err := e.EvaluateService(ctx, svc.ServiceName, svc.Namespace)
		if err != nil {
			e.logger.Error("health evaluation failed",
				zap.String("service", svc.ServiceName),
				zap.String("namespace", svc.Namespace),
				zap.Error(err))
			continue
		}
		if err := e.store.UpsertServiceHealth(ctx, verdict); err != nil {
			e.logger.Error("failed to persist health verdict",
				zap.String("service", svc.ServiceName),
				zap.String("namespace", svc.Namespace),
				zap.Error(err))
			continue
		}
		if err := e.store.UpdateServiceHealthStatus(ctx, svc.ServiceName, svc.Namespace, verdict.OverallStatus); err != nil {
			e.logger.Error("failed to update service health status",
				zap.String("service", svc.ServiceName),
				zap.String("namespace", svc.Namespace),
				zap.Error(err))
		}
		evaluated++
	}

	e.logger.Info("health evaluation completed", zap.Int("services", evaluated))
	return evaluated, nil
}

// EvaluateService computes the verdict for one service from stored state,
// without persisting it.
func (e *Evaluator) EvaluateService(ctx context.Context, name, namespace string) (*models.ServiceHealth, error) {
	verdict := &models.ServiceHealth{
		ServiceName: name,
		Namespace:   namespace,
		LastCheck:   time.Now().UTC(),
	}

	deployment, err := e.findResource(ctx, models.KindDeployment, name, namespace)
	if err != nil {
		return nil, err
	}
	verdict.K8sStatus = k8sStatus(deployment)

	app, err := e.store.FindApplicationForService(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("matching application: %w", err)
	}
	if app != nil {
		verdict.ArgoCDStatus = app.Health
	} else {
		verdict.ArgoCDStatus = models.ArgoHealthUnknown
	}

	verdict.OverallStatus = Overall(verdict.K8sStatus, verdict.ArgoCDStatus)
	verdict.Details = e.gatherDetails(ctx, name, namespace, deployment, app)
	return verdict, nil
}

// k8sStatus maps observed Deployment replica counts to a service status.
func k8sStatus(deployment *models.ClusterResource) string {
	if deployment == nil || deployment.Deployment == nil {
		return models.K8sStatusUnknown
	}
	info := deployment.Deployment
	switch {
	case info.ReadyReplicas == info.Replicas && info.Replicas > 0:
		return models.K8sStatusRunning
	case info.ReadyReplicas > 0:
		return models.K8sStatusDeploying
	default:
		return models.K8sStatusFailed
	}
}

// gatherDetails snapshots the payloads the verdict was computed from. The
// Service and Ingress follow the generated naming convention of the
// deployment pipeline.
func (e *Evaluator) gatherDetails(ctx context.Context, name, namespace string, deployment *models.ClusterResource, app *models.Application) models.HealthDetails {
	details := models.HealthDetails{}

	if deployment != nil {
		details.Deployment = deployment.Raw
	}
	if svc, err := e.findResource(ctx, models.KindService, name+"-service", namespace); err == nil && svc != nil {
		details.Service = svc.Raw
	}
	if ing, err := e.findResource(ctx, models.KindIngress, name+"-ingress", namespace); err == nil && ing != nil {
		details.Ingress = ing.Raw
	}
	if app != nil {
		details.Application = map[string]interface{}{
			"name":    app.Name,
			"project": app.Project,
			"health":  app.Health,
			"sync":    app.Sync,
		}
	}
	return details
}

func (e *Evaluator) findResource(ctx context.Context, kind, name, namespace string) (*models.ClusterResource, error) {
	resources, _, err := e.store.ListResources(ctx, store.ResourceFilter{Kind: kind, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("listing %s resources: %w", kind, err)
	}
	for _, res := range resources {
		if res.Name == name {
			return res, nil
		}
	}
	return nil, nil
}
