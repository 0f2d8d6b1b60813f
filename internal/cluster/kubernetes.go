// Package cluster contains the read-side clients that observe live state:
// the Kubernetes resource reader and the ArgoCD application reader. Both
// normalize what they see into the models the store persists.
package cluster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/quanmbl4255142/devportal-sync/internal/models"
)

// KubeReader lists and normalizes the tracked Kubernetes resource kinds.
type KubeReader struct {
	client kubernetes.Interface
	logger *zap.Logger
}

// NewKubeReader creates a reader over the given Kubernetes client.
func NewKubeReader(client kubernetes.Interface, logger *zap.Logger) *KubeReader {
	return &KubeReader{client: client, logger: logger}
}

// ListNamespaces returns the names of all namespaces in the cluster.
func (r *KubeReader) ListNamespaces(ctx context.Context) ([]string, error) {
	list, err := r.client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for _, ns := range list.Items {
		names = append(names, ns.Name)
	}
	return names, nil
}

// ListResources lists all objects of one tracked kind and normalizes them.
// An empty namespace means all namespaces. An unsupported kind is an error;
// API failures are returned to the caller, who decides whether the pass
// continues.
func (r *KubeReader) ListResources(ctx context.Context, kind, namespace string) ([]*models.ClusterResource, error) {
	if namespace == "" {
		namespace = metav1.NamespaceAll
	}
	now := time.Now().UTC()
	switch kind {
	case models.KindPod:
		list, err := r.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("listing pods: %w", err)
		}
		out := make([]*models.ClusterResource, 0, len(list.Items))
		for i := range list.Items {
			out = append(out, normalizePod(&list.Items[i], now))
		}
		return out, nil
	case models.KindDeployment:
		list, err := r.client.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("listing deployments: %w", err)
		}
		out := make([]*models.ClusterResource, 0, len(list.Items))
		for i := range list.Items {
			out = append(out, normalizeDeployment(&list.Items[i], now))
		}
		return out, nil
	case models.KindService:
		list, err := r.client.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("listing services: %w", err)
		}
		out := make([]*models.ClusterResource, 0, len(list.Items))
		for i := range list.Items {
			out = append(out, normalizeService(&list.Items[i], now))
		}
		return out, nil
	case models.KindIngress:
		list, err := r.client.NetworkingV1().Ingresses(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("listing ingresses: %w", err)
		}
		out := make([]*models.ClusterResource, 0, len(list.Items))
		for i := range list.Items {
			out = append(out, normalizeIngress(&list.Items[i], now))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}
}

// ClusterSummary gathers a cluster-level snapshot: version, node count,
// namespaces, and totals for the tracked kinds.
func (r *KubeReader) ClusterSummary(ctx context.Context) (*models.K8sClusterSummary, error) {
	summary := &models.K8sClusterSummary{ClusterName: "default"}

	if version, err := r.client.Discovery().ServerVersion(); err == nil {
		summary.ServerVersion = version.GitVersion
	} else {
		r.logger.Warn("failed to read server version", zap.Error(err))
	}

	nodes, err := r.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	summary.NodesCount = len(nodes.Items)

	namespaces, err := r.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	summary.Namespaces = namespaces

	pods, err := r.client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("counting pods: %w", err)
	}
	summary.TotalPods = len(pods.Items)

	services, err := r.client.CoreV1().Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("counting services: %w", err)
	}
	summary.TotalServices = len(services.Items)

	deployments, err := r.client.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("counting deployments: %w", err)
	}
	summary.TotalDeployments = len(deployments.Items)

	return summary, nil
}

func baseResource(obj metav1.Object, kind, apiVersion string, now time.Time) *models.ClusterResource {
	return &models.ClusterResource{
		UID:               string(obj.GetUID()),
		Kind:              kind,
		APIVersion:        apiVersion,
		Name:              obj.GetName(),
		Namespace:         obj.GetNamespace(),
		ResourceVersion:   obj.GetResourceVersion(),
		Labels:            obj.GetLabels(),
		Annotations:       obj.GetAnnotations(),
		CreationTimestamp: obj.GetCreationTimestamp().Time,
		SyncStatus:        "synced",
		LastObserved:      now,
	}
}

func normalizePod(pod *corev1.Pod, now time.Time) *models.ClusterResource {
	res := baseResource(pod, models.KindPod, "v1", now)
	res.Raw = map[string]interface{}{
		"phase":      string(pod.Status.Phase),
		"node_name":  pod.Spec.NodeName,
		"pod_ip":     pod.Status.PodIP,
		"containers": len(pod.Spec.Containers),
	}
	return res
}

func normalizeDeployment(dep *appsv1.Deployment, now time.Time) *models.ClusterResource {
	res := baseResource(dep, models.KindDeployment, "apps/v1", now)

	var replicas int32 = 1
	if dep.Spec.Replicas != nil {
		replicas = *dep.Spec.Replicas
	}
	info := &models.DeploymentInfo{
		Replicas:          replicas,
		ReadyReplicas:     dep.Status.ReadyReplicas,
		AvailableReplicas: dep.Status.AvailableReplicas,
	}
	for _, c := range dep.Spec.Template.Spec.Containers {
		ci := models.ContainerInfo{
			Name:  c.Name,
			Image: c.Image,
		}
		if len(c.Ports) > 0 {
			ci.Port = c.Ports[0].ContainerPort
		}
		if mem, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			ci.MemoryRequest = mem.String()
		}
		if mem, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			ci.MemoryLimit = mem.String()
		}
		if cpu, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
			ci.CPURequest = cpu.String()
		}
		if cpu, ok := c.Resources.Limits[corev1.ResourceCPU]; ok {
			ci.CPULimit = cpu.String()
		}
		info.Containers = append(info.Containers, ci)
	}
	res.Deployment = info

	res.Raw = map[string]interface{}{
		"replicas":           replicas,
		"ready_replicas":     dep.Status.ReadyReplicas,
		"available_replicas": dep.Status.AvailableReplicas,
		"updated_replicas":   dep.Status.UpdatedReplicas,
	}
	return res
}

func normalizeService(svc *corev1.Service, now time.Time) *models.ClusterResource {
	res := baseResource(svc, models.KindService, "v1", now)

	ports := make([]map[string]interface{}, 0, len(svc.Spec.Ports))
	for _, p := range svc.Spec.Ports {
		ports = append(ports, map[string]interface{}{
			"name":        p.Name,
			"port":        p.Port,
			"target_port": p.TargetPort.String(),
			"protocol":    string(p.Protocol),
		})
	}
	res.Raw = map[string]interface{}{
		"type":       string(svc.Spec.Type),
		"cluster_ip": svc.Spec.ClusterIP,
		"ports":      ports,
	}
	return res
}

func normalizeIngress(ing *networkingv1.Ingress, now time.Time) *models.ClusterResource {
	res := baseResource(ing, models.KindIngress, "networking.k8s.io/v1", now)

	hosts := make([]string, 0, len(ing.Spec.Rules))
	for _, rule := range ing.Spec.Rules {
		if rule.Host != "" {
			hosts = append(hosts, rule.Host)
		}
	}
	var tlsHosts []string
	for _, tls := range ing.Spec.TLS {
		tlsHosts = append(tlsHosts, tls.Hosts...)
	}
	res.Raw = map[string]interface{}{
		"hosts":     hosts,
		"tls_hosts": tlsHosts,
	}
	return res
}
