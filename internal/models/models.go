// Package models defines the data structures used throughout the devportal-sync service.
package models

import (
	"time"
)

// Kubernetes resource kinds tracked by the sync engine.
const (
	KindPod        = "Pod"
	KindDeployment = "Deployment"
	KindService    = "Service"
	KindIngress    = "Ingress"
)

// TrackedKinds lists the resource kinds pulled on every sync pass, in the
// order they are fetched.
var TrackedKinds = []string{KindPod, KindDeployment, KindService, KindIngress}

// Kubernetes-derived service status constants.
const (
	K8sStatusRunning   = "running"
	K8sStatusDeploying = "deploying"
	K8sStatusFailed    = "failed"
	K8sStatusUnknown   = "unknown"
)

// ArgoCD application health constants, as reported by the ArgoCD API.
const (
	ArgoHealthHealthy     = "Healthy"
	ArgoHealthProgressing = "Progressing"
	ArgoHealthDegraded    = "Degraded"
	ArgoHealthUnknown     = "Unknown"
)

// Overall service health verdict constants.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthUnknown   = "unknown"
)

// Sync job type constants.
const (
	JobTypeFull        = "full_sync"
	JobTypeIncremental = "incremental_sync"
)

// Sync job lifecycle status constants.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Cluster subsystem identifiers for ClusterInfo records.
const (
	ClusterTypeK8s    = "k8s"
	ClusterTypeArgoCD = "argocd"
)

// ContainerInfo carries the fields the discovery logic reads from a pod
// template container.
type ContainerInfo struct {
	Name          string `json:"name" bson:"name"`
	Image         string `json:"image" bson:"image"`
	Port          int32  `json:"port,omitempty" bson:"port,omitempty"`
	MemoryRequest string `json:"memory_request,omitempty" bson:"memory_request,omitempty"`
	MemoryLimit   string `json:"memory_limit,omitempty" bson:"memory_limit,omitempty"`
	CPURequest    string `json:"cpu_request,omitempty" bson:"cpu_request,omitempty"`
	CPULimit      string `json:"cpu_limit,omitempty" bson:"cpu_limit,omitempty"`
}

// DeploymentInfo carries the Deployment fields consumed by service discovery
// and the health evaluator.
type DeploymentInfo struct {
	Replicas          int32           `json:"replicas" bson:"replicas"`
	ReadyReplicas     int32           `json:"ready_replicas" bson:"ready_replicas"`
	AvailableReplicas int32           `json:"available_replicas" bson:"available_replicas"`
	Containers        []ContainerInfo `json:"containers" bson:"containers"`
}

// ClusterResource is one Kubernetes object observed from the cluster API.
// Identity is the cluster-assigned UID; re-observing the same UID overwrites
// the prior record.
type ClusterResource struct {
	UID               string            `json:"uid" bson:"uid"`
	Kind              string            `json:"kind" bson:"kind"`
	APIVersion        string            `json:"api_version" bson:"api_version"`
	Name              string            `json:"name" bson:"name"`
	Namespace         string            `json:"namespace" bson:"namespace"`
	ResourceVersion   string            `json:"resource_version,omitempty" bson:"resource_version,omitempty"`
	Labels            map[string]string `json:"labels,omitempty" bson:"labels,omitempty"`
	Annotations       map[string]string `json:"annotations,omitempty" bson:"annotations,omitempty"`
	CreationTimestamp time.Time         `json:"creation_timestamp" bson:"creation_timestamp"`

	// Deployment is populated only when Kind == "Deployment".
	Deployment *DeploymentInfo `json:"deployment,omitempty" bson:"deployment,omitempty"`

	SyncStatus   string    `json:"sync_status" bson:"sync_status"`
	LastObserved time.Time `json:"last_observed" bson:"last_observed"`

	// Raw holds the full object payload for operator drill-down. The
	// business logic never reads it.
	Raw map[string]interface{} `json:"raw,omitempty" bson:"raw,omitempty"`
}

// ApplicationSource is the desired-state source of a GitOps application.
type ApplicationSource struct {
	RepoURL        string `json:"repo_url" bson:"repo_url"`
	Path           string `json:"path" bson:"path"`
	TargetRevision string `json:"target_revision" bson:"target_revision"`
}

// ApplicationDestination is the deploy target of a GitOps application.
type ApplicationDestination struct {
	Server    string `json:"server" bson:"server"`
	Namespace string `json:"namespace" bson:"namespace"`
}

// ApplicationResource is one managed resource reported in an application's
// status.
type ApplicationResource struct {
	Kind      string `json:"kind" bson:"kind"`
	Name      string `json:"name" bson:"name"`
	Namespace string `json:"namespace" bson:"namespace"`
	Status    string `json:"status,omitempty" bson:"status,omitempty"`
	Health    string `json:"health,omitempty" bson:"health,omitempty"`
}

// ApplicationCondition is one condition reported on an application.
type ApplicationCondition struct {
	Type    string `json:"type" bson:"type"`
	Message string `json:"message" bson:"message"`
}

// Application is one ArgoCD application observed from the GitOps controller.
// Identity is the application UID.
type Application struct {
	UID         string                 `json:"uid" bson:"uid"`
	Name        string                 `json:"name" bson:"name"`
	Namespace   string                 `json:"namespace" bson:"namespace"`
	Project     string                 `json:"project" bson:"project"`
	Source      ApplicationSource      `json:"source" bson:"source"`
	Destination ApplicationDestination `json:"destination" bson:"destination"`

	Health     string                 `json:"health" bson:"health"`
	Sync       string                 `json:"sync" bson:"sync"`
	Resources  []ApplicationResource  `json:"resources,omitempty" bson:"resources,omitempty"`
	Conditions []ApplicationCondition `json:"conditions,omitempty" bson:"conditions,omitempty"`

	SyncStatus   string    `json:"sync_status" bson:"sync_status"`
	LastObserved time.Time `json:"last_observed" bson:"last_observed"`

	Raw map[string]interface{} `json:"raw,omitempty" bson:"raw,omitempty"`
}

// DeployConfig is the deployment configuration attached to a service
// metadata record. Discovery fills it from live Deployment data and
// defaults; operators may edit it afterwards.
type DeployConfig struct {
	MemoryRequest         string `json:"memory_request" bson:"memory_request"`
	MemoryLimit           string `json:"memory_limit" bson:"memory_limit"`
	CPURequest            string `json:"cpu_request" bson:"cpu_request"`
	CPULimit              string `json:"cpu_limit" bson:"cpu_limit"`
	Replicas              int32  `json:"replicas" bson:"replicas"`
	Port                  int32  `json:"port" bson:"port"`
	PVCSize               string `json:"pvc_size" bson:"pvc_size"`
	StorageClass          string `json:"storage_class" bson:"storage_class"`
	Domain                string `json:"domain" bson:"domain"`
	EnableTLS             bool   `json:"enable_tls" bson:"enable_tls"`
	LivenessInitialDelay  int32  `json:"liveness_initial_delay" bson:"liveness_initial_delay"`
	ReadinessInitialDelay int32  `json:"readiness_initial_delay" bson:"readiness_initial_delay"`
}

// ServiceMetadata is a logical service record, independent of any single
// cluster resource. Identity is the (service_name, namespace) pair, enforced
// unique at the store layer. Once created it is never deleted by the sync
// path; only explicit operator action removes it.
type ServiceMetadata struct {
	ServiceName string `json:"service_name" bson:"service_name"`
	Namespace   string `json:"namespace" bson:"namespace"`
	ProjectName string `json:"project_name" bson:"project_name"`
	AppName     string `json:"app_name" bson:"app_name"`

	DockerImage  string       `json:"docker_image" bson:"docker_image"`
	DeployConfig DeployConfig `json:"deploy_config" bson:"deploy_config"`

	Status       string `json:"status" bson:"status"`
	HealthStatus string `json:"health_status" bson:"health_status"`

	ArgoCDAppName string `json:"argocd_app_name" bson:"argocd_app_name"`
	IngressURL    string `json:"ingress_url" bson:"ingress_url"`

	// DiscoveredFromK8s marks records synthesized by service discovery, as
	// opposed to explicitly registered ones.
	DiscoveredFromK8s bool `json:"discovered_from_k8s" bson:"discovered_from_k8s"`

	Labels      map[string]string `json:"labels,omitempty" bson:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty" bson:"annotations,omitempty"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	LastK8sSync *time.Time `json:"last_k8s_sync,omitempty" bson:"last_k8s_sync,omitempty"`
}

// ServiceK8sUpdate carries the discovery-derived fields refreshed on an
// existing service record. Anything not listed here (ingress URL, domain,
// repository links, and other operator-set fields) is left untouched by the
// sync path.
type ServiceK8sUpdate struct {
	DockerImage   string            `json:"docker_image" bson:"docker_image"`
	MemoryRequest string            `json:"memory_request" bson:"memory_request"`
	MemoryLimit   string            `json:"memory_limit" bson:"memory_limit"`
	CPURequest    string            `json:"cpu_request" bson:"cpu_request"`
	CPULimit      string            `json:"cpu_limit" bson:"cpu_limit"`
	Replicas      int32             `json:"replicas" bson:"replicas"`
	Labels        map[string]string `json:"labels,omitempty" bson:"labels,omitempty"`
	Annotations   map[string]string `json:"annotations,omitempty" bson:"annotations,omitempty"`
}

// HealthDetails is the drill-down snapshot attached to a health record: the
// raw payloads the evaluator consulted when it computed the verdict.
type HealthDetails struct {
	Deployment  map[string]interface{} `json:"deployment,omitempty" bson:"deployment,omitempty"`
	Service     map[string]interface{} `json:"service,omitempty" bson:"service,omitempty"`
	Ingress     map[string]interface{} `json:"ingress,omitempty" bson:"ingress,omitempty"`
	Application map[string]interface{} `json:"application,omitempty" bson:"application,omitempty"`
}

// ServiceHealth is the derived health verdict for one service. Identity is
// the (service_name, namespace) pair; the record is overwritten on every
// evaluation pass, not historized.
type ServiceHealth struct {
	ServiceName   string        `json:"service_name" bson:"service_name"`
	Namespace     string        `json:"namespace" bson:"namespace"`
	OverallStatus string        `json:"overall_status" bson:"overall_status"`
	K8sStatus     string        `json:"k8s_status" bson:"k8s_status"`
	ArgoCDStatus  string        `json:"argocd_status" bson:"argocd_status"`
	LastCheck     time.Time     `json:"last_check" bson:"last_check"`
	Details       HealthDetails `json:"details" bson:"details"`
}

// SyncJob is one sync run. Records are append-only: a job is created in the
// running state and finalized exactly once to completed or failed.
type SyncJob struct {
	JobID       string     `json:"job_id" bson:"job_id"`
	JobType     string     `json:"job_type" bson:"job_type"`
	Status      string     `json:"status" bson:"status"`
	StartedAt   time.Time  `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Errors      []string   `json:"errors,omitempty" bson:"errors,omitempty"`
	LastError   string     `json:"last_error,omitempty" bson:"last_error,omitempty"`
}

// IsTerminal returns true once the job has been finalized. Terminal jobs are
// immutable.
func (j *SyncJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// K8sClusterSummary is the cluster-level snapshot for the "k8s" subsystem.
type K8sClusterSummary struct {
	ClusterName      string   `json:"cluster_name" bson:"cluster_name"`
	ServerVersion    string   `json:"server_version" bson:"server_version"`
	NodesCount       int      `json:"nodes_count" bson:"nodes_count"`
	Namespaces       []string `json:"namespaces" bson:"namespaces"`
	TotalPods        int      `json:"total_pods" bson:"total_pods"`
	TotalServices    int      `json:"total_services" bson:"total_services"`
	TotalDeployments int      `json:"total_deployments" bson:"total_deployments"`
}

// ArgoCDSummary is the controller-level snapshot for the "argocd" subsystem.
type ArgoCDSummary struct {
	Version           string `json:"version" bson:"version"`
	ApplicationsCount int    `json:"applications_count" bson:"applications_count"`
	HealthyApps       int    `json:"healthy_apps" bson:"healthy_apps"`
	DegradedApps      int    `json:"degraded_apps" bson:"degraded_apps"`
	OutOfSyncApps     int    `json:"out_of_sync_apps" bson:"out_of_sync_apps"`
}

// ClusterInfo is the stored snapshot for one cluster subsystem ("k8s" or
// "argocd"). Upserted in place on every full sync.
type ClusterInfo struct {
	ClusterType string                 `json:"cluster_type" bson:"cluster_type"`
	Info        map[string]interface{} `json:"info" bson:"info"`
	LastSync    time.Time              `json:"last_sync" bson:"last_sync"`
}

// NamespaceServiceCount is one bucket of the discovery summary group-by.
type NamespaceServiceCount struct {
	Namespace       string `json:"namespace" bson:"_id"`
	Count           int64  `json:"count" bson:"count"`
	DiscoveredCount int64  `json:"discovered_count" bson:"discovered_count"`
}

// StoreCounts reports the current document count per collection.
type StoreCounts struct {
	Resources     int64 `json:"resources"`
	Applications  int64 `json:"applications"`
	Services      int64 `json:"services"`
	ServiceHealth int64 `json:"service_health"`
	SyncJobs      int64 `json:"sync_jobs"`
}

// SyncStatus is the operator-facing snapshot of the orchestrator state.
type SyncStatus struct {
	IsRunning             bool        `json:"is_running"`
	SyncInterval          string      `json:"sync_interval"`
	LatestFullSync        *SyncJob    `json:"latest_full_sync,omitempty"`
	LatestIncrementalSync *SyncJob    `json:"latest_incremental_sync,omitempty"`
	ResourceCounts        StoreCounts `json:"resource_counts"`
}
