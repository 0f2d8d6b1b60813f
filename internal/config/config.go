// Package config handles loading, validating, and applying defaults to the
// devportal-sync configuration. Configuration is read from a YAML file and
// may be overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that implements yaml.Unmarshaler
// so that Go-style duration strings (e.g. "30s", "5m") can be used in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a YAML scalar as a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML serialises the duration back to a human-readable string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config is the top-level configuration for the devportal-sync service.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Mongo     MongoConfig     `yaml:"mongo"`
	ArgoCD    ArgoCDConfig    `yaml:"argocd"`
	Sync      SyncConfig      `yaml:"sync"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Retention RetentionConfig `yaml:"retention"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Health    HealthConfig    `yaml:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// MongoConfig configures the document store connection.
type MongoConfig struct {
	URI             string   `yaml:"uri"`
	Database        string   `yaml:"database"`
	ConnectTimeout  Duration `yaml:"connectTimeout"`
	MonitorInterval Duration `yaml:"monitorInterval"`
}

// ArgoCDConfig configures access to the ArgoCD API server.
type ArgoCDConfig struct {
	ServerURL          string   `yaml:"serverURL"`
	AuthToken          string   `yaml:"-"` // from ARGOCD_TOKEN only, never the file
	InsecureSkipVerify bool     `yaml:"insecureSkipVerify"`
	Timeout            Duration `yaml:"timeout"`
	ApplicationSet     string   `yaml:"applicationSet"`
}

// SyncConfig controls the sync orchestrator scheduling loop.
type SyncConfig struct {
	Interval     Duration `yaml:"interval"`
	ErrorBackoff Duration `yaml:"errorBackoff"`
	OnStartup    bool     `yaml:"onStartup"`
}

// DiscoveryConfig controls the defaults applied to service records
// synthesized from live Deployments.
type DiscoveryConfig struct {
	DefaultDomain string `yaml:"defaultDomain"`
	DefaultPort   int32  `yaml:"defaultPort"`
	PVCSize       string `yaml:"pvcSize"`
	StorageClass  string `yaml:"storageClass"`
}

// WebhookConfig controls the inbound GitHub webhook fast path.
type WebhookConfig struct {
	Secret        string   `yaml:"-"` // from GITHUB_WEBHOOK_SECRET only
	RepoFilter    string   `yaml:"repoFilter"`
	AppsDir       string   `yaml:"appsDir"`
	RefreshDelay  Duration `yaml:"refreshDelay"`
	PerAppDelay   Duration `yaml:"perAppDelay"`
	TriggerPrune  bool     `yaml:"triggerPrune"`
}

// RetentionConfig controls sync-job history cleanup.
type RetentionConfig struct {
	Enabled         bool     `yaml:"enabled"`
	CleanupInterval Duration `yaml:"cleanupInterval"`
	RetentionPeriod Duration `yaml:"retentionPeriod"`
}

// APIConfig controls the operator-facing HTTP API.
type APIConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// HealthConfig controls the health/readiness probe endpoints.
type HealthConfig struct {
	LivenessPath  string `yaml:"livenessPath"`
	ReadinessPath string `yaml:"readinessPath"`
}

// Load reads the YAML configuration file at path, applies defaults, applies
// environment-variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) applyDefaults() {
	// App defaults
	if c.App.Name == "" {
		c.App.Name = "devportal-sync"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "json"
	}

	// Mongo defaults
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "devportal"
	}
	if c.Mongo.ConnectTimeout.Duration == 0 {
		c.Mongo.ConnectTimeout.Duration = 5 * time.Second
	}
	if c.Mongo.MonitorInterval.Duration == 0 {
		c.Mongo.MonitorInterval.Duration = 1 * time.Minute
	}

	// ArgoCD defaults
	if c.ArgoCD.Timeout.Duration == 0 {
		c.ArgoCD.Timeout.Duration = 30 * time.Second
	}
	if c.ArgoCD.ApplicationSet == "" {
		c.ArgoCD.ApplicationSet = "django-apps"
	}

	// Sync defaults. If the entire section was omitted (Interval is zero),
	// onStartup defaults to true; callers who want to disable the startup
	// sync must set it to false alongside an explicit interval.
	if c.Sync.Interval.Duration == 0 {
		c.Sync.Interval.Duration = 300 * time.Second
		c.Sync.OnStartup = true
	}
	if c.Sync.ErrorBackoff.Duration == 0 {
		c.Sync.ErrorBackoff.Duration = 60 * time.Second
	}

	// Discovery defaults
	if c.Discovery.DefaultDomain == "" {
		c.Discovery.DefaultDomain = "yourdomain.com"
	}
	if c.Discovery.DefaultPort == 0 {
		c.Discovery.DefaultPort = 8000
	}
	if c.Discovery.PVCSize == "" {
		c.Discovery.PVCSize = "1Gi"
	}
	if c.Discovery.StorageClass == "" {
		c.Discovery.StorageClass = "standard"
	}

	// Webhook defaults
	if c.Webhook.AppsDir == "" {
		c.Webhook.AppsDir = "apps"
	}
	if c.Webhook.RefreshDelay.Duration == 0 {
		c.Webhook.RefreshDelay.Duration = 1 * time.Second
	}
	if c.Webhook.PerAppDelay.Duration == 0 {
		c.Webhook.PerAppDelay.Duration = 1 * time.Second
	}

	// Retention defaults
	if c.Retention.CleanupInterval.Duration == 0 {
		c.Retention.Enabled = true
		c.Retention.CleanupInterval.Duration = 1 * time.Hour
		c.Retention.RetentionPeriod.Duration = 72 * time.Hour
	} else {
		if c.Retention.RetentionPeriod.Duration == 0 {
			c.Retention.RetentionPeriod.Duration = 72 * time.Hour
		}
	}

	// API defaults
	if c.API.Port == 0 {
		c.API.Port = 8000
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Enabled = true
		c.Metrics.Port = 8080
		c.Metrics.Path = "/metrics"
	} else {
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	// Health defaults
	if c.Health.LivenessPath == "" {
		c.Health.LivenessPath = "/healthz"
	}
	if c.Health.ReadinessPath == "" {
		c.Health.ReadinessPath = "/ready"
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MONGODB_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		c.Mongo.Database = v
	}
	if v := os.Getenv("ARGOCD_SERVER"); v != "" {
		c.ArgoCD.ServerURL = v
	}
	if v := os.Getenv("ARGOCD_TOKEN"); v != "" {
		c.ArgoCD.AuthToken = v
	}
	if v := os.Getenv("ARGOCD_APPLICATIONSET"); v != "" {
		c.ArgoCD.ApplicationSet = v
	}
	if v := os.Getenv("GITHUB_WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
}

// validate checks that all required fields are populated and that enum values
// are within the allowed set.
func (c *Config) validate() error {
	if c.ArgoCD.ServerURL == "" {
		return fmt.Errorf("argocd.serverURL is required (or set ARGOCD_SERVER)")
	}

	// Validate log level
	switch c.App.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("app.logLevel must be one of: debug, info, warn, error; got %q", c.App.LogLevel)
	}

	// Validate log format
	switch c.App.LogFormat {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("app.logFormat must be one of: json, text; got %q", c.App.LogFormat)
	}

	if c.Sync.Interval.Duration < time.Second {
		return fmt.Errorf("sync.interval must be at least 1s; got %s", c.Sync.Interval.Duration)
	}

	return nil
}
