// Package webhook implements the GitHub push fast path: a verified push
// touching the manifests directory triggers an ApplicationSet refresh and a
// targeted sync of the affected applications, instead of waiting for the
// next scheduled pass.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
)

// ErrInvalidSignature is returned when a delivery carries a signature that
// does not match the shared secret. The transport layer maps it to 401.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrInvalidPayload is returned when the delivery body is not valid JSON.
// The transport layer maps it to 400.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// ArgoTrigger is the ArgoCD surface the webhook fast path drives.
type ArgoTrigger interface {
	RefreshApplicationSet(ctx context.Context, name string) error
	SyncApplication(ctx context.Context, name string) error
}

// Result is the outcome reported back to the webhook sender.
type Result struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Apps    []string `json:"apps,omitempty"`
}

// Handler processes GitHub webhook deliveries.
type Handler struct {
	argo           ArgoTrigger
	cfg            config.WebhookConfig
	applicationSet string
	metrics        *metrics.Metrics
	logger         *zap.Logger

	wg sync.WaitGroup
}

// NewHandler creates a webhook handler that triggers syncs on the named
// ApplicationSet.
func NewHandler(argo ArgoTrigger, cfg config.WebhookConfig, applicationSet string, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		argo:           argo,
		cfg:            cfg,
		applicationSet: applicationSet,
		metrics:        m,
		logger:         logger,
	}
}

// VerifySignature checks the X-Hub-Signature-256 header value against the
// shared secret using a constant-time compare. With no secret configured,
// verification is skipped with a warning so test setups keep working.
func (h *Handler) VerifySignature(payload []byte, signature string) bool {
	if h.cfg.Secret == "" {
		h.logger.Warn("webhook secret not configured, skipping signature verification")
		return true
	}
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.cfg.Secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Handle verifies and dispatches one delivery.
func (h *Handler) Handle(ctx context.Context, eventType string, payload []byte, signature string) (*Result, error) {
	if !h.VerifySignature(payload, signature) {
		h.metrics.WebhookEventsTotal.WithLabelValues(eventType, "rejected").Inc()
		return nil, ErrInvalidSignature
	}

	switch eventType {
	case "push":
		return h.handlePush(ctx, payload)
	case "ping":
		h.metrics.WebhookEventsTotal.WithLabelValues(eventType, "accepted").Inc()
		return &Result{Status: "success", Message: "webhook ping received"}, nil
	default:
		h.logger.Info("ignoring webhook event", zap.String("event_type", eventType))
		h.metrics.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		return &Result{Status: "ignored", Message: fmt.Sprintf("event type %s not handled", eventType)}, nil
	}
}

// pushEvent is the subset of the GitHub push payload the fast path reads.
type pushEvent struct {
	Repository struct {
		CloneURL string `json:"clone_url"`
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []pushCommit `json:"commits"`
}

type pushCommit struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
}

func (h *Handler) handlePush(ctx context.Context, payload []byte) (*Result, error) {
	var event pushEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues("push", "invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if h.cfg.RepoFilter != "" &&
		!strings.Contains(event.Repository.CloneURL, h.cfg.RepoFilter) &&
		!strings.Contains(event.Repository.FullName, h.cfg.RepoFilter) {
		h.logger.Info("ignoring push for unrelated repository",
			zap.String("repository", event.Repository.FullName))
		h.metrics.WebhookEventsTotal.WithLabelValues("push", "ignored").Inc()
		return &Result{Status: "ignored", Message: "repository not watched"}, nil
	}

	apps := h.changedApps(event)
	if len(apps) == 0 {
		h.logger.Info("push touched no application manifests")
		h.metrics.WebhookEventsTotal.WithLabelValues("push", "ignored").Inc()
		return &Result{Status: "ignored", Message: "no relevant changes"}, nil
	}

	h.logger.Info("push changed application manifests",
		zap.Strings("apps", apps),
		zap.String("repository", event.Repository.FullName))

	// The delivery is acknowledged immediately; the refresh and syncs run as
	// a background task detached from the request deadline.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.triggerSyncs(context.WithoutCancel(ctx), apps)
	}()

	h.metrics.WebhookEventsTotal.WithLabelValues("push", "accepted").Inc()
	return &Result{Status: "success", Message: "sync triggered", Apps: apps}, nil
}

// triggerSyncs refreshes the ApplicationSet first so brand-new directories
// generate their applications, then syncs each changed application with a
// small delay between them to stay under the controller's rate limits.
func (h *Handler) triggerSyncs(ctx context.Context, apps []string) {
	if err := h.argo.RefreshApplicationSet(ctx, h.applicationSet); err != nil {
		h.logger.Error("applicationset refresh failed", zap.Error(err))
	}
	if err := sleepCtx(ctx, h.cfg.RefreshDelay.Duration); err != nil {
		return
	}

	for i, app := range apps {
		if i > 0 {
			if err := sleepCtx(ctx, h.cfg.PerAppDelay.Duration); err != nil {
				return
			}
		}
		if err := h.argo.SyncApplication(ctx, app); err != nil {
			h.logger.Error("application sync failed",
				zap.String("application", app), zap.Error(err))
			continue
		}
		h.metrics.WebhookSyncsTriggeredTotal.Inc()
	}
}

// Wait blocks until all in-flight background sync tasks finish. Used during
// shutdown and by tests.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// changedApps extracts the distinct application names from paths of the form
// <appsDir>/<app>/... across all commits, preserving first-seen order.
func (h *Handler) changedApps(event pushEvent) []string {
	prefix := strings.TrimSuffix(h.cfg.AppsDir, "/") + "/"
	seen := make(map[string]bool)
	var apps []string

	for _, commit := range event.Commits {
		for _, path := range append(commit.Added, commit.Modified...) {
			if !strings.HasPrefix(path, prefix) {
				continue
			}
			rest := strings.TrimPrefix(path, prefix)
			parts := strings.SplitN(rest, "/", 2)
			if len(parts) < 2 || parts[0] == "" {
				continue
			}
			if !seen[parts[0]] {
				seen[parts[0]] = true
				apps = append(apps, parts[0])
			}
		}
	}
	return apps
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
