// Package api exposes the operator-facing HTTP API: webhook ingestion, sync
// control, and read access to the reconciled state in the store.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/discovery"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
	"github.com/quanmbl4255142/devportal-sync/internal/webhook"
)

// SyncController is the orchestrator surface the API drives.
type SyncController interface {
	StartScheduler(ctx context.Context) bool
	StopScheduler()
	IsRunning() bool
	FullSync(ctx context.Context) error
	IncrementalSync(ctx context.Context) error
	Status(ctx context.Context) (*models.SyncStatus, error)
}

// WebhookHandler processes GitHub webhook deliveries.
type WebhookHandler interface {
	Handle(ctx context.Context, eventType string, payload []byte, signature string) (*webhook.Result, error)
}

// HealthEvaluator recomputes a single service's health verdict on demand.
type HealthEvaluator interface {
	EvaluateService(ctx context.Context, name, namespace string) (*models.ServiceHealth, error)
}

// DiscoveryReader reports discovery statistics.
type DiscoveryReader interface {
	GetSummary(ctx context.Context) (*discovery.Summary, error)
}

// Server is the HTTP API server.
type Server struct {
	store      store.Store
	syncer     SyncController
	webhook    WebhookHandler
	evaluator  HealthEvaluator
	discoverer DiscoveryReader
	logger     *zap.Logger

	engine *gin.Engine
	server *http.Server
}

// NewServer creates the API server and registers its routes.
func NewServer(
	st store.Store,
	sc SyncController,
	wh WebhookHandler,
	eval HealthEvaluator,
	disc DiscoveryReader,
	cfg config.APIConfig,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		store:      st,
		syncer:     sc,
		webhook:    wh,
		evaluator:  eval,
		discoverer: disc,
		logger:     logger,
		engine:     engine,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: engine,
		},
	}

	engine.Use(s.requestLogger())
	s.registerRoutes()
	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving. It blocks until the server exits.
func (s *Server) Start() error {
	s.logger.Info("api server started", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("api server stopping")
	return s.server.Shutdown(ctx)
}

// requestLogger tags each request with an ID and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		s.logger.Debug("request handled",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) registerRoutes() {
	s.engine.POST("/webhook/github", s.handleWebhook)

	api := s.engine.Group("/api")
	{
		api.POST("/sync/start", s.handleSyncStart)
		api.POST("/sync/stop", s.handleSyncStop)
		api.POST("/sync/trigger", s.handleSyncTrigger)
		api.GET("/sync/status", s.handleSyncStatus)
		api.GET("/sync/jobs", s.handleListJobs)
		api.GET("/sync/jobs/:id", s.handleGetJob)

		api.GET("/resources", s.handleListResources)
		api.GET("/applications", s.handleListApplications)

		api.GET("/services", s.handleListServices)
		api.GET("/services/:namespace/:name", s.handleGetService)
		api.DELETE("/services/:namespace/:name", s.handleDeleteService)
		api.GET("/services/:namespace/:name/health", s.handleServiceHealth)

		api.GET("/health", s.handleListHealth)
		api.GET("/discovery/summary", s.handleDiscoverySummary)
		api.GET("/cluster/:type", s.handleClusterInfo)
	}
}

// handleWebhook receives GitHub deliveries and forwards them to the webhook
// handler. Signature failures map to 401, malformed payloads to 400.
func (s *Server) handleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	eventType := c.GetHeader("X-GitHub-Event")
	signature := c.GetHeader("X-Hub-Signature-256")

	result, err := s.webhook.Handle(c.Request.Context(), eventType, payload, signature)
	switch {
	case errors.Is(err, webhook.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	case errors.Is(err, webhook.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	case err != nil:
		s.logger.Error("webhook handling failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook handling failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSyncStart(c *gin.Context) {
	if !s.syncer.StartScheduler(context.WithoutCancel(c.Request.Context())) {
		c.JSON(http.StatusConflict, gin.H{"error": "sync scheduler already running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleSyncStop(c *gin.Context) {
	s.syncer.StopScheduler()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// handleSyncTrigger runs one sync pass synchronously. The pass type defaults
// to incremental so an ad-hoc trigger can never prune on a partial read.
func (s *Server) handleSyncTrigger(c *gin.Context) {
	syncType := c.DefaultQuery("type", "incremental")

	var err error
	switch syncType {
	case "full":
		err = s.syncer.FullSync(c.Request.Context())
	case "incremental":
		err = s.syncer.IncrementalSync(c.Request.Context())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be full or incremental"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed", "type": syncType})
}

func (s *Server) handleSyncStatus(c *gin.Context) {
	status, err := s.syncer.Status(c.Request.Context())
	if err != nil {
		s.serverError(c, "reading sync status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleListJobs(c *gin.Context) {
	limit, skip := pagination(c)
	jobs, total, err := s.store.ListSyncJobs(c.Request.Context(), store.JobFilter{
		JobType: c.Query("type"),
		Status:  c.Query("status"),
		Limit:   limit,
		Skip:    skip,
	})
	if err != nil {
		s.serverError(c, "listing sync jobs", err)
		return
	}
	c.JSON(http.StatusOK, listResponse(jobs, total, limit, skip))
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.store.GetSyncJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.serverError(c, "getting sync job", err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sync job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListResources(c *gin.Context) {
	limit, skip := pagination(c)
	resources, total, err := s.store.ListResources(c.Request.Context(), store.ResourceFilter{
		Kind:      c.Query("kind"),
		Namespace: c.Query("namespace"),
		Limit:     limit,
		Skip:      skip,
	})
	if err != nil {
		s.serverError(c, "listing resources", err)
		return
	}
	c.JSON(http.StatusOK, listResponse(resources, total, limit, skip))
}

func (s *Server) handleListApplications(c *gin.Context) {
	limit, skip := pagination(c)
	apps, total, err := s.store.ListApplications(c.Request.Context(), store.AppFilter{
		Project: c.Query("project"),
		Health:  c.Query("health"),
		Sync:    c.Query("sync"),
		Limit:   limit,
		Skip:    skip,
	})
	if err != nil {
		s.serverError(c, "listing applications", err)
		return
	}
	c.JSON(http.StatusOK, listResponse(apps, total, limit, skip))
}

func (s *Server) handleListServices(c *gin.Context) {
	limit, skip := pagination(c)
	services, total, err := s.store.ListServices(c.Request.Context(), store.ServiceFilter{
		Namespace:      c.Query("namespace"),
		DiscoveredOnly: c.Query("discovered") == "true",
		Limit:          limit,
		Skip:           skip,
	})
	if err != nil {
		s.serverError(c, "listing services", err)
		return
	}
	c.JSON(http.StatusOK, listResponse(services, total, limit, skip))
}

func (s *Server) handleGetService(c *gin.Context) {
	svc, err := s.store.GetService(c.Request.Context(), c.Param("name"), c.Param("namespace"))
	if err != nil {
		s.serverError(c, "getting service", err)
		return
	}
	if svc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) handleDeleteService(c *gin.Context) {
	name, namespace := c.Param("name"), c.Param("namespace")
	existed, err := s.store.DeleteService(c.Request.Context(), name, namespace)
	if err != nil {
		s.serverError(c, "deleting service", err)
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	s.logger.Info("service deleted",
		zap.String("service", name), zap.String("namespace", namespace))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// handleServiceHealth recomputes the verdict on demand so the drill-down is
// never staler than the stored state it derives from.
func (s *Server) handleServiceHealth(c *gin.Context) {
	name, namespace := c.Param("name"), c.Param("namespace")

	svc, err := s.store.GetService(c.Request.Context(), name, namespace)
	if err != nil {
		s.serverError(c, "getting service", err)
		return
	}
	if svc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}

	verdict, err := s.evaluator.EvaluateService(c.Request.Context(), name, namespace)
	if err != nil {
		s.serverError(c, "evaluating service health", err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (s *Server) handleListHealth(c *gin.Context) {
	verdicts, err := s.store.ListServiceHealth(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		s.serverError(c, "listing health verdicts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": verdicts, "total": len(verdicts)})
}

func (s *Server) handleDiscoverySummary(c *gin.Context) {
	summary, err := s.discoverer.GetSummary(c.Request.Context())
	if err != nil {
		s.serverError(c, "building discovery summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleClusterInfo(c *gin.Context) {
	clusterType := c.Param("type")
	if clusterType != models.ClusterTypeK8s && clusterType != models.ClusterTypeArgoCD {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be k8s or argocd"})
		return
	}

	info, err := s.store.GetClusterInfo(c.Request.Context(), clusterType)
	if err != nil {
		s.serverError(c, "getting cluster info", err)
		return
	}
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for cluster type"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) serverError(c *gin.Context, action string, err error) {
	s.logger.Error(action+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// pagination parses limit/skip query parameters. The limit defaults to 50 and
// is capped at 500.
func pagination(c *gin.Context) (limit, skip int64) {
	limit = 50
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	if limit > 500 {
		limit = 500
	}
	if v, err := strconv.ParseInt(c.Query("skip"), 10, 64); err == nil && v > 0 {
		skip = v
	}
	return limit, skip
}

func listResponse[T any](items []T, total, limit, skip int64) gin.H {
	return gin.H{
		"items": items,
		"total": total,
		"limit": limit,
		"skip":  skip,
	}
}
