// Package main is the entry point for the devportal-sync service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/quanmbl4255142/devportal-sync/internal/api"
	"github.com/quanmbl4255142/devportal-sync/internal/cleaner"
	"github.com/quanmbl4255142/devportal-sync/internal/cluster"
	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/discovery"
	"github.com/quanmbl4255142/devportal-sync/internal/health"
	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
	"github.com/quanmbl4255142/devportal-sync/internal/storage"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
	"github.com/quanmbl4255142/devportal-sync/internal/syncer"
	"github.com/quanmbl4255142/devportal-sync/internal/webhook"
	k8sclient "github.com/quanmbl4255142/devportal-sync/pkg/kubernetes"
)

func main() {
	// Determine config path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/config/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting devportal-sync",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("log_level", cfg.App.LogLevel),
	)

	// Create context with cancellation for shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open document store
	st, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout.Duration, logger)
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Error("store close error", zap.Error(err))
		}
	}()

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	// Start metrics/health server
	metricsServer := metrics.NewServer(
		cfg.Metrics.Port,
		cfg.Metrics.Path,
		cfg.Health.LivenessPath,
		cfg.Health.ReadinessPath,
		registry,
	)
	metricsServer.UpdateHealthCheck("store", "ok")

	// Create Kubernetes client
	typedClient, err := k8sclient.NewClient(logger)
	if err != nil {
		logger.Fatal("failed to create kubernetes client", zap.Error(err))
	}
	metricsServer.UpdateHealthCheck("kubernetes", "ok")

	// Create components
	kubeReader := cluster.NewKubeReader(typedClient, logger)
	argoClient := cluster.NewArgoClient(cfg.ArgoCD, m, logger)
	discoverer := discovery.NewDiscoverer(st, cfg.Discovery, logger)
	evaluator := health.NewEvaluator(st, logger)
	sync := syncer.New(st, kubeReader, argoClient, discoverer, evaluator, cfg.Sync, m, logger)
	webhookHandler := webhook.NewHandler(argoClient, cfg.Webhook, cfg.ArgoCD.ApplicationSet, m, logger)
	apiServer := api.NewServer(st, sync, webhookHandler, evaluator, discoverer, cfg.API, logger)
	c := cleaner.NewCleaner(st, cfg.Retention, m, logger)
	sm := storage.NewMonitor(st, cfg.Mongo.MonitorInterval.Duration, m, metricsServer, logger)

	// Use errgroup for goroutine lifecycle
	g, gCtx := errgroup.WithContext(ctx)

	// Start metrics server
	g.Go(func() error {
		logger.Info("starting metrics server", zap.Int("port", cfg.Metrics.Port))
		return metricsServer.Start()
	})

	// Start API server
	g.Go(func() error {
		logger.Info("starting api server", zap.Int("port", cfg.API.Port))
		return apiServer.Start()
	})

	// Start sync scheduler
	sync.StartScheduler(gCtx)

	// Start cleaner
	if cfg.Retention.Enabled {
		g.Go(func() error {
			c.Start(gCtx)
			return nil
		})
	}

	// Start store monitor
	g.Go(func() error {
		sm.Start(gCtx)
		return nil
	})

	// Mark as ready
	metricsServer.SetReady(true)
	logger.Info("devportal-sync is ready")

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-gCtx.Done():
		logger.Info("context cancelled")
	}

	// Graceful shutdown sequence
	logger.Info("starting graceful shutdown")
	metricsServer.SetReady(false)

	// Stop the scheduler first so an in-flight sync finishes cleanly, and
	// let webhook-triggered syncs drain
	sync.StopScheduler()
	webhookHandler.Wait()

	// Cancel context to stop all other components
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP servers
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	// Wait for all goroutines
	if err := g.Wait(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	logger.Info("devportal-sync shutdown complete")
}

func newLogger(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}
