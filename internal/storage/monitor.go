// Package storage implements the store monitoring loop. It periodically
// pings the document store and refreshes per-collection document count
// gauges, feeding the readiness probe.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

// StatusReporter receives per-component health updates, typically the
// metrics server's readiness checks.
type StatusReporter interface {
	UpdateHealthCheck(component string, status string)
}

// Monitor periodically verifies store connectivity and reports document
// counts.
type Monitor struct {
	store    store.Store
	interval time.Duration
	metrics  *metrics.Metrics
	reporter StatusReporter
	logger   *zap.Logger
}

// NewMonitor creates a new Monitor with the provided dependencies. The
// reporter may be nil when no readiness surface is wired.
func NewMonitor(st store.Store, interval time.Duration, m *metrics.Metrics, reporter StatusReporter, logger *zap.Logger) *Monitor {
	return &Monitor{
		store:    st,
		interval: interval,
		metrics:  m,
		reporter: reporter,
		logger:   logger,
	}
}

// Start begins the monitoring loop, running at the configured interval.
// The loop stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("store monitor started", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("store monitor stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			if err := m.Check(ctx); err != nil {
				m.logger.Error("store check failed", zap.Error(err))
			}
		}
	}
}

// Check performs a single store check: a ping followed by a refresh of the
// per-collection count gauges.
func (m *Monitor) Check(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		m.metrics.ComponentUp.WithLabelValues("store").Set(0)
		m.report(fmt.Sprintf("error: %v", err))
		return fmt.Errorf("pinging store: %w", err)
	}

	counts, err := m.store.Counts(ctx)
	if err != nil {
		m.metrics.ComponentUp.WithLabelValues("store").Set(0)
		m.report(fmt.Sprintf("error: %v", err))
		return fmt.Errorf("counting documents: %w", err)
	}

	m.metrics.StoreDocumentsTotal.WithLabelValues("cluster_resources").Set(float64(counts.Resources))
	m.metrics.StoreDocumentsTotal.WithLabelValues("argocd_applications").Set(float64(counts.Applications))
	m.metrics.StoreDocumentsTotal.WithLabelValues("service_metadata").Set(float64(counts.Services))
	m.metrics.StoreDocumentsTotal.WithLabelValues("service_health").Set(float64(counts.ServiceHealth))
	m.metrics.StoreDocumentsTotal.WithLabelValues("sync_jobs").Set(float64(counts.SyncJobs))

	m.metrics.ComponentUp.WithLabelValues("store").Set(1)
	m.metrics.ComponentLastSuccess.WithLabelValues("store").SetToCurrentTime()
	m.report("ok")
	return nil
}

func (m *Monitor) report(status string) {
	if m.reporter != nil {
		m.reporter.UpdateHealthCheck("store", status)
	}
}
