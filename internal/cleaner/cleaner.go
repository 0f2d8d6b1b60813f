// Package cleaner implements the periodic cleanup loop that removes old,
// finalized sync job records from the store to prevent unbounded growth of
// the job history.
package cleaner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

// Cleaner periodically removes sync job records that reached a terminal
// state longer ago than the retention period. Running jobs are never
// touched.
type Cleaner struct {
	store   store.Store
	cfg     config.RetentionConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCleaner creates a new Cleaner with the provided dependencies.
func NewCleaner(st store.Store, cfg config.RetentionConfig, m *metrics.Metrics, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		store:   st,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Start begins the cleanup loop, running at the configured cleanup interval.
// The loop stops when ctx is cancelled.
func (c *Cleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CleanupInterval.Duration)
	defer ticker.Stop()

	c.logger.Info("cleaner started",
		zap.Duration("cleanup_interval", c.cfg.CleanupInterval.Duration),
		zap.Duration("retention_period", c.cfg.RetentionPeriod.Duration),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cleaner stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			if err := c.Cleanup(ctx); err != nil {
				c.logger.Error("cleanup failed", zap.Error(err))
			}
		}
	}
}

// Cleanup performs a single cleanup pass, removing terminal jobs older than
// the retention period.
func (c *Cleaner) Cleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-c.cfg.RetentionPeriod.Duration)

	removed, err := c.store.DeleteSyncJobsBefore(ctx, cutoff)
	if err != nil {
		c.metrics.CleanupRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("deleting expired sync jobs: %w", err)
	}

	c.metrics.CleanupRunsTotal.WithLabelValues("success").Inc()
	if removed > 0 {
		c.metrics.CleanupJobsDeleted.Add(float64(removed))
		c.logger.Info("removed expired sync jobs",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
	} else {
		c.logger.Debug("no sync jobs eligible for cleanup")
	}
	return nil
}
