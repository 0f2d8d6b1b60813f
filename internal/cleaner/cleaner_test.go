package cleaner

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/config"
	"github.com/quanmbl4255142/devportal-sync/internal/metrics"
	"github.com/quanmbl4255142/devportal-sync/internal/models"
	"github.com/quanmbl4255142/devportal-sync/internal/store"
)

func TestCleanupRemovesOnlyExpiredTerminalJobs(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	jobs := []*models.SyncJob{
		{JobID: "old-completed", JobType: models.JobTypeFull, Status: models.JobStatusCompleted, StartedAt: now.Add(-100 * time.Hour)},
		{JobID: "old-failed", JobType: models.JobTypeFull, Status: models.JobStatusFailed, StartedAt: now.Add(-100 * time.Hour)},
		{JobID: "old-running", JobType: models.JobTypeFull, Status: models.JobStatusRunning, StartedAt: now.Add(-100 * time.Hour)},
		{JobID: "recent-completed", JobType: models.JobTypeFull, Status: models.JobStatusCompleted, StartedAt: now.Add(-time.Hour)},
	}
	for _, job := range jobs {
		require.NoError(t, st.InsertSyncJob(ctx, job))
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := NewCleaner(st, config.RetentionConfig{
		Enabled:         true,
		CleanupInterval: config.Duration{Duration: time.Hour},
		RetentionPeriod: config.Duration{Duration: 72 * time.Hour},
	}, m, zap.NewNop())

	require.NoError(t, c.Cleanup(ctx))

	for id, wantKept := range map[string]bool{
		"old-completed":    false,
		"old-failed":       false,
		"old-running":      true,
		"recent-completed": true,
	} {
		job, err := st.GetSyncJob(ctx, id)
		require.NoError(t, err)
		if wantKept {
			assert.NotNil(t, job, id)
		} else {
			assert.Nil(t, job, id)
		}
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CleanupJobsDeleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CleanupRunsTotal.WithLabelValues("success")))
}

func TestCleanupNoEligibleJobs(t *testing.T) {
	st := store.NewMemoryStore()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := NewCleaner(st, config.RetentionConfig{
		CleanupInterval: config.Duration{Duration: time.Hour},
		RetentionPeriod: config.Duration{Duration: 72 * time.Hour},
	}, m, zap.NewNop())

	require.NoError(t, c.Cleanup(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CleanupRunsTotal.WithLabelValues("success")))
}
