package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMaintenanceConfig(t *testing.T) {
	cfg := DefaultMaintenanceConfig()

	assert.True(t, cfg.Enabled)
	assert.Len(t, cfg.Jobs, 2)
	assert.Equal(t, JobSchedule{Enabled: true, Every: time.Hour}, cfg.Job(JobPurgeTombstones))
	assert.Equal(t, JobSchedule{Enabled: true, Every: 30 * time.Minute}, cfg.Job(JobResyncVault))
}

func TestMaintenanceConfig_UnknownJob(t *testing.T) {
	assert.Zero(t, DefaultMaintenanceConfig().Job("compact"))
	assert.Zero(t, MaintenanceConfig{Enabled: true}.Job(JobResyncVault))
}

func TestMaintenanceJob_Due(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		job  MaintenanceJob
		want bool
	}{
		{"never scheduled", MaintenanceJob{Enabled: true}, true},
		{"past", MaintenanceJob{Enabled: true, NextRun: now.Add(-time.Second)}, true},
		{"exactly now", MaintenanceJob{Enabled: true, NextRun: now}, true},
		{"future", MaintenanceJob{Enabled: true, NextRun: now.Add(time.Second)}, false},
		{"disabled", MaintenanceJob{NextRun: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.job.Due(now))
		})
	}
}

func TestMaintenanceJob_Apply(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)
	job := MaintenanceJob{ID: JobResyncVault, Every: time.Hour, Enabled: true}

	job.Apply(MaintenanceRun{JobID: job.ID, StartedAt: start, EndedAt: end, Error: "walk: permission denied"})
	assert.Equal(t, start, job.LastRun)
	assert.Equal(t, end.Add(time.Hour), job.NextRun)
	assert.Equal(t, "walk: permission denied", job.LastError)
	assert.True(t, job.LastSuccess.IsZero())

	job.Apply(MaintenanceRun{JobID: job.ID, StartedAt: start, EndedAt: end, Affected: 4})
	assert.Empty(t, job.LastError)
	assert.Equal(t, end, job.LastSuccess)
}
