package domain

import "time"

// Built-in maintenance jobs.
const (
	JobPurgeTombstones = "tombstone-purge"
	JobResyncVault     = "vault-resync"
)

// JobSchedule is the configured cadence of one maintenance job.
type JobSchedule struct {
	Enabled bool
	Every   time.Duration
}

// MaintenanceConfig controls the background upkeep of the shadow cache.
type MaintenanceConfig struct {
	// Enabled switches every job off when false.
	Enabled bool

	// Jobs maps a job ID to its schedule.
	Jobs map[string]JobSchedule
}

// Job returns the schedule for id, or a disabled zero schedule.
func (c MaintenanceConfig) Job(id string) JobSchedule {
	return c.Jobs[id]
}

// DefaultMaintenanceConfig purges tombstones hourly and resyncs the vault
// every half hour.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled: true,
		Jobs: map[string]JobSchedule{
			JobPurgeTombstones: {Enabled: true, Every: time.Hour},
			JobResyncVault:     {Enabled: true, Every: 30 * time.Minute},
		},
	}
}

// MaintenanceJob is the persisted state of a maintenance job. It survives
// restarts so a job that was due while weaver was down runs on start.
type MaintenanceJob struct {
	ID      string
	Label   string
	Every   time.Duration
	Enabled bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is the message of the most recent failed run, cleared by a
	// successful one.
	LastError string
}

// Due reports whether the job should run at now.
func (j *MaintenanceJob) Due(now time.Time) bool {
	return j.Enabled && !j.NextRun.After(now)
}

// Apply updates the job's bookkeeping with the outcome of run.
func (j *MaintenanceJob) Apply(run MaintenanceRun) {
	j.LastRun = run.StartedAt
	j.NextRun = run.EndedAt.Add(j.Every)
	if run.OK() {
		j.LastError = ""
		j.LastSuccess = run.EndedAt
		return
	}
	j.LastError = run.Error
}

// MaintenanceRun is one recorded run of a job.
type MaintenanceRun struct {
	JobID     string
	StartedAt time.Time
	EndedAt   time.Time

	// Affected counts what the run touched: tombstones purged or drifted
	// paths repaired.
	Affected int

	// Error is empty when the run succeeded.
	Error string
}

// OK reports whether the run succeeded.
func (r MaintenanceRun) OK() bool { return r.Error == "" }
