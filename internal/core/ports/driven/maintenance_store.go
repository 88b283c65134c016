package driven

import (
	"context"

	"github.com/weave-nn/weaver/internal/core/domain"
)

// MaintenanceStore persists maintenance job state and a bounded run log so
// job cadence survives restarts.
type MaintenanceStore interface {
	// Job returns the job with id, or nil when it has never been saved.
	Job(ctx context.Context, id string) (*domain.MaintenanceJob, error)

	// Jobs returns every saved job ordered by ID.
	Jobs(ctx context.Context) ([]domain.MaintenanceJob, error)

	// PutJob inserts or replaces a job.
	PutJob(ctx context.Context, job *domain.MaintenanceJob) error

	// DeleteJob removes a job together with its runs.
	DeleteJob(ctx context.Context, id string) error

	// AppendRun adds a run to the log.
	AppendRun(ctx context.Context, run *domain.MaintenanceRun) error

	// Runs returns up to limit runs of a job, newest first.
	Runs(ctx context.Context, jobID string, limit int) ([]domain.MaintenanceRun, error)

	// TrimRuns drops all but the newest keep runs of every job.
	TrimRuns(ctx context.Context, keep int) error
}
