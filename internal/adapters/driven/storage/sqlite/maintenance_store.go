package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

type maintenanceStore struct {
	store *Store
}

var _ driven.MaintenanceStore = (*maintenanceStore)(nil)

const jobColumns = `id, label, every_seconds, enabled, last_run, next_run, last_success, last_error`

func (m *maintenanceStore) Job(ctx context.Context, id string) (*domain.MaintenanceJob, error) {
	row := m.store.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM maintenance_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("reading maintenance job", err)
	}
	return job, nil
}

func (m *maintenanceStore) Jobs(ctx context.Context) ([]domain.MaintenanceJob, error) {
	rows, err := m.store.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM maintenance_jobs ORDER BY id`)
	if err != nil {
		return nil, storageErr("listing maintenance jobs", err)
	}
	defer rows.Close()

	var jobs []domain.MaintenanceJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storageErr("reading maintenance job", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing maintenance jobs", err)
	}
	return jobs, nil
}

func (m *maintenanceStore) PutJob(ctx context.Context, job *domain.MaintenanceJob) error {
	if job == nil {
		return domain.ErrInvalidInput
	}
	_, err := m.store.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO maintenance_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Label, int64(job.Every/time.Second), boolToInt(job.Enabled),
		formatNullableTime(job.LastRun), formatNullableTime(job.NextRun),
		formatNullableTime(job.LastSuccess), nullString(job.LastError))
	if err != nil {
		return storageErr("saving maintenance job", err)
	}
	return nil
}

func (m *maintenanceStore) DeleteJob(ctx context.Context, id string) error {
	return m.store.withTx(ctx, "deleting maintenance job", func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM maintenance_runs WHERE job_id = ?`,
			`DELETE FROM maintenance_jobs WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return storageErr("deleting maintenance job", err)
			}
		}
		return nil
	})
}

func (m *maintenanceStore) AppendRun(ctx context.Context, run *domain.MaintenanceRun) error {
	if run == nil {
		return domain.ErrInvalidInput
	}
	_, err := m.store.db.ExecContext(ctx,
		`INSERT INTO maintenance_runs (job_id, started_at, ended_at, affected, error) VALUES (?, ?, ?, ?, ?)`,
		run.JobID, formatTime(run.StartedAt), formatTime(run.EndedAt), run.Affected, nullString(run.Error))
	if err != nil {
		return storageErr("appending maintenance run", err)
	}
	return nil
}

func (m *maintenanceStore) Runs(ctx context.Context, jobID string, limit int) ([]domain.MaintenanceRun, error) {
	rows, err := m.store.db.QueryContext(ctx, `
		SELECT job_id, started_at, ended_at, affected, error
		FROM maintenance_runs
		WHERE job_id = ?
		ORDER BY started_at DESC, seq DESC
		LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, storageErr("listing maintenance runs", err)
	}
	defer rows.Close()

	var runs []domain.MaintenanceRun
	for rows.Next() {
		var (
			run            domain.MaintenanceRun
			started, ended string
			msg            sql.NullString
		)
		if err := rows.Scan(&run.JobID, &started, &ended, &run.Affected, &msg); err != nil {
			return nil, storageErr("reading maintenance run", err)
		}
		run.StartedAt = parseTime(started)
		run.EndedAt = parseTime(ended)
		run.Error = msg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing maintenance runs", err)
	}
	return runs, nil
}

// TrimRuns ranks runs per job by recency and deletes those past keep.
func (m *maintenanceStore) TrimRuns(ctx context.Context, keep int) error {
	_, err := m.store.db.ExecContext(ctx, `
		DELETE FROM maintenance_runs WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (
					PARTITION BY job_id ORDER BY started_at DESC, seq DESC
				) AS pos
				FROM maintenance_runs
			) WHERE pos > ?
		)`, keep)
	if err != nil {
		return storageErr("trimming maintenance runs", err)
	}
	return nil
}

func scanJob(row scanner) (*domain.MaintenanceJob, error) {
	var (
		job                          domain.MaintenanceJob
		everySeconds                 int64
		enabled                      int
		lastRun, nextRun, okAt, fail sql.NullString
	)
	if err := row.Scan(&job.ID, &job.Label, &everySeconds, &enabled,
		&lastRun, &nextRun, &okAt, &fail); err != nil {
		return nil, err
	}
	job.Every = time.Duration(everySeconds) * time.Second
	job.Enabled = enabled == 1
	job.LastRun = parseNullableTime(lastRun)
	job.NextRun = parseNullableTime(nextRun)
	job.LastSuccess = parseNullableTime(okAt)
	job.LastError = fail.String
	return &job, nil
}
