package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
)

// ImportJobRepo is the durable queue behind the async import path: jobs are
// rows claimed by workers, with progress and the terminal result persisted
// on the same row so pollers read one record.
type ImportJobRepo struct {
	db *sql.DB
}

func NewImportJobRepo(db *sql.DB) *ImportJobRepo {
	return &ImportJobRepo{db: db}
}

const importJobColumns = `id, organization_id, user_id, status, progress, total, attempts, max_attempts, payload_json, result_json, last_error, next_run_at, ctime, mtime`

func (r *ImportJobRepo) Create(ctx context.Context, job *model.ImportJob) error {
	const query = `
		INSERT INTO import_jobs (` + importJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.OrganizationID,
		job.UserID,
		job.Status,
		job.Progress,
		job.Total,
		job.Attempts,
		job.MaxAttempts,
		string(job.Payload),
		job.LastError,
		job.NextRunAt,
		job.Ctime,
		job.Mtime,
	)
	return err
}

func scanImportJob(scan func(dest ...interface{}) error) (*model.ImportJob, error) {
	var job model.ImportJob
	var payload string
	var resultJSON sql.NullString
	if err := scan(
		&job.ID,
		&job.OrganizationID,
		&job.UserID,
		&job.Status,
		&job.Progress,
		&job.Total,
		&job.Attempts,
		&job.MaxAttempts,
		&payload,
		&resultJSON,
		&job.LastError,
		&job.NextRunAt,
		&job.Ctime,
		&job.Mtime,
	); err != nil {
		return nil, err
	}
	job.Payload = []byte(payload)
	if resultJSON.Valid && resultJSON.String != "" {
		var result model.ImportResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err == nil {
			job.Result = &result
		}
	}
	return &job, nil
}

func (r *ImportJobRepo) Get(ctx context.Context, orgID, jobID string) (*model.ImportJob, error) {
	const query = `
		SELECT ` + importJobColumns + `
		FROM import_jobs
		WHERE id = ? AND organization_id = ?
	`
	row := r.db.QueryRowContext(ctx, query, jobID, orgID)
	job, err := scanImportJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimNext atomically moves the oldest runnable waiting job to active and
// returns it. Returns (nil, nil) when the queue is empty.
func (r *ImportJobRepo) ClaimNext(ctx context.Context, now int64) (*model.ImportJob, error) {
	const query = `
		UPDATE import_jobs
		SET status = ?, attempts = attempts + 1, mtime = ?
		WHERE id = (
			SELECT id FROM import_jobs
			WHERE status = ? AND next_run_at <= ?
			ORDER BY ctime ASC
			LIMIT 1
		)
		RETURNING ` + importJobColumns + `
	`
	row := r.db.QueryRowContext(ctx, query, model.ImportJobActive, now, model.ImportJobWaiting, now)
	job, err := scanImportJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (r *ImportJobRepo) UpdateProgress(ctx context.Context, jobID string, progress int, mtime int64) error {
	const query = `
		UPDATE import_jobs
		SET progress = ?, mtime = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, progress, mtime, jobID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrJobNotFound
	}
	return nil
}

// Complete stores the terminal result and drops the row payload; the parsed
// rows are no longer needed once an outcome exists.
func (r *ImportJobRepo) Complete(ctx context.Context, jobID string, result *model.ImportResult, mtime int64) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	const query = `
		UPDATE import_jobs
		SET status = ?, progress = 100, result_json = ?, payload_json = '[]', mtime = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, model.ImportJobCompleted, string(resultJSON), mtime, jobID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrJobNotFound
	}
	return nil
}

func (r *ImportJobRepo) Requeue(ctx context.Context, jobID, lastError string, nextRunAt, mtime int64) error {
	const query = `
		UPDATE import_jobs
		SET status = ?, last_error = ?, next_run_at = ?, mtime = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, model.ImportJobWaiting, lastError, nextRunAt, mtime, jobID)
	return err
}

func (r *ImportJobRepo) Fail(ctx context.Context, jobID, lastError string, mtime int64) error {
	const query = `
		UPDATE import_jobs
		SET status = ?, last_error = ?, payload_json = '[]', mtime = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, model.ImportJobFailed, lastError, mtime, jobID)
	return err
}

// DeleteTerminalBefore reclaims completed or failed jobs older than cutoff.
func (r *ImportJobRepo) DeleteTerminalBefore(ctx context.Context, status string, cutoff int64) (int64, error) {
	const query = `DELETE FROM import_jobs WHERE status = ? AND mtime < ?`
	res, err := r.db.ExecContext(ctx, query, status, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
