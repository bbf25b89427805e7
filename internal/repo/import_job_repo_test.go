package repo

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
)

var importJobTestColumns = []string{
	"id", "organization_id", "user_id", "status", "progress", "total",
	"attempts", "max_attempts", "payload_json", "result_json", "last_error",
	"next_run_at", "ctime", "mtime",
}

func TestImportJobRepoClaimNext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE import_jobs`).
		WithArgs(model.ImportJobActive, int64(1000), model.ImportJobWaiting, int64(1000)).
		WillReturnRows(sqlmock.NewRows(importJobTestColumns).AddRow(
			"job-1", "org-1", "user-1", model.ImportJobActive, 0, 600,
			1, 3, `[{"name":"Maria"}]`, nil, "", 0, 900, 1000,
		))

	repo := NewImportJobRepo(db)
	job, err := repo.ClaimNext(context.Background(), 1000)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, model.ImportJobActive, job.Status)
	require.Equal(t, 1, job.Attempts)
	require.JSONEq(t, `[{"name":"Maria"}]`, string(job.Payload))
	require.Nil(t, job.Result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepoClaimNextEmptyQueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE import_jobs`).
		WillReturnRows(sqlmock.NewRows(importJobTestColumns))

	repo := NewImportJobRepo(db)
	job, err := repo.ClaimNext(context.Background(), 1000)
	require.NoError(t, err)
	require.Nil(t, job)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepoGetParsesResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	result := model.ImportResult{Total: 600, Success: 590, Duplicates: 8, Errors: 2, ErrorDetails: []model.ImportError{}}
	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM import_jobs`).
		WithArgs("job-1", "org-1").
		WillReturnRows(sqlmock.NewRows(importJobTestColumns).AddRow(
			"job-1", "org-1", "user-1", model.ImportJobCompleted, 100, 600,
			1, 3, "[]", string(resultJSON), "", 0, 900, 1000,
		))

	repo := NewImportJobRepo(db)
	job, err := repo.Get(context.Background(), "org-1", "job-1")
	require.NoError(t, err)
	require.NotNil(t, job.Result)
	require.Equal(t, 590, job.Result.Success)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM import_jobs`).
		WithArgs("job-x", "org-1").
		WillReturnRows(sqlmock.NewRows(importJobTestColumns))

	repo := NewImportJobRepo(db)
	_, err = repo.Get(context.Background(), "org-1", "job-x")
	require.ErrorIs(t, err, appErr.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepoUpdateProgressMissingJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE import_jobs`).
		WithArgs(50, int64(1000), "job-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewImportJobRepo(db)
	err = repo.UpdateProgress(context.Background(), "job-x", 50, 1000)
	require.ErrorIs(t, err, appErr.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepoCompleteDropsPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	result := &model.ImportResult{Total: 10, Success: 10, ErrorDetails: []model.ImportError{}}
	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE import_jobs\s+SET status = \?, progress = 100, result_json = \?, payload_json = '\[\]'`).
		WithArgs(model.ImportJobCompleted, string(resultJSON), int64(1000), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewImportJobRepo(db)
	require.NoError(t, repo.Complete(context.Background(), "job-1", result, 1000))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepoDeleteTerminalBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM import_jobs WHERE status = \? AND mtime < \?`).
		WithArgs(model.ImportJobCompleted, int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 7))

	repo := NewImportJobRepo(db)
	deleted, err := repo.DeleteTerminalBefore(context.Background(), model.ImportJobCompleted, 500)
	require.NoError(t, err)
	require.Equal(t, int64(7), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
