package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/contatus/contatus/internal/model"
	"github.com/contatus/contatus/internal/repo"
)

// ImportCleanupJob prunes finished import jobs so the queue table stays
// small: completed jobs after a short window, failed ones after a longer one
// so they can still be inspected.
type ImportCleanupJob struct {
	jobs               *repo.ImportJobRepo
	completedRetention time.Duration
	failedRetention    time.Duration
}

func NewImportCleanupJob(jobs *repo.ImportJobRepo, completedRetention, failedRetention time.Duration) *ImportCleanupJob {
	if completedRetention <= 0 {
		completedRetention = time.Hour
	}
	if failedRetention <= 0 {
		failedRetention = 24 * time.Hour
	}
	return &ImportCleanupJob{
		jobs:               jobs,
		completedRetention: completedRetention,
		failedRetention:    failedRetention,
	}
}

func (j *ImportCleanupJob) Name() string {
	return "import_cleanup"
}

func (j *ImportCleanupJob) Run(ctx context.Context) error {
	if j.jobs == nil {
		return nil
	}
	now := time.Now()
	completed, err := j.jobs.DeleteTerminalBefore(ctx, model.ImportJobCompleted, now.Add(-j.completedRetention).Unix())
	if err != nil {
		return err
	}
	failed, err := j.jobs.DeleteTerminalBefore(ctx, model.ImportJobFailed, now.Add(-j.failedRetention).Unix())
	if err != nil {
		return err
	}
	if completed > 0 || failed > 0 {
		logutil.GetLogger(ctx).Info("import jobs pruned",
			zap.Int64("completed", completed),
			zap.Int64("failed", failed),
		)
	}
	return nil
}
