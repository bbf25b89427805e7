package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/contatus/contatus/internal/model"
	"github.com/contatus/contatus/internal/pkg/timeutil"
)

type WorkerJobStore interface {
	ClaimNext(ctx context.Context, now int64) (*model.ImportJob, error)
	UpdateProgress(ctx context.Context, jobID string, progress int, mtime int64) error
	Complete(ctx context.Context, jobID string, result *model.ImportResult, mtime int64) error
	Requeue(ctx context.Context, jobID, lastError string, nextRunAt, mtime int64) error
	Fail(ctx context.Context, jobID, lastError string, mtime int64) error
}

type WorkerConfig struct {
	// Workers caps concurrent import jobs, not rows; each job is
	// internally sequential to bound database load.
	Workers      int
	PollInterval time.Duration
	RetryBackoff time.Duration
}

// Worker drains the import queue: claims waiting jobs, replays the shared
// per-row algorithm, persists progress per batch and retries whole-job
// failures with exponential backoff until attempts run out.
type Worker struct {
	jobs    WorkerJobStore
	service *Service
	cfg     WorkerConfig

	once sync.Once
	wg   sync.WaitGroup
}

func NewWorker(jobs WorkerJobStore, service *Service, cfg WorkerConfig) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	return &Worker{jobs: jobs, service: service, cfg: cfg}
}

func (w *Worker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.loop(ctx)
			}()
		}
	})
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.jobs.ClaimNext(ctx, timeutil.NowUnix())
		if err != nil {
			logutil.GetLogger(ctx).Error("claim import job failed", zap.Error(err))
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		w.ProcessJob(ctx, job)
	}
}

// ProcessJob runs one claimed job to a terminal state or back onto the
// queue. The partial result of a failed attempt is discarded; only a fully
// completed run materializes an ImportResult.
func (w *Worker) ProcessJob(ctx context.Context, job *model.ImportJob) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", job.ID),
		zap.String("org_id", job.OrganizationID),
		zap.Int("attempt", job.Attempts),
	)

	var payload jobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.onJobError(ctx, job, fmt.Errorf("decode job payload: %w", err))
		return
	}

	start := time.Now()
	result, err := w.service.runRows(ctx, payload.Rows, job.OrganizationID, payload.Config, func(progress int) error {
		return w.jobs.UpdateProgress(ctx, job.ID, progress, timeutil.NowUnix())
	})
	if err != nil {
		w.onJobError(ctx, job, err)
		return
	}

	if err := w.jobs.Complete(ctx, job.ID, result, timeutil.NowUnix()); err != nil {
		w.onJobError(ctx, job, fmt.Errorf("complete job: %w", err))
		return
	}
	logger.Info("import job finished",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", time.Since(start)),
	)
}

func (w *Worker) onJobError(ctx context.Context, job *model.ImportJob, err error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempts),
	)
	reason := truncateReason(err.Error())
	now := timeutil.NowUnix()

	if job.Attempts < job.MaxAttempts {
		nextRunAt := now + int64(w.backoff(job.Attempts).Seconds())
		if requeueErr := w.jobs.Requeue(ctx, job.ID, reason, nextRunAt, now); requeueErr != nil {
			logger.Error("requeue import job failed", zap.Error(requeueErr))
			return
		}
		logger.Warn("import job requeued", zap.String("reason", reason), zap.Int64("next_run_at", nextRunAt))
		return
	}

	if failErr := w.jobs.Fail(ctx, job.ID, reason, now); failErr != nil {
		logger.Error("mark import job failed errored", zap.Error(failErr))
		return
	}
	logger.Error("import job failed permanently", zap.String("reason", reason))
}

// backoff doubles per attempt: base, 2*base, 4*base, ...
func (w *Worker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return w.cfg.RetryBackoff << (attempt - 1)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
