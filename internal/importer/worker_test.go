package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contatus/contatus/internal/model"
)

type fakeWorkerJobStore struct {
	progress  []int
	completed *model.ImportResult
	requeues  []string
	nextRuns  []int64
	failures  []string

	progressErr error
}

func (s *fakeWorkerJobStore) ClaimNext(context.Context, int64) (*model.ImportJob, error) {
	return nil, nil
}

func (s *fakeWorkerJobStore) UpdateProgress(_ context.Context, _ string, progress int, _ int64) error {
	if s.progressErr != nil {
		return s.progressErr
	}
	s.progress = append(s.progress, progress)
	return nil
}

func (s *fakeWorkerJobStore) Complete(_ context.Context, _ string, result *model.ImportResult, _ int64) error {
	s.completed = result
	return nil
}

func (s *fakeWorkerJobStore) Requeue(_ context.Context, _ string, lastError string, nextRunAt, _ int64) error {
	s.requeues = append(s.requeues, lastError)
	s.nextRuns = append(s.nextRuns, nextRunAt)
	return nil
}

func (s *fakeWorkerJobStore) Fail(_ context.Context, _ string, lastError string, _ int64) error {
	s.failures = append(s.failures, lastError)
	return nil
}

func queuedJob(t *testing.T, rows int, attempts, maxAttempts int) *model.ImportJob {
	t.Helper()
	payloadRows := make([]Row, 0, rows)
	for i := 0; i < rows; i++ {
		payloadRows = append(payloadRows, Row{"name": fmt.Sprintf("Contato %d", i)})
	}
	payload, err := json.Marshal(jobPayload{Rows: payloadRows, Config: DefaultConfig()})
	require.NoError(t, err)
	return &model.ImportJob{
		ID:             "job-1",
		OrganizationID: "org-1",
		Status:         model.ImportJobActive,
		Total:          rows,
		Attempts:       attempts,
		MaxAttempts:    maxAttempts,
		Payload:        payload,
	}
}

func newWorkerFixture(store *fakeWorkerJobStore) (*fixture, *Worker) {
	f := newFixture()
	worker := NewWorker(store, f.service, WorkerConfig{RetryBackoff: 5 * time.Second})
	return f, worker
}

func TestProcessJobReportsProgressAndCompletes(t *testing.T) {
	store := &fakeWorkerJobStore{}
	f, worker := newWorkerFixture(store)

	// 250 rows = three batches of 100/100/50
	worker.ProcessJob(context.Background(), queuedJob(t, 250, 1, 3))

	require.Equal(t, []int{40, 80, 100}, store.progress)
	require.NotNil(t, store.completed)
	require.Equal(t, 250, store.completed.Total)
	require.Equal(t, 250, store.completed.Success)
	require.Len(t, f.contacts.inserted, 250)
	require.Empty(t, store.requeues)
	require.Empty(t, store.failures)
}

func TestProcessJobRequeuesWhileAttemptsRemain(t *testing.T) {
	store := &fakeWorkerJobStore{progressErr: fmt.Errorf("update lost")}
	_, worker := newWorkerFixture(store)

	before := time.Now().Unix()
	worker.ProcessJob(context.Background(), queuedJob(t, 10, 1, 3))

	require.Len(t, store.requeues, 1)
	require.Contains(t, store.requeues[0], "update lost")
	require.Nil(t, store.completed)
	require.Empty(t, store.failures)
	// first retry waits one backoff interval
	require.GreaterOrEqual(t, store.nextRuns[0], before+5)
}

func TestProcessJobFailsAfterLastAttempt(t *testing.T) {
	store := &fakeWorkerJobStore{progressErr: fmt.Errorf("update lost")}
	_, worker := newWorkerFixture(store)

	worker.ProcessJob(context.Background(), queuedJob(t, 10, 3, 3))

	require.Empty(t, store.requeues)
	require.Len(t, store.failures, 1)
	require.Contains(t, store.failures[0], "update lost")
}

func TestProcessJobBadPayload(t *testing.T) {
	store := &fakeWorkerJobStore{}
	_, worker := newWorkerFixture(store)

	job := queuedJob(t, 1, 3, 3)
	job.Payload = []byte("{not json")
	worker.ProcessJob(context.Background(), job)

	require.Len(t, store.failures, 1)
	require.Contains(t, store.failures[0], "decode job payload")
}

func TestBackoffDoublesPerAttempt(t *testing.T) {
	worker := NewWorker(&fakeWorkerJobStore{}, nil, WorkerConfig{RetryBackoff: 5 * time.Second})

	require.Equal(t, 5*time.Second, worker.backoff(1))
	require.Equal(t, 10*time.Second, worker.backoff(2))
	require.Equal(t, 20*time.Second, worker.backoff(3))
	require.Equal(t, 5*time.Second, worker.backoff(0))
}

func TestTruncateReason(t *testing.T) {
	require.Equal(t, "short", truncateReason("  short \n"))
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	require.Len(t, truncateReason(string(long)), 1000)
}

func TestWorkerStartStopsOnContextCancel(t *testing.T) {
	store := &fakeWorkerJobStore{}
	f := newFixture()
	worker := NewWorker(store, f.service, WorkerConfig{Workers: 2, PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
