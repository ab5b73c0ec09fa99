package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/metrics"
)

// prometheus collectors register on the default registry once per test binary
var testMetrics = metrics.New()

// fakeJobStore records state transitions in memory.
type fakeJobStore struct {
	due []domain.IndexingJob

	claimDenied      bool
	retryDenied      bool
	deadLetterDenied bool

	claimed       []int64
	succeeded     []int64
	retried       []int64
	deadLettered  []int64
	retryAt       time.Time
	lastErrors    []string
	staleReturned int64
}

func (f *fakeJobStore) PollDue(_ context.Context, _ time.Time, _ int) ([]domain.IndexingJob, error) {
	return f.due, nil
}

func (f *fakeJobStore) ClaimPending(_ context.Context, jobID int64, _ time.Time) (bool, error) {
	if f.claimDenied {
		return false, nil
	}
	f.claimed = append(f.claimed, jobID)
	return true, nil
}

func (f *fakeJobStore) MarkSucceeded(_ context.Context, jobID int64, _ time.Time) (bool, error) {
	f.succeeded = append(f.succeeded, jobID)
	return true, nil
}

func (f *fakeJobStore) MarkFailedWithRetry(_ context.Context, jobID int64, nextAttemptAt time.Time, errorMessage string) (bool, error) {
	if f.retryDenied {
		return false, nil
	}
	f.retried = append(f.retried, jobID)
	f.retryAt = nextAttemptAt
	f.lastErrors = append(f.lastErrors, errorMessage)
	return true, nil
}

func (f *fakeJobStore) MarkDeadLetter(_ context.Context, jobID int64, _ time.Time, errorMessage string) (bool, error) {
	f.deadLettered = append(f.deadLettered, jobID)
	f.lastErrors = append(f.lastErrors, errorMessage)
	return !f.deadLetterDenied, nil
}

func (f *fakeJobStore) ResetStaleRunning(_ context.Context, _ time.Duration) (int64, error) {
	return f.staleReturned, nil
}

func (f *fakeJobStore) Stats(_ context.Context) (*domain.JobStats, error) {
	return &domain.JobStats{Pending: int64(len(f.due))}, nil
}

// handlerFunc adapts a func to Handler.
type handlerFunc func(ctx context.Context, job *domain.IndexingJob) error

func (fn handlerFunc) Handle(ctx context.Context, job *domain.IndexingJob) error {
	return fn(ctx, job)
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		PollInterval:    time.Second,
		BatchSize:       10,
		BaseBackoff:     2 * time.Second,
		MaxAttempts:     5,
		StaleRunningAge: 5 * time.Minute,
		ReapInterval:    time.Minute,
	}
}

func newTestWorker(jobs JobStore, embed, classify Handler) *IndexingWorker {
	return NewIndexingWorker(jobs, embed, classify, testWorkerConfig(), testMetrics, logger.NewNop())
}

func embedJob(id int64, attempt int) domain.IndexingJob {
	return domain.IndexingJob{
		ID:          id,
		JobType:     domain.JobTypeEmbedUpsert,
		TargetType:  domain.TargetArticle,
		TargetID:    7,
		Status:      domain.JobStatusPending,
		Attempt:     attempt,
		MaxAttempts: 5,
	}
}

func TestBackoff_DoublesPerAttemptAndCaps(t *testing.T) {
	base := 2 * time.Second

	assert.Equal(t, 2*time.Second, Backoff(base, 0))
	assert.Equal(t, 4*time.Second, Backoff(base, 1))
	assert.Equal(t, 8*time.Second, Backoff(base, 2))
	assert.Equal(t, 2048*time.Second, Backoff(base, 10))
	// exponent is capped, higher attempts do not grow further
	assert.Equal(t, 2048*time.Second, Backoff(base, 50))
}

func TestProcessOnce_SuccessfulJobRoundTrip(t *testing.T) {
	jobs := &fakeJobStore{due: []domain.IndexingJob{embedJob(1, 0)}}
	ok := handlerFunc(func(context.Context, *domain.IndexingJob) error { return nil })

	w := newTestWorker(jobs, ok, ok)
	w.ProcessOnce(context.Background())

	assert.Equal(t, []int64{1}, jobs.claimed)
	assert.Equal(t, []int64{1}, jobs.succeeded)
	assert.Empty(t, jobs.retried)
	assert.Empty(t, jobs.deadLettered)
}

func TestProcessOnce_SkipsLostClaim(t *testing.T) {
	jobs := &fakeJobStore{due: []domain.IndexingJob{embedJob(1, 0)}, claimDenied: true}
	called := false
	handler := handlerFunc(func(context.Context, *domain.IndexingJob) error {
		called = true
		return nil
	})

	w := newTestWorker(jobs, handler, handler)
	w.ProcessOnce(context.Background())

	assert.False(t, called)
	assert.Empty(t, jobs.succeeded)
	assert.Empty(t, jobs.deadLettered)
}

func TestProcessOnce_TransientFailureSchedulesBackoff(t *testing.T) {
	jobs := &fakeJobStore{due: []domain.IndexingJob{embedJob(1, 2)}}
	failing := handlerFunc(func(context.Context, *domain.IndexingJob) error {
		return errors.New("embed provider timeout")
	})

	before := time.Now().UTC()
	w := newTestWorker(jobs, failing, failing)
	w.ProcessOnce(context.Background())

	require.Equal(t, []int64{1}, jobs.retried)
	assert.Empty(t, jobs.deadLettered)
	// attempt 2 with base 2s gives an 8s delay
	delay := jobs.retryAt.Sub(before)
	assert.GreaterOrEqual(t, delay, 8*time.Second)
	assert.Less(t, delay, 9*time.Second)
	assert.Contains(t, jobs.lastErrors[0], "timeout")
}

func TestProcessOnce_ExhaustedRetriesDeadLetter(t *testing.T) {
	jobs := &fakeJobStore{due: []domain.IndexingJob{embedJob(1, 5)}, retryDenied: true}
	failing := handlerFunc(func(context.Context, *domain.IndexingJob) error {
		return errors.New("still failing")
	})

	w := newTestWorker(jobs, failing, failing)
	w.ProcessOnce(context.Background())

	assert.Equal(t, []int64{1}, jobs.deadLettered)
}

func TestProcessOnce_PermanentFailureDeadLettersImmediately(t *testing.T) {
	jobs := &fakeJobStore{due: []domain.IndexingJob{embedJob(1, 0)}}
	failing := handlerFunc(func(context.Context, *domain.IndexingJob) error {
		return Permanent("article 7 not found", domain.ErrNotFound)
	})

	w := newTestWorker(jobs, failing, failing)
	w.ProcessOnce(context.Background())

	assert.Empty(t, jobs.retried)
	assert.Equal(t, []int64{1}, jobs.deadLettered)
}

func TestProcessOnce_UnknownJobTypeIsPermanent(t *testing.T) {
	job := embedJob(1, 0)
	job.JobType = "reticulate_splines"
	jobs := &fakeJobStore{due: []domain.IndexingJob{job}}
	handler := handlerFunc(func(context.Context, *domain.IndexingJob) error { return nil })

	w := newTestWorker(jobs, handler, handler)
	w.ProcessOnce(context.Background())

	assert.Empty(t, jobs.retried)
	require.Len(t, jobs.deadLettered, 1)
	assert.Contains(t, jobs.lastErrors[0], "unknown job type")
}

func TestProcessOnce_LostDeadLetterSkipsMetric(t *testing.T) {
	// a job type unique to this test isolates its counter series
	job := embedJob(1, 0)
	job.JobType = "embed_upsert_reclaimed"
	jobs := &fakeJobStore{due: []domain.IndexingJob{job}, deadLetterDenied: true}
	handler := handlerFunc(func(context.Context, *domain.IndexingJob) error { return nil })

	w := newTestWorker(jobs, handler, handler)
	w.ProcessOnce(context.Background())

	// the conditional update matched no row, so no dead-letter is recorded
	require.Len(t, jobs.deadLettered, 1)
	count := testutil.ToFloat64(testMetrics.JobsProcessed.WithLabelValues("embed_upsert_reclaimed", "dead_letter"))
	assert.Zero(t, count)
}

func TestWorker_StartStop(t *testing.T) {
	jobs := &fakeJobStore{}
	handler := handlerFunc(func(context.Context, *domain.IndexingJob) error { return nil })

	w := newTestWorker(jobs, handler, handler)
	w.Start(context.Background())
	assert.True(t, w.IsRunning())

	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestWorker_StopTwiceIsSafe(t *testing.T) {
	jobs := &fakeJobStore{}
	handler := handlerFunc(func(context.Context, *domain.IndexingJob) error { return nil })

	w := newTestWorker(jobs, handler, handler)
	w.Start(context.Background())

	w.Stop()
	w.Stop()

	assert.False(t, w.IsRunning())

	// the worker can be brought back up after a full stop
	w.Start(context.Background())
	assert.True(t, w.IsRunning())
	w.Stop()
}

func TestIsPermanent(t *testing.T) {
	wrapped := Permanent("broken state", errors.New("cause"))

	assert.True(t, IsPermanent(wrapped))
	assert.True(t, IsPermanent(errors.Join(errors.New("outer"), wrapped)))
	assert.False(t, IsPermanent(errors.New("plain")))
	assert.False(t, IsPermanent(nil))
}
