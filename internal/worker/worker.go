// Package worker provides the background indexing worker: it polls the
// durable job queue, claims due jobs with compare-and-set transitions, and
// dispatches them to the embed and classify handlers.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/metrics"
)

// maxBackoffExponent caps the doubling so very high attempt counts cannot
// overflow the computed delay.
const maxBackoffExponent = 10

const reapInterval = 1 * time.Minute

// JobStore is the queue surface the worker drives.
type JobStore interface {
	PollDue(ctx context.Context, now time.Time, limit int) ([]domain.IndexingJob, error)
	ClaimPending(ctx context.Context, jobID int64, claimedAt time.Time) (bool, error)
	MarkSucceeded(ctx context.Context, jobID int64, completedAt time.Time) (bool, error)
	MarkFailedWithRetry(ctx context.Context, jobID int64, nextAttemptAt time.Time, errorMessage string) (bool, error)
	MarkDeadLetter(ctx context.Context, jobID int64, completedAt time.Time, errorMessage string) (bool, error)
	ResetStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error)
	Stats(ctx context.Context) (*domain.JobStats, error)
}

// Handler executes one claimed job.
type Handler interface {
	Handle(ctx context.Context, job *domain.IndexingJob) error
}

// IndexingWorker polls the job queue and executes due jobs sequentially per
// tick. Claims are atomic, so multiple worker instances stay correct without
// external locking.
type IndexingWorker struct {
	jobs     JobStore
	embed    Handler
	classify Handler
	metrics  *metrics.Metrics
	logger   logger.Logger

	pollInterval    time.Duration
	batchSize       int
	baseBackoff     time.Duration
	staleRunningAge time.Duration
	reapInterval    time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewIndexingWorker creates a worker from configuration.
func NewIndexingWorker(
	jobs JobStore,
	embed, classify Handler,
	cfg config.WorkerConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *IndexingWorker {
	reap := cfg.ReapInterval
	if reap <= 0 {
		reap = reapInterval
	}

	return &IndexingWorker{
		jobs:            jobs,
		embed:           embed,
		classify:        classify,
		metrics:         m,
		logger:          log,
		pollInterval:    cfg.PollInterval,
		batchSize:       cfg.BatchSize,
		baseBackoff:     cfg.BaseBackoff,
		staleRunningAge: cfg.StaleRunningAge,
		reapInterval:    reap,
	}
}

// Start begins the polling and reaper loops.
func (w *IndexingWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.stopChan = make(chan struct{})
	stop := w.stopChan
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx, stop)

	w.wg.Add(1)
	go w.runReaper(ctx, stop)

	w.logger.Info("indexing worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize))
}

// Stop gracefully stops the worker and waits for in-flight jobs. A second
// Stop is a no-op, and the worker can be started again afterwards.
func (w *IndexingWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	stop := w.stopChan
	w.mu.Unlock()

	close(stop)
	w.wg.Wait()
	w.logger.Info("indexing worker stopped")
}

// IsRunning reports whether the worker loops are active.
func (w *IndexingWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *IndexingWorker) run(ctx context.Context, stop <-chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.ProcessOnce(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce polls for due jobs and executes them sequentially.
func (w *IndexingWorker) ProcessOnce(ctx context.Context) {
	now := time.Now().UTC()

	due, pollErr := w.jobs.PollDue(ctx, now, w.batchSize)
	if pollErr != nil {
		w.logger.Error("failed to poll due jobs", logger.Error(pollErr))
		return
	}

	w.metrics.PollBatchSize.Observe(float64(len(due)))
	if len(due) == 0 {
		return
	}

	w.logger.Debug("processing due jobs", logger.Int("count", len(due)))
	for i := range due {
		w.processJob(ctx, &due[i])
	}
}

func (w *IndexingWorker) processJob(ctx context.Context, job *domain.IndexingJob) {
	claimed, claimErr := w.jobs.ClaimPending(ctx, job.ID, time.Now().UTC())
	if claimErr != nil {
		w.logger.Error("failed to claim job",
			logger.Int64("job_id", job.ID),
			logger.Error(claimErr))
		return
	}
	if !claimed {
		// another worker won the race; skip, never retry the claim
		return
	}

	started := time.Now()
	handleErr := w.dispatch(ctx, job)
	duration := time.Since(started)

	if handleErr == nil {
		if _, err := w.jobs.MarkSucceeded(ctx, job.ID, time.Now().UTC()); err != nil {
			w.logger.Error("failed to mark job succeeded",
				logger.Int64("job_id", job.ID),
				logger.Error(err))
			return
		}
		w.metrics.RecordJob(string(job.JobType), "succeeded", duration)
		w.logger.Debug("job succeeded",
			logger.Int64("job_id", job.ID),
			logger.String("job_type", string(job.JobType)),
			logger.Duration("duration", duration))
		return
	}

	w.handleFailure(ctx, job, handleErr, duration)
}

func (w *IndexingWorker) dispatch(ctx context.Context, job *domain.IndexingJob) error {
	switch job.JobType {
	case domain.JobTypeEmbedUpsert:
		return w.embed.Handle(ctx, job)
	case domain.JobTypeDiscussionClassify:
		return w.classify.Handle(ctx, job)
	default:
		return Permanent("unknown job type "+string(job.JobType), nil)
	}
}

func (w *IndexingWorker) handleFailure(ctx context.Context, job *domain.IndexingJob, handleErr error, duration time.Duration) {
	w.logger.Warn("job handler failed",
		logger.Int64("job_id", job.ID),
		logger.String("job_type", string(job.JobType)),
		logger.Int("attempt", job.Attempt),
		logger.Error(handleErr))

	if IsPermanent(handleErr) {
		w.metrics.RecordJobFailure(string(job.JobType), "permanent")
		w.deadLetter(ctx, job, handleErr, duration)
		return
	}

	w.metrics.RecordJobFailure(string(job.JobType), "transient")

	nextAttemptAt := time.Now().UTC().Add(Backoff(w.baseBackoff, job.Attempt))
	retried, retryErr := w.jobs.MarkFailedWithRetry(ctx, job.ID, nextAttemptAt, handleErr.Error())
	if retryErr != nil {
		w.logger.Error("failed to schedule retry",
			logger.Int64("job_id", job.ID),
			logger.Error(retryErr))
		return
	}
	if retried {
		w.metrics.RecordJob(string(job.JobType), "retried", duration)
		return
	}

	// retry budget exhausted
	w.deadLetter(ctx, job, handleErr, duration)
}

func (w *IndexingWorker) deadLetter(ctx context.Context, job *domain.IndexingJob, handleErr error, duration time.Duration) {
	marked, err := w.jobs.MarkDeadLetter(ctx, job.ID, time.Now().UTC(), handleErr.Error())
	if err != nil {
		w.logger.Error("failed to dead-letter job",
			logger.Int64("job_id", job.ID),
			logger.Error(err))
		return
	}
	if !marked {
		// job is no longer running, likely reaped back to pending
		w.logger.Warn("skipped dead-letter for job not in running state",
			logger.Int64("job_id", job.ID))
		return
	}

	w.metrics.RecordJob(string(job.JobType), "dead_letter", duration)
	w.logger.Error("job dead-lettered",
		logger.Int64("job_id", job.ID),
		logger.String("job_type", string(job.JobType)),
		logger.Int("attempt", job.Attempt),
		logger.Error(handleErr))
}

// runReaper re-queues jobs stuck in running after a worker crash.
func (w *IndexingWorker) runReaper(ctx context.Context, stop <-chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reset, reapErr := w.jobs.ResetStaleRunning(ctx, w.staleRunningAge)
			if reapErr != nil {
				w.logger.Error("job reaper failed", logger.Error(reapErr))
			} else if reset > 0 {
				w.metrics.JobsReaped.Add(float64(reset))
				w.logger.Warn("recovered stale running jobs", logger.Int64("reset", reset))
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// GetStats returns current queue and worker statistics.
func (w *IndexingWorker) GetStats(ctx context.Context) (map[string]any, error) {
	stats, err := w.jobs.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"pending":                stats.Pending,
		"running":                stats.Running,
		"succeeded":              stats.Succeeded,
		"dead_letter":            stats.DeadLetter,
		"avg_completion_seconds": stats.AvgCompletionSeconds,
		"poll_interval":          w.pollInterval.String(),
		"batch_size":             w.batchSize,
		"running_worker":         w.IsRunning(),
	}, nil
}

// Backoff returns the capped exponential retry delay for the given attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	exponent := attempt
	if exponent > maxBackoffExponent {
		exponent = maxBackoffExponent
	}
	return base * time.Duration(1<<exponent)
}
