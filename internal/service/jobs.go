// Package service contains the application services: document CRUD with job
// enqueueing, the semantic retrieval pipeline, threaded discussion views, and
// retrieval-augmented answering.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// JobQueue is the enqueue surface of the job store.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType domain.JobType, targetType domain.TargetType, targetID int64, availableAt time.Time, maxAttempts int) (int64, error)
	Stats(ctx context.Context) (*domain.JobStats, error)
}

// JobService enqueues indexing work for document mutations. Enqueueing runs
// synchronously in the caller's request and never blocks on the worker.
type JobService struct {
	queue       JobQueue
	maxAttempts int
	logger      logger.Logger
}

// NewJobService creates a job service.
func NewJobService(queue JobQueue, maxAttempts int, log logger.Logger) *JobService {
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	return &JobService{queue: queue, maxAttempts: maxAttempts, logger: log}
}

// EnqueueEmbed schedules an embed-upsert job for a document.
func (s *JobService) EnqueueEmbed(ctx context.Context, targetType domain.TargetType, targetID int64) error {
	jobID, err := s.queue.Enqueue(ctx, domain.JobTypeEmbedUpsert, targetType, targetID, time.Now().UTC(), s.maxAttempts)
	if err != nil {
		return fmt.Errorf("enqueue embed job: %w", err)
	}

	s.logger.Debug("embed job enqueued",
		logger.Int64("job_id", jobID),
		logger.String("target_type", string(targetType)),
		logger.Int64("target_id", targetID))
	return nil
}

// EnqueueClassify schedules a classification job for an article's forest.
func (s *JobService) EnqueueClassify(ctx context.Context, articleID int64) error {
	jobID, err := s.queue.Enqueue(ctx, domain.JobTypeDiscussionClassify, domain.TargetArticle, articleID, time.Now().UTC(), s.maxAttempts)
	if err != nil {
		return fmt.Errorf("enqueue classify job: %w", err)
	}

	s.logger.Debug("classify job enqueued",
		logger.Int64("job_id", jobID),
		logger.Int64("article_id", articleID))
	return nil
}

// Stats returns queue statistics for the operational endpoint.
func (s *JobService) Stats(ctx context.Context) (*domain.JobStats, error) {
	return s.queue.Stats(ctx)
}
