package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/models"
	"gorm.io/gorm"
)

// Queue persists jobs in the analysis_jobs table. Claims are exclusive: on
// postgres through FOR UPDATE SKIP LOCKED, everywhere through a conditional
// update that only one claimer can win.
type Queue struct {
	db           *gorm.DB
	maxRetries   int
	staleRunning time.Duration
	clock        func() time.Time
}

type QueueOption func(*Queue)

// WithMaxRetries sets how many times a failed execution is retried
func WithMaxRetries(n int) QueueOption {
	return func(q *Queue) { q.maxRetries = n }
}

// WithStaleRunning sets how long a running job may go without finishing
// before another worker reclaims it
func WithStaleRunning(d time.Duration) QueueOption {
	return func(q *Queue) { q.staleRunning = d }
}

func WithClock(clock func() time.Time) QueueOption {
	return func(q *Queue) { q.clock = clock }
}

func NewQueue(db *gorm.DB, opts ...QueueOption) *Queue {
	q := &Queue{
		db:           db,
		maxRetries:   3,
		staleRunning: 15 * time.Minute,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// WithTx returns a queue bound to tx so an enqueue commits with the caller's writes
func (q *Queue) WithTx(tx *gorm.DB) *Queue {
	cp := *q
	cp.db = tx
	return &cp
}

func (q *Queue) now() time.Time {
	return q.clock().UTC()
}

func (q *Queue) Enqueue(ctx context.Context, taskName string, designID uuid.UUID) (*models.AnalysisJob, error) {
	job := &models.AnalysisJob{
		TaskName:   taskName,
		DesignID:   designID,
		Status:     models.JobStatusQueued,
		MaxRetries: q.maxRetries,
		RunAfter:   q.now(),
	}
	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", taskName, err)
	}
	return job, nil
}

// ClaimNext marks the oldest runnable job as running and returns it, or nil
// when nothing is due.
func (q *Queue) ClaimNext(ctx context.Context) (*models.AnalysisJob, error) {
	now := q.now()
	staleCutoff := now.Add(-q.staleRunning)

	var claimed *models.AnalysisJob
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.AnalysisJob
		err := config.ForUpdate(tx, "SKIP LOCKED").
			Where("(status = ? AND run_after <= ?) OR (status = ? AND locked_at < ?)",
				models.JobStatusQueued, now, models.JobStatusRunning, staleCutoff).
			Order("run_after ASC").
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.AnalysisJob{}).
			Where("id = ? AND status = ? AND attempts = ?", job.ID, job.Status, job.Attempts).
			Updates(map[string]interface{}{
				"status":     models.JobStatusRunning,
				"attempts":   job.Attempts + 1,
				"locked_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		job.Status = models.JobStatusRunning
		job.Attempts++
		job.LockedAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return claimed, nil
}

func (q *Queue) Succeed(ctx context.Context, job *models.AnalysisJob) error {
	now := q.now()
	return q.finish(ctx, job, map[string]interface{}{
		"status":      models.JobStatusSucceeded,
		"finished_at": now,
		"locked_at":   nil,
		"last_error":  "",
		"updated_at":  now,
	})
}

// Retry requeues job after delay while it has retries left. Otherwise the job
// is failed and ErrRetriesExhausted is returned.
func (q *Queue) Retry(ctx context.Context, job *models.AnalysisJob, delay time.Duration, cause error) error {
	if job.Attempts > job.MaxRetries {
		if err := q.Fail(ctx, job, cause); err != nil {
			return err
		}
		return ErrRetriesExhausted
	}
	now := q.now()
	return q.finish(ctx, job, map[string]interface{}{
		"status":     models.JobStatusQueued,
		"run_after":  now.Add(delay),
		"locked_at":  nil,
		"last_error": errorText(cause),
		"updated_at": now,
	})
}

func (q *Queue) Fail(ctx context.Context, job *models.AnalysisJob, cause error) error {
	now := q.now()
	return q.finish(ctx, job, map[string]interface{}{
		"status":      models.JobStatusFailed,
		"finished_at": now,
		"locked_at":   nil,
		"last_error":  errorText(cause),
		"updated_at":  now,
	})
}

func (q *Queue) finish(ctx context.Context, job *models.AnalysisJob, updates map[string]interface{}) error {
	res := q.db.WithContext(ctx).Model(&models.AnalysisJob{}).
		Where("id = ? AND status = ?", job.ID, models.JobStatusRunning).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	return nil
}

// Replay puts a failed job back on the queue with a fresh attempt budget
func (q *Queue) Replay(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := config.ForUpdate(tx).First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if job.Status != models.JobStatusFailed {
			return ErrNotReplayable
		}
		now := q.now()
		if err := tx.Model(&job).Updates(map[string]interface{}{
			"status":      models.JobStatusQueued,
			"attempts":    0,
			"run_after":   now,
			"finished_at": nil,
			"last_error":  "",
			"updated_at":  now,
		}).Error; err != nil {
			return err
		}
		return tx.First(&job, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := q.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListFailed returns failed jobs, most recently finished first
func (q *Queue) ListFailed(ctx context.Context, limit int) ([]models.AnalysisJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.AnalysisJob
	err := q.db.WithContext(ctx).
		Where("status = ?", models.JobStatusFailed).
		Order("finished_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
