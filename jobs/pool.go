package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// PoolConfig sizes the worker pool
type PoolConfig struct {
	Workers      int
	PollInterval time.Duration
	RetryDelay   time.Duration
}

// Pool runs polling workers that claim jobs from a Queue and dispatch them
// through a Registry.
type Pool struct {
	queue    *Queue
	registry *Registry
	log      *logger.Logger
	cfg      PoolConfig
	group    *errgroup.Group
}

func NewPool(queue *Queue, registry *Registry, baseLog *logger.Logger, cfg PoolConfig) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Pool{
		queue:    queue,
		registry: registry,
		log:      baseLog.With("component", "JobPool"),
		cfg:      cfg,
	}
}

// Start launches the workers. They stop when ctx is cancelled; call Wait to
// block until they have drained.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Starting job worker pool", "workers", p.cfg.Workers)
	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		workerID := i + 1
		group.Go(func() error {
			p.runLoop(gctx, workerID)
			return nil
		})
	}
	p.group = group
}

func (p *Pool) Wait() error {
	if p.group == nil {
		return nil
	}
	return p.group.Wait()
}

func (p *Pool) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			for ctx.Err() == nil {
				ran, err := p.RunOnce(ctx)
				if err != nil {
					p.log.Warn("Job claim failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes a single due job. It reports whether a job ran.
func (p *Pool) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.queue.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	p.execute(ctx, job)
	return true, nil
}

func (p *Pool) execute(ctx context.Context, job *models.AnalysisJob) {
	ctx, span := otel.Tracer("fabmarket-api/jobs").Start(ctx, "job "+job.TaskName)
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.task", job.TaskName),
		attribute.Int("job.attempt", job.Attempts),
	)

	log := p.log.With("job_id", job.ID, "task", job.TaskName, "attempt", job.Attempts)

	h, ok := p.registry.Get(job.TaskName)
	if !ok {
		log.Warn("No handler registered for task")
		p.fail(ctx, log, job, &missingHandlerError{TaskName: job.TaskName})
		return
	}

	runErr := p.run(ctx, log, h, job)
	if runErr == nil {
		if err := p.queue.Succeed(ctx, job); err != nil {
			log.Error("Failed to mark job succeeded", "error", err)
		}
		return
	}

	span.RecordError(runErr)
	span.SetStatus(codes.Error, runErr.Error())

	retry, ok := AsRetryable(runErr)
	if !ok {
		p.fail(ctx, log, job, runErr)
		return
	}
	delay := p.cfg.RetryDelay
	if retry.Delay > 0 {
		delay = retry.Delay
	}
	err := p.queue.Retry(ctx, job, delay, retry.Err)
	switch {
	case errors.Is(err, ErrRetriesExhausted):
		log.Error("Job failed after exhausting retries", "error", retry.Err)
	case err != nil:
		log.Error("Failed to requeue job", "error", err)
	default:
		log.Warn("Job requeued", "error", retry.Err, "delay", delay)
	}
}

func (p *Pool) run(ctx context.Context, log *logger.Logger, h Handler, job *models.AnalysisJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panic", "panic", r)
			err = &panicError{Val: r}
		}
	}()
	return h.Run(ctx, job)
}

func (p *Pool) fail(ctx context.Context, log *logger.Logger, job *models.AnalysisJob, cause error) {
	if err := p.queue.Fail(ctx, job, cause); err != nil {
		log.Error("Failed to mark job failed", "error", err)
		return
	}
	log.Error("Job failed", "error", cause)
}
