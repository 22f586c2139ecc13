package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/platform/lock"
	"tle_zone_contest/internal/platform/metrics"
	"tle_zone_contest/internal/platform/queue"
)

// Finalizer records ratings for every registrant of an ended contest.
type Finalizer interface {
	FinalizeContest(ctx context.Context, contestID string) (*model.FinalizationSummary, error)
}

// FinalizationWorker drains the finalization queue one job at a time. Jobs
// for the same contest never run concurrently, across all instances.
type FinalizationWorker struct {
	queue       queue.FinalizationQueue
	finalizer   Finalizer
	locker      lock.Locker
	maxAttempts int
	backoff     time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewFinalizationWorker(
	q queue.FinalizationQueue,
	finalizer Finalizer,
	locker lock.Locker,
	maxAttempts int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FinalizationWorker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FinalizationWorker{
		queue:       q,
		finalizer:   finalizer,
		locker:      locker,
		maxAttempts: maxAttempts,
		backoff:     5 * time.Second,
		metrics:     m,
		logger:      logger,
	}
}

// Start blocks until ctx is cancelled.
func (w *FinalizationWorker) Start(ctx context.Context) {
	w.logger.Info("finalization worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("finalization worker stopping")
			return
		}

		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("failed to pop finalization job", "error", err)
			w.sleep(ctx, w.backoff)
			continue
		}
		w.processJobWithLock(ctx, *job)
	}
}

func (w *FinalizationWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *FinalizationWorker) processJobWithLock(ctx context.Context, job model.FinalizationJob) {
	log := w.logger.With("job_id", job.ID, "contest_id", job.ContestID, "attempt", job.Attempts+1)

	release, err := w.locker.Acquire(ctx, lock.ContestFinalizationKey(job.ContestID))
	if err != nil {
		log.Warn("could not acquire finalization lock", "error", err)
		w.retry(ctx, job, err)
		return
	}
	defer release()

	summary, err := w.finalizer.FinalizeContest(ctx, job.ContestID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidAction) || errors.Is(err, common.ErrValidation) {
			// Retrying cannot fix these.
			log.Error("dropping finalization job", "error", err)
			w.metrics.FinalizationJobs.WithLabelValues("failed").Inc()
			return
		}
		log.Error("finalization failed", "error", err, "summary", summary)
		w.retry(ctx, job, err)
		return
	}

	w.metrics.FinalizationJobs.WithLabelValues("completed").Inc()
	log.Info("contest finalized", "processed", summary.Processed, "recorded", summary.Recorded)
}

// retry puts the job back until maxAttempts is reached.
func (w *FinalizationWorker) retry(ctx context.Context, job model.FinalizationJob, cause error) {
	job.Attempts++
	if job.Attempts >= w.maxAttempts {
		w.logger.Error("finalization job exhausted retries", "job_id", job.ID, "contest_id", job.ContestID, "attempts", job.Attempts, "error", cause)
		w.metrics.FinalizationJobs.WithLabelValues("failed").Inc()
		return
	}

	// Survive shutdown so the job is not lost.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.Push(pushCtx, job); err != nil {
		w.logger.Error("failed to re-queue finalization job", "job_id", job.ID, "error", err)
		w.metrics.FinalizationJobs.WithLabelValues("failed").Inc()
		return
	}
	w.metrics.FinalizationJobs.WithLabelValues("requeued").Inc()
}
