package service

import (
	"context"
	"fmt"
	"log/slog"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/metrics"
	"tle_zone_contest/internal/platform/queue"

	"github.com/google/uuid"
)

// FinalizationService hands ended contests to the finalization worker.
type FinalizationService struct {
	contestRepo repository.ContestRepository
	queue       queue.FinalizationQueue
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewFinalizationService(
	contestRepo repository.ContestRepository,
	q queue.FinalizationQueue,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FinalizationService {
	return &FinalizationService{contestRepo: contestRepo, queue: q, clock: clk, metrics: m, logger: logger}
}

// EnqueueFinalization queues rating finalization for an ended contest.
// Enqueuing twice is harmless; the worker skips entries that exist.
func (s *FinalizationService) EnqueueFinalization(ctx context.Context, contestID, requestedBy string) (*model.FinalizationJob, error) {
	c, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	phase, err := contest.ResolvePhase(c.StartTime, c.EndTime, now)
	if err != nil {
		return nil, err
	}
	if phase != contest.PhaseEnded {
		return nil, fmt.Errorf("contest %s is %s and cannot be finalized yet: %w", c.ID, phase, common.ErrInvalidAction)
	}

	job := model.FinalizationJob{
		ID:          uuid.NewString(),
		ContestID:   c.ID,
		RequestedBy: requestedBy,
		EnqueuedAt:  now,
	}
	if err := s.queue.Push(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue finalization for contest %s: %v: %w", c.ID, err, common.ErrServiceUnavailable)
	}
	s.metrics.FinalizationJobs.WithLabelValues("enqueued").Inc()
	s.logger.Info("finalization job enqueued", "job_id", job.ID, "contest_id", c.ID, "requested_by", requestedBy)
	return &job, nil
}
