package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/rating"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/lock"
	"tle_zone_contest/internal/platform/metrics"

	"github.com/google/uuid"
)

// RatingService records contest rating changes exactly once per user and
// contest and serves rating history.
type RatingService struct {
	ratingRepo repository.RatingRepository
	locker     lock.Locker
	clock      clock.Clock
	params     rating.Params
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewRatingService(
	ratingRepo repository.RatingRepository,
	locker lock.Locker,
	clk clock.Clock,
	params rating.Params,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*RatingService, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("NewRatingService: %w", err)
	}
	return &RatingService{
		ratingRepo: ratingRepo,
		locker:     locker,
		clock:      clk,
		params:     params,
		metrics:    m,
		logger:     logger,
	}, nil
}

// RecordContestResult applies the rating change for one finished contest. The
// second return value is false when an entry already existed, in which case
// that entry is returned unchanged.
func (s *RatingService) RecordContestResult(ctx context.Context, userID, contestID string, rank, totalParticipants int) (*model.RatingHistoryEntry, bool, error) {
	if userID == "" || contestID == "" {
		return nil, false, fmt.Errorf("user id and contest id are required: %w", common.ErrBadRequest)
	}
	if err := rating.ValidateStanding(rank, totalParticipants); err != nil {
		return nil, false, err
	}

	// Cheap path for repeat calls; the check is repeated under the lock.
	if existing, err := s.ratingRepo.FindEntry(ctx, userID, contestID); err == nil {
		s.metrics.RatingsRecorded.WithLabelValues("existing").Inc()
		return existing, false, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, false, fmt.Errorf("RatingService.RecordContestResult lookup: %w", err)
	}

	release, err := s.locker.Acquire(ctx, lock.RatingKey(userID))
	if err != nil {
		s.metrics.RatingsRecorded.WithLabelValues("failed").Inc()
		return nil, false, err
	}
	defer release()

	entry, created, err := s.recordLocked(ctx, userID, contestID, rank, totalParticipants)
	if err != nil {
		s.metrics.RatingsRecorded.WithLabelValues("failed").Inc()
		return nil, false, err
	}
	if !created {
		s.metrics.RatingsRecorded.WithLabelValues("existing").Inc()
		return entry, false, nil
	}

	s.metrics.RatingsRecorded.WithLabelValues("created").Inc()
	s.metrics.RatingChange.Observe(float64(entry.RatingChange))
	s.logger.Info("rating recorded",
		"user_id", userID,
		"contest_id", contestID,
		"rank", rank,
		"total_participants", totalParticipants,
		"old_rating", entry.OldRating,
		"new_rating", entry.NewRating,
	)
	return entry, true, nil
}

// recordLocked must run while holding the user's rating lock.
func (s *RatingService) recordLocked(ctx context.Context, userID, contestID string, rank, totalParticipants int) (*model.RatingHistoryEntry, bool, error) {
	existing, err := s.ratingRepo.FindEntry(ctx, userID, contestID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, fmt.Errorf("RatingService.recordLocked lookup: %w", err)
	}

	oldRating := s.params.Reference
	recordedAt := s.clock.Now()
	latest, err := s.ratingRepo.LatestEntry(ctx, userID)
	switch {
	case err == nil:
		oldRating = latest.NewRating
		// History stays chronological even if clocks disagree between instances.
		if recordedAt.Before(latest.Date) {
			recordedAt = latest.Date
		}
	case errors.Is(err, common.ErrNotFound):
	default:
		return nil, false, fmt.Errorf("RatingService.recordLocked latest: %w", err)
	}

	newRating, delta, err := s.params.Apply(oldRating, rank, totalParticipants)
	if err != nil {
		return nil, false, err
	}

	entry := &model.RatingHistoryEntry{
		ID:                uuid.NewString(),
		UserID:            userID,
		ContestID:         contestID,
		Date:              recordedAt,
		OldRating:         oldRating,
		NewRating:         newRating,
		RatingChange:      delta,
		Rank:              rank,
		TotalParticipants: totalParticipants,
	}
	if err := s.ratingRepo.InsertEntry(ctx, entry); err != nil {
		if errors.Is(err, common.ErrRatingAlreadyRecorded) {
			// Another writer got past a lock that expired under it.
			s.logger.Warn("rating entry raced, returning stored entry", "user_id", userID, "contest_id", contestID)
			stored, findErr := s.ratingRepo.FindEntry(ctx, userID, contestID)
			if findErr != nil {
				return nil, false, fmt.Errorf("RatingService.recordLocked reread: %w", findErr)
			}
			return stored, false, nil
		}
		return nil, false, fmt.Errorf("RatingService.recordLocked insert: %w", err)
	}
	return entry, true, nil
}

// FindEntry returns the entry recorded for (user, contest), or common.ErrNotFound.
func (s *RatingService) FindEntry(ctx context.Context, userID, contestID string) (*model.RatingHistoryEntry, error) {
	entry, err := s.ratingRepo.FindEntry(ctx, userID, contestID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("RatingService.FindEntry: %w", err)
	}
	return entry, nil
}

// GetHistory returns the user's entries oldest first.
func (s *RatingService) GetHistory(ctx context.Context, userID string) ([]model.RatingHistoryEntry, error) {
	history, err := s.ratingRepo.ListHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("RatingService.GetHistory: %w", err)
	}
	if history == nil {
		history = []model.RatingHistoryEntry{}
	}
	return history, nil
}

// GetCurrentRating is the newest entry's new rating, or the default rating.
func (s *RatingService) GetCurrentRating(ctx context.Context, userID string) (int, error) {
	latest, err := s.ratingRepo.LatestEntry(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return s.params.Reference, nil
		}
		return 0, fmt.Errorf("RatingService.GetCurrentRating: %w", err)
	}
	return latest.NewRating, nil
}

func (s *RatingService) GetProfile(ctx context.Context, userID string) (*model.RatingProfile, error) {
	history, err := s.GetHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := &model.RatingProfile{
		UserID:        userID,
		CurrentRating: s.params.Reference,
		MaxRating:     s.params.Reference,
		ContestsRated: len(history),
	}
	for _, e := range history {
		if e.NewRating > profile.MaxRating {
			profile.MaxRating = e.NewRating
		}
	}
	if n := len(history); n > 0 {
		profile.CurrentRating = history[n-1].NewRating
		profile.LastRatingDelta = history[n-1].RatingChange
	}
	return profile, nil
}
