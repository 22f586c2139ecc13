package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/metrics"
)

type RegistrationService struct {
	contestRepo      repository.ContestRepository
	registrationRepo repository.RegistrationRepository
	clock            clock.Clock
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

func NewRegistrationService(
	contestRepo repository.ContestRepository,
	registrationRepo repository.RegistrationRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		contestRepo:      contestRepo,
		registrationRepo: registrationRepo,
		clock:            clk,
		metrics:          m,
		logger:           logger,
	}
}

// Register signs userID up for contestID. Registering twice is not an error;
// the first row is kept. Returns whether a new row was written. Private
// contests are joined through Invite.
func (s *RegistrationService) Register(ctx context.Context, userID, role, contestID string) (bool, error) {
	if userID == "" {
		return false, common.ErrUnauthorized
	}
	c, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return false, err
	}
	if err := checkVisible(ctx, s.registrationRepo, c, userID, role); err != nil {
		return false, err
	}
	return s.register(ctx, userID, c)
}

// Invite registers userID for a contest on an admin's behalf, private or not.
// Phase and capacity rules still apply.
func (s *RegistrationService) Invite(ctx context.Context, contestID, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user_id is required: %w", common.ErrBadRequest)
	}
	c, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return false, err
	}
	return s.register(ctx, userID, c)
}

func (s *RegistrationService) register(ctx context.Context, userID string, c *model.Contest) (bool, error) {
	now := s.clock.Now()
	phase, err := contest.ResolvePhase(c.StartTime, c.EndTime, now)
	if err != nil {
		return false, err
	}
	if phase == contest.PhaseEnded {
		s.metrics.Registrations.WithLabelValues("rejected").Inc()
		return false, fmt.Errorf("contest %s ended at %s: %w", c.ID, c.EndTime.Format("2006-01-02 15:04 MST"), common.ErrRegistrationClosed)
	}

	reg := &model.Registration{UserID: userID, ContestID: c.ID, RegisteredAt: now}
	err = s.registrationRepo.Register(ctx, reg)
	switch {
	case err == nil:
		s.metrics.Registrations.WithLabelValues("created").Inc()
		s.logger.Info("user registered for contest", "user_id", userID, "contest_id", c.ID, "phase", phase)
		return true, nil
	case errors.Is(err, common.ErrAlreadyRegistered):
		s.metrics.Registrations.WithLabelValues("existing").Inc()
		return false, nil
	case errors.Is(err, common.ErrContestFull):
		s.metrics.Registrations.WithLabelValues("rejected").Inc()
		return false, err
	default:
		return false, fmt.Errorf("RegistrationService.Register: %w", err)
	}
}

func (s *RegistrationService) IsRegistered(ctx context.Context, userID, contestID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	ok, err := s.registrationRepo.IsRegistered(ctx, userID, contestID)
	if err != nil {
		return false, fmt.Errorf("RegistrationService.IsRegistered: %w", err)
	}
	return ok, nil
}

// checkVisible hides a private contest from callers who are neither admins
// nor registered for it.
func checkVisible(ctx context.Context, registrationRepo repository.RegistrationRepository, c *model.Contest, userID, role string) error {
	if c.IsPublic || role == model.RoleAdmin {
		return nil
	}
	if userID != "" {
		registered, err := registrationRepo.IsRegistered(ctx, userID, c.ID)
		if err != nil {
			return fmt.Errorf("checkVisible: %w", err)
		}
		if registered {
			return nil
		}
	}
	return fmt.Errorf("contest not found: %w", common.ErrNotFound)
}
