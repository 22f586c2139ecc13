package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ContestService struct {
	contestRepo   repository.ContestRepository
	registrations *RegistrationService
	clock         clock.Clock
	readyWindow   time.Duration
	logger        *slog.Logger
}

func NewContestService(
	contestRepo repository.ContestRepository,
	registrations *RegistrationService,
	clk clock.Clock,
	readyWindow time.Duration,
	logger *slog.Logger,
) *ContestService {
	return &ContestService{
		contestRepo:   contestRepo,
		registrations: registrations,
		clock:         clk,
		readyWindow:   readyWindow,
		logger:        logger,
	}
}

type CreateContestRequest struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	StartTime       time.Time              `json:"start_time"`
	EndTime         time.Time              `json:"end_time"`
	MaxParticipants int                    `json:"max_participants"`
	IsPublic        *bool                  `json:"is_public,omitempty"` // defaults to true
	Problems        []model.ContestProblem `json:"problems"`
}

// ContestView is a contest annotated with what the viewer sees right now.
type ContestView struct {
	model.Contest
	IsRegistered bool           `json:"is_registered"`
	Status       contest.Status `json:"status"`
}

type EnterResult struct {
	Entered    bool   `json:"entered"`
	Registered bool   `json:"registered"`
	Path       string `json:"path"`
}

func (s *ContestService) CreateContest(ctx context.Context, userID string, req CreateContestRequest) (*model.Contest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("contest name is required: %w", common.ErrInvalidContestDefinition)
	}
	if err := contest.ValidateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if req.MaxParticipants < 0 {
		return nil, fmt.Errorf("max_participants must be >= 0: %w", common.ErrInvalidContestDefinition)
	}
	seen := make(map[string]bool, len(req.Problems))
	for _, p := range req.Problems {
		if p.ProblemID == "" {
			return nil, fmt.Errorf("problem id is required: %w", common.ErrInvalidContestDefinition)
		}
		if p.Marks <= 0 {
			return nil, fmt.Errorf("problem %s must carry positive marks: %w", p.ProblemID, common.ErrInvalidContestDefinition)
		}
		if seen[p.ProblemID] {
			return nil, fmt.Errorf("problem %s listed twice: %w", p.ProblemID, common.ErrInvalidContestDefinition)
		}
		seen[p.ProblemID] = true
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	c := &model.Contest{
		ID:              uuid.NewString(),
		Slug:            slug.Make(req.Name),
		Name:            req.Name,
		Description:     req.Description,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		MaxParticipants: req.MaxParticipants,
		IsPublic:        isPublic,
		Problems:        append([]model.ContestProblem(nil), req.Problems...),
	}
	if userID != "" {
		c.CreatedByID = &userID
	}

	err := s.contestRepo.CreateContest(ctx, c)
	if errors.Is(err, common.ErrConflict) {
		// Name collision; keep the readable slug and make it unique.
		c.Slug = slug.Make(req.Name + " " + c.ID[:8])
		err = s.contestRepo.CreateContest(ctx, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}

	s.logger.Info("contest created", "contest_id", c.ID, "slug", c.Slug, "start", c.StartTime, "end", c.EndTime)
	return c, nil
}

// GetContest looks a contest up by id, then by slug. Private contests are only
// visible to admins and registrants.
func (s *ContestService) GetContest(ctx context.Context, idOrSlug, userID, role string) (*model.Contest, error) {
	c, err := s.contestRepo.FindContestByID(ctx, idOrSlug)
	if errors.Is(err, common.ErrNotFound) {
		c, err = s.contestRepo.FindContestBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}
	if err := checkVisible(ctx, s.registrations.registrationRepo, c, userID, role); err != nil {
		return nil, err
	}
	return c, nil
}

// ListContests returns the contests of one view, each with its phase, timer
// and the viewer's action at the same instant.
func (s *ContestService) ListContests(ctx context.Context, view contest.ViewContext, userID, role string, page, pageSize int) ([]ContestView, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	now := s.clock.Now()
	contests, err := s.contestRepo.ListContests(ctx, repository.ContestFilter{
		View:           view,
		UserID:         userID,
		Now:            now,
		IncludePrivate: role == model.RoleAdmin,
		Limit:          pageSize,
		Offset:         (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}

	out := make([]ContestView, 0, len(contests))
	for _, c := range contests {
		registered, err := s.registrations.IsRegistered(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}
		status, err := contest.Evaluate(c.StartTime, c.EndTime, now, registered, view, s.readyWindow)
		if err != nil {
			// One bad row should not hide the whole list.
			s.logger.Error("skipping malformed contest", "contest_id", c.ID, "error", err)
			continue
		}
		out = append(out, ContestView{Contest: c, IsRegistered: registered, Status: status})
	}
	return out, nil
}

// Status resolves phase, timer and action for one contest and viewer.
func (s *ContestService) Status(ctx context.Context, contestID, userID, role string, view contest.ViewContext) (*contest.Status, error) {
	c, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if err := checkVisible(ctx, s.registrations.registrationRepo, c, userID, role); err != nil {
		return nil, err
	}
	registered, err := s.registrations.IsRegistered(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}
	status, err := contest.Evaluate(c.StartTime, c.EndTime, s.clock.Now(), registered, view, s.readyWindow)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// EnterContest is the EnterLive / RegisterAndEnter action: only a live
// contest can be entered, and an unregistered user is registered first.
func (s *ContestService) EnterContest(ctx context.Context, userID, role, contestID string) (*EnterResult, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	c, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if err := checkVisible(ctx, s.registrations.registrationRepo, c, userID, role); err != nil {
		return nil, err
	}
	phase, err := contest.ResolvePhase(c.StartTime, c.EndTime, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := contest.CanEnter(phase); err != nil {
		return nil, err
	}

	if _, err := s.registrations.register(ctx, userID, c); err != nil {
		return nil, err
	}
	return &EnterResult{Entered: true, Registered: true, Path: ArenaPath(c.ID)}, nil
}

func ArenaPath(contestID string) string {
	return "/contests/" + contestID + "/arena"
}
