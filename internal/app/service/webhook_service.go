package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/metrics"
)

// WebhookService accepts per-problem verdicts pushed by the judge while a
// contest is live.
type WebhookService struct {
	contestRepo      repository.ContestRepository
	registrationRepo repository.RegistrationRepository
	resultRepo       repository.ResultRepository
	clock            clock.Clock
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

func NewWebhookService(
	contestRepo repository.ContestRepository,
	registrationRepo repository.RegistrationRepository,
	resultRepo repository.ResultRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		contestRepo:      contestRepo,
		registrationRepo: registrationRepo,
		resultRepo:       resultRepo,
		clock:            clk,
		metrics:          m,
		logger:           logger,
	}
}

// JudgeResultsPayload is what the judge posts once a user's verdicts for a
// contest are final. Re-posting replaces earlier verdicts per problem.
type JudgeResultsPayload struct {
	ContestID string               `json:"contest_id"`
	UserID    string               `json:"user_id"`
	Results   []JudgeProblemResult `json:"results"`
}

type JudgeProblemResult struct {
	ProblemID       string              `json:"problem_id"`
	Status          model.ProblemStatus `json:"status"`
	TestCasesPassed int                 `json:"test_cases_passed"`
	TotalTestCases  int                 `json:"total_test_cases"`
	MarksAwarded    int                 `json:"marks_awarded"`
	RuntimeMs       int                 `json:"runtime_ms"`
	JudgedAt        *time.Time          `json:"judged_at,omitempty"`
}

// HandleJudgeResults validates and stores the payload, returning how many
// per-problem rows were written.
func (s *WebhookService) HandleJudgeResults(ctx context.Context, payload JudgeResultsPayload) (int, error) {
	if payload.ContestID == "" || payload.UserID == "" || len(payload.Results) == 0 {
		return 0, fmt.Errorf("contest_id, user_id and results are required: %w", common.ErrBadRequest)
	}

	c, err := s.contestRepo.FindContestByID(ctx, payload.ContestID)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	phase, err := contest.ResolvePhase(c.StartTime, c.EndTime, now)
	if err != nil {
		return 0, err
	}
	switch phase {
	case contest.PhaseUpcoming:
		return 0, fmt.Errorf("contest %s has not started: %w", c.ID, common.ErrInvalidAction)
	case contest.PhaseEnded:
		// Standings are frozen at the end time; ratings and reports are built from them.
		return 0, fmt.Errorf("contest %s has ended: %w", c.ID, common.ErrInvalidAction)
	}
	registered, err := s.registrationRepo.IsRegistered(ctx, payload.UserID, c.ID)
	if err != nil {
		return 0, fmt.Errorf("WebhookService.HandleJudgeResults registration: %w", err)
	}
	if !registered {
		return 0, fmt.Errorf("user %s is not registered for contest %s: %w", payload.UserID, c.ID, common.ErrValidation)
	}

	marks := make(map[string]int, len(c.Problems))
	for _, p := range c.Problems {
		marks[p.ProblemID] = p.Marks
	}

	rows := make([]model.ProblemResult, 0, len(payload.Results))
	seen := make(map[string]bool, len(payload.Results))
	for _, r := range payload.Results {
		maxMarks, ok := marks[r.ProblemID]
		if !ok {
			return 0, fmt.Errorf("problem %q is not part of contest %s: %w", r.ProblemID, c.ID, common.ErrValidation)
		}
		if seen[r.ProblemID] {
			return 0, fmt.Errorf("problem %q reported twice: %w", r.ProblemID, common.ErrValidation)
		}
		seen[r.ProblemID] = true
		if !r.Status.Valid() {
			return 0, fmt.Errorf("unknown status %q for problem %s: %w", r.Status, r.ProblemID, common.ErrValidation)
		}
		if r.MarksAwarded < 0 || r.MarksAwarded > maxMarks {
			return 0, fmt.Errorf("marks %d for problem %s outside 0..%d: %w", r.MarksAwarded, r.ProblemID, maxMarks, common.ErrValidation)
		}
		if r.TestCasesPassed < 0 || r.TotalTestCases < 0 || r.TestCasesPassed > r.TotalTestCases {
			return 0, fmt.Errorf("test cases %d/%d for problem %s are inconsistent: %w", r.TestCasesPassed, r.TotalTestCases, r.ProblemID, common.ErrValidation)
		}
		if r.RuntimeMs < 0 {
			return 0, fmt.Errorf("negative runtime for problem %s: %w", r.ProblemID, common.ErrValidation)
		}

		judgedAt := now
		if r.JudgedAt != nil {
			judgedAt = r.JudgedAt.UTC()
		}
		rows = append(rows, model.ProblemResult{
			UserID:          payload.UserID,
			ContestID:       c.ID,
			ProblemID:       r.ProblemID,
			Status:          r.Status,
			TestCasesPassed: r.TestCasesPassed,
			TotalTestCases:  r.TotalTestCases,
			MarksAwarded:    r.MarksAwarded,
			MaxMarks:        maxMarks,
			RuntimeMs:       r.RuntimeMs,
			JudgedAt:        judgedAt,
		})
	}

	if err := s.resultRepo.UpsertProblemResults(ctx, rows); err != nil {
		return 0, fmt.Errorf("WebhookService.HandleJudgeResults upsert: %w", err)
	}
	s.metrics.ResultsIngested.Add(float64(len(rows)))
	s.logger.Info("judge results stored", "contest_id", c.ID, "user_id", payload.UserID, "problems", len(rows))
	return len(rows), nil
}
