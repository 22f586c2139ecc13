package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/metrics"

	"golang.org/x/sync/singleflight"
)

// ReportService turns judged results of an ended contest into standings,
// per-user reports and rating entries.
type ReportService struct {
	contestRepo      repository.ContestRepository
	registrationRepo repository.RegistrationRepository
	resultRepo       repository.ResultRepository
	userRepo         repository.UserRepository
	ratings          *RatingService
	clock            clock.Clock
	metrics          *metrics.Metrics
	logger           *slog.Logger

	standingsGroup singleflight.Group
}

func NewReportService(
	contestRepo repository.ContestRepository,
	registrationRepo repository.RegistrationRepository,
	resultRepo repository.ResultRepository,
	userRepo repository.UserRepository,
	ratings *RatingService,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		contestRepo:      contestRepo,
		registrationRepo: registrationRepo,
		resultRepo:       resultRepo,
		userRepo:         userRepo,
		ratings:          ratings,
		clock:            clk,
		metrics:          m,
		logger:           logger,
	}
}

// endedContest loads a contest and checks that it is over.
func (s *ReportService) endedContest(ctx context.Context, contestID string) (*model.Contest, error) {
	c, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	phase, err := contest.ResolvePhase(c.StartTime, c.EndTime, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if phase != contest.PhaseEnded {
		return nil, fmt.Errorf("contest %s is %s, results are available once it ends: %w", c.ID, phase, common.ErrInvalidAction)
	}
	return c, nil
}

// Standings ranks all registrants of an ended contest.
func (s *ReportService) Standings(ctx context.Context, contestID, userID, role string) ([]model.StandingsEntry, error) {
	c, err := s.endedContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if err := checkVisible(ctx, s.registrationRepo, c, userID, role); err != nil {
		return nil, err
	}
	standings, err := s.standings(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]model.StandingsEntry, len(standings))
	copy(out, standings)
	s.attachUsernames(ctx, out)
	return out, nil
}

// standings collapses concurrent computations for the same contest. The
// returned slice is shared and must not be modified.
func (s *ReportService) standings(ctx context.Context, c *model.Contest) ([]model.StandingsEntry, error) {
	v, err, _ := s.standingsGroup.Do(c.ID, func() (interface{}, error) {
		// Detached so one caller giving up does not fail the others.
		ctx := context.WithoutCancel(ctx)
		participants, err := s.registrationRepo.ListParticipants(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("ReportService.standings participants: %w", err)
		}
		results, err := s.resultRepo.ListContestResults(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("ReportService.standings results: %w", err)
		}
		return contest.BuildStandings(participants, eligibleResults(c, participants, results)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.StandingsEntry), nil
}

// eligibleResults drops results of non-registrants and of problems that are
// not part of the contest.
func eligibleResults(c *model.Contest, participants []string, results []model.ProblemResult) []model.ProblemResult {
	users := make(map[string]bool, len(participants))
	for _, id := range participants {
		users[id] = true
	}
	problems := make(map[string]bool, len(c.Problems))
	for _, p := range c.Problems {
		problems[p.ProblemID] = true
	}
	out := make([]model.ProblemResult, 0, len(results))
	for _, r := range results {
		if users[r.UserID] && problems[r.ProblemID] {
			out = append(out, r)
		}
	}
	return out
}

func (s *ReportService) attachUsernames(ctx context.Context, entries []model.StandingsEntry) {
	if s.userRepo == nil {
		return
	}
	for i := range entries {
		u, err := s.userRepo.FindByID(ctx, entries[i].UserID)
		if err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				s.logger.Warn("failed to resolve username", "user_id", entries[i].UserID, "error", err)
			}
			continue
		}
		entries[i].Username = u.Username
	}
}

// Report builds userID's report for an ended contest. The rating entry is
// written the first time and reused afterwards.
func (s *ReportService) Report(ctx context.Context, contestID, userID string) (*model.ContestReport, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	c, err := s.endedContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	registered, err := s.registrationRepo.IsRegistered(ctx, userID, c.ID)
	if err != nil {
		return nil, fmt.Errorf("ReportService.Report registration: %w", err)
	}
	if !registered {
		return nil, fmt.Errorf("no registration for user in contest %s: %w", c.ID, common.ErrNotFound)
	}

	// A recorded entry fixes rank and field size for good.
	entry, err := s.ratings.FindEntry(ctx, userID, c.ID)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrNotFound):
		entry, err = s.recordFromStandings(ctx, c, userID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	userResults, err := s.resultRepo.ListUserResults(ctx, userID, c.ID)
	if err != nil {
		return nil, fmt.Errorf("ReportService.Report results: %w", err)
	}
	result := BuildContestResult(c, userID, entry.Rank, entry.TotalParticipants, userResults)

	s.metrics.ReportsServed.Inc()
	return &model.ContestReport{
		ContestID:   c.ID,
		ContestName: c.Name,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Result:      result,
		Rating:      entry.Summary(),
	}, nil
}

func (s *ReportService) recordFromStandings(ctx context.Context, c *model.Contest, userID string) (*model.RatingHistoryEntry, error) {
	standings, err := s.standings(ctx, c)
	if err != nil {
		return nil, err
	}
	standing, ok := contest.RankOf(standings, userID)
	if !ok {
		return nil, fmt.Errorf("user missing from standings of contest %s: %w", c.ID, common.ErrNotFound)
	}
	entry, _, err := s.ratings.RecordContestResult(ctx, userID, c.ID, standing.Rank, len(standings))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// BuildContestResult lists one result per contest problem in contest order.
// Problems without a judged result are reported as NotAttempted.
func BuildContestResult(c *model.Contest, userID string, rank, totalParticipants int, results []model.ProblemResult) model.ContestResult {
	byProblem := make(map[string]model.ProblemResult, len(results))
	for _, r := range results {
		byProblem[r.ProblemID] = r
	}

	out := model.ContestResult{
		UserID:            userID,
		ContestID:         c.ID,
		Rank:              rank,
		TotalParticipants: totalParticipants,
		MaxScore:          c.MaxScore(),
		PerProblemResults: make([]model.ProblemResult, 0, len(c.Problems)),
	}
	for _, p := range c.Problems {
		r, ok := byProblem[p.ProblemID]
		if !ok {
			r = model.ProblemResult{
				UserID:    userID,
				ContestID: c.ID,
				ProblemID: p.ProblemID,
				Status:    model.StatusNotAttempted,
			}
		}
		r.MaxMarks = p.Marks
		if r.MarksAwarded > p.Marks {
			r.MarksAwarded = p.Marks
		}
		out.TotalScore += r.MarksAwarded
		out.PerProblemResults = append(out.PerProblemResults, r)
	}
	if out.MaxScore > 0 {
		out.Percentage = math.Round(float64(out.TotalScore)*10000/float64(out.MaxScore)) / 100
	}
	return out
}

// FinalizeContest records a rating entry for every registrant of an ended
// contest. Entries that already exist are left untouched.
func (s *ReportService) FinalizeContest(ctx context.Context, contestID string) (*model.FinalizationSummary, error) {
	c, err := s.endedContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	standings, err := s.standings(ctx, c)
	if err != nil {
		return nil, err
	}

	summary := &model.FinalizationSummary{ContestID: c.ID}
	var firstErr error
	for _, st := range standings {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++
		_, created, err := s.ratings.RecordContestResult(ctx, st.UserID, c.ID, st.Rank, len(standings))
		if err != nil {
			summary.Failed++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Error("failed to record rating", "contest_id", c.ID, "user_id", st.UserID, "error", err)
			continue
		}
		if created {
			summary.Recorded++
		}
	}
	if firstErr != nil {
		return summary, fmt.Errorf("finalize contest %s: %d of %d failed: %w", c.ID, summary.Failed, summary.Processed, firstErr)
	}
	return summary, nil
}
