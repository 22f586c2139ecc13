package service

import (
	"context"
	"log/slog"
	"testing"
	"time"
	"tle_zone_contest/internal/common/security"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/rating"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/lock"
	"tle_zone_contest/internal/platform/metrics"
	"tle_zone_contest/internal/platform/queue"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type testEnv struct {
	store *repository.MemoryStore
	clock *clock.Manual
	queue *queue.ChannelFinalizationQueue

	auth          *AuthService
	contests      *ContestService
	registrations *RegistrationService
	ratings       *RatingService
	reports       *ReportService
	finalization  *FinalizationService
	webhook       *WebhookService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	m := metrics.NewNoop()
	store := repository.NewMemoryStore()
	clk := clock.NewManual(t0)
	q := queue.NewChannelFinalizationQueue(16)

	ratings, err := NewRatingService(store, lock.NewLocalLocker(), clk, rating.DefaultParams(), m, logger)
	require.NoError(t, err)
	registrations := NewRegistrationService(store, store, clk, m, logger)

	return &testEnv{
		store:         store,
		clock:         clk,
		queue:         q,
		auth:          NewAuthService(store, security.NewTokenAuth([]byte("test-secret")), time.Hour, logger),
		contests:      NewContestService(store, registrations, clk, time.Hour, logger),
		registrations: registrations,
		ratings:       ratings,
		reports:       NewReportService(store, store, store, store, ratings, clk, m, logger),
		finalization:  NewFinalizationService(store, q, clk, m, logger),
		webhook:       NewWebhookService(store, store, store, clk, m, logger),
	}
}

// createContest adds a contest running [start, start+length) with two problems.
func (e *testEnv) createContest(t *testing.T, name string, start time.Time, length time.Duration) *model.Contest {
	t.Helper()
	c, err := e.contests.CreateContest(context.Background(), "admin-1", CreateContestRequest{
		Name:      name,
		StartTime: start,
		EndTime:   start.Add(length),
		Problems: []model.ContestProblem{
			{ProblemID: "p1", Marks: 100},
			{ProblemID: "p2", Marks: 200},
		},
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) register(t *testing.T, contestID string, users ...string) {
	t.Helper()
	for _, u := range users {
		_, err := e.registrations.Register(context.Background(), u, model.RoleUser, contestID)
		require.NoError(t, err)
	}
}

func (e *testEnv) invite(t *testing.T, contestID string, users ...string) {
	t.Helper()
	for _, u := range users {
		_, err := e.registrations.Invite(context.Background(), contestID, u)
		require.NoError(t, err)
	}
}

func (e *testEnv) judge(t *testing.T, contestID, userID string, results ...JudgeProblemResult) {
	t.Helper()
	_, err := e.webhook.HandleJudgeResults(context.Background(), JudgeResultsPayload{
		ContestID: contestID,
		UserID:    userID,
		Results:   results,
	})
	require.NoError(t, err)
}
