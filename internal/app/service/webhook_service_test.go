package service

import (
	"context"
	"testing"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleJudgeResultsValidation(t *testing.T) {
	accepted := func(problemID string, marks int) JudgeProblemResult {
		return JudgeProblemResult{ProblemID: problemID, Status: model.StatusAccepted, TestCasesPassed: 5, TotalTestCases: 5, MarksAwarded: marks}
	}
	tests := []struct {
		name    string
		payload func(contestID string) JudgeResultsPayload
		wantErr error
	}{
		{
			name: "unknown problem",
			payload: func(id string) JudgeResultsPayload {
				return JudgeResultsPayload{ContestID: id, UserID: "u1", Results: []JudgeProblemResult{accepted("p9", 1)}}
			},
			wantErr: common.ErrValidation,
		},
		{
			name: "marks above maximum",
			payload: func(id string) JudgeResultsPayload {
				return JudgeResultsPayload{ContestID: id, UserID: "u1", Results: []JudgeProblemResult{accepted("p1", 101)}}
			},
			wantErr: common.ErrValidation,
		},
		{
			name: "unknown status",
			payload: func(id string) JudgeResultsPayload {
				r := accepted("p1", 10)
				r.Status = "Great"
				return JudgeResultsPayload{ContestID: id, UserID: "u1", Results: []JudgeProblemResult{r}}
			},
			wantErr: common.ErrValidation,
		},
		{
			name: "more passed than total",
			payload: func(id string) JudgeResultsPayload {
				r := accepted("p1", 10)
				r.TestCasesPassed = 6
				return JudgeResultsPayload{ContestID: id, UserID: "u1", Results: []JudgeProblemResult{r}}
			},
			wantErr: common.ErrValidation,
		},
		{
			name: "duplicate problem",
			payload: func(id string) JudgeResultsPayload {
				return JudgeResultsPayload{ContestID: id, UserID: "u1", Results: []JudgeProblemResult{accepted("p1", 1), accepted("p1", 2)}}
			},
			wantErr: common.ErrValidation,
		},
		{
			name: "not registered",
			payload: func(id string) JudgeResultsPayload {
				return JudgeResultsPayload{ContestID: id, UserID: "stranger", Results: []JudgeProblemResult{accepted("p1", 1)}}
			},
			wantErr: common.ErrValidation,
		},
		{
			name: "empty",
			payload: func(id string) JudgeResultsPayload {
				return JudgeResultsPayload{ContestID: id, UserID: "u1"}
			},
			wantErr: common.ErrBadRequest,
		},
		{
			name: "unknown contest",
			payload: func(string) JudgeResultsPayload {
				return JudgeResultsPayload{ContestID: "nope", UserID: "u1", Results: []JudgeProblemResult{accepted("p1", 1)}}
			},
			wantErr: common.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			c := env.createContest(t, "Judge", t0.Add(-time.Hour), 2*time.Hour)
			env.register(t, c.ID, "u1")

			_, err := env.webhook.HandleJudgeResults(context.Background(), tt.payload(c.ID))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHandleJudgeResultsBeforeStart(t *testing.T) {
	env := newTestEnv(t)
	c := env.createContest(t, "Later", t0.Add(time.Hour), time.Hour)
	env.register(t, c.ID, "u1")

	_, err := env.webhook.HandleJudgeResults(context.Background(), JudgeResultsPayload{
		ContestID: c.ID,
		UserID:    "u1",
		Results:   []JudgeProblemResult{{ProblemID: "p1", Status: model.StatusWrongAnswer}},
	})
	assert.ErrorIs(t, err, common.ErrInvalidAction)
}

func TestHandleJudgeResultsAfterEnd(t *testing.T) {
	env := newTestEnv(t)
	env.clock.Set(t0.Add(-2 * time.Hour))
	c := env.createContest(t, "Over", t0.Add(-time.Hour), 30*time.Minute)
	env.register(t, c.ID, "u1")
	env.clock.Set(t0)

	_, err := env.webhook.HandleJudgeResults(context.Background(), JudgeResultsPayload{
		ContestID: c.ID,
		UserID:    "u1",
		Results:   []JudgeProblemResult{{ProblemID: "p1", Status: model.StatusAccepted, TestCasesPassed: 1, TotalTestCases: 1, MarksAwarded: 100}},
	})
	assert.ErrorIs(t, err, common.ErrInvalidAction)

	results, err := env.store.ListUserResults(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHandleJudgeResultsReplacesVerdict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.createContest(t, "Rejudge", t0.Add(-time.Hour), 2*time.Hour)
	env.register(t, c.ID, "u1")

	env.judge(t, c.ID, "u1", JudgeProblemResult{ProblemID: "p1", Status: model.StatusWrongAnswer, TestCasesPassed: 2, TotalTestCases: 5})
	env.judge(t, c.ID, "u1", JudgeProblemResult{ProblemID: "p1", Status: model.StatusAccepted, TestCasesPassed: 5, TotalTestCases: 5, MarksAwarded: 100, RuntimeMs: 12})

	results, err := env.store.ListUserResults(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusAccepted, results[0].Status)
	assert.Equal(t, 100, results[0].MaxMarks)
	assert.Equal(t, t0, results[0].JudgedAt)
}
