package service

import (
	"context"
	"sync"
	"testing"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/rating"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordContestResultOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, created, err := env.ratings.RecordContestResult(ctx, "u1", "c2", 3, 100)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, rating.DefaultRating, first.OldRating)
	assert.Greater(t, first.NewRating, rating.DefaultRating)
	assert.Equal(t, first.NewRating-first.OldRating, first.RatingChange)
	assert.Equal(t, t0, first.Date)

	// A later call with different inputs must not produce a new entry.
	env.clock.Advance(time.Hour)
	second, created, err := env.ratings.RecordContestResult(ctx, "u1", "c2", 90, 100)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	history, err := env.ratings.GetHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordContestResultConcurrent(t *testing.T) {
	env := newTestEnv(t)

	const callers = 12
	var wg sync.WaitGroup
	entries := make([]*model.RatingHistoryEntry, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i], _, errs[i] = env.ratings.RecordContestResult(context.Background(), "u1", "c1", 1, 10)
		}(i)
	}
	wg.Wait()

	for i := range entries {
		require.NoError(t, errs[i])
		assert.Equal(t, entries[0], entries[i])
	}
	history, err := env.ratings.GetHistory(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRatingHistoryChains(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	standings := []struct {
		contestID string
		rank, n   int
	}{
		{"c1", 1, 20},
		{"c2", 18, 20},
		{"c3", 5, 40},
		{"c4", 40, 40},
	}
	for _, s := range standings {
		_, _, err := env.ratings.RecordContestResult(ctx, "u1", s.contestID, s.rank, s.n)
		require.NoError(t, err)
		env.clock.Advance(24 * time.Hour)
	}

	history, err := env.ratings.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, len(standings))

	prev := rating.DefaultRating
	for i, e := range history {
		assert.Equal(t, standings[i].contestID, e.ContestID)
		assert.Equal(t, prev, e.OldRating, "entry %d", i)
		assert.Equal(t, e.NewRating-e.OldRating, e.RatingChange)
		assert.GreaterOrEqual(t, e.NewRating, 0)
		if i > 0 {
			assert.False(t, e.Date.Before(history[i-1].Date))
		}
		prev = e.NewRating
	}

	current, err := env.ratings.GetCurrentRating(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, prev, current)

	profile, err := env.ratings.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, profile.ContestsRated)
	assert.Equal(t, prev, profile.CurrentRating)
	assert.Equal(t, history[3].RatingChange, profile.LastRatingDelta)
	assert.GreaterOrEqual(t, profile.MaxRating, profile.CurrentRating)
}

func TestRatingDefaultsForNewUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	current, err := env.ratings.GetCurrentRating(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, rating.DefaultRating, current)

	history, err := env.ratings.GetHistory(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestRecordContestResultRejectsBadStanding(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name    string
		user    string
		rank, n int
		wantErr error
	}{
		{"rank zero", "u1", 0, 10, common.ErrValidation},
		{"rank past field", "u1", 11, 10, common.ErrValidation},
		{"empty field", "u1", 1, 0, common.ErrValidation},
		{"missing user", "", 1, 10, common.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.ratings.RecordContestResult(context.Background(), tt.user, "c1", tt.rank, tt.n)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewRatingServiceValidatesParams(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewRatingService(env.store, nil, env.clock, rating.Params{Reference: 1200, MaxChange: 0, KFactor: 10}, nil, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}
