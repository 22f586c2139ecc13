package service

import (
	"context"
	"sync"
	"testing"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwiceKeepsOneRow(t *testing.T) {
	env := newTestEnv(t)
	c := env.createContest(t, "Weekly 1", t0.Add(2*time.Hour), 2*time.Hour)
	ctx := context.Background()

	created, err := env.registrations.Register(ctx, "u1", model.RoleUser, c.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.registrations.Register(ctx, "u1", model.RoleUser, c.ID)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, 1, env.store.RegistrationCount(c.ID))
	registered, err := env.registrations.IsRegistered(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.True(t, registered)
}

func TestConcurrentRegisterBothSucceed(t *testing.T) {
	env := newTestEnv(t)
	c := env.createContest(t, "Weekly 2", t0.Add(time.Hour), time.Hour)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.registrations.Register(context.Background(), "u1", model.RoleUser, c.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, env.store.RegistrationCount(c.ID))
}

func TestRegisterRules(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		setup   func(t *testing.T, env *testEnv, c *model.Contest)
		userID  string
		wantErr error
	}{
		{name: "upcoming", advance: 0, userID: "u1"},
		{name: "live", advance: 90 * time.Minute, userID: "u1"},
		{name: "last instant is still live", advance: 3 * time.Hour, userID: "u1"},
		{name: "after end", advance: 3*time.Hour + time.Second, userID: "u1", wantErr: common.ErrRegistrationClosed},
		{name: "anonymous", userID: "", wantErr: common.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			c := env.createContest(t, "Rules", t0.Add(time.Hour), 2*time.Hour)
			env.clock.Advance(tt.advance)

			_, err := env.registrations.Register(context.Background(), tt.userID, model.RoleUser, c.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegisterClosedIsConflict(t *testing.T) {
	env := newTestEnv(t)
	c := env.createContest(t, "Closed", t0.Add(-3*time.Hour), time.Hour)

	_, err := env.registrations.Register(context.Background(), "u1", model.RoleUser, c.ID)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, 409, common.HTTPStatusFromError(err))
}

func TestRegisterCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c, err := env.contests.CreateContest(ctx, "admin", CreateContestRequest{
		Name:            "Tiny",
		StartTime:       t0.Add(time.Hour),
		EndTime:         t0.Add(2 * time.Hour),
		MaxParticipants: 2,
		Problems:        []model.ContestProblem{{ProblemID: "p1", Marks: 10}},
	})
	require.NoError(t, err)

	env.register(t, c.ID, "u1", "u2")
	_, err = env.registrations.Register(ctx, "u3", model.RoleUser, c.ID)
	assert.ErrorIs(t, err, common.ErrContestFull)

	// An existing registrant re-registering is still fine.
	_, err = env.registrations.Register(ctx, "u1", model.RoleUser, c.ID)
	assert.NoError(t, err)
}

func TestRegisterUnknownContest(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.registrations.Register(context.Background(), "u1", model.RoleUser, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestInviteToPrivateContest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	private := false
	c, err := env.contests.CreateContest(ctx, "admin", CreateContestRequest{
		Name:      "Invitational",
		StartTime: t0.Add(time.Hour),
		EndTime:   t0.Add(2 * time.Hour),
		IsPublic:  &private,
		Problems:  []model.ContestProblem{{ProblemID: "p1", Marks: 10}},
	})
	require.NoError(t, err)

	_, err = env.registrations.Register(ctx, "u1", model.RoleUser, c.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	created, err := env.registrations.Invite(ctx, c.ID, "u1")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = env.registrations.Invite(ctx, c.ID, "u1")
	require.NoError(t, err)
	assert.False(t, created)

	// Admins can register themselves directly.
	created, err = env.registrations.Register(ctx, "boss", model.RoleAdmin, c.ID)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = env.registrations.Invite(ctx, c.ID, "")
	assert.ErrorIs(t, err, common.ErrBadRequest)

	env.clock.Advance(3 * time.Hour)
	_, err = env.registrations.Invite(ctx, c.ID, "u2")
	assert.ErrorIs(t, err, common.ErrRegistrationClosed)
	assert.Equal(t, 2, env.store.RegistrationCount(c.ID))
}
