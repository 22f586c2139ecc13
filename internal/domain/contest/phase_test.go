package contest

import (
	"testing"
	"time"
	"tle_zone_contest/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func TestResolvePhase(t *testing.T) {
	start, end := t0, t0.Add(2*time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want Phase
	}{
		{name: "well before start", now: start.Add(-48 * time.Hour), want: PhaseUpcoming},
		{name: "one nanosecond before start", now: start.Add(-time.Nanosecond), want: PhaseUpcoming},
		{name: "exactly at start", now: start, want: PhaseLive},
		{name: "mid contest", now: start.Add(time.Hour), want: PhaseLive},
		{name: "exactly at end", now: end, want: PhaseLive},
		{name: "one nanosecond after end", now: end.Add(time.Nanosecond), want: PhaseEnded},
		{name: "long after end", now: end.Add(365 * 24 * time.Hour), want: PhaseEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePhase(start, end, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePhasePartitionsEveryInstant(t *testing.T) {
	start, end := t0, t0.Add(90*time.Minute)
	for now := start.Add(-10 * time.Minute); now.Before(end.Add(10 * time.Minute)); now = now.Add(time.Minute) {
		got, err := ResolvePhase(start, end, now)
		require.NoError(t, err)

		var want Phase
		switch {
		case now.Before(start):
			want = PhaseUpcoming
		case now.After(end):
			want = PhaseEnded
		default:
			want = PhaseLive
		}
		assert.Equal(t, want, got, "now=%s", now)
	}
}

func TestResolvePhaseRejectsMalformedWindow(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
	}{
		{name: "end before start", start: t0, end: t0.Add(-time.Minute)},
		{name: "end equals start", start: t0, end: t0},
		{name: "missing start", end: t0},
		{name: "missing end", start: t0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolvePhase(tt.start, tt.end, t0)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidContestDefinition)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}
