package contest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "0m"},
		{in: 59 * time.Second, want: "0m"},
		{in: 30 * time.Minute, want: "30m"},
		{in: time.Hour, want: "1h 0m"},
		{in: time.Hour + 5*time.Minute, want: "1h 5m"},
		{in: 24 * time.Hour, want: "1d 0h 0m"},
		{in: 2*24*time.Hour + 3*time.Hour + 5*time.Minute + 40*time.Second, want: "2d 3h 5m"},
		{in: -time.Minute, want: "0m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRemaining(tt.in))
		})
	}
}

func TestFormatTimer(t *testing.T) {
	start, end := t0, t0.Add(2*time.Hour)

	tests := []struct {
		name       string
		phase      Phase
		now        time.Time
		wantLabel  string
		wantRemain string
		wantUrgent bool
	}{
		{name: "upcoming within the hour", phase: PhaseUpcoming, now: start.Add(-30 * time.Minute), wantLabel: LabelStartsIn, wantRemain: "30m", wantUrgent: true},
		{name: "upcoming in days", phase: PhaseUpcoming, now: start.Add(-50 * time.Hour), wantLabel: LabelStartsIn, wantRemain: "2d 2h 0m"},
		{name: "upcoming exactly one hour out", phase: PhaseUpcoming, now: start.Add(-time.Hour), wantLabel: LabelStartsIn, wantRemain: "1h 0m"},
		{name: "live with time left", phase: PhaseLive, now: start.Add(10 * time.Minute), wantLabel: LabelEndsIn, wantRemain: "1h 50m"},
		{name: "live closing", phase: PhaseLive, now: end.Add(-5 * time.Minute), wantLabel: LabelEndsIn, wantRemain: "5m", wantUrgent: true},
		{name: "ended", phase: PhaseEnded, now: end.Add(time.Hour), wantLabel: LabelCompleted, wantRemain: "0m", wantUrgent: true},
		{name: "stale upcoming phase after start", phase: PhaseUpcoming, now: start.Add(time.Minute), wantLabel: LabelCompleted, wantRemain: "0m", wantUrgent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatTimer(tt.phase, start, end, tt.now)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, tt.wantRemain, got.Remaining)
			assert.Equal(t, tt.wantUrgent, got.IsUrgent)
		})
	}
}

func TestFormatTimerInvariants(t *testing.T) {
	start, end := t0, t0.Add(3*time.Hour)
	for now := start.Add(-5 * time.Hour); now.Before(end.Add(5 * time.Hour)); now = now.Add(7 * time.Minute) {
		phase, err := ResolvePhase(start, end, now)
		if err != nil {
			t.Fatal(err)
		}
		got := FormatTimer(phase, start, end, now)

		assert.GreaterOrEqual(t, got.RemainingSeconds, int64(0))
		assert.Equal(t, got.RemainingSeconds < int64(UrgentThreshold/time.Second), got.IsUrgent, "now=%s", now)
	}
}
