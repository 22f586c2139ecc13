// Package contest holds the pure contest lifecycle rules: phase, countdown,
// the single user action, and standings. Nothing here reads a clock or a store.
package contest

import (
	"fmt"
	"time"
	"tle_zone_contest/internal/common"
)

type Phase string

const (
	PhaseUpcoming Phase = "Upcoming"
	PhaseLive     Phase = "Live"
	PhaseEnded    Phase = "Ended"
)

// ValidateWindow rejects zero timestamps and windows where end does not follow start.
func ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("contest start and end times are required: %w", common.ErrInvalidContestDefinition)
	}
	if !start.Before(end) {
		return fmt.Errorf("contest end %s must be after start %s: %w",
			end.Format(time.RFC3339), start.Format(time.RFC3339), common.ErrInvalidContestDefinition)
	}
	return nil
}

// ResolvePhase classifies now against [start, end]; both bounds count as Live.
func ResolvePhase(start, end, now time.Time) (Phase, error) {
	if err := ValidateWindow(start, end); err != nil {
		return "", err
	}
	switch {
	case now.Before(start):
		return PhaseUpcoming, nil
	case now.After(end):
		return PhaseEnded, nil
	default:
		return PhaseLive, nil
	}
}
