package contest

import (
	"fmt"
	"strings"
	"time"
)

const (
	LabelStartsIn  = "Starts in"
	LabelEndsIn    = "Ends in"
	LabelCompleted = "Completed"

	UrgentThreshold = time.Hour
)

type Timer struct {
	Label            string `json:"label"`
	Remaining        string `json:"remaining"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	IsUrgent         bool   `json:"is_urgent"`
}

// FormatTimer builds the countdown shown next to a contest.
func FormatTimer(phase Phase, start, end, now time.Time) Timer {
	var label string
	var remaining time.Duration
	switch phase {
	case PhaseUpcoming:
		label, remaining = LabelStartsIn, start.Sub(now)
	case PhaseLive:
		label, remaining = LabelEndsIn, end.Sub(now)
	default:
		label, remaining = LabelCompleted, 0
	}

	if remaining < 0 {
		label, remaining = LabelCompleted, 0
	}

	return Timer{
		Label:            label,
		Remaining:        FormatRemaining(remaining),
		RemainingSeconds: int64(remaining / time.Second),
		IsUrgent:         remaining < UrgentThreshold,
	}
}

// FormatRemaining renders d as "2d 3h 5m", dropping zero leading units.
// Minutes are always present; seconds are truncated.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}
