package contest

import (
	"fmt"
	"strings"
	"time"
	"tle_zone_contest/internal/common"
)

// ViewContext is the list a contest was fetched under.
type ViewContext string

const (
	ViewCurrent  ViewContext = "current"
	ViewUpcoming ViewContext = "upcoming"
	ViewPast     ViewContext = "past"
	ViewMy       ViewContext = "my"
)

// ParseViewContext accepts the list names case-insensitively. An empty value
// defaults to ViewCurrent.
func ParseViewContext(s string) (ViewContext, error) {
	switch v := ViewContext(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewCurrent, nil
	case ViewCurrent, ViewUpcoming, ViewPast, ViewMy:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q: %w", s, common.ErrBadRequest)
	}
}

type ActionKind string

const (
	ActionEnterLive        ActionKind = "EnterLive"
	ActionRegisterAndEnter ActionKind = "RegisterAndEnter"
	ActionReadyToEnter     ActionKind = "ReadyToEnter"
	ActionRegistered       ActionKind = "Registered"
	ActionRegisterNow      ActionKind = "RegisterNow"
	ActionViewResults      ActionKind = "ViewResults"
	ActionViewReport       ActionKind = "ViewReport"
)

type Action struct {
	Kind      ActionKind `json:"kind"`
	Label     string     `json:"label"`
	Navigates bool       `json:"navigates"`
	// Registers is set when taking the action registers the user first.
	Registers bool `json:"registers"`
}

var actions = map[ActionKind]Action{
	ActionEnterLive:        {Kind: ActionEnterLive, Label: "Enter Contest", Navigates: true},
	ActionRegisterAndEnter: {Kind: ActionRegisterAndEnter, Label: "Register & Enter", Navigates: true, Registers: true},
	ActionReadyToEnter:     {Kind: ActionReadyToEnter, Label: "Ready to Enter", Navigates: true},
	ActionRegistered:       {Kind: ActionRegistered, Label: "Registered"},
	ActionRegisterNow:      {Kind: ActionRegisterNow, Label: "Register Now", Registers: true},
	ActionViewResults:      {Kind: ActionViewResults, Label: "View Results", Navigates: true},
	ActionViewReport:       {Kind: ActionViewReport, Label: "View Report", Navigates: true},
}

// ActionInput gathers everything ResolveAction looks at.
// RemainingToStart is only consulted for PhaseUpcoming.
type ActionInput struct {
	Phase            Phase
	IsRegistered     bool
	View             ViewContext
	RemainingToStart time.Duration
	// ReadyWindow is how close to the start a registered user is shown
	// ReadyToEnter. Zero means DefaultReadyWindow.
	ReadyWindow time.Duration
}

const DefaultReadyWindow = time.Hour

// ResolveAction picks the one action a user may take. Phase always wins over
// the view the contest was listed under, since a list can be stale.
func ResolveAction(in ActionInput) (Action, error) {
	switch in.Phase {
	case PhaseLive:
		if in.IsRegistered {
			return actions[ActionEnterLive], nil
		}
		return actions[ActionRegisterAndEnter], nil

	case PhaseUpcoming:
		if !in.IsRegistered {
			return actions[ActionRegisterNow], nil
		}
		window := in.ReadyWindow
		if window <= 0 {
			window = DefaultReadyWindow
		}
		if in.RemainingToStart <= window {
			return actions[ActionReadyToEnter], nil
		}
		return actions[ActionRegistered], nil

	case PhaseEnded:
		if in.View == ViewPast {
			return actions[ActionViewResults], nil
		}
		return actions[ActionViewReport], nil
	}
	return Action{}, fmt.Errorf("unknown contest phase %q: %w", in.Phase, common.ErrValidation)
}

// Status is the phase, countdown and action for one contest as seen by one user.
type Status struct {
	Phase  Phase  `json:"phase"`
	Timer  Timer  `json:"timer"`
	Action Action `json:"action"`
}

// Evaluate resolves phase, timer and action in one pass for the given instant.
func Evaluate(start, end, now time.Time, registered bool, view ViewContext, readyWindow time.Duration) (Status, error) {
	phase, err := ResolvePhase(start, end, now)
	if err != nil {
		return Status{}, err
	}
	action, err := ResolveAction(ActionInput{
		Phase:            phase,
		IsRegistered:     registered,
		View:             view,
		RemainingToStart: start.Sub(now),
		ReadyWindow:      readyWindow,
	})
	if err != nil {
		return Status{}, err
	}
	return Status{
		Phase:  phase,
		Timer:  FormatTimer(phase, start, end, now),
		Action: action,
	}, nil
}

// CanEnter reports whether an enter attempt is legal in phase.
func CanEnter(phase Phase) error {
	if phase != PhaseLive {
		return fmt.Errorf("cannot enter a contest that is %s: %w", strings.ToLower(string(phase)), common.ErrInvalidAction)
	}
	return nil
}
