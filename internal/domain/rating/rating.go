// Package rating computes contest rating changes.
//
// A participant's actual standing is turned into a percentile, compared with
// the percentile their prior rating predicts against the reference rating,
// and the gap is scaled by K. The result is rounded, capped and floored so
// that a rating never drops below zero.
package rating

import (
	"fmt"
	"math"
	"tle_zone_contest/internal/common"
)

const (
	DefaultRating    = 1200
	DefaultMaxChange = 400
	DefaultKFactor   = 160.0

	// eloScale is the rating gap at which the expected percentile is 10:1.
	eloScale = 400.0
)

type Params struct {
	// Reference is both the rating of a newcomer and the rating that is
	// expected to finish mid-field.
	Reference int
	MaxChange int
	KFactor   float64
}

func DefaultParams() Params {
	return Params{Reference: DefaultRating, MaxChange: DefaultMaxChange, KFactor: DefaultKFactor}
}

func (p Params) Validate() error {
	if p.Reference < 0 {
		return fmt.Errorf("reference rating must be >= 0: %w", common.ErrValidation)
	}
	if p.MaxChange <= 0 {
		return fmt.Errorf("max rating change must be > 0: %w", common.ErrValidation)
	}
	if p.KFactor <= 0 || math.IsNaN(p.KFactor) || math.IsInf(p.KFactor, 0) {
		return fmt.Errorf("k factor must be a positive number: %w", common.ErrValidation)
	}
	return nil
}

// ActualPercentile maps rank 1..n to 1..0. A single-participant field is 0.5.
func ActualPercentile(rank, totalParticipants int) float64 {
	if totalParticipants <= 1 {
		return 0.5
	}
	return float64(totalParticipants-rank) / float64(totalParticipants-1)
}

// ExpectedPercentile is the logistic expectation of a player rated old
// against the reference rating.
func ExpectedPercentile(old, reference int) float64 {
	return 1 / (1 + math.Pow(10, float64(reference-old)/eloScale))
}

// ValidateStanding checks rank against the field size.
func ValidateStanding(rank, totalParticipants int) error {
	if totalParticipants < 1 {
		return fmt.Errorf("total participants must be >= 1, got %d: %w", totalParticipants, common.ErrValidation)
	}
	if rank < 1 || rank > totalParticipants {
		return fmt.Errorf("rank %d outside 1..%d: %w", rank, totalParticipants, common.ErrValidation)
	}
	return nil
}

// Change returns the rating change for a participant rated old who finished
// rank of totalParticipants. For fixed old and totalParticipants the change
// never increases as rank worsens, |change| <= MaxChange, and old+change >= 0.
func (p Params) Change(old, rank, totalParticipants int) (int, error) {
	if err := ValidateStanding(rank, totalParticipants); err != nil {
		return 0, err
	}
	if old < 0 {
		return 0, fmt.Errorf("old rating %d is negative: %w", old, common.ErrValidation)
	}

	gap := ActualPercentile(rank, totalParticipants) - ExpectedPercentile(old, p.Reference)
	delta := int(math.Round(p.KFactor * gap))

	if delta > p.MaxChange {
		delta = p.MaxChange
	}
	if delta < -p.MaxChange {
		delta = -p.MaxChange
	}
	if old+delta < 0 {
		delta = -old
	}
	return delta, nil
}

// Apply returns the new rating after Change.
func (p Params) Apply(old, rank, totalParticipants int) (int, int, error) {
	delta, err := p.Change(old, rank, totalParticipants)
	if err != nil {
		return 0, 0, err
	}
	return old + delta, delta, nil
}
