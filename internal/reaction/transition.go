// Package reaction models the like/dislike state machine for a viewer on a
// video. A (user, video) pair is in exactly one of three states: no reaction,
// liked, or disliked. Resolve computes the row operation and counter deltas
// for a requested transition; the storage layer applies both atomically.
package reaction

import (
	"errors"

	"github.com/cinevo/backend/internal/models"
)

// ErrInvalidType indicates a desired reaction outside {like, dislike, null}.
var ErrInvalidType = errors.New("invalid reaction type")

// Op is the reaction-row mutation a transition requires.
type Op int

const (
	OpNone Op = iota
	OpCreate
	OpUpdate
	OpDelete
)

// Transition captures the row operation and counter adjustments for one state
// change. Deltas are applied with a floor of zero on the stored counters.
type Transition struct {
	Op            Op
	NewType       string
	LikesDelta    int
	DislikesDelta int
}

// ValidDesired reports whether the requested reaction value is allowed.
// A nil pointer means "remove my reaction".
func ValidDesired(desired *string) bool {
	if desired == nil {
		return true
	}
	return *desired == models.ReactionLike || *desired == models.ReactionDislike
}

// Resolve computes the transition from the current state to the desired one.
// current is "" when the viewer has no reaction. Repeating the current
// reaction is a no-op; switching flips both counters in a single transition
// with no intermediate no-reaction state.
func Resolve(current string, desired *string) (Transition, error) {
	if !ValidDesired(desired) {
		return Transition{}, ErrInvalidType
	}

	if desired == nil {
		switch current {
		case models.ReactionLike:
			return Transition{Op: OpDelete, LikesDelta: -1}, nil
		case models.ReactionDislike:
			return Transition{Op: OpDelete, DislikesDelta: -1}, nil
		default:
			return Transition{Op: OpNone}, nil
		}
	}

	want := *desired
	if want == current {
		return Transition{Op: OpNone, NewType: current}, nil
	}

	t := Transition{NewType: want}
	if current == "" {
		t.Op = OpCreate
	} else {
		t.Op = OpUpdate
	}

	if want == models.ReactionLike {
		t.LikesDelta = 1
	} else {
		t.DislikesDelta = 1
	}
	switch current {
	case models.ReactionLike:
		t.LikesDelta--
	case models.ReactionDislike:
		t.DislikesDelta--
	}

	return t, nil
}
