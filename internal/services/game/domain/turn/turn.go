// Package turn defines the turn rotation domain model.
//
// The scheduler service owns timing; this package owns the pure rotation
// rules: ordering, wrap-around, and turn numbering.
package turn

import (
	"fmt"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
)

// AdvanceReason describes why a turn moved to the next player.
type AdvanceReason int

const (
	// AdvanceReasonUnspecified represents an invalid advance reason.
	AdvanceReasonUnspecified AdvanceReason = iota
	// AdvanceReasonCompleted indicates the player ended the turn themselves.
	AdvanceReasonCompleted
	// AdvanceReasonTimeout indicates the countdown expired.
	AdvanceReasonTimeout
	// AdvanceReasonForced indicates an operator or disconnect forced the advance.
	AdvanceReasonForced
)

var (
	// ErrEmptyOrder indicates a turn order with no players.
	ErrEmptyOrder = apperrors.New(apperrors.CodeTurnInvalidOrder, "turn order requires at least one player")
	// ErrDuplicateOrder indicates a turn order containing a slot more than once.
	ErrDuplicateOrder = apperrors.New(apperrors.CodeTurnInvalidOrder, "turn order contains duplicate player slots")
	// ErrInvalidTimeLimit indicates a non-positive turn time limit.
	ErrInvalidTimeLimit = apperrors.New(apperrors.CodeTurnInvalidLimit, "turn time limit must be positive")
)

// State is the single active-turn record for one session.
// At most one State exists per session, and only while gameplay is active
// or paused.
type State struct {
	SessionID   string
	Order       []string
	ActiveIndex int
	TurnNumber  int
	StartedAt   time.Time
	TimeLimit   time.Duration
	Remaining   time.Duration
	Paused      bool
}

// NewState creates the turn state for a freshly started game: turn 1, first
// player in the order active, full countdown remaining.
func NewState(sessionID string, order []string, timeLimit time.Duration, now func() time.Time) (State, error) {
	if now == nil {
		now = time.Now
	}
	if len(order) == 0 {
		return State{}, ErrEmptyOrder
	}
	seen := make(map[string]struct{}, len(order))
	for _, slotID := range order {
		if _, dup := seen[slotID]; dup {
			return State{}, apperrors.WithMetadata(
				apperrors.CodeTurnInvalidOrder,
				fmt.Sprintf("turn order contains duplicate slot %s", slotID),
				map[string]string{"SlotID": slotID},
			)
		}
		seen[slotID] = struct{}{}
	}
	if timeLimit <= 0 {
		return State{}, ErrInvalidTimeLimit
	}

	copied := make([]string, len(order))
	copy(copied, order)
	return State{
		SessionID:   sessionID,
		Order:       copied,
		ActiveIndex: 0,
		TurnNumber:  1,
		StartedAt:   now().UTC(),
		TimeLimit:   timeLimit,
		Remaining:   timeLimit,
	}, nil
}

// ActiveSlotID returns the slot whose turn it is.
func (s State) ActiveSlotID() string {
	if len(s.Order) == 0 {
		return ""
	}
	return s.Order[s.ActiveIndex]
}

// Advance rotates to the next player and resets the countdown. The turn
// number increments only when the rotation wraps back to the first player.
func Advance(s State, now func() time.Time) State {
	if now == nil {
		now = time.Now
	}
	next := s
	next.ActiveIndex = (s.ActiveIndex + 1) % len(s.Order)
	if next.ActiveIndex == 0 {
		next.TurnNumber = s.TurnNumber + 1
	}
	next.StartedAt = now().UTC()
	next.Remaining = s.TimeLimit
	next.Paused = false
	return next
}

// ShuffleOrder assigns a random turn-order permutation over the given slot
// ids using a Fisher-Yates shuffle. The intn argument follows the contract
// of rand.Intn and is injected so game starts stay testable.
func ShuffleOrder(slotIDs []string, intn func(n int) int) []string {
	order := make([]string, len(slotIDs))
	copy(order, slotIDs)
	for i := len(order) - 1; i > 0; i-- {
		j := intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ShouldBroadcastRemaining reports whether a countdown value warrants a
// time-update broadcast: every ten seconds of remaining time, plus every
// second for the final ten seconds.
func ShouldBroadcastRemaining(remaining time.Duration) bool {
	if remaining < 0 {
		return false
	}
	seconds := int(remaining / time.Second)
	if seconds <= 10 {
		return true
	}
	return seconds%10 == 0
}

// String returns the stable wire label for an advance reason.
func (r AdvanceReason) String() string {
	switch r {
	case AdvanceReasonCompleted:
		return "completed"
	case AdvanceReasonTimeout:
		return "timeout"
	case AdvanceReasonForced:
		return "forced"
	default:
		return "unspecified"
	}
}

// Valid reports whether the advance reason is one of the known values.
func (r AdvanceReason) Valid() bool {
	switch r {
	case AdvanceReasonCompleted, AdvanceReasonTimeout, AdvanceReasonForced:
		return true
	default:
		return false
	}
}
