// Package phase defines the session lifecycle state machine.
//
// A session moves through a directed phase graph from SESSION_CREATION to
// GAME_FINISHED. The graph is the single authority on which transitions are
// legal; services never mutate a session phase without consulting it.
package phase

import (
	"fmt"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
)

// Phase describes the lifecycle state of a game session.
type Phase int

const (
	// PhaseUnspecified represents an invalid phase value.
	PhaseUnspecified Phase = iota
	// PhaseSessionCreation indicates the session record is being created.
	PhaseSessionCreation
	// PhaseWaitingForPlayers indicates the session is below the minimum player count.
	PhaseWaitingForPlayers
	// PhasePlayerSetup indicates players are choosing careers, goals, and readiness.
	PhasePlayerSetup
	// PhaseAllPlayersReady indicates every player is ready and the host may start.
	PhaseAllPlayersReady
	// PhaseGameStarting indicates turn order is assigned and the start settle delay is running.
	PhaseGameStarting
	// PhaseGameplayActive indicates turns are being played.
	PhaseGameplayActive
	// PhaseGameEnding indicates the end sequence is running.
	PhaseGameEnding
	// PhaseGameFinished is the terminal phase.
	PhaseGameFinished
)

// ErrInvalidTransition indicates a disallowed phase change.
var ErrInvalidTransition = apperrors.New(apperrors.CodeSessionInvalidTransition, "session phase transition is not allowed")

// Record pairs a session's current phase with the timestamp it was entered.
// Entry actions key off EnteredAt to stay idempotent across recovery.
type Record struct {
	SessionID string
	Current   Phase
	EnteredAt time.Time
}

// NewRecord creates the initial phase record for a session.
func NewRecord(sessionID string, now func() time.Time) Record {
	if now == nil {
		now = time.Now
	}
	return Record{
		SessionID: sessionID,
		Current:   PhaseSessionCreation,
		EnteredAt: now().UTC(),
	}
}

// Transition applies a phase change and stamps the entry time.
// It fails without mutation when the target is not reachable from the
// current phase.
func Transition(record Record, target Phase, now func() time.Time) (Record, error) {
	if now == nil {
		now = time.Now
	}
	if !isTransitionAllowed(record.Current, target) {
		from := record.Current.String()
		to := target.String()
		return Record{}, apperrors.WithMetadata(
			apperrors.CodeSessionInvalidTransition,
			fmt.Sprintf("session phase transition not allowed: %s -> %s", from, to),
			map[string]string{"FromPhase": from, "ToPhase": to},
		)
	}

	updated := record
	updated.Current = target
	updated.EnteredAt = now().UTC()
	return updated, nil
}

// isTransitionAllowed reports whether a phase transition is permitted.
//
// Forward edges follow the lifecycle in order. The backward edges keep the
// waiting and setup phases in sync with the live player count, and re-open
// setup when readiness is lost before the host starts the game.
func isTransitionAllowed(from, to Phase) bool {
	switch from {
	case PhaseSessionCreation:
		return to == PhaseWaitingForPlayers
	case PhaseWaitingForPlayers:
		return to == PhasePlayerSetup
	case PhasePlayerSetup:
		return to == PhaseWaitingForPlayers || to == PhaseAllPlayersReady
	case PhaseAllPlayersReady:
		return to == PhaseGameStarting || to == PhasePlayerSetup || to == PhaseWaitingForPlayers
	case PhaseGameStarting:
		return to == PhaseGameplayActive
	case PhaseGameplayActive:
		return to == PhaseGameEnding
	case PhaseGameEnding:
		return to == PhaseGameFinished
	case PhaseGameFinished:
		return false
	default:
		return false
	}
}

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseGameFinished
}

// AllowsSetup reports whether readiness and selections may change in this phase.
func (p Phase) AllowsSetup() bool {
	return p == PhasePlayerSetup
}

// String returns the stable wire label for a phase.
func (p Phase) String() string {
	switch p {
	case PhaseSessionCreation:
		return "SESSION_CREATION"
	case PhaseWaitingForPlayers:
		return "WAITING_FOR_PLAYERS"
	case PhasePlayerSetup:
		return "PLAYER_SETUP"
	case PhaseAllPlayersReady:
		return "ALL_PLAYERS_READY"
	case PhaseGameStarting:
		return "GAME_STARTING"
	case PhaseGameplayActive:
		return "GAMEPLAY_ACTIVE"
	case PhaseGameEnding:
		return "GAME_ENDING"
	case PhaseGameFinished:
		return "GAME_FINISHED"
	default:
		return "PHASE_UNSPECIFIED"
	}
}

// Parse maps a stable wire label back to a phase.
func Parse(label string) Phase {
	switch label {
	case "SESSION_CREATION":
		return PhaseSessionCreation
	case "WAITING_FOR_PLAYERS":
		return PhaseWaitingForPlayers
	case "PLAYER_SETUP":
		return PhasePlayerSetup
	case "ALL_PLAYERS_READY":
		return PhaseAllPlayersReady
	case "GAME_STARTING":
		return PhaseGameStarting
	case "GAMEPLAY_ACTIVE":
		return PhaseGameplayActive
	case "GAME_ENDING":
		return PhaseGameEnding
	case "GAME_FINISHED":
		return PhaseGameFinished
	default:
		return PhaseUnspecified
	}
}
