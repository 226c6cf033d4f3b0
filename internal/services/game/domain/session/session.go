// Package session defines the session and player slot domain model.
package session

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
	"github.com/wealthpath/wealthpath/internal/platform/id"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
)

// MinPlayers is the minimum player count for a game to start.
const MinPlayers = 2

// MaxPlayers is the maximum number of player slots per session.
const MaxPlayers = 6

// ReadyStatus describes one slot's readiness state.
type ReadyStatus int

const (
	// ReadyStatusUnspecified represents an invalid readiness value.
	ReadyStatusUnspecified ReadyStatus = iota
	// ReadyStatusNotReady indicates the player has not readied up.
	ReadyStatusNotReady
	// ReadyStatusReady indicates the player is ready with selections made.
	ReadyStatusReady
	// ReadyStatusInGame indicates the game has started for this slot.
	ReadyStatusInGame
)

var (
	// ErrEmptySessionID indicates a missing session id.
	ErrEmptySessionID = apperrors.New(apperrors.CodeSessionEmptyID, "session id is required")
	// ErrEmptyDisplayName indicates a missing player display name.
	ErrEmptyDisplayName = apperrors.New(apperrors.CodeSlotEmptyDisplayName, "display name is required")
	// ErrEmptySlotID indicates a missing player slot id.
	ErrEmptySlotID = apperrors.New(apperrors.CodeSlotEmptyID, "player slot id is required")
	// ErrInvalidReadyStatus indicates a readiness value outside the known set.
	ErrInvalidReadyStatus = apperrors.New(apperrors.CodeReadinessInvalidStatus, "ready status is not recognized")
)

// Session represents one game being set up or played by 2-6 players.
type Session struct {
	ID         string
	Name       string
	Phase      phase.Phase
	HostSlotID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlayerSlot represents one player's seat in a session.
// TurnOrder is zero until a game start assigns a 1-based permutation.
type PlayerSlot struct {
	ID          string
	SessionID   string
	DisplayName string
	Status      ReadyStatus
	Career      string
	Goal        string
	TurnOrder   int
	JoinedAt    time.Time
}

// CreateSessionInput describes the metadata needed to create a session.
type CreateSessionInput struct {
	Name string
}

// CreateSession creates a new session with a generated ID and timestamps.
// The session starts in SESSION_CREATION; the phase controller moves it to
// WAITING_FOR_PLAYERS on initialize.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:        sessionID,
		Name:      strings.TrimSpace(input.Name),
		Phase:     phase.PhaseSessionCreation,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// CreatePlayerSlotInput describes the metadata needed to seat a player.
type CreatePlayerSlotInput struct {
	SessionID   string
	DisplayName string
}

// CreatePlayerSlot creates a new slot with a generated ID in the not-ready state.
func CreatePlayerSlot(input CreatePlayerSlotInput, now func() time.Time, idGenerator func() (string, error)) (PlayerSlot, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return PlayerSlot{}, ErrEmptySessionID
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return PlayerSlot{}, ErrEmptyDisplayName
	}

	slotID, err := idGenerator()
	if err != nil {
		return PlayerSlot{}, fmt.Errorf("generate slot id: %w", err)
	}

	return PlayerSlot{
		ID:          slotID,
		SessionID:   sessionID,
		DisplayName: displayName,
		Status:      ReadyStatusNotReady,
		JoinedAt:    now().UTC(),
	}, nil
}

// IsReady reports whether a slot counts toward game start: the ready flag is
// set and both a career and a goal have been selected.
func (s PlayerSlot) IsReady() bool {
	return s.Status == ReadyStatusReady && strings.TrimSpace(s.Career) != "" && strings.TrimSpace(s.Goal) != ""
}

// ReadinessSummary aggregates per-slot readiness for one session.
type ReadinessSummary struct {
	TotalPlayers int
	ReadyPlayers int
	CanStartGame bool
}

// Summarize recomputes readiness from slot state and the current phase.
// CanStartGame holds exactly when every seated player is ready, the minimum
// player count is met, and the session is still in PLAYER_SETUP.
func Summarize(current phase.Phase, slots []PlayerSlot) ReadinessSummary {
	summary := ReadinessSummary{TotalPlayers: len(slots)}
	for _, slot := range slots {
		if slot.IsReady() {
			summary.ReadyPlayers++
		}
	}
	summary.CanStartGame = summary.TotalPlayers >= MinPlayers &&
		summary.ReadyPlayers == summary.TotalPlayers &&
		current == phase.PhasePlayerSetup
	return summary
}

// NextHost picks the replacement host after the current host leaves:
// the longest-seated remaining player. Returns the empty string when no
// players remain.
func NextHost(slots []PlayerSlot, leavingSlotID string) string {
	var candidate PlayerSlot
	for _, slot := range slots {
		if slot.ID == leavingSlotID {
			continue
		}
		if candidate.ID == "" || slot.JoinedAt.Before(candidate.JoinedAt) {
			candidate = slot
		}
	}
	return candidate.ID
}

// String returns the stable wire label for a ready status.
func (s ReadyStatus) String() string {
	switch s {
	case ReadyStatusNotReady:
		return "not_ready"
	case ReadyStatusReady:
		return "ready"
	case ReadyStatusInGame:
		return "in_game"
	default:
		return "unspecified"
	}
}

// ParseReadyStatus maps a stable wire label back to a ready status.
func ParseReadyStatus(label string) (ReadyStatus, error) {
	switch label {
	case "not_ready":
		return ReadyStatusNotReady, nil
	case "ready":
		return ReadyStatusReady, nil
	case "in_game":
		return ReadyStatusInGame, nil
	default:
		return ReadyStatusUnspecified, ErrInvalidReadyStatus
	}
}
