// Package storage defines the persistence interfaces the orchestration core
// depends on. Implementations live in subpackages; the core only sees these
// interfaces so tests can substitute fakes.
package storage

import (
	"context"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/session"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// SessionRecord captures the session metadata the orchestration core reads
// and writes.
type SessionRecord struct {
	ID             string
	Name           string
	Phase          phase.Phase
	PhaseEnteredAt time.Time
	HostSlotID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlayerSlotRecord captures one seat's persisted state.
type PlayerSlotRecord struct {
	ID          string
	SessionID   string
	DisplayName string
	Status      session.ReadyStatus
	Career      string
	Goal        string
	TurnOrder   int
	JoinedAt    time.Time
	UpdatedAt   time.Time
}

// ActivityRecord captures one logged gameplay action for match history.
type ActivityRecord struct {
	ID         string
	SessionID  string
	SlotID     string
	TurnNumber int
	Action     string
	Detail     string
	CreatedAt  time.Time
}

// SessionStore persists session lifecycle records.
type SessionStore interface {
	PutSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	UpdateSessionPhase(ctx context.Context, sessionID string, current phase.Phase, enteredAt time.Time) error
	UpdateSessionHost(ctx context.Context, sessionID, hostSlotID string, updatedAt time.Time) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// SlotStore persists player slot records for a session.
type SlotStore interface {
	PutPlayerSlot(ctx context.Context, record PlayerSlotRecord) error
	GetPlayerSlot(ctx context.Context, sessionID, slotID string) (PlayerSlotRecord, error)
	ListPlayerSlots(ctx context.Context, sessionID string) ([]PlayerSlotRecord, error)
	UpdatePlayerSlot(ctx context.Context, record PlayerSlotRecord) error
	DeletePlayerSlot(ctx context.Context, sessionID, slotID string) error
	// AssignTurnOrder writes the 1-based turn order for every listed slot in
	// one transaction and marks the slots in-game.
	AssignTurnOrder(ctx context.Context, sessionID string, order []string, updatedAt time.Time) error
}

// ActivityLogStore appends and reads the per-session action log.
type ActivityLogStore interface {
	AppendActivityLog(ctx context.Context, record ActivityRecord) error
	ListActivityLog(ctx context.Context, sessionID string, limit int) ([]ActivityRecord, error)
}

// Store groups every persistence interface the game service needs.
type Store interface {
	SessionStore
	SlotStore
	ActivityLogStore
	Close() error
}
