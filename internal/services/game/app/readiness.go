package app

import (
	"context"
	"log"
	"strings"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/session"
	"github.com/wealthpath/wealthpath/internal/services/game/storage"
)

// phaseTransitioner is the slice of the phase controller the readiness
// tracker needs. Transitions requested here are re-validated against the
// phase graph by the controller.
type phaseTransitioner interface {
	Transition(ctx context.Context, sessionID string, target phase.Phase) error
}

// ReadinessTracker manages per-player ready flags and career and goal
// selections between lobby and game start. It owns the derived
// all-players-ready signal and asks the phase controller to move the session
// when the signal flips.
type ReadinessTracker struct {
	store       storage.Store
	registry    *sessionRegistry
	broadcaster Broadcaster
	phases      phaseTransitioner
	clock       func() time.Time
}

// NewReadinessTracker wires the tracker to shared engine infrastructure.
func NewReadinessTracker(store storage.Store, registry *sessionRegistry, broadcaster Broadcaster, phases phaseTransitioner, clock func() time.Time) *ReadinessTracker {
	if clock == nil {
		clock = time.Now
	}
	return &ReadinessTracker{
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		phases:      phases,
		clock:       clock,
	}
}

// SetReady updates one player's readiness and selections. Marking ready
// requires both a career and a goal. When the change makes every player
// ready in PLAYER_SETUP the session moves to ALL_PLAYERS_READY; when a
// player backs out of ALL_PLAYERS_READY the session returns to
// PLAYER_SETUP.
func (t *ReadinessTracker) SetReady(ctx context.Context, sessionID, slotID string, status session.ReadyStatus, career, goal string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status != session.ReadyStatusReady && status != session.ReadyStatusNotReady {
		return apperrors.WithMetadata(apperrors.CodeReadinessInvalidStatus,
			"ready status must be ready or not_ready", map[string]string{"Status": status.String()})
	}
	if status == session.ReadyStatusReady && (strings.TrimSpace(career) == "" || strings.TrimSpace(goal) == "") {
		return apperrors.New(apperrors.CodeReadinessSelectionNeeded,
			"career and goal selections are required before marking ready")
	}

	e := t.registry.entry(sessionID)
	e.mu.Lock()

	sessionRecord, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return wrapSessionLookup(sessionID, err)
	}
	current := sessionRecord.Phase
	if !current.AllowsSetup() && current != phase.PhaseAllPlayersReady {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeReadinessPhaseClosed,
			"readiness changes are closed in this phase", map[string]string{"Phase": current.String()})
	}

	slot, err := t.store.GetPlayerSlot(ctx, sessionID, slotID)
	if err != nil {
		e.mu.Unlock()
		return wrapSlotLookup(sessionID, slotID, err)
	}
	slot.Status = status
	slot.Career = career
	slot.Goal = goal
	slot.UpdatedAt = t.clock().UTC()
	if err := t.store.UpdatePlayerSlot(ctx, slot); err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "update player slot", err)
	}

	records, err := t.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	summary := session.Summarize(current, slotsFromRecords(records))
	e.mu.Unlock()

	t.broadcaster.Broadcast(sessionID, EventPlayerReadyUpdated, ReadyStatusPayload{
		SessionID:   sessionID,
		SlotID:      slotID,
		DisplayName: slot.DisplayName,
		Status:      status.String(),
		ReadyCount:  summary.ReadyPlayers,
		TotalCount:  summary.TotalPlayers,
		CanStart:    summary.CanStartGame,
	})

	switch {
	case summary.CanStartGame:
		return t.phases.Transition(ctx, sessionID, phase.PhaseAllPlayersReady)
	case current == phase.PhaseAllPlayersReady && summary.ReadyPlayers < summary.TotalPlayers:
		return t.phases.Transition(ctx, sessionID, phase.PhasePlayerSetup)
	}
	return nil
}

// State returns the current readiness summary alongside every slot.
func (t *ReadinessTracker) State(ctx context.Context, sessionID string) (session.ReadinessSummary, []session.PlayerSlot, error) {
	if err := ctx.Err(); err != nil {
		return session.ReadinessSummary{}, nil, err
	}
	e := t.registry.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()

	sessionRecord, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		return session.ReadinessSummary{}, nil, wrapSessionLookup(sessionID, err)
	}
	records, err := t.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		return session.ReadinessSummary{}, nil, apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	slots := slotsFromRecords(records)
	return session.Summarize(sessionRecord.Phase, slots), slots, nil
}

// Reset clears every player back to not_ready and drops their career and
// goal selections. Only the host may reset, and only before the game starts.
func (t *ReadinessTracker) Reset(ctx context.Context, sessionID, requestorSlotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := t.registry.entry(sessionID)
	e.mu.Lock()

	sessionRecord, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return wrapSessionLookup(sessionID, err)
	}
	if sessionRecord.HostSlotID != requestorSlotID {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeSessionHostRequired,
			"only the host may reset readiness", map[string]string{"SlotID": requestorSlotID})
	}
	current := sessionRecord.Phase
	if current != phase.PhasePlayerSetup && current != phase.PhaseAllPlayersReady {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeReadinessPhaseClosed,
			"readiness can only be reset during setup", map[string]string{"Phase": current.String()})
	}

	records, err := t.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	now := t.clock().UTC()
	for _, record := range records {
		if record.Status != session.ReadyStatusReady && record.Career == "" && record.Goal == "" {
			continue
		}
		record.Status = session.ReadyStatusNotReady
		record.Career = ""
		record.Goal = ""
		record.UpdatedAt = now
		if err := t.store.UpdatePlayerSlot(ctx, record); err != nil {
			e.mu.Unlock()
			return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "reset player slot", err)
		}
	}
	total := len(records)
	e.mu.Unlock()

	log.Printf("readiness reset session_id=%s by=%s players=%d", sessionID, requestorSlotID, total)
	t.broadcaster.Broadcast(sessionID, EventPlayerReadyUpdated, ReadyStatusPayload{
		SessionID:  sessionID,
		Status:     session.ReadyStatusNotReady.String(),
		ReadyCount: 0,
		TotalCount: total,
	})
	if current == phase.PhaseAllPlayersReady {
		return t.phases.Transition(ctx, sessionID, phase.PhasePlayerSetup)
	}
	return nil
}

// TryStart begins the game on the host's request. The session must be in
// ALL_PLAYERS_READY; the phase controller takes over from GAME_STARTING.
func (t *ReadinessTracker) TryStart(ctx context.Context, sessionID, requestorSlotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := t.registry.entry(sessionID)
	e.mu.Lock()

	sessionRecord, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return wrapSessionLookup(sessionID, err)
	}
	if sessionRecord.HostSlotID != requestorSlotID {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeSessionHostRequired,
			"only the host may start the game", map[string]string{"SlotID": requestorSlotID})
	}
	if sessionRecord.Phase != phase.PhaseAllPlayersReady {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeReadinessPlayersNotReady,
			"all players must be ready before starting", map[string]string{"Phase": sessionRecord.Phase.String()})
	}
	records, err := t.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	if len(records) < session.MinPlayers {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeSessionTooFewPlayers,
			"not enough players to start", map[string]string{"MinPlayers": "2"})
	}
	e.mu.Unlock()

	return t.phases.Transition(ctx, sessionID, phase.PhaseGameStarting)
}

func wrapSessionLookup(sessionID string, err error) error {
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		return apperrors.WithMetadata(apperrors.CodeSessionNotFound,
			"session not found", map[string]string{"SessionID": sessionID})
	}
	return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "load session", err)
}

func wrapSlotLookup(sessionID, slotID string, err error) error {
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		return apperrors.WithMetadata(apperrors.CodeSlotNotFound,
			"player slot not found", map[string]string{"SessionID": sessionID, "SlotID": slotID})
	}
	return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "load player slot", err)
}
