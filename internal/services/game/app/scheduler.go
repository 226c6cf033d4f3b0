package app

import (
	"context"
	"log"
	"sync"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
	"github.com/wealthpath/wealthpath/internal/platform/timeouts"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/turn"
)

// taskTurnTick names the repeating countdown task on the registry.
const taskTurnTick = "turn-tick"

// turnRuntime pairs a session's turn state with an epoch counter. Every
// initialize, advance, pause and resume bumps the epoch; countdown callbacks
// carry the epoch they were armed with and become no-ops when it no longer
// matches.
type turnRuntime struct {
	state turn.State
	epoch uint64
}

// advanceHook is called after a turn advances, outside the session lock.
// The engine uses it to log activity and re-check win conditions on
// timeout-driven advances.
type advanceHook func(sessionID string, state turn.State, reason turn.AdvanceReason)

// TurnScheduler owns the per-session turn rotation and countdown. All state
// lives in memory; a process restart loses running countdowns, which the
// phase controller repairs on rehydration.
type TurnScheduler struct {
	registry    *sessionRegistry
	broadcaster Broadcaster
	clock       func() time.Time
	tick        time.Duration
	onAdvance   advanceHook

	mu       sync.Mutex
	runtimes map[string]*turnRuntime
}

// NewTurnScheduler wires a scheduler to the shared session registry.
func NewTurnScheduler(registry *sessionRegistry, broadcaster Broadcaster, clock func() time.Time) *TurnScheduler {
	if clock == nil {
		clock = time.Now
	}
	return &TurnScheduler{
		registry:    registry,
		broadcaster: broadcaster,
		clock:       clock,
		tick:        time.Second,
		runtimes:    make(map[string]*turnRuntime),
	}
}

// SetAdvanceHook registers the callback invoked after every successful
// advance. Must be called before the first session initializes.
func (s *TurnScheduler) SetAdvanceHook(hook advanceHook) {
	s.onAdvance = hook
}

// Initialize creates the turn state for a session entering gameplay and
// arms the countdown. The order must already be shuffled and persisted.
func (s *TurnScheduler) Initialize(ctx context.Context, sessionID string, order []string, timeLimit time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.registry.entry(sessionID)
	e.mu.Lock()

	s.mu.Lock()
	if _, exists := s.runtimes[sessionID]; exists {
		s.mu.Unlock()
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeTurnAlreadyActive,
			"turn rotation already running", map[string]string{"SessionID": sessionID})
	}
	s.mu.Unlock()

	state, err := turn.NewState(sessionID, order, timeLimit, s.clock)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	rt := &turnRuntime{state: state, epoch: 1}
	s.mu.Lock()
	s.runtimes[sessionID] = rt
	s.mu.Unlock()
	payload := s.turnPayload(state, turn.AdvanceReasonUnspecified)
	s.armTick(sessionID, rt.epoch)
	e.mu.Unlock()

	s.broadcaster.Broadcast(sessionID, EventTurnStarted, payload)
	return nil
}

// Advance rotates the turn to the next player. For player-initiated
// advances the actor must be the active player; timeout and forced advances
// skip that check.
func (s *TurnScheduler) Advance(ctx context.Context, sessionID, actorSlotID string, reason turn.AdvanceReason) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !reason.Valid() {
		return apperrors.WithMetadata(apperrors.CodeTurnUnknownReason,
			"unknown turn advance reason", map[string]string{"Reason": reason.String()})
	}

	e := s.registry.entry(sessionID)
	e.mu.Lock()
	rt, ok := s.runtime(sessionID)
	if !ok {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeTurnNotActive,
			"no turn rotation for session", map[string]string{"SessionID": sessionID})
	}
	if reason == turn.AdvanceReasonCompleted {
		if rt.state.Paused {
			e.mu.Unlock()
			return apperrors.New(apperrors.CodeTurnNotActive, "turn timer is paused")
		}
		if active := rt.state.ActiveSlotID(); active != actorSlotID {
			e.mu.Unlock()
			return apperrors.WithMetadata(apperrors.CodeTurnNotYourTurn,
				"not this player's turn", map[string]string{"SlotID": actorSlotID, "ActiveSlotID": active})
		}
	}
	s.advanceLocked(sessionID, rt, reason, e)
	return nil
}

// advanceLocked rotates the turn and re-arms the countdown. The caller holds
// the session lock; the countdown is armed before it is released so a second
// advance interleaving in the broadcast window cannot be overwritten by a
// stale timer, and advanceLocked releases the lock before broadcasting.
func (s *TurnScheduler) advanceLocked(sessionID string, rt *turnRuntime, reason turn.AdvanceReason, e *sessionEntry) {
	rt.state = turn.Advance(rt.state, s.clock)
	rt.epoch++
	state := rt.state
	s.armTick(sessionID, rt.epoch)
	e.mu.Unlock()

	s.broadcaster.Broadcast(sessionID, EventTurnChanged, s.turnPayload(state, reason))
	if s.onAdvance != nil {
		s.onAdvance(sessionID, state, reason)
	}
}

// Pause freezes the countdown, keeping the remaining time. Pausing an
// already paused session is a logged no-op.
func (s *TurnScheduler) Pause(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.registry.entry(sessionID)
	e.mu.Lock()
	rt, ok := s.runtime(sessionID)
	if !ok {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeTurnNotActive,
			"no turn rotation for session", map[string]string{"SessionID": sessionID})
	}
	if rt.state.Paused {
		e.mu.Unlock()
		log.Printf("turn pause ignored session_id=%s reason=already_paused", sessionID)
		return nil
	}
	rt.state.Paused = true
	rt.epoch++
	remaining := rt.state.Remaining
	s.registry.cancel(sessionID, taskTurnTick)
	e.mu.Unlock()

	s.broadcaster.Broadcast(sessionID, EventGamePaused, PausePayload{
		SessionID:    sessionID,
		RemainingSec: int(remaining / time.Second),
	})
	return nil
}

// Resume restarts a paused countdown from the remaining time.
func (s *TurnScheduler) Resume(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.registry.entry(sessionID)
	e.mu.Lock()
	rt, ok := s.runtime(sessionID)
	if !ok {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeTurnNotActive,
			"no turn rotation for session", map[string]string{"SessionID": sessionID})
	}
	if !rt.state.Paused {
		e.mu.Unlock()
		log.Printf("turn resume ignored session_id=%s reason=not_paused", sessionID)
		return nil
	}
	rt.state.Paused = false
	rt.epoch++
	remaining := rt.state.Remaining
	s.armTick(sessionID, rt.epoch)
	e.mu.Unlock()

	s.broadcaster.Broadcast(sessionID, EventGameResumed, PausePayload{
		SessionID:    sessionID,
		RemainingSec: int(remaining / time.Second),
	})
	return nil
}

// IsPlayerTurn reports whether the slot is the active, unpaused player.
func (s *TurnScheduler) IsPlayerTurn(sessionID, slotID string) bool {
	e := s.registry.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := s.runtime(sessionID)
	if !ok || rt.state.Paused {
		return false
	}
	return rt.state.ActiveSlotID() == slotID
}

// Snapshot returns a copy of the session's turn state if one exists.
func (s *TurnScheduler) Snapshot(sessionID string) (turn.State, bool) {
	e := s.registry.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := s.runtime(sessionID)
	if !ok {
		return turn.State{}, false
	}
	state := rt.state
	state.Order = append([]string(nil), rt.state.Order...)
	return state, true
}

// End stops the countdown and discards the turn state. Safe to call when no
// rotation is running.
func (s *TurnScheduler) End(sessionID string) {
	e := s.registry.entry(sessionID)
	e.mu.Lock()
	s.mu.Lock()
	delete(s.runtimes, sessionID)
	s.mu.Unlock()
	s.registry.cancel(sessionID, taskTurnTick)
	e.mu.Unlock()
}

// RemovePlayer drops a slot from the rotation, advancing first if the slot
// is currently active. Returns the number of players left in the order.
func (s *TurnScheduler) RemovePlayer(ctx context.Context, sessionID, slotID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e := s.registry.entry(sessionID)
	e.mu.Lock()
	rt, ok := s.runtime(sessionID)
	if !ok {
		e.mu.Unlock()
		return 0, apperrors.WithMetadata(apperrors.CodeTurnNotActive,
			"no turn rotation for session", map[string]string{"SessionID": sessionID})
	}

	wasActive := rt.state.ActiveSlotID() == slotID
	order := make([]string, 0, len(rt.state.Order))
	removedIndex := -1
	for i, id := range rt.state.Order {
		if id == slotID {
			removedIndex = i
			continue
		}
		order = append(order, id)
	}
	if removedIndex == -1 {
		e.mu.Unlock()
		return len(rt.state.Order), nil
	}
	if len(order) == 0 {
		s.mu.Lock()
		delete(s.runtimes, sessionID)
		s.mu.Unlock()
		s.registry.cancel(sessionID, taskTurnTick)
		e.mu.Unlock()
		return 0, nil
	}

	rt.state.Order = order
	if removedIndex < rt.state.ActiveIndex {
		rt.state.ActiveIndex--
	}
	remaining := len(order)
	if wasActive {
		// The departing player's countdown must not keep running for the
		// next player, so treat it as a forced advance with a fresh timer.
		rt.state.ActiveIndex = removedIndex % len(order)
		rt.state.Remaining = rt.state.TimeLimit
		rt.state.StartedAt = s.clock().UTC()
		rt.epoch++
		state := rt.state
		s.armTick(sessionID, rt.epoch)
		e.mu.Unlock()
		s.broadcaster.Broadcast(sessionID, EventTurnChanged, s.turnPayload(state, turn.AdvanceReasonForced))
		return remaining, nil
	}
	e.mu.Unlock()
	return remaining, nil
}

// armTick schedules the next countdown decrement for the given epoch. The
// caller must hold the session lock so the armed timer always carries the
// newest epoch.
func (s *TurnScheduler) armTick(sessionID string, epoch uint64) {
	s.registry.schedule(sessionID, taskTurnTick, s.tick, func() {
		s.handleTick(sessionID, epoch)
	})
}

// handleTick runs once per second on the countdown timer. A stale epoch
// means the turn advanced, paused or ended since the tick was armed, and
// the callback drops itself without rescheduling.
func (s *TurnScheduler) handleTick(sessionID string, epoch uint64) {
	e := s.registry.entry(sessionID)
	e.mu.Lock()
	rt, ok := s.runtime(sessionID)
	if !ok || rt.epoch != epoch || rt.state.Paused {
		e.mu.Unlock()
		return
	}

	rt.state.Remaining -= s.tick
	if rt.state.Remaining <= 0 {
		active := rt.state.ActiveSlotID()
		log.Printf("turn timeout session_id=%s slot_id=%s turn=%d", sessionID, active, rt.state.TurnNumber)
		s.advanceLocked(sessionID, rt, turn.AdvanceReasonTimeout, e)
		return
	}

	remaining := rt.state.Remaining
	active := rt.state.ActiveSlotID()
	s.armTick(sessionID, epoch)
	e.mu.Unlock()

	if turn.ShouldBroadcastRemaining(remaining) {
		s.broadcaster.Broadcast(sessionID, EventTurnTimeUpdate, TurnTimePayload{
			SessionID:    sessionID,
			ActiveSlotID: active,
			RemainingSec: int(remaining / time.Second),
		})
	}
}

func (s *TurnScheduler) runtime(sessionID string) (*turnRuntime, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.runtimes[sessionID]
	return rt, ok
}

func (s *TurnScheduler) turnPayload(state turn.State, reason turn.AdvanceReason) TurnPayload {
	payload := TurnPayload{
		SessionID:    state.SessionID,
		ActiveSlotID: state.ActiveSlotID(),
		TurnNumber:   state.TurnNumber,
		TimeLimitSec: int(state.TimeLimit / time.Second),
	}
	if reason != turn.AdvanceReasonUnspecified {
		payload.Reason = reason.String()
	}
	return payload
}

// DefaultTurnTimeLimit is the countdown applied when a session does not
// override it.
var DefaultTurnTimeLimit = timeouts.TurnTimeLimit
