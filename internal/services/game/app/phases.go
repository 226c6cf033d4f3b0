package app

import (
	"context"
	"log"
	"sync"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
	"github.com/wealthpath/wealthpath/internal/platform/timeouts"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/session"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/turn"
	"github.com/wealthpath/wealthpath/internal/services/game/storage"
)

// Registry task names owned by the phase controller.
const (
	taskGameStartSettle = "game-start-settle"
	taskGameEndSettle   = "game-end-settle"
)

// End reasons recorded on gameEnded events.
const (
	EndReasonWin                 = "win"
	EndReasonHostEnded           = "host_ended"
	EndReasonInsufficientPlayers = "insufficient_players"
)

// gameplayPort is the slice of the gameplay bridge the controller drives
// from phase entry actions.
type gameplayPort interface {
	InitializeSessionGameplay(ctx context.Context, sessionID string) error
	StopGameplay(sessionID string)
	RemoveGameplayPlayer(ctx context.Context, sessionID, slotID string) (int, error)
}

// PhaseController owns the session lifecycle state machine. Every phase
// write goes through Transition, which validates the edge, persists before
// committing, and runs the target phase's entry action after the session
// lock is released.
type PhaseController struct {
	store       storage.Store
	registry    *sessionRegistry
	broadcaster Broadcaster
	activity    *ActivityRecorder
	gameplay    gameplayPort
	clock       func() time.Time
	idGenerator func() (string, error)
	intn        func(n int) int

	mu      sync.Mutex
	endings map[string]GameEndedPayload
}

// NewPhaseController wires the controller to shared engine infrastructure.
// The gameplay port is attached later via SetGameplay to break the
// construction cycle with the bridge.
func NewPhaseController(store storage.Store, registry *sessionRegistry, broadcaster Broadcaster, activity *ActivityRecorder, clock func() time.Time, idGenerator func() (string, error), intn func(n int) int) *PhaseController {
	if clock == nil {
		clock = time.Now
	}
	return &PhaseController{
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		activity:    activity,
		clock:       clock,
		idGenerator: idGenerator,
		intn:        intn,
		endings:     make(map[string]GameEndedPayload),
	}
}

// SetGameplay attaches the gameplay bridge. Must be called before any
// session reaches GAME_STARTING.
func (c *PhaseController) SetGameplay(gameplay gameplayPort) {
	c.gameplay = gameplay
}

// CreateSession creates a session with its host seated and moves it to
// WAITING_FOR_PLAYERS.
func (c *PhaseController) CreateSession(ctx context.Context, name, hostDisplayName string) (storage.SessionRecord, storage.PlayerSlotRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, storage.PlayerSlotRecord{}, err
	}
	created, err := session.CreateSession(session.CreateSessionInput{Name: name}, c.clock, c.idGenerator)
	if err != nil {
		return storage.SessionRecord{}, storage.PlayerSlotRecord{}, apperrors.Wrap(apperrors.CodeUnknown, "create session", err)
	}
	sessionID := created.ID
	host, err := session.CreatePlayerSlot(session.CreatePlayerSlotInput{
		SessionID:   sessionID,
		DisplayName: hostDisplayName,
	}, c.clock, c.idGenerator)
	if err != nil {
		return storage.SessionRecord{}, storage.PlayerSlotRecord{}, err
	}

	record := storage.SessionRecord{
		ID:             sessionID,
		Name:           created.Name,
		Phase:          created.Phase,
		PhaseEnteredAt: created.CreatedAt,
		HostSlotID:     host.ID,
		CreatedAt:      created.CreatedAt,
		UpdatedAt:      created.UpdatedAt,
	}
	hostRecord := storage.PlayerSlotRecord{
		ID:          host.ID,
		SessionID:   sessionID,
		DisplayName: host.DisplayName,
		Status:      host.Status,
		JoinedAt:    host.JoinedAt,
		UpdatedAt:   host.JoinedAt,
	}

	e := c.registry.entry(sessionID)
	e.mu.Lock()
	if err := c.store.PutSession(ctx, record); err != nil {
		e.mu.Unlock()
		return storage.SessionRecord{}, storage.PlayerSlotRecord{}, apperrors.Wrap(apperrors.CodePersistenceUnavailable, "create session", err)
	}
	if err := c.store.PutPlayerSlot(ctx, hostRecord); err != nil {
		e.mu.Unlock()
		return storage.SessionRecord{}, storage.PlayerSlotRecord{}, apperrors.Wrap(apperrors.CodePersistenceUnavailable, "create host slot", err)
	}
	e.mu.Unlock()

	if err := c.Transition(ctx, sessionID, phase.PhaseWaitingForPlayers); err != nil {
		return storage.SessionRecord{}, storage.PlayerSlotRecord{}, err
	}
	record.Phase = phase.PhaseWaitingForPlayers
	log.Printf("session created session_id=%s host_slot_id=%s", sessionID, host.ID)
	return record, hostRecord, nil
}

// JoinSession seats a new player. Joining is open while the session waits
// for players or runs setup, up to the seat limit. Reaching the minimum
// player count moves a waiting session into PLAYER_SETUP.
func (c *PhaseController) JoinSession(ctx context.Context, sessionID, displayName string) (storage.PlayerSlotRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlayerSlotRecord{}, err
	}
	slot, err := session.CreatePlayerSlot(session.CreatePlayerSlotInput{
		SessionID:   sessionID,
		DisplayName: displayName,
	}, c.clock, c.idGenerator)
	if err != nil {
		return storage.PlayerSlotRecord{}, err
	}

	e := c.registry.entry(sessionID)
	e.mu.Lock()

	sessionRecord, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return storage.PlayerSlotRecord{}, wrapSessionLookup(sessionID, err)
	}
	current := sessionRecord.Phase
	if current != phase.PhaseWaitingForPlayers && current != phase.PhasePlayerSetup {
		e.mu.Unlock()
		return storage.PlayerSlotRecord{}, apperrors.WithMetadata(apperrors.CodeSessionPhaseDisallowsOp,
			"session is not accepting players", map[string]string{"Phase": current.String()})
	}
	existing, err := c.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return storage.PlayerSlotRecord{}, apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	if len(existing) >= session.MaxPlayers {
		e.mu.Unlock()
		return storage.PlayerSlotRecord{}, apperrors.WithMetadata(apperrors.CodeSessionPhaseDisallowsOp,
			"session is full", map[string]string{"MaxPlayers": "6"})
	}

	record := storage.PlayerSlotRecord{
		ID:          slot.ID,
		SessionID:   sessionID,
		DisplayName: slot.DisplayName,
		Status:      slot.Status,
		JoinedAt:    slot.JoinedAt,
		UpdatedAt:   slot.JoinedAt,
	}
	if err := c.store.PutPlayerSlot(ctx, record); err != nil {
		e.mu.Unlock()
		return storage.PlayerSlotRecord{}, apperrors.Wrap(apperrors.CodePersistenceUnavailable, "seat player", err)
	}
	seated := len(existing) + 1
	e.mu.Unlock()

	log.Printf("player joined session_id=%s slot_id=%s seated=%d", sessionID, slot.ID, seated)
	if current == phase.PhaseWaitingForPlayers && seated >= session.MinPlayers {
		if err := c.Transition(ctx, sessionID, phase.PhasePlayerSetup); err != nil {
			return storage.PlayerSlotRecord{}, err
		}
	}
	return record, nil
}

// LeaveSession removes a player. Before gameplay, the seat is deleted, the
// host role is handed to the longest-seated remaining player, and the
// session falls back toward WAITING_FOR_PLAYERS when it drops below the
// minimum. During gameplay, the player leaves the rotation; if fewer than
// the minimum remain the game ends.
func (c *PhaseController) LeaveSession(ctx context.Context, sessionID, slotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := c.registry.entry(sessionID)
	e.mu.Lock()

	sessionRecord, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return wrapSessionLookup(sessionID, err)
	}
	current := sessionRecord.Phase

	if current == phase.PhaseGameplayActive {
		e.mu.Unlock()
		return c.leaveDuringGameplay(ctx, sessionID, slotID)
	}
	if current == phase.PhaseGameEnding || current == phase.PhaseGameFinished || current == phase.PhaseGameStarting {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeSessionPhaseDisallowsOp,
			"players cannot leave in this phase", map[string]string{"Phase": current.String()})
	}

	records, err := c.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	if err := c.store.DeletePlayerSlot(ctx, sessionID, slotID); err != nil {
		e.mu.Unlock()
		return wrapSlotLookup(sessionID, slotID, err)
	}

	remaining := len(records) - 1
	newHost := ""
	if sessionRecord.HostSlotID == slotID && remaining > 0 {
		newHost = session.NextHost(slotsFromRecords(records), slotID)
		if err := c.store.UpdateSessionHost(ctx, sessionID, newHost, c.clock().UTC()); err != nil {
			e.mu.Unlock()
			return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "reassign host", err)
		}
	}
	e.mu.Unlock()

	log.Printf("player left session_id=%s slot_id=%s remaining=%d new_host=%s", sessionID, slotID, remaining, newHost)
	if remaining == 0 {
		return c.teardown(ctx, sessionID)
	}
	if remaining < session.MinPlayers && current != phase.PhaseWaitingForPlayers {
		return c.Transition(ctx, sessionID, phase.PhaseWaitingForPlayers)
	}
	if current == phase.PhaseAllPlayersReady {
		// Readiness is no longer unanimous once a ready player leaves.
		return c.Transition(ctx, sessionID, phase.PhasePlayerSetup)
	}
	return nil
}

func (c *PhaseController) leaveDuringGameplay(ctx context.Context, sessionID, slotID string) error {
	left, err := c.gameplay.RemoveGameplayPlayer(ctx, sessionID, slotID)
	if err != nil {
		return err
	}
	e := c.registry.entry(sessionID)
	e.mu.Lock()
	sessionRecord, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return wrapSessionLookup(sessionID, err)
	}
	records, err := c.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	if err := c.store.DeletePlayerSlot(ctx, sessionID, slotID); err != nil {
		e.mu.Unlock()
		return wrapSlotLookup(sessionID, slotID, err)
	}
	if sessionRecord.HostSlotID == slotID && left > 0 {
		newHost := session.NextHost(slotsFromRecords(records), slotID)
		if err := c.store.UpdateSessionHost(ctx, sessionID, newHost, c.clock().UTC()); err != nil {
			e.mu.Unlock()
			return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "reassign host", err)
		}
	}
	e.mu.Unlock()
	log.Printf("player left mid-game session_id=%s slot_id=%s remaining=%d", sessionID, slotID, left)
	if left < session.MinPlayers {
		return c.EndGame(ctx, sessionID, "", EndReasonInsufficientPlayers)
	}
	return nil
}

// Transition moves a session along one edge of the phase graph. The new
// phase is persisted before it is observable, the phaseChanged event fires
// after the session lock is released, and the target phase's entry action
// runs last.
func (c *PhaseController) Transition(ctx context.Context, sessionID string, target phase.Phase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := c.registry.entry(sessionID)
	e.mu.Lock()

	sessionRecord, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return wrapSessionLookup(sessionID, err)
	}
	record := phase.Record{SessionID: sessionID, Current: sessionRecord.Phase, EnteredAt: sessionRecord.PhaseEnteredAt}
	updated, err := phase.Transition(record, target, c.clock)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := c.store.UpdateSessionPhase(ctx, sessionID, updated.Current, updated.EnteredAt); err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "persist phase", err)
	}
	e.mu.Unlock()

	log.Printf("phase transition session_id=%s from=%s to=%s", sessionID, record.Current, target)
	c.broadcaster.Broadcast(sessionID, EventPhaseChanged, PhaseChangedPayload{
		SessionID: sessionID,
		From:      record.Current,
		To:        target,
		FromLabel: record.Current.String(),
		ToLabel:   target.String(),
		EnteredAt: updated.EnteredAt,
	})
	return c.runEntryAction(ctx, sessionID, target)
}

// runEntryAction performs the side effects of arriving in a phase. The
// session lock is not held here; actions that mutate state re-acquire it.
func (c *PhaseController) runEntryAction(ctx context.Context, sessionID string, target phase.Phase) error {
	switch target {
	case phase.PhaseAllPlayersReady:
		c.broadcaster.Broadcast(sessionID, EventAllPlayersReady, ReadyStatusPayload{SessionID: sessionID, CanStart: true})
		return nil
	case phase.PhaseGameStarting:
		return c.startGame(ctx, sessionID)
	case phase.PhaseGameplayActive:
		return c.gameplay.InitializeSessionGameplay(ctx, sessionID)
	case phase.PhaseGameEnding:
		return c.endSequence(ctx, sessionID)
	case phase.PhaseGameFinished:
		return c.finishGame(ctx, sessionID)
	default:
		return nil
	}
}

// startGame assigns the shuffled turn order, announces it, and arms the
// settle delay that moves the session into live gameplay.
func (c *PhaseController) startGame(ctx context.Context, sessionID string) error {
	e := c.registry.entry(sessionID)
	e.mu.Lock()

	records, err := c.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	slotIDs := make([]string, 0, len(records))
	for _, record := range records {
		slotIDs = append(slotIDs, record.ID)
	}
	order := turn.ShuffleOrder(slotIDs, c.intn)
	if err := c.store.AssignTurnOrder(ctx, sessionID, order, c.clock().UTC()); err != nil {
		e.mu.Unlock()
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "assign turn order", err)
	}
	e.mu.Unlock()

	log.Printf("game starting session_id=%s players=%d", sessionID, len(order))
	c.broadcaster.Broadcast(sessionID, EventGameStarted, GameStartedPayload{
		SessionID: sessionID,
		TurnOrder: order,
	})
	c.registry.schedule(sessionID, taskGameStartSettle, timeouts.GameStartSettle, func() {
		if err := c.Transition(context.Background(), sessionID, phase.PhaseGameplayActive); err != nil {
			log.Printf("game start settle failed session_id=%s err=%v", sessionID, err)
		}
	})
	return nil
}

// EndGame begins the end sequence, recording who won and why so the
// GAME_ENDING entry action can announce it.
func (c *PhaseController) EndGame(ctx context.Context, sessionID, winnerSlotID, reason string) error {
	if reason == "" {
		reason = EndReasonHostEnded
	}
	c.mu.Lock()
	c.endings[sessionID] = GameEndedPayload{
		SessionID:    sessionID,
		WinnerSlotID: winnerSlotID,
		Reason:       reason,
	}
	c.mu.Unlock()
	return c.Transition(ctx, sessionID, phase.PhaseGameEnding)
}

// ReportWin is called by the gameplay bridge when a player meets the win
// condition. Wins reported outside live gameplay are dropped: during
// GAME_ENDING an end sequence is already underway, and any other phase
// cannot legitimately produce one.
func (c *PhaseController) ReportWin(ctx context.Context, sessionID, slotID string) {
	e := c.registry.entry(sessionID)
	e.mu.Lock()
	sessionRecord, err := c.store.GetSession(ctx, sessionID)
	e.mu.Unlock()
	if err != nil {
		log.Printf("win report dropped session_id=%s slot_id=%s err=%v", sessionID, slotID, err)
		return
	}
	switch sessionRecord.Phase {
	case phase.PhaseGameplayActive:
		if err := c.EndGame(ctx, sessionID, slotID, EndReasonWin); err != nil {
			log.Printf("win end sequence failed session_id=%s slot_id=%s err=%v", sessionID, slotID, err)
		}
	case phase.PhaseGameEnding:
		log.Printf("win report ignored session_id=%s slot_id=%s reason=end_sequence_running", sessionID, slotID)
	default:
		log.Printf("win report dropped session_id=%s slot_id=%s phase=%s", sessionID, slotID, sessionRecord.Phase)
	}
}

// endSequence stops gameplay, announces the result, and arms the settle
// delay into GAME_FINISHED.
func (c *PhaseController) endSequence(ctx context.Context, sessionID string) error {
	c.gameplay.StopGameplay(sessionID)

	c.mu.Lock()
	payload, ok := c.endings[sessionID]
	delete(c.endings, sessionID)
	c.mu.Unlock()
	if !ok {
		payload = GameEndedPayload{SessionID: sessionID, Reason: EndReasonHostEnded}
	}

	log.Printf("game ending session_id=%s winner=%s reason=%s", sessionID, payload.WinnerSlotID, payload.Reason)
	c.broadcaster.Broadcast(sessionID, EventGameEnded, payload)
	if payload.WinnerSlotID != "" {
		c.activity.Record(ctx, sessionID, payload.WinnerSlotID, 0, "game_won", payload.Reason)
	}
	c.registry.schedule(sessionID, taskGameEndSettle, timeouts.GameEndSettle, func() {
		if err := c.Transition(context.Background(), sessionID, phase.PhaseGameFinished); err != nil {
			log.Printf("game end settle failed session_id=%s err=%v", sessionID, err)
		}
	})
	return nil
}

// finishGame records the terminal summary and releases in-memory resources.
// The session row and activity log stay durable as match history.
func (c *PhaseController) finishGame(ctx context.Context, sessionID string) error {
	c.activity.Record(ctx, sessionID, "", 0, "game_finished", "session reached terminal phase")
	c.registry.remove(sessionID)
	log.Printf("game finished session_id=%s", sessionID)
	return nil
}

// teardown deletes a session that emptied out before gameplay.
func (c *PhaseController) teardown(ctx context.Context, sessionID string) error {
	c.registry.remove(sessionID)
	e := c.registry.entry(sessionID)
	e.mu.Lock()
	err := c.store.DeleteSession(ctx, sessionID)
	e.mu.Unlock()
	c.registry.remove(sessionID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "delete empty session", err)
	}
	log.Printf("session deleted session_id=%s reason=empty", sessionID)
	return nil
}

// Rehydrate repairs a session's in-memory runtime after a process restart.
// Sessions persisted mid-start or mid-end resume their settle transitions;
// live sessions rebuild the turn rotation from the persisted order.
func (c *PhaseController) Rehydrate(ctx context.Context, sessionID string) error {
	e := c.registry.entry(sessionID)
	e.mu.Lock()
	sessionRecord, err := c.store.GetSession(ctx, sessionID)
	e.mu.Unlock()
	if err != nil {
		return wrapSessionLookup(sessionID, err)
	}

	switch sessionRecord.Phase {
	case phase.PhaseGameStarting:
		log.Printf("rehydrate session_id=%s phase=GAME_STARTING action=resume_settle", sessionID)
		c.registry.schedule(sessionID, taskGameStartSettle, timeouts.GameStartSettle, func() {
			if err := c.Transition(context.Background(), sessionID, phase.PhaseGameplayActive); err != nil {
				log.Printf("rehydrate start settle failed session_id=%s err=%v", sessionID, err)
			}
		})
	case phase.PhaseGameplayActive:
		log.Printf("rehydrate session_id=%s phase=GAMEPLAY_ACTIVE action=rebuild_turns", sessionID)
		return c.gameplay.InitializeSessionGameplay(ctx, sessionID)
	case phase.PhaseGameEnding:
		log.Printf("rehydrate session_id=%s phase=GAME_ENDING action=resume_settle", sessionID)
		c.registry.schedule(sessionID, taskGameEndSettle, timeouts.GameEndSettle, func() {
			if err := c.Transition(context.Background(), sessionID, phase.PhaseGameFinished); err != nil {
				log.Printf("rehydrate end settle failed session_id=%s err=%v", sessionID, err)
			}
		})
	}
	return nil
}
