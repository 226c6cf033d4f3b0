package app

import (
	"context"
	"log"
	"sort"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/turn"
	"github.com/wealthpath/wealthpath/internal/services/game/storage"
)

// winReporter receives win-condition hits from live gameplay. The phase
// controller implements it; the indirection breaks the construction cycle
// between bridge and controller.
type winReporter interface {
	ReportWin(ctx context.Context, sessionID, slotID string)
}

// balanceForgetter is implemented by executors that keep per-session state
// worth releasing when a game ends.
type balanceForgetter interface {
	Forget(sessionID string)
}

// ActionEventPayload is broadcast after every executed gameplay action.
type ActionEventPayload struct {
	SessionID  string       `json:"sessionId"`
	SlotID     string       `json:"slotId"`
	TurnNumber int          `json:"turnNumber"`
	Result     ActionResult `json:"result"`
}

// GameplayBridge connects the phase lifecycle to live turn-based play. It
// starts and stops the turn rotation on phase entry, routes player actions
// through the executor, and reports win-condition hits back to the phase
// controller.
type GameplayBridge struct {
	store       storage.Store
	scheduler   *TurnScheduler
	executor    ActionExecutor
	activity    *ActivityRecorder
	broadcaster Broadcaster
	wins        winReporter
	decisions   *DecisionService
	timeLimit   time.Duration
}

// NewGameplayBridge wires the bridge and registers its timeout hook on the
// scheduler. The win reporter is attached later via SetWinReporter.
func NewGameplayBridge(store storage.Store, scheduler *TurnScheduler, executor ActionExecutor, activity *ActivityRecorder, broadcaster Broadcaster) *GameplayBridge {
	b := &GameplayBridge{
		store:       store,
		scheduler:   scheduler,
		executor:    executor,
		activity:    activity,
		broadcaster: broadcaster,
		timeLimit:   DefaultTurnTimeLimit,
	}
	scheduler.SetAdvanceHook(b.onTurnAdvanced)
	return b
}

// SetWinReporter attaches the phase controller's win sink. Must be called
// before any session reaches live gameplay.
func (b *GameplayBridge) SetWinReporter(wins winReporter) {
	b.wins = wins
}

// SetDecisionService attaches the mid-turn decision tracker so pending
// decisions are withdrawn when their turn ends.
func (b *GameplayBridge) SetDecisionService(decisions *DecisionService) {
	b.decisions = decisions
}

// InitializeSessionGameplay builds the turn rotation from the persisted
// turn order and starts the first countdown.
func (b *GameplayBridge) InitializeSessionGameplay(ctx context.Context, sessionID string) error {
	records, err := b.store.ListPlayerSlots(ctx, sessionID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceUnavailable, "list player slots", err)
	}
	ordered := make([]storage.PlayerSlotRecord, 0, len(records))
	for _, record := range records {
		if record.TurnOrder > 0 {
			ordered = append(ordered, record)
		}
	}
	if len(ordered) == 0 {
		return apperrors.WithMetadata(apperrors.CodeTurnInvalidOrder,
			"no turn order assigned for session", map[string]string{"SessionID": sessionID})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TurnOrder < ordered[j].TurnOrder })
	order := make([]string, 0, len(ordered))
	for _, record := range ordered {
		order = append(order, record.ID)
	}
	return b.scheduler.Initialize(ctx, sessionID, order, b.timeLimit)
}

// ExecuteAction runs one gameplay action for the active player. Ending the
// turn advances the rotation; every action is checked against the win
// condition afterwards.
func (b *GameplayBridge) ExecuteAction(ctx context.Context, sessionID, slotID, action string) (ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return ActionResult{}, err
	}
	if err := validateAction(action); err != nil {
		return ActionResult{}, err
	}
	if !b.scheduler.IsPlayerTurn(sessionID, slotID) {
		return ActionResult{}, apperrors.WithMetadata(apperrors.CodeTurnNotYourTurn,
			"actions are only allowed on your turn", map[string]string{"SlotID": slotID})
	}
	state, ok := b.scheduler.Snapshot(sessionID)
	if !ok {
		return ActionResult{}, apperrors.WithMetadata(apperrors.CodeTurnNotActive,
			"no turn rotation for session", map[string]string{"SessionID": sessionID})
	}

	var result ActionResult
	var err error
	switch action {
	case ActionRollDice:
		result, err = b.executor.RollDice(ctx, sessionID, slotID)
	case ActionDrawCard:
		result, err = b.executor.DrawCard(ctx, sessionID, slotID)
	case ActionEndTurn:
		result, err = b.executor.EndTurn(ctx, sessionID, slotID)
	}
	if err != nil {
		return ActionResult{}, err
	}

	b.activity.Record(ctx, sessionID, slotID, state.TurnNumber, action, result.Detail)
	b.broadcaster.Broadcast(sessionID, EventActionExecuted, ActionEventPayload{
		SessionID:  sessionID,
		SlotID:     slotID,
		TurnNumber: state.TurnNumber,
		Result:     result,
	})

	if action == ActionEndTurn {
		if err := b.scheduler.Advance(ctx, sessionID, slotID, turn.AdvanceReasonCompleted); err != nil {
			return result, err
		}
	}

	won, err := b.executor.CheckWinCondition(ctx, sessionID, slotID)
	if err != nil {
		log.Printf("win check failed session_id=%s slot_id=%s err=%v", sessionID, slotID, err)
		return result, nil
	}
	if won && b.wins != nil {
		b.wins.ReportWin(ctx, sessionID, slotID)
	}
	return result, nil
}

// PauseGame freezes the countdown. Only the host may pause.
func (b *GameplayBridge) PauseGame(ctx context.Context, sessionID, requestorSlotID string) error {
	if err := b.requireHost(ctx, sessionID, requestorSlotID); err != nil {
		return err
	}
	return b.scheduler.Pause(ctx, sessionID)
}

// ResumeGame restarts a paused countdown. Only the host may resume.
func (b *GameplayBridge) ResumeGame(ctx context.Context, sessionID, requestorSlotID string) error {
	if err := b.requireHost(ctx, sessionID, requestorSlotID); err != nil {
		return err
	}
	return b.scheduler.Resume(ctx, sessionID)
}

// StopGameplay tears down the turn rotation and releases per-session
// executor state. Called from the GAME_ENDING entry action.
func (b *GameplayBridge) StopGameplay(sessionID string) {
	if b.decisions != nil {
		b.decisions.Cancel(context.Background(), sessionID)
	}
	b.scheduler.End(sessionID)
	if forgetter, ok := b.executor.(balanceForgetter); ok {
		forgetter.Forget(sessionID)
	}
}

// RemoveGameplayPlayer drops a player from the live rotation and returns
// how many remain.
func (b *GameplayBridge) RemoveGameplayPlayer(ctx context.Context, sessionID, slotID string) (int, error) {
	return b.scheduler.RemovePlayer(ctx, sessionID, slotID)
}

// onTurnAdvanced records timer-expired turns in the activity log. Player
// initiated advances are already logged by ExecuteAction.
func (b *GameplayBridge) onTurnAdvanced(sessionID string, state turn.State, reason turn.AdvanceReason) {
	if b.decisions != nil {
		b.decisions.Cancel(context.Background(), sessionID)
	}
	if reason != turn.AdvanceReasonTimeout {
		return
	}
	b.activity.Record(context.Background(), sessionID, state.ActiveSlotID(), state.TurnNumber,
		"turn_timeout", "turn advanced after countdown expired")
}

func (b *GameplayBridge) requireHost(ctx context.Context, sessionID, slotID string) error {
	sessionRecord, err := b.store.GetSession(ctx, sessionID)
	if err != nil {
		return wrapSessionLookup(sessionID, err)
	}
	if sessionRecord.Phase != phase.PhaseGameplayActive {
		return apperrors.WithMetadata(apperrors.CodeTurnGameplayStopped,
			"gameplay is not active", map[string]string{"Phase": sessionRecord.Phase.String()})
	}
	if sessionRecord.HostSlotID != slotID {
		return apperrors.WithMetadata(apperrors.CodeSessionHostRequired,
			"only the host may pause or resume", map[string]string{"SlotID": slotID})
	}
	return nil
}
