package app

import (
	"context"
	"log"
	"sync"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
)

// Decision events pushed to clients.
const (
	EventDecisionRequested = "decisionRequested"
	EventDecisionResolved  = "decisionResolved"
)

// ActionDecision is the activity log action for resolved decisions.
const ActionDecision = "decision"

// Decision is a pending mid-turn choice presented to the active player,
// such as accepting or declining a purchase drawn from a card.
type Decision struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	SlotID    string    `json:"slotId"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	CreatedAt time.Time `json:"createdAt"`
}

// DecisionResult announces how a decision resolved.
type DecisionResult struct {
	Decision Decision `json:"decision"`
	Choice   string   `json:"choice,omitempty"`
	Canceled bool     `json:"canceled"`
}

// DecisionService tracks at most one pending decision per session. Decisions
// live in memory only; the resolved choice lands in the activity log.
type DecisionService struct {
	registry    *sessionRegistry
	scheduler   *TurnScheduler
	activity    *ActivityRecorder
	broadcaster Broadcaster
	idGenerator func() (string, error)
	clock       func() time.Time

	// mu guards pending across sessions; the per-session entry lock only
	// serializes callers within one session.
	mu      sync.Mutex
	pending map[string]Decision
}

// NewDecisionService wires the service to shared engine infrastructure.
func NewDecisionService(registry *sessionRegistry, scheduler *TurnScheduler, activity *ActivityRecorder, broadcaster Broadcaster, idGenerator func() (string, error), clock func() time.Time) *DecisionService {
	if clock == nil {
		clock = time.Now
	}
	return &DecisionService{
		registry:    registry,
		scheduler:   scheduler,
		activity:    activity,
		broadcaster: broadcaster,
		idGenerator: idGenerator,
		clock:       clock,
		pending:     make(map[string]Decision),
	}
}

// Create opens a decision for the active player. Only one decision may be
// pending per session, and only on the requesting player's turn.
func (d *DecisionService) Create(ctx context.Context, sessionID, slotID, prompt string, options []string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if !d.scheduler.IsPlayerTurn(sessionID, slotID) {
		return Decision{}, apperrors.WithMetadata(apperrors.CodeTurnNotYourTurn,
			"decisions are only opened on your turn", map[string]string{"SlotID": slotID})
	}

	e := d.registry.entry(sessionID)
	e.mu.Lock()
	d.mu.Lock()
	existing, exists := d.pending[sessionID]
	d.mu.Unlock()
	if exists {
		e.mu.Unlock()
		return Decision{}, apperrors.WithMetadata(apperrors.CodeTurnInvalidAction,
			"a decision is already pending", map[string]string{"DecisionID": existing.ID})
	}
	id, err := d.idGenerator()
	if err != nil {
		e.mu.Unlock()
		return Decision{}, apperrors.Wrap(apperrors.CodeUnknown, "generate decision id", err)
	}
	decision := Decision{
		ID:        id,
		SessionID: sessionID,
		SlotID:    slotID,
		Prompt:    prompt,
		Options:   append([]string(nil), options...),
		CreatedAt: d.clock().UTC(),
	}
	d.mu.Lock()
	d.pending[sessionID] = decision
	d.mu.Unlock()
	e.mu.Unlock()

	d.broadcaster.Broadcast(sessionID, EventDecisionRequested, decision)
	return decision, nil
}

// Submit resolves the pending decision with the player's choice and records
// it in the activity log.
func (d *DecisionService) Submit(ctx context.Context, sessionID, slotID, decisionID, choice string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := d.registry.entry(sessionID)
	e.mu.Lock()
	d.mu.Lock()
	decision, ok := d.pending[sessionID]
	d.mu.Unlock()
	if !ok || decision.ID != decisionID {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeNotFound,
			"no such pending decision", map[string]string{"DecisionID": decisionID})
	}
	if decision.SlotID != slotID {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeTurnNotYourTurn,
			"decision belongs to another player", map[string]string{"SlotID": slotID})
	}
	valid := false
	for _, option := range decision.Options {
		if option == choice {
			valid = true
			break
		}
	}
	if !valid {
		e.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeTurnInvalidAction,
			"choice is not one of the decision options", map[string]string{"Choice": choice})
	}
	d.mu.Lock()
	delete(d.pending, sessionID)
	d.mu.Unlock()
	e.mu.Unlock()

	state, _ := d.scheduler.Snapshot(sessionID)
	d.activity.Record(ctx, sessionID, slotID, state.TurnNumber, ActionDecision, decision.Prompt+": "+choice)
	d.broadcaster.Broadcast(sessionID, EventDecisionResolved, DecisionResult{Decision: decision, Choice: choice})
	return nil
}

// Cancel withdraws the pending decision without recording a choice. Called
// when the owning turn ends or the game stops.
func (d *DecisionService) Cancel(ctx context.Context, sessionID string) {
	e := d.registry.entry(sessionID)
	e.mu.Lock()
	d.mu.Lock()
	decision, ok := d.pending[sessionID]
	delete(d.pending, sessionID)
	d.mu.Unlock()
	e.mu.Unlock()
	if !ok {
		return
	}
	log.Printf("decision canceled session_id=%s decision_id=%s", sessionID, decision.ID)
	d.broadcaster.Broadcast(sessionID, EventDecisionResolved, DecisionResult{Decision: decision, Canceled: true})
}
