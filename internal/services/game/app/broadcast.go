package app

import (
	"log"
	"time"

	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
)

// Event names pushed to connected clients. Consumers key off these strings,
// so they are part of the wire contract and must not change casually.
const (
	EventPhaseChanged       = "phaseChanged"
	EventPlayerReadyUpdated = "playerReadyStatusUpdated"
	EventAllPlayersReady    = "allPlayersReady"
	EventGameStarted        = "gameStarted"
	EventTurnStarted        = "turnStarted"
	EventTurnChanged        = "turnChanged"
	EventTurnTimeUpdate     = "turnTimeUpdate"
	EventGamePaused         = "gamePaused"
	EventGameResumed        = "gameResumed"
	EventGameEnded          = "gameEnded"
	EventActionExecuted     = "actionExecuted"
)

// Broadcaster fans an event out to every client subscribed to a session.
// Implementations must not block; slow consumers are the transport's problem.
type Broadcaster interface {
	Broadcast(sessionID, event string, payload any)
}

// PhaseChangedPayload announces a phase transition.
type PhaseChangedPayload struct {
	SessionID string      `json:"sessionId"`
	From      phase.Phase `json:"-"`
	To        phase.Phase `json:"-"`
	FromLabel string      `json:"fromPhase"`
	ToLabel   string      `json:"toPhase"`
	EnteredAt time.Time   `json:"enteredAt"`
}

// ReadyStatusPayload announces one player's readiness change.
type ReadyStatusPayload struct {
	SessionID   string `json:"sessionId"`
	SlotID      string `json:"slotId"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
	ReadyCount  int    `json:"readyCount"`
	TotalCount  int    `json:"totalCount"`
	CanStart    bool   `json:"canStart"`
}

// GameStartedPayload carries the shuffled turn order.
type GameStartedPayload struct {
	SessionID string   `json:"sessionId"`
	TurnOrder []string `json:"turnOrder"`
}

// TurnPayload describes the active turn. It is used for both turnStarted
// and turnChanged events.
type TurnPayload struct {
	SessionID    string `json:"sessionId"`
	ActiveSlotID string `json:"activeSlotId"`
	TurnNumber   int    `json:"turnNumber"`
	TimeLimitSec int    `json:"timeLimitSec"`
	Reason       string `json:"reason,omitempty"`
}

// TurnTimePayload is the throttled countdown tick.
type TurnTimePayload struct {
	SessionID    string `json:"sessionId"`
	ActiveSlotID string `json:"activeSlotId"`
	RemainingSec int    `json:"remainingSec"`
}

// PausePayload announces a pause or resume.
type PausePayload struct {
	SessionID    string `json:"sessionId"`
	RemainingSec int    `json:"remainingSec"`
}

// GameEndedPayload announces the end of gameplay.
type GameEndedPayload struct {
	SessionID    string `json:"sessionId"`
	WinnerSlotID string `json:"winnerSlotId,omitempty"`
	Reason       string `json:"reason"`
}

// NoopBroadcaster satisfies Broadcaster without a transport attached. It is
// used by the worker entrypoint before a gateway registers and by tests that
// do not care about events.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Broadcast(sessionID, event string, payload any) {}

// LogBroadcaster writes every event to the process log. Useful when running
// the engine standalone.
type LogBroadcaster struct{}

func (LogBroadcaster) Broadcast(sessionID, event string, payload any) {
	log.Printf("broadcast session_id=%s event=%s payload=%+v", sessionID, event, payload)
}

// TeeBroadcaster forwards every event to each wrapped broadcaster in order.
type TeeBroadcaster []Broadcaster

func (t TeeBroadcaster) Broadcast(sessionID, event string, payload any) {
	for _, b := range t {
		b.Broadcast(sessionID, event, payload)
	}
}
