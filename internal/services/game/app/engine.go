package app

import (
	"math/rand"
	"time"

	"github.com/wealthpath/wealthpath/internal/platform/id"
	"github.com/wealthpath/wealthpath/internal/services/game/storage"
)

// Engine bundles the orchestration components for one process. Components
// share a single session registry so every mutation for a session, whether
// player-driven or timer-driven, serializes on the same lock.
type Engine struct {
	Store     storage.Store
	Phases    *PhaseController
	Readiness *ReadinessTracker
	Bridge    *GameplayBridge
	Scheduler *TurnScheduler
	Decisions *DecisionService

	registry *sessionRegistry
}

// EngineOptions overrides the engine's default collaborators. Zero values
// select production defaults.
type EngineOptions struct {
	Broadcaster Broadcaster
	Executor    ActionExecutor
	Clock       func() time.Time
	IDGenerator func() (string, error)
	Intn        func(n int) int

	newTimer timerFactory
}

// NewEngine wires the full orchestration engine over a store.
func NewEngine(store storage.Store, opts EngineOptions) *Engine {
	if opts.Broadcaster == nil {
		opts.Broadcaster = NoopBroadcaster{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = id.NewID
	}
	if opts.Intn == nil {
		opts.Intn = rand.New(rand.NewSource(opts.Clock().UnixNano())).Intn
	}
	if opts.Executor == nil {
		opts.Executor = NewLedgerExecutor(opts.Clock().UnixNano())
	}

	registry := newSessionRegistry(opts.newTimer)
	activity := NewActivityRecorder(store, opts.IDGenerator, opts.Clock)
	scheduler := NewTurnScheduler(registry, opts.Broadcaster, opts.Clock)
	phases := NewPhaseController(store, registry, opts.Broadcaster, activity, opts.Clock, opts.IDGenerator, opts.Intn)
	bridge := NewGameplayBridge(store, scheduler, opts.Executor, activity, opts.Broadcaster)
	readiness := NewReadinessTracker(store, registry, opts.Broadcaster, phases, opts.Clock)
	decisions := NewDecisionService(registry, scheduler, activity, opts.Broadcaster, opts.IDGenerator, opts.Clock)

	phases.SetGameplay(bridge)
	bridge.SetWinReporter(phases)
	bridge.SetDecisionService(decisions)

	return &Engine{
		Store:     store,
		Phases:    phases,
		Readiness: readiness,
		Bridge:    bridge,
		Scheduler: scheduler,
		Decisions: decisions,
		registry:  registry,
	}
}
