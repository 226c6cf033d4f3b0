package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
	"github.com/wealthpath/wealthpath/internal/services/game/storage"
)

// memoryStore is an in-memory storage.Store for engine tests.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]storage.SessionRecord
	slots    map[string]map[string]storage.PlayerSlotRecord
	activity []storage.ActivityRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions: make(map[string]storage.SessionRecord),
		slots:    make(map[string]map[string]storage.PlayerSlotRecord),
	}
}

func (m *memoryStore) PutSession(ctx context.Context, record storage.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[record.ID] = record
	return nil
}

func (m *memoryStore) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.sessions[sessionID]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memoryStore) UpdateSessionPhase(ctx context.Context, sessionID string, current phase.Phase, enteredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	record.Phase = current
	record.PhaseEnteredAt = enteredAt
	record.UpdatedAt = enteredAt
	m.sessions[sessionID] = record
	return nil
}

func (m *memoryStore) UpdateSessionHost(ctx context.Context, sessionID, hostSlotID string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	record.HostSlotID = hostSlotID
	record.UpdatedAt = updatedAt
	m.sessions[sessionID] = record
	return nil
}

func (m *memoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.sessions, sessionID)
	delete(m.slots, sessionID)
	return nil
}

func (m *memoryStore) PutPlayerSlot(ctx context.Context, record storage.PlayerSlotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bySlot, ok := m.slots[record.SessionID]
	if !ok {
		bySlot = make(map[string]storage.PlayerSlotRecord)
		m.slots[record.SessionID] = bySlot
	}
	bySlot[record.ID] = record
	return nil
}

func (m *memoryStore) GetPlayerSlot(ctx context.Context, sessionID, slotID string) (storage.PlayerSlotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.slots[sessionID][slotID]
	if !ok {
		return storage.PlayerSlotRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memoryStore) ListPlayerSlots(ctx context.Context, sessionID string) ([]storage.PlayerSlotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]storage.PlayerSlotRecord, 0, len(m.slots[sessionID]))
	for _, record := range m.slots[sessionID] {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].JoinedAt.Equal(records[j].JoinedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].JoinedAt.Before(records[j].JoinedAt)
	})
	return records, nil
}

func (m *memoryStore) UpdatePlayerSlot(ctx context.Context, record storage.PlayerSlotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[record.SessionID][record.ID]; !ok {
		return storage.ErrNotFound
	}
	m.slots[record.SessionID][record.ID] = record
	return nil
}

func (m *memoryStore) DeletePlayerSlot(ctx context.Context, sessionID, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[sessionID][slotID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.slots[sessionID], slotID)
	return nil
}

func (m *memoryStore) AssignTurnOrder(ctx context.Context, sessionID string, order []string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for position, slotID := range order {
		record, ok := m.slots[sessionID][slotID]
		if !ok {
			return storage.ErrNotFound
		}
		record.TurnOrder = position + 1
		record.UpdatedAt = updatedAt
		m.slots[sessionID][slotID] = record
	}
	return nil
}

func (m *memoryStore) AppendActivityLog(ctx context.Context, record storage.ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, record)
	return nil
}

func (m *memoryStore) ListActivityLog(ctx context.Context, sessionID string, limit int) ([]storage.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]storage.ActivityRecord, 0, limit)
	for i := len(m.activity) - 1; i >= 0 && len(records) < limit; i-- {
		if m.activity[i].SessionID == sessionID {
			records = append(records, m.activity[i])
		}
	}
	return records, nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) actionsLogged(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.activity))
	for _, record := range m.activity {
		if record.SessionID == sessionID {
			actions = append(actions, record.Action)
		}
	}
	return actions
}

// broadcastEvent captures one fan-out call.
type broadcastEvent struct {
	SessionID string
	Event     string
	Payload   any
}

// recordingBroadcaster collects events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) Broadcast(sessionID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{SessionID: sessionID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) named(event string) []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	matches := make([]broadcastEvent, 0, len(b.events))
	for _, e := range b.events {
		if e.Event == event {
			matches = append(matches, e)
		}
	}
	return matches
}

func (b *recordingBroadcaster) last(event string) (broadcastEvent, bool) {
	matches := b.named(event)
	if len(matches) == 0 {
		return broadcastEvent{}, false
	}
	return matches[len(matches)-1], true
}

// manualTimer is a taskTimer fired explicitly by tests.
type manualTimer struct {
	bank    *timerBank
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

// timerBank is a timerFactory that collects timers instead of scheduling
// them, letting tests drive countdowns and settle delays deterministically.
type timerBank struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (b *timerBank) factory(d time.Duration, fn func()) taskTimer {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := &manualTimer{bank: b, delay: d, fn: fn}
	b.timers = append(b.timers, t)
	return t
}

// fireNext runs the oldest pending timer. Returns false when none remain.
func (b *timerBank) fireNext() bool {
	b.mu.Lock()
	var next *manualTimer
	for _, t := range b.timers {
		if !t.stopped {
			next = t
			break
		}
	}
	if next == nil {
		b.mu.Unlock()
		return false
	}
	next.stopped = true
	fn := next.fn
	b.mu.Unlock()
	fn()
	return true
}

// fireAll drains pending timers, including ones armed by earlier callbacks,
// up to a safety bound.
func (b *timerBank) fireAll(limit int) int {
	fired := 0
	for fired < limit && b.fireNext() {
		fired++
	}
	return fired
}

func (b *timerBank) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, t := range b.timers {
		if !t.stopped {
			count++
		}
	}
	return count
}

// sequentialIDs returns deterministic ids id-1, id-2, ...
func sequentialIDs() func() (string, error) {
	var n int
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n), nil
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// testEngine bundles an engine with its observable fakes.
type testEngine struct {
	engine *Engine
	store  *memoryStore
	events *recordingBroadcaster
	timers *timerBank
}

func newTestEngine() *testEngine {
	store := newMemoryStore()
	events := &recordingBroadcaster{}
	timers := &timerBank{}
	engine := NewEngine(store, EngineOptions{
		Broadcaster: events,
		Clock:       fixedClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
		IDGenerator: sequentialIDs(),
		Intn:        func(n int) int { return 0 },
		newTimer:    timers.factory,
	})
	return &testEngine{engine: engine, store: store, events: events, timers: timers}
}

// startedSession creates a session with two seated players and returns the
// session and slot ids.
func (te *testEngine) startedSession(ctx context.Context) (sessionID, hostSlot, guestSlot string, err error) {
	sessionRecord, host, err := te.engine.Phases.CreateSession(ctx, "Test Game", "Avery")
	if err != nil {
		return "", "", "", err
	}
	guest, err := te.engine.Phases.JoinSession(ctx, sessionRecord.ID, "Blake")
	if err != nil {
		return "", "", "", err
	}
	return sessionRecord.ID, host.ID, guest.ID, nil
}
