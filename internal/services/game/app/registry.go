package app

import (
	"sync"
	"time"
)

// taskTimer is the cancellable handle behind a scheduled task. time.Timer
// satisfies it in production; tests substitute a manual implementation so
// they can fire tasks deterministically.
type taskTimer interface {
	Stop() bool
}

// timerFactory builds a timer that invokes fn once after d. The default
// factory wraps time.AfterFunc.
type timerFactory func(d time.Duration, fn func()) taskTimer

func defaultTimerFactory(d time.Duration, fn func()) taskTimer {
	return time.AfterFunc(d, fn)
}

// sessionEntry serializes all mutations for one session and owns its
// scheduled tasks. Tasks are named so rescheduling replaces rather than
// stacks.
type sessionEntry struct {
	mu    sync.Mutex
	tasks map[string]taskTimer
}

// sessionRegistry hands out one entry per session ID. Entries are created
// on first use and dropped when the session is torn down.
type sessionRegistry struct {
	mu       sync.Mutex
	entries  map[string]*sessionEntry
	newTimer timerFactory
}

func newSessionRegistry(newTimer timerFactory) *sessionRegistry {
	if newTimer == nil {
		newTimer = defaultTimerFactory
	}
	return &sessionRegistry{
		entries:  make(map[string]*sessionEntry),
		newTimer: newTimer,
	}
}

// entry returns the lock entry for a session, creating it if needed.
func (r *sessionRegistry) entry(sessionID string) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		e = &sessionEntry{tasks: make(map[string]taskTimer)}
		r.entries[sessionID] = e
	}
	return e
}

// schedule arms a named task for a session, replacing any pending task with
// the same name. The callback runs on the timer goroutine and is responsible
// for taking the session lock itself.
func (r *sessionRegistry) schedule(sessionID, name string, delay time.Duration, fn func()) {
	e := r.entry(sessionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := e.tasks[name]; ok {
		prev.Stop()
	}
	e.tasks[name] = r.newTimer(delay, fn)
}

// cancel stops a named task if it is pending.
func (r *sessionRegistry) cancel(sessionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return
	}
	if t, ok := e.tasks[name]; ok {
		t.Stop()
		delete(e.tasks, name)
	}
}

// remove cancels every pending task for a session and forgets its entry.
// Called during session teardown; callers must not hold the session lock.
func (r *sessionRegistry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return
	}
	for name, t := range e.tasks {
		t.Stop()
		delete(e.tasks, name)
	}
	delete(r.entries, sessionID)
}
