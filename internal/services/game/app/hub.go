package app

import (
	"sync"
)

// Event is one broadcast frame as seen by a hub subscriber.
type Event struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"event"`
	Payload   any    `json:"payload"`
}

// Hub is an in-process Broadcaster that fans events out to channel
// subscribers per session. Gateways running in the same process subscribe
// here and push frames to their own transports.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*sessionRoom
}

type sessionRoom struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*sessionRoom)}
}

func (h *Hub) room(sessionID string) *sessionRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if ok {
		return room
	}
	room = &sessionRoom{subscribers: make(map[chan Event]struct{})}
	h.rooms[sessionID] = room
	return room
}

// Subscribe registers a buffered event channel for a session. The returned
// cancel function unregisters and closes the channel.
func (h *Hub) Subscribe(sessionID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	room := h.room(sessionID)
	ch := make(chan Event, buffer)

	room.mu.Lock()
	room.subscribers[ch] = struct{}{}
	room.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			room.mu.Lock()
			delete(room.subscribers, ch)
			room.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast delivers an event to every subscriber of the session. Slow
// subscribers whose buffers are full miss the frame; clients resync from
// session state rather than block the engine.
func (h *Hub) Broadcast(sessionID, event string, payload any) {
	room := h.room(sessionID)

	room.mu.Lock()
	defer room.mu.Unlock()
	for ch := range room.subscribers {
		select {
		case ch <- Event{SessionID: sessionID, Name: event, Payload: payload}:
		default:
		}
	}
}

// Forget drops a session's room and its subscriber registrations. Open
// subscriber channels stay valid; their cancel funcs still close them.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, sessionID)
}
