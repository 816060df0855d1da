package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the host.
const (
	SubsystemUp     = "subsystem.up"
	SubsystemFailed = "subsystem.failed"
	SubsystemDown   = "subsystem.down"
	SessionChanged  = "session"
	EngineStarted   = "engine.started"
	EngineStopped   = "engine.stopped"
	ParamProposed   = "param.proposed"
	MIDIMapped      = "midi.cc"
)

type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub is an in-memory pub/sub with a ring buffer so late readers such as the
// bridge can catch up. Publish never blocks on a slow subscriber.
type Hub struct {
	seq atomic.Int64

	mu     sync.Mutex
	ring   []Event
	head   int
	count  int
	subs   map[int]chan Event
	nextID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish records an event. data is JSON-encoded; unencodable data becomes {}.
func (h *Hub) Publish(eventType string, data any) {
	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	ev := Event{
		ID:   h.seq.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}
	h.push(ev)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a buffered channel of new events and a cancel func that
// closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 64)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Since returns buffered events with ID > lastID, oldest first.
func (h *Hub) Since(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.count)
	for i := 0; i < h.count; i++ {
		ev := h.ring[(h.head+i)%len(h.ring)]
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the most recent event, if any.
func (h *Hub) Last() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return Event{}, false
	}
	return h.ring[(h.head+h.count-1)%len(h.ring)], true
}

func (h *Hub) push(ev Event) {
	if h.count < len(h.ring) {
		h.ring[(h.head+h.count)%len(h.ring)] = ev
		h.count++
		return
	}
	// Overwrite oldest.
	h.ring[h.head] = ev
	h.head = (h.head + 1) % len(h.ring)
}
