package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Record is one observed event as kept by the Hub and streamed to
// observers (SSE feed, monitor).
type Record struct {
	Seq  int64           `json:"seq"`
	ID   string          `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub is an observation feed: it fans records out to subscribers and keeps
// the most recent ones in a ring so late observers can catch up.
type Hub struct {
	seq atomic.Int64

	mu     sync.Mutex
	ring   []Record
	head   int
	filled int

	observers map[int]chan Record
	nextObs   int
}

// NewHub returns a hub that retains the last capacity records.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	return &Hub{
		ring:      make([]Record, capacity),
		observers: make(map[int]chan Record),
	}
}

// Publish records an event. Observers that are not keeping up miss it.
func (h *Hub) Publish(eventType string, data any) {
	rec := Record{
		Seq:  h.seq.Add(1),
		ID:   uuid.NewString(),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: json.RawMessage("{}"),
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			rec.Data = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.store(rec)
	for _, ch := range h.observers {
		select {
		case ch <- rec:
		default:
		}
	}
}

// Subscribe registers an observer. The returned func unsubscribes and
// closes the channel.
func (h *Hub) Subscribe() (<-chan Record, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextObs
	h.nextObs++
	ch := make(chan Record, 128)
	h.observers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.observers, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Since returns retained records with Seq > after, oldest first.
func (h *Hub) Since(after int64) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Record, 0, h.filled)
	for i := 0; i < h.filled; i++ {
		rec := h.ring[(h.head+i)%len(h.ring)]
		if rec.Seq > after {
			out = append(out, rec)
		}
	}
	return out
}

func (h *Hub) store(rec Record) {
	n := len(h.ring)
	if h.filled < n {
		h.ring[(h.head+h.filled)%n] = rec
		h.filled++
		return
	}
	h.ring[h.head] = rec
	h.head = (h.head + 1) % n
}
