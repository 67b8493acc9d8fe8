package player

import "sync"

// State is the transport state visible to subscribers.
type State int

const (
	StateStopped State = iota
	StateBuffering
	StatePlaying
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its string name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Status is a snapshot of the transport published on every transition.
type Status struct {
	State   State    `json:"state"`
	Station *Station `json:"station,omitempty"`
	Title   string   `json:"title,omitempty"`
	Message string   `json:"message,omitempty"`
	Volume  float64  `json:"volume"`
}

const subBufferSize = 8

// Bus is a non-blocking publish-subscribe bus for status updates. Slow
// subscribers have updates dropped rather than blocking the transport.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Status
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan Status)}
}

// Subscribe registers a subscriber under id and returns its channel.
func (b *Bus) Subscribe(id string) <-chan Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Status, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers the status to every subscriber that has room.
func (b *Bus) Publish(st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
