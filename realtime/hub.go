// realtime/hub.go - Channel fan-out for puzzle progress events
package realtime

import "sync"

type EventType string

const (
	EventNewGuess  EventType = "new_guess"
	EventOldGuess  EventType = "old_guess"
	EventNewEureka EventType = "new_eureka"
	EventOldEureka EventType = "old_eureka"
	EventNewHint   EventType = "new_hint"
	EventNewUnlock EventType = "new_unlock"
	EventOldUnlock EventType = "old_unlock"
	EventNewSolve  EventType = "new_solve"
	EventError     EventType = "error"
)

// Event is the minimal serializable payload pushed to listeners.
type Event struct {
	Type    EventType      `json:"type"`
	Content map[string]any `json:"content"`
}

// ChannelKey identifies one fan-out channel. TeamID 0 is the staff
// channel that sees every team's events for the puzzle.
type ChannelKey struct {
	PuzzleID uint
	TeamID   uint
}

// Publisher is the interface the guess evaluator and hint scheduler
// push through.
type Publisher interface {
	Publish(key ChannelKey, event Event)
}

const subscriberBuffer = 64

// Subscriber is one connected listener. Receive events from C.
type Subscriber struct {
	key ChannelKey
	ch  chan Event
}

// C returns the subscriber's event stream.
func (s *Subscriber) C() <-chan Event {
	return s.ch
}

// Hub fans events out 1-to-N per channel. Delivery is best effort:
// a subscriber that cannot keep up loses events rather than blocking
// the publisher. Per-channel ordering follows publish order.
type Hub struct {
	mu   sync.RWMutex
	subs map[ChannelKey]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[ChannelKey]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a listener on a channel.
func (h *Hub) Subscribe(key ChannelKey) *Subscriber {
	sub := &Subscriber{
		key: key,
		ch:  make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*Subscriber]struct{})
	}
	h.subs[key][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a listener and closes its stream.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.key]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.key)
	}
	close(sub.ch)
}

// Publish sends an event to every listener of the channel. Team
// events are mirrored to the puzzle's staff channel.
func (h *Hub) Publish(key ChannelKey, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.publishLocked(key, event)
	if key.TeamID != 0 {
		h.publishLocked(ChannelKey{PuzzleID: key.PuzzleID}, event)
	}
}

func (h *Hub) publishLocked(key ChannelKey, event Event) {
	for sub := range h.subs[key] {
		select {
		case sub.ch <- event:
		default:
			// Slow listener, drop instead of blocking the hub.
		}
	}
}

// NopPublisher discards every event. Used where no hub is wired up.
type NopPublisher struct{}

func (NopPublisher) Publish(ChannelKey, Event) {}
