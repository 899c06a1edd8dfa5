package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the kind of event published on the engine's hub.
// Handlers are read-only observers; their errors never revert state.
type EventKind string

const (
	EventBlockInserted EventKind = "chain.blockInserted"
	EventTxExecuted    EventKind = "chain.txExecuted"
	EventChainHead     EventKind = "chain.head"
	EventEngineError   EventKind = "engine.error"
)

// Event is one message published on the hub. CorrelationID lets a
// listener tie a burst of events (e.g. every tx in one block) back to the
// operation that produced them.
type Event struct {
	Kind          EventKind
	Data          interface{}
	Timestamp     time.Time
	CorrelationID string
}

// Subscription is a live registration on an EventHub.
type Subscription struct {
	id     uint64
	kinds  map[EventKind]struct{}
	ch     chan Event
	hub    *EventHub
	closed atomic.Bool
}

func (s *Subscription) Chan() <-chan Event { return s.ch }

func (s *Subscription) Unsubscribe() {
	if s.hub != nil {
		s.hub.Unsubscribe(s)
	}
}

// EventHub is the engine shell's publish/subscribe mechanism: subscribers
// register for one or more kinds and receive a buffered channel of
// matching events.
// Handlers are expected to be read-only observers; nothing downstream of
// Publish ever inspects a handler's return value or error, by design (see
// the Open Question decision in DESIGN.md).
type EventHub struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool
}

func NewEventHub(bufferSize int) *EventHub {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &EventHub{subs: make(map[uint64]*Subscription), bufferSize: bufferSize}
}

func (h *EventHub) Subscribe(kinds ...EventKind) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub := &Subscription{ch: make(chan Event), kinds: make(map[EventKind]struct{})}
		sub.closed.Store(true)
		close(sub.ch)
		return sub
	}

	h.nextID++
	set := make(map[EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	sub := &Subscription{id: h.nextID, kinds: set, ch: make(chan Event, h.bufferSize), hub: h}
	h.subs[sub.id] = sub
	return sub
}

func (h *EventHub) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.closed.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()
	close(sub.ch)
}

// newCorrelationID mints a fresh correlation id for one Publish call or
// burst of related events.
func newCorrelationID() string { return uuid.NewString() }

// PublishAsync delivers an event to every matching, non-full subscriber
// without blocking; a full subscriber simply misses the event. The
// engine shell uses this exclusively (never the blocking variant) so a
// slow or stuck listener can never stall block/tx execution.
func (h *EventHub) PublishAsync(kind EventKind, data interface{}, correlationID string) {
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	event := Event{Kind: kind, Data: data, Timestamp: time.Now(), CorrelationID: correlationID}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if sub.closed.Load() {
			continue
		}
		if _, ok := sub.kinds[kind]; !ok {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func (h *EventHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	toClose := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		toClose = append(toClose, sub)
	}
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, sub := range toClose {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
}
