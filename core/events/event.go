package events

import (
	"sync"

	"paylinkchain/core/types"
)

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Payload is implemented by events that carry a typed attribute map.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Wrapped adapts a raw *types.Event to the Payload interface.
type Wrapped struct {
	Evt *types.Event
}

func (w Wrapped) EventType() string {
	if w.Evt == nil {
		return ""
	}
	return w.Evt.Type
}

func (w Wrapped) Event() *types.Event { return w.Evt }

// Recorder buffers emitted events. The node hands a fresh recorder to the
// engines for every call and only forwards the buffer once the call's writes
// are committed.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(evt Event) {
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, payload.Event().Clone())
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Fanout forwards each event to every non-nil emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
