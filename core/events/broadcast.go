package events

import (
	"sync"

	"paylinkchain/core/types"
)

// Broadcaster delivers committed events to live subscribers such as websocket
// streams. Slow subscribers lose events instead of blocking the node.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan *types.Event
	buffer int
}

// NewBroadcaster creates a broadcaster whose subscriber channels hold buffer
// events each.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{subs: make(map[uint64]chan *types.Event), buffer: buffer}
}

// Emit implements Emitter.
func (b *Broadcaster) Emit(evt Event) {
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- payload.Event().Clone():
		default:
		}
	}
}

// Subscribe registers a new listener. The returned cancel function must be
// called to release it; the channel is closed afterwards.
func (b *Broadcaster) Subscribe() (<-chan *types.Event, func()) {
	ch := make(chan *types.Event, b.buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the number of active listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
