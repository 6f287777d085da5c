// internal/bus/bus.go
package bus

import (
	"sync"

	"github.com/jason-s-yu/caucus/internal/models"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Update is a room snapshot published after a change.
type Update struct {
	Room  string
	State models.RoomState
}

// Subscription receives updates for one room. C is closed when the subscription or
// the bus is closed.
type Subscription struct {
	C    <-chan Update
	ch   chan Update
	room string
	bus  *Bus
	once sync.Once
}

// Room returns the room this subscription listens to.
func (s *Subscription) Room() string { return s.room }

// Close detaches the subscription and closes its channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus fans room updates out to subscribers. Subscribers are indexed by room, so a
// publish only touches that room's listeners.
//
// A subscriber whose queue is full loses its oldest pending update to make room for the
// new one. Every update is a full snapshot, so the newest one supersedes what was dropped.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool

	// OnDrop, when set, is called with the room id each time an update is discarded.
	OnDrop func(room string)
}

// New returns a Bus whose subscriptions queue up to buffer updates.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a listener for room. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe(room string) *Subscription {
	ch := make(chan Update, b.buffer)
	s := &Subscription{C: ch, ch: ch, room: room, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(ch) })
		return s
	}
	if b.subs[room] == nil {
		b.subs[room] = make(map[*Subscription]struct{})
	}
	b.subs[room][s] = struct{}{}
	return s
}

// Publish delivers u to every subscriber of u.Room without blocking.
func (b *Bus) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for s := range b.subs[u.Room] {
		b.deliver(s, u)
	}
}

// deliver pushes u, evicting the oldest queued update if the queue is full. Caller holds
// at least the read lock, so s.ch cannot be closed underneath.
func (b *Bus) deliver(s *Subscription, u Update) {
	for {
		select {
		case s.ch <- u:
			return
		default:
		}

		select {
		case <-s.ch:
			if b.OnDrop != nil {
				b.OnDrop(u.Room)
			}
		default:
			// The reader drained it in between; retry the send.
		}
	}
}

// Subscribers returns how many listeners a room has.
func (b *Bus) Subscribers(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[room])
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[s.room]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.room)
		}
	}
	s.once.Do(func() { close(s.ch) })
}

// Close closes every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	for room, set := range b.subs {
		for s := range set {
			s.once.Do(func() { close(s.ch) })
		}
		delete(b.subs, room)
	}
}
