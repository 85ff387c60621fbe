package events

import "sync"

// Kind identifies a device lifecycle event.
type Kind int

const (
	Started Kind = iota
	Stopped
	IndexChanged
	SenderNeedsRestart
)

func (k Kind) String() string {
	switch k {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case IndexChanged:
		return "index-changed"
	case SenderNeedsRestart:
		return "sender-needs-restart"
	default:
		return "unknown"
	}
}

// Event is a single lifecycle notification. Old/New are only meaningful for
// IndexChanged.
type Event struct {
	Kind Kind
	Old  int64
	New  int64
}

// Bus fans device events out to subscribers. Publishing never blocks: a
// subscriber whose channel is full misses the event.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribe registers a listener. The returned cancel func must be called
// exactly once; it closes the channel.
func (b *Bus) Subscribe() (chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Forward republishes every event from src onto b until src is closed.
// Used by the facade to re-emit adapter events on its own bus.
func (b *Bus) Forward(src <-chan Event) {
	go func() {
		for ev := range src {
			b.Publish(ev)
		}
	}()
}
