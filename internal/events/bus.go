package events

import "sync"

// subscriberBuffer bounds how many undelivered events one subscriber may
// hold before newer events are dropped for it.
const subscriberBuffer = 64

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// Bus fans lifecycle events out to subscribers. Each subscriber gets its own
// delivery goroutine, so a slow handler never blocks publishers or other
// subscribers; it just starts losing events once its buffer fills.
type Bus struct {
	mu     sync.Mutex
	seq    int
	subs   map[int]*subscriber
	closed bool
}

// NewBus creates an event bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a handler and returns its unsubscribe function. The
// handler runs on a dedicated goroutine, one event at a time.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.seq
	b.seq++
	sub := &subscriber{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case ev := <-sub.ch:
				h(ev)
			case <-sub.done:
				return
			}
		}
	}()

	return func() { b.drop(id) }
}

// Publish hands the event to every current subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber buffer full, it misses this one.
		}
	}
}

// Close stops every subscriber goroutine. Events still queued for a
// subscriber are discarded. Publish and Subscribe become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.done)
	}
}

func (b *Bus) drop(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.done)
	}
}
