package session

import (
	"sync"
	"time"
)

type EventType int

const (
	EventLoggedIn EventType = iota + 1
	EventRefreshed
	EventLoggedOut
	EventSessionExpired
)

func (t EventType) String() string {
	switch t {
	case EventLoggedIn:
		return "logged_in"
	case EventRefreshed:
		return "refreshed"
	case EventLoggedOut:
		return "logged_out"
	case EventSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Event describes a session lifecycle transition. Reason is set for EventSessionExpired.
type Event struct {
	Type   EventType
	Reason error
	At     time.Time
}

// Listener is invoked synchronously on the goroutine that caused the transition. It must not block.
type Listener func(Event)

type broker struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func newBroker() *broker {
	return &broker{listeners: make(map[int]Listener)}
}

func (b *broker) subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

func (b *broker) emit(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
