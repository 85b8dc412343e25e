package trainer

import (
	"sync"

	"github.com/conorfennell/knolbox/internal/domain"
)

// Events fans out domain events to subscribers. Each subscriber gets a
// buffered channel; publishing never blocks and drops events for
// subscribers whose buffer is full.
type Events struct {
	mu          sync.RWMutex
	subscribers []chan domain.Event
	buffer      int
}

// NewEvents creates a bus whose subscriber channels hold buffer events.
func NewEvents(buffer int) *Events {
	if buffer <= 0 {
		buffer = 256
	}
	return &Events{buffer: buffer}
}

// Subscribe creates a new channel receiving every published event.
func (e *Events) Subscribe() <-chan domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan domain.Event, e.buffer)
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// Unsubscribe removes a channel returned by Subscribe and closes it.
func (e *Events) Unsubscribe(sub <-chan domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, ch := range e.subscribers {
		if ch == sub {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends events to all subscribers.
func (e *Events) Publish(events ...domain.Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ev := range events {
		for _, ch := range e.subscribers {
			select {
			case ch <- ev:
			default:
				// Drop if subscriber buffer is full
			}
		}
	}
}
