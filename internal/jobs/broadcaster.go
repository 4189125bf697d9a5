package jobs

import "sync"

// subscriberBuffer bounds how far a slow subscriber may lag before
// snapshots are dropped for it.
const subscriberBuffer = 16

// Broadcaster fans job snapshots out to every connected observer.
// Delivery is best-effort: there is no replay for late subscribers, and a
// snapshot is dropped for a subscriber whose buffer is full. Snapshots for
// a single job are published sequentially by its runner, so each
// subscriber observes them in production order.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[chan Job]struct{}
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Job]struct{})}
}

// Subscribe registers a new observer channel.
func (b *Broadcaster) Subscribe() chan Job {
	ch := make(chan Job, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes and closes an observer channel.
func (b *Broadcaster) Unsubscribe(ch chan Job) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish delivers a job snapshot to all current subscribers.
func (b *Broadcaster) Publish(job Job) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- job:
		default:
			// Drop snapshot if subscriber is slow
		}
	}
}
