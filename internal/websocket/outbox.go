package websocket

import "sync"

// Outbox is an unbounded FIFO of outbound messages with a single consumer.
// Push never blocks, so it is safe to call while holding other locks.
type Outbox struct {
	mu     sync.Mutex
	queue  []interface{}
	notify chan struct{}
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// Push appends v and wakes the consumer.
func (o *Outbox) Push(v interface{}) {
	o.mu.Lock()
	o.queue = append(o.queue, v)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Ready fires after one or more Push calls.
func (o *Outbox) Ready() <-chan struct{} {
	return o.notify
}

// Drain removes and returns everything queued, oldest first.
func (o *Outbox) Drain() []interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.queue
	o.queue = nil
	return out
}
