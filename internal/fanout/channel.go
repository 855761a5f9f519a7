package fanout

import (
	"errors"
	"sync"

	"geyserRelay/internal/event"
)

// ErrClosed is returned by Send once the channel can no longer accept
// events, either because the producer closed it or the consumer stopped.
var ErrClosed = errors.New("channel closed")

// Channel is an unbounded FIFO pipe carrying events from many producers to
// exactly one consumer. Send never blocks; Recv blocks until an event is
// available or the producer side is closed. After Close, Recv drains the
// remaining queue and then reports end-of-stream.
type Channel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []event.Event
	closed  bool
	stopped bool
}

func NewChannel() *Channel {
	c := &Channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send enqueues an event without blocking. It fails with ErrClosed if the
// producer side was closed or the consumer has stopped.
func (c *Channel) Send(ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.stopped {
		return ErrClosed
	}
	c.queue = append(c.queue, ev)
	c.cond.Signal()
	return nil
}

// Recv returns the next event in send order. The second result is false
// once the channel is closed and fully drained.
func (c *Channel) Recv() (event.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed && !c.stopped {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return nil, false
	}
	ev := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return ev, true
}

// Close marks the producer side as done. Queued events remain readable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}

// Closed reports whether the producer side has closed the channel.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Stop marks the consumer as gone and discards queued events. Subsequent
// sends fail with ErrClosed so dispatchers can detect the dead consumer.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.queue = nil
	c.cond.Broadcast()
}

// Len returns the number of queued events.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
