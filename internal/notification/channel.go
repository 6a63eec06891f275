package notification

import (
	"context"
	"sync"
)

// Channel tells subscribers that the store changed. It carries no payload;
// subscribers re-read the collection or a panel projection themselves.
type Channel interface {
	Publish(ctx context.Context)
	// Subscribe registers callback and returns a function that removes it.
	Subscribe(callback func()) (unsubscribe func())
}

// LocalChannel delivers signals within the process. Callbacks run
// synchronously on the publishing goroutine in no particular order, so they
// must return quickly.
type LocalChannel struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[uint64]func()
	onChange    func(subscribers int)
}

// NewLocalChannel creates an in-process channel
func NewLocalChannel() *LocalChannel {
	return &LocalChannel{subscribers: make(map[uint64]func())}
}

// OnSubscriberChange registers a hook called with the subscriber count
// whenever it changes. Used for the subscribers gauge.
func (c *LocalChannel) OnSubscriberChange(hook func(subscribers int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = hook
}

// Publish invokes every subscribed callback
func (c *LocalChannel) Publish(_ context.Context) {
	c.mu.RLock()
	callbacks := make([]func(), 0, len(c.subscribers))
	for _, cb := range c.subscribers {
		callbacks = append(callbacks, cb)
	}
	c.mu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Subscribe registers callback. The returned unsubscribe is idempotent.
func (c *LocalChannel) Subscribe(callback func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = callback
	count, hook := len(c.subscribers), c.onChange
	c.mu.Unlock()

	if hook != nil {
		hook(count)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			count, hook := len(c.subscribers), c.onChange
			c.mu.Unlock()
			if hook != nil {
				hook(count)
			}
		})
	}
}

// SubscriberCount returns the number of registered callbacks
func (c *LocalChannel) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}

// Signals adapts a Channel to a Go channel for consumers that select on it.
// Signals coalesce: while one is pending, further publishes are dropped.
// The returned channel is closed once ctx is done.
func Signals(ctx context.Context, ch Channel) <-chan struct{} {
	out := make(chan struct{}, 1)
	var (
		mu     sync.Mutex
		closed bool
	)
	unsubscribe := ch.Subscribe(func() {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- struct{}{}:
		default:
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		// A publisher may still hold the callback from an earlier snapshot.
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out
}
