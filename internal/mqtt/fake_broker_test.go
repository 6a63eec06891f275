package mqtt

import (
	"context"
	"errors"
	"sync"
)

// fakeBroker routes messages between fakeClients in memory.
type fakeBroker struct {
	mu      sync.Mutex
	clients []*fakeClient
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{}
}

func (b *fakeBroker) client() *fakeClient {
	c := &fakeClient{broker: b, connected: true, handlers: make(map[string]MessageHandler)}
	b.mu.Lock()
	b.clients = append(b.clients, c)
	b.mu.Unlock()
	return c
}

func (b *fakeBroker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	clients := append([]*fakeClient(nil), b.clients...)
	b.mu.Unlock()
	for _, c := range clients {
		c.receive(topic, payload)
	}
}

type fakeClient struct {
	broker *fakeBroker

	mu        sync.Mutex
	connected bool
	handlers  map[string]MessageHandler
	published [][]byte
}

func (c *fakeClient) Connect(context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return errors.New("not connected")
	}
	c.published = append(c.published, payload)
	c.mu.Unlock()
	c.broker.deliver(topic, payload)
	return nil
}

func (c *fakeClient) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeClient) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func (c *fakeClient) receive(topic string, payload []byte) {
	c.mu.Lock()
	handler, ok := c.handlers[topic]
	connected := c.connected
	c.mu.Unlock()
	if ok && connected {
		handler(topic, payload)
	}
}
