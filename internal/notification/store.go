package notification

import (
	"context"
	"sync"
)

// DefaultStoreKey is the well-known key the whole collection lives under.
const DefaultStoreKey = "aero_notifications"

// Store persists the full notification collection as one value.
// ListAll returns the collection newest first; ReplaceAll overwrites it
// atomically so readers never observe a partial write.
type Store interface {
	ListAll(ctx context.Context) ([]*Notification, error)
	ReplaceAll(ctx context.Context, notifications []*Notification) error
}

// InMemoryStore is a process-local Store. It copies on the way in and out.
type InMemoryStore struct {
	mu            sync.RWMutex
	notifications []*Notification
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// ListAll returns a copy of the stored collection
func (s *InMemoryStore) ListAll(_ context.Context) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CloneAll(s.notifications), nil
}

// ReplaceAll swaps in a copy of notifications
func (s *InMemoryStore) ReplaceAll(_ context.Context, notifications []*Notification) error {
	next := CloneAll(notifications)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = next
	return nil
}
