package notification

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedFileNode is one process-like participant: its own store handle,
// channel, service and watcher over a directory shared with others.
type sharedFileNode struct {
	store   *FileStore
	service *Service
	signals atomic.Int32
}

func newSharedFileNode(t *testing.T, dir string) *sharedFileNode {
	t.Helper()

	store, err := NewFileStore(dir, "shared")
	require.NoError(t, err)
	channel := NewLocalChannel()
	node := &sharedFileNode{
		store: store,
		service: NewService(&ServiceConfig{
			Store:    store,
			Channel:  channel,
			Language: "en",
			Logger:   quietLogger(),
		}),
	}
	unsubscribe := channel.Subscribe(func() { node.signals.Add(1) })
	t.Cleanup(unsubscribe)

	watcher := NewFileWatcher(store, channel, quietLogger())
	require.NoError(t, watcher.Start(context.Background()))
	t.Cleanup(watcher.Stop)
	return node
}

func TestFileWatcherSignalsChangesFromOtherWriters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := newSharedFileNode(t, dir)
	b := newSharedFileNode(t, dir)

	created := mustCreate(t, a.service, emergencyRequest("AF123", SubTypeLandingGear))

	require.Eventually(t, func() bool { return b.signals.Load() >= 1 },
		5*time.Second, 10*time.Millisecond, "second writer never saw the change")
	got, err := b.service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	assert.Never(t, func() bool { return a.signals.Load() > 1 },
		300*time.Millisecond, 20*time.Millisecond, "own write was signalled twice")

	seenByA := a.signals.Load()
	_, err = b.service.Acknowledge(context.Background(), created.ID, "Alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.signals.Load() > seenByA },
		5*time.Second, 10*time.Millisecond, "first writer never saw the acknowledgement")
}

func TestFileWatcherIgnoresExistingContentAndOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	seed, err := NewFileStore(dir, "shared")
	require.NoError(t, err)
	require.NoError(t, seed.ReplaceAll(context.Background(),
		[]*Notification{{ID: "notif_1", Status: StatusPending}}))

	node := newSharedFileNode(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.json"), []byte("[]"), 0o600))
	assert.Never(t, func() bool { return node.signals.Load() > 0 },
		300*time.Millisecond, 20*time.Millisecond)
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	w := NewFileWatcher(store, NewLocalChannel(), quietLogger())

	w.Stop()
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
