package datastore

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/notification"
)

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func newMemoryStore(t *testing.T, key string) *DocumentStore {
	t.Helper()
	db, err := OpenSQLite(MemoryDSN, quietLogger())
	require.NoError(t, err)
	store, err := NewDocumentStore(db, key, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleNotifications() []*notification.Notification {
	catalog := notification.NewCatalog("en")
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return []*notification.Notification{
		notification.Build(&notification.CreateRequest{
			FlightID: "f1", FlightNumber: "AF123", Airline: "Air France",
			Captain: "Jeanne", CaptainID: "c1", Route: "CDG → SGN",
			Type: notification.TypeEmergency, SubType: notification.SubTypeLandingGear,
		}, now, catalog),
		notification.Build(&notification.CreateRequest{
			FlightID: "f2", FlightNumber: "VN456", Airline: "Vietnam Airlines",
			Captain: "Minh", CaptainID: "c2", Route: "HAN → SGN",
			Type: notification.TypeGroundCrewRequest, SubType: notification.SubTypePushback,
		}, now, catalog),
	}
}

func TestDocumentStoreEmpty(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(t, "")
	assert.Equal(t, notification.DefaultStoreKey, store.Key())

	got, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDocumentStoreReplaceAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(t, "tower_a")
	collection := sampleNotifications()

	require.NoError(t, store.ReplaceAll(ctx, collection))
	got, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, collection[0].ID, got[0].ID)
	assert.Equal(t, []notification.Panel{notification.PanelGroundCrew}, got[1].TargetPanels)

	// Second write updates the same row.
	require.NoError(t, store.ReplaceAll(ctx, collection[1:]))
	got, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, collection[1].ID, got[0].ID)

	var rows int64
	require.NoError(t, store.db.Model(&Document{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestDocumentStoreKeysArePartitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newMemoryStore(t, "tower_a")
	b, err := NewDocumentStore(a.db, "tower_b", quietLogger())
	require.NoError(t, err)

	collection := sampleNotifications()
	require.NoError(t, a.ReplaceAll(ctx, collection))
	require.NoError(t, b.ReplaceAll(ctx, collection[:1]))

	gotA, err := a.ListAll(ctx)
	require.NoError(t, err)
	gotB, err := b.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, gotA, 2)
	assert.Len(t, gotB, 1)
}

func TestDocumentStoreCorruptValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(t, "broken")
	require.NoError(t, store.db.Create(&Document{Key: "broken", Value: "{nope", UpdatedAt: time.Now()}).Error)

	_, err := store.ListAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestDocumentStoreWithService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(t, "")
	svc := notification.NewService(&notification.ServiceConfig{
		Store:    store,
		Language: "en",
		Logger:   quietLogger(),
	})

	n, err := svc.Create(ctx, &notification.CreateRequest{
		FlightID: "f1", FlightNumber: "AF123", Airline: "Air France",
		Captain: "Jeanne", CaptainID: "c1", Route: "CDG → SGN",
		Type: notification.TypeEmergency, SubType: notification.SubTypeWingControl,
	})
	require.NoError(t, err)
	_, err = svc.Acknowledge(ctx, n.ID, "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.RemoveFromPanel(ctx, n.ID, notification.PanelATC))

	stored, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, notification.StatusAcknowledged, stored[0].Status)
	assert.Equal(t, []notification.Panel{notification.PanelGroundCrew}, stored[0].TargetPanels)
}

func TestDocumentStorePingAndClose(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(MemoryDSN, quietLogger())
	require.NoError(t, err)
	store, err := NewDocumentStore(db, "", quietLogger())
	require.NoError(t, err)

	svc := notification.NewService(&notification.ServiceConfig{
		Store:    store,
		Language: "en",
		Logger:   quietLogger(),
	})

	ctx := context.Background()
	require.NoError(t, svc.Ping(ctx))
	require.NoError(t, store.Close())

	err = svc.Ping(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))

	err = store.ReplaceAll(ctx, sampleNotifications())
	require.Error(t, err)
	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "replace_all", ee.GetContext()["operation"])
	assert.Contains(t, ee.GetContext(), "duration_ms")
}

func TestOpenSQLiteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "aerodesk.db")
	db, err := OpenSQLite(path, quietLogger())
	require.NoError(t, err)
	store, err := NewDocumentStore(db, "", quietLogger())
	require.NoError(t, err)
	defer store.Close()

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name     string
		settings conf.StoreSettings
		check    func(t *testing.T, s notification.Store)
	}{
		{"memory", conf.StoreSettings{Type: conf.StoreMemory}, func(t *testing.T, s notification.Store) {
			assert.IsType(t, &notification.InMemoryStore{}, s)
		}},
		{"file", conf.StoreSettings{Type: conf.StoreFile, Dir: dir, Key: "k"}, func(t *testing.T, s notification.Store) {
			fs, ok := s.(*notification.FileStore)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(dir, "k.json"), fs.Path())
		}},
		{"sqlite", conf.StoreSettings{Type: conf.StoreSQLite, Key: "k", SQLite: conf.SQLiteSettings{Path: MemoryDSN}}, func(t *testing.T, s notification.Store) {
			ds, ok := s.(*DocumentStore)
			require.True(t, ok)
			assert.Equal(t, "k", ds.Key())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, closeStore, err := NewStore(tt.settings, quietLogger())
			require.NoError(t, err)
			t.Cleanup(func() { _ = closeStore() })
			tt.check(t, store)
		})
	}

	_, closeStore, err := NewStore(conf.StoreSettings{Type: "redis"}, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.NoError(t, closeStore())
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := MySQLDSN(conf.MySQLSettings{Host: "db", Port: "3306", Username: "u", Password: "p", Database: "aero"})
	assert.Equal(t, "u:p@tcp(db:3306)/aero?charset=utf8mb4&parseTime=True&loc=UTC", dsn)
}
