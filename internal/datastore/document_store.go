// Package datastore persists the notification collection in a relational
// database through GORM. The whole collection is one JSON document per store
// key, so every write replaces it atomically.
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/notification"
)

// Document is one stored collection.
type Document struct {
	Key       string    `gorm:"column:doc_key;primaryKey;size:191"`
	Value     string    `gorm:"column:value;type:mediumtext;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName implements gorm's tabler.
func (Document) TableName() string {
	return "notification_documents"
}

// DocumentStore implements notification.Store on top of a GORM connection.
type DocumentStore struct {
	db     *gorm.DB
	key    string
	logger logger.Logger
}

// NewDocumentStore migrates the documents table and returns a store for key.
func NewDocumentStore(db *gorm.DB, key string, log logger.Logger) (*DocumentStore, error) {
	if key == "" {
		key = notification.DefaultStoreKey
	}
	if log == nil {
		log = logger.Global().Module("datastore")
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}
	return &DocumentStore{db: db, key: key, logger: log}, nil
}

// Key returns the store key this store reads and writes.
func (s *DocumentStore) Key() string {
	return s.key
}

// ListAll implements notification.Store. A missing row is an empty collection.
func (s *DocumentStore) ListAll(ctx context.Context) ([]*notification.Notification, error) {
	start := time.Now()
	var doc Document
	err := s.db.WithContext(ctx).Where("doc_key = ?", s.key).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []*notification.Notification{}, nil
	}
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Timing("list_all", time.Since(start)).
			Context("key", s.key).
			Build()
	}
	return notification.DecodeCollection([]byte(doc.Value))
}

// ReplaceAll implements notification.Store with an upsert inside a transaction.
func (s *DocumentStore) ReplaceAll(ctx context.Context, notifications []*notification.Notification) error {
	data, err := notification.EncodeCollection(notifications)
	if err != nil {
		return err
	}
	start := time.Now()
	doc := Document{Key: s.key, Value: string(data), UpdatedAt: start.UTC()}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "doc_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&doc).Error
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Timing("replace_all", time.Since(start)).
			Context("key", s.key).
			Context("count", len(notifications)).
			Build()
	}
	s.logger.Trace("collection replaced",
		logger.String("key", s.key),
		logger.Int("count", len(notifications)))
	return nil
}

// Ping checks the database connection.
func (s *DocumentStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *DocumentStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
