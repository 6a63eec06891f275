package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
	"github.com/aerodesk/aerodesk/internal/notification"
)

const slowQueryThreshold = 200 * time.Millisecond

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(path string, log logger.Logger) (*gorm.DB, error) {
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_db_dir").
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers anyway; one connection also keeps :memory: alive.
	sqlDB.SetMaxOpenConns(1)

	if path != MemoryDSN {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, errors.New(err).
					Component("datastore").
					Category(errors.CategoryDatabase).
					Context("pragma", pragma).
					Build()
			}
		}
	}
	return db, nil
}

// MySQLDSN builds the go-sql-driver DSN for settings.
func MySQLDSN(settings conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		settings.Username, settings.Password, settings.Host, settings.Port, settings.Database)
}

// OpenMySQL connects to MySQL.
func OpenMySQL(settings conf.MySQLSettings, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(MySQLDSN(settings)), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("host", settings.Host).
			Context("database", settings.Database).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// NewStore builds the notification store selected by settings. The returned
// close function releases database connections and is never nil.
func NewStore(settings conf.StoreSettings, log logger.Logger) (notification.Store, func() error, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}
	noop := func() error { return nil }

	switch settings.Type {
	case conf.StoreMemory:
		return notification.NewInMemoryStore(), noop, nil

	case conf.StoreFile, "":
		store, err := notification.NewFileStore(settings.Dir, settings.Key)
		if err != nil {
			return nil, noop, err
		}
		log.Info("using file store", logger.String("path", store.Path()))
		return store, noop, nil

	case conf.StoreSQLite, conf.StoreMySQL:
		var (
			db  *gorm.DB
			err error
		)
		if settings.Type == conf.StoreSQLite {
			db, err = OpenSQLite(settings.SQLite.Path, log)
		} else {
			db, err = OpenMySQL(settings.MySQL, log)
		}
		if err != nil {
			return nil, noop, err
		}
		store, err := NewDocumentStore(db, settings.Key, log)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, noop, err
		}
		log.Info("using database store",
			logger.String("type", settings.Type),
			logger.String("key", store.Key()))
		return store, store.Close, nil

	default:
		return nil, noop, errors.Newf("unknown store type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
