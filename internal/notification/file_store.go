package notification

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aerodesk/aerodesk/internal/errors"
)

const (
	storeDirPermissions  = 0o750
	storeFilePermissions = 0o640
)

// FileStore keeps the collection as a JSON file named after the store key.
// Writes go through a temp file and a rename, so a reader sees either the
// previous collection or the new one.
type FileStore struct {
	path string
	mu   sync.Mutex
	// known is the digest of the content this store last wrote or observed.
	known [sha256.Size]byte
}

// NewFileStore creates a store at <dir>/<key>.json, creating dir if needed.
func NewFileStore(dir, key string) (*FileStore, error) {
	if key == "" {
		key = DefaultStoreKey
	}
	if err := os.MkdirAll(dir, storeDirPermissions); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryFileIO).
			Context("operation", "create_store_dir").
			Build()
	}
	return &FileStore{path: filepath.Join(dir, sanitizeKey(key)+".json")}, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// ListAll reads the collection. A missing file is an empty collection.
func (s *FileStore) ListAll(_ context.Context) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []*Notification{}, nil
	}
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryFileIO).
			Context("operation", "read_store").
			Build()
	}
	return DecodeCollection(data)
}

// ReplaceAll writes the whole collection atomically
func (s *FileStore) ReplaceAll(_ context.Context, notifications []*Notification) error {
	data, err := EncodeCollection(notifications)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryFileIO).
			Context("operation", "write_store").
			Build()
	}
	s.known = sha256.Sum256(data)
	return nil
}

// observe reports whether the file now holds content this store neither
// wrote nor observed before. A missing file is not a change.
func (s *FileStore) observe() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.New(err).
			Component("notification").
			Category(errors.CategoryFileIO).
			Context("operation", "observe_store").
			Build()
	}
	sum := sha256.Sum256(data)
	if sum == s.known {
		return false, nil
	}
	s.known = sum
	return true, nil
}

func writeFileAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing temporary file: %w", err)
	}
	if err := tempFile.Chmod(storeFilePermissions); err != nil {
		tempFile.Close()
		return fmt.Errorf("error setting file mode: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("error replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sanitizeKey maps a store key to a safe file name.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
