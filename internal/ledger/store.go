package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/upload"
)

// entryFileExtension is the file extension used for ledger entries.
const entryFileExtension = ".json"

// Common ledger errors.
var (
	ErrEntryNotFound  = errors.New("ledger entry not found")
	ErrEntryExpired   = errors.New("ledger entry expired")
	ErrInvalidKey     = errors.New("ledger key cannot be empty")
	ErrLedgerDisabled = errors.New("ledger is disabled")
	ErrNoReceipt      = errors.New("item has no stash receipt")
	ErrInvalidDigest  = errors.New("ledger entry has an invalid digest")
)

// FileStore keeps ledger entries as JSON files in one directory.
// Thread-safe for concurrent access.
type FileStore struct {
	// directory is the ledger directory path.
	directory string

	// enabled controls whether recording is active.
	enabled bool

	// mu protects concurrent access to file operations.
	mu sync.RWMutex
}

// NewFileStore creates a ledger store. The directory is created if it
// doesn't exist.
func NewFileStore(directory string, enabled bool) (*FileStore, error) {
	if !enabled {
		return &FileStore{enabled: false}, nil
	}

	if directory == "" {
		return nil, errors.New("ledger directory cannot be empty")
	}

	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	return &FileStore{
		directory: directory,
		enabled:   true,
	}, nil
}

// Get retrieves an entry by object key.
// Returns ErrEntryNotFound if the entry doesn't exist and ErrEntryExpired,
// together with the entry, if its stash has expired.
func (s *FileStore) Get(key string) (*Entry, error) {
	if !s.enabled {
		return nil, ErrLedgerDisabled
	}
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := readEntry(s.keyToFilePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	if entry.IsExpired() {
		return entry, ErrEntryExpired
	}
	return entry, nil
}

// Put stores entry, overwriting any previous entry for the same key.
func (s *FileStore) Put(entry *Entry) error {
	if !s.enabled {
		return ErrLedgerDisabled
	}
	if entry == nil || entry.Key == "" {
		return ErrInvalidKey
	}
	if entry.Digest != "" {
		if err := entry.Digest.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidDigest, entry.Key, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	filePath := s.keyToFilePath(entry.Key)

	// Write to temporary file first, then rename for atomicity
	tempPath := filePath + ".tmp"
	if writeErr := os.WriteFile(tempPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write ledger file: %w", writeErr)
	}
	if renameErr := os.Rename(tempPath, filePath); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename ledger file: %w", renameErr)
	}
	return nil
}

// Record stores the receipt of a stashed item.
func (s *FileStore) Record(item *upload.Item) error {
	entry, err := NewEntry(item)
	if err != nil {
		return err
	}
	return s.Put(entry)
}

// Operation adapts Record for the batch scheduler.
func (s *FileStore) Operation(item *upload.Item) batch.Operation {
	return func(context.Context) error {
		return s.Record(item)
	}
}

// Delete removes an entry by key. Missing entries are not an error.
func (s *FileStore) Delete(key string) error {
	if !s.enabled {
		return ErrLedgerDisabled
	}
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.keyToFilePath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete ledger file: %w", err)
	}
	return nil
}

// List returns every readable entry, expired ones included, ordered by
// stash time. Unreadable files are skipped.
func (s *FileStore) List() ([]*Entry, error) {
	if !s.enabled {
		return nil, ErrLedgerDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.entryFiles()
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(files))
	for _, path := range files {
		entry, readErr := readEntry(path)
		if readErr != nil {
			continue
		}
		entries = append(entries, entry)
	}
	slices.SortStableFunc(entries, func(a, b *Entry) int {
		return a.StashedAt.Compare(b.StashedAt)
	})
	return entries, nil
}

// CleanupExpired removes expired entries and returns how many were removed.
func (s *FileStore) CleanupExpired() (int, error) {
	if !s.enabled {
		return 0, ErrLedgerDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.entryFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		entry, readErr := readEntry(path)
		if readErr != nil {
			continue // Skip invalid entries
		}
		if entry.IsExpired() {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Count returns the number of entries, expired ones included.
func (s *FileStore) Count() (int, error) {
	if !s.enabled {
		return 0, ErrLedgerDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.entryFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// IsEnabled returns true if recording is enabled.
func (s *FileStore) IsEnabled() bool {
	return s.enabled
}

// Directory returns the ledger directory path.
func (s *FileStore) Directory() string {
	return s.directory
}

func (s *FileStore) entryFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger directory: %w", err)
	}
	var files []string
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != entryFileExtension {
			continue
		}
		files = append(files, filepath.Join(s.directory, de.Name()))
	}
	return files, nil
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if unmarshalErr := json.Unmarshal(data, &entry); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger entry: %w", unmarshalErr)
	}
	return &entry, nil
}

// keyToFilePath converts an object key to a file path.
// The key is sanitized to ensure filesystem safety.
func (s *FileStore) keyToFilePath(key string) string {
	safeKey := strings.ReplaceAll(key, "/", "_")
	safeKey = strings.ReplaceAll(safeKey, "\\", "_")
	safeKey = strings.ReplaceAll(safeKey, ":", "_")
	return filepath.Join(s.directory, safeKey+entryFileExtension)
}
