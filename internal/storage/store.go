// Package storage keeps uploaded and processed documents in a flat
// temporary directory. Files are keyed by a generated ID plus the original
// filename; nothing is persisted beyond explicit deletion or cleanup.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/logger"
)

// Store is a temp-directory file store. All methods are safe for concurrent
// use; the filesystem provides the synchronization.
type Store struct {
	dir string
	log *logger.Logger
}

// New creates the store directory if needed.
func New(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, log: log.WithComponent("storage")}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Save writes an uploaded file under a fresh ID and returns that ID.
func (s *Store) Save(filename string, data []byte) (string, error) {
	fileID := uuid.NewString()
	path := s.Path(fileID, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return fileID, nil
}

// SaveDecrypted writes the unlocked form of a stored file next to the
// original.
func (s *Store) SaveDecrypted(fileID, filename string, data []byte) error {
	if err := os.WriteFile(s.DecryptedPath(fileID, filename), data, 0o600); err != nil {
		return fmt.Errorf("save decrypted copy: %w", err)
	}
	return nil
}

// Path returns the on-disk location of an uploaded file.
func (s *Store) Path(fileID, filename string) string {
	return filepath.Join(s.dir, fileID+"_"+sanitize(filename))
}

// DecryptedPath returns the location of a file's unlocked copy.
func (s *Store) DecryptedPath(fileID, filename string) string {
	return filepath.Join(s.dir, fileID+"_decrypted_"+sanitize(filename))
}

// Read returns a stored file's contents, preferring the unlocked copy when
// one exists. The second return names the path that was read.
func (s *Store) Read(fileID, filename string) ([]byte, string, error) {
	for _, path := range []string{s.DecryptedPath(fileID, filename), s.Path(fileID, filename)} {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("read stored file: %w", err)
		}
	}
	return nil, "", os.ErrNotExist
}

// Delete removes a file and its unlocked copy. It reports whether anything
// was actually removed.
func (s *Store) Delete(fileID, filename string) bool {
	deleted := false
	for _, path := range []string{s.Path(fileID, filename), s.DecryptedPath(fileID, filename)} {
		if err := os.Remove(path); err == nil {
			deleted = true
		} else if !os.IsNotExist(err) {
			s.log.Warn("failed to delete stored file",
				zap.String("path", path),
				zap.Error(err))
		}
	}
	return deleted
}

// Cleanup removes every regular file in the store directory.
func (s *Store) Cleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("cleanup could not list store directory", zap.Error(err))
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("cleanup could not delete file",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("temporary files removed", zap.Int("count", removed))
	}
}

// sanitize strips any path components from a client-supplied filename.
func sanitize(filename string) string {
	base := filepath.Base(filepath.Clean(filename))
	if base == "." || base == string(filepath.Separator) {
		return "upload"
	}
	return strings.ReplaceAll(base, string(filepath.Separator), "_")
}
