// Package blob stores raw uploaded document bytes on the local filesystem.
package blob

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// Store writes and reads raw document files under a base directory.
// Files are keyed by document ID; the original file name is kept in the
// metadata store, not here.
type Store struct {
	dir string
}

// New creates a filesystem blob store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob: empty directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes content for a document and returns the storage path.
// The write goes through a temp file and rename so readers never see a
// partial file.
func (s *Store) Save(documentID string, content []byte) (string, error) {
	path := s.path(documentID)

	tmp, err := os.CreateTemp(s.dir, documentID+".*")
	if err != nil {
		return "", fmt.Errorf("blob: create temp for %s: %w", documentID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("blob: write %s: %w", documentID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("blob: close %s: %w", documentID, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("blob: rename %s: %w", documentID, err)
	}
	return path, nil
}

// Load returns the stored bytes for a document.
func (s *Store) Load(documentID string) ([]byte, error) {
	content, err := os.ReadFile(s.path(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob: %s: %w", documentID, domain.ErrFetchFailed)
		}
		return nil, fmt.Errorf("blob: read %s: %v: %w", documentID, err, domain.ErrFetchFailed)
	}
	return content, nil
}

// Delete removes the stored bytes for a document. Missing files are not an error.
func (s *Store) Delete(documentID string) error {
	if err := os.Remove(s.path(documentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: delete %s: %w", documentID, err)
	}
	return nil
}

func (s *Store) path(documentID string) string {
	return filepath.Join(s.dir, documentID)
}
