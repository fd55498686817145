package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store retains original uploaded files on local disk for forensic review.
// Files are kept even when parsing fails; regulatory documents are never
// deleted by the application.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Save writes data under a date-sharded, uuid-named path derived from the
// original filename's extension and returns the path relative to the store
// root. The original name is not trusted for anything but its extension.
func (s *Store) Save(data []byte, originalFilename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if ext == "" || len(ext) > 8 {
		ext = ".xml"
	}
	rel := filepath.Join(
		time.Now().UTC().Format("2006/01/02"),
		uuid.NewString()+ext,
	)
	abs := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return rel, nil
}

// Read returns the stored bytes for a previously returned relative path.
// Paths escaping the store root are rejected.
func (s *Store) Read(rel string) ([]byte, error) {
	abs := filepath.Join(s.baseDir, filepath.Clean("/"+rel))
	if !strings.HasPrefix(abs, filepath.Clean(s.baseDir)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("invalid storage path %q", rel)
	}
	return os.ReadFile(abs)
}
