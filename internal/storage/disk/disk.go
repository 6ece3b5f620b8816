// Package disk persists uploaded media bytes on the local filesystem.
package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sultanproperti/property-backend/internal/domain/models"
)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}

	return &Store{dir: dir}, nil
}

// Save writes data under a freshly generated name and returns the path used.
// The name is derived from a new UUID plus the upload's extension, so
// concurrent uploads sharing a filename never collide. The bytes are fully
// written and synced before the path is returned; a failed write leaves no
// file behind.
func (s *Store) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(s.dir, uuid.New().String()+normalizedExt(filename))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to place %s: %w", path, err)
	}

	return path, nil
}

// MediaKind classifies a file by its extension: .mp4 and .mov are video,
// everything else is image. The comparison ignores case.
func MediaKind(filename string) string {
	switch normalizedExt(filename) {
	case ".mp4", ".mov":
		return models.MediaKindVideo
	default:
		return models.MediaKindImage
	}
}

func normalizedExt(filename string) string {
	return strings.ToLower(filepath.Ext(filepath.Base(filename)))
}
