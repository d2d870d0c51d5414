package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Kind categorizes an uploaded attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindVoice Kind = "voice"
)

// Store uploads attachment blobs before a message is appended. Uploads are
// not retried here; a failed upload aborts the send.
type Store interface {
	Upload(ctx context.Context, data []byte, kind Kind) (string, error)
}

// FSStore writes blobs under a local directory and returns URL paths served
// by the HTTP layer.
type FSStore struct {
	dir string
}

// NewFSStore prepares the backing directories.
func NewFSStore(dir string) (*FSStore, error) {
	for _, kind := range []Kind{KindImage, KindVoice} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("prepare blob dir: %w", err)
		}
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the root directory blobs are written under.
func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) Upload(ctx context.Context, data []byte, kind Kind) (string, error) {
	if kind != KindImage && kind != KindVoice {
		return "", fmt.Errorf("unsupported blob kind %q", kind)
	}
	name := uuid.NewString()
	path := filepath.Join(s.dir, string(kind), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return fmt.Sprintf("/blobs/%s/%s", kind, name), nil
}
