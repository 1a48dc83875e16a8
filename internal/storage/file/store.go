// Package file implements storage.BlobStore on the local filesystem. Each
// document is stored at <root>/<namespace>/<key>.json and replaced atomically
// through a temporary file and rename.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scrypster/thinkgraph/internal/storage"
)

const ext = ".json"

// Store is a filesystem-backed BlobStore.
type Store struct {
	root string
}

var _ storage.BlobStore = (*Store)(nil)

// New creates the root directory if needed and returns a Store rooted there.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: file store root is required", storage.ErrInvalidInput)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("file: create root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store writes under.
func (s *Store) Root() string {
	return s.root
}

// Put writes data to a temporary file in the namespace directory and renames
// it over the target so readers never observe a partial document.
func (s *Store) Put(ctx context.Context, namespace, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateKey(namespace, key); err != nil {
		return err
	}

	dir := filepath.Join(s.root, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file: create namespace dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("file: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file: write %s/%s: %w", namespace, key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file: sync %s/%s: %w", namespace, key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("file: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(namespace, key)); err != nil {
		cleanup()
		return fmt.Errorf("file: rename into place: %w", err)
	}
	return nil
}

// Get reads the document at (namespace, key).
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateKey(namespace, key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file: read %s/%s: %w", namespace, key, err)
	}
	return data, nil
}

// List returns the .json documents in the namespace directory.
func (s *Store) List(ctx context.Context, namespace string) ([]storage.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return []storage.BlobInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: list %s: %w", namespace, err)
	}

	infos := make([]storage.BlobInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		infos = append(infos, storage.BlobInfo{
			Key:     strings.TrimSuffix(name, ext),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Close is a no-op for the filesystem store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) path(namespace, key string) string {
	return filepath.Join(s.root, namespace, key+ext)
}
