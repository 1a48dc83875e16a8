package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/storage"
	"github.com/scrypster/thinkgraph/pkg/types"
)

// CurrentInfo describes the current library.
type CurrentInfo struct {
	Name  string
	Stats types.Stats
}

// CurrentLibrary returns the current library's name and size.
func (s *Store) CurrentLibrary() CurrentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CurrentInfo{Name: s.library, Stats: s.state.stats()}
}

// CreateLibrary writes an empty document for name. It fails with
// ErrInvalidLibraryName for names outside [A-Za-z0-9_-] and with
// ErrLibraryExists when the name is current or already stored. The current
// library does not change.
func (s *Store) CreateLibrary(ctx context.Context, name string) error {
	if !types.IsValidName(name) {
		return ErrInvalidLibraryName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if name == s.library {
		return fmt.Errorf("%w: %s", ErrLibraryExists, name)
	}
	_, err := s.blobs.Get(ctx, storage.NamespaceLibraries, name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrLibraryExists, name)
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("memory: check library %s: %w", name, err)
	}

	data, err := newLibraryState().encode(s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("memory: encode empty library: %w", err)
	}
	// Through the writer so it stays the only goroutine writing libraries.
	s.writer.enqueue(writeJob{namespace: storage.NamespaceLibraries, key: name, data: data})
	if err := s.writer.flush(ctx); err != nil {
		return fmt.Errorf("memory: create library %s: %w", name, err)
	}
	if _, err := s.blobs.Get(ctx, storage.NamespaceLibraries, name); err != nil {
		return fmt.Errorf("memory: create library %s: %w", name, err)
	}

	s.logger.Info("memory: library created", zap.String("library", name))
	return nil
}

// ListLibraries returns every stored library plus the current one, sorted by
// name. Node counts for the current library come from memory; others are
// read from their documents, and unreadable documents report zero nodes.
func (s *Store) ListLibraries(ctx context.Context) ([]types.LibraryInfo, error) {
	s.mu.RLock()
	current := s.library
	currentNodes := len(s.state.nodes)
	s.mu.RUnlock()

	blobs, err := s.blobs.List(ctx, storage.NamespaceLibraries)
	if err != nil {
		return nil, fmt.Errorf("memory: list libraries: %w", err)
	}

	out := make([]types.LibraryInfo, 0, len(blobs)+1)
	sawCurrent := false
	for _, b := range blobs {
		info := types.LibraryInfo{Name: b.Key, LastModified: b.ModTime}
		if b.Key == current {
			sawCurrent = true
			info.Current = true
			info.NodeCount = currentNodes
		} else {
			info.NodeCount = s.storedNodeCount(ctx, b.Key)
		}
		out = append(out, info)
	}
	if !sawCurrent {
		out = append(out, types.LibraryInfo{
			Name:         current,
			NodeCount:    currentNodes,
			LastModified: time.Time{},
			Current:      true,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SwitchLibrary persists the current library, waits for the writer to drain,
// and loads name (empty when it has never been populated). Switching to the
// current library is a no-op.
func (s *Store) SwitchLibrary(ctx context.Context, name string) error {
	if !types.IsValidName(name) {
		return ErrInvalidLibraryName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchLocked(ctx, name)
}

// switchLocked does the work of SwitchLibrary. s.mu must be held.
func (s *Store) switchLocked(ctx context.Context, name string) error {
	if name == s.library {
		return nil
	}

	previous := s.library
	s.persistLocked()
	if err := s.writer.flush(ctx); err != nil {
		return fmt.Errorf("memory: persist %s before switch: %w", previous, err)
	}

	s.state = s.load(ctx, name)
	s.library = name
	s.observeLocked()

	s.logger.Info("memory: switched library",
		zap.String("from", previous),
		zap.String("to", name))
	return nil
}

func (s *Store) storedNodeCount(ctx context.Context, name string) int {
	data, err := s.blobs.Get(ctx, storage.NamespaceLibraries, name)
	if err != nil {
		return 0
	}
	st, err := decodeLibrary(data)
	if err != nil {
		s.logger.Warn("memory: corrupt library document", zap.String("library", name), zap.Error(err))
		return 0
	}
	return len(st.nodes)
}
