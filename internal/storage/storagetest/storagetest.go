// Package storagetest holds the behavioural test suite every storage.BlobStore
// backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/thinkgraph/internal/storage"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.BlobStore

// Run executes the BlobStore contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t, newStore)
		_, err := s.Get(context.Background(), storage.NamespaceLibraries, "nope")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		doc := []byte(`{"nodes":[],"sessions":[],"timestamp":1}`)

		require.NoError(t, s.Put(ctx, storage.NamespaceLibraries, "alpha", doc))
		got, err := s.Get(ctx, storage.NamespaceLibraries, "alpha")
		require.NoError(t, err)
		assert.Equal(t, doc, got)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, storage.NamespaceLibraries, "alpha", []byte("one")))
		require.NoError(t, s.Put(ctx, storage.NamespaceLibraries, "alpha", []byte("second")))

		got, err := s.Get(ctx, storage.NamespaceLibraries, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))

		infos, err := s.List(ctx, storage.NamespaceLibraries)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, int64(len("second")), infos[0].Size)
	})

	t.Run("NamespacesAreIsolated", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, storage.NamespaceLibraries, "shared", []byte("lib")))
		require.NoError(t, s.Put(ctx, storage.NamespaceSystemJSON, "shared", []byte("sys")))

		lib, err := s.Get(ctx, storage.NamespaceLibraries, "shared")
		require.NoError(t, err)
		sys, err := s.Get(ctx, storage.NamespaceSystemJSON, "shared")
		require.NoError(t, err)
		assert.Equal(t, "lib", string(lib))
		assert.Equal(t, "sys", string(sys))
	})

	t.Run("ListSortedWithMetadata", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		before := time.Now().Add(-time.Minute)

		for _, k := range []string{"charlie", "alpha", "bravo"} {
			require.NoError(t, s.Put(ctx, storage.NamespaceLibraries, k, []byte(k)))
		}

		infos, err := s.List(ctx, storage.NamespaceLibraries)
		require.NoError(t, err)
		require.Len(t, infos, 3)
		assert.Equal(t, "alpha", infos[0].Key)
		assert.Equal(t, "bravo", infos[1].Key)
		assert.Equal(t, "charlie", infos[2].Key)
		for _, info := range infos {
			assert.Equal(t, int64(len(info.Key)), info.Size)
			assert.True(t, info.ModTime.After(before), "mod time for %s", info.Key)
		}
	})

	t.Run("ListEmptyNamespace", func(t *testing.T) {
		s := open(t, newStore)
		infos, err := s.List(context.Background(), storage.NamespaceSystemJSON)
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("RejectsUnsafeKeys", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		for _, key := range []string{"", "../escape", "has space", "a/b"} {
			err := s.Put(ctx, storage.NamespaceLibraries, key, []byte("x"))
			assert.True(t, errors.Is(err, storage.ErrInvalidInput), "key %q: %v", key, err)
		}
	})
}

func open(t *testing.T, newStore Factory) storage.BlobStore {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
