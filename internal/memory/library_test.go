package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/thinkgraph/internal/memory"
	"github.com/scrypster/thinkgraph/internal/storage"
	"github.com/scrypster/thinkgraph/pkg/types"
)

func TestCreateLibrary(t *testing.T) {
	blobs := newBlobs(t)
	s := newStore(t, blobs)
	ctx := context.Background()

	require.NoError(t, s.CreateLibrary(ctx, "project-a"))
	_, err := blobs.Get(ctx, storage.NamespaceLibraries, "project-a")
	require.NoError(t, err, "CreateLibrary must write the document before returning")

	assert.Equal(t, types.DefaultLibrary, s.CurrentLibrary().Name, "create must not switch")

	err = s.CreateLibrary(ctx, "project-a")
	assert.ErrorIs(t, err, memory.ErrLibraryExists)

	err = s.CreateLibrary(ctx, types.DefaultLibrary)
	assert.ErrorIs(t, err, memory.ErrLibraryExists)
}

func TestCreateLibrary_InvalidNames(t *testing.T) {
	s := newStore(t, newBlobs(t))
	for _, name := range []string{"proj A", "", "../up", "a.b", "名前"} {
		err := s.CreateLibrary(context.Background(), name)
		assert.ErrorIs(t, err, memory.ErrInvalidLibraryName, "name %q", name)
	}
}

func TestListLibraries(t *testing.T) {
	s := newStore(t, newBlobs(t))
	ctx := context.Background()

	s.AddNode("one", types.KindThought, nil)
	s.AddNode("two", types.KindThought, nil)
	require.NoError(t, s.CreateLibrary(ctx, "archive"))

	libs, err := s.ListLibraries(ctx)
	require.NoError(t, err)
	require.Len(t, libs, 2)

	assert.Equal(t, "archive", libs[0].Name)
	assert.Equal(t, 0, libs[0].NodeCount)
	assert.False(t, libs[0].Current)
	assert.False(t, libs[0].LastModified.IsZero())

	assert.Equal(t, types.DefaultLibrary, libs[1].Name)
	assert.Equal(t, 2, libs[1].NodeCount)
	assert.True(t, libs[1].Current)
}

// TestListLibraries_CurrentBeforeFirstWrite verifies a fresh current library
// is listed even though nothing has been written for it yet.
func TestListLibraries_CurrentBeforeFirstWrite(t *testing.T) {
	s := newStore(t, newBlobs(t))

	libs, err := s.ListLibraries(context.Background())
	require.NoError(t, err)
	require.Len(t, libs, 1)
	assert.Equal(t, types.DefaultLibrary, libs[0].Name)
	assert.True(t, libs[0].Current)
}

func TestSwitchLibrary_PersistsAndIsolates(t *testing.T) {
	blobs := newBlobs(t)
	s := newStore(t, blobs)
	ctx := context.Background()

	a := s.AddNode("default library node", types.KindThought, nil)

	require.NoError(t, s.SwitchLibrary(ctx, "scratch"))
	assert.Equal(t, "scratch", s.CurrentLibrary().Name)
	assert.Equal(t, types.Stats{}, s.Stats())
	_, ok := s.GetNode(a)
	assert.False(t, ok)

	b := s.AddNode("scratch node", types.KindEvidence, nil)

	require.NoError(t, s.SwitchLibrary(ctx, types.DefaultLibrary))
	_, ok = s.GetNode(a)
	assert.True(t, ok)
	_, ok = s.GetNode(b)
	assert.False(t, ok)

	require.NoError(t, s.SwitchLibrary(ctx, "scratch"))
	_, ok = s.GetNode(b)
	assert.True(t, ok)

	libs, err := s.ListLibraries(ctx)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, l := range libs {
		counts[l.Name] = l.NodeCount
	}
	assert.Equal(t, map[string]int{types.DefaultLibrary: 1, "scratch": 1}, counts)
}

func TestSwitchLibrary_SameIsNoop(t *testing.T) {
	s := newStore(t, newBlobs(t))
	id := s.AddNode("x", types.KindThought, nil)

	require.NoError(t, s.SwitchLibrary(context.Background(), types.DefaultLibrary))
	_, ok := s.GetNode(id)
	assert.True(t, ok)
}

func TestSwitchLibrary_InvalidName(t *testing.T) {
	s := newStore(t, newBlobs(t))
	err := s.SwitchLibrary(context.Background(), "bad name")
	assert.ErrorIs(t, err, memory.ErrInvalidLibraryName)
	assert.Equal(t, types.DefaultLibrary, s.CurrentLibrary().Name)
}

func TestCurrentLibrary(t *testing.T) {
	s := newStore(t, newBlobs(t))
	a := s.AddNode("a", types.KindThought, nil)
	b := s.AddNode("b", types.KindThought, nil)
	s.ConnectNodes(a, b)
	_, err := s.CreateSession(context.Background(), "g", "")
	require.NoError(t, err)

	info := s.CurrentLibrary()
	assert.Equal(t, types.DefaultLibrary, info.Name)
	assert.Equal(t, types.Stats{Nodes: 2, Sessions: 1, Connections: 1}, info.Stats)
}

func TestNew_RejectsBadLibrary(t *testing.T) {
	_, err := memory.New(context.Background(), newBlobs(t), "no spaces allowed")
	assert.ErrorIs(t, err, memory.ErrInvalidLibraryName)
}
