// Package memory implements the associative memory store: reasoning nodes
// linked into an undirected graph, reasoning sessions, and named libraries
// that isolate one set of each from another.
//
// Every mutation runs under the store's write lock and, before releasing it,
// serializes the current library and hands the bytes to a single background
// writer. Persistence is best effort: write failures are logged and counted,
// never returned to the caller.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/relevance"
	"github.com/scrypster/thinkgraph/internal/storage"
	"github.com/scrypster/thinkgraph/pkg/types"
)

// MinRelevance is the score a node must exceed to be returned by QueryRelated.
const MinRelevance = 0.1

var (
	// ErrInvalidLibraryName indicates a library name outside [A-Za-z0-9_-].
	ErrInvalidLibraryName = errors.New("invalid library name: use only letters, numbers, underscores, and hyphens")

	// ErrLibraryExists indicates CreateLibrary was asked for a name in use.
	ErrLibraryExists = errors.New("library already exists")
)

// Observer receives store events. The metrics collector implements it.
type Observer interface {
	ObserveLibrary(library string, stats types.Stats)
	PersistenceFailed()
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScorer replaces the default word-overlap relevance scorer.
func WithScorer(sc relevance.Scorer) Option {
	return func(s *Store) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an Observer for size and failure events.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// Store is the in-process memory store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	library string
	state   *libraryState

	blobs    storage.BlobStore
	writer   *writer
	scorer   relevance.Scorer
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// New creates a store over blobs and loads library as the current library.
// A missing library document yields an empty store; a corrupt one is logged
// and also yields an empty store.
func New(ctx context.Context, blobs storage.BlobStore, library string, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("memory: blob store is required")
	}
	if library == "" {
		library = types.DefaultLibrary
	}
	if !types.IsValidName(library) {
		return nil, fmt.Errorf("memory: %w: %q", ErrInvalidLibraryName, library)
	}

	s := &Store{
		library: library,
		blobs:   blobs,
		scorer:  relevance.WordOverlap{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = newWriter(blobs, s.logger, s.persistenceFailed)

	s.state = s.load(ctx, library)
	s.observe()
	return s, nil
}

// AddNode records a node and returns its id. The node's confidence is taken
// from metadata["confidence"] when it is numeric, clamped to [0, 1], and
// defaults to 0.5 otherwise. Unknown kinds are stored as thoughts.
func (s *Store) AddNode(content string, kind types.NodeKind, metadata map[string]interface{}) string {
	if !types.IsValidNodeKind(kind) {
		kind = types.KindThought
	}
	meta := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := s.uniqueID("node", now, func(id string) bool { _, ok := s.state.nodes[id]; return ok })
	s.state.nodes[id] = &types.MemoryNode{
		ID:          id,
		Content:     content,
		Kind:        kind,
		Metadata:    meta,
		Connections: []string{},
		Timestamp:   now.UnixMilli(),
		Confidence:  confidenceFrom(meta),
	}
	s.state.nodeOrder = append(s.state.nodeOrder, id)

	s.persistLocked()
	return id
}

// ConnectNodes links a and b in both directions. It is a no-op when either
// node is absent, when a == b, or when the link already exists.
func (s *Store) ConnectNodes(a, b string) {
	if a == b {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	na, okA := s.state.nodes[a]
	nb, okB := s.state.nodes[b]
	if !okA || !okB {
		return
	}

	changed := false
	if !na.IsConnected(b) {
		na.Connections = append(na.Connections, b)
		changed = true
	}
	if !nb.IsConnected(a) {
		nb.Connections = append(nb.Connections, a)
		changed = true
	}
	if changed {
		s.persistLocked()
	}
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id string) (*types.MemoryNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.state.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// QueryRelated returns up to maxResults nodes whose relevance to text exceeds
// MinRelevance, best first. Ties keep insertion order.
func (s *Store) QueryRelated(text string, maxResults int) []*types.MemoryNode {
	if maxResults <= 0 {
		return []*types.MemoryNode{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		node  *types.MemoryNode
		score float64
	}
	var hits []scored
	for _, id := range s.state.nodeOrder {
		n := s.state.nodes[id]
		if score := s.scorer.Score(text, n.Content); score > MinRelevance {
			hits = append(hits, scored{node: n, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	out := make([]*types.MemoryNode, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.node.Clone())
	}
	return out
}

// CreateSession starts a reasoning session for goal. When library is non-empty
// and differs from the current library, the store switches first and any
// switch error is returned. The switch and the insert happen under one lock,
// so the session always lands in library.
func (s *Store) CreateSession(ctx context.Context, goal, library string) (string, error) {
	if library != "" && !types.IsValidName(library) {
		return "", ErrInvalidLibraryName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if library != "" {
		if err := s.switchLocked(ctx, library); err != nil {
			return "", err
		}
	}

	id := s.uniqueID("session", s.now(), func(id string) bool { _, ok := s.state.sessions[id]; return ok })
	s.state.sessions[id] = &types.ReasoningSession{
		ID:               id,
		Goal:             goal,
		CurrentFocus:     goal,
		Confidence:       types.DefaultConfidence,
		Quality:          types.DefaultQuality,
		MetaAssessment:   "Starting new reasoning session",
		ActiveHypotheses: []string{},
		WorkingMemory:    []string{},
		Library:          s.library,
	}
	s.state.sessionOrder = append(s.state.sessionOrder, id)

	s.persistLocked()
	return id, nil
}

// UpdateSession merges update into the session. It reports whether the
// session exists; an unknown id is a no-op.
func (s *Store) UpdateSession(id string, update types.SessionUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.state.sessions[id]
	if !ok {
		return false
	}
	update.Apply(sess)
	s.persistLocked()
	return true
}

// GetSession returns a copy of the session with the given id.
func (s *Store) GetSession(id string) (*types.ReasoningSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.state.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Stats returns node, session and undirected edge counts for the current
// library.
func (s *Store) Stats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.stats()
}

// Flush blocks until every snapshot enqueued before the call is written.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close flushes pending snapshots and stops the writer. It does not close the
// underlying blob store.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}

// persistLocked serializes the current library and enqueues it. The caller
// must hold s.mu for writing.
func (s *Store) persistLocked() {
	data, err := s.state.encode(s.now().UnixMilli())
	if err != nil {
		// Metadata values that cannot be encoded (channels, funcs) land here.
		s.logger.Error("memory: failed to encode library",
			zap.String("library", s.library), zap.Error(err))
		s.persistenceFailed(err)
		return
	}
	if !s.writer.enqueue(writeJob{namespace: storage.NamespaceLibraries, key: s.library, data: data}) {
		s.logger.Warn("memory: writer closed, snapshot dropped", zap.String("library", s.library))
	}
	s.observeLocked()
}

// load reads library from the blob store, falling back to empty state.
func (s *Store) load(ctx context.Context, library string) *libraryState {
	data, err := s.blobs.Get(ctx, storage.NamespaceLibraries, library)
	if errors.Is(err, storage.ErrNotFound) {
		return newLibraryState()
	}
	if err != nil {
		s.logger.Error("memory: failed to read library, starting empty",
			zap.String("library", library), zap.Error(err))
		s.persistenceFailed(err)
		return newLibraryState()
	}

	st, err := decodeLibrary(data)
	if err != nil {
		s.logger.Error("memory: corrupt library document, starting empty",
			zap.String("library", library), zap.Error(err))
		s.persistenceFailed(err)
		return newLibraryState()
	}

	stats := st.stats()
	s.logger.Info("memory: library loaded",
		zap.String("library", library),
		zap.Int("nodes", stats.Nodes),
		zap.Int("sessions", stats.Sessions))
	return st
}

func (s *Store) persistenceFailed(error) {
	if s.observer != nil {
		s.observer.PersistenceFailed()
	}
}

func (s *Store) observe() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.observeLocked()
}

func (s *Store) observeLocked() {
	if s.observer != nil {
		s.observer.ObserveLibrary(s.library, s.state.stats())
	}
}

// uniqueID returns prefix_<unix millis>_<9 random chars>, retrying on the
// vanishingly rare collision within the current library.
func (s *Store) uniqueID(prefix string, now time.Time, exists func(string) bool) string {
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
		id := prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
		if !exists(id) {
			return id
		}
	}
}

// confidenceFrom reads a numeric confidence from metadata.
func confidenceFrom(meta map[string]interface{}) float64 {
	var f float64
	switch v := meta["confidence"].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return types.DefaultConfidence
		}
		f = parsed
	default:
		return types.DefaultConfidence
	}
	if math.IsNaN(f) {
		return types.DefaultConfidence
	}
	return types.ClampUnit(f)
}
