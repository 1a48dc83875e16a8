package memory

import (
	"encoding/json"
	"fmt"

	"github.com/scrypster/thinkgraph/pkg/types"
)

// entry is one [id, value] pair of the persisted document. It encodes as a
// two-element JSON array so the format stays an ordered list of pairs.
type entry[T any] struct {
	ID    string
	Value T
}

func (e entry[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.ID, e.Value})
}

func (e *entry[T]) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("expected [id, value] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return fmt.Errorf("pair id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Value); err != nil {
		return fmt.Errorf("pair value for %q: %w", e.ID, err)
	}
	return nil
}

// document is the persisted form of one library.
type document struct {
	Nodes     []entry[*types.MemoryNode]       `json:"nodes"`
	Sessions  []entry[*types.ReasoningSession] `json:"sessions"`
	Timestamp int64                            `json:"timestamp"`
}

// libraryState is the in-memory form of one library. Order slices keep
// insertion order for stable query ties and a reproducible document.
type libraryState struct {
	nodes        map[string]*types.MemoryNode
	nodeOrder    []string
	sessions     map[string]*types.ReasoningSession
	sessionOrder []string
}

func newLibraryState() *libraryState {
	return &libraryState{
		nodes:    make(map[string]*types.MemoryNode),
		sessions: make(map[string]*types.ReasoningSession),
	}
}

// encode serializes the state. It must be called with the store lock held.
func (s *libraryState) encode(nowMillis int64) ([]byte, error) {
	doc := document{
		Nodes:     make([]entry[*types.MemoryNode], 0, len(s.nodeOrder)),
		Sessions:  make([]entry[*types.ReasoningSession], 0, len(s.sessionOrder)),
		Timestamp: nowMillis,
	}
	for _, id := range s.nodeOrder {
		doc.Nodes = append(doc.Nodes, entry[*types.MemoryNode]{ID: id, Value: s.nodes[id]})
	}
	for _, id := range s.sessionOrder {
		doc.Sessions = append(doc.Sessions, entry[*types.ReasoningSession]{ID: id, Value: s.sessions[id]})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// decodeLibrary parses a persisted document. Null entries are skipped,
// missing slices and maps are initialised, and adjacency is repaired so
// every link is symmetric and points at a node that exists.
func decodeLibrary(data []byte) (*libraryState, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	st := newLibraryState()
	for _, e := range doc.Nodes {
		if e.Value == nil || e.ID == "" {
			continue
		}
		if _, dup := st.nodes[e.ID]; dup {
			continue
		}
		n := e.Value
		n.ID = e.ID
		if n.Metadata == nil {
			n.Metadata = map[string]interface{}{}
		}
		if n.Connections == nil {
			n.Connections = []string{}
		}
		if !types.IsValidNodeKind(n.Kind) {
			n.Kind = types.KindThought
		}
		n.Confidence = types.ClampUnit(n.Confidence)
		st.nodes[e.ID] = n
		st.nodeOrder = append(st.nodeOrder, e.ID)
	}
	for _, e := range doc.Sessions {
		if e.Value == nil || e.ID == "" {
			continue
		}
		if _, dup := st.sessions[e.ID]; dup {
			continue
		}
		sess := e.Value
		sess.ID = e.ID
		if sess.ActiveHypotheses == nil {
			sess.ActiveHypotheses = []string{}
		}
		if sess.WorkingMemory == nil {
			sess.WorkingMemory = []string{}
		}
		st.sessions[e.ID] = sess
		st.sessionOrder = append(st.sessionOrder, e.ID)
	}
	st.repairConnections()
	return st, nil
}

// repairConnections drops dangling and self links, removes duplicates, and
// adds any missing reverse link.
func (s *libraryState) repairConnections() {
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		seen := make(map[string]struct{}, len(n.Connections))
		kept := n.Connections[:0]
		for _, other := range n.Connections {
			if other == id {
				continue
			}
			if _, ok := s.nodes[other]; !ok {
				continue
			}
			if _, dup := seen[other]; dup {
				continue
			}
			seen[other] = struct{}{}
			kept = append(kept, other)
		}
		n.Connections = kept
	}
	for _, id := range s.nodeOrder {
		for _, other := range s.nodes[id].Connections {
			peer := s.nodes[other]
			if !peer.IsConnected(id) {
				peer.Connections = append(peer.Connections, id)
			}
		}
	}
}

// stats counts nodes, sessions and undirected edges.
func (s *libraryState) stats() types.Stats {
	links := 0
	for _, n := range s.nodes {
		links += len(n.Connections)
	}
	return types.Stats{
		Nodes:       len(s.nodes),
		Sessions:    len(s.sessions),
		Connections: links / 2,
	}
}
