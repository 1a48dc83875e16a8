package types

// MemoryNode is one recorded reasoning artifact. Content is immutable once the
// node exists; Connections grows through explicit linking and is kept
// symmetric by the memory store.
type MemoryNode struct {
	ID          string                 `json:"id"`          // Unique identifier (format: node_<millis>_<suffix>)
	Content     string                 `json:"content"`     // Raw node text
	Kind        NodeKind               `json:"type"`        // thought, hypothesis, evidence or conclusion
	Metadata    map[string]interface{} `json:"metadata"`    // Open metadata; unknown keys are inert
	Connections []string               `json:"connections"` // Ids of linked nodes (undirected)
	Timestamp   int64                  `json:"timestamp"`   // Creation time in unix milliseconds
	Confidence  float64                `json:"confidence"`  // Confidence in [0, 1]
}

// Clone returns a deep-enough copy of the node so callers cannot mutate the
// store's adjacency list or metadata map.
func (n *MemoryNode) Clone() *MemoryNode {
	if n == nil {
		return nil
	}
	out := *n
	out.Connections = append([]string(nil), n.Connections...)
	if n.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// IsConnected reports whether the node links to id.
func (n *MemoryNode) IsConnected(id string) bool {
	for _, c := range n.Connections {
		if c == id {
			return true
		}
	}
	return false
}
