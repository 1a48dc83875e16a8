// Package types defines the core data structures for the thinkgraph reasoning
// server. These types represent memory nodes, reasoning sessions, thought
// records and stored system documents, and their JSON forms double as the
// persisted library format.
package types

// NodeKind classifies a memory node.
type NodeKind string

// Memory node kinds.
const (
	// KindThought is a single recorded reasoning step.
	KindThought NodeKind = "thought"

	// KindHypothesis is a working hypothesis under test.
	KindHypothesis NodeKind = "hypothesis"

	// KindEvidence supports or contradicts a hypothesis.
	KindEvidence NodeKind = "evidence"

	// KindConclusion closes a line of reasoning.
	KindConclusion NodeKind = "conclusion"
)

// QualityLevel is the caller's self-assessment of reasoning quality.
type QualityLevel string

// Reasoning quality levels.
const (
	QualityLow    QualityLevel = "low"
	QualityMedium QualityLevel = "medium"
	QualityHigh   QualityLevel = "high"
)

// Defaults applied when a caller omits or malforms optional values.
const (
	// DefaultConfidence is used for nodes, sessions and thoughts without a
	// usable confidence value.
	DefaultConfidence = 0.5

	// DefaultQuality is used when reasoning_quality is absent or unknown.
	DefaultQuality = QualityMedium

	// DefaultLibrary is the library loaded on startup.
	DefaultLibrary = "cognitive_memory"
)

// Stats summarizes the size of the current library.
type Stats struct {
	Nodes       int `json:"nodes"`       // Number of memory nodes
	Sessions    int `json:"sessions"`    // Number of reasoning sessions
	Connections int `json:"connections"` // Number of undirected edges
}
