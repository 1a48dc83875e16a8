package types

// ThoughtRecord is the validated input to one reasoning step. It is kept in
// the engine's history and branch tables but never persisted on its own.
type ThoughtRecord struct {
	// Sequential thinking
	Thought           string `json:"thought"`
	ThoughtNumber     int    `json:"thoughtNumber"`
	TotalThoughts     int    `json:"totalThoughts"`
	NextThoughtNeeded bool   `json:"nextThoughtNeeded"`

	// Self-assessment
	Confidence  float64      `json:"confidence"`
	Quality     QualityLevel `json:"reasoning_quality"`
	MetaThought string       `json:"meta_thought,omitempty"`
	Goal        string       `json:"goal,omitempty"`
	Progress    *float64     `json:"progress,omitempty"`

	// Hypothesis testing
	Hypothesis string   `json:"hypothesis,omitempty"`
	TestPlan   string   `json:"test_plan,omitempty"`
	TestResult string   `json:"test_result,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`

	// Memory binding
	SessionID  string   `json:"session_id,omitempty"`
	BuildsOn   []string `json:"builds_on,omitempty"`
	Challenges []string `json:"challenges,omitempty"`

	// Revision and branching
	IsRevision        bool   `json:"isRevision,omitempty"`
	RevisesThought    int    `json:"revisesThought,omitempty"`
	BranchFromThought int    `json:"branchFromThought,omitempty"`
	BranchID          string `json:"branchId,omitempty"`
	NeedsMoreThoughts bool   `json:"needsMoreThoughts,omitempty"`
}

// IsBranch reports whether the record starts or extends a named branch.
func (t *ThoughtRecord) IsBranch() bool {
	return t.BranchFromThought > 0 && t.BranchID != ""
}
