// Package reasoning validates and records reasoning steps, keeps the
// process-wide step history and named branches, and composes memory queries
// into the payloads returned by the reasoning tools.
//
// Every operation reports failure inside its Result rather than as a Go
// error, so tool handlers can hand the payload straight back to the caller.
package reasoning

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/pkg/types"
)

const (
	// StepRelatedLimit bounds the related memories returned with a step.
	StepRelatedLimit = 3

	// QueryRelatedLimit bounds the related memories returned by QueryMemory.
	QueryRelatedLimit = 10
)

// Memory is the slice of the memory store the engine drives.
type Memory interface {
	AddNode(content string, kind types.NodeKind, metadata map[string]interface{}) string
	ConnectNodes(a, b string)
	QueryRelated(text string, maxResults int) []*types.MemoryNode
	CreateSession(ctx context.Context, goal, library string) (string, error)
	UpdateSession(id string, update types.SessionUpdate) bool
	GetSession(id string) (*types.ReasoningSession, bool)
	Stats() types.Stats
}

// Result is the outcome of one engine operation. Payload is always
// JSON-encodable; on failure it is a Failure.
type Result struct {
	Payload interface{}
	IsError bool
}

// Failure is the payload of a failed operation.
type Failure struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// RelatedMemory is a node summary returned with a processed step.
type RelatedMemory struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// StepPayload summarizes one processed step.
type StepPayload struct {
	ThoughtNumber        int                `json:"thoughtNumber"`
	TotalThoughts        int                `json:"totalThoughts"`
	NextThoughtNeeded    bool               `json:"nextThoughtNeeded"`
	Confidence           float64            `json:"confidence"`
	Quality              types.QualityLevel `json:"reasoning_quality"`
	MetaAssessment       string             `json:"meta_assessment"`
	Hypothesis           string             `json:"hypothesis,omitempty"`
	Branches             []string           `json:"branches"`
	ThoughtHistoryLength int                `json:"thoughtHistoryLength"`
	MemoryStats          types.Stats        `json:"memoryStats"`
	RelatedMemories      []RelatedMemory    `json:"relatedMemories"`
}

// SessionPayload reports a newly created session.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
	Goal      string `json:"goal"`
	Library   string `json:"library,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// MemoryMatch is a node summary returned by QueryMemory.
type MemoryMatch struct {
	Content     string         `json:"content"`
	Kind        types.NodeKind `json:"type"`
	Confidence  float64        `json:"confidence"`
	Connections int            `json:"connections"`
}

// QueryPayload is the result of QueryMemory. SessionContext is null when the
// session is unknown.
type QueryPayload struct {
	Query           string                  `json:"query"`
	SessionContext  *types.ReasoningSession `json:"sessionContext"`
	RelatedMemories []MemoryMatch           `json:"relatedMemories"`
	MemoryStats     types.Stats             `json:"memoryStats"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOutput sets where processed steps are drawn. The default is stderr.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// WithoutRendering turns off step rendering.
func WithoutRendering() Option {
	return func(e *Engine) { e.out = nil }
}

// Engine processes reasoning steps against a Memory. It is safe for
// concurrent use.
type Engine struct {
	memory Memory
	logger *zap.Logger
	out    io.Writer
	styles styles

	mu          sync.Mutex
	history     []types.ThoughtRecord
	branches    map[string][]types.ThoughtRecord
	branchOrder []string
}

// New creates an engine over memory.
func New(memory Memory, opts ...Option) *Engine {
	e := &Engine{
		memory:   memory,
		logger:   zap.NewNop(),
		out:      os.Stderr,
		styles:   newStyles(),
		branches: make(map[string][]types.ThoughtRecord),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessStep validates args as a thought, records it, and returns a summary.
// A step bound to a session is stored as a thought node, merged into the
// session, and linked to any existing nodes named in builds_on.
func (e *Engine) ProcessStep(ctx context.Context, args map[string]interface{}) (res Result) {
	defer recoverInto(&res, e.logger, "process step")

	rec, err := decodeThought(args)
	if err != nil {
		return failed(err)
	}
	if rec.ThoughtNumber > rec.TotalThoughts {
		rec.TotalThoughts = rec.ThoughtNumber
	}

	if rec.SessionID != "" {
		e.recordInSession(rec)
	}

	e.mu.Lock()
	e.history = append(e.history, *rec)
	if rec.IsBranch() {
		if _, seen := e.branches[rec.BranchID]; !seen {
			e.branchOrder = append(e.branchOrder, rec.BranchID)
		}
		e.branches[rec.BranchID] = append(e.branches[rec.BranchID], *rec)
	}
	historyLen := len(e.history)
	branches := append([]string{}, e.branchOrder...)
	e.mu.Unlock()

	if e.out != nil {
		fmt.Fprintln(e.out, renderThought(rec, e.styles))
	}

	related := []RelatedMemory{}
	if rec.SessionID != "" {
		for _, n := range e.memory.QueryRelated(rec.Thought, StepRelatedLimit) {
			related = append(related, RelatedMemory{Content: n.Content, Confidence: n.Confidence})
		}
	}

	e.logger.Debug("reasoning: step processed",
		zap.Int("thought_number", rec.ThoughtNumber),
		zap.Int("total_thoughts", rec.TotalThoughts),
		zap.String("session_id", rec.SessionID),
		zap.String("branch_id", rec.BranchID))

	return Result{Payload: StepPayload{
		ThoughtNumber:        rec.ThoughtNumber,
		TotalThoughts:        rec.TotalThoughts,
		NextThoughtNeeded:    rec.NextThoughtNeeded,
		Confidence:           rec.Confidence,
		Quality:              rec.Quality,
		MetaAssessment:       rec.MetaThought,
		Hypothesis:           rec.Hypothesis,
		Branches:             branches,
		ThoughtHistoryLength: historyLen,
		MemoryStats:          e.memory.Stats(),
		RelatedMemories:      related,
	}}
}

func (e *Engine) recordInSession(rec *types.ThoughtRecord) {
	meta := map[string]interface{}{
		"confidence":        rec.Confidence,
		"reasoning_quality": string(rec.Quality),
		"thoughtNumber":     rec.ThoughtNumber,
	}
	if rec.Hypothesis != "" {
		meta["hypothesis"] = rec.Hypothesis
	}
	nodeID := e.memory.AddNode(rec.Thought, types.KindThought, meta)
	for _, id := range rec.BuildsOn {
		e.memory.ConnectNodes(nodeID, id)
	}

	focus := rec.Thought
	confidence := rec.Confidence
	quality := rec.Quality
	assessment := rec.MetaThought
	if !e.memory.UpdateSession(rec.SessionID, types.SessionUpdate{
		CurrentFocus:   &focus,
		Confidence:     &confidence,
		Quality:        &quality,
		MetaAssessment: &assessment,
	}) {
		e.logger.Debug("reasoning: step names unknown session", zap.String("session_id", rec.SessionID))
	}
}

// CreateSession starts a session for goal, in library when it is non-empty.
func (e *Engine) CreateSession(ctx context.Context, goal, library string) (res Result) {
	defer recoverInto(&res, e.logger, "create session")

	id, err := e.memory.CreateSession(ctx, goal, library)
	if err != nil {
		return failed(err)
	}
	return Result{Payload: SessionPayload{
		SessionID: id,
		Goal:      goal,
		Library:   library,
		Status:    "created",
		Message:   "Reasoning session created successfully",
	}}
}

// QueryMemory returns up to QueryRelatedLimit nodes related to query along
// with the session's current state.
func (e *Engine) QueryMemory(sessionID, query string) (res Result) {
	defer recoverInto(&res, e.logger, "query memory")

	matches := []MemoryMatch{}
	for _, n := range e.memory.QueryRelated(query, QueryRelatedLimit) {
		matches = append(matches, MemoryMatch{
			Content:     n.Content,
			Kind:        n.Kind,
			Confidence:  n.Confidence,
			Connections: len(n.Connections),
		})
	}
	sess, _ := e.memory.GetSession(sessionID)
	return Result{Payload: QueryPayload{
		Query:           query,
		SessionContext:  sess,
		RelatedMemories: matches,
		MemoryStats:     e.memory.Stats(),
	}}
}

// Branch returns a copy of the steps recorded under id.
func (e *Engine) Branch(id string) ([]types.ThoughtRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps, ok := e.branches[id]
	if !ok {
		return nil, false
	}
	return append([]types.ThoughtRecord{}, steps...), true
}

// Branches returns branch ids in the order they were first seen.
func (e *Engine) Branches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.branchOrder...)
}

// HistoryLength returns the number of steps processed since start.
func (e *Engine) HistoryLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

func failed(err error) Result {
	return Result{Payload: Failure{Error: err.Error(), Status: "failed"}, IsError: true}
}

// recoverInto turns a panic in an engine operation into a failed Result.
func recoverInto(res *Result, logger *zap.Logger, op string) {
	if r := recover(); r != nil {
		logger.Error("reasoning: recovered panic", zap.String("op", op), zap.Any("panic", r))
		*res = failed(fmt.Errorf("%v", r))
	}
}
