package types

// ReasoningSession is a stateful reasoning context tracking a goal and the
// accumulated confidence and quality of the steps recorded against it.
type ReasoningSession struct {
	ID               string       `json:"sessionId"`
	Goal             string       `json:"goal"`
	CurrentFocus     string       `json:"currentFocus"`
	Confidence       float64      `json:"confidence"`
	Quality          QualityLevel `json:"reasoning_quality"`
	MetaAssessment   string       `json:"meta_assessment"`
	ActiveHypotheses []string     `json:"active_hypotheses"`
	WorkingMemory    []string     `json:"working_memory"`
	Library          string       `json:"library,omitempty"`
}

// Clone returns a copy that shares no slices with s.
func (s *ReasoningSession) Clone() *ReasoningSession {
	if s == nil {
		return nil
	}
	out := *s
	out.ActiveHypotheses = append([]string{}, s.ActiveHypotheses...)
	out.WorkingMemory = append([]string{}, s.WorkingMemory...)
	return &out
}

// SessionUpdate carries a partial set of session fields. Nil fields are left
// untouched by a merge.
type SessionUpdate struct {
	CurrentFocus     *string
	Confidence       *float64
	Quality          *QualityLevel
	MetaAssessment   *string
	ActiveHypotheses []string
	WorkingMemory    []string
}

// Apply shallow-merges the non-nil fields of u into s.
func (u SessionUpdate) Apply(s *ReasoningSession) {
	if u.CurrentFocus != nil {
		s.CurrentFocus = *u.CurrentFocus
	}
	if u.Confidence != nil {
		s.Confidence = ClampUnit(*u.Confidence)
	}
	if u.Quality != nil {
		s.Quality = *u.Quality
	}
	if u.MetaAssessment != nil {
		s.MetaAssessment = *u.MetaAssessment
	}
	if u.ActiveHypotheses != nil {
		s.ActiveHypotheses = append([]string{}, u.ActiveHypotheses...)
	}
	if u.WorkingMemory != nil {
		s.WorkingMemory = append([]string{}, u.WorkingMemory...)
	}
}
