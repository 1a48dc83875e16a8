package types

import "regexp"

// ValidNodeKinds contains all valid node kind values.
var ValidNodeKinds = []NodeKind{
	KindThought,
	KindHypothesis,
	KindEvidence,
	KindConclusion,
}

// ValidQualityLevels contains all valid reasoning quality values.
var ValidQualityLevels = []QualityLevel{
	QualityLow,
	QualityMedium,
	QualityHigh,
}

// namePattern restricts library and system document names to characters that
// are safe in file names and storage keys.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsValidNodeKind checks if the given kind is one of the known node kinds.
func IsValidNodeKind(kind NodeKind) bool {
	for _, k := range ValidNodeKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// ParseQualityLevel returns the quality level named by s, or DefaultQuality
// when s is not exactly one of low, medium or high.
func ParseQualityLevel(s string) QualityLevel {
	for _, q := range ValidQualityLevels {
		if QualityLevel(s) == q {
			return q
		}
	}
	return DefaultQuality
}

// IsValidName reports whether name is a legal library or system document name.
func IsValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ClampUnit clamps v to [0, 1].
func ClampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
