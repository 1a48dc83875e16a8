// Package relevance scores how closely a piece of text matches a query.
//
// The scorer is lexical: both strings are lower-cased and split on
// whitespace, and the score is the number of distinct query words that also
// appear in the content divided by the length of the longer word sequence.
// Punctuation is not stripped, so "France?" and "france" are different words.
package relevance

import "strings"

// Scorer computes a relevance score in [0, 1] for content against query.
// Implementations must be pure and deterministic.
type Scorer interface {
	Score(query, content string) float64
}

// WordOverlap is the default word-set Scorer.
type WordOverlap struct{}

var _ Scorer = WordOverlap{}

// Score implements Scorer.
func (WordOverlap) Score(query, content string) float64 {
	return Score(query, content)
}

// Score returns the word-overlap relevance of content to query. An empty
// query or empty content scores 0.
func Score(query, content string) float64 {
	queryWords := strings.Fields(strings.ToLower(query))
	contentWords := strings.Fields(strings.ToLower(content))
	if len(queryWords) == 0 || len(contentWords) == 0 {
		return 0
	}

	present := make(map[string]struct{}, len(contentWords))
	for _, w := range contentWords {
		present[w] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryWords))
	common := 0
	for _, w := range queryWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := present[w]; ok {
			common++
		}
	}

	denom := len(queryWords)
	if len(contentWords) > denom {
		denom = len(contentWords)
	}
	return float64(common) / float64(denom)
}

// Max returns the highest score of query against any of the given fields.
func Max(s Scorer, query string, fields ...string) float64 {
	best := 0.0
	for _, f := range fields {
		if score := s.Score(query, f); score > best {
			best = score
		}
	}
	return best
}
