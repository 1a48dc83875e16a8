package reasoning

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/scrypster/thinkgraph/pkg/types"
)

type styles struct {
	box        lipgloss.Style
	revision   lipgloss.Style
	branch     lipgloss.Style
	thought    lipgloss.Style
	confidence lipgloss.Style
	meta       lipgloss.Style
	hypothesis lipgloss.Style
	quality    map[types.QualityLevel]lipgloss.Style
}

func newStyles() styles {
	return styles{
		box: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("244")).
			Padding(0, 1),
		revision:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		branch:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		thought:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		confidence: lipgloss.NewStyle().Foreground(lipgloss.Color("51")),
		meta:       lipgloss.NewStyle().Italic(true),
		hypothesis: lipgloss.NewStyle().Foreground(lipgloss.Color("170")),
		quality: map[types.QualityLevel]lipgloss.Style{
			types.QualityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
			types.QualityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
			types.QualityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		},
	}
}

// renderThought draws one processed step as a bordered box for the operator's
// terminal.
func renderThought(rec *types.ThoughtRecord, s styles) string {
	var header string
	switch {
	case rec.IsRevision:
		header = s.revision.Render("Revision") +
			fmt.Sprintf(" %d/%d (revising thought %d)", rec.ThoughtNumber, rec.TotalThoughts, rec.RevisesThought)
	case rec.BranchFromThought > 0:
		header = s.branch.Render("Branch") +
			fmt.Sprintf(" %d/%d (from thought %d, ID: %s)", rec.ThoughtNumber, rec.TotalThoughts, rec.BranchFromThought, rec.BranchID)
	default:
		header = s.thought.Render("Thought") + fmt.Sprintf(" %d/%d", rec.ThoughtNumber, rec.TotalThoughts)
	}

	filled := int(math.Round(rec.Confidence * 10))
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", 10-filled)
	status := s.quality[rec.Quality].Render("Quality: "+strings.ToUpper(string(rec.Quality))) +
		" │ Confidence: " +
		s.confidence.Render(fmt.Sprintf("[%s] %d%%", bar, int(math.Round(rec.Confidence*100))))

	lines := []string{header, status, "", "Main: " + rec.Thought}
	if rec.MetaThought != "" {
		lines = append(lines, "Meta: "+s.meta.Render(rec.MetaThought))
	}
	if rec.Hypothesis != "" {
		lines = append(lines, "Hypothesis: "+s.hypothesis.Render(rec.Hypothesis))
	}

	return s.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
