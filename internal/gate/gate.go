// Package gate decides which findings of a report are visible and which are
// withheld until the premium unlock.
package gate

import "github.com/shieldscan/shieldscan/internal/types"

// FreeIssues is how many leading findings are always visible. It is a fixed
// business rule and does not depend on severity.
const FreeIssues = 3

// LockedTitle replaces the title of a gated finding.
const LockedTitle = "Premium finding locked"

// IsGated reports whether the finding at index i is withheld.
func IsGated(i int, unlocked bool) bool {
	return i >= FreeIssues && !unlocked
}

// Finding is an issue as it may be rendered. For gated findings only the
// difficulty, category and score impact of Issue are populated.
type Finding struct {
	Index int
	Gated bool
	Issue types.Issue
}

// Apply returns one Finding per issue, in the original order.
func Apply(issues []types.Issue, unlocked bool) []Finding {
	out := make([]Finding, len(issues))
	for i, is := range issues {
		f := Finding{Index: i, Issue: is}
		if IsGated(i, unlocked) {
			f.Gated = true
			f.Issue = types.Issue{
				Title:       LockedTitle,
				Difficulty:  is.Difficulty,
				ScoreImpact: is.ScoreImpact,
				Category:    is.Category,
			}
		}
		out[i] = f
	}
	return out
}

// GatedIndices lists the indices Apply would withhold.
func GatedIndices(n int, unlocked bool) []int {
	var out []int
	for i := 0; i < n; i++ {
		if IsGated(i, unlocked) {
			out = append(out, i)
		}
	}
	return out
}

// LockedCount is the number of withheld findings among n.
func LockedCount(n int, unlocked bool) int {
	if unlocked || n <= FreeIssues {
		return 0
	}
	return n - FreeIssues
}

// Report is the render-ready view of a result.
type Report struct {
	ID           *int64     `json:"id,omitempty"`
	URL          string     `json:"url"`
	Score        int        `json:"score"`
	Grade        string     `json:"grade"`
	Band         types.Band `json:"band"`
	Summary      string     `json:"ai_summary"`
	Findings     []Finding  `json:"findings"`
	Total        int        `json:"total"`
	Locked       int        `json:"locked"`
	Unlocked     bool       `json:"unlocked"`
	PDFAvailable bool       `json:"pdf_available"`
}

// Build applies the gate to a whole result.
func Build(r types.ScanResult, unlocked bool) Report {
	return Report{
		ID:           r.ID,
		URL:          r.URL,
		Score:        r.Score,
		Grade:        r.Grade,
		Band:         types.ScoreBand(r.Score),
		Summary:      r.AISummary,
		Findings:     Apply(r.Issues, unlocked),
		Total:        len(r.Issues),
		Locked:       LockedCount(len(r.Issues), unlocked),
		Unlocked:     unlocked,
		PDFAvailable: unlocked && r.HasID(),
	}
}

// Visible reports whether the finding at index i exists and is not gated.
func (r Report) Visible(i int) bool {
	return i >= 0 && i < len(r.Findings) && !r.Findings[i].Gated
}
