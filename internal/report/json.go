package report

import (
	"encoding/json"
	"io"

	"github.com/shieldscan/shieldscan/internal/gate"
)

// WriteJSON writes the gated view of a report. Gated findings carry only the
// fields the gate leaves visible.
func WriteJSON(w io.Writer, rep gate.Report) error {
	type finding struct {
		Index       int            `json:"index"`
		Gated       bool           `json:"gated"`
		Title       string         `json:"title"`
		Impact      string         `json:"impact,omitempty"`
		Difficulty  string         `json:"difficulty"`
		FixEstimate string         `json:"fix_estimate"`
		ScoreImpact int            `json:"score_impact"`
		Category    string         `json:"category,omitempty"`
		FixTitle    string         `json:"fix_title,omitempty"`
		FixSnippet  string         `json:"fix_snippet,omitempty"`
		Details     map[string]any `json:"details,omitempty"`
	}
	out := struct {
		gate.Report
		Findings []finding `json:"findings"`
	}{Report: rep, Findings: make([]finding, 0, len(rep.Findings))}
	for _, f := range rep.Findings {
		out.Findings = append(out.Findings, finding{
			Index:       f.Index,
			Gated:       f.Gated,
			Title:       f.Issue.Title,
			Impact:      f.Issue.Impact,
			Difficulty:  string(f.Issue.Difficulty),
			FixEstimate: f.Issue.Difficulty.FixEstimate(),
			ScoreImpact: f.Issue.ScoreImpact,
			Category:    f.Issue.Category,
			FixTitle:    f.Issue.FixTitle,
			FixSnippet:  f.Issue.FixSnippet,
			Details:     f.Issue.Details,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
