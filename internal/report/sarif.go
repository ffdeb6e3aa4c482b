package report

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/shieldscan/shieldscan/internal/gate"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string        `json:"id"`
	ShortDescription sarifMessage  `json:"shortDescription"`
	Help             *sarifMessage `json:"help,omitempty"`
}

type sarifResult struct {
	RuleID    string         `json:"ruleId"`
	RuleIndex int            `json:"ruleIndex"`
	Level     string         `json:"level"`
	Message   sarifMessage   `json:"message"`
	Locations []sarifLoc     `json:"locations"`
	Props     map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt `json:"artifactLocation"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

// LockedRuleID is the rule every gated finding reports under.
const LockedRuleID = "premium-locked"

// impactToLevel maps a score penalty onto a SARIF level.
func impactToLevel(impact int) string {
	switch {
	case impact >= 15:
		return "error"
	case impact >= 5:
		return "warning"
	default:
		return "note"
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func ruleID(f gate.Finding) string {
	if f.Gated {
		return LockedRuleID
	}
	id := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(f.Issue.Title), "-"), "-")
	if id == "" {
		return "issue"
	}
	return id
}

// WriteSARIF writes the gated report as SARIF 2.1.0. The scanned URL is the
// artifact location of every result.
func WriteSARIF(w io.Writer, rep gate.Report, version string) error {
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{Name: "shieldscan", Version: version}},
		Properties: map[string]any{
			"score":    rep.Score,
			"grade":    rep.Grade,
			"locked":   rep.Locked,
			"unlocked": rep.Unlocked,
		},
		Results: []sarifResult{},
	}
	ruleIndex := map[string]int{}
	for _, f := range rep.Findings {
		id := ruleID(f)
		idx, ok := ruleIndex[id]
		if !ok {
			rule := sarifRule{ID: id, ShortDescription: sarifMessage{Text: f.Issue.Title}}
			if !f.Gated && f.Issue.FixTitle != "" {
				rule.Help = &sarifMessage{Text: f.Issue.FixTitle}
			}
			idx = len(run.Tool.Driver.Rules)
			ruleIndex[id] = idx
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, rule)
		}
		msg := f.Issue.Title
		if f.Issue.Impact != "" {
			msg += ": " + f.Issue.Impact
		}
		res := sarifResult{
			RuleID:    id,
			RuleIndex: idx,
			Level:     impactToLevel(f.Issue.ScoreImpact),
			Message:   sarifMessage{Text: msg},
			Locations: []sarifLoc{{PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: rep.URL}}}},
			Props: map[string]any{
				"index":        f.Index,
				"difficulty":   string(f.Issue.Difficulty),
				"score_impact": f.Issue.ScoreImpact,
				"category":     f.Issue.Category,
				"gated":        f.Gated,
			},
		}
		run.Results = append(run.Results, res)
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
