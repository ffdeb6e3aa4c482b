package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Difficulty is the engine's estimate of how hard a finding is to fix.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty maps an engine label onto a Difficulty. Labels other than
// Easy and Medium (the engine also emits "Advanced") are treated as Hard.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

func (d *Difficulty) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = ParseDifficulty(s)
	return nil
}

// FixEstimate is the short time-to-fix label shown next to the difficulty.
func (d Difficulty) FixEstimate() string {
	switch d {
	case DifficultyEasy:
		return "5m"
	case DifficultyMedium:
		return "30m"
	default:
		return "Dev"
	}
}

// Issue is one reported weakness with remediation guidance and a score penalty.
type Issue struct {
	Title       string         `json:"title"`
	Impact      string         `json:"impact"`
	Difficulty  Difficulty     `json:"difficulty"`
	ScoreImpact int            `json:"score_impact"`
	Category    string         `json:"category"`
	FixTitle    string         `json:"fix_title"`
	FixSnippet  string         `json:"fix_snippet"`
	Details     map[string]any `json:"details,omitempty"`
}

// ScanResult is the graded report returned by the scanning engine. Issue
// order is significant and is never changed by the client.
type ScanResult struct {
	ID        *int64  `json:"id,omitempty"`
	URL       string  `json:"url"`
	Score     int     `json:"score"`
	Grade     string  `json:"grade"`
	Issues    []Issue `json:"issues"`
	AISummary string  `json:"ai_summary"`
}

var ErrInvalidResult = errors.New("invalid scan result")

// Validate checks the invariants a result must satisfy before it is adopted.
func (r ScanResult) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("%w: score %d outside [0,100]", ErrInvalidResult, r.Score)
	}
	for i, is := range r.Issues {
		if is.ScoreImpact < 0 {
			return fmt.Errorf("%w: issue %d has negative score impact", ErrInvalidResult, i)
		}
	}
	return nil
}

// HasID reports whether the result carries a non-empty identifier, which the
// engine only assigns to persisted results.
func (r ScanResult) HasID() bool {
	return r.ID != nil && *r.ID != 0
}

// Band buckets a score the same way the report colours it.
type Band string

const (
	BandGood Band = "good"
	BandFair Band = "fair"
	BandPoor Band = "poor"
)

func ScoreBand(score int) Band {
	switch {
	case score >= 80:
		return BandGood
	case score >= 50:
		return BandFair
	default:
		return BandPoor
	}
}

// Int64 returns a pointer to v, for building results with an ID.
func Int64(v int64) *int64 { return &v }
