// Package history keeps a local JSONL log of scan attempts.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/shieldscan/shieldscan/internal/types"
)

type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	AttemptID string          `json:"attempt_id"`
	Domain    string          `json:"domain"`
	Target    string          `json:"target,omitempty"`
	Outcome   session.Outcome `json:"outcome"`
	Score     *int            `json:"score,omitempty"`
	Grade     string          `json:"grade,omitempty"`
	Band      types.Band      `json:"band,omitempty"`
	Issues    int             `json:"issues"`
	ResultID  *int64          `json:"result_id,omitempty"`
	Duration  string          `json:"duration"`
	// Message is what the user was shown, never the underlying cause.
	Message string `json:"message,omitempty"`
}

// FromAttempt summarizes a finished attempt. Findings are not recorded.
func FromAttempt(a session.Attempt) Record {
	rec := Record{
		Timestamp: a.Finished,
		AttemptID: a.ID,
		Domain:    a.Domain,
		Target:    a.Target,
		Outcome:   a.Outcome,
		Duration:  a.Duration().Round(time.Millisecond).String(),
	}
	switch a.Outcome {
	case session.OutcomeFailed:
		rec.Message = session.GenericScanError
	case session.OutcomeInvalid:
		if a.Err != nil {
			rec.Message = a.Err.Error()
		}
	}
	if r := a.Result; r != nil && a.Outcome == session.OutcomeSucceeded {
		score := r.Score
		rec.Score = &score
		rec.Grade = r.Grade
		rec.Band = types.ScoreBand(r.Score)
		rec.Issues = len(r.Issues)
		rec.ResultID = r.ID
	}
	return rec
}

type Log struct {
	path string
}

// DefaultPath places the log next to the result store.
func DefaultPath() string {
	return filepath.Join(store.DefaultDir(), "history.jsonl")
}

func NewLog(path string) *Log {
	if path == "" {
		path = DefaultPath()
	}
	return &Log{path: path}
}

func (l *Log) Path() string { return l.path }

// Load returns the recorded attempts, newest first. A missing log is empty.
// Lines that do not decode are skipped.
func (l *Log) Load() ([]Record, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	var records []Record
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			break
		}
		records = append(records, rec)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (l *Log) Append(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("failed to write history record: %w", err)
	}
	return nil
}

// Delete removes the record at index, counted newest first as returned by
// Load.
func (l *Log) Delete(index int) error {
	records, err := l.Load()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("invalid index: %d", index)
	}
	records = append(records[:index], records[index+1:]...)

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to rewrite history: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to write history record: %w", err)
		}
	}
	return nil
}

func (l *Log) Clear() error {
	err := os.Remove(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Hook returns an attempt hook that appends to l. Write failures go to
// onErr, which may be nil.
func (l *Log) Hook(onErr func(error)) func(session.Attempt) {
	return func(a session.Attempt) {
		if err := l.Append(FromAttempt(a)); err != nil && onErr != nil {
			onErr(err)
		}
	}
}
