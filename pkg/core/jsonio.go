package core

import (
	"encoding/json"
	"io"

	"github.com/shieldscan/shieldscan/internal/report"
)

// MarshalReport pretty-prints the gated report as JSON for humans or
// pipelines. Gated findings never carry their remediation text.
func MarshalReport(w io.Writer, rep Report) error {
	return report.WriteJSON(w, rep)
}

// UnmarshalResult decodes and validates a raw engine result, useful for
// ingestion tests.
func UnmarshalResult(r io.Reader) (Result, error) {
	var res Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return Result{}, err
	}
	if err := res.Validate(); err != nil {
		return Result{}, err
	}
	return res, nil
}
