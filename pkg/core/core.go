package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shieldscan/shieldscan/internal/engine"
	"github.com/shieldscan/shieldscan/internal/gate"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/shieldscan/shieldscan/internal/types"
)

// Re-export selected internal types as a stable public API surface.
type (
	Result = types.ScanResult
	Issue  = types.Issue
	Report = gate.Report
	Store  = store.ResultStore
)

// ErrScanFailed matches any failed scan request via errors.Is.
var ErrScanFailed = engine.ErrScanFailed

// FreeIssues is how many findings are shown before the premium unlock.
const FreeIssues = gate.FreeIssues

// Options configures Scan. Zero values use the engine defaults and an
// in-memory store.
type Options struct {
	APIURL  string
	Timeout time.Duration
	Store   Store
}

// Scan runs one attempt against domain and returns the free (gated) report.
// A validation problem is returned as-is; a failed request wraps
// ErrScanFailed with the user-facing message.
func Scan(ctx context.Context, domain string, authorized bool, opts Options) (Report, error) {
	api := opts.APIURL
	if api == "" {
		api = engine.DefaultBaseURL
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	var copts []session.Option
	if opts.Timeout > 0 {
		copts = append(copts, session.WithTimeout(opts.Timeout))
	}
	ctrl := session.NewController(engine.NewClient(api), st, copts...)

	state, err := ctrl.Submit(ctx, domain, authorized)
	if err != nil {
		return Report{}, err
	}
	rep, ok := state.Report()
	if !ok {
		return Report{}, fmt.Errorf("%s: %w", state.ErrorMessage, ErrScanFailed)
	}
	return rep, nil
}

// Gate applies the free-tier rule to a result.
func Gate(r Result, unlocked bool) Report { return gate.Build(r, unlocked) }
