// Package core provides a small, stable facade over ShieldScan's internal
// packages for external integrations. It re-exports a narrow API surface so
// other tools can run a scan and read the gated report without importing
// internal implementation packages.
//
// Example:
//
//	rep, err := core.Scan(ctx, "example.com", true, core.Options{})
//	if err != nil { /* handle */ }
//	_ = core.MarshalReport(os.Stdout, rep)
package core
