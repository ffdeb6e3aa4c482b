// Package engine is the HTTP client for the remote ShieldScan engine. It
// submits scans, builds checkout and PDF links, and downloads PDF reports.
// Every failure is reported as a *RequestError so callers can map them onto
// one stable user-facing message.
package engine
