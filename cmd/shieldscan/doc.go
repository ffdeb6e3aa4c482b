// Package shieldscan provides the command-line interface for ShieldScan. It
// configures subcommands (scan, tui, unlock, history, etc.), parses flags,
// and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/shieldscan/shieldscan/cmd/shieldscan"
//	func main() { shieldscan.Execute() }
package shieldscan
