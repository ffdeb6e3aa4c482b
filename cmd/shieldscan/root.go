package shieldscan

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagAPIURL        string
	flagTimeout       time.Duration
	flagStore         string
	flagStorePath     string
	flagReturnAddr    string
	flagDenyHosts     []string
	flagLogLevel      string
	flagLogFile       string
	flagNoColor       bool
	flagNoHistory     bool
	flagNoUpdateCheck bool

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the ShieldScan CLI. Without a
// subcommand it opens the interactive scanner.
var rootCmd = &cobra.Command{
	Use:           "shieldscan",
	Short:         "Scan a website you own for security weaknesses",
	Long:          "ShieldScan submits a website to the scanning engine and shows a graded report with remediation guidance. The first three findings are free; the full report is unlocked through checkout.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

// Execute runs the ShieldScan CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAPIURL, "api-url", "", "scanning engine base URL (default http://localhost:8000)")
	pf.DurationVar(&flagTimeout, "timeout", 0, "scan request timeout (default 60s)")
	pf.StringVar(&flagStore, "store", "", "result store backend: file|sqlite|memory")
	pf.StringVar(&flagStorePath, "store-path", "", "result store location (file or database path)")
	pf.StringVar(&flagReturnAddr, "return-addr", "", "loopback address that receives the checkout return (default 127.0.0.1:3000)")
	pf.StringSliceVar(&flagDenyHosts, "deny-host", nil, "hostname glob that may never be scanned (repeatable)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error|disabled")
	pf.StringVar(&flagLogFile, "log-file", "", "also write logs to this rotating file")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	pf.BoolVar(&flagNoHistory, "no-history", false, "do not record attempts in the local history")
	pf.BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable update check")
}
