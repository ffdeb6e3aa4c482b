package shieldscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/briandowns/spinner"
	"github.com/shieldscan/shieldscan/internal/gate"
	"github.com/shieldscan/shieldscan/internal/report"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/update"
	"github.com/spf13/cobra"
)

var (
	flagAuthorized bool
	flagJSON       bool
	flagSARIF      bool
	flagTable      bool
	flagFixes      bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan <domain>",
		Short: "Scan a website and print the report",
		Long:  "Scan submits a domain to the scanning engine and prints the graded report. You must confirm with --authorized that you are allowed to scan the site.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
		Example: `
shieldscan scan example.com --authorized
shieldscan scan https://example.com --authorized --fixes
shieldscan scan example.com --authorized --sarif > shieldscan.sarif`,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().BoolVar(&flagAuthorized, "authorized", false, "confirm you are authorized to scan this website")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "emit the report as JSON")
	cmd.Flags().BoolVar(&flagSARIF, "sarif", false, "emit SARIF 2.1.0")
	cmd.Flags().BoolVar(&flagTable, "table", false, "print findings as a table")
	cmd.Flags().BoolVar(&flagFixes, "fixes", false, "print remediation for every visible finding")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	machine := flagJSON || flagSARIF
	if !machine && !flagNoUpdateCheck {
		if latest, newer, _ := update.NewChecker().Check(ctx, version, false); newer && latest != "" {
			_, _ = fmt.Fprintf(os.Stderr, "(new version available: v%s)  run 'shieldscan update' to upgrade\n", latest)
		}
	}

	job, err := a.ctrl.Begin(ctx, args[0], flagAuthorized)
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	if !machine && isTerminal(os.Stderr) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Scanning " + job.URL + "..."
		s.Start()
	}
	state := a.ctrl.Complete(job, job.Run())
	if s != nil {
		s.Stop()
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return errors.New("scan interrupted")
	}
	rep, err := stateReport(state)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), rep, time.Since(job.Started))
}

func writeReport(w io.Writer, rep gate.Report, elapsed time.Duration) error {
	switch {
	case flagJSON:
		return report.WriteJSON(w, rep)
	case flagSARIF:
		return report.WriteSARIF(w, rep, version)
	}
	opts := report.PrintOptions{NoColor: flagNoColor || !isTerminal(os.Stdout), Fixes: flagFixes, Duration: elapsed}
	if flagTable {
		return report.PrintTable(w, rep, opts)
	}
	report.PrintText(w, rep, opts)
	return nil
}

// stateReport is the report of st, or an error naming what is missing.
func stateReport(st session.State) (gate.Report, error) {
	if rep, ok := st.Report(); ok {
		return rep, nil
	}
	if st.ErrorMessage != "" {
		return gate.Report{}, errors.New(st.ErrorMessage)
	}
	return gate.Report{}, errors.New("no scan result available")
}
