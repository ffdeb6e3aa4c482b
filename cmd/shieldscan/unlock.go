package shieldscan

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/shieldscan/shieldscan/internal/checkout"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagPDF       string
	flagWait      time.Duration
	flagNoBrowser bool
)

func init() {
	unlockCmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the full report of the last scan",
		Long:  "Unlock opens checkout for the last scanned site and waits for the browser to return. Once payment completes the full report is printed.",
		Args:  cobra.NoArgs,
		RunE:  runUnlock,
	}
	unlockCmd.Flags().DurationVar(&flagWait, "wait", 15*time.Minute, "how long to wait for the checkout return")
	unlockCmd.Flags().BoolVar(&flagNoBrowser, "no-browser", false, "print the checkout URL instead of opening a browser")
	rootCmd.AddCommand(unlockCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume <return-url>",
		Short: "Reconcile a checkout return URL",
		Long:  "Resume applies a checkout return URL (for example one copied from the browser) and prints the unlocked report of the last scan.",
		Args:  cobra.ExactArgs(1),
		RunE:  runResume,
	}
	rootCmd.AddCommand(resumeCmd)

	for _, c := range []*cobra.Command{unlockCmd, resumeCmd} {
		c.Flags().StringVar(&flagPDF, "pdf", "", "also download the PDF report to this file")
		c.Flags().BoolVar(&flagFixes, "fixes", false, "print remediation for every visible finding")
	}
}

func runUnlock(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.store.Get()
	if errors.Is(err, store.ErrNotFound) {
		return errors.New("no stored scan result: run 'shieldscan scan' first")
	}
	if err != nil {
		return fmt.Errorf("read stored result: %w", err)
	}

	l, err := checkout.Listen(a.settings.ReturnAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	site := a.client.CheckoutURL(r.URL)
	out := cmd.ErrOrStderr()
	if flagNoBrowser {
		_, _ = fmt.Fprintf(out, "Open this URL to complete checkout:\n  %s\n", site)
	} else if err := checkout.Open(site); err != nil {
		a.log.Warn().Err(err).Msg("open browser")
		_, _ = fmt.Fprintf(out, "Could not open a browser. Open this URL to complete checkout:\n  %s\n", site)
	}
	_, _ = fmt.Fprintf(out, "Waiting for checkout to return to %s ...\n", l.ReturnURL())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flagWait)
	defer cancel()
	nav, err := l.Wait(ctx)
	if err != nil {
		return fmt.Errorf("checkout did not return: %w", err)
	}
	return finishReturn(cmd, a, nav)
}

func runResume(cmd *cobra.Command, args []string) error {
	nav, err := url.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid return url: %w", err)
	}
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	return finishReturn(cmd, a, nav)
}

// finishReturn reconciles nav and prints the outcome.
func finishReturn(cmd *cobra.Command, a *app, nav *url.URL) error {
	st, _, err := checkout.NewHandler(a.store).Enter(a.ctrl, nav)
	if err != nil {
		return err
	}
	if !st.PremiumUnlocked {
		return errors.New("checkout was not completed")
	}
	if st.Phase != session.Resulted {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Premium unlocked, but no stored scan result could be restored. Run 'shieldscan scan' again.")
		return nil
	}
	rep, err := stateReport(st)
	if err != nil {
		return err
	}
	if err := writeReport(cmd.OutOrStdout(), rep, 0); err != nil {
		return err
	}
	if flagPDF == "" {
		return nil
	}
	if !rep.PDFAvailable {
		return errors.New("the PDF report is not available for this result")
	}
	return downloadPDF(cmd.Context(), a, *rep.ID, flagPDF)
}

func downloadPDF(ctx context.Context, a *app, id int64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := a.client.DownloadPDF(ctx, id, f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("download PDF: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.log.Info().Str("path", path).Int64("bytes", n).Msg("saved PDF report")
	return nil
}
