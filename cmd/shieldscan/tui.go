package shieldscan

import (
	"fmt"
	"net/url"

	"github.com/shieldscan/shieldscan/internal/tui"
	"github.com/spf13/cobra"
)

var (
	flagReturnURL string
	flagPDFDir    string
)

func init() {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive scanner",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(cmd)

	for _, c := range []*cobra.Command{rootCmd, cmd} {
		c.Flags().StringVar(&flagReturnURL, "return-url", "", "checkout return URL to reconcile on start")
		c.Flags().StringVar(&flagPDFDir, "pdf-dir", ".", "directory premium PDF reports are saved to")
	}
}

func runTUI(_ *cobra.Command, _ []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := tui.Options{
		Controller: a.ctrl,
		Store:      a.store,
		ReturnAddr: a.settings.ReturnAddr,
		PDF:        a.client,
		PDFDir:     flagPDFDir,
		PrefsPath:  tui.DefaultPrefsPath(),
	}
	if flagReturnURL != "" {
		u, err := url.Parse(flagReturnURL)
		if err != nil {
			return fmt.Errorf("invalid return url: %w", err)
		}
		opts.ReturnURL = u
	}
	return tui.Run(opts)
}
