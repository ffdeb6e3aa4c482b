package shieldscan

import (
	"errors"
	"fmt"

	"github.com/shieldscan/shieldscan/internal/gate"
	"github.com/shieldscan/shieldscan/internal/report"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/spf13/cobra"
)

var flagStoreJSON bool

func init() {
	storeCmd := &cobra.Command{Use: "store", Short: "Inspect the saved scan result"}
	rootCmd.AddCommand(storeCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the free report of the saved scan result",
		Args:  cobra.NoArgs,
		RunE:  runStoreShow,
	}
	showCmd.Flags().BoolVar(&flagStoreJSON, "json", false, "emit the report as JSON")
	storeCmd.AddCommand(showCmd)

	storeCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved scan result",
		Args:  cobra.NoArgs,
		RunE:  runStoreClear,
	})
}

func runStoreShow(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.store.Get()
	var derr *store.DecodeError
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No saved scan result.")
		return nil
	case errors.As(err, &derr):
		return fmt.Errorf("saved result is unreadable (run 'shieldscan store clear'): %w", err)
	case err != nil:
		return err
	}
	rep := gate.Build(r, false)
	if flagStoreJSON {
		return report.WriteJSON(cmd.OutOrStdout(), rep)
	}
	report.PrintText(cmd.OutOrStdout(), rep, report.PrintOptions{NoColor: flagNoColor || !isTerminal(stdout)})
	return nil
}

func runStoreClear(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.store.Clear(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cleared saved scan result.")
	return nil
}
