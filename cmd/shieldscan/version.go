package shieldscan

import (
	"fmt"

	"github.com/shieldscan/shieldscan/internal/update"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "shieldscan", currentVersion())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Update shieldscan to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			latest, newer, err := update.NewChecker().Check(cmd.Context(), currentVersion(), false)
			if err == nil && latest != "" && !newer {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "shieldscan %s is up to date\n", currentVersion())
				return nil
			}
			v, err := selfUpdate()
			if err != nil {
				return fmt.Errorf("self update: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated to v%s\n", v)
			return nil
		},
	})
}
