package shieldscan

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shieldscan/shieldscan/internal/history"
	"github.com/spf13/cobra"
)

var (
	flagHistoryLimit  int
	flagHistoryDelete int
	flagHistoryClear  bool
	flagHistoryJSON   bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scan attempts",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "show at most this many attempts (0 = all)")
	cmd.Flags().IntVar(&flagHistoryDelete, "delete", 0, "delete the attempt with this number")
	cmd.Flags().BoolVar(&flagHistoryClear, "clear", false, "delete all recorded attempts")
	cmd.Flags().BoolVar(&flagHistoryJSON, "json", false, "emit JSON")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	h := a.historyLog()
	out := cmd.OutOrStdout()

	switch {
	case flagHistoryClear:
		if err := h.Clear(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, "Cleared history.")
		return nil
	case flagHistoryDelete > 0:
		if err := h.Delete(flagHistoryDelete - 1); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Deleted attempt %d.\n", flagHistoryDelete)
		return nil
	}

	records, err := h.Load()
	if err != nil {
		return err
	}
	if flagHistoryLimit > 0 && len(records) > flagHistoryLimit {
		records = records[:flagHistoryLimit]
	}
	if flagHistoryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No recorded attempts.")
		return nil
	}
	return renderHistory(cmd, records)
}

func renderHistory(cmd *cobra.Command, records []history.Record) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("#", "When", "Domain", "Outcome", "Score", "Issues", "Duration")
	for i, r := range records {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%d (%s)", *r.Score, r.Grade)
		}
		outcome := string(r.Outcome)
		if r.Message != "" {
			outcome += ": " + r.Message
		}
		if err := table.Append(
			strconv.Itoa(i+1),
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			r.Domain,
			outcome,
			score,
			strconv.Itoa(r.Issues),
			r.Duration,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
