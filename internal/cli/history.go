package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"zipstream/internal/domain"
	"zipstream/internal/ledger"
)

type historyCmdParams struct {
	limit   int
	parquet string
	ledger  string
}

var historyParams = &historyCmdParams{}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded archive transfers",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().IntVarP(&historyParams.limit, "limit", "n", 20, "Number of transfers to show (0 = all)")
	cmd.Flags().StringVar(&historyParams.parquet, "parquet", "", "Also export the listed transfers to this Parquet file")
	cmd.Flags().StringVar(&historyParams.ledger, "ledger", "", "Ledger file (default: ledger.path from the config)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := cfg.Ledger.Path
	if cmd.Flags().Changed("ledger") {
		path = historyParams.ledger
	}
	if path == "" {
		return fmt.Errorf("no ledger configured: set ledger.path or pass --ledger")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l, err := ledger.Open(ctx, path)
	if err != nil {
		return err
	}
	defer l.Close()

	transfers, err := l.List(ctx, historyParams.limit)
	if err != nil {
		return fmt.Errorf("failed to list transfers: %w", err)
	}
	summary, err := l.Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to summarise transfers: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(transfers) == 0 {
		fmt.Fprintln(out, "No transfers recorded")
	} else {
		formatTransferList(out, transfers)
		fmt.Fprintln(out)
		formatSummary(out, summary)
	}

	if historyParams.parquet != "" {
		if err := ledger.ExportParquet(historyParams.parquet, transfers); err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %d transfers to %s\n", len(transfers), historyParams.parquet)
	}
	return nil
}

func formatTransferList(w io.Writer, transfers []domain.Transfer) {
	maxIDWidth := len("ID")
	maxOutcomeWidth := len("OUTCOME")

	for _, t := range transfers {
		if len(t.ID) > maxIDWidth {
			maxIDWidth = len(t.ID)
		}
		if len(t.Outcome) > maxOutcomeWidth {
			maxOutcomeWidth = len(t.Outcome)
		}
	}

	maxIDWidth += 2
	maxOutcomeWidth += 2

	fmt.Fprintf(w, "%-*s %-*s %-19s %10s %10s %s\n",
		maxIDWidth, "ID",
		maxOutcomeWidth, "OUTCOME",
		"START TIME",
		"SIZE",
		"DURATION",
		"EXIT")

	fmt.Fprintf(w, "%s %s %s %s %s %s\n",
		strings.Repeat("-", maxIDWidth),
		strings.Repeat("-", maxOutcomeWidth),
		strings.Repeat("-", 19),
		strings.Repeat("-", 10),
		strings.Repeat("-", 10),
		strings.Repeat("-", 4))

	for _, t := range transfers {
		fmt.Fprintf(w, "%-*s %-*s %-19s %10s %10s %d\n",
			maxIDWidth, t.ID,
			maxOutcomeWidth, t.Outcome,
			t.StartTime.Local().Format("2006-01-02 15:04:05"),
			formatBytes(t.Bytes),
			t.Duration.Round(time.Millisecond),
			t.ExitCode)
	}
}

func formatSummary(w io.Writer, summary []ledger.OutcomeSummary) {
	var total int64
	for _, s := range summary {
		total += s.Transfers
	}
	fmt.Fprintf(w, "%d transfers recorded:", total)
	for _, s := range summary {
		fmt.Fprintf(w, " %s=%d (%s)", s.Outcome, s.Transfers, formatBytes(s.Bytes))
	}
	fmt.Fprintln(w)
}

// formatBytes renders n with a binary unit, e.g. 1.5 MiB.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
