package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent discovery and scan runs",
	Args:  cobra.NoArgs,
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	s := newSession()
	defer s.close()

	runs, err := s.app.History(s.ctx, historyLimit)
	if err != nil {
		s.fail("Failed to list runs", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RUN\tKIND\tDATASET\tRANGE\tSTATUS\tCHUNKS\tGAPS\tTOOK")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s → %s\t%s\t%d\t%d\t%s\n",
			r.ID[:8], r.Kind, r.Dataset,
			r.Range.Start.Format("2006-01-02"), r.Range.End.Format("2006-01-02"),
			r.Status, r.Chunks, r.Incomplete, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	_ = w.Flush()
}
