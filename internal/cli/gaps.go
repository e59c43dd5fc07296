package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/slicks/internal/core/domain"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps [discovery|scan]",
	Short: "List the incomplete ranges waiting for a rescan",
	Args:  cobra.MaximumNArgs(1),
	Run:   runGaps,
}

func init() {
	rootCmd.AddCommand(gapsCmd)
}

func runGaps(cmd *cobra.Command, args []string) {
	kinds := []domain.RunKind{domain.RunKindDiscovery, domain.RunKindScan}
	if len(args) == 1 {
		kind, err := parseKind(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		kinds = []domain.RunKind{kind}
	}

	s := newSession()
	defer s.close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tSTART\tEND\tDURATION")
	for _, kind := range kinds {
		ranges, err := s.app.Gaps(s.ctx, kind)
		if err != nil {
			s.fail("Failed to list gaps", err)
		}
		for _, r := range ranges {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind,
				r.Start.Format("2006-01-02 15:04:05"), r.End.Format("2006-01-02 15:04:05"), r.Duration())
		}
	}
	_ = w.Flush()
}
