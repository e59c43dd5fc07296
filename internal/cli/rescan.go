package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rescanWatch bool

var rescanCmd = &cobra.Command{
	Use:       "rescan discovery|scan",
	Short:     "Re-run the queued incomplete ranges of a workflow",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"discovery", "scan"},
	Run:       runRescan,
}

func init() {
	rescanCmd.Flags().BoolVar(&rescanWatch, "watch", false, "keep draining the queue until interrupted")
	rootCmd.AddCommand(rescanCmd)
}

func runRescan(cmd *cobra.Command, args []string) {
	kind, err := parseKind(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	s := newSession()
	defer s.close()

	if rescanWatch {
		if err := s.app.WatchRescan(s.ctx, kind); err != nil {
			s.fail("Rescan worker failed", err)
		}
		return
	}

	res, err := s.app.Rescan(s.ctx, kind)
	if err != nil {
		s.fail("Rescan failed", err)
	}
	fmt.Printf("processed %d, failed %d, re-queued %d range(s)\n", res.Processed, res.Failed, res.Requeued)
}
