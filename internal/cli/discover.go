package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/slicks/internal/core/config"
)

var discoverFlags struct {
	start, end string
	chunkDays  int
	workers    int
	asJSON     bool
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List every distinct sensor name recorded in a time range",
	Args:  cobra.NoArgs,
	Run:   runDiscover,
}

func init() {
	f := discoverCmd.Flags()
	f.StringVar(&discoverFlags.start, "start", "", "range start (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&discoverFlags.end, "end", "", "range end, exclusive (RFC 3339 or YYYY-MM-DD)")
	f.IntVar(&discoverFlags.chunkDays, "chunk-days", 0, "initial chunk size in days (default from config)")
	f.IntVar(&discoverFlags.workers, "workers", 0, "parallel chunk workers (default from config)")
	f.BoolVar(&discoverFlags.asJSON, "json", false, "print the result as JSON")
	_ = discoverCmd.MarkFlagRequired("start")
	_ = discoverCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) {
	r, err := parseRange(discoverFlags.start, discoverFlags.end)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	s := newSession(func(cfg *config.AppConfig) {
		if discoverFlags.chunkDays > 0 {
			cfg.Discovery.ChunkSize = time.Duration(discoverFlags.chunkDays) * 24 * time.Hour
		}
		if discoverFlags.workers > 0 {
			cfg.Discovery.MaxWorkers = discoverFlags.workers
		}
	})
	defer s.close()

	res, err := s.app.Discover(s.ctx, r, progressPrinter("Discovering"))
	if err != nil {
		s.fail("Discovery failed", err)
	}

	if discoverFlags.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			s.fail("Failed to encode result", err)
		}
		return
	}

	for _, name := range res.Sensors {
		fmt.Println(name)
	}
	if !res.Complete() {
		fmt.Fprintf(os.Stderr, "warning: %d range(s) could not be queried; the list may be incomplete\n", len(res.Incomplete))
	}
}

// progressPrinter reports chunk progress on stderr.
func progressPrinter(label string) func(done, total int) {
	return func(done, total int) {
		fmt.Fprintf(os.Stderr, "\r%s: %d/%d chunks", label, done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
