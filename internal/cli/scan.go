package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/slicks/internal/scanning/availability"
)

var scanFlags struct {
	start, end string
	tz         string
	bin        string
	noCounts   bool
	asJSON     bool
	out        string
	parquet    string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Show the time windows that contain data",
	Args:  cobra.NoArgs,
	Run:   runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&scanFlags.start, "start", "", "range start (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&scanFlags.end, "end", "", "range end, exclusive (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&scanFlags.tz, "tz", "", "display timezone, e.g. America/Toronto (default from config)")
	f.StringVar(&scanFlags.bin, "bin", "", "bin size: hour or day (default from config)")
	f.BoolVar(&scanFlags.noCounts, "no-counts", false, "omit row counts")
	f.BoolVar(&scanFlags.asJSON, "json", false, "print the report as JSON")
	f.StringVar(&scanFlags.out, "out", "", "write the JSON report to FILE (.zst compresses)")
	f.StringVar(&scanFlags.parquet, "parquet", "", "write one row per window to FILE")
	_ = scanCmd.MarkFlagRequired("start")
	_ = scanCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) {
	r, err := parseRange(scanFlags.start, scanFlags.end)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	s := newSession()
	defer s.close()

	opts := s.app.ScanOptions()
	if scanFlags.tz != "" {
		opts.Timezone = scanFlags.tz
	}
	if scanFlags.bin != "" {
		bin, err := availability.ParseBinSize(scanFlags.bin)
		if err != nil {
			s.fail("Invalid --bin", err)
		}
		opts.Bin = bin
	}
	opts.IncludeCounts = !scanFlags.noCounts

	rep, err := s.app.Scan(s.ctx, r, opts, progressPrinter("Scanning"))
	if err != nil {
		s.fail("Scan failed", err)
	}

	if scanFlags.parquet != "" {
		if err := availability.WriteParquet(scanFlags.parquet, rep); err != nil {
			s.fail("Failed to write parquet", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %d windows to %s\n", len(rep.Windows()), scanFlags.parquet)
	}
	if scanFlags.out != "" {
		if err := availability.WriteJSON(scanFlags.out, rep); err != nil {
			s.fail("Failed to write report", err)
		}
	}

	if scanFlags.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			s.fail("Failed to encode report", err)
		}
		return
	}
	fmt.Print(rep.Text())
	fmt.Println()
}
