package availability

import (
	"fmt"
	"strings"
	"time"
)

// BinSize is the scan granularity.
type BinSize string

const (
	BinHour BinSize = "hour"
	BinDay  BinSize = "day"
)

// ParseBinSize accepts "hour" or "day". Empty means hour.
func ParseBinSize(s string) (BinSize, error) {
	switch BinSize(strings.ToLower(strings.TrimSpace(s))) {
	case "", BinHour:
		return BinHour, nil
	case BinDay:
		return BinDay, nil
	default:
		return "", fmt.Errorf("unknown bin size %q (want hour or day)", s)
	}
}

// Step returns the bin width.
func (b BinSize) Step() time.Duration {
	if b == BinDay {
		return 24 * time.Hour
	}
	return time.Hour
}

// Interval returns the SQL interval literal for DATE_BIN.
func (b BinSize) Interval() string {
	if b == BinDay {
		return "1 day"
	}
	return "1 hour"
}
