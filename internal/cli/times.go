package cli

import (
	"fmt"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
)

// parseTime accepts RFC 3339 or a bare YYYY-MM-DD date taken as UTC midnight.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339 or YYYY-MM-DD)", s)
}

// parseRange builds the half-open range [start, end).
func parseRange(start, end string) (domain.TimeRange, error) {
	if start == "" || end == "" {
		return domain.TimeRange{}, fmt.Errorf("--start and --end are required")
	}
	s, err := parseTime(start)
	if err != nil {
		return domain.TimeRange{}, err
	}
	e, err := parseTime(end)
	if err != nil {
		return domain.TimeRange{}, err
	}
	return domain.NewTimeRange(s, e)
}

// parseKind maps a command argument to a run kind.
func parseKind(s string) (domain.RunKind, error) {
	switch domain.RunKind(s) {
	case domain.RunKindDiscovery, domain.RunKindScan:
		return domain.RunKind(s), nil
	default:
		return "", fmt.Errorf("unknown kind %q (want discovery or scan)", s)
	}
}
