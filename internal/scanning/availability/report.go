package availability

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vietddude/slicks/internal/core/domain"
)

// TimeWindow is one contiguous stretch of data.
type TimeWindow struct {
	StartUTC   time.Time `json:"start_utc"`
	EndUTC     time.Time `json:"end_utc"`
	StartLocal time.Time `json:"start_local"`
	EndLocal   time.Time `json:"end_local"`
	Rows       int64     `json:"row_count"`
	Bins       int       `json:"bins"`
}

// Duration returns the window width.
func (w TimeWindow) Duration() time.Duration {
	return w.EndUTC.Sub(w.StartUTC)
}

// Day holds the windows whose local start falls on Date.
type Day struct {
	Date    string       `json:"date"`
	Windows []TimeWindow `json:"windows"`
}

// Rows sums the row counts of the day.
func (d Day) Rows() int64 {
	var n int64
	for _, w := range d.Windows {
		n += w.Rows
	}
	return n
}

// Month groups days sharing a YYYY-MM prefix.
type Month struct {
	Key  string
	Days []Day
}

// Name renders the month as "January 2025".
func (m Month) Name() string {
	t, err := time.Parse("2006-01", m.Key)
	if err != nil {
		return m.Key
	}
	return t.Format("January 2006")
}

// Rows sums the row counts of the month.
func (m Month) Rows() int64 {
	var n int64
	for _, d := range m.Days {
		n += d.Rows()
	}
	return n
}

// Report is the outcome of one scan.
type Report struct {
	RunID    string           `json:"run_id"`
	Range    domain.TimeRange `json:"range"`
	Timezone string           `json:"timezone"`
	Bin      BinSize          `json:"bin"`
	Days     []Day            `json:"days"`
	// Incomplete lists ranges that could not be scanned.
	Incomplete []domain.TimeRange `json:"incomplete,omitempty"`
}

// Len returns the number of days with data.
func (r *Report) Len() int {
	return len(r.Days)
}

// DayKeys returns the dates with data in order.
func (r *Report) DayKeys() []string {
	keys := make([]string, len(r.Days))
	for i, d := range r.Days {
		keys[i] = d.Date
	}
	return keys
}

// TotalRows sums every window.
func (r *Report) TotalRows() int64 {
	var n int64
	for _, d := range r.Days {
		n += d.Rows()
	}
	return n
}

// Windows flattens the report in chronological order.
func (r *Report) Windows() []TimeWindow {
	var out []TimeWindow
	for _, d := range r.Days {
		out = append(out, d.Windows...)
	}
	return out
}

// Months groups days by calendar month.
func (r *Report) Months() []Month {
	var months []Month
	for _, d := range r.Days {
		key := d.Date[:7]
		if n := len(months); n > 0 && months[n-1].Key == key {
			months[n-1].Days = append(months[n-1].Days, d)
			continue
		}
		months = append(months, Month{Key: key, Days: []Day{d}})
	}
	return months
}

// Text renders the report as a month/day/window tree.
func (r *Report) Text() string {
	if len(r.Days) == 0 && len(r.Incomplete) == 0 {
		return "No data found in the specified time range."
	}

	p := message.NewPrinter(language.English)
	rule := strings.Repeat("=", 40)

	var b strings.Builder
	p.Fprintf(&b, "Data Availability (%s)\n%s\n", r.Timezone, rule)
	for _, m := range r.Months() {
		p.Fprintf(&b, "\n%s (%d days, %d rows)\n", m.Name(), len(m.Days), m.Rows())
		for _, d := range m.Days {
			p.Fprintf(&b, "   Day %s (%d %s, %d rows)\n",
				d.Date[8:], len(d.Windows), plural(len(d.Windows), "window"), d.Rows())
			for _, w := range d.Windows {
				p.Fprintf(&b, "      └─ %s → %s (%d rows)\n",
					w.StartLocal.Format("15:04"), w.EndLocal.Format("15:04"), w.Rows)
			}
		}
	}
	p.Fprintf(&b, "\n%s\nTotal: %d days, %d rows\n", rule, r.Len(), r.TotalRows())

	if len(r.Incomplete) > 0 {
		p.Fprintf(&b, "Incomplete: %d %s could not be scanned\n",
			len(r.Incomplete), plural(len(r.Incomplete), "range"))
		for _, ir := range r.Incomplete {
			p.Fprintf(&b, "   %s\n", ir.String())
		}
	}
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
