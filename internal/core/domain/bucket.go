package domain

import "time"

// Bucket is a non-empty fixed-width time bucket reported by the store.
type Bucket struct {
	Start time.Time
	Count int64
}

// Window is a maximal run of contiguous buckets.
// End - Start == Buckets * step.
type Window struct {
	Start   time.Time
	End     time.Time
	Buckets int
	Rows    int64
}

// Duration returns the width of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
