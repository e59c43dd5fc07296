package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/scanning/metrics"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Check is a named dependency probe. A failing required check makes the
// system critical; an optional one only degrades it.
type Check struct {
	Name     string
	Required bool
	Fn       CheckFunc
}

// QueueLen reads the depth of a rescan queue.
type QueueLen func(ctx context.Context, kind domain.RunKind, dataset string) (int64, error)

// Monitor aggregates health status from the store, queue and catalog.
type Monitor struct {
	checks     []Check
	queueLen   QueueLen
	dataset    string
	maxBacklog int64
	cacheFor   time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. queueLen may be nil when no
// queue is configured.
func NewMonitor(checks []Check, queueLen QueueLen, dataset string, maxBacklog int64) *Monitor {
	return &Monitor{
		checks:     checks,
		queueLen:   queueLen,
		dataset:    dataset,
		maxBacklog: maxBacklog,
		cacheFor:   10 * time.Second,
	}
}

// CheckHealth runs every check, at most once per cache interval.
func (m *Monitor) CheckHealth(ctx context.Context) *HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return m.lastReport
	}

	report := &HealthReport{SystemStatus: StatusHealthy}
	for _, c := range m.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.Fn(checkCtx)
		cancel()

		ch := ComponentHealth{Name: c.Name, Status: StatusHealthy}
		if err != nil {
			ch.Error = err.Error()
			ch.Status = StatusDegraded
			if c.Required {
				ch.Status = StatusCritical
			}
		}
		report.Components = append(report.Components, ch)
		report.SystemStatus = worst(report.SystemStatus, ch.Status)
	}

	if m.queueLen != nil {
		for _, kind := range []domain.RunKind{domain.RunKindDiscovery, domain.RunKindScan} {
			depth, err := m.queueLen(ctx, kind, m.dataset)
			if err != nil {
				continue
			}
			metrics.QueueDepth.WithLabelValues(string(kind), m.dataset).Set(float64(depth))

			q := QueueHealth{Kind: string(kind), Dataset: m.dataset, Depth: depth, Status: StatusHealthy}
			if m.maxBacklog > 0 && depth > m.maxBacklog {
				q.Status = StatusDegraded
			}
			report.Queues = append(report.Queues, q)
			report.SystemStatus = worst(report.SystemStatus, q.Status)
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
