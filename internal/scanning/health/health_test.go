package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vietddude/slicks/internal/core/domain"
)

func ok(ctx context.Context) error { return nil }

func failing(ctx context.Context) error { return errors.New("connection refused") }

func TestMonitor_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		depth  int64
		want   SystemStatus
	}{
		{"all healthy", []Check{{Name: "store", Required: true, Fn: ok}}, 0, StatusHealthy},
		{"optional failure", []Check{{Name: "store", Required: true, Fn: ok}, {Name: "catalog", Fn: failing}}, 0, StatusDegraded},
		{"required failure", []Check{{Name: "store", Required: true, Fn: failing}}, 0, StatusCritical},
		{"backlog", []Check{{Name: "store", Required: true, Fn: ok}}, 500, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queueLen := func(ctx context.Context, kind domain.RunKind, dataset string) (int64, error) {
				return tt.depth, nil
			}
			m := NewMonitor(tt.checks, queueLen, "WFR25", 100)
			report := m.CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Fatalf("expected %s, got %s (%+v)", tt.want, report.SystemStatus, report)
			}
			if len(report.Queues) != 2 {
				t.Fatalf("expected both queues reported, got %+v", report.Queues)
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	calls := 0
	check := Check{Name: "store", Fn: func(ctx context.Context) error {
		calls++
		return nil
	}}
	m := NewMonitor([]Check{check}, nil, "WFR25", 0)
	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	if calls != 1 {
		t.Fatalf("expected one check within the cache window, got %d", calls)
	}
}

func TestServer_Endpoints(t *testing.T) {
	m := NewMonitor([]Check{{Name: "store", Required: true, Fn: failing}}, nil, "WFR25", 0)
	srv := httptest.NewServer(NewServer(m, ":0").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["status"] != "critical" {
		t.Fatalf("unexpected body %v (%v)", body, err)
	}

	mresp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer mresp.Body.Close()
	if mresp.StatusCode != http.StatusOK || !strings.Contains(mresp.Header.Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected metrics response %d %q", mresp.StatusCode, mresp.Header.Get("Content-Type"))
	}
}
