package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/slicks/internal/core/domain"
)

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Fatal("empty config should be disabled")
	}
	if !(Config{URL: "postgres://localhost/slicks"}).Enabled() {
		t.Fatal("config with URL should be enabled")
	}
}

// TestCatalog runs against a live database when SLICKS_TEST_DATABASE_URL is set.
func TestCatalog(t *testing.T) {
	url := os.Getenv("SLICKS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SLICKS_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	cat := NewCatalog(db)

	dataset := "test-" + uuid.NewString()[:8]
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: start, End: start.Add(24 * time.Hour)}
	now := time.Now().UTC().Truncate(time.Millisecond)

	disc := domain.Run{
		ID: uuid.NewString(), Kind: domain.RunKindDiscovery, Dataset: dataset, Range: r,
		StartedAt: now, FinishedAt: now, Status: domain.RunStatusCompleted, Chunks: 1,
	}
	if err := cat.RecordDiscovery(ctx, disc, []string{"b", "a"}); err != nil {
		t.Fatalf("RecordDiscovery: %v", err)
	}

	scan := disc
	scan.ID = uuid.NewString()
	scan.Kind = domain.RunKindScan
	scan.StartedAt = now.Add(time.Second)
	windows := []WindowRecord{{Day: "2025-09-01", StartUTC: start, EndUTC: start.Add(time.Hour), Bins: 1, Rows: 10}}
	if err := cat.RecordScan(ctx, scan, windows); err != nil {
		t.Fatalf("RecordScan: %v", err)
	}

	names, err := cat.Sensors(ctx, dataset)
	if err != nil || len(names) != 2 || names[0] != "a" {
		t.Fatalf("unexpected sensors %v (%v)", names, err)
	}

	runs, err := cat.ListRuns(ctx, 50)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var found int
	for _, run := range runs {
		if run.Dataset == dataset {
			found++
		}
	}
	if found != 2 {
		t.Fatalf("expected 2 runs for %s, got %d", dataset, found)
	}

	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM windows WHERE run_id = $1`, scan.ID); err != nil || count != 1 {
		t.Fatalf("expected 1 window, got %d (%v)", count, err)
	}
}
