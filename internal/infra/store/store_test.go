package store

import (
	"testing"
	"time"
)

func TestQuoteTable(t *testing.T) {
	if got := QuoteTable("iox", "WFR25"); got != `"iox"."WFR25"` {
		t.Errorf("unexpected %s", got)
	}
	if got := QuoteQualified("iox.WFR25"); got != `"iox"."WFR25"` {
		t.Errorf("unexpected %s", got)
	}
	if got := QuoteQualified("WFR25"); got != `"WFR25"` {
		t.Errorf("unexpected %s", got)
	}
	if got := QuoteIdent(`sig"nal`); got != `"sig""nal"` {
		t.Errorf("unexpected %s", got)
	}
}

func TestTable_Column(t *testing.T) {
	tbl := &Table{
		Columns: []string{"bucket", "n"},
		Rows:    [][]any{{"a", int64(1)}, {"b", int64(2)}},
	}
	col, err := tbl.Column("n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(col) != 2 || col[1] != int64(2) {
		t.Errorf("unexpected column %v", col)
	}
	if _, err := tbl.Column("missing"); err == nil {
		t.Error("expected error for missing column")
	}
	var empty *Table
	if empty.NumRows() != 0 {
		t.Error("nil table should have zero rows")
	}
}

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2025, 1, 1, 7, 0, 0, 0, loc)
	if got := Timestamp(ts); got != "2025-01-01T12:00:00Z" {
		t.Errorf("unexpected %s", got)
	}
}

func TestConfig_TableRef(t *testing.T) {
	cfg := Config{Database: "WFR25"}
	if got := cfg.TableRef(); got != `"iox"."WFR25"` {
		t.Errorf("unexpected %s", got)
	}
	cfg = Config{Database: "WFR25", Schema: "public", Table: "telemetry"}
	if got := cfg.TableRef(); got != `"public"."telemetry"` {
		t.Errorf("unexpected %s", got)
	}
	if got := cfg.Dataset(); got != "WFR25.telemetry" {
		t.Errorf("unexpected dataset %s", got)
	}
}
