package flight

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw     string
		target  string
		withTLS bool
	}{
		{"http://localhost:8086", "localhost:8086", false},
		{"https://us-east-1-1.aws.cloud2.influxdata.com", "us-east-1-1.aws.cloud2.influxdata.com:443", true},
		{"http://influx", "influx:80", false},
		{"localhost:8181", "localhost:8181", false},
	}

	for _, tt := range tests {
		target, useTLS, err := parseTarget(tt.raw)
		if err != nil {
			t.Errorf("parseTarget(%q) failed: %v", tt.raw, err)
			continue
		}
		if target != tt.target || useTLS != tt.withTLS {
			t.Errorf("parseTarget(%q) = %s,%v want %s,%v", tt.raw, target, useTLS, tt.target, tt.withTLS)
		}
	}

	if _, _, err := parseTarget(""); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestEncodeTicket(t *testing.T) {
	raw, err := encodeTicket("WFR25", "SELECT 1")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("ticket is not json: %v", err)
	}
	if got["database"] != "WFR25" || got["sql_query"] != "SELECT 1" || got["query_type"] != "sql" {
		t.Errorf("unexpected ticket %v", got)
	}
}

func TestValue_StringsAndNulls(t *testing.T) {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.Append("PackCurrent")
	b.AppendNull()

	arr := b.NewStringArray()
	defer arr.Release()

	if got := Value(arr, 0); got != "PackCurrent" {
		t.Errorf("unexpected %v", got)
	}
	if got := Value(arr, 1); got != nil {
		t.Errorf("expected nil for null, got %v", got)
	}
}

func TestValue_Timestamp(t *testing.T) {
	want := time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC)

	b := array.NewTimestampBuilder(memory.DefaultAllocator, &arrow.TimestampType{Unit: arrow.Nanosecond})
	defer b.Release()
	b.Append(arrow.Timestamp(want.UnixNano()))

	arr := b.NewTimestampArray()
	defer arr.Release()

	got, ok := Value(arr, 0).(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", Value(arr, 0))
	}
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestValue_Int64(t *testing.T) {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Append(42)

	arr := b.NewInt64Array()
	defer arr.Release()

	if got := Value(arr, 0); got != int64(42) {
		t.Errorf("unexpected %v", got)
	}
}
