package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestampFormats(t *testing.T) {
	cases := []string{
		"2025-06-01T10:30:00.500",
		"2025-06-01T10:30:00",
		"2025-06-01 10:30:00.500",
		"2025-06-01 10:30:00",
		"2025-06-01T10:30:00Z",
		"2025-06-01T10:30:00.123456789Z",
	}
	for _, raw := range cases {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if ts.Year() != 2025 || ts.Month() != time.June || ts.Hour() != 10 || ts.Minute() != 30 {
			t.Fatalf("parse %q: unexpected time %v", raw, ts)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	if _, err := ParseTimestamp("01/06/2025 10:30"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestTimeUnmarshalNullAndEmpty(t *testing.T) {
	for _, raw := range []string{`null`, `""`} {
		var ts Time
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !ts.IsZero() {
			t.Fatalf("expected zero time for %s, got %v", raw, ts.Time)
		}
	}
}

func TestTimeRoundTrip(t *testing.T) {
	var ts Time
	if err := json.Unmarshal([]byte(`"2025-06-01T10:30:00"`), &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2025-06-01T10:30:00"` {
		t.Fatalf("unexpected wire form %s", out)
	}
}

func TestTimeMarshalZeroAsNull(t *testing.T) {
	out, err := json.Marshal(Time{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "null" {
		t.Fatalf("expected null, got %s", out)
	}
}
