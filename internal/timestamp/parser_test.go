package timestamp

import (
	"testing"
	"time"
)

func TestParseString_Layouts(t *testing.T) {
	t.Parallel()
	p := NewParser()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC3339", "2024-01-15T10:30:45Z", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z", time.Date(2024, 1, 15, 10, 30, 45, 123456789, time.UTC)},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00", time.Date(2024, 1, 15, 5, 30, 45, 0, time.UTC)},
		{"space separated", "2024-01-15 10:30:45", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"millis", "2024-01-15 10:30:45.123", time.Date(2024, 1, 15, 10, 30, 45, 123000000, time.UTC)},
		{"comma decimal", "2024-01-15 10:30:45,123", time.Date(2024, 1, 15, 10, 30, 45, 123000000, time.UTC)},
		{"access log", "10/Oct/2023:13:55:36 -0700", time.Date(2023, 10, 10, 20, 55, 36, 0, time.UTC)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := p.ParseString(tt.input)
			if !ok {
				t.Fatalf("ParseString(%q) did not parse", tt.input)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseString_NoTimestamp(t *testing.T) {
	t.Parallel()
	p := NewParser()

	if _, ok := p.ParseString("just a regular log message"); ok {
		t.Error("should not parse plain text")
	}
	if _, ok := p.ParseString(""); ok {
		t.Error("ParseString empty string should return false")
	}
}

func TestParseTimestamp_UnixSeconds(t *testing.T) {
	t.Parallel()
	p := NewParser()

	// 946684800 = 2000-01-01T00:00:00Z
	ts, ok := p.ParseTimestamp(float64(946684800))
	if !ok {
		t.Fatal("ParseTimestamp unix seconds failed")
	}
	if ts.Year() != 2000 {
		t.Errorf("unix seconds year = %d, want 2000", ts.Year())
	}
}

func TestParseTimestamp_UnixMillis(t *testing.T) {
	t.Parallel()
	p := NewParser()

	ts, ok := p.ParseTimestamp(int64(1705312245000))
	if !ok {
		t.Fatal("ParseTimestamp unix millis failed")
	}
	want := time.Date(2024, 1, 15, 9, 50, 45, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("unix millis = %v, want %v", ts, want)
	}
}

func TestParseTimestamp_UnixNanos(t *testing.T) {
	t.Parallel()
	p := NewParser()

	// 1.6e18 ns = 1.6e9 seconds, September 2020
	ts, ok := p.ParseTimestamp(float64(1600000000000000000))
	if !ok {
		t.Fatal("ParseTimestamp unix nanos failed")
	}
	if ts.Year() != 2020 {
		t.Errorf("unix nanos year = %d, want 2020", ts.Year())
	}
}

func TestParseTimestamp_NumericString(t *testing.T) {
	t.Parallel()
	p := NewParser()

	ts, ok := p.ParseTimestamp("946684800")
	if !ok {
		t.Fatal("ParseTimestamp numeric string failed")
	}
	if ts.Year() != 2000 {
		t.Errorf("numeric string year = %d, want 2000", ts.Year())
	}
}

func TestParseTimestamp_Rejects(t *testing.T) {
	t.Parallel()
	p := NewParser()

	for _, v := range []interface{}{"", float64(0), float64(-5), true, nil} {
		if _, ok := p.ParseTimestamp(v); ok {
			t.Errorf("ParseTimestamp(%#v) should return false", v)
		}
	}
}

func TestParseString_CompactDates(t *testing.T) {
	t.Parallel()
	p := NewParser()

	tests := []struct {
		input string
		want  time.Time
	}{
		{"20240301", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"20240301T101500Z", time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)},
		{"20240301T101500", time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := p.ParseString(tt.input)
		if !ok || !got.Equal(tt.want) {
			t.Errorf("ParseString(%q) = %v, %v; want %v", tt.input, got, ok, tt.want)
		}
	}

	// Ten digits is still a unix second count.
	if got, ok := p.ParseString("1700000000"); !ok || got.Unix() != 1700000000 {
		t.Errorf("ParseString(unix seconds) = %v, %v", got, ok)
	}
}

func TestParseTimestamp_OutOfRange(t *testing.T) {
	t.Parallel()
	p := NewParser()

	for _, v := range []interface{}{float64(1e20), "1e20", float64(-5)} {
		if got, ok := p.ParseTimestamp(v); ok {
			t.Errorf("ParseTimestamp(%v) = %v, want unknown", v, got)
		}
	}
}
