package timestamp

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// AccessLogLayout is the bracketed timestamp layout of combined access logs.
const AccessLogLayout = "02/Jan/2006:15:04:05 -0700"

// compactLayouts are digit-only date forms tried before a string is read as a unix number.
var compactLayouts = []string{
	"20060102T150405Z0700",
	"20060102T150405",
	"20060102",
}

// Parser converts timestamp values found in log records into time.Time.
type Parser struct {
	layouts []string
}

// NewParser creates a parser with the default layout list.
func NewParser() *Parser {
	return &Parser{
		layouts: []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05.999999999",
			"2006-01-02 15:04:05.999999999Z07:00",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04:05,999",
			AccessLogLayout,
			"02/Jan/2006:15:04:05",
			time.RFC1123Z,
			time.RFC1123,
			time.UnixDate,
			time.RubyDate,
		},
	}
}

// ParseTimestamp parses a string or numeric timestamp value.
// Strings holding only digits are treated like numbers.
func (p *Parser) ParseTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		return p.ParseString(v)
	case float64:
		return parseUnixTimestamp(v)
	case float32:
		return parseUnixTimestamp(float64(v))
	case int:
		return parseUnixTimestamp(float64(v))
	case int64:
		return parseUnixTimestamp(float64(v))
	case uint64:
		return parseUnixTimestamp(float64(v))
	case time.Time:
		return v, !v.IsZero()
	}
	return time.Time{}, false
}

// ParseString parses a textual timestamp against the known layouts.
func (p *Parser) ParseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range compactLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return parseUnixTimestamp(n)
	}
	for _, layout := range p.layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseUnixTimestamp picks the unit from the magnitude:
// > 1e18 ns, > 1e15 us, > 1e12 ms, otherwise seconds.
// Values that do not fit int64 nanoseconds are unknown.
func parseUnixTimestamp(v float64) (time.Time, bool) {
	if v <= 0 || math.IsNaN(v) || v >= 1<<63 {
		return time.Time{}, false
	}
	switch {
	case v > 1e18:
		return time.Unix(0, int64(v)).UTC(), true
	case v > 1e15:
		return time.UnixMicro(int64(v)).UTC(), true
	case v > 1e12:
		return time.UnixMilli(int64(v)).UTC(), true
	default:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
}
