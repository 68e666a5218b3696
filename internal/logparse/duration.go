package logparse

import (
	"math"
	"strings"
)

// NormalizeResponseTime converts a response time to milliseconds.
//
// This is a best-effort heuristic, not a parsing guarantee: when key does not
// name a millisecond unit and the magnitude is below threshold, the value is
// assumed to be in seconds and multiplied by 1000. A genuine 0.5ms latency
// logged without a unit will therefore be reported as 500ms.
func NormalizeResponseTime(value float64, key string, threshold float64) float64 {
	if denotesMillis(key) {
		return value
	}
	if denotesSeconds(key) {
		return value * 1000
	}
	if math.Abs(value) < threshold {
		return value * 1000
	}
	return value
}

func denotesMillis(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, "ms") || strings.Contains(k, "_ms") || strings.Contains(k, "millis")
}

// denotesSeconds reports an explicit seconds unit such as "duration_s" or a bare "s" suffix.
func denotesSeconds(key string) bool {
	k := strings.ToLower(key)
	return k == "s" || strings.HasSuffix(k, "_s") || strings.HasSuffix(k, "_sec") || strings.HasSuffix(k, "_seconds")
}
