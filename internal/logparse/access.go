package logparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
	"github.com/tinytelemetry/logsift/internal/timestamp"
)

// accessLineRe matches the common/combined access log shape:
//
//	127.0.0.1 - frank [10/Oct/2000:13:55:36 -0700] "GET /a.gif HTTP/1.0" 200 2326 "ref" "agent" 0.123
//
// Referer/agent and everything after them are optional.
var accessLineRe = regexp.MustCompile(
	`^(\S+)\s+\S+\s+\S+\s+\[([^\]]+)\]\s+"([^"]*)"\s+(\d+)\s+(\d+|-)(?:\s+"([^"]*)"\s+"([^"]*)")?(.*)$`,
)

// responseTimeRe picks a response time out of the text trailing an access line.
var responseTimeRe = regexp.MustCompile(
	`(?:^|\s)(?:(rt|request_time|response_time|upstream_response_time|duration)[=:])?"?(\d+(?:\.\d+)?)(ms|s)?"?$`,
)

type accessParser struct {
	format       Format
	requireTimed bool
	threshold    float64
}

// NewCombinedParser parses access log lines; a trailing response time is optional.
func NewCombinedParser(opts Options) Parser {
	opts = opts.withDefaults()
	return &accessParser{format: FormatCombined, threshold: opts.SecondsThreshold}
}

// NewTimedParser parses access log lines that must end with a response time.
func NewTimedParser(opts Options) Parser {
	opts = opts.withDefaults()
	return &accessParser{format: FormatCombinedTimed, requireTimed: true, threshold: opts.SecondsThreshold}
}

func (p *accessParser) Format() Format {
	return p.format
}

func (p *accessParser) Detect(line string) float64 {
	m := accessLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0
	}
	if !p.requireTimed {
		return 1
	}
	if _, _, ok := extractResponseTime(m[8]); ok {
		return 1
	}
	return 0.5
}

func (p *accessParser) Parse(line string) (model.Record, error) {
	m := accessLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNoMatch, p.format)
	}

	status, err := strconv.Atoi(m[4])
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: status %q", ErrNoMatch, m[4])
	}

	rec := model.Record{
		ClientAddress: m[1],
		StatusCode:    status,
	}

	// An unparseable bracketed time leaves the timestamp unknown.
	if ts, err := time.Parse(timestamp.AccessLogLayout, m[2]); err == nil {
		rec.Timestamp = ts
	}

	rec.Method, rec.Endpoint, rec.Protocol = splitRequest(m[3])
	rec.Referer = dashEmpty(m[6])
	rec.UserAgent = dashEmpty(m[7])

	if m[5] != "-" {
		if size, err := strconv.ParseInt(m[5], 10, 64); err == nil {
			rec.ResponseSizeBytes = size
			rec.HasResponseSize = true
		}
	}

	value, key, ok := extractResponseTime(m[8])
	switch {
	case ok:
		rec.ResponseTimeMs = NormalizeResponseTime(value, key, p.threshold)
		rec.HasResponseTime = true
	case p.requireTimed:
		return model.Record{}, fmt.Errorf("%w: %s requires a response time", ErrNoMatch, p.format)
	}

	return rec, nil
}

// splitRequest breaks a quoted request line into method, path and protocol.
// Malformed request lines are kept whole as the endpoint.
func splitRequest(request string) (method, path, protocol string) {
	parts := strings.Fields(request)
	switch len(parts) {
	case 0:
		return "", "-", ""
	case 1:
		return "", parts[0], ""
	case 2:
		return parts[0], parts[1], ""
	case 3:
		return parts[0], parts[1], parts[2]
	default:
		return "", request, ""
	}
}

// dashEmpty maps the access log placeholder "-" to an absent value.
func dashEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// extractResponseTime returns the trailing number and the key or unit that qualified it.
func extractResponseTime(tail string) (float64, string, bool) {
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return 0, "", false
	}
	m := responseTimeRe.FindStringSubmatch(tail)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, "", false
	}
	key := m[1]
	if m[3] != "" {
		key = m[3]
	}
	return v, key, true
}
