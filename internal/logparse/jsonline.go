package logparse

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tinytelemetry/logsift/internal/model"
	"github.com/tinytelemetry/logsift/internal/timestamp"
)

type jsonField int

const (
	fieldTimestamp jsonField = iota
	fieldClient
	fieldMethod
	fieldPath
	fieldRequest
	fieldStatus
	fieldSize
	fieldResponseTime
	fieldProtocol
	fieldReferer
	fieldUserAgent
	numJSONFields
)

// jsonAliases lists accepted key names per field, most preferred first.
// Explicit millisecond keys precede unit-less ones for response time.
var jsonAliases = [numJSONFields][]string{
	fieldTimestamp:    {"timestamp", "@timestamp", "time", "ts", "date", "time_local", "datetime", "time_iso8601"},
	fieldClient:       {"remote_addr", "ip", "client_ip", "remote_ip", "clientAddress", "client_address", "client", "remote_host"},
	fieldMethod:       {"method", "http_method", "request_method", "verb"},
	fieldPath:         {"path", "endpoint", "uri", "url", "request_uri", "request_path"},
	fieldRequest:      {"request", "http_request", "request_line"},
	fieldStatus:       {"status", "status_code", "statusCode", "code", "http_status", "response_status"},
	fieldSize:         {"size", "bytes", "body_bytes_sent", "bytes_sent", "response_size", "response_bytes"},
	fieldResponseTime: {"response_time_ms", "duration_ms", "latency_ms", "elapsed_ms", "request_time_ms", "response_time", "request_time", "duration", "latency", "upstream_response_time", "elapsed"},
	fieldProtocol:     {"protocol", "server_protocol", "http_version"},
	fieldReferer:      {"http_referer", "referer", "referrer"},
	fieldUserAgent:    {"http_user_agent", "user_agent", "userAgent", "agent"},
}

// nestedAliases are dotted gjson paths consulted when no top-level alias exists.
var nestedAliases = map[jsonField][]string{
	fieldPath:         {"request.path", "request.uri", "http.path", "http.url"},
	fieldMethod:       {"request.method", "http.method"},
	fieldStatus:       {"response.status", "http.status_code", "http.status"},
	fieldClient:       {"client.ip", "request.remote_addr"},
	fieldResponseTime: {"response.duration_ms", "http.duration_ms"},
	fieldUserAgent:    {"request.user_agent", "http.user_agent"},
}

type aliasRank struct {
	field jsonField
	rank  int
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]aliasRank {
	idx := make(map[string]aliasRank)
	for field, names := range jsonAliases {
		for rank, name := range names {
			idx[name] = aliasRank{field: jsonField(field), rank: rank}
		}
	}
	return idx
}

type jsonValue struct {
	result gjson.Result
	key    string
	rank   int
	found  bool
}

type jsonParser struct {
	threshold float64
	ts        *timestamp.Parser
}

// NewJSONParser parses one self-contained JSON object per line with key aliasing.
func NewJSONParser(opts Options) Parser {
	opts = opts.withDefaults()
	return &jsonParser{threshold: opts.SecondsThreshold, ts: timestamp.NewParser()}
}

func (p *jsonParser) Format() Format {
	return FormatJSON
}

func (p *jsonParser) Detect(line string) float64 {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") || !gjson.Valid(trimmed) {
		return 0
	}
	values := collectJSONFields(trimmed)
	if values[fieldStatus].found {
		return 1
	}
	return 0.5
}

func (p *jsonParser) Parse(line string) (model.Record, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") || !gjson.Valid(trimmed) {
		return model.Record{}, ErrNotObject
	}
	values := collectJSONFields(trimmed)

	status := values[fieldStatus]
	if !status.found {
		return model.Record{}, ErrMissingStatus
	}
	if status.result.Type != gjson.Number && status.result.Type != gjson.String {
		return model.Record{}, fmt.Errorf("%w: status %s", ErrNoMatch, status.result.Raw)
	}
	code, err := cast.ToIntE(status.result.Value())
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: status %s", ErrNoMatch, status.result.Raw)
	}

	rec := model.Record{
		StatusCode:    code,
		ClientAddress: strings.TrimSpace(values[fieldClient].result.String()),
		Method:        strings.TrimSpace(values[fieldMethod].result.String()),
		Endpoint:      strings.TrimSpace(values[fieldPath].result.String()),
		Protocol:      strings.TrimSpace(values[fieldProtocol].result.String()),
		Referer:       strings.TrimSpace(values[fieldReferer].result.String()),
		UserAgent:     strings.TrimSpace(values[fieldUserAgent].result.String()),
	}

	if req := values[fieldRequest]; req.found && req.result.Type == gjson.String {
		method, path, protocol := splitRequest(req.result.String())
		if rec.Endpoint == "" {
			rec.Endpoint = path
		}
		if rec.Method == "" {
			rec.Method = method
		}
		if rec.Protocol == "" {
			rec.Protocol = protocol
		}
	}

	if ts := values[fieldTimestamp]; ts.found {
		if ts.result.Type == gjson.Number {
			rec.Timestamp, _ = p.ts.ParseTimestamp(ts.result.Float())
		} else {
			rec.Timestamp, _ = p.ts.ParseString(ts.result.String())
		}
	}

	if size := values[fieldSize]; size.found {
		if n, err := cast.ToInt64E(size.result.Value()); err == nil {
			rec.ResponseSizeBytes = n
			rec.HasResponseSize = true
		}
	}

	if rt := values[fieldResponseTime]; rt.found {
		if v, err := cast.ToFloat64E(rt.result.Value()); err == nil {
			rec.ResponseTimeMs = NormalizeResponseTime(v, rt.key, p.threshold)
			rec.HasResponseTime = true
		}
	}

	return rec, nil
}

// collectJSONFields walks the top-level object once, keeping the best ranked
// alias per field, then falls back to nested paths for fields still missing.
func collectJSONFields(doc string) [numJSONFields]jsonValue {
	var values [numJSONFields]jsonValue
	parsed := gjson.Parse(doc)

	parsed.ForEach(func(key, value gjson.Result) bool {
		a, ok := aliasIndex[key.String()]
		if !ok || value.Type == gjson.Null {
			return true
		}
		cur := &values[a.field]
		if !cur.found || a.rank < cur.rank {
			*cur = jsonValue{result: value, key: key.String(), rank: a.rank, found: true}
		}
		return true
	})

	for field, paths := range nestedAliases {
		if values[field].found {
			continue
		}
		for _, path := range paths {
			if r := parsed.Get(path); r.Exists() && r.Type != gjson.Null {
				values[field] = jsonValue{result: r, key: path, found: true}
				break
			}
		}
	}
	return values
}
