// Package metrics aggregates parsed records into mergeable statistics.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
)

type hourCounts struct {
	total  int64
	errors int64
}

// Accumulator collects statistics for one unit of work, usually one file.
// It is not safe for concurrent use; workers own their accumulator and hand
// it to a single merger once the file is done.
type Accumulator struct {
	cfg Config

	lines    int64
	requests int64
	skipped  int64
	filtered int64
	bytes    int64

	status [5]int64 // 2xx, 3xx, 4xx, 5xx, other

	clients   map[string]int64
	endpoints map[string]int64
	methods   map[string]int64

	rtCount int64
	rtSumUs int64 // microseconds, so merges add exactly
	rtMin   float64
	rtMax   float64

	slow  *slowHeap
	hours map[int64]*hourCounts // keyed by unix seconds of the UTC hour start
}

// New returns an empty accumulator.
func New(cfg Config) *Accumulator {
	cfg = cfg.withDefaults()
	return &Accumulator{
		cfg:       cfg,
		clients:   make(map[string]int64),
		endpoints: make(map[string]int64),
		methods:   make(map[string]int64),
		slow:      newSlowHeap(cfg.SlowRequests),
		hours:     make(map[int64]*hourCounts),
	}
}

func statusClass(code int) int {
	switch {
	case code >= 200 && code < 300:
		return 0
	case code >= 300 && code < 400:
		return 1
	case code >= 400 && code < 500:
		return 2
	case code >= 500 && code < 600:
		return 3
	default:
		return 4
	}
}

// Add counts one record that passed the filters.
func (a *Accumulator) Add(r model.Record) {
	a.requests++
	a.status[statusClass(r.StatusCode)]++

	if r.ClientAddress != "" {
		a.clients[r.ClientAddress]++
	}
	if r.Endpoint != "" {
		a.endpoints[r.Endpoint]++
	}
	if r.Method != "" {
		a.methods[r.Method]++
	}
	if r.HasResponseSize {
		a.bytes += r.ResponseSizeBytes
	}

	if r.HasResponseTime {
		a.observeResponseTime(1, int64(math.Round(r.ResponseTimeMs*1000)), r.ResponseTimeMs, r.ResponseTimeMs)
		a.slow.offer(model.SlowRequest{
			Timestamp:      r.Timestamp,
			ClientAddress:  r.ClientAddress,
			Method:         r.Method,
			Endpoint:       r.Endpoint,
			StatusCode:     r.StatusCode,
			ResponseTimeMs: r.ResponseTimeMs,
			SourceFile:     r.SourceFile,
			SourceLine:     r.SourceLine,
		})
	}

	// Records without a timestamp are counted everywhere except the hourly series.
	if !r.Timestamp.IsZero() {
		key := r.Timestamp.UTC().Truncate(time.Hour).Unix()
		h := a.hours[key]
		if h == nil {
			h = &hourCounts{}
			a.hours[key] = h
		}
		h.total++
		if r.StatusCode >= 400 {
			h.errors++
		}
	}
}

func (a *Accumulator) observeResponseTime(count, sumUs int64, lo, hi float64) {
	if count == 0 {
		return
	}
	if a.rtCount == 0 || lo < a.rtMin {
		a.rtMin = lo
	}
	if a.rtCount == 0 || hi > a.rtMax {
		a.rtMax = hi
	}
	a.rtCount += count
	a.rtSumUs += sumUs
}

// MarkLine counts one non-blank input line, whatever its fate.
func (a *Accumulator) MarkLine() { a.lines++ }

// MarkSkipped counts a line that could not be parsed.
func (a *Accumulator) MarkSkipped() { a.skipped++ }

// MarkFiltered counts a parsed record rejected by the filters.
func (a *Accumulator) MarkFiltered() { a.filtered++ }

// Merge folds other into a. other is only read.
// Merge is associative and commutative over the retained statistics.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	a.lines += other.lines
	a.requests += other.requests
	a.skipped += other.skipped
	a.filtered += other.filtered
	a.bytes += other.bytes
	for i := range a.status {
		a.status[i] += other.status[i]
	}
	mergeCounts(a.clients, other.clients)
	mergeCounts(a.endpoints, other.endpoints)
	mergeCounts(a.methods, other.methods)
	a.observeResponseTime(other.rtCount, other.rtSumUs, other.rtMin, other.rtMax)
	a.slow.merge(other.slow)
	for k, oh := range other.hours {
		h := a.hours[k]
		if h == nil {
			h = &hourCounts{}
			a.hours[k] = h
		}
		h.total += oh.total
		h.errors += oh.errors
	}
}

func mergeCounts(dst, src map[string]int64) {
	for k, v := range src {
		dst[k] += v
	}
}

// Snapshot builds the read-only metrics view. Spike flags are derived here
// from the accumulator's own hourly series and are never stored.
func (a *Accumulator) Snapshot() model.Metrics {
	m := model.Metrics{
		TotalLines:         a.lines,
		TotalRequests:      a.requests,
		SkippedLines:       a.skipped,
		FilteredOut:        a.filtered,
		UniqueClients:      len(a.clients),
		UniqueEndpoints:    len(a.endpoints),
		TotalResponseBytes: a.bytes,
		TopClients:         topN(a.clients, a.cfg.TopN),
		TopEndpoints:       topN(a.endpoints, a.cfg.TopN),
		TopMethods:         topN(a.methods, a.cfg.TopN),
		SlowRequests:       a.slow.sorted(),
	}

	class := func(i int) model.StatusClass {
		return model.StatusClass{Count: a.status[i], Percent: round2(percent(a.status[i], a.requests))}
	}
	m.StatusDistribution = model.StatusDistribution{
		Status2xx: class(0),
		Status3xx: class(1),
		Status4xx: class(2),
		Status5xx: class(3),
		Other:     class(4),
	}

	if a.rtCount > 0 {
		m.ResponseTime = model.ResponseTimeSummary{
			Count:  a.rtCount,
			MinMs:  a.rtMin,
			MeanMs: math.Round(float64(a.rtSumUs)/float64(a.rtCount)) / 1000,
			MaxMs:  a.rtMax,
		}
	}

	keys := make([]int64, 0, len(a.hours))
	for k := range a.hours {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	m.RequestsPerHour = make([]model.HourBucket, 0, len(keys))
	m.ErrorRates = make([]model.ErrorRatePoint, 0, len(keys))
	rates := make([]float64, 0, len(keys))
	for _, k := range keys {
		h := a.hours[k]
		start := time.Unix(k, 0).UTC()
		rate := percent(h.errors, h.total)
		rates = append(rates, rate)
		m.RequestsPerHour = append(m.RequestsPerHour, model.HourBucket{HourStart: start, Count: h.total})
		m.ErrorRates = append(m.ErrorRates, model.ErrorRatePoint{
			HourStart:        start,
			TotalCount:       h.total,
			ErrorCount:       h.errors,
			ErrorRatePercent: round2(rate),
		})
	}
	markSpikes(m.ErrorRates, rates, a.cfg.SpikeSigma, a.cfg.SpikeMinSamples)

	return m
}

// topN ranks counts by count descending, then key ascending, and keeps n.
func topN(counts map[string]int64, n int) []model.RankedCount {
	out := make([]model.RankedCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, model.RankedCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
