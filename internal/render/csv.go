package render

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
)

var csvHeader = []string{"section", "key", "count", "value", "detail"}

func writeCSV(w io.Writer, report model.Report) error {
	cw := csv.NewWriter(w)
	m := report.Aggregate

	itoa := func(n int64) string { return strconv.FormatInt(n, 10) }
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

	rows := [][]string{csvHeader}
	add := func(section, key, count, value, detail string) {
		rows = append(rows, []string{section, key, count, value, detail})
	}

	add("summary", "run_id", "", report.RunID, "")
	add("summary", "total_lines", itoa(m.TotalLines), "", "")
	add("summary", "total_requests", itoa(m.TotalRequests), "", "")
	add("summary", "skipped_lines", itoa(m.SkippedLines), "", "")
	add("summary", "filtered_out", itoa(m.FilteredOut), "", "")
	add("summary", "unique_clients", itoa(int64(m.UniqueClients)), "", "")
	add("summary", "unique_endpoints", itoa(int64(m.UniqueEndpoints)), "", "")
	add("summary", "total_response_bytes", itoa(m.TotalResponseBytes), "", "")
	add("summary", "failed_files", itoa(int64(report.FailedFiles)), "", "")

	for _, c := range statusClasses(m.StatusDistribution) {
		add("status", c.name, itoa(c.class.Count), ftoa(c.class.Percent), "")
	}

	if rt := m.ResponseTime; rt.Count > 0 {
		add("response_time", "min_ms", itoa(rt.Count), ftoa(rt.MinMs), "")
		add("response_time", "mean_ms", itoa(rt.Count), ftoa(rt.MeanMs), "")
		add("response_time", "max_ms", itoa(rt.Count), ftoa(rt.MaxMs), "")
	}

	ranked := []struct {
		section string
		items   []model.RankedCount
	}{
		{"top_client", m.TopClients},
		{"top_endpoint", m.TopEndpoints},
		{"top_method", m.TopMethods},
	}
	for _, r := range ranked {
		for _, it := range r.items {
			add(r.section, it.Key, itoa(it.Count), "", "")
		}
	}

	for _, s := range m.SlowRequests {
		add("slow_request", requestLabel(s), strconv.Itoa(s.StatusCode), ftoa(s.ResponseTimeMs), slowDetail(s))
	}

	for _, h := range m.RequestsPerHour {
		add("requests_per_hour", h.HourStart.UTC().Format(time.RFC3339), itoa(h.Count), "", "")
	}
	for _, e := range m.ErrorRates {
		detail := ""
		if e.IsSpike {
			detail = "spike"
		}
		add("error_rate", e.HourStart.UTC().Format(time.RFC3339), itoa(e.TotalCount), ftoa(e.ErrorRatePercent), detail)
	}

	for _, f := range report.Files {
		detail := f.Format
		if f.Error != "" {
			detail = f.Error
		}
		add("file", f.Path, itoa(f.Metrics.TotalRequests), string(f.State), detail)
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func requestLabel(s model.SlowRequest) string {
	if s.Method == "" {
		return s.Endpoint
	}
	return s.Method + " " + s.Endpoint
}

func slowDetail(s model.SlowRequest) string {
	if s.Timestamp.IsZero() {
		return s.ClientAddress
	}
	return s.ClientAddress + " " + s.Timestamp.UTC().Format(time.RFC3339)
}

type namedClass struct {
	name  string
	class model.StatusClass
}

func statusClasses(d model.StatusDistribution) []namedClass {
	return []namedClass{
		{"2xx", d.Status2xx},
		{"3xx", d.Status3xx},
		{"4xx", d.Status4xx},
		{"5xx", d.Status5xx},
		{"other", d.Other},
	}
}
