package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/logsift/internal/model"
)

const (
	chartWidth  = 72
	chartHeight = 8
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	sectionStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	spikeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	okBarStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Background(lipgloss.Color("42"))
	errorBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Background(lipgloss.Color("196"))
)

// textWriter accumulates the first write error so sections stay linear.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(name string) {
	t.printf("\n%s\n", sectionStyle.Render(name))
}

// table writes aligned rows; the first row is the header.
// Only the last column may carry ANSI styling, tabwriter counts escape bytes as width.
func (t *textWriter) table(rows [][]string) {
	if t.err != nil || len(rows) == 0 {
		return
	}
	tw := tabwriter.NewWriter(t.w, 0, 0, 2, ' ', 0)
	for i, row := range rows {
		cells := row
		if i == 0 {
			cells = make([]string, len(row))
			for j, c := range row {
				cells[j] = strings.ToUpper(c)
			}
		}
		if _, err := fmt.Fprintln(tw, "  "+strings.Join(cells, "\t")); err != nil {
			t.err = err
			return
		}
	}
	t.err = tw.Flush()
}

func writeText(w io.Writer, report model.Report) error {
	t := &textWriter{w: w}
	m := report.Aggregate

	t.printf("%s  %s\n", titleStyle.Render("logsift report"), dimStyle.Render("run "+report.RunID))
	t.printf("%s\n", dimStyle.Render(fmt.Sprintf("analyzed %s in %s with %d workers",
		report.AnalyzedAt.UTC().Format(time.RFC3339), report.Duration.Round(time.Millisecond), report.Workers)))

	t.section("Summary")
	files := fmt.Sprintf("%d", len(report.Files))
	if report.FailedFiles > 0 {
		files += " " + warnStyle.Render(fmt.Sprintf("(%d failed)", report.FailedFiles))
	}
	summary := [][]string{
		{"Metric", "Value"},
		{"Files", files},
		{"Lines", fmt.Sprintf("%d", m.TotalLines)},
		{"Requests", fmt.Sprintf("%d", m.TotalRequests)},
		{"Skipped lines", fmt.Sprintf("%d", m.SkippedLines)},
		{"Filtered out", fmt.Sprintf("%d", m.FilteredOut)},
		{"Unique clients", fmt.Sprintf("%d", m.UniqueClients)},
		{"Unique endpoints", fmt.Sprintf("%d", m.UniqueEndpoints)},
		{"Response bytes", humanBytes(m.TotalResponseBytes)},
	}
	if rt := m.ResponseTime; rt.Count > 0 {
		summary = append(summary, []string{"Response time",
			fmt.Sprintf("min %s / mean %s / max %s", ms(rt.MinMs), ms(rt.MeanMs), ms(rt.MaxMs))})
	}
	t.table(summary)

	t.section("Status codes")
	status := [][]string{{"Class", "Count", "Percent"}}
	for _, c := range statusClasses(m.StatusDistribution) {
		status = append(status, []string{c.name, fmt.Sprintf("%d", c.class.Count), fmt.Sprintf("%.2f%%", c.class.Percent)})
	}
	t.table(status)

	ranked(t, "Top clients", m.TopClients)
	ranked(t, "Top endpoints", m.TopEndpoints)
	ranked(t, "Top methods", m.TopMethods)

	if len(m.SlowRequests) > 0 {
		t.section("Slowest requests")
		rows := [][]string{{"Time", "Status", "Request", "Client", "At", "Source"}}
		for _, s := range m.SlowRequests {
			at := "-"
			if !s.Timestamp.IsZero() {
				at = s.Timestamp.UTC().Format(time.RFC3339)
			}
			rows = append(rows, []string{
				ms(s.ResponseTimeMs),
				fmt.Sprintf("%d", s.StatusCode),
				requestLabel(s),
				s.ClientAddress,
				at,
				fmt.Sprintf("%s:%d", s.SourceFile, s.SourceLine),
			})
		}
		t.table(rows)
	}

	if len(m.ErrorRates) > 0 {
		t.section("Requests per hour (UTC)")
		t.printf("%s\n", hourlyChart(m.ErrorRates))
		rows := [][]string{{"Hour", "Requests", "Errors", "Error rate", ""}}
		for _, e := range m.ErrorRates {
			flag := ""
			if e.IsSpike {
				flag = spikeStyle.Render("spike")
			}
			rows = append(rows, []string{
				e.HourStart.UTC().Format("2006-01-02 15:00"),
				fmt.Sprintf("%d", e.TotalCount),
				fmt.Sprintf("%d", e.ErrorCount),
				fmt.Sprintf("%.2f%%", e.ErrorRatePercent),
				flag,
			})
		}
		t.table(rows)
	}

	if len(report.Files) > 0 {
		t.section("Files")
		rows := [][]string{{"Path", "Format", "State", "Requests", "Skipped", "Error"}}
		for _, f := range report.Files {
			errText := f.Error
			if errText != "" {
				errText = warnStyle.Render(errText)
			}
			rows = append(rows, []string{
				f.Path, f.Format, string(f.State),
				fmt.Sprintf("%d", f.Metrics.TotalRequests),
				fmt.Sprintf("%d", f.Metrics.SkippedLines),
				errText,
			})
		}
		t.table(rows)
	}

	return t.err
}

func ranked(t *textWriter, title string, items []model.RankedCount) {
	if len(items) == 0 {
		return
	}
	t.section(title)
	rows := [][]string{{"#", "Key", "Count"}}
	for i, it := range items {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), it.Key, fmt.Sprintf("%d", it.Count)})
	}
	t.table(rows)
}

// hourlyChart draws one stacked bar per hour, errors on top of successes.
// Only the most recent hours that fit the chart width are shown.
func hourlyChart(points []model.ErrorRatePoint) string {
	maxBars := chartWidth / 2
	if len(points) > maxBars {
		points = points[len(points)-maxBars:]
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for _, p := range points {
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: "ok", Value: float64(p.TotalCount - p.ErrorCount), Style: okBarStyle},
				{Name: "errors", Value: float64(p.ErrorCount), Style: errorBarStyle},
			},
		})
	}
	bc.Draw()

	first := points[0].HourStart.UTC().Format("01-02 15:00")
	last := points[len(points)-1].HourStart.UTC().Format("01-02 15:00")
	legend := fmt.Sprintf("%s  %s   %s .. %s",
		okBarStyle.Render(" ")+" ok", errorBarStyle.Render(" ")+" errors", first, last)
	return lipgloss.JoinVertical(lipgloss.Left, bc.View(), dimStyle.Render(legend))
}

func ms(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("%.2fs", v/1000)
	}
	return fmt.Sprintf("%.1fms", v)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
