package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/tinytelemetry/logsift/internal/filter"
	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/model"
	"go.uber.org/zap/zaptest"
)

func accessLine(i, status int) string {
	return fmt.Sprintf(`10.0.0.%d - - [10/Oct/2023:13:%02d:00 +0000] "GET /page/%d HTTP/1.1" %d 100 "-" "curl/8.0"`,
		i%4, i%60, i%3, status)
}

func writeLines(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func repeat(n, status int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = accessLine(i, status)
	}
	return lines
}

func testOptions(t *testing.T) Options {
	return Options{Workers: 2, Logger: zaptest.NewLogger(t)}
}

func TestAnalyzeTwoFilesTwoWorkers(t *testing.T) {
	dir := t.TempDir()
	ok := writeLines(t, dir, "ok.log", repeat(10, 200))
	bad := writeLines(t, dir, "bad.log", repeat(5, 500))

	report, err := Analyze(context.Background(), []string{ok, bad}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	agg := report.Aggregate
	if agg.TotalRequests != 15 {
		t.Errorf("TotalRequests = %d, want 15", agg.TotalRequests)
	}
	if agg.StatusDistribution.Status2xx.Count != 10 {
		t.Errorf("2xx = %d, want 10", agg.StatusDistribution.Status2xx.Count)
	}
	if agg.StatusDistribution.Status5xx.Count != 5 {
		t.Errorf("5xx = %d, want 5", agg.StatusDistribution.Status5xx.Count)
	}
	if report.Workers != 2 || report.FailedFiles != 0 || report.RunID == "" {
		t.Errorf("report header = workers %d failed %d run %q", report.Workers, report.FailedFiles, report.RunID)
	}
	if len(report.Files) != 2 || report.Files[0].Path != bad || report.Files[1].Path != ok {
		t.Fatalf("Files not sorted by path: %+v", report.Files)
	}
	for _, f := range report.Files {
		if f.State != model.FileCompleted {
			t.Errorf("%s state = %s, want completed", f.Path, f.State)
		}
		if f.Format != string(logparse.FormatCombined) {
			t.Errorf("%s format = %s, want combined", f.Path, f.Format)
		}
	}
	if report.Files[0].Metrics.TotalRequests != 5 || report.Files[1].Metrics.TotalRequests != 10 {
		t.Errorf("per-file requests = %d, %d", report.Files[0].Metrics.TotalRequests, report.Files[1].Metrics.TotalRequests)
	}
}

func TestAnalyzeJSONClientAliases(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "app.jsonl", []string{
		`{"remote_addr":"192.168.0.9","path":"/a","status":200}`,
		`{"ip":"192.168.0.9","path":"/b","status":201}`,
	})

	report, err := Analyze(context.Background(), []string{path}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	agg := report.Aggregate
	if agg.UniqueClients != 1 {
		t.Errorf("UniqueClients = %d, want 1", agg.UniqueClients)
	}
	want := model.RankedCount{Key: "192.168.0.9", Count: 2}
	if len(agg.TopClients) != 1 || agg.TopClients[0] != want {
		t.Errorf("TopClients = %v, want [%v]", agg.TopClients, want)
	}
	if report.Files[0].Format != string(logparse.FormatJSON) {
		t.Errorf("Format = %s, want json", report.Files[0].Format)
	}
}

func TestAnalyzeSkipsUnparseableLine(t *testing.T) {
	dir := t.TempDir()
	lines := repeat(4, 200)
	lines = append(lines[:2], append([]string{"not a log line", ""}, lines[2:]...)...)
	path := writeLines(t, dir, "mixed.log", lines)

	report, err := Analyze(context.Background(), []string{path}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	agg := report.Aggregate
	if agg.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", agg.SkippedLines)
	}
	if agg.TotalRequests != 4 || agg.TotalLines != 5 {
		t.Errorf("TotalRequests = %d TotalLines = %d, want 4 and 5", agg.TotalRequests, agg.TotalLines)
	}
	for _, e := range agg.TopEndpoints {
		if !strings.HasPrefix(e.Key, "/page/") {
			t.Errorf("unexpected endpoint %q", e.Key)
		}
	}
}

func TestAnalyzeRecordsSourcePosition(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "timed.log", []string{
		accessLine(1, 200) + " 0.010",
		"",
		accessLine(2, 200) + " 0.900",
	})

	report, err := Analyze(context.Background(), []string{path}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	slow := report.Aggregate.SlowRequests
	if len(slow) != 2 {
		t.Fatalf("SlowRequests = %+v", slow)
	}
	if slow[0].SourceLine != 3 || slow[0].SourceFile != path || slow[0].ResponseTimeMs != 900 {
		t.Errorf("SlowRequests[0] = %+v, want line 3 at 900ms", slow[0])
	}
	if report.Files[0].Format != string(logparse.FormatCombinedTimed) {
		t.Errorf("Format = %s, want combined_timed", report.Files[0].Format)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	dir := t.TempDir()
	ok := writeLines(t, dir, "ok.log", repeat(3, 200))
	missing := filepath.Join(dir, "missing.log")

	report, err := Analyze(context.Background(), []string{ok, missing}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v, want nil for partial failure", err)
	}
	if report.FailedFiles != 1 {
		t.Errorf("FailedFiles = %d, want 1", report.FailedFiles)
	}
	var failed model.FileReport
	for _, f := range report.Files {
		if f.Path == missing {
			failed = f
		}
	}
	if failed.State != model.FileFailed || failed.Error == "" {
		t.Errorf("missing file report = %+v", failed)
	}
	if report.Aggregate.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", report.Aggregate.TotalRequests)
	}

	_, err = Analyze(context.Background(), []string{missing}, testOptions(t))
	if !errors.Is(err, ErrAllFilesFailed) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Analyze(all missing) error = %v, want ErrAllFilesFailed wrapping ErrNotExist", err)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 4; i++ {
		paths = append(paths, writeLines(t, dir, fmt.Sprintf("f%d.log", i), repeat(50, 200)))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Analyze(ctx, paths, testOptions(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze() error = %v, want context.Canceled", err)
	}
	if report.Aggregate.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", report.Aggregate.TotalRequests)
	}
	for _, f := range report.Files {
		if f.State != model.FileCancelled {
			t.Errorf("%s state = %s, want cancelled", f.Path, f.State)
		}
	}
}

// endlessLog serves access lines forever and calls cancel once limit bytes were read.
type endlessLog struct {
	pending []byte
	served  int
	limit   int
	cancel  context.CancelFunc
	n       int
}

func (e *endlessLog) Read(p []byte) (int, error) {
	if len(e.pending) == 0 {
		e.pending = []byte(accessLine(e.n, 200) + "\n")
		e.n++
	}
	n := copy(p, e.pending)
	e.pending = e.pending[n:]
	e.served += n
	if e.served >= e.limit && e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return n, nil
}

func TestAnalyzeCancelledMidFile(t *testing.T) {
	dir := t.TempDir()
	paths := []string{model.StdinPath}
	for i := 0; i < 3; i++ {
		paths = append(paths, writeLines(t, dir, fmt.Sprintf("big%d.log", i), repeat(20000, 200)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	old := stdin
	stdin = &endlessLog{limit: 256 * 1024, cancel: cancel}
	t.Cleanup(func() { stdin = old })

	opts := testOptions(t)
	opts.Workers = 4
	report, err := Analyze(ctx, paths, opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze() error = %v, want context.Canceled", err)
	}

	var completed int64
	for _, f := range report.Files {
		switch f.State {
		case model.FileCompleted:
			completed += f.Metrics.TotalRequests
		case model.FileCancelled:
			if f.Metrics.TotalRequests != 0 {
				t.Errorf("%s: cancelled file kept %d requests", f.Path, f.Metrics.TotalRequests)
			}
		default:
			t.Errorf("%s state = %s, want completed or cancelled", f.Path, f.State)
		}
		if f.Path == model.StdinPath && f.State != model.FileCancelled {
			t.Errorf("stdin state = %s, want cancelled", f.State)
		}
	}
	// Partial accumulators of abandoned files never reach the aggregate.
	if report.Aggregate.TotalRequests != completed {
		t.Errorf("aggregate TotalRequests = %d, want %d from completed files", report.Aggregate.TotalRequests, completed)
	}
}

func TestAnalyzeProgress(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		paths = append(paths, writeLines(t, dir, fmt.Sprintf("f%d.log", i), repeat(i+1, 200)))
	}

	var (
		mu   sync.Mutex
		seen []Progress
	)
	opts := testOptions(t)
	opts.Workers = 3
	opts.OnProgress = func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	}

	report, err := Analyze(context.Background(), paths, opts)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(seen) != len(paths) {
		t.Fatalf("progress calls = %d, want %d", len(seen), len(paths))
	}
	for i, p := range seen {
		if p.Completed != i+1 || p.Total != len(paths) || p.State != model.FileCompleted {
			t.Errorf("progress[%d] = %+v", i, p)
		}
	}
	if report.Aggregate.TotalRequests != 15 {
		t.Errorf("TotalRequests = %d, want 15", report.Aggregate.TotalRequests)
	}
}

func TestAnalyzeGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	for _, l := range repeat(7, 404) {
		fmt.Fprintln(zw, l)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	report, err := Analyze(context.Background(), []string{path}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := report.Aggregate.StatusDistribution.Status4xx.Count; got != 7 {
		t.Errorf("4xx = %d, want 7", got)
	}
}

func TestAnalyzeUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "notes.txt", []string{"hello", "world", "third line"})

	report, err := Analyze(context.Background(), []string{path}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	f := report.Files[0]
	if f.State != model.FileCompleted || f.Format != string(logparse.FormatUnknown) {
		t.Errorf("file = %s/%s, want completed/unknown", f.State, f.Format)
	}
	if f.Metrics.SkippedLines != 3 || f.Metrics.TotalRequests != 0 {
		t.Errorf("skipped = %d requests = %d", f.Metrics.SkippedLines, f.Metrics.TotalRequests)
	}
}

func TestAnalyzeLongLineSkipped(t *testing.T) {
	dir := t.TempDir()
	lines := repeat(3, 200)
	lines = append(lines, strings.Repeat("x", 4096))
	path := writeLines(t, dir, "long.log", lines)

	opts := testOptions(t)
	opts.MaxLineBytes = 512
	report, err := Analyze(context.Background(), []string{path}, opts)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Aggregate.SkippedLines != 1 || report.Aggregate.TotalRequests != 3 {
		t.Errorf("skipped = %d requests = %d, want 1 and 3",
			report.Aggregate.SkippedLines, report.Aggregate.TotalRequests)
	}
}

func TestAnalyzeFallback(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf(`{"ip":"10.1.1.%d","path":"/j","status":200}`, i))
	}
	lines = append(lines, repeat(5, 500)...)
	path := writeLines(t, dir, "rotated.log", lines)

	tests := []struct {
		name          string
		fallbackAfter int
		wantRequests  int64
		wantSkipped   int64
	}{
		{"disabled", 0, 10, 5},
		{"after two failures", 2, 13, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t)
			opts.FallbackAfter = tt.fallbackAfter
			report, err := Analyze(context.Background(), []string{path}, opts)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			agg := report.Aggregate
			if agg.TotalRequests != tt.wantRequests || agg.SkippedLines != tt.wantSkipped {
				t.Errorf("requests = %d skipped = %d, want %d and %d",
					agg.TotalRequests, agg.SkippedLines, tt.wantRequests, tt.wantSkipped)
			}
		})
	}
}

func TestAnalyzeAppliesFilters(t *testing.T) {
	dir := t.TempDir()
	ok := writeLines(t, dir, "ok.log", repeat(10, 200))
	bad := writeLines(t, dir, "bad.log", repeat(5, 503))

	f, err := filter.New(filter.Options{MinStatus: 500})
	if err != nil {
		t.Fatal(err)
	}
	opts := testOptions(t)
	opts.Filters = f
	report, err := Analyze(context.Background(), []string{ok, bad}, opts)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	agg := report.Aggregate
	if agg.TotalRequests != 5 || agg.FilteredOut != 10 {
		t.Errorf("requests = %d filtered = %d, want 5 and 10", agg.TotalRequests, agg.FilteredOut)
	}
}

func TestAnalyzeNoPaths(t *testing.T) {
	report, err := Analyze(context.Background(), nil, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze(nil) error = %v", err)
	}
	if len(report.Files) != 0 || report.Aggregate.TotalRequests != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "one.log", repeat(6, 301))

	fr, err := AnalyzeFile(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("AnalyzeFile() error = %v", err)
	}
	if fr.State != model.FileCompleted || fr.Metrics.StatusDistribution.Status3xx.Count != 6 {
		t.Errorf("AnalyzeFile() = %+v", fr)
	}

	fr, err = AnalyzeFile(context.Background(), filepath.Join(dir, "nope.log"), Options{})
	if err == nil || fr.State != model.FileFailed {
		t.Errorf("AnalyzeFile(missing) = %s, %v", fr.State, err)
	}
}

func TestAnalyzeStdin(t *testing.T) {
	old := stdin
	stdin = strings.NewReader(strings.Join(repeat(3, 200), "\n"))
	t.Cleanup(func() { stdin = old })

	report, err := Analyze(context.Background(), []string{model.StdinPath}, testOptions(t))
	if err != nil {
		t.Fatalf("Analyze(stdin) error = %v", err)
	}
	if report.Aggregate.TotalRequests != 3 || report.Files[0].Path != model.StdinPath {
		t.Errorf("report = %+v", report.Files)
	}
}
