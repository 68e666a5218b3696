package analyzer

import (
	"sort"
	"time"

	"github.com/rs/xid"
	"github.com/tinytelemetry/logsift/internal/metrics"
	"github.com/tinytelemetry/logsift/internal/model"
)

func assembleReport(start time.Time, workers int, files []model.FileReport, agg *metrics.Accumulator) model.Report {
	sorted := make([]model.FileReport, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	failed := 0
	for _, f := range sorted {
		if f.State == model.FileFailed {
			failed++
		}
	}

	return model.Report{
		RunID:       xid.New().String(),
		AnalyzedAt:  start.UTC(),
		Duration:    time.Since(start),
		Workers:     workers,
		FailedFiles: failed,
		Files:       sorted,
		Aggregate:   agg.Snapshot(),
	}
}
