// Package analyzer runs the concurrent per-file pipeline and assembles reports.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/metrics"
	"github.com/tinytelemetry/logsift/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAllFilesFailed is returned when no input file could be analyzed.
var ErrAllFilesFailed = errors.New("analyzer: all files failed")

// event flows from workers to the merging goroutine.
type event struct {
	index     int
	started   bool
	detection logparse.Detection
	acc       *metrics.Accumulator
	snapshot  model.Metrics
	err       error
}

// Analyze processes paths concurrently and merges the per-file results.
//
// Individual file failures are recorded in the report and do not fail the
// run unless every file failed. On cancellation the report built so far is
// returned together with ctx.Err(); files that were still in flight are
// marked cancelled and contribute nothing to the aggregate.
func Analyze(ctx context.Context, paths []string, opts Options) (model.Report, error) {
	opts = opts.withDefaults()
	log := opts.Logger
	start := time.Now()

	workers := opts.Workers
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	files := make([]model.FileReport, len(paths))
	for i, p := range paths {
		files[i] = model.FileReport{
			Path:   p,
			Format: string(logparse.FormatUnknown),
			State:  model.FilePending,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	events := make(chan event)

	g.Go(func() error {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			det := logparse.NewDetector(opts.Parse)
			for i := range jobs {
				select {
				case events <- event{index: i, started: true}:
				case <-gctx.Done():
					return nil
				}
				ev := event{index: i}
				ev.detection, ev.acc, ev.err = processFile(gctx, paths[i], opts, det)
				if ev.acc != nil {
					ev.snapshot = ev.acc.Snapshot()
				}
				select {
				case events <- ev:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(events)
	}()

	agg := metrics.New(opts.Metrics)
	var (
		done     int
		failures []error
	)
	for ev := range events {
		fr := &files[ev.index]
		if ev.started {
			fr.State = model.FileProcessing
			log.Debug("file started", zap.String("file", fr.Path))
			continue
		}

		fr.Format = string(ev.detection.Format)
		switch {
		case ev.err != nil && ctx.Err() != nil && errors.Is(ev.err, ctx.Err()):
			fr.State = model.FileCancelled
		case ev.err != nil:
			fr.State = model.FileFailed
			fr.Error = ev.err.Error()
			failures = append(failures, ev.err)
			log.Warn("file failed", zap.String("file", fr.Path), zap.Error(ev.err))
		default:
			fr.State = model.FileCompleted
			fr.Metrics = ev.snapshot
			agg.Merge(ev.acc)
			log.Debug("file completed",
				zap.String("file", fr.Path),
				zap.String("format", fr.Format),
				zap.Int64("requests", ev.snapshot.TotalRequests),
				zap.Int64("skipped", ev.snapshot.SkippedLines))
		}

		done++
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Completed: done,
				Total:     len(paths),
				Path:      fr.Path,
				State:     fr.State,
				Err:       ev.err,
			})
		}
	}

	for i := range files {
		if files[i].State == model.FilePending || files[i].State == model.FileProcessing {
			files[i].State = model.FileCancelled
		}
	}

	report := assembleReport(start, workers, files, agg)
	log.Info("analysis finished",
		zap.String("run_id", report.RunID),
		zap.Int("files", len(files)),
		zap.Int("failed", report.FailedFiles),
		zap.Int64("requests", report.Aggregate.TotalRequests),
		zap.Duration("duration", report.Duration))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(paths) > 0 && len(failures) == len(paths) {
		return report, fmt.Errorf("%w: %w", ErrAllFilesFailed, errors.Join(failures...))
	}
	return report, nil
}

// AnalyzeFile analyzes a single file on the calling goroutine.
func AnalyzeFile(ctx context.Context, path string, opts Options) (model.FileReport, error) {
	opts = opts.withDefaults()
	fr := model.FileReport{Path: path, State: model.FileProcessing}

	det, acc, err := processFile(ctx, path, opts, logparse.NewDetector(opts.Parse))
	fr.Format = string(det.Format)
	switch {
	case err != nil && ctx.Err() != nil:
		fr.State = model.FileCancelled
		return fr, err
	case err != nil:
		fr.State = model.FileFailed
		fr.Error = err.Error()
		return fr, err
	}
	fr.State = model.FileCompleted
	fr.Metrics = acc.Snapshot()
	return fr, nil
}
