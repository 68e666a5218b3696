package analyzer

import (
	"runtime"

	"github.com/tinytelemetry/logsift/internal/filter"
	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/metrics"
	"github.com/tinytelemetry/logsift/internal/model"
	"go.uber.org/zap"
)

// Options configures one analysis run.
type Options struct {
	// Workers is the number of files processed concurrently.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int
	Filters filter.Filters
	Parse   logparse.Options
	Metrics metrics.Config

	// SampleLines is how many non-blank lines feed format detection.
	SampleLines int
	// FallbackAfter switches a file to per-line detection after that many
	// consecutive parse failures. Zero disables the fallback.
	FallbackAfter int
	// MaxLineBytes bounds a single line; longer lines are skipped.
	MaxLineBytes int

	// OnProgress is called from the merging goroutine after each file.
	// It must not block.
	OnProgress func(Progress)
	Logger     *zap.Logger
}

// Progress describes one finished file.
type Progress struct {
	Completed int
	Total     int
	Path      string
	State     model.FileState
	Err       error
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.SampleLines <= 0 {
		o.SampleLines = model.DefaultSampleLines
	}
	if o.FallbackAfter < 0 {
		o.FallbackAfter = 0
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = model.DefaultMaxLineBytes
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
