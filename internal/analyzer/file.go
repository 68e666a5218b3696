package analyzer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/metrics"
	"github.com/tinytelemetry/logsift/internal/model"
	"go.uber.org/zap"
)

// cancelCheckEvery is how many lines are read between context checks.
const cancelCheckEvery = 1024

// stdin is read for model.StdinPath.
var stdin io.Reader = os.Stdin

type sampledLine struct {
	text string
	no   int64
}

// fileRun is the per-file processing state. It is owned by one worker.
type fileRun struct {
	path     string
	opts     Options
	detector *logparse.Detector
	log      *zap.Logger

	acc       *metrics.Accumulator
	parser    logparse.Parser
	detection logparse.Detection
	fails     int
	fallback  bool
}

// processFile streams one file into a fresh accumulator.
// The returned error is an I/O failure or the context's error; in both cases
// the accumulator must be discarded.
func processFile(ctx context.Context, path string, opts Options, det *logparse.Detector) (logparse.Detection, *metrics.Accumulator, error) {
	var src io.Reader
	if path == model.StdinPath {
		src = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return logparse.Detection{Format: logparse.FormatUnknown}, nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		src = f
	}

	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(src)
		if err != nil {
			return logparse.Detection{Format: logparse.FormatUnknown}, nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer zr.Close()
		src = zr
	}

	run := &fileRun{
		path:      path,
		opts:      opts,
		detector:  det,
		log:       opts.Logger.With(zap.String("file", path)),
		acc:       metrics.New(opts.Metrics),
		detection: logparse.Detection{Format: logparse.FormatUnknown},
	}
	if err := run.consume(ctx, src); err != nil {
		return run.detection, nil, err
	}
	return run.detection, run.acc, nil
}

func (r *fileRun) consume(ctx context.Context, src io.Reader) error {
	lr := newLineReader(src, r.opts.MaxLineBytes)
	sample := make([]sampledLine, 0, r.opts.SampleLines)
	detected := false

	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		raw, tooLong, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", r.path, err)
		}
		if tooLong {
			r.acc.MarkLine()
			r.acc.MarkSkipped()
			continue
		}
		line := string(raw)
		if strings.TrimSpace(line) == "" {
			continue
		}

		if detected {
			r.handle(line, lr.line)
			continue
		}
		sample = append(sample, sampledLine{text: line, no: lr.line})
		if len(sample) >= r.opts.SampleLines {
			r.detect(sample)
			detected = true
			sample = nil
		}
	}

	if !detected {
		r.detect(sample)
	}
	return ctx.Err()
}

// detect picks the parser from the sample and replays the sampled lines through it.
func (r *fileRun) detect(sample []sampledLine) {
	lines := make([]string, len(sample))
	for i, s := range sample {
		lines[i] = s.text
	}
	r.detection = r.detector.Detect(lines)
	r.parser = r.detection.Parser
	r.log.Debug("format detected",
		zap.String("format", string(r.detection.Format)),
		zap.Float64("confidence", r.detection.Confidence),
		zap.Int("sample", len(lines)))

	for _, s := range sample {
		r.handle(s.text, s.no)
	}
}

func (r *fileRun) handle(line string, no int64) {
	r.acc.MarkLine()
	if r.parser == nil {
		r.acc.MarkSkipped()
		return
	}

	var (
		rec model.Record
		err error
	)
	if r.fallback {
		rec, _, err = r.detector.ParseFallback(line)
	} else {
		rec, err = r.parser.Parse(line)
	}
	if err != nil {
		r.acc.MarkSkipped()
		if !r.fallback && r.opts.FallbackAfter > 0 {
			r.fails++
			if r.fails >= r.opts.FallbackAfter {
				r.fallback = true
				r.log.Info("switching to per-line format fallback",
					zap.Int("consecutive_failures", r.fails),
					zap.Int64("line", no))
			}
		}
		return
	}
	r.fails = 0

	rec.SourceFile = r.path
	rec.SourceLine = no
	if !r.opts.Filters.Matches(rec) {
		r.acc.MarkFiltered()
		return
	}
	r.acc.Add(rec)
}
