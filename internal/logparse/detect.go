package logparse

import (
	"strings"

	"github.com/tinytelemetry/logsift/internal/model"
)

// Detection is the outcome of sampling one file.
type Detection struct {
	Format     Format
	Parser     Parser
	Confidence float64
}

// Detector chooses a parser for a file from a sample of its lines.
type Detector struct {
	parsers []Parser
}

// NewDetector returns a detector over every supported family.
func NewDetector(opts Options) *Detector {
	return &Detector{parsers: Parsers(opts)}
}

// Detect scores each parser by the fraction of non-blank sample lines it
// fully parses. Parsers are held in priority order, so a tie keeps the
// earlier one. No successes at all yields FormatUnknown with a nil parser.
func (d *Detector) Detect(sample []string) Detection {
	lines := make([]string, 0, len(sample))
	for _, l := range sample {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	best := Detection{Format: FormatUnknown}
	if len(lines) == 0 {
		return best
	}

	for _, p := range d.parsers {
		ok := 0
		for _, l := range lines {
			if _, err := p.Parse(l); err == nil {
				ok++
			}
		}
		if ok == 0 {
			continue
		}
		conf := float64(ok) / float64(len(lines))
		if conf > best.Confidence {
			best = Detection{Format: p.Format(), Parser: p, Confidence: conf}
		}
	}
	return best
}

// ParseFallback tries every parser in priority order and returns the first success.
func (d *Detector) ParseFallback(line string) (model.Record, Format, error) {
	var firstErr error
	for _, p := range d.parsers {
		rec, err := p.Parse(line)
		if err == nil {
			return rec, p.Format(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = ErrNoMatch
	}
	return model.Record{}, FormatUnknown, firstErr
}
