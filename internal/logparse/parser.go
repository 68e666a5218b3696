package logparse

import (
	"errors"

	"github.com/tinytelemetry/logsift/internal/model"
)

// Format names one supported line family.
type Format string

const (
	FormatJSON          Format = "json"
	FormatCombinedTimed Format = "combined_timed"
	FormatCombined      Format = "combined"
	FormatUnknown       Format = "unknown"
)

var (
	// ErrNoMatch is returned when a line does not have the shape of a parser's family.
	ErrNoMatch = errors.New("logparse: line does not match format")
	// ErrNotObject is returned by the JSON parser for lines that are not one JSON object.
	ErrNotObject = errors.New("logparse: line is not a JSON object")
	// ErrMissingStatus is returned when a structurally valid line has no status code.
	ErrMissingStatus = errors.New("logparse: missing status code")
)

// Parser is one line family.
// Detect is a cheap shape score in [0,1]; Parse does the full conversion.
type Parser interface {
	Format() Format
	Detect(line string) float64
	Parse(line string) (model.Record, error)
}

// Options tunes parsing behavior shared by all families.
type Options struct {
	// SecondsThreshold is the magnitude below which a response time
	// without an explicit millisecond unit is assumed to be in seconds.
	SecondsThreshold float64
}

func (o Options) withDefaults() Options {
	if o.SecondsThreshold <= 0 {
		o.SecondsThreshold = model.DefaultSecondsThreshold
	}
	return o
}

// Parsers returns one instance of every family in detection priority order.
// The self-describing JSON family comes first since its grammar is the least ambiguous.
func Parsers(opts Options) []Parser {
	opts = opts.withDefaults()
	return []Parser{
		NewJSONParser(opts),
		NewTimedParser(opts),
		NewCombinedParser(opts),
	}
}
