// Package render projects a Report into human and machine readable output.
// Renderers only read the report.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinytelemetry/logsift/internal/model"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format name.
var ErrUnknownFormat = errors.New("render: unknown output format")

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatCSV, FormatYAML}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case FormatText, FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Write renders report to w in the given format.
func Write(w io.Writer, report model.Report, format Format) error {
	switch format {
	case FormatText, "":
		return writeText(w, report)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("render: yaml: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, report)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
