// Package discover expands command-line inputs into a list of log files.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/tinytelemetry/logsift/internal/model"
)

// ErrNoInputs is returned when Files is called without any input path.
var ErrNoInputs = errors.New("discover: no input paths")

// DefaultExtensions are the file extensions treated as logs during directory walks.
var DefaultExtensions = []string{".log", ".jsonl", ".json", ".txt", ".gz"}

// Options controls directory expansion.
type Options struct {
	// Extensions overrides DefaultExtensions when non-empty.
	Extensions []string
	// MaxDepth limits recursion below each input directory; 0 is unlimited.
	MaxDepth int
}

// Files resolves inputs into absolute, de-duplicated, sorted file paths.
// model.StdinPath is passed through as is.
// Files named directly are always kept; directories are walked and only
// entries that look like logs are kept. Hidden directories are not entered.
func Files(inputs []string, opts Options) ([]string, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}

	for _, in := range inputs {
		if in == model.StdinPath {
			if _, ok := seen[in]; !ok {
				seen[in] = struct{}{}
				out = append(out, in)
			}
			continue
		}
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}
		if !info.IsDir() {
			add(in)
			continue
		}

		root := filepath.Clean(in)
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				if opts.MaxDepth > 0 && depth(root, path) > opts.MaxDepth {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && LooksLikeLog(d.Name(), exts) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover: walk %s: %w", in, err)
		}
	}

	sort.Strings(out)
	return out, nil
}

// LooksLikeLog reports whether a file name matches the log heuristics:
// a known extension (including rotated forms like access.log.1), or a
// name segment such as access, error or log.
func LooksLikeLog(name string, exts []string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, ".") {
		return false
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+".") {
			return true
		}
	}
	for _, seg := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if logNameSegments[seg] || strings.HasPrefix(seg, "access") || strings.HasPrefix(seg, "error") {
			return true
		}
	}
	return false
}

// logNameSegments are whole name segments that mark a log file, as in app-log.1 or syslog.
var logNameSegments = map[string]bool{
	"log": true, "logs": true, "syslog": true, "accesslog": true, "errorlog": true,
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
