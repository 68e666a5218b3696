// Package filter decides which parsed records take part in aggregation.
package filter

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
)

// ErrInvalidRange is returned when a lower bound exceeds its upper bound.
var ErrInvalidRange = errors.New("filter: invalid range")

// Filters is a conjunction of optional clauses. The zero value matches every record.
type Filters struct {
	// From and To bound the timestamp as [From, To).
	From *time.Time
	To   *time.Time
	// MinStatus and MaxStatus are inclusive; 0 leaves that side unbounded.
	MinStatus int
	MaxStatus int
	Endpoint  *regexp.Regexp
	Allow     IPSet
	Deny      IPSet
}

// Matches reports whether r passes every configured clause.
func (f Filters) Matches(r model.Record) bool {
	if f.MinStatus > 0 && r.StatusCode < f.MinStatus {
		return false
	}
	if f.MaxStatus > 0 && r.StatusCode > f.MaxStatus {
		return false
	}

	if f.From != nil || f.To != nil {
		// Unknown timestamps never satisfy a bounded range.
		if r.Timestamp.IsZero() {
			return false
		}
		if f.From != nil && r.Timestamp.Before(*f.From) {
			return false
		}
		if f.To != nil && !r.Timestamp.Before(*f.To) {
			return false
		}
	}

	if f.Endpoint != nil && !f.Endpoint.MatchString(r.Endpoint) {
		return false
	}

	if f.Deny.Contains(r.ClientAddress) {
		return false
	}
	if !f.Allow.Empty() && !f.Allow.Contains(r.ClientAddress) {
		return false
	}
	return true
}

// Active reports whether any clause is set.
func (f Filters) Active() bool {
	return f.From != nil || f.To != nil || f.MinStatus > 0 || f.MaxStatus > 0 ||
		f.Endpoint != nil || !f.Allow.Empty() || !f.Deny.Empty()
}

// IPSet holds exact client addresses and CIDR prefixes.
type IPSet struct {
	exact    map[string]struct{}
	prefixes []netip.Prefix
}

// ParseIPSet builds a set from a comma-separated list of addresses or CIDR prefixes.
// Entries that are not IPs are kept as exact strings, so hostnames still match literally.
func ParseIPSet(raw string) (IPSet, error) {
	var s IPSet
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return IPSet{}, fmt.Errorf("filter: parse prefix %q: %w", item, err)
			}
			s.prefixes = append(s.prefixes, p.Masked())
			continue
		}
		if s.exact == nil {
			s.exact = make(map[string]struct{})
		}
		if addr, err := netip.ParseAddr(item); err == nil {
			item = addr.String()
		}
		s.exact[item] = struct{}{}
	}
	return s, nil
}

// Empty reports whether the set has no entries.
func (s IPSet) Empty() bool {
	return len(s.exact) == 0 && len(s.prefixes) == 0
}

// Len returns the number of entries.
func (s IPSet) Len() int {
	return len(s.exact) + len(s.prefixes)
}

// Contains reports whether addr is listed or falls inside a listed prefix.
func (s IPSet) Contains(addr string) bool {
	if s.Empty() || addr == "" {
		return false
	}
	if _, ok := s.exact[addr]; ok {
		return true
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	if _, ok := s.exact[ip.String()]; ok {
		return true
	}
	for _, p := range s.prefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTime parses a date-range bound. A bare date (2006-01-02) is midnight UTC,
// or the following midnight when endOfDay is set, so that "--to 2024-01-31"
// includes the whole day under the exclusive upper bound.
func ParseTime(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			d = d.AddDate(0, 0, 1)
		}
		return d, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("filter: parse time %q", raw)
}

// Options is the raw, string-typed filter configuration from flags or config files.
type Options struct {
	From      string
	To        string
	MinStatus int
	MaxStatus int
	Endpoint  string
	AllowIPs  string
	DenyIPs   string
}

// New validates opts and builds Filters.
func New(opts Options) (Filters, error) {
	var f Filters

	if opts.From != "" {
		t, err := ParseTime(opts.From, false)
		if err != nil {
			return Filters{}, err
		}
		f.From = &t
	}
	if opts.To != "" {
		t, err := ParseTime(opts.To, true)
		if err != nil {
			return Filters{}, err
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return Filters{}, fmt.Errorf("%w: from %s is not before to %s", ErrInvalidRange,
			f.From.Format(time.RFC3339), f.To.Format(time.RFC3339))
	}

	if opts.MinStatus < 0 || opts.MaxStatus < 0 {
		return Filters{}, fmt.Errorf("%w: negative status bound", ErrInvalidRange)
	}
	if opts.MinStatus > 0 && opts.MaxStatus > 0 && opts.MinStatus > opts.MaxStatus {
		return Filters{}, fmt.Errorf("%w: status %d > %d", ErrInvalidRange, opts.MinStatus, opts.MaxStatus)
	}
	f.MinStatus = opts.MinStatus
	f.MaxStatus = opts.MaxStatus

	if opts.Endpoint != "" {
		re, err := regexp.Compile(opts.Endpoint)
		if err != nil {
			return Filters{}, fmt.Errorf("filter: compile endpoint pattern: %w", err)
		}
		f.Endpoint = re
	}

	var err error
	if f.Allow, err = ParseIPSet(opts.AllowIPs); err != nil {
		return Filters{}, err
	}
	if f.Deny, err = ParseIPSet(opts.DenyIPs); err != nil {
		return Filters{}, err
	}
	return f, nil
}
