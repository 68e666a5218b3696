package httpserver

import (
	"sync"

	"github.com/tinytelemetry/logsift/internal/model"
)

// ReportStore holds the most recent report. It is a cache of the last run,
// not a history.
type ReportStore struct {
	mu     sync.RWMutex
	latest model.Report
	ok     bool
}

// NewReportStore returns an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{}
}

// Set replaces the latest report.
func (s *ReportStore) Set(r model.Report) {
	s.mu.Lock()
	s.latest = r
	s.ok = true
	s.mu.Unlock()
}

// Latest returns the latest report and whether one exists.
func (s *ReportStore) Latest() (model.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}
