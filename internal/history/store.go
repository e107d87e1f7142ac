// Package history keeps a bounded in-memory record of recent scans for
// the dashboard list endpoints.
package history

import (
	"sync"

	"github.com/mikey/phish-triage/internal/core"
)

// Scan kinds.
const (
	KindURL   = "url"
	KindEmail = "email"
)

// Record is one completed scan together with what was scanned.
type Record struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	*core.ClassificationResult
}

// Store is a fixed-capacity, newest-first scan history.
type Store struct {
	mu      sync.RWMutex
	max     int
	records []*Record
	byID    map[string]*Record
}

// NewStore creates a history store holding at most max records. A
// non-positive max falls back to a small default.
func NewStore(max int) *Store {
	if max <= 0 {
		max = 100
	}
	return &Store{
		max:  max,
		byID: make(map[string]*Record),
	}
}

// Add records a completed scan, evicting the oldest once full.
func (s *Store) Add(kind, target string, result *core.ClassificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &Record{Kind: kind, Target: target, ClassificationResult: result}
	s.records = append([]*Record{record}, s.records...)
	s.byID[result.ScanID] = record

	if len(s.records) > s.max {
		evicted := s.records[len(s.records)-1]
		s.records = s.records[:len(s.records)-1]
		delete(s.byID, evicted.ScanID)
	}
}

// List returns all records, newest first.
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record for a scan ID.
func (s *Store) Get(scanID string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[scanID]
	return record, ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
