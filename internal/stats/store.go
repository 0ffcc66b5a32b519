package stats

import (
	"sync"
	"time"

	"fraudsim/internal/model"
)

// Counts is a snapshot of decisions taken since the process started.
type Counts struct {
	Total     int64     `json:"total"`
	Success   int64     `json:"success"`
	Failed    int64     `json:"failed"`
	Pending   int64     `json:"pending"`
	Fraud     int64     `json:"fraud"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store accumulates decision counters in process memory. It backs the status
// endpoint so operators can see throughput without a datastore round-trip.
type Store struct {
	mu     sync.RWMutex
	counts Counts
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Record(status model.Status, fraudFlag int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Total++
	switch status {
	case model.StatusSuccess:
		s.counts.Success++
	case model.StatusFailed:
		s.counts.Failed++
	case model.StatusPending:
		s.counts.Pending++
	}
	if fraudFlag == 1 {
		s.counts.Fraud++
	}
	s.counts.UpdatedAt = time.Now().UTC()
}

func (s *Store) Snapshot() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = Counts{}
}
