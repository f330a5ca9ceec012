// Package store holds the in-memory set of lake records the map renders.
//
// A RecordStore is owned by the UI loop and is not safe for concurrent use.
// Refreshes replace the whole set; individual records are never mutated.
package store

import (
	"time"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

// Stats summarises the store for the sidebar.
type Stats struct {
	Total       int       `json:"total"`
	HighRisk    int       `json:"high_risk"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

// RecordStore is the current lake dataset indexed by id.
type RecordStore struct {
	lakes     []domain.Lake
	byID      map[domain.LakeID]int
	updatedAt time.Time
}

// New returns an empty store.
func New() *RecordStore {
	return &RecordStore{byID: make(map[domain.LakeID]int)}
}

// Replace swaps in a new dataset. When ids repeat, the later record wins and
// the earlier one is dropped. It returns the number of dropped duplicates.
func (s *RecordStore) Replace(lakes []domain.Lake, at time.Time) int {
	byID := make(map[domain.LakeID]int, len(lakes))
	kept := make([]domain.Lake, 0, len(lakes))
	dupes := 0
	for _, l := range lakes {
		if i, ok := byID[l.ID]; ok {
			kept[i] = l
			dupes++
			continue
		}
		byID[l.ID] = len(kept)
		kept = append(kept, l)
	}
	s.lakes = kept
	s.byID = byID
	s.updatedAt = at
	return dupes
}

// Lookup finds a lake by id.
func (s *RecordStore) Lookup(id domain.LakeID) (domain.Lake, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Lake{}, false
	}
	return s.lakes[i], true
}

// All returns the records in load order. Callers must not modify the slice.
func (s *RecordStore) All() []domain.Lake {
	return s.lakes
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	return len(s.lakes)
}

// Stats counts total and HIGH risk records.
func (s *RecordStore) Stats() Stats {
	st := Stats{Total: len(s.lakes), LastUpdated: s.updatedAt}
	for _, l := range s.lakes {
		if l.RiskLevel == domain.RiskHigh {
			st.HighRisk++
		}
	}
	return st
}
