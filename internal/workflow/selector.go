package workflow

import (
	"math/rand"
	"sync"

	"github.com/cityworks/addressing-service/internal/domain"
)

// Selector picks an assignee from a pool of eligible staff. It prefers to
// rotate away from the excluded (previous) assignee but falls back to the
// full pool rather than block the workflow when nobody else is available.
type Selector struct {
	mu   sync.Mutex
	intn func(n int) int
}

// NewSelector builds a Selector backed by the global math/rand source.
func NewSelector() *Selector {
	return &Selector{intn: rand.Intn}
}

// NewSelectorWithRand builds a Selector with an injected random source, used
// by tests to pin selection.
func NewSelectorWithRand(intn func(n int) int) *Selector {
	return &Selector{intn: intn}
}

// Select narrows pool to available staff, removes excludeID when set, and
// chooses uniformly at random. When exclusion empties the pool it falls back
// to the full available pool. Returns nil when nobody is available at all;
// callers treat that as a leave-unassigned outcome, not an error.
func (s *Selector) Select(pool []domain.Staff, excludeID string) *domain.Staff {
	available := make([]domain.Staff, 0, len(pool))
	for _, member := range pool {
		// Directory queries already filter on availability; defend against
		// stale entries anyway.
		if member.IsAvailableForAssignment {
			available = append(available, member)
		}
	}
	if len(available) == 0 {
		return nil
	}

	eligible := available
	if excludeID != "" {
		eligible = make([]domain.Staff, 0, len(available))
		for _, member := range available {
			if member.ID != excludeID {
				eligible = append(eligible, member)
			}
		}
		if len(eligible) == 0 {
			eligible = available
		}
	}

	s.mu.Lock()
	index := s.intn(len(eligible))
	s.mu.Unlock()
	selected := eligible[index]
	return &selected
}
