package rating

import (
	"context"
	"sync"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

// Store persists gig ratings.
type Store interface {
	Create(ctx context.Context, r model.GigRating) error
	// ListByProject returns the ratings of a project, at most two.
	ListByProject(ctx context.Context, projectID string) ([]model.GigRating, error)
	// ListByRatee returns all ratings received by a user.
	ListByRatee(ctx context.Context, rateeID string) ([]model.GigRating, error)
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]model.GigRating // projectID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]model.GigRating{}}
}

func (s *MemoryStore) Create(_ context.Context, r model.GigRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data[r.ProjectID] {
		if existing.RaterID == r.RaterID {
			return faults.Conflictf("rating for project %s by %s already exists", r.ProjectID, r.RaterID)
		}
	}
	if len(s.data[r.ProjectID]) >= 2 {
		return faults.Conflictf("project %s already has both ratings", r.ProjectID)
	}
	s.data[r.ProjectID] = append(s.data[r.ProjectID], r)
	return nil
}

func (s *MemoryStore) ListByProject(_ context.Context, projectID string) ([]model.GigRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.GigRating(nil), s.data[projectID]...), nil
}

func (s *MemoryStore) ListByRatee(_ context.Context, rateeID string) ([]model.GigRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.GigRating
	for _, rs := range s.data {
		for _, r := range rs {
			if r.RateeID == rateeID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
