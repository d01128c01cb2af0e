package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

// MemoryStore is the in-memory GigStore. A single mutex makes every
// conditional transition atomic.
type MemoryStore struct {
	mu        sync.Mutex
	gigs      map[string]model.Gig
	responses map[string]map[string]model.GigResponse // gigID -> providerID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		gigs:      map[string]model.Gig{},
		responses: map[string]map[string]model.GigResponse{},
	}
}

func (s *MemoryStore) CreateGig(_ context.Context, g model.Gig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gigs[g.ID]; ok {
		return faults.Conflictf("gig %s already exists", g.ID)
	}
	s.gigs[g.ID] = g
	return nil
}

func (s *MemoryStore) GetGig(_ context.Context, id string) (model.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[id]
	if !ok {
		return model.Gig{}, faults.NotFoundf("unknown gig %s", id)
	}
	return g, nil
}

func (s *MemoryStore) ListGigsByStatus(_ context.Context, st model.GigStatus) ([]model.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Gig
	for _, g := range s.gigs {
		if g.Status == st {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateResponses(_ context.Context, rs []model.GigResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		m, ok := s.responses[r.GigID]
		if !ok {
			m = map[string]model.GigResponse{}
			s.responses[r.GigID] = m
		}
		if _, exists := m[r.ProviderID]; exists {
			return faults.Conflictf("response for gig %s provider %s already exists", r.GigID, r.ProviderID)
		}
		m[r.ProviderID] = r
	}
	return nil
}

func (s *MemoryStore) GetResponse(_ context.Context, gigID, providerID string) (model.GigResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[gigID][providerID]
	if !ok {
		return model.GigResponse{}, faults.NotFoundf("no response for gig %s provider %s", gigID, providerID)
	}
	return r, nil
}

func (s *MemoryStore) ListResponses(_ context.Context, gigID string) ([]model.GigResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.responses[gigID]
	out := make([]model.GigResponse, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

func (s *MemoryStore) AcceptResponse(_ context.Context, gigID, providerID string, now time.Time) (model.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[gigID]
	if !ok {
		return model.Gig{}, faults.NotFoundf("unknown gig %s", gigID)
	}
	r, ok := s.responses[gigID][providerID]
	if !ok {
		return model.Gig{}, faults.NotFoundf("no response for gig %s provider %s", gigID, providerID)
	}
	if g.Status != model.GigSearching {
		return model.Gig{}, faults.Conflictf("gig %s already %s", gigID, g.Status)
	}
	if r.Status != model.ResponsePending {
		return model.Gig{}, faults.InvalidStatef("response already %s", r.Status)
	}
	r.Status = model.ResponseAccepted
	r.RespondedAt = now
	s.responses[gigID][providerID] = r
	for id, other := range s.responses[gigID] {
		if id != providerID && other.Status == model.ResponsePending {
			other.Status = model.ResponseExpired
			s.responses[gigID][id] = other
		}
	}
	g.Status = model.GigConfirmed
	g.SelectedProvider = providerID
	s.gigs[gigID] = g
	return g, nil
}

func (s *MemoryStore) DeclineResponse(_ context.Context, gigID, providerID, message string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[gigID][providerID]
	if !ok {
		return faults.NotFoundf("no response for gig %s provider %s", gigID, providerID)
	}
	if r.Status != model.ResponsePending {
		return faults.InvalidStatef("response already %s", r.Status)
	}
	r.Status = model.ResponseDeclined
	r.RespondedAt = now
	r.Message = message
	s.responses[gigID][providerID] = r
	return nil
}

func (s *MemoryStore) ExpireDueResponses(_ context.Context, now time.Time) ([]model.GigResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []model.GigResponse
	for gigID, m := range s.responses {
		for id, r := range m {
			if r.Status == model.ResponsePending && r.Deadline.Before(now) {
				r.Status = model.ResponseExpired
				s.responses[gigID][id] = r
				expired = append(expired, r)
			}
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].GigID != expired[j].GigID {
			return expired[i].GigID < expired[j].GigID
		}
		return expired[i].ProviderID < expired[j].ProviderID
	})
	return expired, nil
}

func (s *MemoryStore) CancelGig(_ context.Context, gigID string, now time.Time) (model.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[gigID]
	if !ok {
		return model.Gig{}, faults.NotFoundf("unknown gig %s", gigID)
	}
	if g.Status != model.GigSearching {
		return model.Gig{}, faults.InvalidStatef("cannot cancel gig in %s", g.Status)
	}
	for id, r := range s.responses[gigID] {
		if r.Status == model.ResponsePending {
			r.Status = model.ResponseExpired
			s.responses[gigID][id] = r
		}
	}
	g.Status = model.GigCancelled
	s.gigs[gigID] = g
	return g, nil
}

func (s *MemoryStore) CompleteGig(_ context.Context, gigID string) (model.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[gigID]
	if !ok {
		return model.Gig{}, faults.NotFoundf("unknown gig %s", gigID)
	}
	if g.Status != model.GigConfirmed {
		return model.Gig{}, faults.InvalidStatef("cannot complete gig in %s", g.Status)
	}
	g.Status = model.GigCompleted
	s.gigs[gigID] = g
	return g, nil
}

func (s *MemoryStore) ExtendGig(_ context.Context, gigID string, expiresAt time.Time) (model.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[gigID]
	if !ok {
		return model.Gig{}, faults.NotFoundf("unknown gig %s", gigID)
	}
	// a cancelled search can be re-opened; confirmed gigs cannot
	if g.Status != model.GigSearching && g.Status != model.GigCancelled {
		return model.Gig{}, faults.InvalidStatef("cannot extend gig in %s", g.Status)
	}
	g.Status = model.GigSearching
	g.ExpiresAt = expiresAt
	s.gigs[gigID] = g
	return g, nil
}

func (s *MemoryStore) SetPaymentStatus(_ context.Context, gigID string, from, to model.PaymentStatus, payout model.Money) (model.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[gigID]
	if !ok {
		return model.Gig{}, faults.NotFoundf("unknown gig %s", gigID)
	}
	if g.Payment != from {
		return model.Gig{}, faults.InvalidStatef("payment is %s, expected %s", g.Payment, from)
	}
	g.Payment = to
	if !payout.IsZero() {
		g.ProviderPayout = payout
	}
	s.gigs[gigID] = g
	return g, nil
}
