package dispute

import (
	"context"
	"sort"
	"sync"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

// Store persists disputes. Transitions are applied atomically so a dispute
// can never be resolved twice.
type Store interface {
	Create(ctx context.Context, d model.Dispute) error
	Get(ctx context.Context, id string) (model.Dispute, error)
	GetByGig(ctx context.Context, gigID string) (model.Dispute, bool, error)
	List(ctx context.Context, status *model.DisputeStatus) ([]model.Dispute, error)

	// Respond records the counter-response once and moves open to
	// under_review.
	Respond(ctx context.Context, id, counterResponse string, counterEvidence []string) (model.Dispute, error)

	// Resolve applies the terminal transition. Already-terminal disputes
	// yield a Conflict error.
	Resolve(ctx context.Context, id string, d model.Dispute) (model.Dispute, error)
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]model.Dispute
	byGig map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Dispute{}, byGig: map[string]string{}}
}

func (s *MemoryStore) Create(_ context.Context, d model.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byGig[d.GigID]; ok {
		if existing := s.data[id]; existing.Status.Active() {
			return faults.Conflictf("gig %s already has an active dispute", d.GigID)
		}
	}
	s.data[d.ID] = d
	s.byGig[d.GigID] = d.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[id]
	if !ok {
		return model.Dispute{}, faults.NotFoundf("unknown dispute %s", id)
	}
	return d, nil
}

func (s *MemoryStore) GetByGig(_ context.Context, gigID string) (model.Dispute, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byGig[gigID]
	if !ok {
		return model.Dispute{}, false, nil
	}
	return s.data[id], true, nil
}

func (s *MemoryStore) List(_ context.Context, status *model.DisputeStatus) ([]model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Dispute
	for _, d := range s.data {
		if status != nil && d.Status != *status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Respond(_ context.Context, id, counterResponse string, counterEvidence []string) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[id]
	if !ok {
		return model.Dispute{}, faults.NotFoundf("unknown dispute %s", id)
	}
	if d.Status != model.DisputeOpen {
		return model.Dispute{}, faults.InvalidStatef("dispute is %s, counter-response not allowed", d.Status)
	}
	d.CounterResponse = counterResponse
	d.CounterEvidence = counterEvidence
	d.Status = model.DisputeUnderReview
	s.data[id] = d
	return d, nil
}

func (s *MemoryStore) Resolve(_ context.Context, id string, resolved model.Dispute) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[id]
	if !ok {
		return model.Dispute{}, faults.NotFoundf("unknown dispute %s", id)
	}
	if d.Status.Terminal() {
		return model.Dispute{}, faults.Conflictf("dispute %s already %s", id, d.Status)
	}
	d.Status = resolved.Status
	d.ResolutionNotes = resolved.ResolutionNotes
	d.SplitPercent = resolved.SplitPercent
	d.ResolvedAt = resolved.ResolvedAt
	s.data[id] = d
	return d, nil
}

// HasActiveDispute reports whether the gig has a dispute that has not been
// resolved. Satisfies the ledger's and the coordinator's freeze checks.
func (s *MemoryStore) HasActiveDispute(_ context.Context, gigID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byGig[gigID]
	if !ok {
		return false
	}
	return s.data[id].Status.Active()
}
