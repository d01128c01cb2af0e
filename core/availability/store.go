package availability

import (
	"sort"
	"sync"
	"time"

	"github.com/soundbridge/gigdispatch/core/model"
)

// Store persists provider availability records. Implementations must apply
// each mutation atomically; the staleness sweep relies on it.
type Store interface {
	Put(model.Availability)
	Get(providerID string) (model.Availability, bool)
	List() []model.Availability

	// SetLocation stamps a fresh live position for the provider.
	SetLocation(providerID string, lat, lng float64, now time.Time) bool

	// ClearStaleLocations clears live positions older than cutoff and
	// returns how many were cleared. Idempotent.
	ClearStaleLocations(cutoff time.Time) int

	// CountNotified returns how many offers were pushed to the provider on
	// the given day, and RecordNotified increments that count.
	CountNotified(providerID string, day time.Time) int
	RecordNotified(providerID string, day time.Time)
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]model.Availability
	notified map[string]int // providerID + day key
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     map[string]model.Availability{},
		notified: map[string]int{},
	}
}

func (s *MemoryStore) Put(a model.Availability) {
	s.mu.Lock()
	s.data[a.ProviderID] = a
	s.mu.Unlock()
}

func (s *MemoryStore) Get(id string) (model.Availability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data[id]
	return a, ok
}

func (s *MemoryStore) List() []model.Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Availability, 0, len(s.data))
	for _, a := range s.data {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ProviderID < res[j].ProviderID })
	return res
}

func (s *MemoryStore) SetLocation(id string, lat, lng float64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id]
	if !ok {
		return false
	}
	a.CurrentLat = &lat
	a.CurrentLng = &lng
	a.LastLocationUpdate = now
	s.data[id] = a
	return true
}

func (s *MemoryStore) ClearStaleLocations(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for id, a := range s.data {
		if a.CurrentLat == nil || !a.LastLocationUpdate.Before(cutoff) {
			continue
		}
		a.CurrentLat = nil
		a.CurrentLng = nil
		s.data[id] = a
		cleared++
	}
	return cleared
}

func dayKey(id string, day time.Time) string {
	return id + "|" + day.UTC().Format("2006-01-02")
}

func (s *MemoryStore) CountNotified(id string, day time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notified[dayKey(id, day)]
}

func (s *MemoryStore) RecordNotified(id string, day time.Time) {
	s.mu.Lock()
	s.notified[dayKey(id, day)]++
	s.mu.Unlock()
}
