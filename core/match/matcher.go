// Package match ranks eligible providers for a gig. The ordering is fully
// deterministic so repeated invocations and retries see the same candidates.
package match

import (
	"sort"

	"github.com/soundbridge/gigdispatch/core/availability"
	"github.com/soundbridge/gigdispatch/core/model"
)

// RatingSource supplies the aggregate rating used as the second ranking key.
type RatingSource interface {
	// ProviderAverage returns the provider's mean overall rating, or 0 when
	// the provider has no ratings yet.
	ProviderAverage(providerID string) float64
}

// Candidate is a ranked match result.
type Candidate struct {
	ProviderID string
	DistanceKM float64
	Rating     float64
	Rate       model.Money
}

// Matcher ranks candidates from the availability registry.
type Matcher struct {
	registry *availability.Registry
	ratings  RatingSource
}

// New creates a Matcher. ratings may be nil, in which case all providers rank
// equal on the rating key.
func New(registry *availability.Registry, ratings RatingSource) *Matcher {
	return &Matcher{registry: registry, ratings: ratings}
}

// Match returns the ranked candidate list for the gig, excluding the given
// providers. Ranking key: ascending distance, then descending rating, then
// ascending rate, ties broken by provider id. An empty gig match is not an
// error; the caller decides whether to widen the radius or give up.
func (m *Matcher) Match(gig model.Gig, exclude map[string]bool) []Candidate {
	eligible := m.registry.FindEligible(gig, exclude)
	out := make([]Candidate, 0, len(eligible))
	for _, e := range eligible {
		c := Candidate{ProviderID: e.ProviderID, DistanceKM: e.DistanceKM, Rate: e.Rate}
		if m.ratings != nil {
			c.Rating = m.ratings.ProviderAverage(e.ProviderID)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DistanceKM != b.DistanceKM {
			return a.DistanceKM < b.DistanceKM
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Rate.Amount != b.Rate.Amount {
			return a.Rate.Amount < b.Rate.Amount
		}
		return a.ProviderID < b.ProviderID
	})
	return out
}
