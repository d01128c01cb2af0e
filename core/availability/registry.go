// Package availability tracks each provider's willingness to receive gig
// offers: opt-in, live and general location, schedule, quiet hours and the
// daily notification budget.
package availability

import (
	"time"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/geo"
	"github.com/soundbridge/gigdispatch/core/logger"
	"github.com/soundbridge/gigdispatch/core/model"
)

// Config defines registry settings.
type Config struct {
	// StaleAfterMinutes is the live-location TTL. Positions older than this
	// are cleared by the sweep and ignored by eligibility checks.
	StaleAfterMinutes int `json:"stale_after_minutes"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.StaleAfterMinutes <= 0 {
		c.StaleAfterMinutes = 30
	}
}

// StaleAfter returns the TTL as a duration.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// Registry is the availability service.
type Registry struct {
	store Store
	cfg   Config
	log   logger.Logger
	now   func() time.Time
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(store Store, cfg Config, log logger.Logger) (*Registry, error) {
	if store == nil {
		return nil, faults.Validationf("availability: nil store")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg.SetDefaults()
	return &Registry{store: store, cfg: cfg, log: log, now: time.Now}, nil
}

// SetNow overrides the clock. Tests only.
func (r *Registry) SetNow(now func() time.Time) { r.now = now }

// SetAvailability validates and persists the provider's settings, returning
// the canonical record. A fresh live position from a previous record is kept.
func (r *Registry) SetAvailability(providerID string, a model.Availability) (model.Availability, error) {
	a.ProviderID = providerID
	if err := a.Validate(); err != nil {
		return model.Availability{}, faults.Validationf("availability: %v", err)
	}
	if prev, ok := r.store.Get(providerID); ok {
		a.CurrentLat = prev.CurrentLat
		a.CurrentLng = prev.CurrentLng
		a.LastLocationUpdate = prev.LastLocationUpdate
	}
	r.store.Put(a)
	r.log.Debugw("availability updated", map[string]any{"provider": providerID, "opt_in": a.OptIn})
	return a, nil
}

// Get returns the provider's availability record.
func (r *Registry) Get(providerID string) (model.Availability, error) {
	a, ok := r.store.Get(providerID)
	if !ok {
		return model.Availability{}, faults.NotFoundf("availability: unknown provider %s", providerID)
	}
	return a, nil
}

// UpdateLocation stamps a fresh live position for the provider.
func (r *Registry) UpdateLocation(providerID string, lat, lng float64) error {
	if err := model.ValidateCoordinates(lat, lng); err != nil {
		return faults.Validationf("availability: %v", err)
	}
	if !r.store.SetLocation(providerID, lat, lng, r.now()) {
		return faults.NotFoundf("availability: unknown provider %s", providerID)
	}
	return nil
}

// Candidate pairs a provider with the gig-relative data the matcher ranks on.
type Candidate struct {
	ProviderID string
	DistanceKM float64
	Rate       model.Money
}

// FindEligible returns the providers eligible for the gig, unranked. A
// provider qualifies when opted in, skilled, scheduled and not in DND at the
// gig start, within both radii, and under the daily notification budget.
// Exclusions (providers who already declined or timed out) are skipped.
func (r *Registry) FindEligible(gig model.Gig, exclude map[string]bool) []Candidate {
	now := r.now()
	staleCutoff := now.Add(-r.cfg.StaleAfter())
	var out []Candidate
	for _, a := range r.store.List() {
		if !a.OptIn || exclude[a.ProviderID] || a.ProviderID == gig.CreatorID {
			continue
		}
		if !a.HasSkill(gig.Skill) {
			continue
		}
		if !a.AvailableAt(gig.StartsAt) {
			continue
		}
		if a.MaxNotificationsPerDay > 0 &&
			r.store.CountNotified(a.ProviderID, now) >= a.MaxNotificationsPerDay {
			continue
		}
		// ignore a live position that the sweep has not cleared yet
		if a.CurrentLat != nil && a.LastLocationUpdate.Before(staleCutoff) {
			a.CurrentLat = nil
			a.CurrentLng = nil
		}
		lat, lng := a.Position()
		dist := geo.HaversineKM(lat, lng, gig.Location.Lat, gig.Location.Lng)
		limit := a.MaxRadiusKM
		if gig.Location.RadiusKM < limit {
			limit = gig.Location.RadiusKM
		}
		if dist > limit {
			continue
		}
		out = append(out, Candidate{ProviderID: a.ProviderID, DistanceKM: dist, Rate: a.Rate.Amount})
	}
	return out
}

// RecordNotified counts one pushed offer against the provider's daily budget.
func (r *Registry) RecordNotified(providerID string) {
	r.store.RecordNotified(providerID, r.now())
}

// SweepStaleLocations clears live positions older than the TTL. Idempotent
// and safe to run concurrently with reads and with other sweep instances.
func (r *Registry) SweepStaleLocations() int {
	cleared := r.store.ClearStaleLocations(r.now().Add(-r.cfg.StaleAfter()))
	if cleared > 0 {
		r.log.Infof("cleared %d stale locations", cleared)
	}
	return cleared
}
