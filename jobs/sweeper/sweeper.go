// Package sweeper runs the periodic maintenance jobs: offer expiry, stale
// location cleanup and completion of elapsed gigs.
package sweeper

import (
	"context"
	"time"

	"github.com/soundbridge/gigdispatch/core/availability"
	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/logger"
)

// Config holds the sweep intervals in seconds.
type Config struct {
	OfferSweepSeconds      int `json:"offer_sweep_seconds"`
	LocationSweepSeconds   int `json:"location_sweep_seconds"`
	CompletionSweepSeconds int `json:"completion_sweep_seconds"`
}

// SetDefaults fills zero intervals.
func (c *Config) SetDefaults() {
	if c.OfferSweepSeconds <= 0 {
		c.OfferSweepSeconds = 15
	}
	if c.LocationSweepSeconds <= 0 {
		c.LocationSweepSeconds = 60
	}
	if c.CompletionSweepSeconds <= 0 {
		c.CompletionSweepSeconds = 60
	}
}

// Sweeper drives the periodic jobs until its context is canceled.
type Sweeper struct {
	coordinator *dispatch.Coordinator
	registry    *availability.Registry
	cfg         Config
	log         logger.Logger
}

// New creates a Sweeper. coordinator and registry are mandatory.
func New(coordinator *dispatch.Coordinator, registry *availability.Registry, cfg Config, log logger.Logger) (*Sweeper, error) {
	if coordinator == nil || registry == nil {
		return nil, faults.Validationf("sweeper: nil parameter provided to New")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg.SetDefaults()
	return &Sweeper{coordinator: coordinator, registry: registry, cfg: cfg, log: log}, nil
}

// Run blocks until ctx is canceled, firing each sweep on its own interval.
func (s *Sweeper) Run(ctx context.Context) {
	offers := time.NewTicker(time.Duration(s.cfg.OfferSweepSeconds) * time.Second)
	locations := time.NewTicker(time.Duration(s.cfg.LocationSweepSeconds) * time.Second)
	completions := time.NewTicker(time.Duration(s.cfg.CompletionSweepSeconds) * time.Second)
	defer offers.Stop()
	defer locations.Stop()
	defer completions.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-offers.C:
			if n, err := s.coordinator.ExpireDueOffers(ctx); err != nil {
				s.log.Errorf("offer sweep: %v", err)
			} else if n > 0 {
				s.log.Infof("expired %d overdue offers", n)
			}
		case <-locations.C:
			if n := s.registry.SweepStaleLocations(); n > 0 {
				s.log.Infof("cleared %d stale locations", n)
			}
		case <-completions.C:
			if n, err := s.coordinator.CompleteDueGigs(ctx); err != nil {
				s.log.Errorf("completion sweep: %v", err)
			} else if n > 0 {
				s.log.Infof("completed %d elapsed gigs", n)
			}
		}
	}
}
