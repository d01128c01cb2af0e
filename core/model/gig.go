package model

import (
	"fmt"
	"time"
)

// GigType distinguishes short-notice requests from planned bookings.
type GigType int

const (
	GigUrgent GigType = iota
	GigPlanned
)

// String returns a human-readable representation of the gig type.
func (t GigType) String() string {
	switch t {
	case GigUrgent:
		return "urgent"
	case GigPlanned:
		return "planned"
	default:
		return "unknown"
	}
}

// GigStatus tracks the dispatch lifecycle of a gig.
type GigStatus int

const (
	GigSearching GigStatus = iota
	GigConfirmed
	GigCompleted
	GigCancelled
)

func (s GigStatus) String() string {
	switch s {
	case GigSearching:
		return "searching"
	case GigConfirmed:
		return "confirmed"
	case GigCompleted:
		return "completed"
	case GigCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PaymentStatus tracks the escrow lifecycle of the gig payment.
type PaymentStatus int

const (
	PaymentPending PaymentStatus = iota
	PaymentEscrowed
	PaymentReleased
	PaymentRefunded
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPending:
		return "pending"
	case PaymentEscrowed:
		return "escrowed"
	case PaymentReleased:
		return "released"
	case PaymentRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// BookingType selects the platform fee schedule applied on release.
type BookingType string

const (
	BookingService BookingType = "service"
	BookingVenue   BookingType = "venue"
)

// Location is a point with the search radius attached to the gig.
type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address,omitempty"`
	RadiusKM float64 `json:"radius_km"`
}

// Gig represents a unit of work submitted by a requester.
type Gig struct {
	ID               string        `json:"id"`
	CreatorID        string        `json:"creator_id"`
	ProjectID        string        `json:"project_id"`
	Type             GigType       `json:"type"`
	Booking          BookingType   `json:"booking_type"`
	Skill            string        `json:"skill"`
	Genres           []string      `json:"genres,omitempty"`
	Location         Location      `json:"location"`
	StartsAt         time.Time     `json:"starts_at"`
	Duration         time.Duration `json:"duration"`
	Amount           Money         `json:"amount"`
	Status           GigStatus     `json:"status"`
	Payment          PaymentStatus `json:"payment_status"`
	SelectedProvider string        `json:"selected_provider,omitempty"`
	ProviderPayout   Money         `json:"provider_payout,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// EndsAt returns the scheduled end of the service window.
func (g Gig) EndsAt() time.Time { return g.StartsAt.Add(g.Duration) }

// Validate checks that the gig request is sound.
func (g Gig) Validate() error {
	if g.CreatorID == "" {
		return fmt.Errorf("creator is required")
	}
	if g.Skill == "" {
		return fmt.Errorf("skill is required")
	}
	if err := ValidateCoordinates(g.Location.Lat, g.Location.Lng); err != nil {
		return err
	}
	if g.Location.RadiusKM <= 0 {
		return fmt.Errorf("search radius must be positive")
	}
	if g.StartsAt.IsZero() {
		return fmt.Errorf("start time is required")
	}
	if g.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if g.Amount.Amount <= 0 {
		return fmt.Errorf("payment amount must be positive")
	}
	if g.Booking != BookingService && g.Booking != BookingVenue {
		return fmt.Errorf("unknown booking type %q", g.Booking)
	}
	return nil
}

// ValidateCoordinates rejects out-of-range latitude or longitude values.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	return nil
}
