package model

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day in "HH:MM" form.
type ClockTime string

// Minutes converts the clock time to minutes from midnight.
func (c ClockTime) Minutes() (int, error) {
	t, err := time.Parse("15:04", string(c))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", c)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DaySchedule describes availability for a single weekday.
type DaySchedule struct {
	Available bool      `json:"available"`
	Start     ClockTime `json:"start,omitempty"`
	End       ClockTime `json:"end,omitempty"`
}

// DNDWindow is a daily quiet period during which no offers are pushed.
// Windows may wrap past midnight (e.g. 22:00-08:00).
type DNDWindow struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Rate describes what the provider charges.
type Rate struct {
	Amount     Money  `json:"amount"`
	Unit       string `json:"unit"` // "hourly" or "per_gig"
	Negotiable bool   `json:"negotiable"`
}

// Availability is a provider's standing willingness to receive gig offers.
type Availability struct {
	ProviderID  string                       `json:"provider_id"`
	OptIn       bool                         `json:"opt_in"`
	Skills      []string                     `json:"skills"`
	Genres      []string                     `json:"genres,omitempty"`
	MaxRadiusKM float64                      `json:"max_radius_km"`
	Rate        Rate                         `json:"rate"`
	Schedule    map[time.Weekday]DaySchedule `json:"schedule"`
	DND         *DNDWindow                   `json:"dnd,omitempty"`

	// MaxNotificationsPerDay caps the offers pushed to the provider in a
	// single calendar day. Zero means no cap.
	MaxNotificationsPerDay int `json:"max_notifications_per_day"`

	// GeneralLat/GeneralLng is the provider's home area, used when no fresh
	// live location is known.
	GeneralLat float64 `json:"general_lat"`
	GeneralLng float64 `json:"general_lng"`

	// CurrentLat/CurrentLng is the last reported live position. It is only
	// trusted while fresh; the staleness sweep clears it.
	CurrentLat         *float64  `json:"current_lat,omitempty"`
	CurrentLng         *float64  `json:"current_lng,omitempty"`
	LastLocationUpdate time.Time `json:"last_location_update,omitempty"`
}

// Validate checks the availability settings.
func (a Availability) Validate() error {
	if a.ProviderID == "" {
		return fmt.Errorf("provider is required")
	}
	if a.MaxRadiusKM <= 0 {
		return fmt.Errorf("max radius must be positive")
	}
	if a.Rate.Amount.Amount < 0 {
		return fmt.Errorf("rate must not be negative")
	}
	if a.Rate.Unit != "hourly" && a.Rate.Unit != "per_gig" {
		return fmt.Errorf("unknown rate unit %q", a.Rate.Unit)
	}
	if len(a.Schedule) != 7 {
		return fmt.Errorf("schedule must cover all seven weekdays, got %d", len(a.Schedule))
	}
	for day, ds := range a.Schedule {
		if !ds.Available {
			continue
		}
		start, err := ds.Start.Minutes()
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		end, err := ds.End.Minutes()
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		if end <= start {
			return fmt.Errorf("%s: end must be after start", day)
		}
	}
	if a.DND != nil {
		if _, err := a.DND.Start.Minutes(); err != nil {
			return err
		}
		if _, err := a.DND.End.Minutes(); err != nil {
			return err
		}
	}
	if err := ValidateCoordinates(a.GeneralLat, a.GeneralLng); err != nil {
		return err
	}
	return nil
}

// Position returns the coordinates to use for distance checks: the live
// position when present, otherwise the general area.
func (a Availability) Position() (lat, lng float64) {
	if a.CurrentLat != nil && a.CurrentLng != nil {
		return *a.CurrentLat, *a.CurrentLng
	}
	return a.GeneralLat, a.GeneralLng
}

// HasSkill reports whether the provider offers the given skill.
func (a Availability) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// AvailableAt reports whether t falls inside the provider's schedule and
// outside the DND window.
func (a Availability) AvailableAt(t time.Time) bool {
	ds, ok := a.Schedule[t.Weekday()]
	if !ok || !ds.Available {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	start, err := ds.Start.Minutes()
	if err != nil {
		return false
	}
	end, err := ds.End.Minutes()
	if err != nil {
		return false
	}
	if minute < start || minute >= end {
		return false
	}
	if a.DND != nil && a.DND.contains(minute) {
		return false
	}
	return true
}

func (w DNDWindow) contains(minute int) bool {
	start, err := w.Start.Minutes()
	if err != nil {
		return false
	}
	end, err := w.End.Minutes()
	if err != nil {
		return false
	}
	if start <= end {
		return minute >= start && minute < end
	}
	// window wraps past midnight
	return minute >= start || minute < end
}
