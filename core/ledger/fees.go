package ledger

import (
	"github.com/soundbridge/gigdispatch/core/model"
)

// FeeSchedule holds the platform fee per booking type, in whole percent.
type FeeSchedule struct {
	ServicePercent int64 `json:"service_percent"`
	VenuePercent   int64 `json:"venue_percent"`
}

// SetDefaults applies the platform defaults: 12% for service bookings, 8%
// for venue bookings.
func (f *FeeSchedule) SetDefaults() {
	if f.ServicePercent <= 0 {
		f.ServicePercent = 12
	}
	if f.VenuePercent <= 0 {
		f.VenuePercent = 8
	}
}

// PlatformFee returns the fee withheld from the amount for the booking type.
func (f FeeSchedule) PlatformFee(amount model.Money, booking model.BookingType) model.Money {
	pct := f.ServicePercent
	if booking == model.BookingVenue {
		pct = f.VenuePercent
	}
	return amount.Percent(pct)
}

// Payout returns amount minus the platform fee.
func (f FeeSchedule) Payout(amount model.Money, booking model.BookingType) model.Money {
	fee := f.PlatformFee(amount, booking)
	out, _ := amount.Sub(fee)
	return out
}
