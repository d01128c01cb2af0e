package dispatch

import "time"

// Config defines dispatch-related settings.
type Config struct {
	// UrgentWindowSeconds is the offer response window for urgent gigs.
	UrgentWindowSeconds int `json:"urgent_window_seconds"`
	// PlannedWindowHours is the offer response window for planned gigs.
	PlannedWindowHours int `json:"planned_window_hours"`
	// ReceiptTimeoutSeconds bounds the wait for a push delivery receipt.
	ReceiptTimeoutSeconds int `json:"receipt_timeout_seconds"`
}

// SetDefaults applies sane defaults: two minutes for urgent gigs, a day for
// planned ones.
func (c *Config) SetDefaults() {
	if c.UrgentWindowSeconds <= 0 {
		c.UrgentWindowSeconds = 120
	}
	if c.PlannedWindowHours <= 0 {
		c.PlannedWindowHours = 24
	}
	if c.ReceiptTimeoutSeconds <= 0 {
		c.ReceiptTimeoutSeconds = 5
	}
}

// ResponseWindow returns the offer deadline window for the gig type.
func (c Config) ResponseWindow(urgent bool) time.Duration {
	if urgent {
		return time.Duration(c.UrgentWindowSeconds) * time.Second
	}
	return time.Duration(c.PlannedWindowHours) * time.Hour
}

// ReceiptTimeout returns the push receipt wait as a duration.
func (c Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.ReceiptTimeoutSeconds) * time.Second
}
