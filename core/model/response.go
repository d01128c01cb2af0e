package model

import "time"

// ResponseStatus tracks the lifecycle of a single offer sent to a provider.
type ResponseStatus int

const (
	ResponsePending ResponseStatus = iota
	ResponseAccepted
	ResponseDeclined
	ResponseExpired
)

func (s ResponseStatus) String() string {
	switch s {
	case ResponsePending:
		return "pending"
	case ResponseAccepted:
		return "accepted"
	case ResponseDeclined:
		return "declined"
	case ResponseExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// GigResponse is the offer record for one (gig, provider) pair. At most one
// response per gig ever reaches ResponseAccepted.
type GigResponse struct {
	ID          string         `json:"id"`
	GigID       string         `json:"gig_id"`
	ProviderID  string         `json:"provider_id"`
	Status      ResponseStatus `json:"status"`
	NotifiedAt  time.Time      `json:"notified_at"`
	RespondedAt time.Time      `json:"responded_at,omitempty"`
	Deadline    time.Time      `json:"deadline"`
	Message     string         `json:"message,omitempty"`
	DistanceKM  float64        `json:"distance_km"`
}

// Latency returns the time between notification and response. Zero until the
// provider has responded.
func (r GigResponse) Latency() time.Duration {
	if r.RespondedAt.IsZero() {
		return 0
	}
	return r.RespondedAt.Sub(r.NotifiedAt)
}

// Terminal reports whether the response can no longer change state.
func (r GigResponse) Terminal() bool { return r.Status != ResponsePending }
