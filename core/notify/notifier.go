// Package notify defines the push-notification port of the dispatch core.
// Delivery and retry beyond the receipt wait are the collaborator's concern.
package notify

import (
	"errors"
	"time"

	"github.com/soundbridge/gigdispatch/core/model"
)

// ErrReceiptTimeout is returned when no delivery receipt arrives within the
// wait window.
var ErrReceiptTimeout = errors.New("receipt timeout")

// Offer is the payload pushed to a candidate provider.
type Offer struct {
	GigID      string        `json:"gig_id"`
	ProviderID string        `json:"provider_id"`
	GigType    string        `json:"gig_type"`
	Skill      string        `json:"skill"`
	Amount     model.Money   `json:"amount"`
	DistanceKM float64       `json:"distance_km"`
	Deadline   time.Time     `json:"deadline"`
	Window     time.Duration `json:"window"`
}

// Notice is a plain informational push: offer accepted, dispute raised,
// funds released.
type Notice struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	GigID  string `json:"gig_id,omitempty"`
	Body   string `json:"body,omitempty"`
}

// Notifier pushes offers and notices to users.
type Notifier interface {
	// PushOffer delivers an offer and returns the delivery identifier used
	// to track the device receipt.
	PushOffer(o Offer) (deliveryID string, err error)

	// WaitForReceipt blocks until the device confirms delivery of the given
	// push or until the timeout expires.
	WaitForReceipt(deliveryID string, timeout time.Duration) (bool, error)

	// PushNotice delivers an informational notice. Fire and forget.
	PushNotice(n Notice) error
}
