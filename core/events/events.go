package events

import (
	"time"

	"github.com/soundbridge/gigdispatch/core/model"
)

// OfferEvent is published for each offer pushed to a provider.
type OfferEvent struct {
	GigID      string
	ProviderID string
	GigType    model.GigType
	Delivered  bool
	Err        error
	Latency    time.Duration
}

// ResponseEvent is published when an offer reaches a terminal state.
type ResponseEvent struct {
	GigID      string
	ProviderID string
	Status     model.ResponseStatus
}

// GigEvent is published on gig lifecycle transitions.
type GigEvent struct {
	GigID  string
	Status model.GigStatus
}

// SettlementEvent is published on every escrow ledger transition.
type SettlementEvent struct {
	GigID    string
	Payment  model.PaymentStatus
	Amount   model.Money
	Payout   model.Money
	Refunded model.Money
}

// DisputeEvent is published when a dispute is raised, answered or resolved.
type DisputeEvent struct {
	DisputeID string
	GigID     string
	Status    model.DisputeStatus
}
