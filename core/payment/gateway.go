// Package payment defines the abstract payment collaborator. The core never
// talks to a card network itself.
package payment

import (
	"context"

	"github.com/soundbridge/gigdispatch/core/model"
)

// Gateway holds, captures and refunds funds for gigs. Implementations must be
// safe for idempotent retries keyed on the reference.
type Gateway interface {
	// HoldFunds moves the amount into the platform hold for the gig.
	HoldFunds(ctx context.Context, ref string, amount model.Money) error
	// CaptureFunds pays the held amount (or part of it) out to the provider.
	CaptureFunds(ctx context.Context, ref string, amount model.Money, providerID string) error
	// RefundFunds returns the held amount (or part of it) to the requester.
	RefundFunds(ctx context.Context, ref string, amount model.Money, reason string) error
}
