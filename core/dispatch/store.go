package dispatch

import (
	"context"
	"time"

	"github.com/soundbridge/gigdispatch/core/model"
)

// GigStore persists gigs and their offer responses. Every conditional method
// must be atomic: the accept race and the ledger transitions rely on
// check-and-set semantics inside the store, never on read-then-write in the
// callers.
type GigStore interface {
	CreateGig(ctx context.Context, g model.Gig) error
	GetGig(ctx context.Context, id string) (model.Gig, error)
	ListGigsByStatus(ctx context.Context, st model.GigStatus) ([]model.Gig, error)

	CreateResponses(ctx context.Context, rs []model.GigResponse) error
	GetResponse(ctx context.Context, gigID, providerID string) (model.GigResponse, error)
	ListResponses(ctx context.Context, gigID string) ([]model.GigResponse, error)

	// AcceptResponse is the single-winner transition: only while the gig is
	// still searching and the response pending does it mark the response
	// accepted, expire every other pending response, set the selected
	// provider and flip the gig to confirmed. A gig already taken yields a
	// Conflict error.
	AcceptResponse(ctx context.Context, gigID, providerID string, now time.Time) (model.Gig, error)

	// DeclineResponse marks a pending response declined.
	DeclineResponse(ctx context.Context, gigID, providerID, message string, now time.Time) error

	// ExpireDueResponses expires pending responses whose deadline has
	// passed and returns them. Idempotent.
	ExpireDueResponses(ctx context.Context, now time.Time) ([]model.GigResponse, error)

	// CancelGig moves a searching gig to cancelled and expires its pending
	// responses.
	CancelGig(ctx context.Context, gigID string, now time.Time) (model.Gig, error)

	// CompleteGig moves a confirmed gig to completed.
	CompleteGig(ctx context.Context, gigID string) (model.Gig, error)

	// ExtendGig pushes the search deadline of a searching gig.
	ExtendGig(ctx context.Context, gigID string, expiresAt time.Time) (model.Gig, error)

	// SetPaymentStatus is the ledger check-and-set: it moves the payment
	// status from from to to, recording the provider payout when given.
	SetPaymentStatus(ctx context.Context, gigID string, from, to model.PaymentStatus, payout model.Money) (model.Gig, error)
}
