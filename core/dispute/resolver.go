// Package dispute implements the dispute state machine: open, under review,
// then exactly one of resolved_refund, resolved_release or resolved_split.
// An active dispute freezes the escrow ledger for its gig.
package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/events"
	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/ledger"
	"github.com/soundbridge/gigdispatch/core/logger"
	"github.com/soundbridge/gigdispatch/core/model"
	"github.com/soundbridge/gigdispatch/core/notify"
	"github.com/soundbridge/gigdispatch/internal/eventbus"
)

// Outcome names the terminal resolution requested by an administrator.
type Outcome string

const (
	OutcomeRefund  Outcome = "resolved_refund"
	OutcomeRelease Outcome = "resolved_release"
	OutcomeSplit   Outcome = "resolved_split"
)

// Settler is the slice of the escrow ledger the resolver drives. Satisfied
// by *ledger.Ledger.
type Settler interface {
	ResolvedRelease(ctx context.Context, gigID, key string) (ledger.Entry, error)
	ResolvedRefund(ctx context.Context, gigID, key, reason string) (ledger.Entry, error)
	ResolvedSplit(ctx context.Context, gigID, key string, splitPercent int) (ledger.Entry, error)
}

// Resolver runs the dispute workflow.
type Resolver struct {
	store    Store
	gigs     dispatch.GigStore
	settler  Settler
	notifier notify.Notifier
	log      logger.Logger
	bus      eventbus.EventBus
	now      func() time.Time
}

// NewResolver creates a Resolver. store and gigs are mandatory; settler may
// be wired later.
func NewResolver(store Store, gigs dispatch.GigStore, settler Settler, bus eventbus.EventBus, log logger.Logger) (*Resolver, error) {
	if store == nil || gigs == nil {
		return nil, faults.Validationf("dispute: nil parameter provided to NewResolver")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Resolver{store: store, gigs: gigs, settler: settler, bus: bus, log: log, now: time.Now}, nil
}

// SetNotifier wires the notice push for raised disputes.
func (r *Resolver) SetNotifier(n notify.Notifier) { r.notifier = n }

// SetNow overrides the clock. Tests only.
func (r *Resolver) SetNow(now func() time.Time) { r.now = now }

// Raise opens a dispute on a gig. The raiser must be a participant and the
// gig must be in an active or recently completed state. From this point the
// ledger refuses release and refund for the gig until resolution.
func (r *Resolver) Raise(ctx context.Context, gigID, raiserID, reason, description string, evidence []string) (model.Dispute, error) {
	d := model.Dispute{GigID: gigID, RaiserID: raiserID, Reason: reason, Description: description, Evidence: evidence}
	if err := d.Validate(); err != nil {
		return model.Dispute{}, faults.Validationf("dispute: %v", err)
	}
	g, err := r.gigs.GetGig(ctx, gigID)
	if err != nil {
		return model.Dispute{}, err
	}
	switch g.Status {
	case model.GigConfirmed, model.GigCompleted:
	default:
		return model.Dispute{}, faults.InvalidStatef("cannot dispute gig in %s", g.Status)
	}
	switch raiserID {
	case g.CreatorID:
		d.RespondentID = g.SelectedProvider
	case g.SelectedProvider:
		d.RespondentID = g.CreatorID
	default:
		return model.Dispute{}, faults.Validationf("%s is not a participant of gig %s", raiserID, gigID)
	}
	d.ID = uuid.NewString()
	d.ProjectID = g.ProjectID
	d.Status = model.DisputeOpen
	d.RaisedAt = r.now()
	if err := r.store.Create(ctx, d); err != nil {
		return model.Dispute{}, err
	}
	r.publish(events.DisputeEvent{DisputeID: d.ID, GigID: gigID, Status: d.Status})
	if r.notifier != nil {
		if err := r.notifier.PushNotice(notify.Notice{
			UserID: d.RespondentID,
			Kind:   "dispute_raised",
			GigID:  gigID,
		}); err != nil {
			r.log.Warnf("dispute notice failed: %v", err)
		}
	}
	r.log.Infof("dispute %s raised on gig %s", d.ID, gigID)
	return d, nil
}

// Respond records the respondent's counter-response, moving the dispute from
// open to under_review. Allowed once, and only by the non-raising party.
func (r *Resolver) Respond(ctx context.Context, disputeID, responderID, counterResponse string, counterEvidence []string) (model.Dispute, error) {
	d, err := r.store.Get(ctx, disputeID)
	if err != nil {
		return model.Dispute{}, err
	}
	if responderID != d.RespondentID {
		return model.Dispute{}, faults.Validationf("%s may not respond to dispute %s", responderID, disputeID)
	}
	d, err = r.store.Respond(ctx, disputeID, counterResponse, counterEvidence)
	if err != nil {
		return model.Dispute{}, err
	}
	r.publish(events.DisputeEvent{DisputeID: d.ID, GigID: d.GigID, Status: d.Status})
	return d, nil
}

// ForceReview moves an unanswered dispute to under_review. Administrator
// action for respondents who never answer.
func (r *Resolver) ForceReview(ctx context.Context, disputeID string) (model.Dispute, error) {
	d, err := r.store.Respond(ctx, disputeID, "", nil)
	if err != nil {
		return model.Dispute{}, err
	}
	r.publish(events.DisputeEvent{DisputeID: d.ID, GigID: d.GigID, Status: d.Status})
	return d, nil
}

// Resolve applies the administrator's terminal outcome and drives the
// corresponding ledger operation. splitPercent is the provider's share and is
// only meaningful for OutcomeSplit.
func (r *Resolver) Resolve(ctx context.Context, disputeID string, outcome Outcome, notes string, splitPercent int) (model.Dispute, error) {
	var status model.DisputeStatus
	switch outcome {
	case OutcomeRefund:
		status = model.DisputeResolvedRefund
	case OutcomeRelease:
		status = model.DisputeResolvedRelease
	case OutcomeSplit:
		status = model.DisputeResolvedSplit
		if splitPercent < 0 || splitPercent > 100 {
			return model.Dispute{}, faults.Validationf("split percent %d out of range", splitPercent)
		}
	default:
		return model.Dispute{}, faults.Validationf("unknown outcome %q", outcome)
	}
	resolved := model.Dispute{Status: status, ResolutionNotes: notes, ResolvedAt: r.now()}
	if status == model.DisputeResolvedSplit {
		resolved.SplitPercent = splitPercent
	}
	d, err := r.store.Resolve(ctx, disputeID, resolved)
	if err != nil {
		return model.Dispute{}, err
	}
	r.publish(events.DisputeEvent{DisputeID: d.ID, GigID: d.GigID, Status: d.Status})
	r.log.Infof("dispute %s resolved as %s", d.ID, d.Status)

	if r.settler != nil {
		// the dispute is terminal now, so the ledger freeze is lifted;
		// settlement keys derive from the dispute id for replay safety
		key := "dispute:" + d.ID
		var serr error
		switch status {
		case model.DisputeResolvedRelease:
			_, serr = r.settler.ResolvedRelease(ctx, d.GigID, key)
		case model.DisputeResolvedRefund:
			_, serr = r.settler.ResolvedRefund(ctx, d.GigID, key, d.Reason)
		case model.DisputeResolvedSplit:
			_, serr = r.settler.ResolvedSplit(ctx, d.GigID, key, d.SplitPercent)
		}
		if serr != nil {
			r.log.Errorf("settlement for dispute %s failed: %v", d.ID, serr)
			return d, serr
		}
	}
	return d, nil
}

// Get returns the dispute by id.
func (r *Resolver) Get(ctx context.Context, disputeID string) (model.Dispute, error) {
	return r.store.Get(ctx, disputeID)
}

func (r *Resolver) publish(e eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
