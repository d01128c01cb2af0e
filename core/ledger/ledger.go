// Package ledger owns the escrow lifecycle of gig payments. Transitions are
// one-way (pending, escrowed, then released or refunded), applied through the
// gig store's check-and-set, and frozen while a dispute is active. The
// dispute check lives here, not in callers, so there is no window between
// checking and moving funds.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/events"
	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/logger"
	"github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/core/model"
	"github.com/soundbridge/gigdispatch/core/notify"
	"github.com/soundbridge/gigdispatch/core/payment"
	"github.com/soundbridge/gigdispatch/internal/eventbus"
)

// DisputeChecker reports whether a gig has an active dispute.
type DisputeChecker interface {
	HasActiveDispute(ctx context.Context, gigID string) bool
}

// Ledger applies escrow transitions for gigs.
type Ledger struct {
	store    dispatch.GigStore
	journal  Journal
	gateway  payment.Gateway
	disputes DisputeChecker
	notifier notify.Notifier
	fees     FeeSchedule
	log      logger.Logger
	metrics  metrics.MetricsSink
	bus      eventbus.EventBus
	now      func() time.Time
}

// New creates a Ledger. store, journal and gateway are mandatory.
func New(store dispatch.GigStore, journal Journal, gateway payment.Gateway, fees FeeSchedule, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Ledger, error) {
	if store == nil || journal == nil || gateway == nil {
		return nil, faults.Validationf("ledger: nil parameter provided to New")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	fees.SetDefaults()
	return &Ledger{
		store:   store,
		journal: journal,
		gateway: gateway,
		fees:    fees,
		log:     log,
		metrics: sink,
		bus:     bus,
		now:     time.Now,
	}, nil
}

// SetDisputeChecker wires the dispute lookup that freezes release and refund.
func (l *Ledger) SetDisputeChecker(d DisputeChecker) { l.disputes = d }

// SetNotifier wires the notice push for released funds.
func (l *Ledger) SetNotifier(n notify.Notifier) { l.notifier = n }

// SetNow overrides the clock. Tests only.
func (l *Ledger) SetNow(now func() time.Time) { l.now = now }

// Escrow moves the gig payment from pending to escrowed. Only legal once the
// gig is confirmed. key is the caller's idempotency key; a replay returns the
// recorded entry without touching funds again.
func (l *Ledger) Escrow(ctx context.Context, gigID, key string) (Entry, error) {
	if prev, ok, err := l.replay(ctx, gigID, key, "escrow"); err != nil || ok {
		return prev, err
	}
	g, err := l.store.GetGig(ctx, gigID)
	if err != nil {
		return Entry{}, err
	}
	if g.Status != model.GigConfirmed {
		return Entry{}, faults.InvalidStatef("cannot escrow gig in %s", g.Status)
	}
	// The payment state is checked before the gateway is touched so a
	// rejected transition never moves funds.
	if g.Payment != model.PaymentPending {
		return Entry{}, faults.InvalidStatef("gig %s payment is %s, expected pending", gigID, g.Payment)
	}
	if err := l.gateway.HoldFunds(ctx, gigID, g.Amount); err != nil {
		return Entry{}, faults.Upstreamf(err, "hold funds for gig %s", gigID)
	}
	g, err = l.store.SetPaymentStatus(ctx, gigID, model.PaymentPending, model.PaymentEscrowed, model.Money{})
	if err != nil {
		return Entry{}, err
	}
	return l.record(ctx, Entry{
		Key:     key,
		GigID:   gigID,
		Op:      "escrow",
		Payment: model.PaymentEscrowed,
		Amount:  g.Amount,
	})
}

// Release pays the provider out of escrow: amount minus the platform fee for
// the booking type. Only legal after the service window has elapsed and while
// no dispute is active.
func (l *Ledger) Release(ctx context.Context, gigID, key string) (Entry, error) {
	if prev, ok, err := l.replay(ctx, gigID, key, "release"); err != nil || ok {
		return prev, err
	}
	g, err := l.store.GetGig(ctx, gigID)
	if err != nil {
		return Entry{}, err
	}
	if g.EndsAt().After(l.now()) {
		return Entry{}, faults.InvalidStatef("gig %s service window has not elapsed", gigID)
	}
	if l.frozen(ctx, gigID) {
		return Entry{}, faults.InvalidStatef("gig %s is frozen by an active dispute", gigID)
	}
	if g.Payment != model.PaymentEscrowed {
		return Entry{}, faults.InvalidStatef("gig %s payment is %s, expected escrowed", gigID, g.Payment)
	}
	payout := l.fees.Payout(g.Amount, g.Booking)
	if err := l.gateway.CaptureFunds(ctx, gigID, payout, g.SelectedProvider); err != nil {
		return Entry{}, faults.Upstreamf(err, "capture funds for gig %s", gigID)
	}
	g, err = l.store.SetPaymentStatus(ctx, gigID, model.PaymentEscrowed, model.PaymentReleased, payout)
	if err != nil {
		return Entry{}, err
	}
	e, err := l.record(ctx, Entry{
		Key:     key,
		GigID:   gigID,
		Op:      "release",
		Payment: model.PaymentReleased,
		Amount:  g.Amount,
		Payout:  payout,
	})
	if err == nil && l.notifier != nil {
		if nerr := l.notifier.PushNotice(notify.Notice{
			UserID: g.SelectedProvider,
			Kind:   "funds_released",
			GigID:  gigID,
		}); nerr != nil {
			l.log.Warnf("release notice failed: %v", nerr)
		}
	}
	return e, err
}

// Refund returns the full escrowed amount to the requester. Frozen while a
// dispute is active; dispute resolutions go through the Resolved variants.
func (l *Ledger) Refund(ctx context.Context, gigID, key, reason string) (Entry, error) {
	if prev, ok, err := l.replay(ctx, gigID, key, "refund"); err != nil || ok {
		return prev, err
	}
	if l.frozen(ctx, gigID) {
		return Entry{}, faults.InvalidStatef("gig %s is frozen by an active dispute", gigID)
	}
	return l.refund(ctx, gigID, key, reason)
}

func (l *Ledger) refund(ctx context.Context, gigID, key, reason string) (Entry, error) {
	g, err := l.store.GetGig(ctx, gigID)
	if err != nil {
		return Entry{}, err
	}
	if g.Payment != model.PaymentEscrowed {
		return Entry{}, faults.InvalidStatef("gig %s payment is %s, expected escrowed", gigID, g.Payment)
	}
	if err := l.gateway.RefundFunds(ctx, gigID, g.Amount, reason); err != nil {
		return Entry{}, faults.Upstreamf(err, "refund funds for gig %s", gigID)
	}
	g, err = l.store.SetPaymentStatus(ctx, gigID, model.PaymentEscrowed, model.PaymentRefunded, model.Money{})
	if err != nil {
		return Entry{}, err
	}
	return l.record(ctx, Entry{
		Key:      key,
		GigID:    gigID,
		Op:       "refund",
		Payment:  model.PaymentRefunded,
		Amount:   g.Amount,
		Refunded: g.Amount,
		Reason:   reason,
	})
}

// ResolvedRelease releases escrow on behalf of a resolved dispute, skipping
// the freeze check. Callable only by the dispute resolver once the dispute is
// terminal.
func (l *Ledger) ResolvedRelease(ctx context.Context, gigID, key string) (Entry, error) {
	if prev, ok, err := l.replay(ctx, gigID, key, "release"); err != nil || ok {
		return prev, err
	}
	g, err := l.store.GetGig(ctx, gigID)
	if err != nil {
		return Entry{}, err
	}
	if g.Payment != model.PaymentEscrowed {
		return Entry{}, faults.InvalidStatef("gig %s payment is %s, expected escrowed", gigID, g.Payment)
	}
	payout := l.fees.Payout(g.Amount, g.Booking)
	if err := l.gateway.CaptureFunds(ctx, gigID, payout, g.SelectedProvider); err != nil {
		return Entry{}, faults.Upstreamf(err, "capture funds for gig %s", gigID)
	}
	if _, err = l.store.SetPaymentStatus(ctx, gigID, model.PaymentEscrowed, model.PaymentReleased, payout); err != nil {
		return Entry{}, err
	}
	return l.record(ctx, Entry{
		Key:     key,
		GigID:   gigID,
		Op:      "release",
		Payment: model.PaymentReleased,
		Amount:  g.Amount,
		Payout:  payout,
	})
}

// ResolvedRefund refunds escrow on behalf of a resolved dispute.
func (l *Ledger) ResolvedRefund(ctx context.Context, gigID, key, reason string) (Entry, error) {
	if prev, ok, err := l.replay(ctx, gigID, key, "refund"); err != nil || ok {
		return prev, err
	}
	return l.refund(ctx, gigID, key, reason)
}

// ResolvedSplit pays splitPercent of the escrowed amount to the provider and
// refunds the remainder to the requester, on behalf of a resolved dispute.
func (l *Ledger) ResolvedSplit(ctx context.Context, gigID, key string, splitPercent int) (Entry, error) {
	if splitPercent < 0 || splitPercent > 100 {
		return Entry{}, faults.Validationf("split percent %d out of range", splitPercent)
	}
	if prev, ok, err := l.replay(ctx, gigID, key, "split"); err != nil || ok {
		return prev, err
	}
	g, err := l.store.GetGig(ctx, gigID)
	if err != nil {
		return Entry{}, err
	}
	if g.Payment != model.PaymentEscrowed {
		return Entry{}, faults.InvalidStatef("gig %s payment is %s, expected escrowed", gigID, g.Payment)
	}
	providerShare := g.Amount.Percent(int64(splitPercent))
	remainder, err := g.Amount.Sub(providerShare)
	if err != nil {
		return Entry{}, faults.Validationf("split: %v", err)
	}
	if err := l.gateway.CaptureFunds(ctx, gigID, providerShare, g.SelectedProvider); err != nil {
		return Entry{}, faults.Upstreamf(err, "capture split for gig %s", gigID)
	}
	if err := l.gateway.RefundFunds(ctx, gigID, remainder, "dispute split"); err != nil {
		return Entry{}, faults.Upstreamf(err, "refund split for gig %s", gigID)
	}
	if _, err = l.store.SetPaymentStatus(ctx, gigID, model.PaymentEscrowed, model.PaymentRefunded, providerShare); err != nil {
		return Entry{}, err
	}
	return l.record(ctx, Entry{
		Key:      key,
		GigID:    gigID,
		Op:       "split",
		Payment:  model.PaymentRefunded,
		Amount:   g.Amount,
		Payout:   providerShare,
		Refunded: remainder,
	})
}

// Journal returns the settlement entries of a gig.
func (l *Ledger) Journal(ctx context.Context, gigID string) ([]Entry, error) {
	return l.journal.ListByGig(ctx, gigID)
}

func (l *Ledger) frozen(ctx context.Context, gigID string) bool {
	return l.disputes != nil && l.disputes.HasActiveDispute(ctx, gigID)
}

// replay resolves the idempotency key. A key seen before with the same
// operation returns the recorded entry; the same key with a different
// operation is a conflict.
func (l *Ledger) replay(ctx context.Context, gigID, key, op string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, faults.Validationf("idempotency key is required")
	}
	e, ok, err := l.journal.FindByKey(ctx, key)
	if err != nil {
		return Entry{}, false, faults.Upstreamf(err, "journal lookup")
	}
	if !ok {
		return Entry{}, false, nil
	}
	if e.GigID != gigID || e.Op != op {
		return Entry{}, false, faults.Conflictf("idempotency key %s already used for %s on gig %s", key, e.Op, e.GigID)
	}
	l.log.Debugf("replaying %s for gig %s", op, gigID)
	return e, true, nil
}

func (l *Ledger) record(ctx context.Context, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	e.Time = l.now()
	if err := l.journal.Append(ctx, e); err != nil {
		return Entry{}, faults.Upstreamf(err, "journal append")
	}
	if l.bus != nil {
		l.bus.Publish(events.SettlementEvent{
			GigID:    e.GigID,
			Payment:  e.Payment,
			Amount:   e.Amount,
			Payout:   e.Payout,
			Refunded: e.Refunded,
		})
	}
	l.log.Infof("gig %s payment %s (%s)", e.GigID, e.Payment, e.Op)
	return e, nil
}
