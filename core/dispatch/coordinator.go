// Package dispatch owns the time-boxed offer cycle of a gig: matching
// candidates, pushing offers, arbitrating the accept race and enforcing
// expiry. At most one provider ever wins a gig.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundbridge/gigdispatch/core/availability"
	"github.com/soundbridge/gigdispatch/core/events"
	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/logger"
	"github.com/soundbridge/gigdispatch/core/match"
	"github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/core/model"
	"github.com/soundbridge/gigdispatch/core/notify"
	"github.com/soundbridge/gigdispatch/internal/eventbus"
)

// DisputeChecker reports whether a gig is blocked by an active dispute.
type DisputeChecker interface {
	HasActiveDispute(ctx context.Context, gigID string) bool
}

// Coordinator manages the offer/accept/decline/expire cycle per gig.
type Coordinator struct {
	store    GigStore
	registry *availability.Registry
	matcher  *match.Matcher
	notifier notify.Notifier
	disputes DisputeChecker
	cfg      Config
	log      logger.Logger
	metrics  metrics.MetricsSink
	bus      eventbus.EventBus
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. store, registry, matcher and notifier
// are mandatory.
func NewCoordinator(store GigStore, registry *availability.Registry, matcher *match.Matcher, notifier notify.Notifier, cfg Config, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Coordinator, error) {
	if store == nil || registry == nil || matcher == nil || notifier == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()
	return &Coordinator{
		store:    store,
		registry: registry,
		matcher:  matcher,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		metrics:  sink,
		bus:      bus,
		now:      time.Now,
	}, nil
}

// SetDisputeChecker wires the dispute lookup used before completing gigs.
func (c *Coordinator) SetDisputeChecker(d DisputeChecker) { c.disputes = d }

// SetNow overrides the clock. Tests only.
func (c *Coordinator) SetNow(now func() time.Time) { c.now = now }

// CreateGig validates and stores a new gig in searching state, then pushes
// offers to the ranked candidates. The number of offers sent is returned with
// the stored gig; zero offers is not an error.
func (c *Coordinator) CreateGig(ctx context.Context, g model.Gig) (model.Gig, int, error) {
	if g.Booking == "" {
		g.Booking = model.BookingService
	}
	if err := g.Validate(); err != nil {
		return model.Gig{}, 0, faults.Validationf("gig: %v", err)
	}
	now := c.now()
	g.ID = uuid.NewString()
	if g.ProjectID == "" {
		g.ProjectID = uuid.NewString()
	}
	g.Status = model.GigSearching
	g.Payment = model.PaymentPending
	g.SelectedProvider = ""
	g.CreatedAt = now
	g.ExpiresAt = now.Add(c.cfg.ResponseWindow(g.Type == model.GigUrgent))
	if err := c.store.CreateGig(ctx, g); err != nil {
		return model.Gig{}, 0, err
	}
	c.publish(events.GigEvent{GigID: g.ID, Status: g.Status})
	sent, err := c.dispatchOffers(ctx, g, nil)
	if err != nil {
		return g, sent, err
	}
	return g, sent, nil
}

// dispatchOffers matches candidates and pushes offers concurrently, waiting
// for each delivery receipt. Every pushed offer counts against the
// provider's daily budget regardless of receipt.
func (c *Coordinator) dispatchOffers(ctx context.Context, g model.Gig, exclude map[string]bool) (int, error) {
	candidates := c.matcher.Match(g, exclude)
	if cr, ok := c.metrics.(metrics.CandidateCountRecorder); ok {
		if err := cr.RecordCandidateCount(len(candidates)); err != nil {
			c.log.Errorf("candidate count metrics error: %v", err)
		}
	}
	if len(candidates) == 0 {
		c.log.Infof("no eligible providers for gig %s", g.ID)
		return 0, nil
	}
	now := c.now()
	deadline := now.Add(c.cfg.ResponseWindow(g.Type == model.GigUrgent))
	responses := make([]model.GigResponse, 0, len(candidates))
	for _, cand := range candidates {
		responses = append(responses, model.GigResponse{
			ID:         uuid.NewString(),
			GigID:      g.ID,
			ProviderID: cand.ProviderID,
			Status:     model.ResponsePending,
			NotifiedAt: now,
			Deadline:   deadline,
			DistanceKM: cand.DistanceKM,
		})
	}
	if err := c.store.CreateResponses(ctx, responses); err != nil {
		return 0, err
	}
	c.log.Infof("dispatching gig %s to %d providers", g.ID, len(responses))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []metrics.OfferResult
		received int
	)
	for _, r := range responses {
		wg.Add(1)
		go func(r model.GigResponse) {
			defer wg.Done()
			ok, lat, err := c.pushAndWait(g, r, deadline)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Warnf("offer push to %s failed: %v", r.ProviderID, err)
			}
			if ok {
				received++
			}
			offersPushed.WithLabelValues(g.Type.String()).Inc()
			offerReceiptLatency.WithLabelValues(g.Type.String()).Observe(lat.Seconds())
			c.publish(events.OfferEvent{
				GigID:      g.ID,
				ProviderID: r.ProviderID,
				GigType:    g.Type,
				Delivered:  ok,
				Err:        err,
				Latency:    lat,
			})
			results = append(results, metrics.OfferResult{
				GigID:      g.ID,
				ProviderID: r.ProviderID,
				GigType:    g.Type,
				Delivered:  ok,
				Latency:    lat,
				Time:       now,
			})
		}(r)
		c.registry.RecordNotified(r.ProviderID)
	}
	wg.Wait()
	receiptRate.WithLabelValues(g.Type.String()).Set(float64(received) / float64(len(responses)))
	if err := c.metrics.RecordOfferResult(results); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
	return len(responses), nil
}

// pushAndWait pushes the offer and waits for the delivery receipt, measuring
// the latency.
func (c *Coordinator) pushAndWait(g model.Gig, r model.GigResponse, deadline time.Time) (bool, time.Duration, error) {
	start := c.now()
	id, err := c.notifier.PushOffer(notify.Offer{
		GigID:      g.ID,
		ProviderID: r.ProviderID,
		GigType:    g.Type.String(),
		Skill:      g.Skill,
		Amount:     g.Amount,
		DistanceKM: r.DistanceKM,
		Deadline:   deadline,
		Window:     deadline.Sub(start),
	})
	if err != nil {
		return false, time.Since(start), faults.Upstreamf(err, "push offer")
	}
	ok, err := c.notifier.WaitForReceipt(id, c.cfg.ReceiptTimeout())
	return ok, time.Since(start), err
}

// Accept records the provider's acceptance. Exactly one accept per gig wins;
// the store applies the transition atomically and losers get a Conflict.
func (c *Coordinator) Accept(ctx context.Context, gigID, providerID string) (model.Gig, error) {
	g, err := c.store.AcceptResponse(ctx, gigID, providerID, c.now())
	if err != nil {
		if faults.Is(err, faults.Conflict) {
			acceptConflicts.Inc()
		}
		return model.Gig{}, err
	}
	acceptWins.Inc()
	c.publish(events.ResponseEvent{GigID: gigID, ProviderID: providerID, Status: model.ResponseAccepted})
	c.publish(events.GigEvent{GigID: gigID, Status: model.GigConfirmed})
	if err := c.notifier.PushNotice(notify.Notice{
		UserID: g.CreatorID,
		Kind:   "offer_accepted",
		GigID:  gigID,
	}); err != nil {
		c.log.Warnf("accept notice failed: %v", err)
	}
	return g, nil
}

// Decline records the provider's refusal with an optional message. When the
// refusal leaves no pending offer, the gig is cancelled; the requester may
// still re-open the search through ExtendSearch afterwards.
func (c *Coordinator) Decline(ctx context.Context, gigID, providerID, message string) error {
	if err := c.store.DeclineResponse(ctx, gigID, providerID, message, c.now()); err != nil {
		return err
	}
	c.publish(events.ResponseEvent{GigID: gigID, ProviderID: providerID, Status: model.ResponseDeclined})
	c.cancelIfExhausted(ctx, gigID)
	return nil
}

// cancelIfExhausted cancels a searching gig once every offer has reached a
// terminal state without an acceptance.
func (c *Coordinator) cancelIfExhausted(ctx context.Context, gigID string) {
	responses, err := c.store.ListResponses(ctx, gigID)
	if err != nil {
		c.log.Warnf("list responses for gig %s: %v", gigID, err)
		return
	}
	for _, r := range responses {
		if r.Status == model.ResponsePending || r.Status == model.ResponseAccepted {
			return
		}
	}
	if _, err := c.store.CancelGig(ctx, gigID, c.now()); err != nil {
		// a concurrent accept, sweep or extension may have moved the gig
		if !faults.Is(err, faults.InvalidState) {
			c.log.Warnf("cancel exhausted gig %s: %v", gigID, err)
		}
		return
	}
	c.publish(events.GigEvent{GigID: gigID, Status: model.GigCancelled})
	c.log.Infof("gig %s cancelled, every offer was declined", gigID)
}

// Cancel withdraws a searching gig, expiring outstanding offers. Confirmed
// gigs cannot be cancelled here; they go through the dispute path so the
// escrow invariant holds.
func (c *Coordinator) Cancel(ctx context.Context, gigID, requesterID string) (model.Gig, error) {
	g, err := c.store.GetGig(ctx, gigID)
	if err != nil {
		return model.Gig{}, err
	}
	if g.CreatorID != requesterID {
		return model.Gig{}, faults.Validationf("only the requester may cancel gig %s", gigID)
	}
	g, err = c.store.CancelGig(ctx, gigID, c.now())
	if err != nil {
		return model.Gig{}, err
	}
	c.publish(events.GigEvent{GigID: gigID, Status: model.GigCancelled})
	c.log.Infof("gig %s cancelled by requester", gigID)
	return g, nil
}

// ExtendSearch re-runs matching for a searching or cancelled gig, excluding
// providers who already declined or timed out, and pushes a fresh round of
// offers. The gig's search deadline moves forward by one response window.
func (c *Coordinator) ExtendSearch(ctx context.Context, gigID, requesterID string) (int, error) {
	g, err := c.store.GetGig(ctx, gigID)
	if err != nil {
		return 0, err
	}
	if g.CreatorID != requesterID {
		return 0, faults.Validationf("only the requester may extend gig %s", gigID)
	}
	prior, err := c.store.ListResponses(ctx, gigID)
	if err != nil {
		return 0, err
	}
	exclude := make(map[string]bool, len(prior))
	for _, r := range prior {
		exclude[r.ProviderID] = true
	}
	g, err = c.store.ExtendGig(ctx, gigID, c.now().Add(c.cfg.ResponseWindow(g.Type == model.GigUrgent)))
	if err != nil {
		return 0, err
	}
	return c.dispatchOffers(ctx, g, exclude)
}

// ExpireDueOffers expires overdue pending responses and cancels searching
// gigs whose deadline has passed. Idempotent; safe to run from concurrent job
// instances because every mutation is a conditional update.
func (c *Coordinator) ExpireDueOffers(ctx context.Context) (int, error) {
	now := c.now()
	expired, err := c.store.ExpireDueResponses(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, r := range expired {
		c.publish(events.ResponseEvent{GigID: r.GigID, ProviderID: r.ProviderID, Status: model.ResponseExpired})
	}
	searching, err := c.store.ListGigsByStatus(ctx, model.GigSearching)
	if err != nil {
		return len(expired), err
	}
	for _, g := range searching {
		if g.ExpiresAt.After(now) {
			continue
		}
		if _, err := c.store.CancelGig(ctx, g.ID, now); err != nil {
			// another sweep instance may have won the update
			if !faults.Is(err, faults.InvalidState) {
				c.log.Errorf("expire gig %s: %v", g.ID, err)
			}
			continue
		}
		c.publish(events.GigEvent{GigID: g.ID, Status: model.GigCancelled})
		c.log.Infof("gig %s expired unanswered", g.ID)
	}
	return len(expired), nil
}

// CompleteDueGigs moves confirmed gigs whose service window has elapsed to
// completed, unless an active dispute blocks them. Idempotent.
func (c *Coordinator) CompleteDueGigs(ctx context.Context) (int, error) {
	now := c.now()
	confirmed, err := c.store.ListGigsByStatus(ctx, model.GigConfirmed)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, g := range confirmed {
		if g.EndsAt().After(now) {
			continue
		}
		if c.disputes != nil && c.disputes.HasActiveDispute(ctx, g.ID) {
			continue
		}
		if _, err := c.store.CompleteGig(ctx, g.ID); err != nil {
			if !faults.Is(err, faults.InvalidState) {
				c.log.Errorf("complete gig %s: %v", g.ID, err)
			}
			continue
		}
		done++
		c.publish(events.GigEvent{GigID: g.ID, Status: model.GigCompleted})
	}
	return done, nil
}

// Gig returns the gig by id.
func (c *Coordinator) Gig(ctx context.Context, gigID string) (model.Gig, error) {
	return c.store.GetGig(ctx, gigID)
}

// Responses returns all offer responses of a gig.
func (c *Coordinator) Responses(ctx context.Context, gigID string) ([]model.GigResponse, error) {
	return c.store.ListResponses(ctx, gigID)
}

func (c *Coordinator) publish(e eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
