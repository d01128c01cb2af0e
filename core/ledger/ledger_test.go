package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
	"github.com/soundbridge/gigdispatch/core/notify"
	"github.com/soundbridge/gigdispatch/core/payment"
)

type stubDisputes struct{ active map[string]bool }

func (s stubDisputes) HasActiveDispute(_ context.Context, gigID string) bool { return s.active[gigID] }

type fixture struct {
	ledger  *Ledger
	store   *dispatch.MemoryStore
	gateway *payment.MockGateway
	journal *MemoryJournal
}

func seedGig(t *testing.T, store *dispatch.MemoryStore, status model.GigStatus, pay model.PaymentStatus, booking model.BookingType) model.Gig {
	t.Helper()
	g := model.Gig{
		ID:               "gig-1",
		CreatorID:        "creator-1",
		ProjectID:        "project-1",
		Booking:          booking,
		Skill:            "keys",
		StartsAt:         time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		Duration:         2 * time.Hour,
		Amount:           model.Money{Amount: 10000, Currency: "EUR"},
		Status:           status,
		Payment:          pay,
		SelectedProvider: "prov-1",
	}
	if err := store.CreateGig(context.Background(), g); err != nil {
		t.Fatalf("seed gig: %v", err)
	}
	return g
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := dispatch.NewMemoryStore()
	journal := NewMemoryJournal()
	gateway := payment.NewMockGateway()
	l, err := New(store, journal, gateway, FeeSchedule{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	// well past the service window
	l.SetNow(func() time.Time { return time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC) })
	return &fixture{ledger: l, store: store, gateway: gateway, journal: journal}
}

func TestEscrowRequiresConfirmedGig(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigSearching, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if len(f.gateway.Calls()) != 0 {
		t.Fatalf("funds touched on rejected escrow: %+v", f.gateway.Calls())
	}
}

func TestEscrowThenRelease(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)

	e, err := f.ledger.Escrow(context.Background(), "gig-1", "k-escrow")
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if e.Payment != model.PaymentEscrowed {
		t.Fatalf("entry payment %s", e.Payment)
	}

	e, err = f.ledger.Release(context.Background(), "gig-1", "k-release")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	// 12% service fee on 10000
	if e.Payout.Amount != 8800 {
		t.Fatalf("payout %d, want 8800", e.Payout.Amount)
	}

	g, _ := f.store.GetGig(context.Background(), "gig-1")
	if g.Payment != model.PaymentReleased || g.ProviderPayout.Amount != 8800 {
		t.Fatalf("gig not settled: %+v", g)
	}

	calls := f.gateway.Calls()
	if len(calls) != 2 || calls[0].Op != "hold" || calls[1].Op != "capture" {
		t.Fatalf("unexpected gateway calls: %+v", calls)
	}
}

func TestReleaseVenueFee(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingVenue)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	e, err := f.ledger.Release(context.Background(), "gig-1", "k2")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	// 8% venue fee on 10000
	if e.Payout.Amount != 9200 {
		t.Fatalf("payout %d, want 9200", e.Payout.Amount)
	}
}

func TestReleaseBeforeWindowElapsed(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	f.ledger.SetNow(func() time.Time { return time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC) })
	if _, err := f.ledger.Release(context.Background(), "gig-1", "k2"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestRefundReturnsFullAmount(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	e, err := f.ledger.Refund(context.Background(), "gig-1", "k2", "gig fell through")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if e.Refunded.Amount != 10000 {
		t.Fatalf("refunded %d, want full 10000", e.Refunded.Amount)
	}
	g, _ := f.store.GetGig(context.Background(), "gig-1")
	if g.Payment != model.PaymentRefunded {
		t.Fatalf("payment %s", g.Payment)
	}
}

func TestLedgerTransitionsAreMonotonic(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if _, err := f.ledger.Release(context.Background(), "gig-1", "k2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	// released funds can never be refunded
	if _, err := f.ledger.Refund(context.Background(), "gig-1", "k3", "oops"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	// nor escrowed again
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k4"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	// the rejected attempts never reached the gateway
	if calls := f.gateway.Calls(); len(calls) != 2 {
		t.Fatalf("gateway touched on rejected transitions: %+v", calls)
	}
}

func TestRefundBeforeEscrowLeavesFundsAlone(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Refund(context.Background(), "gig-1", "k1", "changed my mind"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := f.ledger.Release(context.Background(), "gig-1", "k2"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if calls := f.gateway.Calls(); len(calls) != 0 {
		t.Fatalf("gateway instructed without escrowed funds: %+v", calls)
	}
}

func TestSecondEscrowHoldsFundsOnce(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	// a fresh key does not get past the payment state check
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k2"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	calls := f.gateway.Calls()
	if len(calls) != 1 || calls[0].Op != "hold" {
		t.Fatalf("funds held more than once: %+v", calls)
	}
}

func TestIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)

	first, err := f.ledger.Escrow(context.Background(), "gig-1", "same-key")
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	again, err := f.ledger.Escrow(context.Background(), "gig-1", "same-key")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay returned a new entry: %+v vs %+v", again, first)
	}
	if len(f.gateway.Calls()) != 1 {
		t.Fatalf("funds moved twice: %+v", f.gateway.Calls())
	}

	// same key reused for a different operation is rejected
	if _, err := f.ledger.Release(context.Background(), "gig-1", "same-key"); !faults.Is(err, faults.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// the key is mandatory
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", ""); !faults.Is(err, faults.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDisputeFreezesLedger(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	f.ledger.SetDisputeChecker(stubDisputes{active: map[string]bool{"gig-1": true}})

	if _, err := f.ledger.Release(context.Background(), "gig-1", "k2"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("release not frozen: %v", err)
	}
	if _, err := f.ledger.Refund(context.Background(), "gig-1", "k3", "r"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("refund not frozen: %v", err)
	}

	// the resolved variants bypass the freeze
	e, err := f.ledger.ResolvedSplit(context.Background(), "gig-1", "dispute:d1", 60)
	if err != nil {
		t.Fatalf("resolved split: %v", err)
	}
	if e.Payout.Amount != 6000 || e.Refunded.Amount != 4000 {
		t.Fatalf("split 60/40 wrong: payout %d refunded %d", e.Payout.Amount, e.Refunded.Amount)
	}
	g, _ := f.store.GetGig(context.Background(), "gig-1")
	if g.Payment != model.PaymentRefunded || g.ProviderPayout.Amount != 6000 {
		t.Fatalf("split not recorded: %+v", g)
	}
}

func TestResolvedSplitValidation(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentEscrowed, model.BookingService)
	if _, err := f.ledger.ResolvedSplit(context.Background(), "gig-1", "k1", 101); !faults.Is(err, faults.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReleaseNotifiesProvider(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	n := notify.NewMockNotifier()
	f.ledger.SetNotifier(n)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if _, err := f.ledger.Release(context.Background(), "gig-1", "k2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	notices := n.Notices()
	if len(notices) != 1 || notices[0].Kind != "funds_released" || notices[0].UserID != "prov-1" {
		t.Fatalf("release notice missing: %+v", notices)
	}
}

func TestJournalListsByGig(t *testing.T) {
	f := newFixture(t)
	seedGig(t, f.store, model.GigConfirmed, model.PaymentPending, model.BookingService)
	if _, err := f.ledger.Escrow(context.Background(), "gig-1", "k1"); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if _, err := f.ledger.Release(context.Background(), "gig-1", "k2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	entries, err := f.ledger.Journal(context.Background(), "gig-1")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(entries) != 2 || entries[0].Op != "escrow" || entries[1].Op != "release" {
		t.Fatalf("journal entries: %+v", entries)
	}
}
