package dispute

import (
	"context"
	"testing"
	"time"

	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/ledger"
	"github.com/soundbridge/gigdispatch/core/model"
	"github.com/soundbridge/gigdispatch/core/notify"
)

type settlerCall struct {
	op      string
	gigID   string
	key     string
	percent int
}

type stubSettler struct{ calls []settlerCall }

func (s *stubSettler) ResolvedRelease(_ context.Context, gigID, key string) (ledger.Entry, error) {
	s.calls = append(s.calls, settlerCall{op: "release", gigID: gigID, key: key})
	return ledger.Entry{}, nil
}

func (s *stubSettler) ResolvedRefund(_ context.Context, gigID, key, _ string) (ledger.Entry, error) {
	s.calls = append(s.calls, settlerCall{op: "refund", gigID: gigID, key: key})
	return ledger.Entry{}, nil
}

func (s *stubSettler) ResolvedSplit(_ context.Context, gigID, key string, percent int) (ledger.Entry, error) {
	s.calls = append(s.calls, settlerCall{op: "split", gigID: gigID, key: key, percent: percent})
	return ledger.Entry{}, nil
}

type fixture struct {
	resolver *Resolver
	store    *MemoryStore
	gigs     *dispatch.MemoryStore
	settler  *stubSettler
	notifier *notify.MockNotifier
}

func newFixture(t *testing.T, status model.GigStatus) *fixture {
	t.Helper()
	gigs := dispatch.NewMemoryStore()
	g := model.Gig{
		ID:               "gig-1",
		CreatorID:        "creator-1",
		ProjectID:        "project-1",
		Booking:          model.BookingService,
		Skill:            "drums",
		StartsAt:         time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		Duration:         2 * time.Hour,
		Amount:           model.Money{Amount: 10000, Currency: "EUR"},
		Status:           status,
		Payment:          model.PaymentEscrowed,
		SelectedProvider: "prov-1",
	}
	if err := gigs.CreateGig(context.Background(), g); err != nil {
		t.Fatalf("seed gig: %v", err)
	}
	store := NewMemoryStore()
	settler := &stubSettler{}
	r, err := NewResolver(store, gigs, settler, nil, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	n := notify.NewMockNotifier()
	r.SetNotifier(n)
	return &fixture{resolver: r, store: store, gigs: gigs, settler: settler, notifier: n}
}

func TestRaiseDerivesRespondent(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)

	d, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "no_show", "never arrived", nil)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if d.Status != model.DisputeOpen || d.RespondentID != "prov-1" {
		t.Fatalf("unexpected dispute: %+v", d)
	}
	if !f.store.HasActiveDispute(context.Background(), "gig-1") {
		t.Fatalf("dispute not active")
	}
	notices := f.notifier.Notices()
	if len(notices) != 1 || notices[0].UserID != "prov-1" || notices[0].Kind != "dispute_raised" {
		t.Fatalf("respondent not notified: %+v", notices)
	}
}

func TestRaiseByProviderTargetsCreator(t *testing.T) {
	f := newFixture(t, model.GigCompleted)
	d, err := f.resolver.Raise(context.Background(), "gig-1", "prov-1", "unpaid_extras", "", nil)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if d.RespondentID != "creator-1" {
		t.Fatalf("respondent %s", d.RespondentID)
	}
}

func TestRaiseRejectsOutsiders(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)
	if _, err := f.resolver.Raise(context.Background(), "gig-1", "stranger", "r", "", nil); !faults.Is(err, faults.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRaiseRequiresActiveGig(t *testing.T) {
	f := newFixture(t, model.GigSearching)
	if _, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "r", "", nil); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestRaiseSecondDisputeConflicts(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)
	if _, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "r", "", nil); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := f.resolver.Raise(context.Background(), "gig-1", "prov-1", "r", "", nil); !faults.Is(err, faults.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRespondOnlyByRespondentAndOnlyOnce(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)
	d, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "r", "", nil)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}

	if _, err := f.resolver.Respond(context.Background(), d.ID, "creator-1", "but", nil); !faults.Is(err, faults.Validation) {
		t.Fatalf("raiser allowed to respond: %v", err)
	}

	d2, err := f.resolver.Respond(context.Background(), d.ID, "prov-1", "I was there", []string{"photo.jpg"})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if d2.Status != model.DisputeUnderReview || d2.CounterResponse != "I was there" {
		t.Fatalf("unexpected dispute: %+v", d2)
	}

	if _, err := f.resolver.Respond(context.Background(), d.ID, "prov-1", "again", nil); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("second response allowed: %v", err)
	}
}

func TestForceReview(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)
	d, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "r", "", nil)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	d2, err := f.resolver.ForceReview(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("force review: %v", err)
	}
	if d2.Status != model.DisputeUnderReview {
		t.Fatalf("status %s", d2.Status)
	}
}

func TestResolveDrivesSettlement(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)
	d, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "r", "", nil)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}

	d2, err := f.resolver.Resolve(context.Background(), d.ID, OutcomeSplit, "both at fault", 60)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d2.Status != model.DisputeResolvedSplit || d2.SplitPercent != 60 {
		t.Fatalf("unexpected dispute: %+v", d2)
	}
	if f.store.HasActiveDispute(context.Background(), "gig-1") {
		t.Fatalf("resolved dispute still active")
	}

	calls := f.settler.calls
	if len(calls) != 1 || calls[0].op != "split" || calls[0].percent != 60 {
		t.Fatalf("settler calls: %+v", calls)
	}
	if calls[0].key != "dispute:"+d.ID {
		t.Fatalf("settlement key %s", calls[0].key)
	}
}

func TestResolveTerminalIsConflict(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)
	d, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "r", "", nil)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := f.resolver.Resolve(context.Background(), d.ID, OutcomeRefund, "", 0); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := f.resolver.Resolve(context.Background(), d.ID, OutcomeRelease, "", 0); !faults.Is(err, faults.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.settler.calls) != 1 {
		t.Fatalf("settler driven twice: %+v", f.settler.calls)
	}
}

func TestResolveValidation(t *testing.T) {
	f := newFixture(t, model.GigConfirmed)
	d, err := f.resolver.Raise(context.Background(), "gig-1", "creator-1", "r", "", nil)
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := f.resolver.Resolve(context.Background(), d.ID, Outcome("strange"), "", 0); !faults.Is(err, faults.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.resolver.Resolve(context.Background(), d.ID, OutcomeSplit, "", 140); !faults.Is(err, faults.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
