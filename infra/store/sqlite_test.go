package store

import (
	"context"
	"testing"
	"time"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/ledger"
	"github.com/soundbridge/gigdispatch/core/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir() + "/gigs.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedGig(t *testing.T, s *SQLiteStore, id string) model.Gig {
	t.Helper()
	g := model.Gig{
		ID:        id,
		CreatorID: "creator-1",
		Type:      model.GigUrgent,
		Booking:   model.BookingService,
		Skill:     "drums",
		Location:  model.Location{Lat: 48.85, Lng: 2.35, RadiusKM: 10},
		StartsAt:  time.Now().Add(time.Hour),
		Duration:  2 * time.Hour,
		Amount:    model.Money{Amount: 20000, Currency: "EUR"},
		Status:    model.GigSearching,
		Payment:   model.PaymentPending,
		ExpiresAt: time.Now().Add(2 * time.Minute),
	}
	if err := s.CreateGig(context.Background(), g); err != nil {
		t.Fatalf("create gig: %v", err)
	}
	return g
}

func seedResponses(t *testing.T, s *SQLiteStore, gigID string, providers ...string) {
	t.Helper()
	rs := make([]model.GigResponse, 0, len(providers))
	for i, p := range providers {
		rs = append(rs, model.GigResponse{
			ID:         gigID + "-r" + p,
			GigID:      gigID,
			ProviderID: p,
			Status:     model.ResponsePending,
			NotifiedAt: time.Now(),
			Deadline:   time.Now().Add(time.Duration(i+1) * time.Minute),
		})
	}
	if err := s.CreateResponses(context.Background(), rs); err != nil {
		t.Fatalf("create responses: %v", err)
	}
}

func TestSQLiteGigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	g := seedGig(t, s, "gig-1")

	got, err := s.GetGig(context.Background(), "gig-1")
	if err != nil {
		t.Fatalf("get gig: %v", err)
	}
	if got.Skill != g.Skill || got.Amount.Amount != g.Amount.Amount {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if err := s.CreateGig(context.Background(), g); !faults.Is(err, faults.Conflict) {
		t.Fatalf("expected conflict on duplicate, got %v", err)
	}
	if _, err := s.GetGig(context.Background(), "missing"); !faults.Is(err, faults.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLiteAcceptSingleWinner(t *testing.T) {
	s := newTestStore(t)
	seedGig(t, s, "gig-1")
	seedResponses(t, s, "gig-1", "prov-a", "prov-b", "prov-c")

	now := time.Now()
	g, err := s.AcceptResponse(context.Background(), "gig-1", "prov-b", now)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if g.Status != model.GigConfirmed || g.SelectedProvider != "prov-b" {
		t.Fatalf("winner not recorded: %+v", g)
	}

	if _, err := s.AcceptResponse(context.Background(), "gig-1", "prov-a", now); !faults.Is(err, faults.Conflict) {
		t.Fatalf("expected conflict for loser, got %v", err)
	}

	rs, err := s.ListResponses(context.Background(), "gig-1")
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	for _, r := range rs {
		switch r.ProviderID {
		case "prov-b":
			if r.Status != model.ResponseAccepted {
				t.Fatalf("winner status %s", r.Status)
			}
		default:
			if r.Status != model.ResponseExpired {
				t.Fatalf("loser %s status %s", r.ProviderID, r.Status)
			}
		}
	}
}

func TestSQLiteDecline(t *testing.T) {
	s := newTestStore(t)
	seedGig(t, s, "gig-1")
	seedResponses(t, s, "gig-1", "prov-a")

	if err := s.DeclineResponse(context.Background(), "gig-1", "prov-a", "busy", time.Now()); err != nil {
		t.Fatalf("decline: %v", err)
	}
	r, err := s.GetResponse(context.Background(), "gig-1", "prov-a")
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if r.Status != model.ResponseDeclined || r.Message != "busy" {
		t.Fatalf("decline not recorded: %+v", r)
	}
	if err := s.DeclineResponse(context.Background(), "gig-1", "prov-a", "", time.Now()); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state on second decline, got %v", err)
	}
}

func TestSQLiteExpireDueResponses(t *testing.T) {
	s := newTestStore(t)
	seedGig(t, s, "gig-1")
	past := time.Now().Add(-time.Minute)
	rs := []model.GigResponse{
		{ID: "r1", GigID: "gig-1", ProviderID: "prov-a", Status: model.ResponsePending, Deadline: past},
		{ID: "r2", GigID: "gig-1", ProviderID: "prov-b", Status: model.ResponsePending, Deadline: time.Now().Add(time.Hour)},
	}
	if err := s.CreateResponses(context.Background(), rs); err != nil {
		t.Fatalf("create responses: %v", err)
	}
	expired, err := s.ExpireDueResponses(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].ProviderID != "prov-a" {
		t.Fatalf("unexpected expiry %+v", expired)
	}
	// second sweep finds nothing
	expired, err = s.ExpireDueResponses(context.Background(), time.Now())
	if err != nil || len(expired) != 0 {
		t.Fatalf("sweep not idempotent: %v %+v", err, expired)
	}
}

func TestSQLiteCancelAndComplete(t *testing.T) {
	s := newTestStore(t)
	seedGig(t, s, "gig-1")
	seedResponses(t, s, "gig-1", "prov-a")

	g, err := s.CancelGig(context.Background(), "gig-1", time.Now())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if g.Status != model.GigCancelled {
		t.Fatalf("status %s", g.Status)
	}
	r, _ := s.GetResponse(context.Background(), "gig-1", "prov-a")
	if r.Status != model.ResponseExpired {
		t.Fatalf("pending response not expired: %s", r.Status)
	}
	if _, err := s.CancelGig(context.Background(), "gig-1", time.Now()); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := s.CompleteGig(context.Background(), "gig-1"); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state completing cancelled gig, got %v", err)
	}
}

func TestSQLitePaymentCAS(t *testing.T) {
	s := newTestStore(t)
	seedGig(t, s, "gig-1")

	g, err := s.SetPaymentStatus(context.Background(), "gig-1", model.PaymentPending, model.PaymentEscrowed, model.Money{})
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if g.Payment != model.PaymentEscrowed {
		t.Fatalf("payment %s", g.Payment)
	}
	if _, err := s.SetPaymentStatus(context.Background(), "gig-1", model.PaymentPending, model.PaymentEscrowed, model.Money{}); !faults.Is(err, faults.InvalidState) {
		t.Fatalf("expected invalid state on stale from, got %v", err)
	}
	payout := model.Money{Amount: 17600, Currency: "EUR"}
	g, err = s.SetPaymentStatus(context.Background(), "gig-1", model.PaymentEscrowed, model.PaymentReleased, payout)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if g.ProviderPayout != payout {
		t.Fatalf("payout not recorded: %+v", g.ProviderPayout)
	}
}

func TestSQLiteJournal(t *testing.T) {
	s := newTestStore(t)
	j := s.Journal()

	e := ledger.Entry{
		ID:      "e1",
		Key:     "key-1",
		GigID:   "gig-1",
		Op:      "escrow",
		Payment: model.PaymentEscrowed,
		Amount:  model.Money{Amount: 20000, Currency: "EUR"},
		Time:    time.Now(),
	}
	if err := j.Append(context.Background(), e); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, ok, err := j.FindByKey(context.Background(), "key-1")
	if err != nil || !ok {
		t.Fatalf("find: %v ok=%v", err, ok)
	}
	if got.Op != "escrow" || got.GigID != "gig-1" {
		t.Fatalf("entry mismatch: %+v", got)
	}
	if _, ok, err := j.FindByKey(context.Background(), "nope"); err != nil || ok {
		t.Fatalf("unexpected hit: %v ok=%v", err, ok)
	}
	list, err := j.ListByGig(context.Background(), "gig-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
}
