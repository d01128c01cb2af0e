package rating

import (
	"context"
	"math"
	"testing"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

func scores(overall int) model.RatingScores {
	return model.RatingScores{
		Overall:           overall,
		Professionalism:   overall,
		Punctuality:       overall,
		Quality:           overall,
		PaymentPromptness: overall,
	}
}

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(NewMemoryStore())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return s
}

func TestBlindUntilBothSubmitted(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	if _, err := s.Submit(ctx, "project-1", "creator-1", "prov-1", scores(4), "solid set"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	view, err := s.ProjectRatings(ctx, "project-1", "creator-1")
	if err != nil {
		t.Fatalf("project ratings: %v", err)
	}
	if view.MyRating == nil || view.BothSubmitted {
		t.Fatalf("unexpected view: %+v", view)
	}

	// the other side sees nothing yet, not even that they were rated
	view, err = s.ProjectRatings(ctx, "project-1", "prov-1")
	if err != nil {
		t.Fatalf("project ratings: %v", err)
	}
	if view.MyRating != nil || view.TheirRating != nil {
		t.Fatalf("rating leaked before both submitted: %+v", view)
	}

	if _, err := s.Submit(ctx, "project-1", "prov-1", "creator-1", scores(5), "great venue"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	view, err = s.ProjectRatings(ctx, "project-1", "prov-1")
	if err != nil {
		t.Fatalf("project ratings: %v", err)
	}
	if !view.BothSubmitted || view.TheirRating == nil || view.TheirRating.Review != "solid set" {
		t.Fatalf("counterparty rating not revealed: %+v", view)
	}
}

func TestSubmitValidation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	if _, err := s.Submit(ctx, "", "a", "b", scores(4), ""); !faults.Is(err, faults.Validation) {
		t.Fatalf("missing project: %v", err)
	}
	if _, err := s.Submit(ctx, "project-1", "a", "a", scores(4), ""); !faults.Is(err, faults.Validation) {
		t.Fatalf("self-rating allowed: %v", err)
	}
	if _, err := s.Submit(ctx, "project-1", "a", "b", scores(6), ""); !faults.Is(err, faults.Validation) {
		t.Fatalf("out-of-range score allowed: %v", err)
	}
	if _, err := s.Submit(ctx, "project-1", "a", "b", scores(0), ""); !faults.Is(err, faults.Validation) {
		t.Fatalf("zero score allowed: %v", err)
	}
}

func TestSubmitOncePerRater(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	if _, err := s.Submit(ctx, "project-1", "creator-1", "prov-1", scores(4), ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(ctx, "project-1", "creator-1", "prov-1", scores(2), "changed my mind"); !faults.Is(err, faults.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestProviderAverage(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	if got := s.ProviderAverage("prov-1"); got != 0 {
		t.Fatalf("unrated provider average %v", got)
	}

	if _, err := s.Submit(ctx, "project-1", "creator-1", "prov-1", scores(5), ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(ctx, "project-2", "creator-2", "prov-1", scores(4), ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if got := s.ProviderAverage("prov-1"); math.Abs(got-4.5) > 1e-9 {
		t.Fatalf("average %v, want 4.5", got)
	}
}

func TestCategoryAverages(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first := model.RatingScores{Overall: 5, Professionalism: 4, Punctuality: 3, Quality: 5, PaymentPromptness: 4}
	second := model.RatingScores{Overall: 3, Professionalism: 2, Punctuality: 5, Quality: 3, PaymentPromptness: 4}
	if _, err := s.Submit(ctx, "project-1", "creator-1", "prov-1", first, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(ctx, "project-2", "creator-2", "prov-1", second, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := s.CategoryAverages(ctx, "prov-1")
	if err != nil {
		t.Fatalf("category averages: %v", err)
	}
	want := map[string]float64{
		"overall":            4,
		"professionalism":    3,
		"punctuality":        4,
		"quality":            4,
		"payment_promptness": 4,
	}
	for k, v := range want {
		if math.Abs(got[k]-v) > 1e-9 {
			t.Fatalf("%s: got %v want %v", k, got[k], v)
		}
	}

	empty, err := s.CategoryAverages(ctx, "nobody")
	if err != nil {
		t.Fatalf("category averages: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty map, got %+v", empty)
	}
}
