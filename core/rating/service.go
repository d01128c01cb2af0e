// Package rating implements blind mutual ratings: each side of a project
// rates the other, and neither rating is visible until both exist. The gate
// is computed at read time from the two rows, never stored.
package rating

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/model"
)

// Service validates and stores ratings and serves the read-side projections.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service backed by the given store.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, faults.Validationf("rating: nil store")
	}
	return &Service{store: store, now: time.Now}, nil
}

// SetNow overrides the clock. Tests only.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

// Submit records one side of the mutual rating for a project.
func (s *Service) Submit(ctx context.Context, projectID, raterID, rateeID string, scores model.RatingScores, review string) (model.GigRating, error) {
	if projectID == "" || raterID == "" || rateeID == "" {
		return model.GigRating{}, faults.Validationf("project, rater and ratee are required")
	}
	if raterID == rateeID {
		return model.GigRating{}, faults.Validationf("cannot rate yourself")
	}
	if err := scores.Validate(); err != nil {
		return model.GigRating{}, faults.Validationf("rating: %v", err)
	}
	r := model.GigRating{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		RaterID:     raterID,
		RateeID:     rateeID,
		Scores:      scores,
		Review:      review,
		SubmittedAt: s.now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return model.GigRating{}, err
	}
	return r, nil
}

// ProjectRatings returns the viewer's projection of a project's ratings.
// TheirRating stays nil until both sides have submitted.
func (s *Service) ProjectRatings(ctx context.Context, projectID, viewerID string) (model.ProjectRatings, error) {
	rs, err := s.store.ListByProject(ctx, projectID)
	if err != nil {
		return model.ProjectRatings{}, err
	}
	out := model.ProjectRatings{ProjectID: projectID, BothSubmitted: len(rs) == 2}
	for i := range rs {
		r := rs[i]
		if r.RaterID == viewerID {
			out.MyRating = &r
		} else if out.BothSubmitted {
			out.TheirRating = &r
		}
	}
	return out, nil
}

// ProviderAverage returns the mean overall score received by the provider,
// or 0 when none exist. Feeds the matcher's ranking.
func (s *Service) ProviderAverage(providerID string) float64 {
	rs, err := s.store.ListByRatee(context.Background(), providerID)
	if err != nil || len(rs) == 0 {
		return 0
	}
	scores := make([]float64, 0, len(rs))
	for _, r := range rs {
		scores = append(scores, float64(r.Scores.Overall))
	}
	return stat.Mean(scores, nil)
}

// CategoryAverages returns the mean of each score category received by the
// user.
func (s *Service) CategoryAverages(ctx context.Context, rateeID string) (map[string]float64, error) {
	rs, err := s.store.ListByRatee(ctx, rateeID)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return map[string]float64{}, nil
	}
	cols := map[string][]float64{}
	for _, r := range rs {
		cols["overall"] = append(cols["overall"], float64(r.Scores.Overall))
		cols["professionalism"] = append(cols["professionalism"], float64(r.Scores.Professionalism))
		cols["punctuality"] = append(cols["punctuality"], float64(r.Scores.Punctuality))
		cols["quality"] = append(cols["quality"], float64(r.Scores.Quality))
		cols["payment_promptness"] = append(cols["payment_promptness"], float64(r.Scores.PaymentPromptness))
	}
	out := make(map[string]float64, len(cols))
	for k, v := range cols {
		out[k] = stat.Mean(v, nil)
	}
	return out, nil
}
