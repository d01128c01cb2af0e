package model

import (
	"fmt"
	"time"
)

// RatingScores holds the per-category scores of a gig rating, each on a
// 1-5 scale.
type RatingScores struct {
	Overall           int `json:"overall"`
	Professionalism   int `json:"professionalism"`
	Punctuality       int `json:"punctuality"`
	Quality           int `json:"quality"`
	PaymentPromptness int `json:"payment_promptness"`
}

// Validate checks that all scores are within range.
func (s RatingScores) Validate() error {
	for name, v := range map[string]int{
		"overall":            s.Overall,
		"professionalism":    s.Professionalism,
		"punctuality":        s.Punctuality,
		"quality":            s.Quality,
		"payment_promptness": s.PaymentPromptness,
	} {
		if v < 1 || v > 5 {
			return fmt.Errorf("%s score must be between 1 and 5", name)
		}
	}
	return nil
}

// GigRating is one side of the mutual rating for a project. A project holds
// at most two ratings, one per direction.
type GigRating struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	RaterID     string       `json:"rater_id"`
	RateeID     string       `json:"ratee_id"`
	Scores      RatingScores `json:"scores"`
	Review      string       `json:"review,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// ProjectRatings is the read-side projection for one viewer. TheirRating
// stays nil until both parties have submitted; the blind gate is computed at
// query time, never stored.
type ProjectRatings struct {
	ProjectID     string     `json:"project_id"`
	MyRating      *GigRating `json:"my_rating,omitempty"`
	TheirRating   *GigRating `json:"their_rating,omitempty"`
	BothSubmitted bool       `json:"both_submitted"`
}
