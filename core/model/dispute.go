package model

import (
	"fmt"
	"time"
)

// DisputeStatus moves forward only: open, under review, then one terminal
// resolution.
type DisputeStatus int

const (
	DisputeOpen DisputeStatus = iota
	DisputeUnderReview
	DisputeResolvedRefund
	DisputeResolvedRelease
	DisputeResolvedSplit
)

func (s DisputeStatus) String() string {
	switch s {
	case DisputeOpen:
		return "open"
	case DisputeUnderReview:
		return "under_review"
	case DisputeResolvedRefund:
		return "resolved_refund"
	case DisputeResolvedRelease:
		return "resolved_release"
	case DisputeResolvedSplit:
		return "resolved_split"
	default:
		return "unknown"
	}
}

// Terminal reports whether the dispute has been resolved.
func (s DisputeStatus) Terminal() bool {
	return s == DisputeResolvedRefund || s == DisputeResolvedRelease || s == DisputeResolvedSplit
}

// Active reports whether the dispute still freezes ledger operations.
func (s DisputeStatus) Active() bool { return !s.Terminal() }

// Dispute is raised by one project participant against the other. While a
// dispute is active the escrow ledger refuses release and refund for the gig.
type Dispute struct {
	ID              string        `json:"id"`
	GigID           string        `json:"gig_id"`
	ProjectID       string        `json:"project_id"`
	RaiserID        string        `json:"raiser_id"`
	RespondentID    string        `json:"respondent_id"`
	Reason          string        `json:"reason"`
	Description     string        `json:"description,omitempty"`
	Evidence        []string      `json:"evidence,omitempty"`
	Status          DisputeStatus `json:"status"`
	CounterResponse string        `json:"counter_response,omitempty"`
	CounterEvidence []string      `json:"counter_evidence,omitempty"`
	ResolutionNotes string        `json:"resolution_notes,omitempty"`

	// SplitPercent is the provider's share and is set only for
	// resolved_split outcomes.
	SplitPercent int       `json:"split_percent,omitempty"`
	RaisedAt     time.Time `json:"raised_at"`
	ResolvedAt   time.Time `json:"resolved_at,omitempty"`
}

// Validate checks the fields required to raise a dispute.
func (d Dispute) Validate() error {
	if d.GigID == "" {
		return fmt.Errorf("gig is required")
	}
	if d.RaiserID == "" {
		return fmt.Errorf("raiser is required")
	}
	if d.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	return nil
}
