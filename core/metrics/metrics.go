// Package metrics defines the observability sinks used by the dispatch core.
// Implementations live under infra/metrics.
package metrics

import (
	"time"

	"github.com/soundbridge/gigdispatch/core/model"
)

// OfferResult represents a per-provider offer push to be recorded.
type OfferResult struct {
	GigID      string
	ProviderID string
	GigType    model.GigType
	Delivered  bool
	Latency    time.Duration
	Time       time.Time
}

// MetricsSink records offer results for observability purposes.
type MetricsSink interface {
	RecordOfferResult(results []OfferResult) error
}

// ResponseOutcome captures a terminal offer response.
type ResponseOutcome struct {
	GigID      string
	ProviderID string
	Status     model.ResponseStatus
	Latency    time.Duration
	Time       time.Time
}

// ResponseRecorder records provider response outcomes.
type ResponseRecorder interface {
	RecordResponse(o ResponseOutcome) error
}

// SettlementRecord captures an escrow ledger transition.
type SettlementRecord struct {
	GigID    string
	Payment  model.PaymentStatus
	Amount   model.Money
	Payout   model.Money
	Refunded model.Money
	Time     time.Time
}

// SettlementRecorder records ledger transitions.
type SettlementRecorder interface {
	RecordSettlement(r SettlementRecord) error
}

// CandidateCountRecorder records how many providers a match produced.
type CandidateCountRecorder interface {
	RecordCandidateCount(n int) error
}

// NopSink discards everything. Used when no sink is configured.
type NopSink struct{}

func (NopSink) RecordOfferResult([]OfferResult) error   { return nil }
func (NopSink) RecordResponse(ResponseOutcome) error    { return nil }
func (NopSink) RecordSettlement(SettlementRecord) error { return nil }
func (NopSink) RecordCandidateCount(int) error          { return nil }
