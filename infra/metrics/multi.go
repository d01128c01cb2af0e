package metrics

import coremetrics "github.com/soundbridge/gigdispatch/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOfferResult forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordOfferResult(res []coremetrics.OfferResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordOfferResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordResponse forwards response outcomes.
func (m *MultiSink) RecordResponse(o coremetrics.ResponseOutcome) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ResponseRecorder); ok {
			if err := rec.RecordResponse(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSettlement forwards ledger transitions.
func (m *MultiSink) RecordSettlement(r coremetrics.SettlementRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SettlementRecorder); ok {
			if err := rec.RecordSettlement(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCandidateCount forwards match sizes.
func (m *MultiSink) RecordCandidateCount(n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CandidateCountRecorder); ok {
			if err := rec.RecordCandidateCount(n); err != nil {
				return err
			}
		}
	}
	return nil
}
