package metrics

import (
	"errors"
	"testing"

	coremetrics "github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/core/model"
)

type recordingSink struct {
	offers      int
	responses   int
	settlements int
	fail        bool
}

func (s *recordingSink) RecordOfferResult(res []coremetrics.OfferResult) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.offers += len(res)
	return nil
}

func (s *recordingSink) RecordResponse(coremetrics.ResponseOutcome) error {
	s.responses++
	return nil
}

func (s *recordingSink) RecordSettlement(coremetrics.SettlementRecord) error {
	s.settlements++
	return nil
}

// offerOnlySink implements only the mandatory interface.
type offerOnlySink struct{ offers int }

func (s *offerOnlySink) RecordOfferResult(res []coremetrics.OfferResult) error {
	s.offers += len(res)
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, b)

	if err := m.RecordOfferResult([]coremetrics.OfferResult{{GigID: "g1"}, {GigID: "g2"}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if a.offers != 2 || b.offers != 2 {
		t.Fatalf("fan-out missed: %d %d", a.offers, b.offers)
	}

	if err := m.RecordResponse(coremetrics.ResponseOutcome{Status: model.ResponseAccepted}); err != nil {
		t.Fatalf("record response: %v", err)
	}
	if err := m.RecordSettlement(coremetrics.SettlementRecord{Payment: model.PaymentEscrowed}); err != nil {
		t.Fatalf("record settlement: %v", err)
	}
	if a.responses != 1 || b.settlements != 1 {
		t.Fatalf("capability fan-out missed: %+v %+v", a, b)
	}
}

func TestMultiSinkSkipsSinksWithoutCapability(t *testing.T) {
	plain := &offerOnlySink{}
	full := &recordingSink{}
	m := NewMultiSink(plain, full)

	if err := m.RecordResponse(coremetrics.ResponseOutcome{}); err != nil {
		t.Fatalf("record response: %v", err)
	}
	if full.responses != 1 {
		t.Fatalf("capable sink skipped")
	}
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	m := NewMultiSink(&recordingSink{fail: true}, &recordingSink{})
	if err := m.RecordOfferResult([]coremetrics.OfferResult{{GigID: "g1"}}); err == nil {
		t.Fatalf("error swallowed")
	}
}
