package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/core/model"
)

func newTestPromSink(t *testing.T) *PromSink {
	t.Helper()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	return sink.(*PromSink)
}

func TestPromSinkRecordsOffers(t *testing.T) {
	s := newTestPromSink(t)
	err := s.RecordOfferResult([]coremetrics.OfferResult{
		{GigID: "g1", ProviderID: "p1", GigType: model.GigUrgent, Delivered: true, Latency: 40 * time.Millisecond},
		{GigID: "g1", ProviderID: "p2", GigType: model.GigUrgent, Delivered: false},
		{GigID: "g2", ProviderID: "p3", GigType: model.GigPlanned, Delivered: true},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := testutil.ToFloat64(s.offers.WithLabelValues("urgent", "true")); got != 1 {
		t.Fatalf("urgent delivered: %v", got)
	}
	if got := testutil.ToFloat64(s.offers.WithLabelValues("urgent", "false")); got != 1 {
		t.Fatalf("urgent undelivered: %v", got)
	}
	if got := testutil.ToFloat64(s.offers.WithLabelValues("planned", "true")); got != 1 {
		t.Fatalf("planned delivered: %v", got)
	}
}

func TestPromSinkRecordsResponsesAndSettlements(t *testing.T) {
	s := newTestPromSink(t)
	if err := s.RecordResponse(coremetrics.ResponseOutcome{GigID: "g1", Status: model.ResponseAccepted}); err != nil {
		t.Fatalf("record response: %v", err)
	}
	if err := s.RecordSettlement(coremetrics.SettlementRecord{GigID: "g1", Payment: model.PaymentEscrowed}); err != nil {
		t.Fatalf("record settlement: %v", err)
	}
	if got := testutil.ToFloat64(s.responses.WithLabelValues("accepted")); got != 1 {
		t.Fatalf("responses: %v", got)
	}
	if got := testutil.ToFloat64(s.settlements.WithLabelValues("escrowed")); got != 1 {
		t.Fatalf("settlements: %v", got)
	}
}

func TestPromSinkReregisterIsNotAnError(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second: %v", err)
	}
}
