package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/soundbridge/gigdispatch/core/metrics"
)

// PromSink records dispatch events in Prometheus metrics.
type PromSink struct {
	offers      *prometheus.CounterVec
	responses   *prometheus.CounterVec
	settlements *prometheus.CounterVec
	candidates  prometheus.Histogram
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_events_total",
		Help: "Total number of offer push events",
	}, []string{"gig_type", "delivered"})
	responses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_responses_total",
		Help: "Total number of terminal offer responses",
	}, []string{"status"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_transitions_total",
		Help: "Total number of escrow ledger transitions",
	}, []string{"payment_status"})
	candidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_candidates",
		Help:    "Number of candidates produced per match",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	if err := register(reg, &offers); err != nil {
		return nil, err
	}
	if err := register(reg, &responses); err != nil {
		return nil, err
	}
	if err := register(reg, &settlements); err != nil {
		return nil, err
	}
	if err := reg.Register(candidates); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			candidates = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	return &PromSink{offers: offers, responses: responses, settlements: settlements, candidates: candidates}, nil
}

func register(reg prometheus.Registerer, vec **prometheus.CounterVec) error {
	if err := reg.Register(*vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*vec = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	return nil
}

// RecordOfferResult increments the counter for each pushed offer.
func (s *PromSink) RecordOfferResult(res []coremetrics.OfferResult) error {
	for _, r := range res {
		s.offers.WithLabelValues(r.GigType.String(), strconv.FormatBool(r.Delivered)).Inc()
	}
	return nil
}

// RecordResponse counts a terminal offer response.
func (s *PromSink) RecordResponse(o coremetrics.ResponseOutcome) error {
	s.responses.WithLabelValues(o.Status.String()).Inc()
	return nil
}

// RecordSettlement counts an escrow ledger transition.
func (s *PromSink) RecordSettlement(r coremetrics.SettlementRecord) error {
	s.settlements.WithLabelValues(r.Payment.String()).Inc()
	return nil
}

// RecordCandidateCount observes the size of a match result.
func (s *PromSink) RecordCandidateCount(n int) error {
	s.candidates.Observe(float64(n))
	return nil
}
