package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offerReceiptLatency *prometheus.HistogramVec
	offersPushed        *prometheus.CounterVec
	receiptRate         *prometheus.GaugeVec
	acceptWins          prometheus.Counter
	acceptConflicts     prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.GaugeVec, prometheus.Counter, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offer_push_latency_seconds",
			Help:    "Latency of offer pushes from publish to delivery receipt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gig_type"},
	)
	pushed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_pushed_total",
			Help: "Number of offers pushed to providers",
		},
		[]string{"gig_type"},
	)
	rate := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offer_receipt_rate",
			Help: "Delivery receipt rate for pushed offers",
		},
		[]string{"gig_type"},
	)
	wins := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gig_accepts_total",
			Help: "Number of accepted offers that won the gig",
		},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gig_accept_conflicts_total",
			Help: "Number of accept attempts that lost the race",
		},
	)
	return lat, pushed, rate, wins, conflicts
}

func init() {
	offerReceiptLatency, offersPushed, receiptRate, acceptWins, acceptConflicts = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offerReceiptLatency, offersPushed, receiptRate, acceptWins, acceptConflicts)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offerReceiptLatency, offersPushed, receiptRate, acceptWins, acceptConflicts = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
