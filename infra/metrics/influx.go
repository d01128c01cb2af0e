package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/infra/logger"
)

// InfluxSink writes dispatch events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordOfferResult writes offer pushes as line protocol events.
func (s *InfluxSink) RecordOfferResult(res []coremetrics.OfferResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range res {
		p := write.NewPointWithMeasurement("offer_event").
			AddTag("gig_id", r.GigID).
			AddTag("provider_id", r.ProviderID).
			AddTag("gig_type", r.GigType.String()).
			AddTag("delivered", strconv.FormatBool(r.Delivered)).
			AddTag("component", "dispatch_coordinator").
			AddField("latency_ms", r.Latency.Milliseconds()).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordResponse writes a terminal offer response.
func (s *InfluxSink) RecordResponse(o coremetrics.ResponseOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("offer_response").
		AddTag("gig_id", o.GigID).
		AddTag("provider_id", o.ProviderID).
		AddTag("status", o.Status.String()).
		AddField("latency_ms", o.Latency.Milliseconds()).
		SetTime(o.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSettlement writes an escrow ledger transition.
func (s *InfluxSink) RecordSettlement(r coremetrics.SettlementRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("settlement").
		AddTag("gig_id", r.GigID).
		AddTag("payment_status", r.Payment.String()).
		AddTag("currency", r.Amount.Currency).
		AddField("amount", r.Amount.Amount).
		AddField("payout", r.Payout.Amount).
		AddField("refunded", r.Refunded.Amount).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
