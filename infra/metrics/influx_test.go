package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/core/model"
)

type influxCapture struct {
	mu    sync.Mutex
	lines []string
}

func newInfluxServer(t *testing.T, cap *influxCapture) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/health") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"pass"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		cap.mu.Lock()
		cap.lines = append(cap.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		cap.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestInfluxSinkWritesOfferEvents(t *testing.T) {
	cap := &influxCapture{}
	srv := newInfluxServer(t, cap)
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	err := sink.RecordOfferResult([]coremetrics.OfferResult{
		{GigID: "g1", ProviderID: "p1", GigType: model.GigUrgent, Delivered: true, Latency: 120 * time.Millisecond, Time: time.Now()},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.lines) != 1 {
		t.Fatalf("lines written: %d", len(cap.lines))
	}
	line := cap.lines[0]
	for _, want := range []string{"offer_event", "gig_id=g1", "provider_id=p1", "gig_type=urgent", "delivered=true", "latency_ms=120i"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestInfluxSinkWritesSettlements(t *testing.T) {
	cap := &influxCapture{}
	srv := newInfluxServer(t, cap)
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	err := sink.RecordSettlement(coremetrics.SettlementRecord{
		GigID:   "g1",
		Payment: model.PaymentReleased,
		Amount:  model.Money{Amount: 10000, Currency: "EUR"},
		Payout:  model.Money{Amount: 8800, Currency: "EUR"},
		Time:    time.Now(),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.lines) != 1 {
		t.Fatalf("lines written: %d", len(cap.lines))
	}
	line := cap.lines[0]
	for _, want := range []string{"settlement", "payment_status=released", "amount=10000i", "payout=8800i"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestInfluxFallbackOnFailedHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL, "token", "org", "bucket")
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected nop fallback, got %T", sink)
	}
}

func TestInfluxFallbackOnHealthyInstance(t *testing.T) {
	cap := &influxCapture{}
	srv := newInfluxServer(t, cap)
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL, "token", "org", "bucket")
	if _, ok := sink.(*InfluxSink); !ok {
		t.Fatalf("expected live sink, got %T", sink)
	}
}
