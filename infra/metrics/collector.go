package metrics

import (
	"context"
	"time"

	"github.com/soundbridge/gigdispatch/core/events"
	coremetrics "github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.ResponseEvent:
					if r, ok := sink.(coremetrics.ResponseRecorder); ok {
						_ = r.RecordResponse(coremetrics.ResponseOutcome{
							GigID:      e.GigID,
							ProviderID: e.ProviderID,
							Status:     e.Status,
							Time:       time.Now(),
						})
					}
				case events.SettlementEvent:
					if r, ok := sink.(coremetrics.SettlementRecorder); ok {
						_ = r.RecordSettlement(coremetrics.SettlementRecord{
							GigID:    e.GigID,
							Payment:  e.Payment,
							Amount:   e.Amount,
							Payout:   e.Payout,
							Refunded: e.Refunded,
							Time:     time.Now(),
						})
					}
				}
			}
		}
	}()
}
