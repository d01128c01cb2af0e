package payment

import (
	"context"

	"github.com/soundbridge/gigdispatch/core/logger"
	"github.com/soundbridge/gigdispatch/core/model"
)

// LogGateway acknowledges every operation and records it in the log. Stands
// in until a payment provider integration is wired.
type LogGateway struct {
	log logger.Logger
}

// NewLogGateway creates a LogGateway.
func NewLogGateway(log logger.Logger) *LogGateway {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &LogGateway{log: log}
}

func (g *LogGateway) HoldFunds(_ context.Context, ref string, amount model.Money) error {
	g.log.Infof("hold %s for %s", amount, ref)
	return nil
}

func (g *LogGateway) CaptureFunds(_ context.Context, ref string, amount model.Money, providerID string) error {
	g.log.Infof("capture %s for %s to %s", amount, ref, providerID)
	return nil
}

func (g *LogGateway) RefundFunds(_ context.Context, ref string, amount model.Money, reason string) error {
	g.log.Infof("refund %s for %s (%s)", amount, ref, reason)
	return nil
}
