package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundbridge/gigdispatch/core/model"
)

// Call records one gateway invocation.
type Call struct {
	Op         string
	Ref        string
	Amount     model.Money
	ProviderID string
	Reason     string
}

// MockGateway records calls and succeeds unless told otherwise.
type MockGateway struct {
	mu    sync.Mutex
	calls []Call

	// FailOps makes the named operations ("hold", "capture", "refund") fail.
	FailOps map[string]bool
}

// NewMockGateway creates an empty MockGateway.
func NewMockGateway() *MockGateway { return &MockGateway{} }

func (g *MockGateway) HoldFunds(_ context.Context, ref string, amount model.Money) error {
	return g.record("hold", Call{Op: "hold", Ref: ref, Amount: amount})
}

func (g *MockGateway) CaptureFunds(_ context.Context, ref string, amount model.Money, providerID string) error {
	return g.record("capture", Call{Op: "capture", Ref: ref, Amount: amount, ProviderID: providerID})
}

func (g *MockGateway) RefundFunds(_ context.Context, ref string, amount model.Money, reason string) error {
	return g.record("refund", Call{Op: "refund", Ref: ref, Amount: amount, Reason: reason})
}

func (g *MockGateway) record(op string, c Call) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailOps[op] {
		return fmt.Errorf("%s declined", op)
	}
	g.calls = append(g.calls, c)
	return nil
}

// Calls returns a copy of all recorded calls.
func (g *MockGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}
