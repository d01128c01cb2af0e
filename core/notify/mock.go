package notify

import (
	"fmt"
	"sync"
	"time"
)

// MockNotifier records pushes and acknowledges receipts immediately. Used in
// tests and as the default when no broker is configured.
type MockNotifier struct {
	mu       sync.Mutex
	offers   []Offer
	notices  []Notice
	receipts map[string]bool
	seq      int

	// FailFor lists provider ids whose pushes fail with an error.
	FailFor map[string]bool
	// Silent lists delivery receipts that never arrive.
	Silent map[string]bool
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{receipts: map[string]bool{}}
}

func (m *MockNotifier) PushOffer(o Offer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[o.ProviderID] {
		return "", fmt.Errorf("push rejected for %s", o.ProviderID)
	}
	m.seq++
	id := fmt.Sprintf("push-%d", m.seq)
	m.offers = append(m.offers, o)
	m.receipts[id] = !m.Silent[o.ProviderID]
	return id, nil
}

func (m *MockNotifier) WaitForReceipt(id string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, known := m.receipts[id]
	if !known {
		return false, fmt.Errorf("unknown delivery %s", id)
	}
	return ok, nil
}

func (m *MockNotifier) PushNotice(n Notice) error {
	m.mu.Lock()
	m.notices = append(m.notices, n)
	m.mu.Unlock()
	return nil
}

// Offers returns a copy of all pushed offers.
func (m *MockNotifier) Offers() []Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Offer(nil), m.offers...)
}

// Notices returns a copy of all pushed notices.
func (m *MockNotifier) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notice(nil), m.notices...)
}
