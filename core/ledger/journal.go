package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soundbridge/gigdispatch/core/model"
)

// Entry is one settlement journal row. Financial operations are replay-safe:
// the caller's idempotency key maps to exactly one entry.
type Entry struct {
	ID       string              `json:"id"`
	Key      string              `json:"key"`
	GigID    string              `json:"gig_id"`
	Op       string              `json:"op"` // "escrow", "release", "refund", "split"
	Payment  model.PaymentStatus `json:"payment_status"`
	Amount   model.Money         `json:"amount"`
	Payout   model.Money         `json:"payout"`
	Refunded model.Money         `json:"refunded"`
	Reason   string              `json:"reason,omitempty"`
	Time     time.Time           `json:"time"`
}

// Journal records ledger transitions and resolves idempotency keys.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	// FindByKey returns the entry recorded under the idempotency key.
	FindByKey(ctx context.Context, key string) (Entry, bool, error)
	// ListByGig returns all entries of a gig in order of appending.
	ListByGig(ctx context.Context, gigID string) ([]Entry, error)
}

// MemoryJournal is the in-memory Journal implementation.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []Entry
	byKey   map[string]Entry
}

// NewMemoryJournal creates an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{byKey: map[string]Entry{}}
}

func (j *MemoryJournal) Append(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	if e.Key != "" {
		j.byKey[e.Key] = e
	}
	return nil
}

func (j *MemoryJournal) FindByKey(_ context.Context, key string) (Entry, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.byKey[key]
	return e, ok, nil
}

func (j *MemoryJournal) ListByGig(_ context.Context, gigID string) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Entry
	for _, e := range j.entries {
		if e.GigID == gigID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Time.Before(out[k].Time) })
	return out, nil
}
