// Package store provides the SQLite-backed persistence for gigs, offer
// responses and the settlement journal. Rows carry the full JSON record next
// to the columns the conditional transitions filter on; every check-and-set
// runs inside a transaction on a single connection.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/soundbridge/gigdispatch/core/faults"
	"github.com/soundbridge/gigdispatch/core/ledger"
	"github.com/soundbridge/gigdispatch/core/model"
)

// SQLiteStore persists gigs and responses to a SQLite database. It implements
// dispatch.GigStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection serializes transactions and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS gigs (
        id TEXT PRIMARY KEY,
        status TEXT NOT NULL,
        payment TEXT NOT NULL,
        expires_at INTEGER,
        record TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS gig_responses (
        gig_id TEXT NOT NULL,
        provider_id TEXT NOT NULL,
        status TEXT NOT NULL,
        deadline INTEGER,
        record TEXT NOT NULL,
        PRIMARY KEY (gig_id, provider_id)
    );
    CREATE TABLE IF NOT EXISTS settlement_journal (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL,
        key TEXT NOT NULL UNIQUE,
        gig_id TEXT NOT NULL,
        op TEXT NOT NULL,
        ts INTEGER,
        record TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Journal returns the settlement journal backed by the same database.
func (s *SQLiteStore) Journal() *SQLiteJournal { return &SQLiteJournal{db: s.db} }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) CreateGig(ctx context.Context, g model.Gig) error {
	b, err := json.Marshal(g)
	if err != nil {
		return faults.Upstreamf(err, "marshal gig")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO gigs (id, status, payment, expires_at, record) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Status.String(), g.Payment.String(), g.ExpiresAt.Unix(), string(b))
	if err != nil {
		if isUniqueViolation(err) {
			return faults.Conflictf("gig %s already exists", g.ID)
		}
		return faults.Upstreamf(err, "insert gig")
	}
	return nil
}

func (s *SQLiteStore) GetGig(ctx context.Context, id string) (model.Gig, error) {
	return getGig(ctx, s.db, id)
}

func getGig(ctx context.Context, q querier, id string) (model.Gig, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT record FROM gigs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return model.Gig{}, faults.NotFoundf("unknown gig %s", id)
	}
	if err != nil {
		return model.Gig{}, faults.Upstreamf(err, "query gig")
	}
	var g model.Gig
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return model.Gig{}, faults.Upstreamf(err, "unmarshal gig")
	}
	return g, nil
}

func saveGig(ctx context.Context, q querier, g model.Gig) error {
	b, err := json.Marshal(g)
	if err != nil {
		return faults.Upstreamf(err, "marshal gig")
	}
	_, err = q.ExecContext(ctx,
		`UPDATE gigs SET status = ?, payment = ?, expires_at = ?, record = ? WHERE id = ?`,
		g.Status.String(), g.Payment.String(), g.ExpiresAt.Unix(), string(b), g.ID)
	if err != nil {
		return faults.Upstreamf(err, "update gig")
	}
	return nil
}

func (s *SQLiteStore) ListGigsByStatus(ctx context.Context, st model.GigStatus) ([]model.Gig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM gigs WHERE status = ? ORDER BY id`, st.String())
	if err != nil {
		return nil, faults.Upstreamf(err, "query gigs")
	}
	defer func() { _ = rows.Close() }()
	var out []model.Gig
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, faults.Upstreamf(err, "scan gig")
		}
		var g model.Gig
		if err := json.Unmarshal([]byte(data), &g); err != nil {
			return nil, faults.Upstreamf(err, "unmarshal gig")
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Upstreamf(err, "iterate gigs")
	}
	return out, nil
}

func (s *SQLiteStore) CreateResponses(ctx context.Context, rs []model.GigResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range rs {
		b, err := json.Marshal(r)
		if err != nil {
			return faults.Upstreamf(err, "marshal response")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO gig_responses (gig_id, provider_id, status, deadline, record) VALUES (?, ?, ?, ?, ?)`,
			r.GigID, r.ProviderID, r.Status.String(), r.Deadline.Unix(), string(b))
		if err != nil {
			if isUniqueViolation(err) {
				return faults.Conflictf("response for gig %s provider %s already exists", r.GigID, r.ProviderID)
			}
			return faults.Upstreamf(err, "insert response")
		}
	}
	if err := tx.Commit(); err != nil {
		return faults.Upstreamf(err, "commit responses")
	}
	return nil
}

func (s *SQLiteStore) GetResponse(ctx context.Context, gigID, providerID string) (model.GigResponse, error) {
	return getResponse(ctx, s.db, gigID, providerID)
}

func getResponse(ctx context.Context, q querier, gigID, providerID string) (model.GigResponse, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT record FROM gig_responses WHERE gig_id = ? AND provider_id = ?`,
		gigID, providerID).Scan(&data)
	if err == sql.ErrNoRows {
		return model.GigResponse{}, faults.NotFoundf("no response for gig %s provider %s", gigID, providerID)
	}
	if err != nil {
		return model.GigResponse{}, faults.Upstreamf(err, "query response")
	}
	var r model.GigResponse
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return model.GigResponse{}, faults.Upstreamf(err, "unmarshal response")
	}
	return r, nil
}

func saveResponse(ctx context.Context, q querier, r model.GigResponse) error {
	b, err := json.Marshal(r)
	if err != nil {
		return faults.Upstreamf(err, "marshal response")
	}
	_, err = q.ExecContext(ctx,
		`UPDATE gig_responses SET status = ?, record = ? WHERE gig_id = ? AND provider_id = ?`,
		r.Status.String(), string(b), r.GigID, r.ProviderID)
	if err != nil {
		return faults.Upstreamf(err, "update response")
	}
	return nil
}

func (s *SQLiteStore) ListResponses(ctx context.Context, gigID string) ([]model.GigResponse, error) {
	return listResponses(ctx, s.db, `SELECT record FROM gig_responses WHERE gig_id = ? ORDER BY provider_id`, gigID)
}

func listResponses(ctx context.Context, q querier, query string, args ...any) ([]model.GigResponse, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, faults.Upstreamf(err, "query responses")
	}
	defer func() { _ = rows.Close() }()
	var out []model.GigResponse
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, faults.Upstreamf(err, "scan response")
		}
		var r model.GigResponse
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, faults.Upstreamf(err, "unmarshal response")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Upstreamf(err, "iterate responses")
	}
	return out, nil
}

func (s *SQLiteStore) AcceptResponse(ctx context.Context, gigID, providerID string, now time.Time) (model.Gig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Gig{}, faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	g, err := getGig(ctx, tx, gigID)
	if err != nil {
		return model.Gig{}, err
	}
	r, err := getResponse(ctx, tx, gigID, providerID)
	if err != nil {
		return model.Gig{}, err
	}
	if g.Status != model.GigSearching {
		return model.Gig{}, faults.Conflictf("gig %s already %s", gigID, g.Status)
	}
	if r.Status != model.ResponsePending {
		return model.Gig{}, faults.InvalidStatef("response already %s", r.Status)
	}

	r.Status = model.ResponseAccepted
	r.RespondedAt = now
	if err := saveResponse(ctx, tx, r); err != nil {
		return model.Gig{}, err
	}
	others, err := listResponses(ctx, tx,
		`SELECT record FROM gig_responses WHERE gig_id = ? AND provider_id != ? AND status = ?`,
		gigID, providerID, model.ResponsePending.String())
	if err != nil {
		return model.Gig{}, err
	}
	for _, other := range others {
		other.Status = model.ResponseExpired
		if err := saveResponse(ctx, tx, other); err != nil {
			return model.Gig{}, err
		}
	}
	g.Status = model.GigConfirmed
	g.SelectedProvider = providerID
	if err := saveGig(ctx, tx, g); err != nil {
		return model.Gig{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Gig{}, faults.Upstreamf(err, "commit accept")
	}
	return g, nil
}

func (s *SQLiteStore) DeclineResponse(ctx context.Context, gigID, providerID, message string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getResponse(ctx, tx, gigID, providerID)
	if err != nil {
		return err
	}
	if r.Status != model.ResponsePending {
		return faults.InvalidStatef("response already %s", r.Status)
	}
	r.Status = model.ResponseDeclined
	r.RespondedAt = now
	r.Message = message
	if err := saveResponse(ctx, tx, r); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return faults.Upstreamf(err, "commit decline")
	}
	return nil
}

func (s *SQLiteStore) ExpireDueResponses(ctx context.Context, now time.Time) ([]model.GigResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	due, err := listResponses(ctx, tx,
		`SELECT record FROM gig_responses WHERE status = ? AND deadline < ? ORDER BY gig_id, provider_id`,
		model.ResponsePending.String(), now.Unix())
	if err != nil {
		return nil, err
	}
	var expired []model.GigResponse
	for _, r := range due {
		// deadlines are stored with second precision
		if !r.Deadline.Before(now) {
			continue
		}
		r.Status = model.ResponseExpired
		if err := saveResponse(ctx, tx, r); err != nil {
			return nil, err
		}
		expired = append(expired, r)
	}
	if err := tx.Commit(); err != nil {
		return nil, faults.Upstreamf(err, "commit expiry")
	}
	return expired, nil
}

func (s *SQLiteStore) CancelGig(ctx context.Context, gigID string, now time.Time) (model.Gig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Gig{}, faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	g, err := getGig(ctx, tx, gigID)
	if err != nil {
		return model.Gig{}, err
	}
	if g.Status != model.GigSearching {
		return model.Gig{}, faults.InvalidStatef("cannot cancel gig in %s", g.Status)
	}
	pending, err := listResponses(ctx, tx,
		`SELECT record FROM gig_responses WHERE gig_id = ? AND status = ?`,
		gigID, model.ResponsePending.String())
	if err != nil {
		return model.Gig{}, err
	}
	for _, r := range pending {
		r.Status = model.ResponseExpired
		if err := saveResponse(ctx, tx, r); err != nil {
			return model.Gig{}, err
		}
	}
	g.Status = model.GigCancelled
	if err := saveGig(ctx, tx, g); err != nil {
		return model.Gig{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Gig{}, faults.Upstreamf(err, "commit cancel")
	}
	return g, nil
}

func (s *SQLiteStore) CompleteGig(ctx context.Context, gigID string) (model.Gig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Gig{}, faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	g, err := getGig(ctx, tx, gigID)
	if err != nil {
		return model.Gig{}, err
	}
	if g.Status != model.GigConfirmed {
		return model.Gig{}, faults.InvalidStatef("cannot complete gig in %s", g.Status)
	}
	g.Status = model.GigCompleted
	if err := saveGig(ctx, tx, g); err != nil {
		return model.Gig{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Gig{}, faults.Upstreamf(err, "commit complete")
	}
	return g, nil
}

func (s *SQLiteStore) ExtendGig(ctx context.Context, gigID string, expiresAt time.Time) (model.Gig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Gig{}, faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	g, err := getGig(ctx, tx, gigID)
	if err != nil {
		return model.Gig{}, err
	}
	// a cancelled search can be re-opened; confirmed gigs cannot
	if g.Status != model.GigSearching && g.Status != model.GigCancelled {
		return model.Gig{}, faults.InvalidStatef("cannot extend gig in %s", g.Status)
	}
	g.Status = model.GigSearching
	g.ExpiresAt = expiresAt
	if err := saveGig(ctx, tx, g); err != nil {
		return model.Gig{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Gig{}, faults.Upstreamf(err, "commit extend")
	}
	return g, nil
}

func (s *SQLiteStore) SetPaymentStatus(ctx context.Context, gigID string, from, to model.PaymentStatus, payout model.Money) (model.Gig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Gig{}, faults.Upstreamf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	g, err := getGig(ctx, tx, gigID)
	if err != nil {
		return model.Gig{}, err
	}
	if g.Payment != from {
		return model.Gig{}, faults.InvalidStatef("payment is %s, expected %s", g.Payment, from)
	}
	g.Payment = to
	if !payout.IsZero() {
		g.ProviderPayout = payout
	}
	if err := saveGig(ctx, tx, g); err != nil {
		return model.Gig{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Gig{}, faults.Upstreamf(err, "commit payment")
	}
	return g, nil
}

// SQLiteJournal persists settlement entries. It implements ledger.Journal.
type SQLiteJournal struct {
	db *sql.DB
}

func (j *SQLiteJournal) Append(ctx context.Context, e ledger.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO settlement_journal (id, key, gig_id, op, ts, record) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Key, e.GigID, e.Op, e.Time.Unix(), string(b))
	return err
}

func (j *SQLiteJournal) FindByKey(ctx context.Context, key string) (ledger.Entry, bool, error) {
	var data string
	err := j.db.QueryRowContext(ctx,
		`SELECT record FROM settlement_journal WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, err
	}
	var e ledger.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return ledger.Entry{}, false, fmt.Errorf("unmarshal entry: %w", err)
	}
	return e, true, nil
}

func (j *SQLiteJournal) ListByGig(ctx context.Context, gigID string) ([]ledger.Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT record FROM settlement_journal WHERE gig_id = ? ORDER BY seq`, gigID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ledger.Entry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e ledger.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite reports constraint violations in the error text
	return strings.Contains(err.Error(), "constraint failed")
}
