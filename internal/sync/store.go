package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prograin/agent-backend/internal/db"
)

// Store persists ingested marketplace events and entity snapshots.
type Store struct {
	db *db.DB
}

// NewStore creates a sync store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// execer is satisfied by both *sql.DB and *sql.Tx, so the write helpers run
// either standalone or inside an apply transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RecordEvent inserts an event id into the dedup ledger. It returns false
// if the event was already recorded. Uniqueness is enforced by the primary
// key, so concurrent duplicates admit at most one insert.
func (s *Store) RecordEvent(ctx context.Context, eventID string, eventType EventType) (bool, error) {
	return recordEvent(ctx, s.db, eventID, eventType)
}

func recordEvent(ctx context.Context, ex execer, eventID string, eventType EventType) (bool, error) {
	res, err := ex.ExecContext(ctx,
		`INSERT INTO ingested_events (event_id, event_type, received_at)
		 VALUES (?, ?, ?) ON CONFLICT(event_id) DO NOTHING`,
		eventID, string(eventType), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("recording event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking event insert: %w", err)
	}
	return n == 1, nil
}

// applyEvent records the event id and runs fn inside one transaction. If fn
// fails, the ledger insert rolls back with it and the event stays replayable.
// Returns false without running fn if the event id was already seen.
func (s *Store) applyEvent(ctx context.Context, eventID string, eventType EventType, fn func(tx *sql.Tx) error) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning apply: %w", err)
	}
	defer tx.Rollback()

	fresh, err := recordEvent(ctx, tx, eventID, eventType)
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, tx.Commit()
	}
	if err := fn(tx); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing apply: %w", err)
	}
	return true, nil
}

// ApplyUserEvent atomically records the event id and stores the user
// snapshot. Returns false if the event was already applied.
func (s *Store) ApplyUserEvent(ctx context.Context, eventID, userID string, payload json.RawMessage) (bool, error) {
	return s.applyEvent(ctx, eventID, EventUserUpdated, func(tx *sql.Tx) error {
		return upsertUser(ctx, tx, userID, payload, eventID)
	})
}

// ApplyListingEvent atomically records the event id and stores the listing
// snapshot. Returns false if the event was already applied.
func (s *Store) ApplyListingEvent(ctx context.Context, eventID string, l ListingSnapshot) (bool, error) {
	return s.applyEvent(ctx, eventID, EventListingUpdated, func(tx *sql.Tx) error {
		return upsertListing(ctx, tx, l)
	})
}

// ApplyTransactionEvent atomically records the event id and stores the
// transaction snapshot. Returns false if the event was already applied.
func (s *Store) ApplyTransactionEvent(ctx context.Context, eventID string, t TransactionSnapshot) (bool, error) {
	return s.applyEvent(ctx, eventID, EventTransactionUpdated, func(tx *sql.Tx) error {
		return upsertTransaction(ctx, tx, t)
	})
}

// UpsertUser stores the latest user snapshot. Last write wins.
func (s *Store) UpsertUser(ctx context.Context, id string, payload json.RawMessage, eventID string) error {
	return upsertUser(ctx, s.db, id, payload, eventID)
}

func upsertUser(ctx context.Context, ex execer, id string, payload json.RawMessage, eventID string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO users (id, payload, event_id, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload,
		   event_id = excluded.event_id, updated_at = excluded.updated_at`,
		id, string(payload), eventID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", id, err)
	}
	return nil
}

// UpsertListing stores the latest listing snapshot. Last write wins.
func (s *Store) UpsertListing(ctx context.Context, l ListingSnapshot) error {
	return upsertListing(ctx, s.db, l)
}

func upsertListing(ctx context.Context, ex execer, l ListingSnapshot) error {
	if l.Status == "" {
		l.Status = "active"
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO listings (id, user_id, payload, status, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id,
		   payload = excluded.payload, status = excluded.status, updated_at = excluded.updated_at`,
		l.ID, l.UserID, string(l.Payload), l.Status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting listing %s: %w", l.ID, err)
	}
	return nil
}

// UpsertTransaction stores the latest transaction snapshot. Last write wins.
func (s *Store) UpsertTransaction(ctx context.Context, t TransactionSnapshot) error {
	return upsertTransaction(ctx, s.db, t)
}

func upsertTransaction(ctx context.Context, ex execer, t TransactionSnapshot) error {
	if t.Status == "" {
		t.Status = "pending"
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, payload, status, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id,
		   payload = excluded.payload, status = excluded.status, updated_at = excluded.updated_at`,
		t.ID, t.UserID, string(t.Payload), t.Status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting transaction %s: %w", t.ID, err)
	}
	return nil
}

// GetUser returns the stored user snapshot, or nil if the user is unknown.
func (s *Store) GetUser(ctx context.Context, id string) (*UserSnapshot, error) {
	var u UserSnapshot
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, payload, event_id, updated_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &payload, &u.EventID, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	u.Payload = json.RawMessage(payload)
	return &u, nil
}

// RecentListings returns up to limit of the user's listings, most recently
// updated first. An unknown user yields an empty slice, not an error.
func (s *Store) RecentListings(ctx context.Context, userID string, limit int) ([]ListingSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, payload, status, updated_at FROM listings
		 WHERE user_id = ? ORDER BY updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading listings for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []ListingSnapshot
	for rows.Next() {
		var l ListingSnapshot
		var payload string
		if err := rows.Scan(&l.ID, &l.UserID, &payload, &l.Status, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		l.Payload = json.RawMessage(payload)
		out = append(out, l)
	}
	return out, rows.Err()
}

// RecentTransactions returns up to limit of the user's transactions, most
// recently updated first.
func (s *Store) RecentTransactions(ctx context.Context, userID string, limit int) ([]TransactionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, payload, status, updated_at FROM transactions
		 WHERE user_id = ? ORDER BY updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading transactions for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []TransactionSnapshot
	for rows.Next() {
		var tx TransactionSnapshot
		var payload string
		if err := rows.Scan(&tx.ID, &tx.UserID, &payload, &tx.Status, &tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		tx.Payload = json.RawMessage(payload)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// CountListings returns the number of listings stored for the user.
func (s *Store) CountListings(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting listings for %s: %w", userID, err)
	}
	return n, nil
}

// CountTransactions returns the number of transactions stored for the user.
func (s *Store) CountTransactions(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting transactions for %s: %w", userID, err)
	}
	return n, nil
}
