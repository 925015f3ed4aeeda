package agent

import (
	"context"
	"encoding/json"
	"fmt"

	marketsync "github.com/prograin/agent-backend/internal/sync"
)

// Caps on how much account history is folded into a chat prompt.
const (
	maxRecentListings     = 5
	maxRecentTransactions = 5
)

// ContextStore is the read-only slice of the sync store the assembler needs.
type ContextStore interface {
	GetUser(ctx context.Context, id string) (*marketsync.UserSnapshot, error)
	CountListings(ctx context.Context, userID string) (int, error)
	CountTransactions(ctx context.Context, userID string) (int, error)
	RecentListings(ctx context.Context, userID string, limit int) ([]marketsync.ListingSnapshot, error)
	RecentTransactions(ctx context.Context, userID string, limit int) ([]marketsync.TransactionSnapshot, error)
}

// assembleUserContext gathers the facts a chat reply is grounded in. Purely
// additive reads: an unknown user or empty history yields fewer facts, not
// an error.
func assembleUserContext(ctx context.Context, store ContextStore, userID string) (UserContext, error) {
	uc := UserContext{UserID: userID}

	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return uc, fmt.Errorf("assembling context: %w", err)
	}
	if user == nil {
		return uc, nil
	}
	uc.KnownUser = true

	if uc.ListingCount, err = store.CountListings(ctx, userID); err != nil {
		return uc, fmt.Errorf("assembling context: %w", err)
	}
	if uc.TransactionCount, err = store.CountTransactions(ctx, userID); err != nil {
		return uc, fmt.Errorf("assembling context: %w", err)
	}

	listings, err := store.RecentListings(ctx, userID, maxRecentListings)
	if err != nil {
		return uc, fmt.Errorf("assembling context: %w", err)
	}
	for _, l := range listings {
		uc.RecentListings = append(uc.RecentListings, summarizeListing(l))
	}

	txs, err := store.RecentTransactions(ctx, userID, maxRecentTransactions)
	if err != nil {
		return uc, fmt.Errorf("assembling context: %w", err)
	}
	for _, tx := range txs {
		uc.RecentTransactions = append(uc.RecentTransactions, summarizeTransaction(tx))
	}

	return uc, nil
}

// summarizeListing reduces a listing snapshot to the one line that goes
// into the prompt.
func summarizeListing(l marketsync.ListingSnapshot) string {
	var payload struct {
		Title     string `json:"title"`
		Commodity string `json:"commodity"`
	}
	json.Unmarshal(l.Payload, &payload)

	label := payload.Title
	if label == "" {
		label = payload.Commodity
	}
	if label == "" {
		label = l.ID
	}
	return fmt.Sprintf("%s (%s)", label, l.Status)
}

// summarizeTransaction reduces a transaction snapshot to one prompt line.
func summarizeTransaction(tx marketsync.TransactionSnapshot) string {
	var payload struct {
		Commodity string  `json:"commodity"`
		Quantity  float64 `json:"quantity"`
		Unit      string  `json:"unit"`
	}
	json.Unmarshal(tx.Payload, &payload)

	label := payload.Commodity
	if label == "" {
		label = tx.ID
	}
	if payload.Quantity != 0 {
		label = fmt.Sprintf("%s, %g %s", label, payload.Quantity, payload.Unit)
	}
	return fmt.Sprintf("%s (%s)", label, tx.Status)
}
