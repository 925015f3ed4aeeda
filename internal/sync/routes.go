package sync

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the marketplace ingestion endpoints.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/sync", func(r chi.Router) {
		r.Post("/user", handleSyncUser(store))
		r.Post("/listing", handleSyncListing(store))
		r.Post("/transaction", handleSyncTransaction(store))
	})
}

func handleSyncUser(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			EventID string          `json:"eventId"`
			User    json.RawMessage `json:"user"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		var user struct {
			ID string `json:"id"`
		}
		if len(raw.User) > 0 {
			if err := json.Unmarshal(raw.User, &user); err != nil {
				http.Error(w, `{"error":"invalid user payload"}`, http.StatusBadRequest)
				return
			}
		}
		if raw.EventID == "" || user.ID == "" {
			http.Error(w, `{"error":"eventId and user.id are required"}`, http.StatusBadRequest)
			return
		}

		applied, err := store.ApplyUserEvent(r.Context(), raw.EventID, user.ID, raw.User)
		if err != nil {
			log.Printf("sync: applying event %s: %v", raw.EventID, err)
			http.Error(w, `{"error":"sync failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !applied {
			json.NewEncoder(w).Encode(map[string]bool{"skipped": true})
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}
}

func handleSyncListing(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			EventID string          `json:"eventId"`
			Listing json.RawMessage `json:"listing"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		var listing struct {
			ID     string `json:"id"`
			UserID string `json:"userId"`
			Status string `json:"status"`
		}
		if len(raw.Listing) > 0 {
			if err := json.Unmarshal(raw.Listing, &listing); err != nil {
				http.Error(w, `{"error":"invalid listing payload"}`, http.StatusBadRequest)
				return
			}
		}
		if raw.EventID == "" || listing.ID == "" {
			http.Error(w, `{"error":"eventId and listing.id are required"}`, http.StatusBadRequest)
			return
		}

		applied, err := store.ApplyListingEvent(r.Context(), raw.EventID, ListingSnapshot{
			ID:      listing.ID,
			UserID:  listing.UserID,
			Payload: raw.Listing,
			Status:  listing.Status,
		})
		if err != nil {
			log.Printf("sync: applying event %s: %v", raw.EventID, err)
			http.Error(w, `{"error":"sync failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !applied {
			json.NewEncoder(w).Encode(map[string]bool{"skipped": true})
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}
}

func handleSyncTransaction(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			EventID     string          `json:"eventId"`
			Transaction json.RawMessage `json:"transaction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		var tx struct {
			ID     string `json:"id"`
			UserID string `json:"userId"`
			Status string `json:"status"`
		}
		if len(raw.Transaction) > 0 {
			if err := json.Unmarshal(raw.Transaction, &tx); err != nil {
				http.Error(w, `{"error":"invalid transaction payload"}`, http.StatusBadRequest)
				return
			}
		}
		if raw.EventID == "" || tx.ID == "" {
			http.Error(w, `{"error":"eventId and transaction.id are required"}`, http.StatusBadRequest)
			return
		}

		applied, err := store.ApplyTransactionEvent(r.Context(), raw.EventID, TransactionSnapshot{
			ID:      tx.ID,
			UserID:  tx.UserID,
			Payload: raw.Transaction,
			Status:  tx.Status,
		})
		if err != nil {
			log.Printf("sync: applying event %s: %v", raw.EventID, err)
			http.Error(w, `{"error":"sync failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !applied {
			json.NewEncoder(w).Encode(map[string]bool{"skipped": true})
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}
}
