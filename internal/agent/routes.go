package agent

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the generation endpoints.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/agent", func(r chi.Router) {
		r.Post("/user-chat", handleUserChat(svc))
		r.Post("/listing-suggest", handleListingSuggest(svc))
	})
}

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func handleUserChat(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.UserID == "" || req.Message == "" {
			http.Error(w, `{"error":"userId and message are required"}`, http.StatusBadRequest)
			return
		}

		reply, err := svc.Chat(r.Context(), req.UserID, req.Message)
		if err != nil {
			// Provider/store detail stays server-side.
			log.Printf("agent: chat for %s: %v", req.UserID, err)
			http.Error(w, `{"error":"Assistant failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}
}

type listingSuggestRequest struct {
	Category  string            `json:"category"`
	Commodity string            `json:"commodity"`
	Region    string            `json:"region"`
	Currency  string            `json:"currency"`
	Quantity  float64           `json:"quantity"`
	Unit      string            `json:"unit"`
	Language  string            `json:"language"`
	Specs     map[string]string `json:"specs"`
	Notes     string            `json:"notes"`
}

type listingSuggestResponse struct {
	Success         bool            `json:"success"`
	InteractionID   string          `json:"interactionId,omitempty"`
	Description     string          `json:"description"`
	PriceSuggestion PriceSuggestion `json:"priceSuggestion"`
	Confidence      Confidence      `json:"confidence"`
	MissingFields   []string        `json:"missingFields"`
}

func handleListingSuggest(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req listingSuggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Category == "" || req.Commodity == "" {
			http.Error(w, `{"error":"category and commodity are required"}`, http.StatusBadRequest)
			return
		}

		result, err := svc.SuggestListing(r.Context(), ListingFacts{
			Category:  req.Category,
			Commodity: req.Commodity,
			Region:    req.Region,
			Currency:  req.Currency,
			Quantity:  req.Quantity,
			Unit:      req.Unit,
			Language:  req.Language,
			Specs:     req.Specs,
			Notes:     req.Notes,
		})
		if err != nil {
			log.Printf("agent: listing suggest: %v", err)
			http.Error(w, `{"error":"Listing suggestion failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(listingSuggestResponse{
			Success:         true,
			InteractionID:   result.InteractionID,
			Description:     result.Description,
			PriceSuggestion: result.PriceSuggestion,
			Confidence:      result.Confidence,
			MissingFields:   result.MissingFields,
		})
	}
}
