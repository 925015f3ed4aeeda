package agent

import "errors"

// ErrGeneration is returned when the LLM provider is unreachable, errors,
// or times out. Handlers map it to an opaque 500; provider detail stays in
// the server log.
var ErrGeneration = errors.New("generation failed")

// Mode decides how listing copy is produced: composed purely from supplied
// facts, or by rewriting the seller's own notes first.
type Mode int

const (
	ModeCreate Mode = iota
	ModeRewrite
)

func (m Mode) String() string {
	if m == ModeRewrite {
		return "rewrite"
	}
	return "create"
}

// Confidence is a coarse quality signal attached to generated output. It is
// never taken from the model at face value: hardening recomputes it downward
// whenever a structural or quality defect is found.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence maps a raw string to a Confidence by exact membership.
// Anything else yields low — no partial matching, no case folding.
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return Confidence(s)
	default:
		return ConfidenceLow
	}
}

// PriceSuggestion is the structured price part of a listing suggestion.
type PriceSuggestion struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Unit     string  `json:"unit"`
}

// Suggestion is the validated output contract for listing generation. After
// hardening, every field is present and type-correct regardless of what the
// model returned.
type Suggestion struct {
	Description     string          `json:"description"`
	PriceSuggestion PriceSuggestion `json:"priceSuggestion"`
	Confidence      Confidence      `json:"confidence"`
	MissingFields   []string        `json:"missingFields"`
}

// appendMissing adds a diagnostic message to MissingFields unless an
// identical message is already present. Insertion order is preserved; it
// reflects detection order.
func (s *Suggestion) appendMissing(msg string) {
	for _, m := range s.MissingFields {
		if m == msg {
			return
		}
	}
	s.MissingFields = append(s.MissingFields, msg)
}

// ListingFacts is the immutable fact set supplied with a listing-suggest
// request. It is never persisted as-is except inside an interaction record.
type ListingFacts struct {
	Category  string            `json:"category"`
	Commodity string            `json:"commodity"`
	Region    string            `json:"region,omitempty"`
	Currency  string            `json:"currency,omitempty"`
	Quantity  float64           `json:"quantity,omitempty"`
	Unit      string            `json:"unit,omitempty"`
	Language  string            `json:"language,omitempty"`
	Specs     map[string]string `json:"specs,omitempty"`
	Notes     string            `json:"notes,omitempty"`
}

// UserContext holds the aggregated facts assembled for a chat request.
type UserContext struct {
	UserID             string
	KnownUser          bool
	ListingCount       int
	TransactionCount   int
	RecentListings     []string
	RecentTransactions []string
}
