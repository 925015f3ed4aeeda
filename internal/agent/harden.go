package agent

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"
)

// Diagnostic messages appended to missingFields. The client shows these
// verbatim, so they double as retry hints.
const (
	msgInvalidJSON     = "AI returned invalid JSON - try again"
	msgPriceIncomplete = "Price suggestion incomplete"
	msgNoDescription   = "Description missing"
	msgShortDesc       = "Description too short"
)

// MinDescriptionLen is the minimum trimmed description length considered
// commercially usable. Shorter output is still returned, but downgraded.
const MinDescriptionLen = 120

// rawSuggestion mirrors the JSON shape the model is asked for, with every
// field loosely typed. The model is untrusted: each field is re-verified
// before it reaches a client.
type rawSuggestion struct {
	Description     json.RawMessage `json:"description"`
	PriceSuggestion json.RawMessage `json:"priceSuggestion"`
	Confidence      json.RawMessage `json:"confidence"`
	MissingFields   json.RawMessage `json:"missingFields"`
}

// defect is one validation finding: which field failed and the diagnostic
// to surface. Confidence downgrade and missingFields are derived from the
// defect list mechanically.
type defect struct {
	field   string
	message string
}

// HardenSuggestion parses the model's raw output and coerces it field by
// field into a schema-valid Suggestion. It is total: whatever the model
// returned, the result has a string description, a well-typed price
// suggestion, a valid confidence value, and a non-nil missingFields list.
// Confidence can only be downgraded here, never raised.
func HardenSuggestion(raw string, fallback PriceSuggestion) Suggestion {
	var parsed rawSuggestion
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Suggestion{
			Description:     "",
			PriceSuggestion: PriceSuggestion{Currency: fallback.Currency, Unit: fallback.Unit},
			Confidence:      ConfidenceLow,
			MissingFields:   []string{msgInvalidJSON},
		}
	}

	out := Suggestion{MissingFields: []string{}}

	// missingFields first: the model's own list is kept only if it is a
	// clean list of strings.
	var missing []string
	if len(parsed.MissingFields) > 0 {
		if err := json.Unmarshal(parsed.MissingFields, &missing); err != nil {
			missing = nil
		}
	}
	for _, m := range missing {
		out.appendMissing(m)
	}

	// Confidence by exact membership; anything else is low.
	var confStr string
	if len(parsed.Confidence) > 0 {
		json.Unmarshal(parsed.Confidence, &confStr)
	}
	out.Confidence = ParseConfidence(confStr)

	var defects []defect

	price, ok := validPrice(parsed.PriceSuggestion)
	if !ok {
		price = PriceSuggestion{Currency: fallback.Currency, Unit: fallback.Unit}
		defects = append(defects, defect{field: "priceSuggestion", message: msgPriceIncomplete})
	}
	out.PriceSuggestion = price

	var desc string
	if !isString(parsed.Description, &desc) {
		desc = ""
		defects = append(defects, defect{field: "description", message: msgNoDescription})
	}
	out.Description = desc

	if utf8.RuneCountInString(strings.TrimSpace(desc)) < MinDescriptionLen {
		defects = append(defects, defect{field: "description", message: msgShortDesc})
	}

	// Any defect forces low and explains itself; appends are idempotent.
	for _, d := range defects {
		out.Confidence = ConfidenceLow
		out.appendMissing(d.message)
	}

	return out
}

// validPrice reports whether the raw priceSuggestion is well-formed: present,
// a finite numeric value, and string currency and unit.
func validPrice(raw json.RawMessage) (PriceSuggestion, bool) {
	if len(raw) == 0 {
		return PriceSuggestion{}, false
	}
	var loose struct {
		Value    json.RawMessage `json:"value"`
		Currency json.RawMessage `json:"currency"`
		Unit     json.RawMessage `json:"unit"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return PriceSuggestion{}, false
	}

	var p PriceSuggestion
	if isNull(loose.Value) || len(loose.Value) == 0 || json.Unmarshal(loose.Value, &p.Value) != nil {
		return PriceSuggestion{}, false
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return PriceSuggestion{}, false
	}
	if !isString(loose.Currency, &p.Currency) {
		return PriceSuggestion{}, false
	}
	if !isString(loose.Unit, &p.Unit) {
		return PriceSuggestion{}, false
	}
	return p, true
}

// isString unmarshals raw into dst and reports whether raw really was a JSON
// string. A JSON null unmarshals into a string without error, so it is
// rejected explicitly.
func isString(raw json.RawMessage, dst *string) bool {
	if len(raw) == 0 || isNull(raw) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// HardenChatReply coerces a raw chat completion into a client-safe reply.
// Chat output is free text, so the only structural check is that something
// usable came back.
func HardenChatReply(raw string) (string, Confidence) {
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", ConfidenceLow
	}
	return reply, ConfidenceMedium
}
