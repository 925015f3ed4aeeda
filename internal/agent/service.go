package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/prograin/agent-backend/internal/interactions"
	"github.com/prograin/agent-backend/internal/llm"
)

// Default fallbacks when a listing request does not name a currency or unit.
const (
	defaultCurrency = "PLN"
	defaultUnit     = "t"
)

const defaultProviderTimeout = 30 * time.Second

// InteractionRecorder is the sink for the audit trail. Recording is
// best-effort: a failure never invalidates a finished generation.
type InteractionRecorder interface {
	Record(ctx context.Context, in interactions.Interaction) (string, error)
}

// Options configures a Service. Everything is passed in explicitly so tests
// can substitute a fake provider, store, or recorder.
type Options struct {
	Provider        llm.Provider
	Model           string
	Store           ContextStore
	Recorder        InteractionRecorder
	DefaultLanguage string
	ProviderTimeout time.Duration
}

// Service runs the generation pipeline shared by both tasks:
// compile a prompt, invoke the provider, harden the output, record the
// interaction.
type Service struct {
	provider llm.Provider
	model    string
	store    ContextStore
	recorder InteractionRecorder
	language string
	timeout  time.Duration
}

// NewService creates the generation service.
func NewService(opts Options) *Service {
	timeout := opts.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	language := opts.DefaultLanguage
	if language == "" {
		language = "pl"
	}
	return &Service{
		provider: opts.Provider,
		model:    opts.Model,
		store:    opts.Store,
		recorder: opts.Recorder,
		language: language,
		timeout:  timeout,
	}
}

// ChatReply is the client-facing result of a chat request.
type ChatReply struct {
	Response    string     `json:"response"`
	Confidence  Confidence `json:"confidence"`
	Cards       []any      `json:"cards"`
	Suggestions []string   `json:"suggestions"`
}

// chatSuggestions are the static follow-up prompts offered with every reply.
var chatSuggestions = []string{
	"Show my active listings",
	"How do I add a new listing?",
	"What happens after a buyer accepts?",
}

// Chat answers a single user message grounded in the user's account data.
func (s *Service) Chat(ctx context.Context, userID, message string) (ChatReply, error) {
	userCtx, err := assembleUserContext(ctx, s.store, userID)
	if err != nil {
		return ChatReply{}, err
	}

	pair := compileChatPrompt(userCtx, message)
	raw, err := s.invoke(ctx, pair, chatTemperature, false)
	if err != nil {
		return ChatReply{}, err
	}

	response, confidence := HardenChatReply(raw)
	reply := ChatReply{
		Response:    response,
		Confidence:  confidence,
		Cards:       []any{},
		Suggestions: chatSuggestions,
	}

	s.record(ctx, interactions.TaskChat, userID,
		map[string]any{"userId": userID, "message": message}, reply)

	return reply, nil
}

// ListingResult is a hardened suggestion plus the id of its audit record,
// empty when recording failed or was skipped.
type ListingResult struct {
	Suggestion
	InteractionID string
}

// SuggestListing generates listing copy and a price suggestion for the
// given fact set. The returned Suggestion is always schema-valid; model
// defects surface as low confidence and missingFields entries, never as an
// error. An error here means the provider itself failed.
func (s *Service) SuggestListing(ctx context.Context, facts ListingFacts) (ListingResult, error) {
	if facts.Currency == "" {
		facts.Currency = defaultCurrency
	}
	if facts.Unit == "" {
		facts.Unit = defaultUnit
	}
	if facts.Language == "" {
		facts.Language = s.language
	}

	mode := SelectMode(facts.Notes)
	pair := compileListingPrompt(mode, facts)

	raw, err := s.invoke(ctx, pair, listingTemperature, true)
	if err != nil {
		return ListingResult{}, err
	}

	suggestion := HardenSuggestion(raw, PriceSuggestion{
		Currency: facts.Currency,
		Unit:     facts.Unit,
	})

	id := s.record(ctx, interactions.TaskListingSuggest, "", facts, suggestion)

	return ListingResult{Suggestion: suggestion, InteractionID: id}, nil
}

// invoke calls the provider with a per-call timeout and one retry on
// failure. Every failure path collapses into ErrGeneration; provider detail
// goes to the log only.
func (s *Service) invoke(ctx context.Context, pair promptPair, temperature float64, jsonMode bool) (string, error) {
	req := llm.CompletionRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: pair.System},
			{Role: llm.RoleUser, Content: pair.User},
		},
		Temperature: temperature,
		JSONMode:    jsonMode,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		resp, err := s.provider.Complete(callCtx, req)
		cancel()
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("%w: %v", ErrGeneration, lastErr)
}

// record appends an interaction and returns its id, or "" when the recorder
// is absent or the insert failed. A generation that reached this point has
// already succeeded; the audit trail must not undo that.
func (s *Service) record(ctx context.Context, task interactions.Task, userID string, input, output any) string {
	if s.recorder == nil {
		return ""
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		log.Printf("agent: marshalling %s input: %v", task, err)
		return ""
	}
	outputJSON, err := json.Marshal(output)
	if err != nil {
		log.Printf("agent: marshalling %s output: %v", task, err)
		return ""
	}

	id, err := s.recorder.Record(ctx, interactions.Interaction{
		UserID: userID,
		Actor:  "user",
		Task:   task,
		Input:  inputJSON,
		Output: outputJSON,
	})
	if err != nil {
		log.Printf("agent: recording %s interaction: %v", task, err)
		return ""
	}
	return id
}
