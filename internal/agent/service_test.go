package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prograin/agent-backend/internal/db"
	"github.com/prograin/agent-backend/internal/interactions"
	"github.com/prograin/agent-backend/internal/llm"
	marketsync "github.com/prograin/agent-backend/internal/sync"
)

// fakeProvider returns scripted responses, one per call, then repeats the
// last one. A nil response entry yields an error.
type fakeProvider struct {
	responses []string
	errs      []error
	calls     []llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := len(f.calls)
	f.calls = append(f.calls, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	content := ""
	if len(f.responses) > 0 {
		if i >= len(f.responses) {
			i = len(f.responses) - 1
		}
		content = f.responses[i]
	}
	return &llm.CompletionResponse{Content: content, Model: req.Model}, nil
}

// blockingProvider waits out the caller's context, simulating a hung upstream.
type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// failingRecorder always refuses the insert.
type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, in interactions.Interaction) (string, error) {
	return "", errors.New("disk full")
}

func setupStores(t *testing.T) (*marketsync.Store, *interactions.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return marketsync.NewStore(database), interactions.NewStore(database)
}

func newTestService(t *testing.T, provider llm.Provider) (*Service, *marketsync.Store, *interactions.Store) {
	t.Helper()
	store, recorder := setupStores(t)
	svc := NewService(Options{
		Provider:        provider,
		Model:           "test-model",
		Store:           store,
		Recorder:        recorder,
		DefaultLanguage: "pl",
		ProviderTimeout: time.Second,
	})
	return svc, store, recorder
}

func seedUser(t *testing.T, store *marketsync.Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.UpsertUser(ctx, "u-1", json.RawMessage(`{"id":"u-1","name":"Jan"}`), "evt-1"); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	err := store.UpsertListing(ctx, marketsync.ListingSnapshot{
		ID: "l-1", UserID: "u-1",
		Payload: json.RawMessage(`{"id":"l-1","title":"Spring wheat","commodity":"wheat"}`),
	})
	if err != nil {
		t.Fatalf("seeding listing: %v", err)
	}
	err = store.UpsertTransaction(ctx, marketsync.TransactionSnapshot{
		ID: "t-1", UserID: "u-1", Status: "settled",
		Payload: json.RawMessage(`{"id":"t-1","commodity":"rye","quantity":20,"unit":"t"}`),
	})
	if err != nil {
		t.Fatalf("seeding transaction: %v", err)
	}
}

const validListingJSON = `{"description":"Quality spring wheat from the Lubelskie region, harvested this season and stored in dry silo conditions. Suitable for milling and feed production alike. Protein content 13 percent, moisture 12 percent. Pickup or regional delivery available on short notice.","priceSuggestion":{"value":950,"currency":"PLN","unit":"t"},"confidence":"high","missingFields":[]}`

func TestChatGroundsReplyInAccountData(t *testing.T) {
	provider := &fakeProvider{responses: []string{"You have 1 active listing."}}
	svc, store, recorder := newTestService(t, provider)
	seedUser(t, store)

	reply, err := svc.Chat(context.Background(), "u-1", "How many listings do I have?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if reply.Response != "You have 1 active listing." {
		t.Errorf("unexpected response %q", reply.Response)
	}
	if reply.Confidence != ConfidenceMedium {
		t.Errorf("expected medium confidence, got %s", reply.Confidence)
	}
	if reply.Cards == nil || reply.Suggestions == nil {
		t.Error("cards and suggestions must be non-nil")
	}

	if len(provider.calls) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(provider.calls))
	}
	call := provider.calls[0]
	if call.Temperature != chatTemperature {
		t.Errorf("expected chat temperature %v, got %v", chatTemperature, call.Temperature)
	}
	if call.JSONMode {
		t.Error("chat must not request JSON mode")
	}
	if !strings.Contains(call.Messages[1].Content, "active listings: 1") {
		t.Errorf("prompt missing assembled context:\n%s", call.Messages[1].Content)
	}
	if !strings.Contains(call.Messages[1].Content, "Spring wheat (active)") {
		t.Errorf("prompt missing recent listing summary:\n%s", call.Messages[1].Content)
	}
	if !strings.Contains(call.Messages[1].Content, "rye, 20 t (settled)") {
		t.Errorf("prompt missing recent transaction summary:\n%s", call.Messages[1].Content)
	}

	// Interaction recorded.
	recorded, err := recorder.Query(context.Background(), interactions.QueryFilter{Task: interactions.TaskChat})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recorded) != 1 {
		t.Errorf("expected 1 recorded interaction, got %d", len(recorded))
	}
}

func TestChatUnknownUser(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Hello!"}}
	svc, _, _ := newTestService(t, provider)

	reply, err := svc.Chat(context.Background(), "ghost", "hi")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Response != "Hello!" {
		t.Errorf("unexpected response %q", reply.Response)
	}
	if !strings.Contains(provider.calls[0].Messages[1].Content, "unknown user") {
		t.Error("prompt should mark the user as unknown")
	}
}

func TestChatProviderFailure(t *testing.T) {
	provider := &fakeProvider{errs: []error{errors.New("boom"), errors.New("boom")}}
	svc, _, _ := newTestService(t, provider)

	_, err := svc.Chat(context.Background(), "u-1", "hi")
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestInvokeRetriesOnce(t *testing.T) {
	provider := &fakeProvider{
		errs:      []error{errors.New("transient"), nil},
		responses: []string{"", "recovered"},
	}
	svc, _, _ := newTestService(t, provider)

	reply, err := svc.Chat(context.Background(), "u-1", "hi")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if reply.Response != "recovered" {
		t.Errorf("unexpected response %q", reply.Response)
	}
	if len(provider.calls) != 2 {
		t.Errorf("expected 2 provider calls, got %d", len(provider.calls))
	}
}

func TestInvokeTimesOut(t *testing.T) {
	store, recorder := setupStores(t)
	svc := NewService(Options{
		Provider:        blockingProvider{},
		Model:           "test-model",
		Store:           store,
		Recorder:        recorder,
		ProviderTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	_, err := svc.Chat(context.Background(), "u-1", "hi")
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("expected ErrGeneration on timeout, got %v", err)
	}
	// Two attempts at 20ms each, with headroom.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestSuggestListingHappyPath(t *testing.T) {
	provider := &fakeProvider{responses: []string{validListingJSON}}
	svc, _, recorder := newTestService(t, provider)

	result, err := svc.SuggestListing(context.Background(), ListingFacts{
		Category:  "grain",
		Commodity: "wheat",
		Region:    "Lubelskie",
		Quantity:  40,
		Notes:     "sprzedam pszenicę jarą, bardzo dobra jakość, odbiór własny",
	})
	if err != nil {
		t.Fatalf("SuggestListing: %v", err)
	}

	if result.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence, got %s", result.Confidence)
	}
	if result.PriceSuggestion.Value != 950 {
		t.Errorf("unexpected price %+v", result.PriceSuggestion)
	}
	if result.InteractionID == "" {
		t.Error("expected an interaction id")
	}

	call := provider.calls[0]
	if !call.JSONMode {
		t.Error("listing suggestion must request JSON mode")
	}
	if call.Temperature != listingTemperature {
		t.Errorf("expected listing temperature %v, got %v", listingTemperature, call.Temperature)
	}
	// Notes were long enough, so the rewrite prompt was compiled.
	if !strings.Contains(call.Messages[1].Content, "--- SELLER NOTES START ---") {
		t.Error("expected rewrite mode with delimited seller notes")
	}
	// Omitted currency/unit fall back to defaults inside the prompt.
	if !strings.Contains(call.Messages[1].Content, "- currency: PLN") {
		t.Errorf("prompt missing default currency:\n%s", call.Messages[1].Content)
	}

	recorded, err := recorder.GetByID(context.Background(), result.InteractionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if recorded == nil || recorded.Task != interactions.TaskListingSuggest {
		t.Errorf("interaction not recorded properly: %+v", recorded)
	}
}

func TestSuggestListingGarbageOutputIsAbsorbed(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Sure! Here is your listing..."}}
	svc, _, _ := newTestService(t, provider)

	result, err := svc.SuggestListing(context.Background(), ListingFacts{
		Category:  "grain",
		Commodity: "wheat",
		Currency:  "EUR",
		Unit:      "kg",
	})
	if err != nil {
		t.Fatalf("garbage output must not be an error, got %v", err)
	}
	if result.Confidence != ConfidenceLow {
		t.Errorf("expected low confidence, got %s", result.Confidence)
	}
	if result.PriceSuggestion.Currency != "EUR" || result.PriceSuggestion.Unit != "kg" {
		t.Errorf("fallback price not seeded from request: %+v", result.PriceSuggestion)
	}
	if !contains(result.MissingFields, "AI returned invalid JSON - try again") {
		t.Errorf("expected invalid-JSON diagnostic, got %v", result.MissingFields)
	}
}

func TestSuggestListingRecordingFailureIsBestEffort(t *testing.T) {
	provider := &fakeProvider{responses: []string{validListingJSON}}
	store, _ := setupStores(t)
	svc := NewService(Options{
		Provider: provider,
		Model:    "test-model",
		Store:    store,
		Recorder: failingRecorder{},
	})

	result, err := svc.SuggestListing(context.Background(), ListingFacts{
		Category:  "grain",
		Commodity: "wheat",
	})
	if err != nil {
		t.Fatalf("recording failure must not fail the request: %v", err)
	}
	if result.InteractionID != "" {
		t.Errorf("expected empty interaction id, got %q", result.InteractionID)
	}
	if result.Confidence != ConfidenceHigh {
		t.Errorf("generation result should be unaffected, got %s", result.Confidence)
	}
}

// --- handler tests ---

func setupRouter(t *testing.T, provider llm.Provider) chi.Router {
	t.Helper()
	svc, _, _ := newTestService(t, provider)
	r := chi.NewRouter()
	RegisterRoutes(r, svc)
	return r
}

func TestUserChatHandlerValidation(t *testing.T) {
	r := setupRouter(t, &fakeProvider{responses: []string{"hi"}})

	for _, body := range []string{
		`{"message":"hi"}`,
		`{"userId":"u-1"}`,
		`garbage`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/agent/user-chat", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestUserChatHandlerSuccess(t *testing.T) {
	r := setupRouter(t, &fakeProvider{responses: []string{"All good."}})

	req := httptest.NewRequest(http.MethodPost, "/agent/user-chat", strings.NewReader(`{"userId":"u-1","message":"status?"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var reply ChatReply
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.Response != "All good." {
		t.Errorf("unexpected response %q", reply.Response)
	}
	if reply.Cards == nil {
		t.Error("cards must serialize as an array, not null")
	}
}

func TestUserChatHandlerOpaqueFailure(t *testing.T) {
	r := setupRouter(t, &fakeProvider{errs: []error{errors.New("api key leaked detail"), errors.New("api key leaked detail")}})

	req := httptest.NewRequest(http.MethodPost, "/agent/user-chat", strings.NewReader(`{"userId":"u-1","message":"hi"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "api key") {
		t.Error("provider error detail leaked to the client")
	}
	if !strings.Contains(w.Body.String(), "Assistant failed") {
		t.Errorf("expected opaque error, got %s", w.Body.String())
	}
}

func TestListingSuggestHandlerValidation(t *testing.T) {
	r := setupRouter(t, &fakeProvider{responses: []string{validListingJSON}})

	for _, body := range []string{
		`{"commodity":"wheat"}`,
		`{"category":"grain"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/agent/listing-suggest", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestListingSuggestHandlerSuccess(t *testing.T) {
	r := setupRouter(t, &fakeProvider{responses: []string{validListingJSON}})

	body := `{"category":"grain","commodity":"wheat","region":"Lubelskie","quantity":40,"unit":"t","language":"pl"}`
	req := httptest.NewRequest(http.MethodPost, "/agent/listing-suggest", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp listingSuggestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success:true")
	}
	if resp.InteractionID == "" {
		t.Error("expected an interactionId")
	}
	if resp.Confidence != ConfidenceHigh {
		t.Errorf("expected high confidence, got %s", resp.Confidence)
	}
	if resp.MissingFields == nil {
		t.Error("missingFields must serialize as an array, not null")
	}
}
