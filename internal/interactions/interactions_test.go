package interactions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prograin/agent-backend/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestRecordAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, Interaction{
		UserID: "u-1",
		Task:   TaskListingSuggest,
		Input:  json.RawMessage(`{"commodity":"wheat"}`),
		Output: json.RawMessage(`{"description":"...","confidence":"medium"}`),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty interaction id")
	}

	in, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if in == nil {
		t.Fatal("expected interaction")
	}
	if in.Task != TaskListingSuggest {
		t.Errorf("expected task listing-suggest, got %s", in.Task)
	}
	if in.UserID != "u-1" {
		t.Errorf("expected user u-1, got %q", in.UserID)
	}
	if in.Actor != "user" {
		t.Errorf("expected default actor 'user', got %q", in.Actor)
	}
}

func TestRecordWithoutUser(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.Record(context.Background(), Interaction{
		Task:   TaskChat,
		Input:  json.RawMessage(`{"message":"hi"}`),
		Output: json.RawMessage(`{"response":"hello"}`),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	in, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if in.UserID != "" {
		t.Errorf("expected empty user id, got %q", in.UserID)
	}
}

func TestQueryFiltersAndOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, task := range []Task{TaskChat, TaskListingSuggest, TaskListingSuggest} {
		_, err := store.Record(ctx, Interaction{
			UserID:    "u-1",
			Task:      task,
			Input:     json.RawMessage(`{}`),
			Output:    json.RawMessage(`{}`),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	suggestions, err := store.Query(ctx, QueryFilter{Task: TaskListingSuggest})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 listing-suggest interactions, got %d", len(suggestions))
	}
	if suggestions[0].CreatedAt.Before(suggestions[1].CreatedAt) {
		t.Error("expected newest-first ordering")
	}

	none, err := store.Query(ctx, QueryFilter{UserID: "someone-else"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no interactions, got %d", len(none))
	}
}

func TestRoutes(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	id, err := store.Record(context.Background(), Interaction{
		Task:   TaskChat,
		Input:  json.RawMessage(`{}`),
		Output: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/interactions?task=user-chat", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []Interaction
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 interaction, got %d", len(list))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/interactions/"+id, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/interactions/nope", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
