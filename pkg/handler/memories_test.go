package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/voxhall/voxhall/pkg/memstore"
	"github.com/voxhall/voxhall/pkg/models"
)

// fakeIndex records store calls and serves scripted results.
type fakeIndex struct {
	records     []memstore.Record
	failWith    error
	healthy     bool
	searchLimit int
	deleted     int
}

func (f *fakeIndex) Add(_ context.Context, username, text string, _ map[string]any) (*memstore.Record, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &memstore.Record{ID: "mem-1", Username: username, Text: text}, nil
}

func (f *fakeIndex) Search(_ context.Context, _, _ string, limit int) ([]memstore.SearchResult, error) {
	f.searchLimit = limit
	if f.failWith != nil {
		return nil, f.failWith
	}
	results := make([]memstore.SearchResult, len(f.records))
	for i, r := range f.records {
		results[i] = memstore.SearchResult{Record: r, Score: 0.9}
	}
	return results, nil
}

func (f *fakeIndex) GetAll(context.Context, string, int) ([]memstore.Record, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.records, nil
}

func (f *fakeIndex) DeleteAll(context.Context, string) (int, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	return f.deleted, nil
}

func (f *fakeIndex) Healthy(context.Context) bool { return f.healthy }

func intPtr(n int) *int { return &n }

func newMemorydRouter(index MemoryIndex, debug bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewMemoryHandler(index, debug)
	h.RegisterRoutes(r.Group("/api/v1"))
	r.GET("/", h.Root)
	return r
}

func TestStoreMemory(t *testing.T) {
	router := newMemorydRouter(&fakeIndex{healthy: true}, false)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/memories",
		models.MemoryStoreRequest{Username: "alice", Message: "I like chess"})
	if w.Code != http.StatusOK {
		t.Fatalf("store = %d: %v", w.Code, resp)
	}
	data := resp["data"].(map[string]any)
	if data["memory_id"] != "mem-1" {
		t.Fatalf("store data = %v", data)
	}
}

func TestStoreMemoryValidation(t *testing.T) {
	router := newMemorydRouter(&fakeIndex{}, false)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/memories",
		models.MemoryStoreRequest{Message: "hi"})
	if w.Code != http.StatusBadRequest || resp["error_code"] != CodeUsernameRequired {
		t.Fatalf("missing username = %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, router, http.MethodPost, "/api/v1/memories",
		models.MemoryStoreRequest{Username: "alice", Message: "   "})
	if w.Code != http.StatusBadRequest || resp["error_code"] != CodeMessageRequired {
		t.Fatalf("blank message = %d %v", w.Code, resp)
	}
}

func TestSearchMemories(t *testing.T) {
	index := &fakeIndex{records: []memstore.Record{{ID: "m1", Text: "I like chess"}}}
	router := newMemorydRouter(index, false)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/memories/search",
		models.MemorySearchRequest{Username: "alice", Query: "hobbies", Limit: intPtr(5)})
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d: %v", w.Code, resp)
	}
	if resp["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", resp["count"])
	}
	memories := resp["memories"].([]any)
	first := memories[0].(map[string]any)
	if first["text"] != "I like chess" || first["score"] == nil {
		t.Fatalf("search result = %v", first)
	}
}

func TestSearchLimitRejectedBeforeStore(t *testing.T) {
	index := &fakeIndex{searchLimit: -1}
	router := newMemorydRouter(index, false)

	for _, limit := range []int{0, -1, 21} {
		w, resp := doJSON(t, router, http.MethodPost, "/api/v1/memories/search",
			models.MemorySearchRequest{Username: "alice", Query: "q", Limit: intPtr(limit)})
		if w.Code != http.StatusBadRequest || resp["error_code"] != CodeValidationError {
			t.Fatalf("limit %d = %d %v, want 400", limit, w.Code, resp)
		}
	}
	if index.searchLimit != -1 {
		t.Fatalf("store was called with invalid limit %d", index.searchLimit)
	}
}

func TestSearchDefaultLimit(t *testing.T) {
	index := &fakeIndex{}
	router := newMemorydRouter(index, false)

	doJSON(t, router, http.MethodPost, "/api/v1/memories/search",
		models.MemorySearchRequest{Username: "alice", Query: "q"})
	if index.searchLimit != defaultSearchLimit {
		t.Fatalf("default limit = %d, want %d", index.searchLimit, defaultSearchLimit)
	}
}

func TestGetMemories(t *testing.T) {
	index := &fakeIndex{records: []memstore.Record{{ID: "m1", Text: "a"}, {ID: "m2", Text: "b"}}}
	router := newMemorydRouter(index, false)

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/memories/alice?limit=10", nil)
	if w.Code != http.StatusOK || resp["count"] != float64(2) {
		t.Fatalf("get = %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/memories/alice?limit=51", nil)
	if w.Code != http.StatusBadRequest || resp["error_code"] != CodeValidationError {
		t.Fatalf("limit 51 = %d %v, want 400", w.Code, resp)
	}
}

func TestDeleteMemories(t *testing.T) {
	router := newMemorydRouter(&fakeIndex{deleted: 3}, false)

	w, resp := doJSON(t, router, http.MethodDelete, "/api/v1/memories/alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d: %v", w.Code, resp)
	}
	data := resp["data"].(map[string]any)
	if data["deleted_count"] != float64(3) {
		t.Fatalf("deleted_count = %v, want 3", data["deleted_count"])
	}
}

func TestErrorDetailsOnlyInDebug(t *testing.T) {
	index := &fakeIndex{failWith: errors.New("disk exploded")}

	w, resp := doJSON(t, newMemorydRouter(index, false), http.MethodPost, "/api/v1/memories",
		models.MemoryStoreRequest{Username: "alice", Message: "hi"})
	if w.Code != http.StatusInternalServerError || resp["error_code"] != CodeMemoryStoreFailed {
		t.Fatalf("store failure = %d %v", w.Code, resp)
	}
	if _, leaked := resp["details"]; leaked {
		t.Fatalf("raw error leaked outside debug mode: %v", resp)
	}

	_, resp = doJSON(t, newMemorydRouter(index, true), http.MethodPost, "/api/v1/memories",
		models.MemoryStoreRequest{Username: "alice", Message: "hi"})
	if resp["details"] != "disk exploded" {
		t.Fatalf("debug details = %v, want raw error", resp["details"])
	}
}

func TestMemoryHealth(t *testing.T) {
	w, resp := doJSON(t, newMemorydRouter(&fakeIndex{healthy: true}, false),
		http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK || resp["status"] != "healthy" {
		t.Fatalf("health = %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, newMemorydRouter(&fakeIndex{healthy: false}, false),
		http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusServiceUnavailable || resp["status"] != "unhealthy" {
		t.Fatalf("unhealthy = %d %v, want 503", w.Code, resp)
	}
}

func TestRootDescriptor(t *testing.T) {
	w, resp := doJSON(t, newMemorydRouter(&fakeIndex{}, false), http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || resp["service"] != "memoryd" {
		t.Fatalf("root = %d %v", w.Code, resp)
	}
}
