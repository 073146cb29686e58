package memory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxhall/voxhall/pkg/logging"
)

func TestNormalizeRecordsDropsTextlessRecords(t *testing.T) {
	raw := []map[string]any{
		{"id": "m1", "text": "I like chess", "score": 0.95},
		{"id": "m2", "metadata": map[string]any{"username": "alice"}}, // no text at all
		{"id": "m3", "content": "lives in Lisbon"},
		{"id": "m4", "memory": "prefers tea"},
		{"id": "m5", "text": ""},
	}

	records := normalizeRecords(raw, logging.Get())
	if len(records) != 3 {
		t.Fatalf("normalizeRecords() kept %d records, want 3", len(records))
	}
	if records[0].Text != "I like chess" || records[0].Score == nil || *records[0].Score != 0.95 {
		t.Fatalf("first record = %+v, want text+score preserved", records[0])
	}
	if records[1].Text != "lives in Lisbon" {
		t.Fatalf("content fallback not applied: %+v", records[1])
	}
	if records[2].Text != "prefers tea" {
		t.Fatalf("memory fallback not applied: %+v", records[2])
	}
}

func TestSearchRejectsOutOfRangeLimit(t *testing.T) {
	// No server: the limit check must fire before any request is made.
	client := NewClient("http://127.0.0.1:1")

	for _, limit := range []int{0, 21, -3} {
		if _, err := client.Search(context.Background(), "alice", "hobbies", limit); !errors.Is(err, ErrInvalidLimit) {
			t.Fatalf("Search(limit=%d) error = %v, want ErrInvalidLimit", limit, err)
		}
	}
}

func TestGetAllRejectsOutOfRangeLimit(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	for _, limit := range []int{0, 51} {
		if _, err := client.GetAll(context.Background(), "alice", limit); !errors.Is(err, ErrInvalidLimit) {
			t.Fatalf("GetAll(limit=%d) error = %v, want ErrInvalidLimit", limit, err)
		}
	}
}

func TestClientAddAndSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/memories":
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["username"] != "alice" {
				t.Errorf("store username = %v, want alice", req["username"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"message": "Memory stored successfully",
				"data":    map[string]any{"memory_id": "mem_123"},
			})
		case "/api/v1/memories/search":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"memories": []map[string]any{
					{"id": "mem_123", "text": "I like chess", "score": 0.9},
					{"id": "mem_999"}, // malformed, must be dropped
				},
				"count": 2,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)

	id, err := client.Add(context.Background(), "alice", "I like chess", map[string]any{"type": "user_message"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if id != "mem_123" {
		t.Fatalf("Add() id = %q, want mem_123", id)
	}

	records, err := client.Search(context.Background(), "alice", "hobbies", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 1 || records[0].Text != "I like chess" {
		t.Fatalf("Search() = %+v, want one chess record", records)
	}
}

func TestClientAddFailsOnUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	if _, err := client.Add(context.Background(), "alice", "hi", nil); err == nil {
		t.Fatalf("Add() expected error on upstream 500")
	}
}

func TestClientDeleteAllReturnsCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"deleted_count": 4},
		})
	}))
	t.Cleanup(srv.Close)

	count, err := NewClient(srv.URL).DeleteAll(context.Background(), "alice")
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if count != 4 {
		t.Fatalf("DeleteAll() = %d, want 4", count)
	}
}
