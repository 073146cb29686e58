package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeProvider serves the management RPC surface from an in-memory room map.
func fakeProvider(t *testing.T) (*httptest.Server, map[string]rawRoom) {
	t.Helper()
	roomsByName := map[string]rawRoom{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch method {
		case "CreateRoom":
			name, _ := body["name"].(string)
			meta, _ := body["metadata"].(string)
			room := rawRoom{Name: name, SID: "RM_" + name, Metadata: meta}
			roomsByName[name] = room
			json.NewEncoder(w).Encode(room)
		case "ListRooms":
			var out struct {
				Rooms []rawRoom `json:"rooms"`
			}
			if names, ok := body["names"].([]any); ok {
				for _, n := range names {
					if room, ok := roomsByName[n.(string)]; ok {
						out.Rooms = append(out.Rooms, room)
					}
				}
			} else {
				for _, room := range roomsByName {
					out.Rooms = append(out.Rooms, room)
				}
			}
			json.NewEncoder(w).Encode(out)
		case "DeleteRoom":
			name, _ := body["room"].(string)
			delete(roomsByName, name)
			w.Write([]byte("{}"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, roomsByName
}

func TestClientCreateAndGetRoom(t *testing.T) {
	srv, _ := fakeProvider(t)
	client := NewClient(srv.URL, "devkey", "devsecret")

	info, err := client.CreateRoom(context.Background(), "lobby", 10, 300, map[string]any{"topic": "general"})
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if info.Name != "lobby" || info.SID != "RM_lobby" {
		t.Fatalf("CreateRoom() = %+v, want name lobby sid RM_lobby", info)
	}
	if got := info.Metadata["topic"]; got != "general" {
		t.Fatalf("metadata topic = %v, want general", got)
	}

	got, err := client.GetRoom(context.Background(), "lobby")
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if got.Name != "lobby" {
		t.Fatalf("GetRoom().Name = %q, want lobby", got.Name)
	}
}

func TestClientGetRoomNotFound(t *testing.T) {
	srv, _ := fakeProvider(t)
	client := NewClient(srv.URL, "devkey", "devsecret")

	_, err := client.GetRoom(context.Background(), "nonexistent")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("GetRoom() error = %v, want ErrRoomNotFound", err)
	}
}

func TestClientDeleteRoom(t *testing.T) {
	srv, roomsByName := fakeProvider(t)
	client := NewClient(srv.URL, "devkey", "devsecret")

	if _, err := client.CreateRoom(context.Background(), "lobby", 10, 300, nil); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if err := client.DeleteRoom(context.Background(), "lobby"); err != nil {
		t.Fatalf("DeleteRoom() error = %v", err)
	}
	if _, ok := roomsByName["lobby"]; ok {
		t.Fatalf("room still present after DeleteRoom")
	}
}

func TestClientUpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "devkey", "devsecret")
	if _, err := client.ListRooms(context.Background()); err == nil {
		t.Fatalf("ListRooms() expected error on upstream 500")
	}
}
