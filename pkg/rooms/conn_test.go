package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeRTC upgrades /rtc, sends the connected envelope, then replays the
// given envelopes and echoes published data back into a channel.
func fakeRTC(t *testing.T, replay []wireMessage) (*httptest.Server, chan wireMessage) {
	t.Helper()
	published := make(chan wireMessage, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rtc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("access_token") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.WriteJSON(wireMessage{Event: "connected", SID: "PA_agent"})
		for _, msg := range replay {
			ws.WriteJSON(msg)
		}
		for {
			var msg wireMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			published <- msg
		}
	}))
	t.Cleanup(srv.Close)
	return srv, published
}

func TestWSDialerDeliversTypedEvents(t *testing.T) {
	srv, _ := fakeRTC(t, []wireMessage{
		{Event: "participant_joined", Identity: "alice", SID: "PA_alice"},
		{Event: "data", Identity: "alice", Data: json.RawMessage(`{"message":"hi"}`)},
		{Event: "participant_left", Identity: "alice"},
	})

	conn, err := NewWSDialer(srv.URL).Dial(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if got := conn.LocalSID(); got != "PA_agent" {
		t.Fatalf("LocalSID() = %q, want PA_agent", got)
	}
	if got := conn.State(); got != StateConnected {
		t.Fatalf("State() = %v, want StateConnected", got)
	}

	next := func() Event {
		select {
		case ev := <-conn.Events():
			return ev
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event")
			return nil
		}
	}

	if ev, ok := next().(ConnectedEvent); !ok || ev.ParticipantSID != "PA_agent" {
		t.Fatalf("first event = %#v, want ConnectedEvent{PA_agent}", ev)
	}
	if ev, ok := next().(ParticipantJoinedEvent); !ok || ev.Identity != "alice" {
		t.Fatalf("second event = %#v, want ParticipantJoinedEvent{alice}", ev)
	}
	dataEv, ok := next().(DataEvent)
	if !ok || dataEv.SenderIdentity != "alice" {
		t.Fatalf("third event = %#v, want DataEvent from alice", dataEv)
	}
	var payload map[string]string
	if err := json.Unmarshal(dataEv.Payload, &payload); err != nil || payload["message"] != "hi" {
		t.Fatalf("data payload = %s, want {\"message\":\"hi\"}", dataEv.Payload)
	}
	if ev, ok := next().(ParticipantLeftEvent); !ok || ev.Identity != "alice" {
		t.Fatalf("fourth event = %#v, want ParticipantLeftEvent{alice}", ev)
	}
}

func TestWSConnPublishData(t *testing.T) {
	srv, published := fakeRTC(t, nil)

	conn, err := NewWSDialer(srv.URL).Dial(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.PublishData(context.Background(), []byte(`{"message":"hello"}`)); err != nil {
		t.Fatalf("PublishData() error = %v", err)
	}

	select {
	case msg := <-published:
		if msg.Event != "publish_data" || msg.Kind != "reliable" {
			t.Fatalf("published envelope = %+v, want publish_data/reliable", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received published data")
	}
}

func TestWSConnPublishAfterCloseFails(t *testing.T) {
	srv, _ := fakeRTC(t, nil)

	conn, err := NewWSDialer(srv.URL).Dial(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.Close()

	if err := conn.PublishData(context.Background(), []byte(`{}`)); err != ErrNotConnected {
		t.Fatalf("PublishData() error = %v, want ErrNotConnected", err)
	}
}
