package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhall/voxhall/pkg/logging"
)

// ConnState is the connection lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

var ErrNotConnected = errors.New("not connected to room")

// Conn is one participant's live connection to a room.
type Conn interface {
	// Events returns the event channel. It is closed after the final
	// DisconnectedEvent.
	Events() <-chan Event
	// PublishData publishes a reliable data message into the room.
	PublishData(ctx context.Context, payload []byte) error
	State() ConnState
	// LocalSID is the provider-assigned id of this participant.
	LocalSID() string
	Close() error
}

// Dialer opens room connections. The production implementation speaks the
// provider's websocket protocol; tests substitute synthetic connections.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// wireMessage is the JSON envelope exchanged on the realtime socket.
type wireMessage struct {
	Event    string          `json:"event"`
	SID      string          `json:"sid,omitempty"`
	Identity string          `json:"identity,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	TS       int64           `json:"ts,omitempty"`
}

// WSDialer dials the provider's realtime websocket endpoint.
type WSDialer struct {
	// BaseURL is the provider URL (http(s) or ws(s) scheme).
	BaseURL string
	Logger  *slog.Logger
}

func NewWSDialer(baseURL string) *WSDialer {
	return &WSDialer{BaseURL: baseURL, Logger: logging.Get()}
}

// Dial connects and waits for the provider's connected envelope carrying
// the local participant sid. The returned Conn is already Connected.
func (d *WSDialer) Dial(ctx context.Context, token string) (Conn, error) {
	endpoint, err := rtcEndpoint(d.BaseURL, token)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial room socket: %w", err)
	}

	// First message must be the connected envelope.
	var hello wireMessage
	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	if err := ws.ReadJSON(&hello); err != nil {
		ws.Close()
		return nil, fmt.Errorf("read connect envelope: %w", err)
	}
	_ = ws.SetReadDeadline(time.Time{})
	if hello.Event != "connected" {
		ws.Close()
		return nil, fmt.Errorf("unexpected first envelope %q", hello.Event)
	}

	c := &wsConn{
		ws:     ws,
		sid:    hello.SID,
		events: make(chan Event, 64),
		logger: d.Logger,
	}
	c.state.Store(int32(StateConnected))
	c.events <- ConnectedEvent{ParticipantSID: hello.SID}
	go c.readLoop()
	return c, nil
}

func rtcEndpoint(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse provider url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported provider url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rtc"
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type wsConn struct {
	ws     *websocket.Conn
	sid    string
	events chan Event
	logger *slog.Logger

	state     atomic.Int32
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *wsConn) Events() <-chan Event { return c.events }

func (c *wsConn) State() ConnState { return ConnState(c.state.Load()) }

func (c *wsConn) LocalSID() string { return c.sid }

func (c *wsConn) PublishData(ctx context.Context, payload []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	msg := wireMessage{
		Event: "publish_data",
		Kind:  "reliable",
		Data:  json.RawMessage(payload),
		TS:    time.Now().UnixMilli(),
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
		defer c.ws.SetWriteDeadline(time.Time{})
	}
	if err := c.ws.WriteJSON(&msg); err != nil {
		return fmt.Errorf("publish data: %w", err)
	}
	return nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDisconnected))
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
	return nil
}

// readLoop decodes provider envelopes into typed events until the socket
// drops, then emits the terminal DisconnectedEvent and closes the channel.
func (c *wsConn) readLoop() {
	defer close(c.events)
	for {
		var msg wireMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			wasConnected := c.State() == StateConnected
			c.state.Store(int32(StateDisconnected))
			reason := "closed"
			if wasConnected && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				reason = err.Error()
			}
			c.events <- DisconnectedEvent{Reason: reason}
			return
		}

		switch msg.Event {
		case "participant_joined":
			c.events <- ParticipantJoinedEvent{Identity: msg.Identity, SID: msg.SID}
		case "participant_left":
			c.events <- ParticipantLeftEvent{Identity: msg.Identity}
		case "data":
			c.events <- DataEvent{SenderIdentity: msg.Identity, Payload: []byte(msg.Data)}
		case "disconnected":
			c.state.Store(int32(StateDisconnected))
			c.events <- DisconnectedEvent{Reason: "provider"}
			return
		default:
			c.logger.Debug("Ignoring unknown room envelope", "event", msg.Event)
		}
	}
}
