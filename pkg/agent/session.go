// Package agent runs conversational AI participants inside rooms: one
// session per room, each owning its connection, per-sender conversation
// history, and the reply pipeline.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/memory"
	"github.com/voxhall/voxhall/pkg/rooms"
)

const (
	// historyWindow is how many recent turns accompany each completion
	// request; maxHistoryPerSender caps what is kept in memory at all.
	historyWindow       = 6
	maxHistoryPerSender = 50

	// Per-turn memory retrieval and greeting retrieval limits.
	turnSearchLimit  = 5
	greetMemoryLimit = 3

	fallbackReply = "I'm sorry, I encountered an error while processing your message. Could you please try again?"

	// Assistant turns are persisted with this prefix so stored memories
	// read as dialogue.
	assistantPersistPrefix = "AI Assistant: "
)

// SessionState is the lifecycle state of one agent session.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var ErrNotIdle = errors.New("session already started")

// MemoryStore is the slice of the memory service a session needs.
type MemoryStore interface {
	Add(ctx context.Context, user, message string, metadata map[string]any) (string, error)
	Search(ctx context.Context, user, query string, limit int) ([]memory.Record, error)
	GetAll(ctx context.Context, user string, limit int) ([]memory.Record, error)
}

// Responder generates replies and context summaries.
type Responder interface {
	GenerateReply(ctx context.Context, turns []*schema.Message, contextSummary string) (string, error)
	SummarizeMemories(ctx context.Context, records []memory.Record) string
}

// TokenMinter mints room access tokens for the session's own identity.
type TokenMinter interface {
	Mint(room, identity string, metadata map[string]any) (string, time.Time, error)
}

// Identity derives the agent's room identity from its display name.
func Identity(agentName string) string {
	return strings.ReplaceAll(strings.ToLower(agentName), " ", "_") + "_agent"
}

// Session is one agent participant in one room.
type Session struct {
	roomName  string
	agentName string
	identity  string

	memories  MemoryStore
	responder Responder
	tokens    TokenMinter
	dialer    rooms.Dialer
	logger    *slog.Logger

	mu            sync.Mutex
	state         SessionState
	conn          rooms.Conn
	participantID string
	cancel        context.CancelFunc

	// ctx outlives Start's caller context; turn handlers use it so a
	// finished HTTP request does not cancel in-flight replies.
	ctx context.Context

	histMu  sync.Mutex
	history map[string][]*schema.Message
}

// NewSession builds an idle session for the room. Start connects it.
func NewSession(roomName, agentName string, memories MemoryStore, responder Responder, tokens TokenMinter, dialer rooms.Dialer) *Session {
	return &Session{
		roomName:  roomName,
		agentName: agentName,
		identity:  Identity(agentName),
		memories:  memories,
		responder: responder,
		tokens:    tokens,
		dialer:    dialer,
		logger:    logging.Get().With("room", roomName),
		history:   map[string][]*schema.Message{},
	}
}

// Start mints a token for the session's own identity, connects to the
// room, and launches the event dispatch loop. On any failure the session
// is left fully disconnected and must be discarded, not retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrNotIdle
	}
	s.state = StateConnecting

	token, _, err := s.tokens.Mint(s.roomName, s.identity, map[string]any{"agent": true})
	if err != nil {
		s.state = StateIdle
		return fmt.Errorf("mint agent token: %w", err)
	}

	conn, err := s.dialer.Dial(ctx, token)
	if err != nil {
		s.state = StateIdle
		return fmt.Errorf("connect to room %s: %w", s.roomName, err)
	}

	s.conn = conn
	s.participantID = conn.LocalSID()
	s.state = StateConnected
	s.ctx, s.cancel = context.WithCancel(context.Background())

	go s.dispatch(conn)

	s.logger.Info("Agent connected", "identity", s.identity, "participant", s.participantID)
	return nil
}

// Stop disconnects the session. Stopping a session that never connected
// or already disconnected is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting && s.state != StateConnected {
		return
	}
	s.state = StateDisconnected
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.participantID = ""
	s.logger.Info("Agent disconnected", "identity", s.identity)
}

// IsConnected reports whether the session holds a live connection.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected && s.conn != nil && s.conn.State() == rooms.StateConnected
}

// ParticipantID is the provider-assigned id captured at connect time.
func (s *Session) ParticipantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participantID
}

// State returns the session lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// dispatch consumes room events until the connection's channel closes.
// Greetings and turns each run in their own goroutine so a slow model
// call never stalls event delivery.
func (s *Session) dispatch(conn rooms.Conn) {
	for ev := range conn.Events() {
		switch ev := ev.(type) {
		case rooms.ParticipantJoinedEvent:
			if ev.Identity == s.identity {
				continue
			}
			s.logger.Info("Participant joined", "identity", ev.Identity)
			go s.greet(ev.Identity)
		case rooms.ParticipantLeftEvent:
			s.logger.Info("Participant left", "identity", ev.Identity)
		case rooms.DataEvent:
			sender, text, ok := decodeChat(ev)
			if !ok || sender == s.identity || text == "" {
				continue
			}
			go s.handleTurn(sender, text)
		case rooms.DisconnectedEvent:
			s.logger.Info("Room connection lost", "reason", ev.Reason)
			s.markDisconnected()
		}
	}
}

func (s *Session) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	s.state = StateDisconnected
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.participantID = ""
}

// decodeChat extracts the sender and trimmed message text from an inbound
// data event. Payloads that are not a {message} object are ignored.
func decodeChat(ev rooms.DataEvent) (sender, text string, ok bool) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return "", "", false
	}
	return ev.SenderIdentity, strings.TrimSpace(payload.Message), true
}

// handleTurn runs the reply pipeline for one inbound user message:
// persist the question, retrieve and summarize relevant memories,
// generate a reply, persist it, publish it.
func (s *Session) handleTurn(sender, text string) {
	ctx := s.ctx

	s.appendTurn(sender, schema.UserMessage(text))
	_, err := s.memories.Add(ctx, sender, text, map[string]any{
		"room":      s.roomName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"type":      "user_message",
	})
	if err != nil {
		// Never answer a question that has no durable record.
		s.logger.Error("Failed to persist user message, aborting turn", "sender", sender, "error", err)
		return
	}

	records, err := s.memories.Search(ctx, sender, text, turnSearchLimit)
	if err != nil {
		s.logger.Warn("Memory search failed, replying without context", "sender", sender, "error", err)
		records = nil
	}
	summary := s.responder.SummarizeMemories(ctx, records)

	reply, err := s.responder.GenerateReply(ctx, s.recentTurns(sender, text), summary)
	if err != nil {
		s.logger.Error("Reply generation failed, using fallback", "sender", sender, "error", err)
		reply = fallbackReply
	}

	s.appendTurn(sender, schema.AssistantMessage(reply, nil))
	if _, err := s.memories.Add(ctx, sender, assistantPersistPrefix+reply, map[string]any{
		"room":      s.roomName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"type":      "ai_response",
	}); err != nil {
		s.logger.Warn("Failed to persist assistant reply", "sender", sender, "error", err)
	}

	s.publishChat(reply)
}

// greet welcomes a newly joined participant. With stored memories the
// model composes a personal welcome from their summary; without any, a
// fixed template is sent; any failure degrades to a static fallback.
func (s *Session) greet(username string) {
	ctx := s.ctx

	records, err := s.memories.GetAll(ctx, username, greetMemoryLimit)
	if err != nil {
		s.logger.Warn("Greeting memory lookup failed", "user", username, "error", err)
		s.publishChat(fmt.Sprintf("Hello %s! Welcome to the chat room!", username))
		return
	}

	if len(records) == 0 {
		s.publishChat(fmt.Sprintf(
			"Hello %s! 👋 Welcome to the chat room! I'm %s, your AI assistant. How can I help you today?",
			username, s.agentName))
		return
	}

	summary := s.responder.SummarizeMemories(ctx, records)
	prompt := fmt.Sprintf(
		"A user named %s just joined the chat room. You have talked with them before. "+
			"Greet them warmly in one or two sentences, referencing what you remember about them.", username)
	greeting, err := s.responder.GenerateReply(ctx, []*schema.Message{schema.UserMessage(prompt)}, summary)
	if err != nil {
		s.logger.Warn("Greeting generation failed, using fallback", "user", username, "error", err)
		greeting = fmt.Sprintf("Hello %s! Welcome to the chat room!", username)
	}
	s.publishChat(greeting)
}

// publishChat sends a chat data message into the room. When the session
// is not connected this is a logged no-op, never an error to the caller.
func (s *Session) publishChat(message string) {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	ctx := s.ctx
	s.mu.Unlock()

	if !connected || conn == nil || conn.State() != rooms.StateConnected {
		s.logger.Warn("Not connected, dropping outbound message")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"message":   message,
		"sender":    s.identity,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"type":      "chat",
	})
	if err != nil {
		s.logger.Error("Failed to encode chat payload", "error", err)
		return
	}
	if err := conn.PublishData(ctx, payload); err != nil {
		s.logger.Warn("Failed to publish message", "error", err)
	}
}

func (s *Session) appendTurn(sender string, turn *schema.Message) {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	h := append(s.history[sender], turn)
	if len(h) > maxHistoryPerSender {
		h = h[len(h)-maxHistoryPerSender:]
	}
	s.history[sender] = h
}

// recentTurns returns the last turns of the sender's history for the
// completion request, appending the new message only when it is not
// already the tail (it normally is, having just been appended).
func (s *Session) recentTurns(sender, newMessage string) []*schema.Message {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	h := s.history[sender]
	if len(h) > historyWindow {
		h = h[len(h)-historyWindow:]
	}
	turns := make([]*schema.Message, len(h), len(h)+1)
	copy(turns, h)

	if n := len(turns); n == 0 || turns[n-1].Role != schema.User || turns[n-1].Content != newMessage {
		turns = append(turns, schema.UserMessage(newMessage))
	}
	return turns
}
