// HTTP response types. Every response carries the {success, message,
// error_code?, details?} envelope; error codes are stable strings the
// clients can switch on.
package models

import "time"

// Envelope is the error shape shared by both services.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// Err builds a failure envelope.
func Err(message, code string) Envelope {
	return Envelope{Success: false, Message: message, ErrorCode: code}
}

// ErrWithDetails builds a failure envelope carrying extra context.
func ErrWithDetails(message, code string, details any) Envelope {
	return Envelope{Success: false, Message: message, ErrorCode: code, Details: details}
}

// RoomInfo is the provider's view of a room.
type RoomInfo struct {
	Name            string         `json:"name"`
	SID             string         `json:"sid"`
	MaxParticipants int            `json:"max_participants,omitempty"`
	NumParticipants int            `json:"num_participants"`
	CreationTime    int64          `json:"creation_time"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type RoomResponse struct {
	Success           bool           `json:"success"`
	Message           string         `json:"message"`
	RoomName          string         `json:"room_name"`
	RoomSID           string         `json:"room_sid,omitempty"`
	ParticipantsCount int            `json:"participants_count"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type RoomListResponse struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	Rooms      []RoomInfo `json:"rooms"`
	TotalCount int        `json:"total_count"`
}

type TokenResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	RoomName  string    `json:"room_name"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TokenValidationResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Valid     bool      `json:"valid"`
	Timestamp time.Time `json:"timestamp"`
}

type AgentStatusResponse struct {
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	RoomName           string `json:"room_name"`
	AgentActive        bool   `json:"agent_active"`
	AgentParticipantID string `json:"agent_participant_id,omitempty"`
	AgentConnected     bool   `json:"agent_connected"`
}

// Memory is the wire shape of one stored memory record.
type Memory struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Score    *float64       `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

type MemoryResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type MemorySearchResponse struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Memories []Memory `json:"memories"`
	Count    int      `json:"count"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Store     string `json:"store,omitempty"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
