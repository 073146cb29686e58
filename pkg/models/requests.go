// HTTP request types for both services.
package models

// CreateRoomRequest creates a room on the realtime provider.
type CreateRoomRequest struct {
	RoomName        string         `json:"room_name"`
	MaxParticipants int            `json:"max_participants"`
	EmptyTimeout    int            `json:"empty_timeout"` // seconds
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// JoinRoomRequest asks for an access token scoped to a room and identity.
type JoinRoomRequest struct {
	RoomName string         `json:"room_name"`
	Username string         `json:"username"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type StartAgentRequest struct {
	RoomName string `json:"room_name"`
}

type StopAgentRequest struct {
	RoomName string `json:"room_name"`
}

type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// MemoryStoreRequest stores one memory for a user.
type MemoryStoreRequest struct {
	Username string         `json:"username"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MemorySearchRequest searches a user's memories by similarity. Limit is
// a pointer so an absent limit (defaulted) and an explicit zero
// (rejected) stay distinguishable.
type MemorySearchRequest struct {
	Username string `json:"username"`
	Query    string `json:"query"`
	Limit    *int   `json:"limit,omitempty"`
}
