// Package rooms adapts the external realtime room platform: management RPCs
// (create/list/delete rooms, participants), signed access tokens, and the
// agent's realtime connection into a room.
package rooms

// Event is a typed room event delivered on a connection's event channel.
// Each event type is a separate Go type; sessions switch on the concrete
// type instead of registering callbacks, so tests can feed synthetic
// streams without a live provider.
type Event interface {
	// EventName returns the wire name for this event type (e.g. "data").
	EventName() string
}

// ConnectedEvent fires once when the connection is established.
type ConnectedEvent struct {
	// ParticipantSID is the provider-assigned id of the local participant.
	ParticipantSID string
}

func (ConnectedEvent) EventName() string { return "connected" }

// DisconnectedEvent fires when the connection drops, whether provider- or
// self-initiated. It is the last event on the channel.
type DisconnectedEvent struct {
	Reason string
}

func (DisconnectedEvent) EventName() string { return "disconnected" }

// ParticipantJoinedEvent fires for every remote participant that joins.
type ParticipantJoinedEvent struct {
	Identity string
	SID      string
}

func (ParticipantJoinedEvent) EventName() string { return "participant_joined" }

// ParticipantLeftEvent fires for every remote participant that leaves.
type ParticipantLeftEvent struct {
	Identity string
}

func (ParticipantLeftEvent) EventName() string { return "participant_left" }

// DataEvent carries one data message published into the room.
type DataEvent struct {
	SenderIdentity string
	Payload        []byte
}

func (DataEvent) EventName() string { return "data" }
