package agent

import (
	"context"
	"sync"

	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/rooms"
)

// Start status values returned by Registry.Start.
const (
	StatusStarted       = "started"
	StatusAlreadyActive = "already_active"
)

// Status is a point-in-time view of one room's agent.
type Status struct {
	Active        bool
	ParticipantID string
	Connected     bool
}

// Registry tracks at most one agent session per room. Start and Stop for
// the same room are serialized; unrelated rooms never block each other.
type Registry struct {
	agentName string
	memories  MemoryStore
	responder Responder
	tokens    TokenMinter
	dialer    rooms.Dialer

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*roomLock
}

// roomLock serializes start/stop per room. refs counts holders and
// waiters so the map entry can be dropped once the last one releases.
type roomLock struct {
	sync.Mutex
	refs int
}

func NewRegistry(agentName string, memories MemoryStore, responder Responder, tokens TokenMinter, dialer rooms.Dialer) *Registry {
	return &Registry{
		agentName: agentName,
		memories:  memories,
		responder: responder,
		tokens:    tokens,
		dialer:    dialer,
		sessions:  map[string]*Session{},
		locks:     map[string]*roomLock{},
	}
}

// Start launches an agent in the room, or reports the one already there.
// A failed start leaves no registry entry behind.
func (r *Registry) Start(ctx context.Context, roomName string) (participantID, status string, err error) {
	lock := r.lockRoom(roomName)
	defer r.unlockRoom(roomName, lock)

	r.mu.Lock()
	existing := r.sessions[roomName]
	r.mu.Unlock()
	if existing != nil {
		return existing.ParticipantID(), StatusAlreadyActive, nil
	}

	session := NewSession(roomName, r.agentName, r.memories, r.responder, r.tokens, r.dialer)
	if err := session.Start(ctx); err != nil {
		return "", "", err
	}

	r.mu.Lock()
	r.sessions[roomName] = session
	r.mu.Unlock()

	logging.Get().Info("Agent session registered", "room", roomName)
	return session.ParticipantID(), StatusStarted, nil
}

// Stop shuts down the room's agent. Stopping a room with no agent is a
// successful no-op.
func (r *Registry) Stop(roomName string) {
	lock := r.lockRoom(roomName)
	defer r.unlockRoom(roomName, lock)

	r.mu.Lock()
	session := r.sessions[roomName]
	delete(r.sessions, roomName)
	r.mu.Unlock()

	if session == nil {
		return
	}
	session.Stop()
	logging.Get().Info("Agent session removed", "room", roomName)
}

// Status reports the room's agent state; unknown rooms are simply
// inactive, never an error.
func (r *Registry) Status(roomName string) Status {
	r.mu.Lock()
	session := r.sessions[roomName]
	r.mu.Unlock()

	if session == nil {
		return Status{}
	}
	return Status{
		Active:        true,
		ParticipantID: session.ParticipantID(),
		Connected:     session.IsConnected(),
	}
}

// StopAll disconnects every active session, for graceful shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		r.Stop(name)
	}
}

// lockRoom takes the room's serialization lock, creating it on demand.
// The ref is counted before blocking so a concurrent release never
// deletes a lock that still has waiters.
func (r *Registry) lockRoom(roomName string) *roomLock {
	r.mu.Lock()
	lock, ok := r.locks[roomName]
	if !ok {
		lock = &roomLock{}
		r.locks[roomName] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.Lock()
	return lock
}

func (r *Registry) unlockRoom(roomName string, lock *roomLock) {
	lock.Unlock()

	r.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, roomName)
	}
	r.mu.Unlock()
}
