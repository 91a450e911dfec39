package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"bookmarket-chat/internal/infrastructure/metrics"
)

// Registry is the presence registry: the live mapping from authenticated
// users to open connections, plus per-room broadcast groups. It keeps one
// active Connection per user while allowing efficient fan-out to all
// connected members of a room.
//
// Delivery is best-effort: an offline user simply misses the live event and
// recovers state from the room store on the next fetch.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection           // sessionID -> connection
	userSessions map[int64]string                 // userID -> sessionID
	rooms        map[int64]map[string]*Connection // roomID -> sessionID -> connection
	sessionRooms map[string]map[int64]struct{}    // sessionID -> set of roomIDs

	log zerolog.Logger
}

// NewRegistry constructs an initialized Registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[int64]string),
		rooms:        make(map[int64]map[string]*Connection),
		sessionRooms: make(map[string]map[int64]struct{}),
		log:          log.With().Str("component", "presence").Logger(),
	}
}

// Attach registers a connection for the given user. If a previous session exists,
// it is removed and closed after the swap to enforce one active socket per user.
func (r *Registry) Attach(conn *Connection) {
	var previous *Connection

	r.mu.Lock()
	if existingID, ok := r.userSessions[conn.UserID]; ok {
		if existing := r.sessions[existingID]; existing != nil {
			previous = existing
			r.detachLocked(existingID)
		}
	}

	r.sessions[conn.ID] = conn
	r.userSessions[conn.UserID] = conn.ID
	r.sessionRooms[conn.ID] = make(map[int64]struct{})
	r.mu.Unlock()

	// A replaced session keeps the gauge flat: one socket out, one in.
	if previous == nil {
		metrics.ConnectionsActive.Inc()
	}
	conn.Start()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
}

// Detach removes a connection if it is still tracked.
func (r *Registry) Detach(conn *Connection) {
	r.mu.Lock()
	_, tracked := r.sessions[conn.ID]
	r.detachLocked(conn.ID)
	r.mu.Unlock()

	if tracked {
		metrics.ConnectionsActive.Dec()
	}
}

// Join adds the connection to the room's broadcast group.
func (r *Registry) Join(roomID int64, conn *Connection) {
	r.mu.Lock()
	if _, ok := r.sessions[conn.ID]; !ok {
		r.mu.Unlock()
		return
	}

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[roomID] = room
	}
	room[conn.ID] = conn

	memberships := r.sessionRooms[conn.ID]
	if memberships == nil {
		memberships = make(map[int64]struct{})
		r.sessionRooms[conn.ID] = memberships
	}
	memberships[roomID] = struct{}{}
	r.mu.Unlock()
}

// JoinUser adds the user's current connection, if any, to the room's
// broadcast group. Used when room resolution attaches both sides.
func (r *Registry) JoinUser(roomID int64, userID int64) bool {
	r.mu.RLock()
	sessionID, ok := r.userSessions[userID]
	conn := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok || conn == nil {
		return false
	}
	r.Join(roomID, conn)
	return true
}

// InRoom reports whether the connection is currently joined to the room's
// broadcast group. Joining requires a membership-checked resolve or room
// list fetch, so this doubles as the authorization check for frames that
// name a room without touching the store.
func (r *Registry) InRoom(roomID int64, conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][conn.ID]
	return ok
}

// Leave removes the connection from the room's broadcast group. The
// connection stays attached globally; other rooms remain live.
func (r *Registry) Leave(roomID int64, conn *Connection) {
	r.mu.Lock()
	r.leaveLocked(roomID, conn.ID)
	r.mu.Unlock()
}

// LeaveUser removes the user's current connection, if any, from the room's
// broadcast group.
func (r *Registry) LeaveUser(roomID int64, userID int64) {
	r.mu.Lock()
	if sessionID, ok := r.userSessions[userID]; ok {
		r.leaveLocked(roomID, sessionID)
	}
	r.mu.Unlock()
}

// Broadcast writes payload to all members in the room.
// excludeUserID, when non-zero, prevents delivering to that user.
func (r *Registry) Broadcast(roomID int64, payload []byte, excludeUserID int64) int {
	r.mu.RLock()
	room := r.rooms[roomID]
	if len(room) == 0 {
		r.mu.RUnlock()
		return 0
	}

	delivered := 0
	for _, conn := range room {
		if excludeUserID != 0 && conn.UserID == excludeUserID {
			continue
		}
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	r.mu.RUnlock()

	metrics.BroadcastsDelivered.Add(float64(delivered))
	return delivered
}

// NotifyUser delivers payload to the current connection of the given user.
// An offline user is a logged no-op, not an error.
func (r *Registry) NotifyUser(userID int64, payload []byte) bool {
	r.mu.RLock()
	sessionID, ok := r.userSessions[userID]
	if !ok {
		r.mu.RUnlock()
		r.log.Debug().Int64("user_id", userID).Msg("notify skipped, user not connected")
		return false
	}
	conn := r.sessions[sessionID]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	if err := conn.Send(payload); err != nil {
		return false
	}
	metrics.BroadcastsDelivered.Inc()
	return true
}

// Close terminates all tracked connections and clears registry state.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	r.sessions = make(map[string]*Connection)
	r.userSessions = make(map[int64]string)
	r.rooms = make(map[int64]map[string]*Connection)
	r.sessionRooms = make(map[string]map[int64]struct{})
	r.mu.Unlock()

	metrics.ConnectionsActive.Sub(float64(len(sessions)))
	for _, conn := range sessions {
		conn.Close(1001, "registry shutdown")
	}
}

func (r *Registry) detachLocked(sessionID string) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)

	if current, ok := r.userSessions[conn.UserID]; ok && current == sessionID {
		delete(r.userSessions, conn.UserID)
	}

	for roomID := range r.sessionRooms[sessionID] {
		r.leaveLocked(roomID, sessionID)
	}
	delete(r.sessionRooms, sessionID)
}

func (r *Registry) leaveLocked(roomID int64, sessionID string) {
	if sessionID == "" {
		return
	}
	room := r.rooms[roomID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
	if memberships, ok := r.sessionRooms[sessionID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(r.sessionRooms, sessionID)
		}
	}
}
