package chat

import "fmt"

// RoomState is the in-memory aggregate for a room and its membership
// invariants.
//
// Notes:
//   - The application layer hydrates it with the room and its participants
//     before invoking behaviors; persistence stays in repositories.
//   - A room's participant set is fixed at creation time (listing owner and
//     buyer); only the Active flag of existing rows ever changes, which is
//     why there is no way to add a participant here.
type RoomState struct {
	Room         Room
	Participants map[int64]Participant // keyed by userID
}

// NewRoomState builds the aggregate from persisted rows.
func NewRoomState(room Room, participants []Participant) *RoomState {
	byUser := make(map[int64]Participant, len(participants))
	for _, p := range participants {
		byUser[p.UserID] = p
	}
	return &RoomState{Room: room, Participants: byUser}
}

// HasParticipant tells whether userID was ever part of this room.
func (s *RoomState) HasParticipant(userID int64) bool {
	if s == nil || s.Participants == nil {
		return false
	}
	_, ok := s.Participants[userID]
	return ok
}

// IsActive tells whether userID is currently part of the conversation.
func (s *RoomState) IsActive(userID int64) bool {
	p, ok := s.Participants[userID]
	return ok && p.Active
}

// ValidatePost applies the posting policy: only active participants may
// post. A user who left must rejoin explicitly (via resolve) first.
func (s *RoomState) ValidatePost(senderID int64) error {
	if !s.HasParticipant(senderID) {
		return ErrNotParticipant
	}
	if !s.IsActive(senderID) {
		return ErrNotActiveParticipant
	}
	return nil
}

// Leave applies the Active -> Left transition and returns the system
// message narrating it. The caller persists both effects.
func (s *RoomState) Leave(userID int64, nickname string) (Message, error) {
	p, ok := s.Participants[userID]
	if !ok {
		return Message{}, ErrNotParticipant
	}
	if !p.Active {
		return Message{}, ErrNotActiveParticipant
	}
	p.Active = false
	s.Participants[userID] = p
	return NewSystemMessage(s.Room.ID, fmt.Sprintf("%s left", nickname)), nil
}

// Rejoin applies the Left -> Active transition and returns the system
// message narrating it. Rejoining an already-active participant is a no-op
// signalled by (Message{}, false, nil).
func (s *RoomState) Rejoin(userID int64, nickname string) (Message, bool, error) {
	p, ok := s.Participants[userID]
	if !ok {
		return Message{}, false, ErrNotParticipant
	}
	if p.Active {
		return Message{}, false, nil
	}
	p.Active = true
	s.Participants[userID] = p
	return NewSystemMessage(s.Room.ID, fmt.Sprintf("%s rejoined", nickname)), true, nil
}
