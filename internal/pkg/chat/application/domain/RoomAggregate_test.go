package chat

import "testing"

func newState() *RoomState {
	return NewRoomState(Room{ID: 5}, []Participant{
		{ID: 1, RoomID: 5, UserID: 10, Active: true},
		{ID: 2, RoomID: 5, UserID: 20, Active: true},
	})
}

func TestValidatePost(t *testing.T) {
	s := newState()

	if err := s.ValidatePost(10); err != nil {
		t.Fatalf("active participant should post: %v", err)
	}
	if err := s.ValidatePost(99); err != ErrNotParticipant {
		t.Fatalf("want ErrNotParticipant, got %v", err)
	}

	if _, err := s.Leave(10, "ana"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := s.ValidatePost(10); err != ErrNotActiveParticipant {
		t.Fatalf("want ErrNotActiveParticipant, got %v", err)
	}
}

func TestLeaveTransitions(t *testing.T) {
	s := newState()

	msg, err := s.Leave(10, "ana")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if msg.Content != "ana left" {
		t.Fatalf("unexpected narration %q", msg.Content)
	}
	if !msg.IsSystem() {
		t.Fatal("leave narration must be a system message")
	}
	if msg.RoomID != 5 {
		t.Fatalf("narration bound to room %d", msg.RoomID)
	}
	if s.IsActive(10) {
		t.Fatal("participant should be left")
	}
	if !s.HasParticipant(10) {
		t.Fatal("leaving must not remove the membership row")
	}

	if _, err := s.Leave(10, "ana"); err != ErrNotActiveParticipant {
		t.Fatalf("double leave: want ErrNotActiveParticipant, got %v", err)
	}
	if _, err := s.Leave(99, "ghost"); err != ErrNotParticipant {
		t.Fatalf("outsider leave: want ErrNotParticipant, got %v", err)
	}
}

func TestRejoinTransitions(t *testing.T) {
	s := newState()

	// rejoining while active is a no-op
	if _, changed, err := s.Rejoin(10, "ana"); err != nil || changed {
		t.Fatalf("active rejoin: changed=%v err=%v", changed, err)
	}

	if _, err := s.Leave(10, "ana"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	msg, changed, err := s.Rejoin(10, "ana")
	if err != nil || !changed {
		t.Fatalf("rejoin: changed=%v err=%v", changed, err)
	}
	if msg.Content != "ana rejoined" {
		t.Fatalf("unexpected narration %q", msg.Content)
	}
	if !s.IsActive(10) {
		t.Fatal("participant should be active again")
	}

	if _, _, err := s.Rejoin(99, "ghost"); err != ErrNotParticipant {
		t.Fatalf("outsider rejoin: want ErrNotParticipant, got %v", err)
	}
}
