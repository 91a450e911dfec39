package realtime

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

// drain reads everything buffered on the connection's outbound channel.
func drain(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestAttachReplacesPreviousSession(t *testing.T) {
	r := newTestRegistry()

	first := NewConnection(1, nil)
	second := NewConnection(1, nil)

	r.Attach(first)
	r.Join(7, first)
	r.Attach(second)

	// the old session is closed and gone from the room
	select {
	case <-first.close:
	default:
		t.Fatal("replaced session should be closed")
	}

	require.True(t, r.NotifyUser(1, []byte("hi")))
	require.Equal(t, [][]byte{[]byte("hi")}, drain(second))
	require.Empty(t, drain(first))
	require.Zero(t, r.Broadcast(7, []byte("x"), 0), "room membership must not survive the swap")
}

func TestBroadcastReachesRoomMembers(t *testing.T) {
	r := newTestRegistry()

	ana := NewConnection(1, nil)
	bruno := NewConnection(2, nil)
	outsider := NewConnection(3, nil)
	for _, c := range []*Connection{ana, bruno, outsider} {
		r.Attach(c)
	}
	r.Join(7, ana)
	r.Join(7, bruno)

	delivered := r.Broadcast(7, []byte("hello"), 0)
	require.Equal(t, 2, delivered)
	require.Len(t, drain(ana), 1)
	require.Len(t, drain(bruno), 1)
	require.Empty(t, drain(outsider))
}

func TestBroadcastExcludesUser(t *testing.T) {
	r := newTestRegistry()

	ana := NewConnection(1, nil)
	bruno := NewConnection(2, nil)
	r.Attach(ana)
	r.Attach(bruno)
	r.Join(7, ana)
	r.Join(7, bruno)

	delivered := r.Broadcast(7, []byte("typing"), 1)
	require.Equal(t, 1, delivered)
	require.Empty(t, drain(ana))
	require.Len(t, drain(bruno), 1)
}

func TestLeaveDetachesRoomOnly(t *testing.T) {
	r := newTestRegistry()

	ana := NewConnection(1, nil)
	r.Attach(ana)
	r.Join(7, ana)
	r.Join(8, ana)

	r.LeaveUser(7, 1)

	require.Zero(t, r.Broadcast(7, []byte("x"), 0))
	require.Equal(t, 1, r.Broadcast(8, []byte("y"), 0), "other rooms stay live")
	require.True(t, r.NotifyUser(1, []byte("direct")), "global presence survives a room leave")
}

func TestInRoomTracksJoinAndLeave(t *testing.T) {
	r := newTestRegistry()

	member := NewConnection(1, nil)
	outsider := NewConnection(2, nil)
	r.Attach(member)
	r.Attach(outsider)
	r.Join(7, member)

	require.True(t, r.InRoom(7, member))
	require.False(t, r.InRoom(7, outsider), "a connection that never joined must not pass the room check")
	require.False(t, r.InRoom(8, member))

	r.Leave(7, member)
	require.False(t, r.InRoom(7, member))
}

func TestNotifyUserOfflineIsNoop(t *testing.T) {
	r := newTestRegistry()
	require.False(t, r.NotifyUser(42, []byte("hello")))
}

func TestJoinUserRequiresConnection(t *testing.T) {
	r := newTestRegistry()
	require.False(t, r.JoinUser(7, 1))

	ana := NewConnection(1, nil)
	r.Attach(ana)
	require.True(t, r.JoinUser(7, 1))
	require.Equal(t, 1, r.Broadcast(7, []byte("x"), 0))
}

func TestDetachRemovesAllState(t *testing.T) {
	r := newTestRegistry()

	ana := NewConnection(1, nil)
	r.Attach(ana)
	r.Join(7, ana)
	r.Detach(ana)

	require.False(t, r.NotifyUser(1, []byte("x")))
	require.Zero(t, r.Broadcast(7, []byte("x"), 0))

	r.mu.RLock()
	defer r.mu.RUnlock()
	require.Empty(t, r.sessions)
	require.Empty(t, r.userSessions)
	require.Empty(t, r.rooms)
	require.Empty(t, r.sessionRooms)
}

func TestCloseTerminatesEverySession(t *testing.T) {
	r := newTestRegistry()

	ana := NewConnection(1, nil)
	bruno := NewConnection(2, nil)
	r.Attach(ana)
	r.Attach(bruno)

	r.Close()

	for _, c := range []*Connection{ana, bruno} {
		select {
		case <-c.close:
		default:
			t.Fatal("connection should be closed on registry shutdown")
		}
	}
	require.False(t, r.NotifyUser(1, nil))
}
