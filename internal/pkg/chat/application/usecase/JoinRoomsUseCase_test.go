package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinRoomsFiltersToMemberRooms(t *testing.T) {
	f := newFixture()
	mine := f.resolve(t, listingID, buyerID).View.Room.ID
	foreign := f.resolve(t, 11, 3).View.Room.ID

	uc := NewJoinRoomsUseCase(f.repo)
	joinable, err := uc.Execute(context.Background(), JoinRoomsInput{
		UserID:  buyerID,
		RoomIDs: []int64{mine, foreign, 999, mine},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{mine}, joinable)
}

func TestJoinRoomsEmptyRequestIsNoop(t *testing.T) {
	f := newFixture()
	uc := NewJoinRoomsUseCase(f.repo)

	joinable, err := uc.Execute(context.Background(), JoinRoomsInput{UserID: buyerID})
	require.NoError(t, err)
	require.Empty(t, joinable)
}

func TestJoinRoomsExcludesLeftRooms(t *testing.T) {
	// live broadcasts only reach active members; a left participant must
	// resolve the room again to rejoin its broadcast group
	f := newFixture()
	roomID := f.resolve(t, listingID, buyerID).View.Room.ID

	leave := NewLeaveRoomUseCase(f.repo, f.users)
	_, err := leave.Execute(context.Background(), LeaveRoomInput{RoomID: roomID, UserID: buyerID})
	require.NoError(t, err)

	uc := NewJoinRoomsUseCase(f.repo)
	joinable, err := uc.Execute(context.Background(), JoinRoomsInput{UserID: buyerID, RoomIDs: []int64{roomID}})
	require.NoError(t, err)
	require.Empty(t, joinable)
}
