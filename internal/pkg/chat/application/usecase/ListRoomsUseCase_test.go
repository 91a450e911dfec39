package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	marketport "bookmarket-chat/internal/pkg/market/port"
)

func TestListRoomsOrdersByRecency(t *testing.T) {
	f := newFixture()

	older := f.resolve(t, listingID, buyerID).View.Room.ID
	newer := f.resolve(t, 11, buyerID).View.Room.ID

	uc := NewListRoomsUseCase(f.repo, f.catalog, f.users)
	views, err := uc.Execute(context.Background(), ListRoomsInput{UserID: buyerID})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, newer, views[0].Room.ID)
	require.Equal(t, older, views[1].Room.ID)

	// a message in the older room moves it to the top
	post := NewPostMessageUseCase(f.repo)
	_, err = post.Execute(context.Background(), PostMessageInput{RoomID: older, SenderID: ownerID, Content: "still available"}, nil)
	require.NoError(t, err)

	views, err = uc.Execute(context.Background(), ListRoomsInput{UserID: buyerID})
	require.NoError(t, err)
	require.Equal(t, older, views[0].Room.ID)
}

func TestListRoomsHydratesListingLastMessageAndUnread(t *testing.T) {
	f := newFixture()
	roomID := f.resolve(t, listingID, buyerID).View.Room.ID

	post := NewPostMessageUseCase(f.repo)
	_, err := post.Execute(context.Background(), PostMessageInput{RoomID: roomID, SenderID: ownerID, Content: "shipping is extra"}, nil)
	require.NoError(t, err)

	uc := NewListRoomsUseCase(f.repo, f.catalog, f.users)
	views, err := uc.Execute(context.Background(), ListRoomsInput{UserID: buyerID})
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	require.Equal(t, "The Master and Margarita", v.Listing.Title)
	require.Equal(t, "Mikhail Bulgakov", v.Listing.Author)
	require.NotNil(t, v.LastMessage)
	require.Equal(t, "shipping is extra", v.LastMessage.Content)
	require.EqualValues(t, 1, v.UnreadCount)
	require.Len(t, v.Participants, 2)
}

func TestListRoomsUnknownUserFallsBackToPlaceholder(t *testing.T) {
	f := newFixture()
	roomID := f.resolve(t, listingID, buyerID).View.Room.ID
	_ = roomID

	// simulate account deletion
	delete(f.users.users, ownerID)

	uc := NewListRoomsUseCase(f.repo, f.catalog, f.users)
	views, err := uc.Execute(context.Background(), ListRoomsInput{UserID: buyerID})
	require.NoError(t, err)
	require.Len(t, views, 1)

	nicknames := map[int64]string{}
	for _, p := range views[0].Participants {
		nicknames[p.UserID] = p.Nickname
	}
	require.Equal(t, marketport.UnknownNickname, nicknames[ownerID])
	require.Equal(t, "bruno", nicknames[buyerID])
}

func TestListRoomsEmptyForNewUser(t *testing.T) {
	f := newFixture()

	uc := NewListRoomsUseCase(f.repo, f.catalog, f.users)
	views, err := uc.Execute(context.Background(), ListRoomsInput{UserID: 3})
	require.NoError(t, err)
	require.Empty(t, views)
}
