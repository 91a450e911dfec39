package usecase

import (
	"context"
	"fmt"

	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// ListRoomsInput wraps the requesting user.
type ListRoomsInput struct {
	UserID int64
}

// ListRoomsUseCase returns the user's rooms in recency order, hydrated with
// participants, listing detail, last message and unread count, so the room
// list renders in one round-trip.
type ListRoomsUseCase struct {
	Repo     repository.ChatRepository
	Listings marketport.ListingCatalog
	Users    marketport.UserDirectory
}

func NewListRoomsUseCase(repo repository.ChatRepository, listings marketport.ListingCatalog, users marketport.UserDirectory) *ListRoomsUseCase {
	return &ListRoomsUseCase{Repo: repo, Listings: listings, Users: users}
}

func (uc *ListRoomsUseCase) Execute(ctx context.Context, in ListRoomsInput) ([]chat.RoomView, error) {
	if in.UserID <= 0 {
		return nil, fmt.Errorf("user_id is required")
	}

	entries, err := uc.Repo.ListRoomsForUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	views := make([]chat.RoomView, 0, len(entries))
	for _, entry := range entries {
		view := chat.RoomView{Room: entry.Room, LastMessage: entry.LastMessage}

		if listing, err := uc.Listings.FindListingByID(ctx, entry.Room.ListingID); err == nil && listing != nil {
			view.Listing = chat.ListingSummary{
				ID:         listing.ID,
				OwnerID:    listing.OwnerID,
				Title:      listing.Title,
				Author:     listing.Author,
				PriceCents: listing.PriceCents,
			}
		}

		participants, err := uc.Repo.ListParticipants(ctx, entry.Room.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		for _, p := range participants {
			view.Participants = append(view.Participants, chat.ParticipantView{
				UserID:   p.UserID,
				Nickname: marketport.NicknameOrUnknown(ctx, uc.Users, p.UserID),
				Active:   p.Active,
			})
		}

		unread, err := uc.Repo.UnreadCount(ctx, entry.Room.ID, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		view.UnreadCount = unread

		views = append(views, view)
	}
	return views, nil
}
