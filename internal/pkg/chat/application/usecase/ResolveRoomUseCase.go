package usecase

import (
	"context"
	"errors"
	"fmt"

	"bookmarket-chat/internal/infrastructure/metrics"
	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// ResolveRoomInput identifies the listing the requester wants to chat about.
type ResolveRoomInput struct {
	ListingID   int64
	RequesterID int64
}

// ResolveRoomResult is the hydrated outcome. Created is true when this call
// made the room; Reactivated carries the persisted "rejoined" system
// messages (one per previously-left participant) that the caller must
// broadcast to the room before replying.
type ResolveRoomResult struct {
	View        chat.RoomView
	Created     bool
	OwnerID     int64
	Reactivated []chat.Message
}

// ResolveRoomUseCase finds the room for a (listing, buyer) pair or creates
// it atomically, reactivating previously-left participants on the way.
// Hexagonal: depends on repository and collaborator ports only.
// One class per use case (own file)
type ResolveRoomUseCase struct {
	Repo     repository.ChatRepository
	Listings marketport.ListingCatalog
	Users    marketport.UserDirectory
}

func NewResolveRoomUseCase(repo repository.ChatRepository, listings marketport.ListingCatalog, users marketport.UserDirectory) *ResolveRoomUseCase {
	return &ResolveRoomUseCase{Repo: repo, Listings: listings, Users: users}
}

func (uc *ResolveRoomUseCase) Execute(ctx context.Context, in ResolveRoomInput) (*ResolveRoomResult, error) {
	if in.ListingID <= 0 || in.RequesterID <= 0 {
		return nil, fmt.Errorf("listing_id and requester_id are required")
	}

	listing, err := uc.Listings.FindListingByID(ctx, in.ListingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if listing == nil {
		return nil, chat.ErrListingNotFound
	}
	if listing.OwnerID == in.RequesterID {
		return nil, chat.ErrSelfChat
	}

	room, err := uc.Repo.FindRoomByListingAndBuyer(ctx, in.ListingID, listing.OwnerID, in.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	result := &ResolveRoomResult{OwnerID: listing.OwnerID}

	var participants []chat.Participant
	switch {
	case room == nil:
		room, participants, err = uc.Repo.CreateRoomWithParticipants(ctx, in.ListingID, listing.OwnerID, in.RequesterID)
		if errors.Is(err, chat.ErrDuplicateRoom) {
			// lost a concurrent race: the winner's room exists now
			room, err = uc.Repo.FindRoomByListingAndBuyer(ctx, in.ListingID, listing.OwnerID, in.RequesterID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			if room == nil {
				return nil, chat.ErrRoomNotFound
			}
			participants, err = uc.reactivate(ctx, room, &result.Reactivated)
			if err != nil {
				return nil, err
			}
			metrics.RoomsResolved.WithLabelValues("existing").Inc()
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		} else {
			result.Created = true
			metrics.RoomsResolved.WithLabelValues("created").Inc()
		}
	default:
		participants, err = uc.reactivate(ctx, room, &result.Reactivated)
		if err != nil {
			return nil, err
		}
		if len(result.Reactivated) > 0 {
			metrics.RoomsResolved.WithLabelValues("reactivated").Inc()
		} else {
			metrics.RoomsResolved.WithLabelValues("existing").Inc()
		}
	}

	// Re-read so updated_at reflects any reactivation bump.
	if !result.Created && len(result.Reactivated) > 0 {
		if refreshed, err := uc.Repo.GetRoom(ctx, room.ID); err == nil {
			room = refreshed
		}
	}

	result.View = chat.RoomView{
		Room: *room,
		Listing: chat.ListingSummary{
			ID:         listing.ID,
			OwnerID:    listing.OwnerID,
			Title:      listing.Title,
			Author:     listing.Author,
			PriceCents: listing.PriceCents,
		},
		Participants: uc.hydrate(ctx, participants),
	}
	return result, nil
}

// reactivate flips every left participant back to active and persists one
// "rejoined" system message each, in participant order.
func (uc *ResolveRoomUseCase) reactivate(ctx context.Context, room *chat.Room, out *[]chat.Message) ([]chat.Participant, error) {
	participants, err := uc.Repo.ListParticipants(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	state := chat.NewRoomState(*room, participants)
	for i, p := range participants {
		if p.Active {
			continue
		}
		nickname := marketport.NicknameOrUnknown(ctx, uc.Users, p.UserID)
		sysMsg, changed, err := state.Rejoin(p.UserID, nickname)
		if err != nil || !changed {
			continue
		}
		if err := uc.Repo.SetParticipantActive(ctx, room.ID, p.UserID, true); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		saved, err := uc.Repo.SaveMessage(ctx, sysMsg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		metrics.MessagesPosted.WithLabelValues("system").Inc()
		participants[i].Active = true
		*out = append(*out, *saved)
	}
	return participants, nil
}

func (uc *ResolveRoomUseCase) hydrate(ctx context.Context, participants []chat.Participant) []chat.ParticipantView {
	views := make([]chat.ParticipantView, 0, len(participants))
	for _, p := range participants {
		views = append(views, chat.ParticipantView{
			UserID:   p.UserID,
			Nickname: marketport.NicknameOrUnknown(ctx, uc.Users, p.UserID),
			Active:   p.Active,
		})
	}
	return views
}
