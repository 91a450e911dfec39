package usecase

import (
	"context"
	"fmt"

	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
)

// GetMessageInput carries parameters to fetch messages of a room.
type GetMessageInput struct {
	RoomID      int64
	RequesterID int64
	Limit       int
	Offset      int
}

// GetMessageUseCase fetches message history for a room. Only participants
// (active or left) may read; history survives leaving.
// One class per use case (own file)
type GetMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessageUseCase(repo repository.ChatRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

// Execute returns messages for the room honoring limit/offset, newest first.
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.Message, error) {
	if in.RoomID <= 0 {
		return nil, fmt.Errorf("room_id is required")
	}

	participants, err := uc.Repo.ListParticipants(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	state := chat.NewRoomState(chat.Room{ID: in.RoomID}, participants)
	if !state.HasParticipant(in.RequesterID) {
		return nil, chat.ErrNotParticipant
	}

	msgs, err := uc.Repo.GetMessagesByRoom(ctx, in.RoomID, in.Limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}
