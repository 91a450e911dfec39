package usecase

import (
	"context"
	"fmt"

	"bookmarket-chat/internal/infrastructure/metrics"
	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
)

// MarkReadInput identifies the reader and the room.
type MarkReadInput struct {
	RoomID int64
	UserID int64
}

// MarkReadUseCase records read receipts for every not-yet-read message in
// the room that the user did not send, returning how many were newly
// marked. Idempotent: a repeat call returns 0, never an error.
//
// A participant who left may still mark history as read; only posting
// requires the active state.
type MarkReadUseCase struct {
	Repo repository.ChatRepository
}

func NewMarkReadUseCase(repo repository.ChatRepository) *MarkReadUseCase {
	return &MarkReadUseCase{Repo: repo}
}

func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (int64, error) {
	if in.RoomID <= 0 || in.UserID <= 0 {
		return 0, fmt.Errorf("room_id and user_id are required")
	}

	participants, err := uc.Repo.ListParticipants(ctx, in.RoomID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	state := chat.NewRoomState(chat.Room{ID: in.RoomID}, participants)
	if !state.HasParticipant(in.UserID) {
		return 0, chat.ErrNotParticipant
	}

	marked, err := uc.Repo.MarkRead(ctx, in.RoomID, in.UserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.ReceiptsMarked.Add(float64(marked))
	return marked, nil
}
