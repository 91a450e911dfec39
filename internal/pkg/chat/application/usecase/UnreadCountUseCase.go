package usecase

import (
	"context"
	"fmt"

	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
)

// UnreadCountInput identifies the reader and the room.
type UnreadCountInput struct {
	RoomID int64
	UserID int64
}

// UnreadCountUseCase computes the unread predicate as a count with no side
// effects: messages in the room not sent by the user and lacking the user's
// receipt. The count is derived from the sender recorded at persistence
// time, so a later account anonymization cannot change it.
type UnreadCountUseCase struct {
	Repo repository.ChatRepository
}

func NewUnreadCountUseCase(repo repository.ChatRepository) *UnreadCountUseCase {
	return &UnreadCountUseCase{Repo: repo}
}

func (uc *UnreadCountUseCase) Execute(ctx context.Context, in UnreadCountInput) (int64, error) {
	if in.RoomID <= 0 || in.UserID <= 0 {
		return 0, fmt.Errorf("room_id and user_id are required")
	}
	count, err := uc.Repo.UnreadCount(ctx, in.RoomID, in.UserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return count, nil
}
