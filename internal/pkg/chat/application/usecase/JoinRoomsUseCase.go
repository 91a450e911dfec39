package usecase

import (
	"context"
	"fmt"

	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
)

// JoinRoomsInput validates a request to attach a user session to room
// broadcast groups, typically after reconnect or app resume.
type JoinRoomsInput struct {
	UserID  int64
	RoomIDs []int64
}

// JoinRoomsUseCase filters the requested room IDs down to those the user is
// actually a member of; the caller attaches the connection to the survivors.
// Unknown or foreign room IDs are silently dropped rather than erroring the
// whole batch.
type JoinRoomsUseCase struct {
	Repo repository.ChatRepository
}

func NewJoinRoomsUseCase(repo repository.ChatRepository) *JoinRoomsUseCase {
	return &JoinRoomsUseCase{Repo: repo}
}

func (uc *JoinRoomsUseCase) Execute(ctx context.Context, in JoinRoomsInput) ([]int64, error) {
	if in.UserID <= 0 {
		return nil, fmt.Errorf("user_id is required")
	}
	if len(in.RoomIDs) == 0 {
		return nil, nil
	}

	memberOf, err := uc.Repo.RoomIDsForUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	allowed := make(map[int64]struct{}, len(memberOf))
	for _, id := range memberOf {
		allowed[id] = struct{}{}
	}

	var joinable []int64
	seen := make(map[int64]struct{}, len(in.RoomIDs))
	for _, id := range in.RoomIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := allowed[id]; ok {
			joinable = append(joinable, id)
		}
	}
	return joinable, nil
}
