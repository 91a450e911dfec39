package usecase

import (
	"context"
	"fmt"

	"bookmarket-chat/internal/infrastructure/metrics"
	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// LeaveRoomInput identifies who is leaving which room.
type LeaveRoomInput struct {
	RoomID int64
	UserID int64
}

// LeaveRoomUseCase applies the Active -> Left membership transition and
// persists the system message narrating it. The caller broadcasts the
// returned message and detaches the leaver's connection from the room's
// broadcast group only; other rooms stay live.
type LeaveRoomUseCase struct {
	Repo  repository.ChatRepository
	Users marketport.UserDirectory
}

func NewLeaveRoomUseCase(repo repository.ChatRepository, users marketport.UserDirectory) *LeaveRoomUseCase {
	return &LeaveRoomUseCase{Repo: repo, Users: users}
}

func (uc *LeaveRoomUseCase) Execute(ctx context.Context, in LeaveRoomInput) (*chat.Message, error) {
	if in.RoomID <= 0 || in.UserID <= 0 {
		return nil, fmt.Errorf("room_id and user_id are required")
	}

	room, err := uc.Repo.GetRoom(ctx, in.RoomID)
	if err != nil {
		if err == chat.ErrRoomNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	participants, err := uc.Repo.ListParticipants(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	state := chat.NewRoomState(*room, participants)
	nickname := marketport.NicknameOrUnknown(ctx, uc.Users, in.UserID)
	sysMsg, err := state.Leave(in.UserID, nickname)
	if err != nil {
		return nil, err
	}

	if err := uc.Repo.SetParticipantActive(ctx, in.RoomID, in.UserID, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	saved, err := uc.Repo.SaveMessage(ctx, sysMsg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesPosted.WithLabelValues("system").Inc()
	return saved, nil
}
