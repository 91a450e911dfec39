package usecase

import (
	"context"
	"fmt"

	"bookmarket-chat/internal/infrastructure/metrics"
	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
)

// PostMessageInput carries the data needed to post a new message.
type PostMessageInput struct {
	RoomID   int64
	SenderID int64
	Content  string
}

// Deliver is invoked with the committed message while the room's ordering
// lock is still held, so broadcasts leave in commit order. It must not
// block on anything slower than enqueueing to connection buffers.
type Deliver func(msg chat.Message)

// PostMessageUseCase validates, persists and hands off a message for
// broadcast.
//
// Posting policy: only active participants may post. A participant who left
// gets chat.ErrNotActiveParticipant and must resolve the room again (which
// rejoins them) before posting.
type PostMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewPostMessageUseCase(repo repository.ChatRepository) *PostMessageUseCase {
	return &PostMessageUseCase{Repo: repo}
}

// Execute persists the message and invokes deliver under the room's
// ordering lock. deliver may be nil when no live fan-out is wanted.
func (uc *PostMessageUseCase) Execute(ctx context.Context, in PostMessageInput, deliver Deliver) (*chat.Message, error) {
	if in.RoomID <= 0 || in.SenderID <= 0 {
		return nil, fmt.Errorf("room_id and sender_id are required")
	}

	msg, err := chat.NewUserMessage(in.RoomID, in.SenderID, in.Content)
	if err != nil {
		return nil, err
	}

	if _, err := uc.Repo.GetRoom(ctx, in.RoomID); err != nil {
		if err == chat.ErrRoomNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	participants, err := uc.Repo.ListParticipants(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	state := chat.NewRoomState(chat.Room{ID: in.RoomID}, participants)
	if err := state.ValidatePost(in.SenderID); err != nil {
		return nil, err
	}

	// Socket handlers and queue workers post into the same rooms from
	// different processes; the repository lock orders commit+broadcast
	// across all of them.
	unlock, err := uc.Repo.LockRoomPosting(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer unlock()

	saved, err := uc.Repo.SaveMessage(ctx, msg)
	if err != nil {
		if err == chat.ErrRoomNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesPosted.WithLabelValues("user").Inc()

	// Broadcast strictly after commit, before releasing the room lock.
	if deliver != nil {
		deliver(*saved)
	}
	return saved, nil
}
