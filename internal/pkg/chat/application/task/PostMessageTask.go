package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	qport "bookmarket-chat/internal/infrastructure/queue/port"
	"bookmarket-chat/internal/infrastructure/realtime"
	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	"bookmarket-chat/internal/pkg/chat/application/usecase"
	repoAdapter "bookmarket-chat/internal/pkg/chat/persistence/repository/adapter"
)

// PostMessageTaskType is the queue task name for posting a chat message.
const PostMessageTaskType = "chat:post_message"

// PostMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type PostMessageTaskPayload struct {
	RoomID   int64  `json:"roomId"`
	SenderID int64  `json:"senderId"`
	Content  string `json:"content"`
}

// RegisterPostMessageTask binds the task handler to the provided server.
// The handler runs the same pipeline as the socket path and publishes the
// committed message on the bus so whichever instance holds the recipients'
// connections delivers it.
func RegisterPostMessageTask(srv qport.Server, pool *pgxpool.Pool, pub *realtime.Publisher) {
	srv.Register(PostMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p PostMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return err
		}

		repo := repoAdapter.NewPgChatRepository(pool)
		uc := usecase.NewPostMessageUseCase(repo)

		// give DB a reasonable time budget per task execution
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		_, err := uc.Execute(ctx, usecase.PostMessageInput{
			RoomID:   p.RoomID,
			SenderID: p.SenderID,
			Content:  p.Content,
		}, func(msg chat.Message) {
			frame, err := json.Marshal(map[string]any{
				"type":    "message",
				"room_id": p.RoomID,
				"message": msg,
			})
			if err != nil {
				return
			}
			_ = pub.PublishRoom(ctx, p.RoomID, frame, 0)
		})
		if err != nil {
			switch err {
			case chat.ErrRoomNotFound, chat.ErrNotParticipant, chat.ErrNotActiveParticipant, chat.ErrEmptyMessage, chat.ErrMessageTooLong:
				// permanently invalid: retrying cannot help
				return nil
			}
			return err
		}
		return nil
	})
}
