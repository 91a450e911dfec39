package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	queueport "bookmarket-chat/internal/infrastructure/queue/port"
	"bookmarket-chat/internal/pkg/chat/application/task"
)

// SendMessageController handles the REST send-message endpoint only (one controller per endpoint).
// Delivery is asynchronous: the message is enqueued and the worker persists
// and fans it out, mirroring what the socket path does inline.
type SendMessageController struct {
	Q queueport.Client
}

func NewSendMessageController(client queueport.Client) *SendMessageController {
	return &SendMessageController{Q: client}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Handle returns a gin handler that enqueues a background task to post a message
func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, err := strconv.ParseInt(c.Param("roomId"), 10, 64)
		if err != nil || roomID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId must be a positive integer"})
			return
		}

		userID := AuthedUserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		payload := task.PostMessageTaskPayload{
			RoomID:   roomID,
			SenderID: userID,
			Content:  req.Content,
		}
		b, err := json.Marshal(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task payload"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		opts := queueport.EnqueueOption{Queue: "chat", MaxRetry: 20}
		id, err := h.Q.Enqueue(ctx, queueport.Task{Type: task.PostMessageTaskType, Payload: b}, opts)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue message"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":  "queued",
			"task_id": id,
			"room_id": roomID,
		})
	}
}
