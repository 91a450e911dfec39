package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	"bookmarket-chat/internal/pkg/chat/application/usecase"
	repoAdapter "bookmarket-chat/internal/pkg/chat/persistence/repository/adapter"
)

// GetMessageController handles fetching message history by room ID (one controller per endpoint)
type GetMessageController struct {
	UC *usecase.GetMessageUseCase
}

func NewGetMessageController(pool *pgxpool.Pool) *GetMessageController {
	repo := repoAdapter.NewPgChatRepository(pool)
	return &GetMessageController{UC: usecase.NewGetMessageUseCase(repo)}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
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

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetMessageInput{
			RoomID:      roomID,
			RequesterID: userID,
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrNotParticipant):
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			case errors.Is(err, usecase.ErrPersistence):
				c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected persistence error"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"room_id": roomID, "messages": msgs})
	}
}
