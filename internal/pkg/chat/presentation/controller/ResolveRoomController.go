package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bookmarket-chat/internal/infrastructure/realtime"
	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	"bookmarket-chat/internal/pkg/chat/application/usecase"
	repoAdapter "bookmarket-chat/internal/pkg/chat/persistence/repository/adapter"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// ResolveRoomController exposes room resolution over REST for clients that
// have not opened a socket yet (one controller per endpoint).
type ResolveRoomController struct {
	UC     *usecase.ResolveRoomUseCase
	Bridge *realtime.Bridge
	log    zerolog.Logger
}

func NewResolveRoomController(pool *pgxpool.Pool, bridge *realtime.Bridge, listings marketport.ListingCatalog, users marketport.UserDirectory, log zerolog.Logger) *ResolveRoomController {
	repo := repoAdapter.NewPgChatRepository(pool)
	return &ResolveRoomController{
		UC:     usecase.NewResolveRoomUseCase(repo, listings, users),
		Bridge: bridge,
		log:    log.With().Str("component", "resolve_room").Logger(),
	}
}

type resolveRoomRequest struct {
	ListingID int64 `json:"listing_id" binding:"required"`
}

func (h *ResolveRoomController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := AuthedUserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		var req resolveRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		result, err := h.UC.Execute(ctx, usecase.ResolveRoomInput{
			ListingID:   req.ListingID,
			RequesterID: userID,
		})
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrListingNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, chat.ErrSelfChat):
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			case errors.Is(err, usecase.ErrPersistence):
				c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected persistence error"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		roomID := result.View.Room.ID
		h.Bridge.JoinUser(roomID, userID)
		h.Bridge.JoinUser(roomID, result.OwnerID)

		for _, sysMsg := range result.Reactivated {
			if payload, err := json.Marshal(gin.H{"type": "user_rejoined", "room_id": roomID, "message": sysMsg}); err == nil {
				h.Bridge.BroadcastRoom(ctx, roomID, payload, 0)
			}
		}
		if result.Created {
			if payload, err := json.Marshal(gin.H{"type": "new_chat_room", "room": result.View}); err == nil {
				h.Bridge.NotifyUser(ctx, result.OwnerID, payload)
			}
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"room": result.View})
	}
}
