package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookmarket-chat/internal/pkg/chat/application/usecase"
	repoAdapter "bookmarket-chat/internal/pkg/chat/persistence/repository/adapter"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// ListRoomsController serves the authenticated user's room list
// (one controller per endpoint)
type ListRoomsController struct {
	UC *usecase.ListRoomsUseCase
}

func NewListRoomsController(pool *pgxpool.Pool, listings marketport.ListingCatalog, users marketport.UserDirectory) *ListRoomsController {
	repo := repoAdapter.NewPgChatRepository(pool)
	return &ListRoomsController{UC: usecase.NewListRoomsUseCase(repo, listings, users)}
}

func (h *ListRoomsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := AuthedUserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		views, err := h.UC.Execute(ctx, usecase.ListRoomsInput{UserID: userID})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"rooms": views})
	}
}
