package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bookmarket-chat/internal/infrastructure/auth"
	qport "bookmarket-chat/internal/infrastructure/queue/port"
	"bookmarket-chat/internal/infrastructure/realtime"
	"bookmarket-chat/internal/pkg/chat/presentation/controller"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// Deps bundles everything the chat endpoints need. The caller owns the
// lifecycle of each collaborator; this layer only wires routes.
type Deps struct {
	Pool     *pgxpool.Pool
	Queue    qport.Client
	Registry *realtime.Registry
	Bridge   *realtime.Bridge
	Verifier *auth.TokenVerifier
	Listings marketport.ListingCatalog
	Users    marketport.UserDirectory
	Logger   zerolog.Logger
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, deps Deps) {
	listCtl := controller.NewListRoomsController(deps.Pool, deps.Listings, deps.Users)
	resolveCtl := controller.NewResolveRoomController(deps.Pool, deps.Bridge, deps.Listings, deps.Users, deps.Logger)
	sendMsgCtl := controller.NewSendMessageController(deps.Queue)
	getMsgCtl := controller.NewGetMessageController(deps.Pool)
	socketCtl := controller.NewChatSocketController(controller.SocketDeps{
		Pool:     deps.Pool,
		Registry: deps.Registry,
		Bridge:   deps.Bridge,
		Verifier: deps.Verifier,
		Listings: deps.Listings,
		Users:    deps.Users,
		Logger:   deps.Logger,
	})

	authed := g.Group("", controller.RequireAuth(deps.Verifier))

	// GET /api/v1/rooms -> list the caller's rooms, most recent first
	authed.GET("/rooms", listCtl.Handle())

	// POST /api/v1/rooms/resolve -> find-or-create the room for a listing
	authed.POST("/rooms/resolve", resolveCtl.Handle())

	// POST /api/v1/rooms/:roomId/messages -> enqueue a message into a room
	authed.POST("/rooms/:roomId/messages", sendMsgCtl.Handle())

	// GET /api/v1/rooms/:roomId/messages -> fetch messages by room id
	authed.GET("/rooms/:roomId/messages", getMsgCtl.Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	// Token travels as a query parameter; the controller verifies it itself.
	g.GET("/chat/ws", socketCtl.Handle())
}
