package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bookmarket-chat/internal/infrastructure/auth"
	"bookmarket-chat/internal/infrastructure/metrics"
	"bookmarket-chat/internal/infrastructure/realtime"
	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	"bookmarket-chat/internal/pkg/chat/application/usecase"
	repoAdapter "bookmarket-chat/internal/pkg/chat/persistence/repository/adapter"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
type ChatSocketController struct {
	registry *realtime.Registry
	bridge   *realtime.Bridge
	verifier *auth.TokenVerifier
	log      zerolog.Logger

	resolveUC   *usecase.ResolveRoomUseCase
	postUC      *usecase.PostMessageUseCase
	leaveUC     *usecase.LeaveRoomUseCase
	markReadUC  *usecase.MarkReadUseCase
	joinRoomsUC *usecase.JoinRoomsUseCase

	inflightTimeout time.Duration
}

// SocketDeps wires the controller's collaborators.
type SocketDeps struct {
	Pool     *pgxpool.Pool
	Registry *realtime.Registry
	Bridge   *realtime.Bridge
	Verifier *auth.TokenVerifier
	Listings marketport.ListingCatalog
	Users    marketport.UserDirectory
	Logger   zerolog.Logger
}

func NewChatSocketController(deps SocketDeps) *ChatSocketController {
	repo := repoAdapter.NewPgChatRepository(deps.Pool)
	return &ChatSocketController{
		registry:        deps.Registry,
		bridge:          deps.Bridge,
		verifier:        deps.Verifier,
		log:             deps.Logger.With().Str("component", "chat_socket").Logger(),
		resolveUC:       usecase.NewResolveRoomUseCase(repo, deps.Listings, deps.Users),
		postUC:          usecase.NewPostMessageUseCase(repo),
		leaveUC:         usecase.NewLeaveRoomUseCase(repo, deps.Users),
		markReadUC:      usecase.NewMarkReadUseCase(repo),
		joinRoomsUC:     usecase.NewJoinRoomsUseCase(repo),
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The marketplace UI and the chat API share an origin in production;
		// cross-origin checks happen at the edge proxy.
		return true
	},
}

type inboundFrame struct {
	Type      string  `json:"type"`
	ListingID int64   `json:"listing_id,omitempty"`
	RoomID    int64   `json:"room_id,omitempty"`
	RoomIDs   []int64 `json:"room_ids,omitempty"`
	Content   string  `json:"content,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id,omitempty"`
	Marked int64  `json:"marked,omitempty"`
}

type connectedFrame struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
}

type roomFrame struct {
	Type string        `json:"type"`
	Room chat.RoomView `json:"room"`
}

type messageFrame struct {
	Type    string       `json:"type"`
	RoomID  int64        `json:"room_id"`
	Message chat.Message `json:"message"`
}

type typingFrame struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"room_id"`
	Nickname string `json:"nickname"`
	IsTyping bool   `json:"is_typing"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket, authenticates the token and
// processes frames until the client disconnects. Authentication failure is
// the only connection-fatal error; room-scoped failures answer the single
// frame and leave the connection open.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			ctl.log.Debug().Err(err).Msg("upgrade failed")
			return
		}

		identity, err := ctl.verifier.Verify(c.Query("token"))
		if err != nil {
			// Explicit error frame before the close; never a half-registered state.
			frame, _ := json.Marshal(errorFrame{Type: "error", Code: "authentication_failed", Error: "invalid or expired token"})
			_ = ws.WriteMessage(websocket.TextMessage, frame)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"),
				time.Now().Add(time.Second))
			_ = ws.Close()
			return
		}

		conn := realtime.NewConnection(identity.UserID, ws)
		ctl.registry.Attach(conn)
		defer func() {
			ctl.registry.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		if payload, err := json.Marshal(connectedFrame{Type: "connected", UserID: identity.UserID}); err == nil {
			_ = conn.Send(payload)
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "resolve_room":
				ctl.handleResolve(c, conn, identity, frame)
			case "message":
				ctl.handleMessage(c, conn, identity, frame)
			case "join_rooms":
				ctl.handleJoinRooms(c, conn, frame)
			case "leave":
				ctl.handleLeave(c, conn, identity, frame)
			case "mark_read":
				ctl.handleMarkRead(c, conn, frame)
			case "typing_start":
				ctl.handleTyping(c, conn, identity, frame, true)
			case "typing_stop":
				ctl.handleTyping(c, conn, identity, frame, false)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) handleResolve(c *gin.Context, conn *realtime.Connection, identity *auth.Identity, frame inboundFrame) {
	if frame.ListingID == 0 {
		ctl.replyError(conn, "bad_request", "listing_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	result, err := ctl.resolveUC.Execute(ctx, usecase.ResolveRoomInput{
		ListingID:   frame.ListingID,
		RequesterID: identity.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	roomID := result.View.Room.ID
	ctl.registry.Join(roomID, conn)
	ctl.registry.JoinUser(roomID, result.OwnerID)

	// Rejoin narration reaches the room before the resolve ack.
	for _, sysMsg := range result.Reactivated {
		if payload, err := json.Marshal(messageFrame{Type: "user_rejoined", RoomID: roomID, Message: sysMsg}); err == nil {
			ctl.bridge.BroadcastRoom(ctx, roomID, payload, 0)
		}
	}

	if result.Created {
		// Only the non-initiating side learns about the new room this way.
		if payload, err := json.Marshal(roomFrame{Type: "new_chat_room", Room: result.View}); err == nil {
			ctl.bridge.NotifyUser(ctx, result.OwnerID, payload)
		}
	}

	if payload, err := json.Marshal(roomFrame{Type: "resolved", Room: result.View}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, identity *auth.Identity, frame inboundFrame) {
	if frame.RoomID == 0 {
		ctl.replyError(conn, "bad_request", "room_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	saved, err := ctl.postUC.Execute(ctx, usecase.PostMessageInput{
		RoomID:   frame.RoomID,
		SenderID: identity.UserID,
		Content:  frame.Content,
	}, func(msg chat.Message) {
		// Everyone gets the frame, sender echo included, for optimistic-UI
		// reconciliation.
		if payload, err := json.Marshal(messageFrame{Type: "message", RoomID: frame.RoomID, Message: msg}); err == nil {
			ctl.bridge.BroadcastRoom(ctx, frame.RoomID, payload, 0)
		}
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	if payload, err := json.Marshal(messageFrame{Type: "message_ack", RoomID: frame.RoomID, Message: *saved}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) handleJoinRooms(c *gin.Context, conn *realtime.Connection, frame inboundFrame) {
	if len(frame.RoomIDs) == 0 {
		ctl.replyError(conn, "bad_request", "room_ids is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	joinable, err := ctl.joinRoomsUC.Execute(ctx, usecase.JoinRoomsInput{
		UserID:  conn.UserID,
		RoomIDs: frame.RoomIDs,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	for _, roomID := range joinable {
		ctl.registry.Join(roomID, conn)
	}

	if payload, err := json.Marshal(ackFrame{Type: "joined"}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) handleLeave(c *gin.Context, conn *realtime.Connection, identity *auth.Identity, frame inboundFrame) {
	if frame.RoomID == 0 {
		ctl.replyError(conn, "bad_request", "room_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	sysMsg, err := ctl.leaveUC.Execute(ctx, usecase.LeaveRoomInput{
		RoomID: frame.RoomID,
		UserID: identity.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	// Narrate first so the leaver sees their own departure, then drop the
	// connection from this room's broadcast group only.
	if payload, err := json.Marshal(messageFrame{Type: "user_left", RoomID: frame.RoomID, Message: *sysMsg}); err == nil {
		ctl.bridge.BroadcastRoom(ctx, frame.RoomID, payload, 0)
	}
	ctl.registry.Leave(frame.RoomID, conn)

	if payload, err := json.Marshal(ackFrame{Type: "left", RoomID: frame.RoomID}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) handleMarkRead(c *gin.Context, conn *realtime.Connection, frame inboundFrame) {
	if frame.RoomID == 0 {
		ctl.replyError(conn, "bad_request", "room_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	marked, err := ctl.markReadUC.Execute(ctx, usecase.MarkReadInput{
		RoomID: frame.RoomID,
		UserID: conn.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	if payload, err := json.Marshal(ackFrame{Type: "read_marked", RoomID: frame.RoomID, Marked: marked}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) handleTyping(c *gin.Context, conn *realtime.Connection, identity *auth.Identity, frame inboundFrame, isTyping bool) {
	if frame.RoomID == 0 {
		return // ephemeral: not worth an error round-trip
	}
	if !ctl.registry.InRoom(frame.RoomID, conn) {
		// Only connections joined to the room group (which requires a
		// membership-checked resolve or join_rooms) may relay typing.
		return
	}
	metrics.TypingSignals.Inc()

	payload, err := json.Marshal(typingFrame{
		Type:     "typing",
		RoomID:   frame.RoomID,
		Nickname: identity.Nickname,
		IsTyping: isTyping,
	})
	if err != nil {
		return
	}
	ctl.bridge.BroadcastRoom(c.Request.Context(), frame.RoomID, payload, identity.UserID)
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		ctl.replyError(conn, "internal_error", "unexpected persistence error")
	case errors.Is(err, chat.ErrListingNotFound), errors.Is(err, chat.ErrRoomNotFound):
		ctl.replyError(conn, "not_found", err.Error())
	case errors.Is(err, chat.ErrSelfChat), errors.Is(err, chat.ErrNotParticipant), errors.Is(err, chat.ErrNotActiveParticipant):
		ctl.replyError(conn, "forbidden", err.Error())
	default:
		ctl.replyError(conn, "bad_request", err.Error())
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string) {
	frame := errorFrame{
		Type:  "error",
		Code:  code,
		Error: message,
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
