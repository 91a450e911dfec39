package repository

import (
	"context"

	chat "bookmarket-chat/internal/pkg/chat/application/domain"
)

// RoomListEntry is a room plus its most recent message, as needed by the
// recency-ordered room list. Unread counts are computed separately per user.
type RoomListEntry struct {
	Room        chat.Room
	LastMessage *chat.Message
}

// ChatRepository defines persistence operations for the chat domain.
//
// Transactional contracts:
//   - CreateRoomWithParticipants creates the room and both participant rows
//     in a single transaction, serialized per (listing, buyer) so concurrent
//     resolves cannot create two rooms. A lost race surfaces as
//     chat.ErrDuplicateRoom and the caller re-resolves.
//   - SaveMessage inserts the message and bumps the room's updated_at in the
//     same transaction; updated_at never regresses.
type ChatRepository interface {
	FindRoomByListingAndBuyer(ctx context.Context, listingID, ownerID, buyerID int64) (*chat.Room, error)
	CreateRoomWithParticipants(ctx context.Context, listingID, ownerID, buyerID int64) (*chat.Room, []chat.Participant, error)
	GetRoom(ctx context.Context, roomID int64) (*chat.Room, error)

	ListParticipants(ctx context.Context, roomID int64) ([]chat.Participant, error)
	// SetParticipantActive flips the active flag. Activation also bumps the
	// room's updated_at (reactivation is a recency event); deactivation does not.
	SetParticipantActive(ctx context.Context, roomID, userID int64, active bool) error

	// LockRoomPosting serializes message commit+broadcast for the room
	// across every process posting into it (socket handlers and queue
	// workers alike), so frames leave in commit order fleet-wide. The
	// returned release must be called once the broadcast is out.
	LockRoomPosting(ctx context.Context, roomID int64) (release func(), err error)

	SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error)
	GetMessagesByRoom(ctx context.Context, roomID int64, limit, offset int) ([]chat.Message, error)

	// MarkRead inserts receipts for every message in the room not sent by the
	// user and not yet receipted, returning how many were newly marked.
	// Idempotent: a second call returns 0.
	MarkRead(ctx context.Context, roomID, userID int64) (int64, error)
	UnreadCount(ctx context.Context, roomID, userID int64) (int64, error)

	ListRoomsForUser(ctx context.Context, userID int64) ([]RoomListEntry, error)
	// RoomIDsForUser returns the rooms where the user is an active
	// participant; left rooms are excluded because live broadcasts only
	// reach active members.
	RoomIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}
