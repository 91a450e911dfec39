package chat

import "errors"

// Domain-level errors for chat behaviors
var (
	ErrListingNotFound      = errors.New("chat: listing does not exist")
	ErrRoomNotFound         = errors.New("chat: room does not exist")
	ErrSelfChat             = errors.New("chat: cannot open a chat on your own listing")
	ErrNotParticipant       = errors.New("chat: user is not a participant in the room")
	ErrNotActiveParticipant = errors.New("chat: user has left the room")
	ErrEmptyMessage         = errors.New("chat: empty message")
	ErrMessageTooLong       = errors.New("chat: message exceeds length limit")
	ErrDuplicateRoom        = errors.New("chat: a room for this listing and buyer already exists")
)
