package chat

// Participant captures a user's membership in a room.
// Uniqueness: at most one row per (RoomID, UserID). Leaving a room never
// deletes the row; it flips Active to false so message history and read
// receipts survive and a later rejoin reuses the same row.
type Participant struct {
	ID     int64 `db:"id"`
	RoomID int64 `db:"room_id"`
	UserID int64 `db:"user_id"`
	Active bool  `db:"active"`
}
