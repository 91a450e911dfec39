package chat

// ReadReceipt records that one user has read one message.
// Uniqueness: at most one receipt per (MessageID, UserID). A message is
// unread by a user iff the user is not its sender and no receipt exists.
type ReadReceipt struct {
	ID        int64 `db:"id"`
	MessageID int64 `db:"message_id"`
	UserID    int64 `db:"user_id"`
}
