package chat

import "time"

// Room is a conversation scoped to exactly one marketplace listing.
// UpdatedAt is the recency sort key for room lists; it is bumped on every
// new message and on participant reactivation and must never regress.
type Room struct {
	ID        int64     `db:"id" json:"id"`
	ListingID int64     `db:"listing_id" json:"listing_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ListingSummary is the listing detail embedded in hydrated room payloads so
// callers never need a second round-trip.
type ListingSummary struct {
	ID         int64  `json:"id"`
	OwnerID    int64  `json:"owner_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	PriceCents int64  `json:"price_cents"`
}

// ParticipantView is a participant hydrated with display data.
type ParticipantView struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Active   bool   `json:"active"`
}

// RoomView is the fully hydrated room returned by the resolver and the
// room-list query.
type RoomView struct {
	Room         Room              `json:"room"`
	Listing      ListingSummary    `json:"listing"`
	Participants []ParticipantView `json:"participants"`
	LastMessage  *Message          `json:"last_message,omitempty"`
	UnreadCount  int64             `json:"unread_count"`
}
