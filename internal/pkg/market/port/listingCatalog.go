package port

import "context"

// Listing is the slice of a marketplace listing the chat subsystem needs:
// ownership for the self-chat check and display detail for hydrated room
// payloads. The marketplace service owns the full entity.
type Listing struct {
	ID         int64  `db:"id" json:"id"`
	OwnerID    int64  `db:"owner_id" json:"owner_id"`
	Title      string `db:"title" json:"title"`
	Author     string `db:"author" json:"author"`
	PriceCents int64  `db:"price_cents" json:"price_cents"`
}

// ListingCatalog looks up listings for room creation and ownership checks.
// FindListingByID returns (nil, nil) when the listing does not exist.
type ListingCatalog interface {
	FindListingByID(ctx context.Context, id int64) (*Listing, error)
}
