package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookmarket-chat/internal/pkg/market/port"
)

// PgListingCatalog reads listings from the marketplace tables. The chat
// subsystem only ever reads them.
type PgListingCatalog struct {
	pool *pgxpool.Pool
}

func NewPgListingCatalog(pool *pgxpool.Pool) *PgListingCatalog {
	return &PgListingCatalog{pool: pool}
}

// Ensure interface compliance at compile time
var _ port.ListingCatalog = (*PgListingCatalog)(nil)

func (r *PgListingCatalog) FindListingByID(ctx context.Context, id int64) (*port.Listing, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgListingCatalog: nil pool")
	}
	l := &port.Listing{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, author, price_cents
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.OwnerID, &l.Title, &l.Author, &l.PriceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}
