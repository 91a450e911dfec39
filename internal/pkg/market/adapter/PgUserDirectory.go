package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookmarket-chat/internal/pkg/market/port"
)

// PgUserDirectory reads user display data from the marketplace tables.
type PgUserDirectory struct {
	pool *pgxpool.Pool
}

func NewPgUserDirectory(pool *pgxpool.Pool) *PgUserDirectory {
	return &PgUserDirectory{pool: pool}
}

// Ensure interface compliance at compile time
var _ port.UserDirectory = (*PgUserDirectory)(nil)

func (r *PgUserDirectory) FindUserByID(ctx context.Context, id int64) (*port.User, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgUserDirectory: nil pool")
	}
	u := &port.User{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, nickname FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Nickname)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
