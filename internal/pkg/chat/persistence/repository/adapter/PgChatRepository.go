package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

// Ensure interface compliance at compile time
var _ repository.ChatRepository = (*PgChatRepository)(nil)

const uniqueViolation = "23505"

func (r *PgChatRepository) FindRoomByListingAndBuyer(ctx context.Context, listingID, ownerID, buyerID int64) (*chat.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	return findRoomByListingAndBuyer(ctx, r.pool, listingID, ownerID, buyerID)
}

// querier lets room lookups run on the pool or inside a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findRoomByListingAndBuyer(ctx context.Context, q querier, listingID, ownerID, buyerID int64) (*chat.Room, error) {
	room := &chat.Room{}
	// One participant join per side of the conversation.
	err := q.QueryRow(ctx, `
		SELECT r.id, r.listing_id, r.created_at, r.updated_at
		FROM chat.room r
		JOIN chat.participant po ON po.room_id = r.id AND po.user_id = $2
		JOIN chat.participant pb ON pb.room_id = r.id AND pb.user_id = $3
		WHERE r.listing_id = $1
	`, listingID, ownerID, buyerID).Scan(&room.ID, &room.ListingID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// CreateRoomWithParticipants creates the room and both participant rows in
// one transaction. An advisory transaction lock keyed on (listing, buyer)
// serializes concurrent resolves for the same pair; after taking it the
// existence check is repeated so the loser of a race sees the winner's room
// and reports chat.ErrDuplicateRoom instead of inserting a second one.
func (r *PgChatRepository) CreateRoomWithParticipants(ctx context.Context, listingID, ownerID, buyerID int64) (*chat.Room, []chat.Participant, error) {
	if r == nil || r.pool == nil {
		return nil, nil, errors.New("PgChatRepository: nil pool")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('chat.room:' || $1::text || ':' || $2::text, 0))`,
		listingID, buyerID,
	); err != nil {
		return nil, nil, err
	}

	if existing, err := findRoomByListingAndBuyer(ctx, tx, listingID, ownerID, buyerID); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, chat.ErrDuplicateRoom
	}

	room := &chat.Room{ListingID: listingID}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat.room (listing_id, created_at, updated_at)
		VALUES ($1, now(), now())
		RETURNING id, listing_id, created_at, updated_at
	`, listingID).Scan(&room.ID, &room.ListingID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}

	participants := make([]chat.Participant, 0, 2)
	for _, userID := range []int64{ownerID, buyerID} {
		p := chat.Participant{RoomID: room.ID, UserID: userID, Active: true}
		err = tx.QueryRow(ctx, `
			INSERT INTO chat.participant (room_id, user_id, active)
			VALUES ($1, $2, TRUE)
			RETURNING id
		`, room.ID, userID).Scan(&p.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, nil, chat.ErrDuplicateRoom
			}
			return nil, nil, err
		}
		participants = append(participants, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return room, participants, nil
}

func (r *PgChatRepository) GetRoom(ctx context.Context, roomID int64) (*chat.Room, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	room := &chat.Room{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, listing_id, created_at, updated_at
		FROM chat.room WHERE id = $1
	`, roomID).Scan(&room.ID, &room.ListingID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (r *PgChatRepository) ListParticipants(ctx context.Context, roomID int64) ([]chat.Participant, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, user_id, active
		FROM chat.participant
		WHERE room_id = $1
		ORDER BY id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []chat.Participant
	for rows.Next() {
		var p chat.Participant
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.Active); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *PgChatRepository) SetParticipantActive(ctx context.Context, roomID, userID int64, active bool) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE chat.participant
		SET active = $3
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return chat.ErrNotParticipant
	}

	if active {
		// Reactivation is a recency event; GREATEST keeps updated_at monotone.
		if _, err := tx.Exec(ctx, `
			UPDATE chat.room SET updated_at = GREATEST(updated_at, now()) WHERE id = $1
		`, roomID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// LockRoomPosting takes a session-level advisory lock keyed on the room.
// Unlike the transaction-scoped lock used during room creation, this one
// must outlive the insert's transaction: the caller holds it from commit
// through the bus publish, so two posts cannot publish out of commit order
// even when they run in different processes. The lock lives on a dedicated
// pooled connection because session locks are connection-bound.
func (r *PgChatRepository) LockRoomPosting(ctx context.Context, roomID int64) (func(), error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, `
		SELECT pg_advisory_lock(hashtextextended('chat.room.post:' || $1::text, 0))
	`, roomID); err != nil {
		conn.Release()
		return nil, err
	}
	release := func() {
		// Unlock on a fresh context: the request's context may already be
		// canceled, and losing the unlock would wedge the room.
		_, _ = conn.Exec(context.Background(), `
			SELECT pg_advisory_unlock(hashtextextended('chat.room.post:' || $1::text, 0))
		`, roomID)
		conn.Release()
	}
	return release, nil
}

// SaveMessage persists the message and bumps the room's recency marker in
// the same transaction, so a room can never look stale after a message
// commits.
func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := m
	err = tx.QueryRow(ctx, `
		INSERT INTO chat.message (room_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`, m.RoomID, m.SenderID, m.Content).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, chat.ErrRoomNotFound
		}
		return nil, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE chat.room SET updated_at = GREATEST(updated_at, $2) WHERE id = $1
	`, m.RoomID, saved.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, chat.ErrRoomNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *PgChatRepository) GetMessagesByRoom(ctx context.Context, roomID int64, limit, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, sender_id, content, created_at
		FROM chat.message
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *PgChatRepository) MarkRead(ctx context.Context, roomID, userID int64) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgChatRepository: nil pool")
	}
	// Receipt rows key on the message's stored sender_id, so a later account
	// anonymization cannot retroactively change unread totals.
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO chat.read_receipt (message_id, user_id)
		SELECT m.id, $2
		FROM chat.message m
		WHERE m.room_id = $1
		  AND (m.sender_id IS NULL OR m.sender_id <> $2)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, roomID, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgChatRepository) UnreadCount(ctx context.Context, roomID, userID int64) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgChatRepository: nil pool")
	}
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM chat.message m
		WHERE m.room_id = $1
		  AND (m.sender_id IS NULL OR m.sender_id <> $2)
		  AND NOT EXISTS (
			SELECT 1 FROM chat.read_receipt rr
			WHERE rr.message_id = m.id AND rr.user_id = $2
		  )
	`, roomID, userID).Scan(&count)
	return count, err
}

func (r *PgChatRepository) ListRoomsForUser(ctx context.Context, userID int64) ([]repository.RoomListEntry, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.listing_id, r.created_at, r.updated_at,
		       lm.id, lm.sender_id, lm.content, lm.created_at
		FROM chat.room r
		JOIN chat.participant p ON p.room_id = r.id AND p.user_id = $1
		LEFT JOIN LATERAL (
			SELECT m.id, m.sender_id, m.content, m.created_at
			FROM chat.message m
			WHERE m.room_id = r.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) lm ON TRUE
		ORDER BY r.updated_at DESC, r.id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []repository.RoomListEntry
	for rows.Next() {
		var (
			entry     repository.RoomListEntry
			msgID     *int64
			senderID  *int64
			content   *string
			createdAt *time.Time
		)
		if err := rows.Scan(
			&entry.Room.ID, &entry.Room.ListingID, &entry.Room.CreatedAt, &entry.Room.UpdatedAt,
			&msgID, &senderID, &content, &createdAt,
		); err != nil {
			return nil, err
		}
		if msgID != nil {
			entry.LastMessage = &chat.Message{
				ID:        *msgID,
				RoomID:    entry.Room.ID,
				SenderID:  senderID,
				Content:   derefString(content),
				CreatedAt: *createdAt,
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *PgChatRepository) RoomIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT room_id FROM chat.participant WHERE user_id = $1 AND active ORDER BY room_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
