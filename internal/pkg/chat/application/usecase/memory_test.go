package usecase

import (
	"context"
	"sync"
	"time"

	chat "bookmarket-chat/internal/pkg/chat/application/domain"
	repository "bookmarket-chat/internal/pkg/chat/persistence/repository/port"
	marketport "bookmarket-chat/internal/pkg/market/port"
)

// memoryRepo is an in-memory ChatRepository honoring the port's
// transactional contracts: room creation is serialized per (listing, buyer)
// and surfaces chat.ErrDuplicateRoom on a lost race, SaveMessage bumps
// updated_at without ever regressing it, and MarkRead is idempotent.
type memoryRepo struct {
	mu sync.Mutex

	nextRoomID int64
	nextMsgID  int64
	nextPartID int64
	now        time.Time

	rooms        map[int64]chat.Room
	roomKeys     map[[2]int64]int64 // (listingID, buyerID) -> roomID
	participants map[int64][]chat.Participant
	messages     map[int64][]chat.Message
	receipts     map[[2]int64]struct{} // (messageID, userID)
	postLocks    map[int64]*sync.Mutex
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		now:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		rooms:        make(map[int64]chat.Room),
		roomKeys:     make(map[[2]int64]int64),
		participants: make(map[int64][]chat.Participant),
		messages:     make(map[int64][]chat.Message),
		receipts:     make(map[[2]int64]struct{}),
		postLocks:    make(map[int64]*sync.Mutex),
	}
}

// tick returns a strictly increasing timestamp, standing in for the
// database clock.
func (r *memoryRepo) tick() time.Time {
	r.now = r.now.Add(time.Second)
	return r.now
}

func (r *memoryRepo) FindRoomByListingAndBuyer(_ context.Context, listingID, _, buyerID int64) (*chat.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.roomKeys[[2]int64{listingID, buyerID}]
	if !ok {
		return nil, nil
	}
	room := r.rooms[id]
	return &room, nil
}

func (r *memoryRepo) CreateRoomWithParticipants(_ context.Context, listingID, ownerID, buyerID int64) (*chat.Room, []chat.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := [2]int64{listingID, buyerID}
	if _, ok := r.roomKeys[key]; ok {
		return nil, nil, chat.ErrDuplicateRoom
	}

	r.nextRoomID++
	ts := r.tick()
	room := chat.Room{ID: r.nextRoomID, ListingID: listingID, CreatedAt: ts, UpdatedAt: ts}
	r.rooms[room.ID] = room
	r.roomKeys[key] = room.ID

	var parts []chat.Participant
	for _, uid := range []int64{ownerID, buyerID} {
		r.nextPartID++
		parts = append(parts, chat.Participant{ID: r.nextPartID, RoomID: room.ID, UserID: uid, Active: true})
	}
	r.participants[room.ID] = parts

	out := make([]chat.Participant, len(parts))
	copy(out, parts)
	return &room, out, nil
}

func (r *memoryRepo) GetRoom(_ context.Context, roomID int64) (*chat.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, chat.ErrRoomNotFound
	}
	return &room, nil
}

func (r *memoryRepo) ListParticipants(_ context.Context, roomID int64) ([]chat.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chat.Participant, len(r.participants[roomID]))
	copy(out, r.participants[roomID])
	return out, nil
}

func (r *memoryRepo) SetParticipantActive(_ context.Context, roomID, userID int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := r.participants[roomID]
	for i := range parts {
		if parts[i].UserID == userID {
			parts[i].Active = active
			if active {
				r.bumpLocked(roomID, r.tick())
			}
			return nil
		}
	}
	return chat.ErrNotParticipant
}

// LockRoomPosting plays the advisory lock's role: one mutex per room,
// shared by every use-case instance holding this repo, so it orders
// posts the way the database lock orders them across processes.
func (r *memoryRepo) LockRoomPosting(_ context.Context, roomID int64) (func(), error) {
	r.mu.Lock()
	m, ok := r.postLocks[roomID]
	if !ok {
		m = &sync.Mutex{}
		r.postLocks[roomID] = m
	}
	r.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

func (r *memoryRepo) SaveMessage(_ context.Context, m chat.Message) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[m.RoomID]; !ok {
		return nil, chat.ErrRoomNotFound
	}
	r.nextMsgID++
	m.ID = r.nextMsgID
	m.CreatedAt = r.tick()
	r.messages[m.RoomID] = append(r.messages[m.RoomID], m)
	r.bumpLocked(m.RoomID, m.CreatedAt)
	return &m, nil
}

// bumpLocked mirrors GREATEST(updated_at, ts): updated_at never regresses.
func (r *memoryRepo) bumpLocked(roomID int64, ts time.Time) {
	room := r.rooms[roomID]
	if ts.After(room.UpdatedAt) {
		room.UpdatedAt = ts
		r.rooms[roomID] = room
	}
}

func (r *memoryRepo) GetMessagesByRoom(_ context.Context, roomID int64, limit, offset int) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[roomID]
	// newest first, matching the SQL ordering
	out := make([]chat.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) MarkRead(_ context.Context, roomID, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked int64
	for _, m := range r.messages[roomID] {
		if m.SenderID != nil && *m.SenderID == userID {
			continue
		}
		key := [2]int64{m.ID, userID}
		if _, ok := r.receipts[key]; ok {
			continue
		}
		r.receipts[key] = struct{}{}
		marked++
	}
	return marked, nil
}

func (r *memoryRepo) UnreadCount(_ context.Context, roomID, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, m := range r.messages[roomID] {
		if m.SenderID != nil && *m.SenderID == userID {
			continue
		}
		if _, ok := r.receipts[[2]int64{m.ID, userID}]; ok {
			continue
		}
		count++
	}
	return count, nil
}

func (r *memoryRepo) ListRoomsForUser(_ context.Context, userID int64) ([]repository.RoomListEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []repository.RoomListEntry
	for roomID, parts := range r.participants {
		for _, p := range parts {
			if p.UserID != userID {
				continue
			}
			entry := repository.RoomListEntry{Room: r.rooms[roomID]}
			if msgs := r.messages[roomID]; len(msgs) > 0 {
				last := msgs[len(msgs)-1]
				entry.LastMessage = &last
			}
			entries = append(entries, entry)
			break
		}
	}
	// recency order, newest activity first
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Room.UpdatedAt.After(entries[j-1].Room.UpdatedAt); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries, nil
}

func (r *memoryRepo) RoomIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for roomID, parts := range r.participants {
		for _, p := range parts {
			if p.UserID == userID && p.Active {
				ids = append(ids, roomID)
				break
			}
		}
	}
	return ids, nil
}

var _ repository.ChatRepository = (*memoryRepo)(nil)

// memoryCatalog serves listings from a fixed map.
type memoryCatalog struct {
	listings map[int64]marketport.Listing
}

func (c *memoryCatalog) FindListingByID(_ context.Context, id int64) (*marketport.Listing, error) {
	l, ok := c.listings[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// memoryDirectory serves nicknames from a fixed map; unknown IDs resolve to
// nil the way the pg adapter does.
type memoryDirectory struct {
	users map[int64]marketport.User
}

func (d *memoryDirectory) FindUserByID(_ context.Context, id int64) (*marketport.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// fixture wires a repo, catalog and directory with one listing (owner 1)
// and two users so most tests can start from a resolved room.
type fixture struct {
	repo    *memoryRepo
	catalog *memoryCatalog
	users   *memoryDirectory
}

const (
	ownerID   = int64(1)
	buyerID   = int64(2)
	listingID = int64(10)
)

func newFixture() *fixture {
	return &fixture{
		repo: newMemoryRepo(),
		catalog: &memoryCatalog{listings: map[int64]marketport.Listing{
			listingID: {ID: listingID, OwnerID: ownerID, Title: "The Master and Margarita", Author: "Mikhail Bulgakov", PriceCents: 1250},
			11:        {ID: 11, OwnerID: ownerID, Title: "Dead Souls", Author: "Nikolai Gogol", PriceCents: 900},
		}},
		users: &memoryDirectory{users: map[int64]marketport.User{
			ownerID: {ID: ownerID, Nickname: "ana"},
			buyerID: {ID: buyerID, Nickname: "bruno"},
			3:       {ID: 3, Nickname: "clara"},
		}},
	}
}

func (f *fixture) resolve(t interface{ Fatalf(string, ...any) }, listing, requester int64) *ResolveRoomResult {
	uc := NewResolveRoomUseCase(f.repo, f.catalog, f.users)
	res, err := uc.Execute(context.Background(), ResolveRoomInput{ListingID: listing, RequesterID: requester})
	if err != nil {
		t.Fatalf("resolve(%d, %d): %v", listing, requester, err)
	}
	return res
}
