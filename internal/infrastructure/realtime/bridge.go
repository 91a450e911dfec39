package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	roomChannelPrefix = "chat:room:"
	userChannelPrefix = "chat:user:"
)

// envelope is the wire format on the Redis bus. Origin identifies the
// publishing process so an instance skips frames it already delivered
// locally.
type envelope struct {
	Origin        string          `json:"origin"`
	ExcludeUserID int64           `json:"exclude_user_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher pushes frames onto the Redis pub/sub bus, one topic per room
// (plus one per user for direct notifications). It is all a worker process
// needs to reach connected clients on any instance.
type Publisher struct {
	rdb    *redis.Client
	origin string
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb, origin: uuid.NewString()}
}

// Origin is this process's bus identity.
func (p *Publisher) Origin() string { return p.origin }

// PublishRoom fans payload out to the room's topic.
func (p *Publisher) PublishRoom(ctx context.Context, roomID int64, payload []byte, excludeUserID int64) error {
	env, err := json.Marshal(envelope{Origin: p.origin, ExcludeUserID: excludeUserID, Payload: payload})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, roomChannelPrefix+strconv.FormatInt(roomID, 10), env).Err()
}

// PublishUser fans payload out to a single user's topic.
func (p *Publisher) PublishUser(ctx context.Context, userID int64, payload []byte) error {
	env, err := json.Marshal(envelope{Origin: p.origin, Payload: payload})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, userChannelPrefix+strconv.FormatInt(userID, 10), env).Err()
}

// Bridge ties a local presence Registry to the Redis bus so multiple server
// processes share live delivery. Local connections get frames directly; the
// bus carries them to every other instance, whose bridge replays them into
// its own registry. The room store stays the source of truth for anything a
// reconnecting client needs to recover.
type Bridge struct {
	pub      *Publisher
	registry *Registry
	rdb      *redis.Client
	log      zerolog.Logger
}

func NewBridge(rdb *redis.Client, registry *Registry, log zerolog.Logger) *Bridge {
	return &Bridge{
		pub:      NewPublisher(rdb),
		registry: registry,
		rdb:      rdb,
		log:      log.With().Str("component", "bridge").Logger(),
	}
}

// BroadcastRoom delivers to local room members and publishes for the rest of
// the fleet. Callers must only invoke it after the owning transaction has
// committed.
func (b *Bridge) BroadcastRoom(ctx context.Context, roomID int64, payload []byte, excludeUserID int64) {
	b.registry.Broadcast(roomID, payload, excludeUserID)
	if err := b.pub.PublishRoom(ctx, roomID, payload, excludeUserID); err != nil {
		b.log.Warn().Err(err).Int64("room_id", roomID).Msg("bus publish failed")
	}
}

// NotifyUser delivers to the user's local connection if present and
// publishes so another instance can deliver instead.
func (b *Bridge) NotifyUser(ctx context.Context, userID int64, payload []byte) {
	b.registry.NotifyUser(userID, payload)
	if err := b.pub.PublishUser(ctx, userID, payload); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("bus publish failed")
	}
}

// JoinUser exposes the registry's room-group attach for resolver flows.
func (b *Bridge) JoinUser(roomID, userID int64) bool {
	return b.registry.JoinUser(roomID, userID)
}

// Run subscribes to the bus and replays remote frames into the local
// registry until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, roomChannelPrefix+"*", userChannelPrefix+"*")
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(msg)
		}
	}
}

func (b *Bridge) dispatch(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("malformed bus frame")
		return
	}
	if env.Origin == b.pub.origin {
		// already delivered locally by the publishing call
		return
	}

	switch {
	case strings.HasPrefix(msg.Channel, roomChannelPrefix):
		roomID, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, roomChannelPrefix), 10, 64)
		if err != nil {
			return
		}
		b.registry.Broadcast(roomID, env.Payload, env.ExcludeUserID)
	case strings.HasPrefix(msg.Channel, userChannelPrefix):
		userID, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, userChannelPrefix), 10, 64)
		if err != nil {
			return
		}
		b.registry.NotifyUser(userID, env.Payload)
	}
}
