// Package cache publishes accepted game actions to Redis for replay and audit.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// GameActionRecord is one accepted action, in order.
type GameActionRecord struct {
	GameID        uuid.UUID      `json:"game_id"`
	RoomCode      string         `json:"room_code"`
	ActionIndex   int            `json:"action_index"`
	ActorUserID   uuid.UUID      `json:"actor_user_id"` // uuid.Nil for room-level events
	ActionType    string         `json:"action_type"`
	ActionPayload map[string]any `json:"action_payload"`
	Timestamp     int64          `json:"timestamp"` // unix millis
}

// DefaultRetention bounds how long a game's action list is kept.
const DefaultRetention = 24 * time.Hour

// Historian appends action records to a per-game Redis list.
type Historian struct {
	rdb       redis.Cmdable
	retention time.Duration
}

// NewHistorian wraps an existing client.
func NewHistorian(rdb redis.Cmdable) *Historian {
	return &Historian{rdb: rdb, retention: DefaultRetention}
}

// Connect dials addr and verifies the connection with PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// ListKey is the Redis key holding a game's actions.
func ListKey(gameID uuid.UUID) string {
	return "game:" + gameID.String() + ":actions"
}

// Publish appends rec to the game's list and refreshes its expiry.
func (h *Historian) Publish(ctx context.Context, rec GameActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding action %d: %w", rec.ActionIndex, err)
	}
	key := ListKey(rec.GameID)
	pipe := h.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, h.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing action %d: %w", rec.ActionIndex, err)
	}
	return nil
}

// Actions reads back every record of a game, oldest first.
func (h *Historian) Actions(ctx context.Context, gameID uuid.UUID) ([]GameActionRecord, error) {
	raw, err := h.rdb.LRange(ctx, ListKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]GameActionRecord, 0, len(raw))
	for _, r := range raw {
		var rec GameActionRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			return nil, fmt.Errorf("decoding action: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
