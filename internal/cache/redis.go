// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the room event journal appends to.
var DefaultQueueName = "caucus_room_events"

// Event kinds besides the client message types.
const (
	KindJoin  = "join"
	KindLeave = "leave"
)

// RoomEventRecord is one journal entry. The historian consumes these.
type RoomEventRecord struct {
	EventID   uuid.UUID       `json:"event_id"`
	Room      string          `json:"room"`
	Kind      string          `json:"kind"`
	SeatID    int             `json:"seat_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewRecord builds a record stamped with a fresh id and the current time. payload may be
// nil.
func NewRecord(room, kind string, seatID int, payload any) (RoomEventRecord, error) {
	rec := RoomEventRecord{
		EventID:   uuid.New(),
		Room:      room,
		Kind:      kind,
		SeatID:    seatID,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return rec, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
		}
		rec.Payload = raw
	}
	return rec, nil
}

// Journal receives room events. Implementations must not block for long; callers log
// errors and carry on.
type Journal interface {
	Record(ctx context.Context, rec RoomEventRecord) error
}

// NopJournal discards everything. Used when journaling is disabled.
type NopJournal struct{}

func (NopJournal) Record(context.Context, RoomEventRecord) error { return nil }

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisJournal RPushes records onto a Redis list.
type RedisJournal struct {
	rdb   redis.Cmdable
	queue string
}

// NewRedisJournal returns a journal writing to queue (DefaultQueueName when empty).
func NewRedisJournal(rdb redis.Cmdable, queue string) *RedisJournal {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisJournal{rdb: rdb, queue: queue}
}

// Record serializes rec to JSON and pushes it to the queue.
func (j *RedisJournal) Record(ctx context.Context, rec RoomEventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEventRecord: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	return nil
}
