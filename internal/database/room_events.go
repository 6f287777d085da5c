// internal/database/room_events.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/caucus/internal/cache"
)

const createRoomEventsTable = `
	CREATE TABLE IF NOT EXISTS room_events (
		event_id   UUID PRIMARY KEY,
		room       TEXT NOT NULL,
		kind       TEXT NOT NULL,
		seat_id    INTEGER NOT NULL,
		payload    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)
`

const insertRoomEvent = `
	INSERT INTO room_events (event_id, room, kind, seat_id, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (event_id) DO NOTHING
`

// EventStore writes journal records to the room_events table.
type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// EnsureSchema creates room_events if it does not exist.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createRoomEventsTable); err != nil {
		return fmt.Errorf("create room_events: %w", err)
	}
	return nil
}

// InsertRoomEvents stores recs in a single transaction. Records already stored are
// skipped, so a batch may be retried.
func (s *EventStore) InsertRoomEvents(ctx context.Context, recs []cache.RoomEventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			var payload []byte
			if len(rec.Payload) > 0 {
				payload = rec.Payload
			}
			batch.Queue(insertRoomEvent,
				rec.EventID, rec.Room, rec.Kind, rec.SeatID, payload, time.UnixMilli(rec.Timestamp),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert room events: %w", err)
		}
		return nil
	})
}

// beginTxFunc runs f inside a transaction, committing on success and rolling back when f
// fails.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
