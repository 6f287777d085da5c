// internal/historian/historian.go pops room event records from a Redis queue and writes
// them to Postgres in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/caucus/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each blocking pop so cancellation is noticed.
const popTimeout = 3 * time.Second

// Source yields raw queue payloads. ok is false when the wait timed out empty.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error)
}

// Sink persists a batch of records.
type Sink interface {
	InsertRoomEvents(ctx context.Context, recs []cache.RoomEventRecord) error
}

// RedisSource BLPops from a Redis list.
type RedisSource struct {
	rdb   redis.Cmdable
	queue string
}

func NewRedisSource(rdb redis.Cmdable, queue string) *RedisSource {
	if queue == "" {
		queue = cache.DefaultQueueName
	}
	return &RedisSource{rdb: rdb, queue: queue}
}

func (s *RedisSource) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := s.rdb.BLPop(ctx, timeout, s.queue).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("BLPop %s: %w", s.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// Service accumulates records and flushes them when the batch fills or the flush timer
// fires, whichever comes first.
type Service struct {
	src        Source
	sink       Sink
	log        *logrus.Logger
	batchSize  int
	flushDelay time.Duration

	batchMu sync.Mutex
	batch   []cache.RoomEventRecord
}

// New builds a Service. Non-positive sizes fall back to 20 records / 500ms.
func New(src Source, sink Sink, logger *logrus.Logger, batchSize int, flushDelay time.Duration) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	return &Service{
		src:        src,
		sink:       sink,
		log:        logger,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		batch:      make([]cache.RoomEventRecord, 0, batchSize),
	}
}

// Run consumes the source until ctx is cancelled, then flushes whatever is pending.
func (s *Service) Run(ctx context.Context) error {
	records := make(chan cache.RoomEventRecord)
	popDone := make(chan struct{})
	go func() {
		defer close(popDone)
		s.popLoop(ctx, records)
	}()

	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	s.log.Info("historian started")
	for {
		select {
		case <-ctx.Done():
			<-popDone
			s.flush(context.Background())
			s.log.Info("historian stopped")
			return nil

		case <-ticker.C:
			s.flush(ctx)

		case rec := <-records:
			if s.append(rec) {
				s.flush(ctx)
			}
		}
	}
}

func (s *Service) popLoop(ctx context.Context, out chan<- cache.RoomEventRecord) {
	for ctx.Err() == nil {
		payload, ok, err := s.src.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Errorf("pop failed: %v", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if !ok {
			continue
		}

		var rec cache.RoomEventRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			s.log.Warnf("invalid room event record: %v", err)
			continue
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			// Keep the record for the final flush.
			s.append(rec)
			return
		}
	}
}

// append adds rec to the pending batch and reports whether the batch is full.
func (s *Service) append(rec cache.RoomEventRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.batchSize
}

func (s *Service) pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// flush writes the pending batch. A failed batch is logged and dropped.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	batchCopy := make([]cache.RoomEventRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertRoomEvents(ctx, batchCopy); err != nil {
		s.log.WithField("records", len(batchCopy)).Errorf("flush failed: %v", err)
		return
	}
	s.log.Debugf("Flushed %d room events to DB.", len(batchCopy))
}
