package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventStore persists attempt events.
type EventStore interface {
	InsertBatch(ctx context.Context, events []model.AttemptEvent) error
	Insert(ctx context.Context, ev model.AttemptEvent) error
}

// EventWorker drains the attempt event queue into PostgreSQL in batches.
type EventWorker struct {
	store EventStore
	rdb   *redis.Client
	log   zerolog.Logger

	// requeueBackoff pauses the loop after pushing failed events back.
	requeueBackoff time.Duration
}

func NewEventWorker(store EventStore, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		store:          store,
		rdb:            rdb,
		log:            log.With().Str("component", "event_worker").Logger(),
		requeueBackoff: 2 * time.Second,
	}
}

// Start consumes the queue until ctx is cancelled, then flushes what it holds.
func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EventWorker started")

	buffer := make([]model.AttemptEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. BLPop blocks for PollTimeout and returns at once if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.AttemptEventsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleep(ctx, 3*time.Second)
			continue
		}

		// 4. Decode
		if len(result) < 2 {
			continue
		}
		var ev model.AttemptEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			// Malformed JSON can never succeed; discard it.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed event")
			continue
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now()
		}
		buffer = append(buffer, ev)
	}
}

// flushSafe tries a bulk insert, then row-by-row inserts, then requeues.
func (w *EventWorker) flushSafe(ctx context.Context, batch []model.AttemptEvent) {
	if err := w.store.InsertBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *EventWorker) fallbackInsert(ctx context.Context, batch []model.AttemptEvent) {
	var requeueList []model.AttemptEvent

	for _, ev := range batch {
		err := w.store.Insert(ctx, ev)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrOrphanEvent):
			w.log.Warn().Str("quiz_id", ev.QuizID.String()).Msg("Dropping event of deleted quiz")
		default:
			w.log.Error().Err(err).Str("attempt_id", ev.AttemptID.String()).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, ev)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *EventWorker) requeue(ctx context.Context, items []model.AttemptEvent) {
	// The shutdown context may already be done; requeueing must still happen.
	wait := ctx
	ctx = context.WithoutCancel(ctx)

	pipe := w.rdb.Pipeline()
	for _, ev := range items {
		data, _ := json.Marshal(ev)
		pipe.RPush(ctx, config.WorkerKey.AttemptEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue events to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed events back to Redis")
	// Avoid thrashing while the database is down
	sleep(wait, w.requeueBackoff)
}

func (w *EventWorker) shutdown(buffer []model.AttemptEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
