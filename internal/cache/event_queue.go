package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventQueue pushes attempt events onto the persistence queue and fans them
// out to the quiz monitor channel.
type EventQueue struct {
	rdb *redis.Client
}

func NewEventQueue(rdb *redis.Client) *EventQueue {
	return &EventQueue{rdb: rdb}
}

// Publish enqueues ev for persistence and notifies monitor subscribers.
func (q *EventQueue) Publish(ctx context.Context, ev model.AttemptEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := q.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.AttemptEventsQueue, data)
	pipe.Publish(ctx, config.CacheKey.QuizMonitorChannel(ev.QuizID.String()), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe opens a subscription on the monitor channel of a quiz.
// The caller must Close the returned PubSub.
func (q *EventQueue) Subscribe(ctx context.Context, quizID uuid.UUID) *redis.PubSub {
	return q.rdb.Subscribe(ctx, config.CacheKey.QuizMonitorChannel(quizID.String()))
}

// Len returns the number of events waiting to be persisted.
func (q *EventQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, config.WorkerKey.AttemptEventsQueue).Result()
}
