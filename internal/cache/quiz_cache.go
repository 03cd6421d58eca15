// Package cache holds the Redis-backed pieces of the quiz platform: the
// student paper and answer key cache, the join rate limiter, the attempt
// event queue and the rendered leaderboard images.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a cached entry does not exist.
var ErrMiss = errors.New("cache miss")

// QuizCache stores the student-facing paper and the answer key of published quizzes.
type QuizCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuizCache creates a QuizCache. A zero ttl keeps entries until invalidated.
func NewQuizCache(rdb *redis.Client, ttl time.Duration) *QuizCache {
	return &QuizCache{rdb: rdb, ttl: ttl}
}

// Store writes paper and key in one pipeline, replacing any previous key hash.
func (c *QuizCache) Store(ctx context.Context, paper *model.QuizPaper, key scoring.AnswerKey) error {
	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	quizID := paper.QuizID.String()
	paperKey := config.CacheKey.QuizPaperKey(quizID)
	keyKey := config.CacheKey.QuizAnswerKeyKey(quizID)

	fields := make(map[string]any, len(key))
	for qID, answers := range key {
		fields[qID.String()] = joinIDs(answers)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, paperKey, data, c.ttl)
	pipe.Del(ctx, keyKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, keyKey, fields)
		if c.ttl > 0 {
			pipe.Expire(ctx, keyKey, c.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache quiz: %w", err)
	}
	return nil
}

// Paper returns the cached paper or ErrMiss.
func (c *QuizCache) Paper(ctx context.Context, quizID uuid.UUID) (*model.QuizPaper, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.QuizPaperKey(quizID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	var paper model.QuizPaper
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("unmarshal paper: %w", err)
	}
	return &paper, nil
}

// AnswerKey returns the cached answer key or ErrMiss.
func (c *QuizCache) AnswerKey(ctx context.Context, quizID uuid.UUID) (scoring.AnswerKey, error) {
	raw, err := c.rdb.HGetAll(ctx, config.CacheKey.QuizAnswerKeyKey(quizID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrMiss
	}

	key := make(scoring.AnswerKey, len(raw))
	for field, value := range raw {
		qID, err := uuid.Parse(field)
		if err != nil {
			return nil, fmt.Errorf("parse question id %q: %w", field, err)
		}
		ids, err := splitIDs(value)
		if err != nil {
			return nil, err
		}
		key[qID] = ids
	}
	return key, nil
}

// Invalidate drops the paper and key of a quiz.
func (c *QuizCache) Invalidate(ctx context.Context, quizID uuid.UUID) error {
	id := quizID.String()
	return c.rdb.Del(ctx, config.CacheKey.QuizPaperKey(id), config.CacheKey.QuizAnswerKeyKey(id)).Err()
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("parse answer id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
