package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ImageTTL bounds how long a rendered leaderboard stays cached.
const ImageTTL = 24 * time.Hour

// ImageCache keeps rendered leaderboard PNGs keyed by ranking version.
type ImageCache struct {
	rdb *redis.Client
}

func NewImageCache(rdb *redis.Client) *ImageCache {
	return &ImageCache{rdb: rdb}
}

// Get returns the cached image for a ranking version or ErrMiss.
func (c *ImageCache) Get(ctx context.Context, quizID uuid.UUID, version int64) ([]byte, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.LeaderboardImageKey(quizID.String(), version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get leaderboard image: %w", err)
	}
	return data, nil
}

// Set stores a rendered image for a ranking version.
func (c *ImageCache) Set(ctx context.Context, quizID uuid.UUID, version int64, png []byte) error {
	return c.rdb.Set(ctx, config.CacheKey.LeaderboardImageKey(quizID.String(), version), png, ImageTTL).Err()
}
