package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/leorifa93/desires-backend/internal/domain/model"
)

const fallbackDeckKey = "discovery:fallback"

var ErrCacheMiss = fmt.Errorf("cache miss")

// FallbackCacheRepo caches the ranked fallback discovery set. The set is
// the same for every requester before per-user filtering, so a single short
// TTL entry spares the store a ranked scan per deck refill.
type FallbackCacheRepo struct {
	client *goredis.Client
}

func NewFallbackCacheRepo(client *goredis.Client) *FallbackCacheRepo {
	return &FallbackCacheRepo{client: client}
}

func (r *FallbackCacheRepo) GetRankedSet(ctx context.Context) ([]model.Profile, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	data, err := r.client.Get(ctx, fallbackDeckKey).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get fallback set: %w", err)
	}

	var profiles []model.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode fallback set: %w", err)
	}

	return profiles, nil
}

func (r *FallbackCacheRepo) SetRankedSet(ctx context.Context, profiles []model.Profile, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	data, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("encode fallback set: %w", err)
	}

	if err := r.client.Set(ctx, fallbackDeckKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("set fallback set: %w", err)
	}

	return nil
}
