package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

const cacheKeyNameTemplate = "_stakedeck_cache_%s"

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// CacheStore implements ports.ResultCache on redis, leaning on native key
// TTLs for expiry. Payloads are zstd-compressed; cached compute results are
// JSON and shrink well.
type CacheStore struct {
	cli *redis.Client
}

func NewCacheStore(cli *redis.Client) *CacheStore {
	return &CacheStore{cli: cli}
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out := s.cli.Get(ctx, getCacheKeyName(key))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return nil, false, nil
		}
		return nil, false, out.Err()
	}
	payload, err := dec.DecodeAll([]byte(out.Val()), nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress cache entry: %w", err)
	}
	return payload, true, nil
}

func (s *CacheStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	compressed := enc.EncodeAll(payload, make([]byte, 0, len(payload)))
	return s.cli.Set(ctx, getCacheKeyName(key), string(compressed), ttl).Err()
}

func getCacheKeyName(key string) string {
	return fmt.Sprintf(cacheKeyNameTemplate, key)
}
