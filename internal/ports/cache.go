package ports

import (
	"context"
	"time"
)

// ResultCache maps a derived request key to an opaque payload with an expiry.
// A payload MUST never be returned past its TTL. Implementations MAY expire
// lazily on Get.
type ResultCache interface {
	// Get returns the payload for key, and whether a live entry existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores payload under key for ttl. ttl is always positive here;
	// the coordinator never calls Put when caching is disabled.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}
