package compute

import (
	"fmt"
	"hash/fnv"

	"stakedeck/internal/types"
)

// requestKey canonizes (target, ordered tags, userKey) into a fixed-length
// key. Tag order is part of the identity: callers that reorder tags get a
// different key, so they must keep the order stable for dedup and cache hits.
// The same derivation serves both the cache key and the in-flight dedup key.
func requestKey(target string, tags []types.Tag, userKey string) string {
	h := fnv.New64a()
	// hash.Hash.Write never returns an error according to the interface contract
	_, _ = h.Write([]byte(target))
	for _, t := range tags {
		_, _ = h.Write([]byte{0x1f})
		_, _ = h.Write([]byte(t.Name))
		_, _ = h.Write([]byte{0x1e})
		_, _ = h.Write([]byte(t.Value))
	}
	_, _ = h.Write([]byte{0x1f})
	_, _ = h.Write([]byte(userKey))
	return fmt.Sprintf("q%x", h.Sum64())
}
