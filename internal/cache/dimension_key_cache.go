package cache

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const defaultDimensionTTL = 30 * time.Minute

// DimensionKey is a resolved natural-key mapping with a fingerprint of
// the attributes that were current when it was resolved. The surrogate
// key never changes; the fingerprint lets the resolver skip redundant
// attribute overwrites without missing changed ones.
type DimensionKey struct {
	ID          snowflake.ID
	Fingerprint string
}

// DimensionKeyCache stores hot-path natural-key lookups during a
// transformation run.
type DimensionKeyCache interface {
	Get(kind, naturalKey string) (DimensionKey, bool)
	Set(kind, naturalKey string, key DimensionKey)
}

type dimensionKeyCache struct {
	keys Cache[string, DimensionKey]
	ttl  time.Duration
}

// NewDimensionKeyCache returns an in-memory cache tuned for dimension
// resolution.
func NewDimensionKeyCache() DimensionKeyCache {
	return &dimensionKeyCache{
		keys: NewTTLCache[string, DimensionKey](),
		ttl:  defaultDimensionTTL,
	}
}

func (c *dimensionKeyCache) Get(kind, naturalKey string) (DimensionKey, bool) {
	return c.keys.Get(cacheKey(kind, naturalKey))
}

func (c *dimensionKeyCache) Set(kind, naturalKey string, key DimensionKey) {
	if key.ID == 0 {
		return
	}
	c.keys.Set(cacheKey(kind, naturalKey), key, c.ttl)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
