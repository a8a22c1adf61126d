package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Hour)
	c.Set("b", 2, -time.Second)

	value, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = c.Get("b")
	assert.False(t, ok)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestDimensionKeyCacheRoundTrip(t *testing.T) {
	c := NewDimensionKeyCache()

	c.Set("product", "SKU-1", DimensionKey{ID: 42, Fingerprint: "mouse"})

	hit, ok := c.Get("product", "SKU-1")
	assert.True(t, ok)
	assert.Equal(t, int64(42), int64(hit.ID))
	assert.Equal(t, "mouse", hit.Fingerprint)

	// Natural keys are case-insensitive.
	hit, ok = c.Get("product", "sku-1")
	assert.True(t, ok)
	assert.Equal(t, int64(42), int64(hit.ID))

	_, ok = c.Get("customer", "SKU-1")
	assert.False(t, ok)
}

func TestDimensionKeyCacheIgnoresZeroID(t *testing.T) {
	c := NewDimensionKeyCache()

	c.Set("product", "SKU-1", DimensionKey{})
	_, ok := c.Get("product", "SKU-1")
	assert.False(t, ok)
}
