package resultcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
)

// fakeClock replaces the cache's clock so TTL expiry is deterministic.
type fakeClock struct {
	current time.Time
}

func (fc *fakeClock) now() time.Time { return fc.current }

func (fc *fakeClock) advance(d time.Duration) { fc.current = fc.current.Add(d) }

func newClockedCache(maxEntries int, ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)}

	c := New(maxEntries, ttl)
	c.now = clock.now

	return c, clock
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	c, clock := newClockedCache(10, time.Hour)

	c.Put("code", &analysis.Report{Language: "python"})
	require.NotNil(t, c.Get("code"))

	clock.advance(time.Hour + time.Second)

	assert.Nil(t, c.Get("code"))
	assert.Equal(t, 0, c.Len(), "expired entry is removed on access")
}

func TestCache_TTLBoundary(t *testing.T) {
	t.Parallel()

	c, clock := newClockedCache(10, time.Hour)

	c.Put("code", &analysis.Report{Language: "python"})

	// Exactly at the TTL the entry is still valid; expiry is strict.
	clock.advance(time.Hour)

	assert.NotNil(t, c.Get("code"))
}

func TestCache_SweepExpired(t *testing.T) {
	t.Parallel()

	c, clock := newClockedCache(10, time.Hour)

	for i := range 3 {
		c.Put(fmt.Sprintf("old-%d", i), &analysis.Report{Language: "go"})
	}

	clock.advance(30 * time.Minute)
	c.Put("fresh", &analysis.Report{Language: "go"})

	clock.advance(45 * time.Minute)

	removed := c.SweepExpired()

	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, c.Len())
	assert.NotNil(t, c.Get("fresh"))
}

func TestCache_SweepNothingExpired(t *testing.T) {
	t.Parallel()

	c, _ := newClockedCache(10, time.Hour)

	c.Put("code", &analysis.Report{Language: "go"})

	assert.Equal(t, 0, c.SweepExpired())
	assert.Equal(t, 1, c.Len())
}
