package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestCache_HitWithinWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := NewCache(33 * time.Millisecond)
	cache.SetClock(clock.Now)

	_, ok := cache.Get()
	assert.False(t, ok)

	stored := cache.Put(patternRaster(8, 8))

	clock.advance(20 * time.Millisecond)
	first, ok := cache.Get()
	require.True(t, ok)

	clock.advance(13 * time.Millisecond)
	second, ok := cache.Get()
	require.True(t, ok)

	assert.Equal(t, stored.Raster, first.Raster)
	assert.Equal(t, first.Raster, second.Raster)
	assert.Equal(t, stored.Timestamp, second.Timestamp)

	clock.advance(time.Millisecond)
	_, ok = cache.Get()
	assert.False(t, ok)

	assert.Equal(t, Stats{CaptureRequests: 4, CacheHits: 2}, cache.Stats())
}

func TestCache_ReturnsDeepCopies(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := NewCache(time.Second)
	cache.SetClock(clock.Now)
	cache.Put(patternRaster(4, 4))

	first, ok := cache.Get()
	require.True(t, ok)
	first.Raster.Pix[0] = 200

	second, ok := cache.Get()
	require.True(t, ok)
	assert.NotEqual(t, uint8(200), second.Raster.Pix[0])
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache(time.Hour)
	cache.Put(NewRaster(1, 1))
	require.NotNil(t, cache.Last())

	cache.Invalidate()
	_, ok := cache.Peek()
	assert.False(t, ok)
	assert.Nil(t, cache.Last())
}
