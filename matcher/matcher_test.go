package matcher

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockNoise fills a raster with random 4x4 blocks so that the pattern
// survives downscaling.
func blockNoise(width, height int, seed int64) *capture.Raster {
	rng := rand.New(rand.NewSource(seed))
	bw, bh := (width+3)/4, (height+3)/4
	blocks := make([][3]uint8, bw*bh)
	for i := range blocks {
		blocks[i] = [3]uint8{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))}
	}

	r := capture.NewRaster(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b := blocks[(y/4)*bw+x/4]
			r.Set(x, y, b[0], b[1], b[2])
		}
	}
	return r
}

func templateFrom(t *testing.T, frame *capture.Raster, rect types.Rect, opts ...TemplateOption) Template {
	t.Helper()
	tmpl, err := NewImageTemplate("crop", frame.Crop(rect), opts...)
	require.NoError(t, err)
	return tmpl
}

func TestMatcher_FindsExactCopy(t *testing.T) {
	frame := blockNoise(1000, 700, 1)
	target := types.NewRect(200, 300, 80, 60)
	tmpl := templateFrom(t, frame, target, WithThreshold(0.95))

	m, err := New()
	require.NoError(t, err)

	results, err := m.FindBest(context.Background(), frame, tmpl, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, target, results[0].Rect)
	assert.GreaterOrEqual(t, results[0].Score, 0.95)
}

func TestMatcher_FullResolutionForSmallFrames(t *testing.T) {
	frame := blockNoise(320, 240, 2)
	target := types.NewRect(37, 51, 40, 30)
	tmpl := templateFrom(t, frame, target)

	m, err := New()
	require.NoError(t, err)

	result, ok, err := m.Find(context.Background(), frame, tmpl)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, target, result.Rect)
	assert.InDelta(t, 1.0, result.Score, 1e-3)
}

func TestMatcher_FindsEveryCopy(t *testing.T) {
	frame := blockNoise(800, 600, 3)
	patch := frame.Crop(types.NewRect(0, 0, 48, 48))
	copies := []types.Point{{X: 104, Y: 104}, {X: 504, Y: 120}, {X: 304, Y: 400}}
	for _, p := range copies {
		for y := 0; y < 48; y++ {
			for x := 0; x < 48; x++ {
				c := patch.At(x, y).(color.RGBA)
				frame.Set(p.X+x, p.Y+y, c.R, c.G, c.B)
			}
		}
	}

	tmpl, err := NewImageTemplate("patch", patch)
	require.NoError(t, err)
	m, err := New()
	require.NoError(t, err)

	results, err := m.FindBest(context.Background(), frame, tmpl, 0)
	require.NoError(t, err)

	var found []types.Point
	for _, r := range results {
		found = append(found, types.Point{X: r.Rect.X, Y: r.Rect.Y})
	}
	for _, p := range copies {
		assert.Contains(t, found, p)
	}

	limited, err := m.FindBest(context.Background(), frame, tmpl, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.GreaterOrEqual(t, limited[0].Score, limited[1].Score)
}

func TestMatcher_UnfilteredResultsAreDistinct(t *testing.T) {
	frame := blockNoise(1000, 700, 4)
	target := types.NewRect(400, 200, 80, 60)
	tmpl := templateFrom(t, frame, target, WithThreshold(0.9))

	m, err := New(WithOverlapFilter(false))
	require.NoError(t, err)

	results, err := m.FindBest(context.Background(), frame, tmpl, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, target, results[0].Rect)

	seen := make(map[types.Rect]bool)
	for _, r := range results {
		assert.False(t, seen[r.Rect], "duplicate match at %+v", r.Rect)
		seen[r.Rect] = true
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	ctx := context.Background()
	frame := blockNoise(400, 300, 4)

	t.Run("unrelated template", func(t *testing.T) {
		other := blockNoise(50, 50, 99)
		tmpl, err := NewImageTemplate("other", other)
		require.NoError(t, err)

		_, ok, err := m.Find(ctx, frame, tmpl)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("template larger than frame", func(t *testing.T) {
		tmpl, err := NewImageTemplate("large", blockNoise(500, 50, 5))
		require.NoError(t, err)

		results, err := m.FindBest(ctx, frame, tmpl, 1)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("flat template", func(t *testing.T) {
		flat := image.NewGray(image.Rect(0, 0, 20, 20))
		tmpl, err := NewImageTemplate("flat", flat)
		require.NoError(t, err)

		results, err := m.FindBest(ctx, frame, tmpl, 1)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestMatcher_TemplateCache(t *testing.T) {
	frame := blockNoise(1000, 700, 6)
	tmpl := templateFrom(t, frame, types.NewRect(10, 10, 60, 60))

	m, err := New(WithCacheSize(2))
	require.NoError(t, err)

	_, _, err = m.Find(context.Background(), frame, tmpl)
	require.NoError(t, err)
	assert.Equal(t, 1, m.CachedTemplates())

	m.SetWorkingWidth(500)
	assert.Equal(t, 1, m.CachedTemplates())

	m.SetWorkingWidth(250)
	assert.Equal(t, 0, m.CachedTemplates())
	assert.Equal(t, 250, m.WorkingWidth())
}

func TestNew_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative width", WithWorkingWidth(-1)},
		{"threshold above one", WithDefaultThreshold(1.5)},
		{"negative margin", WithRefineMargin(-3)},
		{"zero cache", WithCacheSize(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestMatcher_CancelledContext(t *testing.T) {
	frame := blockNoise(1000, 700, 7)
	tmpl := templateFrom(t, frame, types.NewRect(200, 300, 80, 60))

	m, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.FindBest(ctx, frame, tmpl, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
