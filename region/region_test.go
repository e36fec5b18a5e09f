package region

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/input"
	"github.com/mobile-next/mobilecv/matcher"
	"github.com/mobile-next/mobilecv/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDisplay struct {
	mu       sync.Mutex
	frames   []*capture.Raster
	captures int
}

func (d *fakeDisplay) Index() int {
	return 0
}

func (d *fakeDisplay) Size() types.Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	return types.Size{Width: d.frames[0].Width, Height: d.frames[0].Height}
}

// Capture walks through frames and then keeps returning the last one.
func (d *fakeDisplay) Capture(ctx context.Context) (*capture.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := d.frames[min(d.captures, len(d.frames)-1)]
	d.captures++
	return &capture.Capture{Timestamp: time.Now(), Raster: frame.Clone()}, nil
}

type fakeInput struct {
	taps     []types.Point
	gestures [][]input.Swipe
	pinches  []types.Point
	typed    []string
}

func (f *fakeInput) Tap(ctx context.Context, slot, x, y int) error {
	f.taps = append(f.taps, types.Point{X: x, Y: y})
	return nil
}

func (f *fakeInput) Gesture(ctx context.Context, swipes []input.Swipe, duration time.Duration) error {
	f.gestures = append(f.gestures, swipes)
	return nil
}

func (f *fakeInput) Pinch(ctx context.Context, x, y, r1, r2 int, angle float64, duration time.Duration) error {
	f.pinches = append(f.pinches, types.Point{X: x, Y: y})
	return nil
}

func (f *fakeInput) Type(ctx context.Context, text string) error {
	f.typed = append(f.typed, text)
	return nil
}

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.slept += d
	return nil
}

func noise(width, height int, seed int64) *capture.Raster {
	rng := rand.New(rand.NewSource(seed))
	r := capture.NewRaster(width, height)
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x += 2 {
			v := uint8(rng.Intn(256))
			for dy := 0; dy < 2 && y+dy < height; dy++ {
				for dx := 0; dx < 2 && x+dx < width; dx++ {
					r.Set(x+dx, y+dy, v, v/2, 255-v)
				}
			}
		}
	}
	return r
}

func newTestRegion(t *testing.T, display *fakeDisplay, opts ...Option) *Region {
	t.Helper()
	m, err := matcher.New()
	require.NoError(t, err)
	opts = append([]Option{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return New(display, m, opts...)
}

func TestRegion_SubAndBounds(t *testing.T) {
	root := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{noise(400, 300, 1)}})
	assert.Equal(t, types.NewRect(0, 0, 400, 300), root.Rect())

	sub, err := root.Sub(100, 50, 200, 100)
	require.NoError(t, err)
	assert.Equal(t, types.NewRect(100, 50, 200, 100), sub.Rect())

	nested, err := sub.Sub(10, 10, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, types.NewRect(110, 60, 20, 20), nested.Rect())

	mapped, err := sub.MapRect(types.NewRect(0, 0, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, types.NewRect(100, 50, 5, 5), mapped.Rect())

	tests := []struct {
		name string
		rect types.Rect
	}{
		{"past right edge", types.NewRect(350, 0, 100, 10)},
		{"negative origin", types.NewRect(-1, 0, 10, 10)},
		{"empty", types.NewRect(10, 10, 0, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := root.WithRect(tt.rect)
			assert.ErrorIs(t, err, ErrOutOfBounds)
		})
	}
}

func TestRegion_Capture(t *testing.T) {
	frame := noise(400, 300, 2)
	root := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{frame}})

	sub, err := root.Sub(100, 100, 50, 50)
	require.NoError(t, err)

	raster, err := sub.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, raster.Width)
	assert.Equal(t, frame.At(100, 100), raster.At(0, 0))
	assert.Equal(t, frame.At(149, 149), raster.At(49, 49))
}

func TestRegion_Freeze(t *testing.T) {
	first, second := noise(200, 200, 3), noise(200, 200, 4)
	display := &fakeDisplay{frames: []*capture.Raster{first, second}}
	root := newTestRegion(t, display)

	frozen, err := root.Freeze(context.Background())
	require.NoError(t, err)
	assert.True(t, frozen.IsFrozen())
	assert.False(t, root.IsFrozen())

	for i := 0; i < 3; i++ {
		raster, err := frozen.Capture(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first.Pix, raster.Pix)
	}
	assert.Equal(t, 1, display.captures)

	sub, err := frozen.Sub(10, 10, 10, 10)
	require.NoError(t, err)
	assert.True(t, sub.IsFrozen())

	live, err := root.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.Pix, live.Pix)
}

func TestFromCapture(t *testing.T) {
	img := noise(120, 80, 5)
	m, err := matcher.New()
	require.NoError(t, err)

	r := FromCapture(&capture.Capture{Timestamp: time.Now(), Raster: img}, m)
	assert.Equal(t, types.NewRect(0, 0, 120, 80), r.Rect())

	_, err = r.Sub(100, 0, 40, 10)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, r.Click(context.Background()), ErrNoInput)
}

func TestRegion_FindMapsToDisplay(t *testing.T) {
	frame := noise(400, 300, 6)
	target := types.NewRect(250, 120, 40, 30)
	tmpl, err := matcher.NewImageTemplate("target", frame.Crop(target))
	require.NoError(t, err)

	root := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{frame}})
	sub, err := root.Sub(200, 100, 150, 100)
	require.NoError(t, err)

	match, err := sub.Find(context.Background(), tmpl)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, target, match.Rect())
	assert.InDelta(t, 1.0, match.Score, 1e-3)

	outside, err := root.Sub(0, 0, 200, 100)
	require.NoError(t, err)
	has, err := outside.Has(context.Background(), tmpl)
	require.NoError(t, err)
	assert.False(t, has)

	missing, err := outside.DoesntHave(context.Background(), tmpl)
	require.NoError(t, err)
	assert.True(t, missing)
}

func TestRegion_WaitHas(t *testing.T) {
	blank := noise(300, 200, 7)
	withTarget := noise(300, 200, 8)
	tmpl, err := matcher.NewImageTemplate("target", withTarget.Crop(types.NewRect(50, 60, 40, 40)))
	require.NoError(t, err)

	t.Run("appears after a few polls", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		display := &fakeDisplay{frames: []*capture.Raster{blank, blank, blank, withTarget}}
		r := newTestRegion(t, display, WithClock(clock))

		match, err := r.WaitHas(context.Background(), tmpl, time.Second)
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, types.NewRect(50, 60, 40, 40), match.Rect())
		assert.Equal(t, 4, display.captures)
		assert.Equal(t, 3*DefaultPollInterval, clock.slept)
	})

	t.Run("timeout is not an error", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		r := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{blank}}, WithClock(clock))

		match, err := r.WaitHas(context.Background(), tmpl, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, match)
		assert.GreaterOrEqual(t, clock.slept, 100*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{blank}}, WithClock(&fakeClock{}))

		_, err := r.WaitHas(ctx, tmpl, NoTimeout)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("requires explicit timeout", func(t *testing.T) {
		r := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{blank}}, WithClock(&fakeClock{}))

		_, err := r.WaitHas(context.Background(), tmpl, 0)
		assert.Error(t, err)
	})
}

func TestRegion_WaitDoesntHave(t *testing.T) {
	withTarget := noise(300, 200, 9)
	blank := noise(300, 200, 10)
	tmpl, err := matcher.NewImageTemplate("target", withTarget.Crop(types.NewRect(10, 10, 40, 40)))
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(0, 0)}
	r := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{withTarget, withTarget, blank}}, WithClock(clock))

	gone, err := r.WaitDoesntHave(context.Background(), tmpl, time.Second)
	require.NoError(t, err)
	assert.True(t, gone)

	stuck := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{withTarget}}, WithClock(&fakeClock{}))
	gone, err = stuck.WaitDoesntHave(context.Background(), tmpl, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, gone)
}

func TestRegion_Interaction(t *testing.T) {
	in := &fakeInput{}
	root := newTestRegion(t, &fakeDisplay{frames: []*capture.Raster{noise(400, 300, 11)}}, WithInput(in))
	button, err := root.Sub(100, 100, 20, 10)
	require.NoError(t, err)
	target, err := root.Sub(300, 200, 10, 10)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, button.Click(ctx))
	}
	for _, p := range in.taps {
		assert.True(t, button.Rect().ContainsPoint(p), "%v outside button", p)
	}

	require.NoError(t, button.SwipeTo(ctx, target, time.Second))
	require.Len(t, in.gestures, 1)
	sw := in.gestures[0][0]
	assert.True(t, button.Rect().ContainsPoint(types.Point{X: sw.X1, Y: sw.Y1}))
	assert.True(t, target.Rect().ContainsPoint(types.Point{X: sw.X2, Y: sw.Y2}))

	require.NoError(t, root.Pinch(ctx, 10, 100, 0, time.Second))
	assert.Equal(t, []types.Point{{X: 200, Y: 150}}, in.pinches)

	require.NoError(t, button.Type(ctx, "hello"))
	assert.Equal(t, []string{"hello"}, in.typed)
	assert.Len(t, in.taps, 51)
}
