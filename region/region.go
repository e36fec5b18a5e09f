package region

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/input"
	"github.com/mobile-next/mobilecv/matcher"
	"github.com/mobile-next/mobilecv/types"
)

const DefaultPollInterval = 32 * time.Millisecond

var (
	ErrOutOfBounds = errors.New("region outside display bounds")
	ErrNoInput     = errors.New("region has no input device")
)

// Display is what a region needs from a screen.
type Display interface {
	Index() int
	Size() types.Size
	// Capture returns a frame of the whole display, possibly from cache.
	Capture(ctx context.Context) (*capture.Capture, error)
}

// Input is the subset of the input synthesizer regions drive.
type Input interface {
	Tap(ctx context.Context, slot, x, y int) error
	Gesture(ctx context.Context, swipes []input.Swipe, duration time.Duration) error
	Pinch(ctx context.Context, x, y, r1, r2 int, angle float64, duration time.Duration) error
	Type(ctx context.Context, text string) error
}

type Option func(*Region)

func WithInput(in Input) Option {
	return func(r *Region) {
		r.input = in
	}
}

func WithClock(clock input.Clock) Option {
	return func(r *Region) {
		r.clock = clock
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(r *Region) {
		r.pollInterval = interval
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(r *Region) {
		r.rng = rng
	}
}

// Region is a rectangle of a display used as the unit of capture, search and
// interaction. Coordinates are absolute display pixels.
type Region struct {
	rect         types.Rect
	display      Display
	matcher      *matcher.Matcher
	input        Input
	clock        input.Clock
	pollInterval time.Duration
	rng          *rand.Rand
	frozen       *capture.Capture
}

// New returns the root region covering the whole display.
func New(display Display, m *matcher.Matcher, opts ...Option) *Region {
	size := display.Size()
	r := &Region{
		rect:         types.NewRect(0, 0, size.Width, size.Height),
		display:      display,
		matcher:      m,
		clock:        input.RealClock,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

// FromCapture returns a region pinned to an existing capture. It has no live
// display and its bounds are those of the capture.
func FromCapture(c *capture.Capture, m *matcher.Matcher, opts ...Option) *Region {
	r := &Region{
		rect:         types.NewRect(0, 0, c.Raster.Width, c.Raster.Height),
		matcher:      m,
		clock:        input.RealClock,
		pollInterval: DefaultPollInterval,
		frozen:       c.Clone(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

func (r *Region) Rect() types.Rect {
	return r.rect
}

func (r *Region) Display() Display {
	return r.display
}

func (r *Region) IsFrozen() bool {
	return r.frozen != nil
}

func (r *Region) String() string {
	return r.rect.String()
}

func (r *Region) bounds() types.Rect {
	if r.frozen != nil {
		return types.NewRect(0, 0, r.frozen.Raster.Width, r.frozen.Raster.Height)
	}
	size := r.display.Size()
	return types.NewRect(0, 0, size.Width, size.Height)
}

// Copy returns an independent region with the same rectangle and settings.
func (r *Region) Copy() *Region {
	c := *r
	return &c
}

// WithRect returns a copy of r covering rect, given in display coordinates.
func (r *Region) WithRect(rect types.Rect) (*Region, error) {
	if rect.Empty() || !r.bounds().Contains(rect) {
		return nil, fmt.Errorf("%w: %s not inside %s", ErrOutOfBounds, rect, r.bounds())
	}
	c := r.Copy()
	c.rect = rect
	return c, nil
}

// Sub returns a region at (x,y) relative to r.
func (r *Region) Sub(x, y, width, height int) (*Region, error) {
	return r.WithRect(types.NewRect(r.rect.X+x, r.rect.Y+y, width, height))
}

// MapRect converts rect, relative to r, into a region of the same display.
func (r *Region) MapRect(rect types.Rect) (*Region, error) {
	return r.WithRect(rect.Offset(r.rect.X, r.rect.Y))
}

// Freeze returns a copy of r that always answers with the current frame.
func (r *Region) Freeze(ctx context.Context) (*Region, error) {
	if r.frozen != nil {
		return r.Copy(), nil
	}
	c, err := r.display.Capture(ctx)
	if err != nil {
		return nil, err
	}
	frozen := r.Copy()
	frozen.frozen = c
	return frozen, nil
}

// Capture returns the pixels of the region.
func (r *Region) Capture(ctx context.Context) (*capture.Raster, error) {
	if r.frozen != nil {
		return r.frozen.Raster.Crop(r.rect), nil
	}

	c, err := r.display.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if !types.NewRect(0, 0, c.Raster.Width, c.Raster.Height).Contains(r.rect) {
		// the display rotated since this region was created
		return nil, fmt.Errorf("%w: %s not inside %dx%d frame", ErrOutOfBounds, r.rect, c.Raster.Width, c.Raster.Height)
	}
	return c.Raster.Crop(r.rect), nil
}

// RandomPoint returns a uniformly distributed point inside the region.
func (r *Region) RandomPoint() types.Point {
	return types.Point{
		X: r.rect.X + r.rng.Intn(max(r.rect.Width, 1)),
		Y: r.rect.Y + r.rng.Intn(max(r.rect.Height, 1)),
	}
}

// Click taps a random point inside the region.
func (r *Region) Click(ctx context.Context) error {
	if r.input == nil {
		return ErrNoInput
	}
	p := r.RandomPoint()
	return r.input.Tap(ctx, 0, p.X, p.Y)
}

// SwipeTo drags from a random point of r to a random point of other.
func (r *Region) SwipeTo(ctx context.Context, other *Region, duration time.Duration) error {
	if r.input == nil {
		return ErrNoInput
	}
	from, to := r.RandomPoint(), other.RandomPoint()
	return r.input.Gesture(ctx, []input.Swipe{{Slot: 0, X1: from.X, Y1: from.Y, X2: to.X, Y2: to.Y}}, duration)
}

// Pinch pinches around the centre of the region.
func (r *Region) Pinch(ctx context.Context, r1, r2 int, angle float64, duration time.Duration) error {
	if r.input == nil {
		return ErrNoInput
	}
	c := r.rect.Center()
	return r.input.Pinch(ctx, c.X, c.Y, r1, r2, angle, duration)
}

// Type clicks the region to focus it, then types text.
func (r *Region) Type(ctx context.Context, text string) error {
	if err := r.Click(ctx); err != nil {
		return err
	}
	return r.input.Type(ctx, text)
}
