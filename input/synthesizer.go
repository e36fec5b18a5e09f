package input

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/mobile-next/mobilecv/control"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSlots          = 10
	DefaultMidTapDelay    = 0
	DefaultPostTapDelay   = 250 * time.Millisecond
	DefaultTypingSpeed    = 7
	DefaultTypingVariance = 0.25

	basePressure   = 50
	pressureJitter = 25
)

var ErrSlotOutOfRange = errors.New("touch slot out of range")

// Touch is the local view of one touch slot.
type Touch struct {
	Slot     int  `json:"slot"`
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Touching bool `json:"touching"`
}

// Swipe moves one slot from (X1,Y1) to (X2,Y2).
type Swipe struct {
	Slot int
	X1   int
	Y1   int
	X2   int
	Y2   int
}

type Options struct {
	Slots        int
	MidTapDelay  time.Duration
	PostTapDelay time.Duration
	// TypingSpeed is in characters per second.
	TypingSpeed    int
	TypingVariance float64
	Clock          Clock
	Rand           *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		Slots:          DefaultSlots,
		MidTapDelay:    DefaultMidTapDelay,
		PostTapDelay:   DefaultPostTapDelay,
		TypingSpeed:    DefaultTypingSpeed,
		TypingVariance: DefaultTypingVariance,
	}
}

// Synthesizer keeps touch and key state for one device and expands gestures
// into ordered events on a Sink. Every public operation holds the lock for
// its whole duration so legs of concurrent gestures never interleave.
type Synthesizer struct {
	mu      sync.Mutex
	sink    Sink
	opts    Options
	touches []Touch
	held    []string
	clock   Clock
	rng     *rand.Rand
	log     *logrus.Entry
}

func NewSynthesizer(sink Sink, opts Options) *Synthesizer {
	if opts.Slots < 1 {
		opts.Slots = DefaultSlots
	}
	if opts.TypingSpeed < 1 {
		opts.TypingSpeed = DefaultTypingSpeed
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	touches := make([]Touch, opts.Slots)
	for i := range touches {
		touches[i].Slot = i
	}

	return &Synthesizer{
		sink:    sink,
		opts:    opts,
		touches: touches,
		clock:   opts.Clock,
		rng:     opts.Rand,
		log:     utils.WithFields(logrus.Fields{"component": "input"}),
	}
}

// Touches returns a snapshot of every slot.
func (s *Synthesizer) Touches() []Touch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.touches)
}

// HeldKeys returns the names of keys currently held down.
func (s *Synthesizer) HeldKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.held)
}

func (s *Synthesizer) TouchDown(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchDown(ctx, slot)
}

func (s *Synthesizer) TouchUp(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchUp(ctx, slot)
}

func (s *Synthesizer) TouchMove(ctx context.Context, slot, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchMove(ctx, slot, x, y)
}

// Tap moves the slot to (x,y), presses and releases it.
func (s *Synthesizer) Tap(ctx context.Context, slot, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.touchMove(ctx, slot, x, y); err != nil {
		return err
	}
	if err := s.touchDown(ctx, slot); err != nil {
		return err
	}
	if err := s.clock.Sleep(ctx, s.opts.MidTapDelay); err != nil {
		return errors.Join(err, s.release(ctx, slot))
	}
	if err := s.touchUp(ctx, slot); err != nil {
		return err
	}
	return s.clock.Sleep(ctx, s.opts.PostTapDelay)
}

func (s *Synthesizer) Swipe(ctx context.Context, swipe Swipe, duration time.Duration) error {
	return s.Gesture(ctx, []Swipe{swipe}, duration)
}

// Gesture runs every swipe simultaneously. Positions follow an ease-in-out
// curve sampled against the clock so the gesture lasts about duration
// regardless of how long each write takes. A gesture that fails or is
// cancelled part way still lifts every slot it pressed.
func (s *Synthesizer) Gesture(ctx context.Context, swipes []Swipe, duration time.Duration) (err error) {
	if len(swipes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]int, 0, len(swipes))
	for _, sw := range swipes {
		if err := s.touchMove(ctx, sw.Slot, sw.X1, sw.Y1); err != nil {
			return err
		}
		slots = append(slots, sw.Slot)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, s.release(ctx, slots...))
		}
	}()

	for _, sw := range swipes {
		if err := s.touchDown(ctx, sw.Slot); err != nil {
			return err
		}
	}

	var longest float64
	for _, sw := range swipes {
		longest = math.Max(longest, math.Hypot(float64(sw.X2-sw.X1), float64(sw.Y2-sw.Y1)))
	}
	steps := max(1, int(math.Round(longest)))
	interval := duration / time.Duration(steps)

	start := s.clock.Now()
	for {
		fraction := 1.0
		if duration > 0 {
			fraction = float64(s.clock.Now().Sub(start)) / float64(duration)
		}
		p := EaseInOutQuad(fraction)
		for _, sw := range swipes {
			x := int(math.Round(float64(sw.X2-sw.X1)*p)) + sw.X1
			y := int(math.Round(float64(sw.Y2-sw.Y1)*p)) + sw.Y1
			if err := s.touchMove(ctx, sw.Slot, x, y); err != nil {
				return err
			}
		}
		if fraction >= 1 {
			break
		}
		if err := s.clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}

	for _, sw := range swipes {
		if err := s.touchUp(ctx, sw.Slot); err != nil {
			return err
		}
	}
	return s.clock.Sleep(ctx, s.opts.PostTapDelay)
}

// PinchSwipes returns the two swipes of a pinch centred on (x,y). Slot 0
// travels from radius r1 to r2 along angle degrees, slot 1 mirrors it.
func PinchSwipes(x, y, r1, r2 int, angle float64) []Swipe {
	rad := angle * math.Pi / 180
	dr1x := int(math.Round(float64(r1) * math.Cos(rad)))
	dr1y := int(math.Round(float64(r1) * math.Sin(rad)))
	dr2x := int(math.Round(float64(r2) * math.Cos(rad)))
	dr2y := int(math.Round(float64(r2) * math.Sin(rad)))

	return []Swipe{
		{Slot: 0, X1: x + dr1x, Y1: y + dr1y, X2: x + dr2x, Y2: y + dr2y},
		{Slot: 1, X1: x - dr1x, Y1: y - dr1y, X2: x - dr2x, Y2: y - dr2y},
	}
}

// Pinch zooms out when r2 > r1 and in when r2 < r1.
func (s *Synthesizer) Pinch(ctx context.Context, x, y, r1, r2 int, angle float64, duration time.Duration) error {
	return s.Gesture(ctx, PinchSwipes(x, y, r1, r2, angle), duration)
}

// Reset releases every pressed slot and held key, then clears the local
// state even when the device could not be reached.
func (s *Synthesizer) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for i := range s.touches {
		if s.touches[i].Touching {
			errs = append(errs, s.touchUp(ctx, i))
		}
		s.touches[i].Touching = false
	}
	for _, name := range slices.Clone(s.held) {
		errs = append(errs, s.keyUp(ctx, name))
	}
	s.held = nil
	return errors.Join(errs...)
}

// release lifts the given slots that are still down. It ignores ctx
// cancellation so an aborted gesture never leaves a contact on the device.
func (s *Synthesizer) release(ctx context.Context, slots ...int) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, slot := range slots {
		if err := s.touchUp(ctx, slot); err != nil {
			s.log.WithError(err).Warnf("failed to release slot %d", slot)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Synthesizer) touchDown(ctx context.Context, slot int) error {
	t, err := s.slot(slot)
	if err != nil {
		return err
	}
	if t.Touching {
		return nil
	}

	ev := TouchEvent{Action: control.ActionDown, Slot: slot, X: t.X, Y: t.Y, Pressure: s.pressure()}
	if err := s.send(ctx, func() error { return s.sink.SendTouch(ctx, ev) }); err != nil {
		return err
	}
	t.Touching = true
	return nil
}

func (s *Synthesizer) touchUp(ctx context.Context, slot int) error {
	t, err := s.slot(slot)
	if err != nil {
		return err
	}
	if !t.Touching {
		return nil
	}

	ev := TouchEvent{Action: control.ActionUp, Slot: slot, X: t.X, Y: t.Y}
	if err := s.send(ctx, func() error { return s.sink.SendTouch(ctx, ev) }); err != nil {
		return err
	}
	t.Touching = false
	return nil
}

func (s *Synthesizer) touchMove(ctx context.Context, slot, x, y int) error {
	t, err := s.slot(slot)
	if err != nil {
		return err
	}

	changed := t.X != x || t.Y != y
	t.X, t.Y = x, y
	if !t.Touching || !changed {
		return nil
	}

	ev := TouchEvent{Action: control.ActionMove, Slot: slot, X: x, Y: y, Pressure: s.pressure()}
	return s.send(ctx, func() error { return s.sink.SendTouch(ctx, ev) })
}

func (s *Synthesizer) slot(slot int) (*Touch, error) {
	if slot < 0 || slot >= len(s.touches) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrSlotOutOfRange, slot, len(s.touches))
	}
	return &s.touches[slot], nil
}

func (s *Synthesizer) pressure() int {
	return basePressure + s.rng.Intn(2*pressureJitter) - pressureJitter
}

// send performs write, reconnecting the sink once if it fails.
func (s *Synthesizer) send(ctx context.Context, write func() error) error {
	err := write()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// a new channel cannot fix a key or slot the device does not have
	if errors.Is(err, control.ErrUnsupportedKey) || errors.Is(err, ErrSlotOutOfRange) {
		return err
	}

	s.log.WithError(err).Warn("control channel write failed, reconnecting")
	if rerr := s.sink.Reconnect(ctx); rerr != nil {
		return fmt.Errorf("failed to reconnect control channel after %v: %w", err, rerr)
	}
	if err := write(); err != nil {
		return fmt.Errorf("control channel write failed after reconnect: %w", err)
	}
	return nil
}
