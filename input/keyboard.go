package input

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/mobile-next/mobilecv/control"
)

// KeyDown presses the named key unless it is already held.
func (s *Synthesizer) KeyDown(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyDown(ctx, name)
}

// KeyUp releases the named key if it is held.
func (s *Synthesizer) KeyUp(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyUp(ctx, name)
}

// Press taps a key with the current modifiers.
func (s *Synthesizer) Press(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.keyDown(ctx, name); err != nil {
		return err
	}
	return s.keyUp(ctx, name)
}

// CheckSupport reports whether name maps to a known key.
func (s *Synthesizer) CheckSupport(name string) bool {
	_, err := control.LookupKey(name)
	return err == nil
}

// Type enters text at the default typing speed.
func (s *Synthesizer) Type(ctx context.Context, text string) error {
	return s.TypeAt(ctx, text, s.opts.TypingSpeed)
}

// TypeAt enters text key by key at roughly cps characters per second,
// holding shift for characters that need it.
func (s *Synthesizer) TypeAt(ctx context.Context, text string, cps int) error {
	if cps < 1 {
		cps = s.opts.TypingSpeed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range text {
		key := string(c)
		if _, err := control.LookupKey(key); err != nil {
			return err
		}

		shift := control.RequiresShift(c)
		if shift {
			if err := s.keyDown(ctx, "SHIFT"); err != nil {
				return err
			}
		}
		if err := s.keyDown(ctx, key); err != nil {
			return err
		}
		if err := s.keyUp(ctx, key); err != nil {
			return err
		}
		if shift {
			if err := s.keyUp(ctx, "SHIFT"); err != nil {
				return err
			}
		}

		if err := s.clock.Sleep(ctx, s.typingDelay(cps)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthesizer) typingDelay(cps int) time.Duration {
	variance := s.opts.TypingVariance
	jitter := 0.0
	if variance > 0 {
		jitter = (s.rng.Float64()*2 - 1) * variance
	}
	ms := 1000.0 / float64(cps) * (1 + jitter)
	return time.Duration(math.Round(ms)) * time.Millisecond
}

func (s *Synthesizer) keyDown(ctx context.Context, name string) error {
	if slices.Contains(s.held, name) {
		return nil
	}
	key, err := control.LookupKey(name)
	if err != nil {
		return err
	}

	ev := KeyEvent{Action: control.ActionDown, Key: key, Meta: s.metaState()}
	if err := s.send(ctx, func() error { return s.sink.SendKey(ctx, ev) }); err != nil {
		return err
	}
	s.held = append(s.held, name)
	return nil
}

func (s *Synthesizer) keyUp(ctx context.Context, name string) error {
	idx := slices.Index(s.held, name)
	if idx < 0 {
		return nil
	}
	key, err := control.LookupKey(name)
	if err != nil {
		return err
	}

	ev := KeyEvent{Action: control.ActionUp, Key: key, Meta: s.metaState()}
	if err := s.send(ctx, func() error { return s.sink.SendKey(ctx, ev) }); err != nil {
		return err
	}
	s.held = slices.Delete(s.held, idx, idx+1)
	return nil
}

// metaState derives the Android meta mask from the held modifier names.
func (s *Synthesizer) metaState() int32 {
	var meta int32
	for _, name := range s.held {
		switch name {
		case "CTRL":
			meta |= control.MetaCtrlOn
		case "ALT":
			meta |= control.MetaAltOn
		case "SHIFT":
			meta |= control.MetaShiftOn
		case "WIN", "META":
			meta |= control.MetaMetaOn
		}
	}
	return meta
}
