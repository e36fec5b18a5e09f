package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/mobile-next/mobilecv/control"
	"github.com/mobile-next/mobilecv/input"
	"github.com/mobile-next/mobilecv/types"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
)

var ErrNoTouchscreen = errors.New("no touchscreen input device found")

// LineWriter accepts one shell command per call.
type LineWriter interface {
	WriteLine(line string) error
	Close() error
}

// SendeventHost is what the sendevent sink needs from a device.
type SendeventHost interface {
	ID() string
	OpenShell(ctx context.Context) (LineWriter, error)
	InputDevices(ctx context.Context) ([]control.InputDevice, error)
	Orientation(ctx context.Context) (input.Rotation, error)
	DisplaySize() types.Size
}

// SendeventSink writes raw kernel events with sendevent over a persistent
// shell. Logical coordinates are mapped back to the panel's natural
// orientation and rescaled into the axis ranges reported by getevent.
type SendeventSink struct {
	host SendeventHost
	log  *logrus.Entry

	shell    LineWriter
	devices  []control.InputDevice
	touch    *control.InputDevice
	rotation input.Rotation
	active   map[int]bool
}

func NewSendeventSink(host SendeventHost) *SendeventSink {
	return &SendeventSink{
		host:   host,
		log:    utils.WithFields(logrus.Fields{"device": host.ID(), "component": "sendevent"}),
		active: make(map[int]bool),
	}
}

func (s *SendeventSink) SendTouch(ctx context.Context, ev input.TouchEvent) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	// rotation is only refreshed when a new contact starts
	if ev.Action == control.ActionDown && len(s.active) == 0 {
		rotation, err := s.host.Orientation(ctx)
		if err != nil {
			s.log.Debugf("keeping rotation %d: %v", s.rotation, err)
		} else {
			s.rotation = rotation
		}
	}

	events := s.touchEvents(ev)
	if len(events) == 0 {
		return nil
	}
	return s.shell.WriteLine(control.Script(s.touch.Path, events))
}

func (s *SendeventSink) touchEvents(ev input.TouchEvent) []control.RawEvent {
	natural := input.NaturalSize(s.host.DisplaySize(), s.rotation)
	p := input.Remap(types.Point{X: ev.X, Y: ev.Y}, s.rotation, natural)

	slot := control.Abs(control.ABS_MT_SLOT, int32(ev.Slot))
	x := control.Abs(control.ABS_MT_POSITION_X, s.touch.Abs[control.ABS_MT_POSITION_X].Scale(p.X, natural.Width))
	y := control.Abs(control.ABS_MT_POSITION_Y, s.touch.Abs[control.ABS_MT_POSITION_Y].Scale(p.Y, natural.Height))

	var events []control.RawEvent
	switch ev.Action {
	case control.ActionDown:
		events = append(events, slot, control.Abs(control.ABS_MT_TRACKING_ID, int32(ev.Slot)))
		if len(s.active) == 0 && s.touch.HasKey(control.BTN_TOUCH) {
			events = append(events, control.Key(control.BTN_TOUCH, true))
		}
		if _, ok := s.touch.Abs[control.ABS_MT_TOUCH_MAJOR]; ok {
			events = append(events, control.Abs(control.ABS_MT_TOUCH_MAJOR, int32(ev.Pressure)))
		}
		if _, ok := s.touch.Abs[control.ABS_MT_PRESSURE]; ok {
			events = append(events, control.Abs(control.ABS_MT_PRESSURE, int32(ev.Pressure)))
		}
		events = append(events, x, y, control.Sync())
		s.active[ev.Slot] = true
	case control.ActionMove:
		events = append(events, slot, x, y, control.Sync())
	case control.ActionUp:
		if !s.active[ev.Slot] {
			return nil
		}
		delete(s.active, ev.Slot)
		events = append(events, slot)
		if _, ok := s.touch.Abs[control.ABS_MT_PRESSURE]; ok {
			events = append(events, control.Abs(control.ABS_MT_PRESSURE, 0))
		}
		events = append(events, control.Abs(control.ABS_MT_TRACKING_ID, -1))
		if len(s.active) == 0 && s.touch.HasKey(control.BTN_TOUCH) {
			events = append(events, control.Key(control.BTN_TOUCH, false))
		}
		events = append(events, control.Sync())
	}
	return events
}

func (s *SendeventSink) SendKey(ctx context.Context, ev input.KeyEvent) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	device, ok := control.FindKeyDevice(s.devices, ev.Key.Linux)
	if !ok {
		return fmt.Errorf("%w: no input device emits %s", control.ErrUnsupportedKey, ev.Key.Name)
	}

	events := []control.RawEvent{
		control.Key(ev.Key.Linux, ev.Action == control.ActionDown),
		control.Sync(),
	}
	return s.shell.WriteLine(control.Script(device.Path, events))
}

// Reconnect restarts the shell and rediscovers the input devices. The set of
// active contacts survives, since the kernel still holds them down.
func (s *SendeventSink) Reconnect(ctx context.Context) error {
	s.reset()
	return s.ensure(ctx)
}

func (s *SendeventSink) Close() error {
	s.reset()
	s.active = make(map[int]bool)
	return nil
}

func (s *SendeventSink) reset() {
	if s.shell != nil {
		if err := s.shell.Close(); err != nil {
			s.log.Debugf("failed to close shell: %v", err)
		}
	}
	s.shell = nil
	s.devices = nil
	s.touch = nil
}

func (s *SendeventSink) ensure(ctx context.Context) error {
	if s.devices == nil {
		devices, err := s.host.InputDevices(ctx)
		if err != nil {
			return err
		}
		touch, ok := control.FindTouchscreen(devices)
		if !ok {
			return ErrNoTouchscreen
		}
		s.devices = devices
		s.touch = &touch
		s.log.Infof("using %s (%s) for touch input", touch.Path, touch.Name)
	}

	if s.shell == nil {
		shell, err := s.host.OpenShell(ctx)
		if err != nil {
			return err
		}
		s.shell = shell
	}
	return nil
}
