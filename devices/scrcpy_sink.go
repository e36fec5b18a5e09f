package devices

import (
	"context"
	"fmt"
	"io"

	"github.com/mobile-next/mobilecv/control"
	"github.com/mobile-next/mobilecv/input"
	"github.com/mobile-next/mobilecv/types"
)

// ControlChannel provides the companion control socket.
type ControlChannel interface {
	Control(ctx context.Context) (io.ReadWriter, int, error)
	Reconnect(ctx context.Context, generation int) (io.ReadWriter, int, error)
}

// ScrcpySink injects events through the companion control socket. The
// companion applies the current rotation itself, so coordinates are sent as
// seen on screen along with the current screen size.
type ScrcpySink struct {
	channel ControlChannel
	size    func() types.Size

	conn       io.ReadWriter
	generation int
}

func NewScrcpySink(channel ControlChannel, size func() types.Size) *ScrcpySink {
	return &ScrcpySink{channel: channel, size: size}
}

func (s *ScrcpySink) SendTouch(ctx context.Context, ev input.TouchEvent) error {
	size := s.size()
	return s.Send(ctx, control.TouchMessage{
		Action:       ev.Action,
		PointerID:    uint64(ev.Slot),
		X:            int32(ev.X),
		Y:            int32(ev.Y),
		ScreenWidth:  uint16(size.Width),
		ScreenHeight: uint16(size.Height),
		Pressure:     uint16(ev.Pressure),
		ActionButton: control.ButtonPrimary,
		Buttons:      control.ButtonPrimary,
	})
}

func (s *ScrcpySink) SendKey(ctx context.Context, ev input.KeyEvent) error {
	return s.Send(ctx, control.KeyMessage{
		Action:  ev.Action,
		KeyCode: ev.Key.Android,
		Meta:    ev.Meta,
	})
}

// Send writes any control message, connecting first if needed.
func (s *ScrcpySink) Send(ctx context.Context, msg control.Message) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	return control.WriteMessage(conn, msg)
}

// Clipboard asks the companion for the device clipboard and waits for the
// reply.
func (s *ScrcpySink) Clipboard(ctx context.Context) (string, error) {
	if err := s.Send(ctx, control.GetClipboard); err != nil {
		return "", err
	}
	return control.ReadClipboard(s.conn)
}

func (s *ScrcpySink) Reconnect(ctx context.Context) error {
	conn, generation, err := s.channel.Reconnect(ctx, s.generation)
	if err != nil {
		return fmt.Errorf("failed to reconnect scrcpy control socket: %w", err)
	}
	s.conn, s.generation = conn, generation
	return nil
}

// Close forgets the socket. The companion is owned by the device.
func (s *ScrcpySink) Close() error {
	s.conn = nil
	return nil
}

func (s *ScrcpySink) connection(ctx context.Context) (io.ReadWriter, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	conn, generation, err := s.channel.Control(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open scrcpy control socket: %w", err)
	}
	s.conn, s.generation = conn, generation
	return conn, nil
}
