package input

import (
	"context"

	"github.com/mobile-next/mobilecv/control"
)

// TouchEvent is one motion event for a touch slot, in logical screen pixels.
type TouchEvent struct {
	Action   control.Action
	Slot     int
	X        int
	Y        int
	Pressure int
}

// KeyEvent is one key transition with the modifier state at send time.
type KeyEvent struct {
	Action control.Action
	Key    control.KeyCode
	Meta   int32
}

// Sink delivers events over a control channel. Calls are serialized by the
// Synthesizer.
type Sink interface {
	SendTouch(ctx context.Context, ev TouchEvent) error
	SendKey(ctx context.Context, ev KeyEvent) error
	// Reconnect re-establishes the control channel after a failed write.
	Reconnect(ctx context.Context) error
	Close() error
}
