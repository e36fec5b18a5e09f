package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeviceGone means the device no longer shows up on the transport.
	ErrDeviceGone = errors.New("device is no longer connected")

	// ErrCaptureTimeout is returned when a capture exceeded its deadline twice.
	ErrCaptureTimeout = errors.New("capture timed out")
)

// CaptureIOError carries the last transport or protocol error after all
// capture attempts failed.
type CaptureIOError struct {
	Cause error
}

func (e *CaptureIOError) Error() string {
	return fmt.Sprintf("capture failed: %v", e.Cause)
}

func (e *CaptureIOError) Unwrap() error {
	return e.Cause
}

// Capture is a timestamped frame of a display.
type Capture struct {
	Timestamp time.Time
	Raster    *Raster
}

// Clone deep copies the pixel data.
func (c *Capture) Clone() *Capture {
	return &Capture{Timestamp: c.Timestamp, Raster: c.Raster.Clone()}
}

// Source produces a single frame on demand.
type Source interface {
	Capture(ctx context.Context) (*Raster, error)
}

// Prober reports whether the device behind a source is still reachable.
type Prober interface {
	IsConnected() bool
}
