package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mobile-next/mobilecv/input"
)

const defaultGestureDuration = 300 * time.Millisecond

// TapRequest represents the parameters for a tap command
type TapRequest struct {
	DeviceID string `json:"deviceId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Slot     int    `json:"slot,omitempty"`
}

// SwipeRequest represents the parameters for a swipe command
type SwipeRequest struct {
	DeviceID   string `json:"deviceId"`
	X1         int    `json:"x1"`
	Y1         int    `json:"y1"`
	X2         int    `json:"x2"`
	Y2         int    `json:"y2"`
	Slot       int    `json:"slot,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
}

// PinchRequest represents the parameters for a two finger pinch
type PinchRequest struct {
	DeviceID   string  `json:"deviceId"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	R1         int     `json:"r1"`
	R2         int     `json:"r2"`
	Angle      float64 `json:"angle,omitempty"`
	DurationMs int     `json:"durationMs,omitempty"`
}

// TextRequest represents the parameters for a text input command
type TextRequest struct {
	DeviceID string `json:"deviceId"`
	Text     string `json:"text"`
}

// KeyRequest presses, holds or releases a named key.
type KeyRequest struct {
	DeviceID string `json:"deviceId"`
	Key      string `json:"key"`
	// Action is "press" (default), "down" or "up".
	Action string `json:"action,omitempty"`
}

// TapCommand performs a tap operation on the specified device
func TapCommand(ctx context.Context, req TapRequest) *CommandResponse {
	if err := checkPoint(req.X, req.Y); err != nil {
		return NewErrorResponse(err)
	}

	return withInput(ctx, req.DeviceID, func(id string, in *input.Synthesizer) (string, error) {
		if err := in.Tap(ctx, req.Slot, req.X, req.Y); err != nil {
			return "", fmt.Errorf("failed to tap on device %s: %w", id, err)
		}
		return fmt.Sprintf("Tapped on device %s at (%d,%d)", id, req.X, req.Y), nil
	})
}

// SwipeCommand performs a swipe operation on the specified device
func SwipeCommand(ctx context.Context, req SwipeRequest) *CommandResponse {
	if err := checkPoint(req.X1, req.Y1); err != nil {
		return NewErrorResponse(err)
	}
	if err := checkPoint(req.X2, req.Y2); err != nil {
		return NewErrorResponse(err)
	}

	duration, err := gestureDuration(req.DurationMs)
	if err != nil {
		return NewErrorResponse(err)
	}

	return withInput(ctx, req.DeviceID, func(id string, in *input.Synthesizer) (string, error) {
		swipe := input.Swipe{Slot: req.Slot, X1: req.X1, Y1: req.Y1, X2: req.X2, Y2: req.Y2}
		if err := in.Swipe(ctx, swipe, duration); err != nil {
			return "", fmt.Errorf("failed to swipe on device %s: %w", id, err)
		}
		return fmt.Sprintf("Swiped on device %s from (%d,%d) to (%d,%d)", id, req.X1, req.Y1, req.X2, req.Y2), nil
	})
}

// PinchCommand performs a pinch centred on (x,y)
func PinchCommand(ctx context.Context, req PinchRequest) *CommandResponse {
	if err := checkPoint(req.X, req.Y); err != nil {
		return NewErrorResponse(err)
	}
	if req.R1 < 0 || req.R2 < 0 {
		return NewErrorResponse(fmt.Errorf("radii must be non-negative, got r1=%d, r2=%d", req.R1, req.R2))
	}

	duration, err := gestureDuration(req.DurationMs)
	if err != nil {
		return NewErrorResponse(err)
	}

	return withInput(ctx, req.DeviceID, func(id string, in *input.Synthesizer) (string, error) {
		if err := in.Pinch(ctx, req.X, req.Y, req.R1, req.R2, req.Angle, duration); err != nil {
			return "", fmt.Errorf("failed to pinch on device %s: %w", id, err)
		}
		return fmt.Sprintf("Pinched on device %s at (%d,%d) from %d to %d", id, req.X, req.Y, req.R1, req.R2), nil
	})
}

// TextCommand sends text input to the specified device
func TextCommand(ctx context.Context, req TextRequest) *CommandResponse {
	if req.Text == "" {
		return NewErrorResponse(fmt.Errorf("text is required"))
	}

	return withInput(ctx, req.DeviceID, func(id string, in *input.Synthesizer) (string, error) {
		if err := in.Type(ctx, req.Text); err != nil {
			return "", fmt.Errorf("failed to send text to device %s: %w", id, err)
		}
		return fmt.Sprintf("Sent text to device %s", id), nil
	})
}

// KeyCommand presses a key on the specified device
func KeyCommand(ctx context.Context, req KeyRequest) *CommandResponse {
	if req.Key == "" {
		return NewErrorResponse(fmt.Errorf("key name is required"))
	}

	var send func(*input.Synthesizer) error
	switch req.Action {
	case "", "press":
		send = func(in *input.Synthesizer) error { return in.Press(ctx, req.Key) }
	case "down":
		send = func(in *input.Synthesizer) error { return in.KeyDown(ctx, req.Key) }
	case "up":
		send = func(in *input.Synthesizer) error { return in.KeyUp(ctx, req.Key) }
	default:
		return NewErrorResponse(fmt.Errorf("invalid key action '%s'. Supported actions are 'press', 'down' and 'up'", req.Action))
	}

	return withInput(ctx, req.DeviceID, func(id string, in *input.Synthesizer) (string, error) {
		if err := send(in); err != nil {
			return "", fmt.Errorf("failed to send key '%s' to device %s: %w", req.Key, id, err)
		}
		return fmt.Sprintf("Sent key '%s' to device %s", req.Key, id), nil
	})
}

// ResetInputCommand releases every touch and key still held on the device
func ResetInputCommand(ctx context.Context, deviceID string) *CommandResponse {
	return withInput(ctx, deviceID, func(id string, in *input.Synthesizer) (string, error) {
		if err := in.Reset(ctx); err != nil {
			return "", fmt.Errorf("failed to reset input on device %s: %w", id, err)
		}
		return fmt.Sprintf("Released all touches and keys on device %s", id), nil
	})
}

func withInput(ctx context.Context, deviceID string, fn func(id string, in *input.Synthesizer) (string, error)) *CommandResponse {
	device, err := FindDeviceOrAutoSelect(ctx, deviceID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error finding device: %w", err))
	}

	message, err := fn(device.ID(), device.Input())
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": message,
	})
}

func checkPoint(x, y int) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("x and y coordinates must be non-negative, got x=%d, y=%d", x, y)
	}
	return nil
}

func gestureDuration(ms int) (time.Duration, error) {
	switch {
	case ms < 0:
		return 0, fmt.Errorf("durationMs must be non-negative, got %d", ms)
	case ms == 0:
		return defaultGestureDuration, nil
	default:
		return time.Duration(ms) * time.Millisecond, nil
	}
}
