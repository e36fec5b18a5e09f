package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
)

// FrameOptions select the device, display and pacing of a frame stream.
// Zero values leave the choice to the server.
type FrameOptions struct {
	DeviceID string
	Display  int
	FPS      int
	Quality  int
	Width    int
}

func (o FrameOptions) query() string {
	values := url.Values{}
	if o.DeviceID != "" {
		values.Set("deviceId", o.DeviceID)
	}
	if o.Display > 0 {
		values.Set("display", strconv.Itoa(o.Display))
	}
	if o.FPS > 0 {
		values.Set("fps", strconv.Itoa(o.FPS))
	}
	if o.Quality > 0 {
		values.Set("quality", strconv.Itoa(o.Quality))
	}
	if o.Width > 0 {
		values.Set("width", strconv.Itoa(o.Width))
	}
	return values.Encode()
}

// Frames streams JPEG frames to onFrame until it returns false, ctx ends or
// the server closes the stream.
func (c *Client) Frames(ctx context.Context, opts FrameOptions, onFrame func([]byte) bool) error {
	streamURL := c.wsURL + "/frames"
	if q := opts.query(); q != "" {
		streamURL += "?" + q
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to open frame stream: status %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to open frame stream: %w", err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("frame stream closed by server: %s", closeErr.Text)
			}
			return fmt.Errorf("error reading frame stream: %w", err)
		}

		if messageType != websocket.BinaryMessage {
			continue
		}
		if !onFrame(data) {
			return nil
		}
	}
}
