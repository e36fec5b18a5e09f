package server

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/commands"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const (
	defaultFrameFPS     = 5
	maxFrameFPS         = 30
	defaultFrameQuality = 70
)

// FrameParams are the query parameters of /frames.
type FrameParams struct {
	DeviceID string
	Display  int
	FPS      int
	Quality  int
	// Width scales frames down to this width, 0 keeps the display size.
	Width int
}

type frameSource interface {
	Capture(ctx context.Context) (*capture.Capture, error)
}

func parseFrameParams(query url.Values) (FrameParams, error) {
	params := FrameParams{
		DeviceID: query.Get("deviceId"),
		FPS:      defaultFrameFPS,
		Quality:  defaultFrameQuality,
	}

	ints := []struct {
		name string
		dst  *int
		min  int
		max  int
	}{
		{"display", &params.Display, 0, 1 << 16},
		{"fps", &params.FPS, 1, maxFrameFPS},
		{"quality", &params.Quality, 1, 100},
		{"width", &params.Width, 0, 1 << 16},
	}

	for _, field := range ints {
		raw := query.Get(field.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("invalid %s '%s': must be an integer", field.name, raw)
		}
		if v < field.min || v > field.max {
			return params, fmt.Errorf("invalid %s %d: must be between %d and %d", field.name, v, field.min, field.max)
		}
		*field.dst = v
	}

	return params, nil
}

// handleFrames upgrades to a WebSocket and pushes one binary JPEG message per
// new capture of the display, at most FPS times per second.
func handleFrames(w http.ResponseWriter, r *http.Request, enableCORS bool) {
	params, err := parseFrameParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	device, err := commands.FindDeviceOrAutoSelect(r.Context(), params.DeviceID)
	if err != nil {
		http.Error(w, fmt.Sprintf("error finding device: %v", err), http.StatusNotFound)
		return
	}

	display, err := device.Display(params.Display)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	connections.Add(1)
	defer connections.Add(-1)

	conn, err := newUpgrader(enableCORS).Upgrade(w, r, nil)
	if err != nil {
		utils.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log := utils.WithFields(logrus.Fields{
		"conn":    uuid.NewString(),
		"device":  device.ID(),
		"display": params.Display,
		"fps":     params.FPS,
	})
	log.Info("Frame stream started")

	if err := streamFrames(r.Context(), conn, display, params); err != nil {
		log.Warnf("Frame stream stopped: %v", err)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		return
	}
	log.Info("Frame stream closed")
}

// streamFrames returns nil when the peer goes away or ctx ends, and the
// capture or write error otherwise.
func streamFrames(ctx context.Context, conn *websocket.Conn, src frameSource, params FrameParams) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the peer only sends control frames; reading processes them and notices a close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(params.FPS))
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := src.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to capture frame: %w", err)
		}

		// the display cache hands back the same capture inside its window
		if frame.Timestamp.Equal(last) {
			continue
		}
		last = frame.Timestamp

		data, err := encodeFrame(frame.Raster, params.Width, params.Quality)
		if err != nil {
			return err
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to send frame: %w", err)
		}
	}
}

func encodeFrame(raster *capture.Raster, width, quality int) ([]byte, error) {
	var img image.Image = raster
	if width > 0 && width < raster.Width {
		height := max(1, raster.Height*width/raster.Width)
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), raster, raster.Bounds(), draw.Src, nil)
		img = scaled
	}
	return utils.EncodeImage(img, "jpeg", quality)
}
