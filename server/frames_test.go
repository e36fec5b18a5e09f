package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrames struct {
	mu      sync.Mutex
	raster  *capture.Raster
	frozen  bool
	err     error
	calls   int
	current time.Time
}

func (f *fakeFrames) Capture(ctx context.Context) (*capture.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.current.IsZero() || !f.frozen {
		f.current = time.Unix(1700000000, 0).Add(time.Duration(f.calls) * time.Millisecond)
	}
	return &capture.Capture{Timestamp: f.current, Raster: f.raster}, nil
}

func newFrameTestServer(t *testing.T, src frameSource, params FrameParams) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := newUpgrader(true).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := streamFrames(r.Context(), conn, src, params); err != nil {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestParseFrameParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    FrameParams
		wantErr string
	}{
		{
			name:  "defaults",
			query: "",
			want:  FrameParams{FPS: defaultFrameFPS, Quality: defaultFrameQuality},
		},
		{
			name:  "all fields",
			query: "deviceId=emulator-5554&display=1&fps=12&quality=40&width=360",
			want:  FrameParams{DeviceID: "emulator-5554", Display: 1, FPS: 12, Quality: 40, Width: 360},
		},
		{
			name:    "fps not a number",
			query:   "fps=fast",
			wantErr: "invalid fps 'fast': must be an integer",
		},
		{
			name:    "fps too high",
			query:   "fps=60",
			wantErr: "invalid fps 60: must be between 1 and 30",
		},
		{
			name:    "zero quality",
			query:   "quality=0",
			wantErr: "invalid quality 0: must be between 1 and 100",
		},
		{
			name:    "negative width",
			query:   "width=-1",
			wantErr: "invalid width -1: must be between 0 and 65536",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := parseFrameParams(query)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeFrame(t *testing.T) {
	raster := capture.NewRaster(200, 100)

	tests := []struct {
		name       string
		width      int
		wantWidth  int
		wantHeight int
	}{
		{"native size", 0, 200, 100},
		{"downscaled", 50, 50, 25},
		{"upscale ignored", 400, 200, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := encodeFrame(raster, tt.width, 70)
			require.NoError(t, err)

			img, err := utils.DecodeImage(data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, img.Bounds().Dx())
			assert.Equal(t, tt.wantHeight, img.Bounds().Dy())
		})
	}
}

func TestStreamFrames_SendsJPEGMessages(t *testing.T) {
	src := &fakeFrames{raster: capture.NewRaster(80, 40)}
	wsURL := newFrameTestServer(t, src, FrameParams{FPS: 30, Quality: 50, Width: 40})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 3; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		messageType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, messageType)

		img, err := utils.DecodeImage(data)
		require.NoError(t, err)
		assert.Equal(t, 40, img.Bounds().Dx())
		assert.Equal(t, 20, img.Bounds().Dy())
	}
}

func TestStreamFrames_SkipsRepeatedCaptures(t *testing.T) {
	src := &fakeFrames{raster: capture.NewRaster(16, 16), frozen: true}
	wsURL := newFrameTestServer(t, src, FrameParams{FPS: 30, Quality: 50})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	// the capture never changes, so nothing else arrives
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestStreamFrames_CaptureErrorClosesStream(t *testing.T) {
	src := &fakeFrames{err: errors.New("screencap exited")}
	wsURL := newFrameTestServer(t, src, FrameParams{FPS: 30, Quality: 50})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr))
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
	assert.Contains(t, closeErr.Text, "screencap exited")
}

func TestStreamFrames_StopsWhenContextEnds(t *testing.T) {
	src := &fakeFrames{raster: capture.NewRaster(8, 8)}
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := newUpgrader(true).Upgrade(w, r, nil)
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		done <- streamFrames(ctx, conn, src, FrameParams{FPS: 30, Quality: 50})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("streamFrames did not return after cancellation")
	}
}
