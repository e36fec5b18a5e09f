package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
)

// Dialer opens the video socket of the mirroring server.
type Dialer func(ctx context.Context) (io.ReadCloser, error)

// StreamOptions configures a StreamSource.
type StreamOptions struct {
	// CodecMeta is set when the server sends codec id and size after the greeting.
	CodecMeta    bool
	RestartDelay time.Duration
	// Width and Height size the blank frame returned before the first decode.
	Width  int
	Height int
	Now    func() time.Time
}

// StreamSource keeps a long lived mirroring connection and holds on to the
// most recently decoded frame. Capture never waits for the decoder.
type StreamSource struct {
	dial       Dialer
	newDecoder DecoderFactory
	opts       StreamOptions
	log        *logrus.Entry

	fps *fpsCounter

	mu     sync.RWMutex
	latest *Capture
	info   DeviceInfo

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	restarts  int
}

func NewStreamSource(dial Dialer, newDecoder DecoderFactory, opts StreamOptions) *StreamSource {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StreamSource{
		dial:       dial,
		newDecoder: newDecoder,
		opts:       opts,
		log:        utils.WithFields(logrus.Fields{"source": "stream"}),
		fps:        newFPSCounter(time.Second),
		done:       make(chan struct{}),
	}
}

// Start launches the background reader. It is safe to call more than once.
func (s *StreamSource) Start() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.run(ctx)
	})
}

// Capture returns the latest decoded frame, or a blank frame when nothing has
// been decoded yet.
func (s *StreamSource) Capture(ctx context.Context) (*Raster, error) {
	s.Start()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest != nil {
		return s.latest.Raster.Clone(), nil
	}

	width, height := s.opts.Width, s.opts.Height
	if s.info.Width > 0 && s.info.Height > 0 {
		width, height = s.info.Width, s.info.Height
	}
	return NewRaster(width, height), nil
}

// LatestTimestamp returns when the latest frame was decoded.
func (s *StreamSource) LatestTimestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return time.Time{}
	}
	return s.latest.Timestamp
}

// FPS is the number of frames decoded during the last second.
func (s *StreamSource) FPS() float64 {
	return s.fps.rate(s.opts.Now())
}

func (s *StreamSource) DeviceInfo() DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func (s *StreamSource) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

func (s *StreamSource) Close() error {
	s.startOnce.Do(func() {
		close(s.done)
	})
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

func (s *StreamSource) run(ctx context.Context) {
	defer close(s.done)

	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.restarts++
		restarts := s.restarts
		s.mu.Unlock()

		s.log.WithField("restarts", restarts).Warnf("video stream stopped, restarting: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.RestartDelay):
		}
	}
}

func (s *StreamSource) session(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect video socket: %w", err)
	}

	// unblock reads when the source is closed
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	info, err := ReadDeviceInfo(conn)
	if err != nil {
		return err
	}
	width, height := info.Width, info.Height

	if s.opts.CodecMeta {
		meta, err := ReadCodecMeta(conn)
		if err != nil {
			return err
		}
		if meta.Width > 0 && meta.Height > 0 {
			width, height = meta.Width, meta.Height
		}
	}

	s.setInfo(DeviceInfo{Name: info.Name, Width: width, Height: height})
	s.log.Infof("connected to %s, video %dx%d", info.Name, width, height)

	var decoder FrameDecoder
	defer func() {
		if decoder != nil {
			_ = decoder.Close()
		}
	}()

	waitingForKeyFrame := true
	for {
		packet, err := ReadPacket(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("video socket closed: %w", err)
			}
			return err
		}

		if packet.Config {
			if sps := InspectH264(packet.Data); sps.HasSPS && sps.Width > 0 && sps.Height > 0 &&
				(sps.Width != width || sps.Height != height) {
				s.log.Infof("video size changed %dx%d -> %dx%d", width, height, sps.Width, sps.Height)
				width, height = sps.Width, sps.Height
				s.setInfo(DeviceInfo{Name: info.Name, Width: width, Height: height})
				if decoder != nil {
					_ = decoder.Close()
					decoder = nil
				}
				waitingForKeyFrame = true
			}
		}

		if decoder == nil {
			decoder, err = s.newDecoder(width, height, s.onFrame)
			if err != nil {
				return fmt.Errorf("failed to create decoder: %w", err)
			}
		}

		if waitingForKeyFrame && !packet.Config {
			if !packet.KeyFrame && !IsKeyFrame(packet.Data) {
				continue
			}
			waitingForKeyFrame = false
		}

		if err := decoder.Decode(packet); err != nil {
			return err
		}
	}
}

func (s *StreamSource) setInfo(info DeviceInfo) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

func (s *StreamSource) onFrame(raster *Raster) {
	now := s.opts.Now()
	s.fps.tick(now)

	s.mu.Lock()
	s.latest = &Capture{Timestamp: now, Raster: raster}
	s.mu.Unlock()
}
