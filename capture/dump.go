package capture

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mobile-next/mobilecv/config"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/pierrec/lz4"
	"github.com/sirupsen/logrus"
)

// Shell runs a command on the device and streams its stdout.
type Shell interface {
	ExecOut(ctx context.Context, command string) (io.ReadCloser, error)
}

// DumpOptions configures a DumpSource.
type DumpOptions struct {
	Compression string
	Padding     int
	Attempts    int
	LZ4Path     string
	DisplayID   string
	RetryDelay  time.Duration
}

// DumpSource captures frames with the device screencap tool.
type DumpSource struct {
	shell  Shell
	prober Prober
	opts   DumpOptions
	log    *logrus.Entry
}

func NewDumpSource(shell Shell, prober Prober, opts DumpOptions) *DumpSource {
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.Compression == "" {
		opts.Compression = config.CompressionNone
	}
	if opts.LZ4Path == "" {
		opts.LZ4Path = "/data/local/tmp/lz4"
	}
	return &DumpSource{
		shell:  shell,
		prober: prober,
		opts:   opts,
		log:    utils.WithFields(logrus.Fields{"source": "screencap", "compression": opts.Compression}),
	}
}

// Command returns the shell pipeline used for the configured compression.
func (s *DumpSource) Command() string {
	screencap := "screencap"
	if s.opts.DisplayID != "" {
		screencap = fmt.Sprintf("screencap -d %s", s.opts.DisplayID)
	}

	switch s.opts.Compression {
	case config.CompressionGzip:
		return screencap + " | toybox gzip -1"
	case config.CompressionLZ4:
		return fmt.Sprintf("%s | %s -c -1", screencap, s.opts.LZ4Path)
	default:
		return screencap
	}
}

// Capture takes one frame, retrying transport and framing errors while the
// device is still attached. A failed attempt on a detached device ends with
// ErrDeviceGone, anything else with a CaptureIOError.
func (s *DumpSource) Capture(ctx context.Context) (*Raster, error) {
	var gone bool
	raster, err := retry.DoWithData(
		func() (*Raster, error) {
			return s.captureOnce(ctx)
		},
		retry.Attempts(uint(s.opts.Attempts)),
		retry.Context(ctx),
		retry.Delay(s.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			if s.prober != nil && !s.prober.IsConnected() {
				gone = true
				return false
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.WithField("attempt", n+1).Debugf("screencap failed: %v", err)
		}),
	)
	if err == nil {
		return raster, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	if gone {
		return nil, fmt.Errorf("%w: %v", ErrDeviceGone, err)
	}

	return nil, &CaptureIOError{Cause: err}
}

func (s *DumpSource) captureOnce(ctx context.Context) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := s.shell.ExecOut(ctx, s.Command())
	if err != nil {
		return nil, fmt.Errorf("failed to run screencap: %w", err)
	}
	defer out.Close()

	reader, err := s.decompress(out)
	if err != nil {
		return nil, err
	}

	return ReadRawFrame(reader, s.opts.Padding)
}

func (s *DumpSource) decompress(r io.Reader) (io.Reader, error) {
	switch s.opts.Compression {
	case config.CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gz, nil
	case config.CompressionLZ4:
		return lz4.NewReader(r), nil
	default:
		return r, nil
	}
}
