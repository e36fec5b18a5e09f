package capture

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	codec "github.com/yapingcat/gomedia/go-codec"

	"github.com/mobile-next/mobilecv/utils"
)

// FrameDecoder turns encoded packets into rasters. Decoded frames are handed
// to the onFrame callback given to the DecoderFactory, possibly from another
// goroutine.
type FrameDecoder interface {
	Decode(p Packet) error
	Close() error
}

// DecoderFactory creates a decoder for a stream of the given size.
type DecoderFactory func(width, height int, onFrame func(*Raster)) (FrameDecoder, error)

// StreamInfo summarises an H.264 config packet.
type StreamInfo struct {
	Width  int
	Height int
	HasSPS bool
}

// InspectH264 looks for an SPS in an Annex-B buffer and extracts the coded size.
func InspectH264(data []byte) StreamInfo {
	var info StreamInfo
	codec.SplitFrameWithStartCode(data, func(nalu []byte) bool {
		if codec.H264NaluType(nalu) != codec.H264_NAL_SPS {
			return true
		}
		info.HasSPS = true
		info.Width, info.Height = spsResolution(nalu)
		return false
	})
	return info
}

// IsKeyFrame reports whether the Annex-B buffer contains an IDR slice.
func IsKeyFrame(data []byte) bool {
	key := false
	codec.SplitFrameWithStartCode(data, func(nalu []byte) bool {
		if codec.H264NaluType(nalu) == codec.H264_NAL_I_SLICE {
			key = true
			return false
		}
		return true
	})
	return key
}

func spsResolution(sps []byte) (width, height int) {
	// malformed SPS data makes the bit reader run off the end
	defer func() {
		if r := recover(); r != nil {
			width, height = 0, 0
		}
	}()
	w, h := codec.GetH264Resolution(sps)
	return int(w), int(h)
}

// FFmpegDecoder pipes the Annex-B stream through an ffmpeg process and reads
// raw bgr24 frames back.
type FFmpegDecoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	width  int
	height int

	closeOnce sync.Once
	done      chan struct{}
}

// NewFFmpegDecoderFactory returns a DecoderFactory that runs ffmpegPath.
func NewFFmpegDecoderFactory(ffmpegPath string) DecoderFactory {
	return func(width, height int, onFrame func(*Raster)) (FrameDecoder, error) {
		return NewFFmpegDecoder(ffmpegPath, width, height, onFrame)
	}
}

func NewFFmpegDecoder(ffmpegPath string, width, height int, onFrame func(*Raster)) (*FFmpegDecoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid stream size %dx%d", width, height)
	}

	cmd := exec.Command(ffmpegPath,
		"-loglevel", "error",
		"-flags", "low_delay",
		"-f", "h264",
		"-i", "pipe:0",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", strconv.Itoa(width)+"x"+strconv.Itoa(height),
		"pipe:1",
	)
	utils.ConfigureDetachedProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	d := &FFmpegDecoder{
		cmd:    cmd,
		stdin:  stdin,
		width:  width,
		height: height,
		done:   make(chan struct{}),
	}
	go d.readFrames(stdout, onFrame)

	return d, nil
}

func (d *FFmpegDecoder) readFrames(stdout io.Reader, onFrame func(*Raster)) {
	defer close(d.done)
	for {
		raster := NewRaster(d.width, d.height)
		if _, err := io.ReadFull(stdout, raster.Pix); err != nil {
			utils.Verbose("ffmpeg frame reader stopped: %v", err)
			return
		}
		onFrame(raster)
	}
}

func (d *FFmpegDecoder) Decode(p Packet) error {
	select {
	case <-d.done:
		return fmt.Errorf("ffmpeg decoder exited")
	default:
	}

	if _, err := d.stdin.Write(p.Data); err != nil {
		return fmt.Errorf("failed to feed ffmpeg: %w", err)
	}
	return nil
}

func (d *FFmpegDecoder) Close() error {
	d.closeOnce.Do(func() {
		_ = d.stdin.Close()
		_ = utils.KillProcessGroup(d.cmd)
		_ = d.cmd.Wait()
	})
	return nil
}
