package devices

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mobile-next/mobilecv/capture"
	"github.com/mobile-next/mobilecv/config"
	"github.com/mobile-next/mobilecv/types"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
)

// AndroidDisplay is one screen of a device. Captures go through a short lived
// cache and a single worker so concurrent callers share frames.
type AndroidDisplay struct {
	index  int
	source capture.Source
	cache  *capture.Cache
	worker *capture.Worker
	log    *logrus.Entry

	mu   sync.RWMutex
	size types.Size
}

func newAndroidDisplay(serial string, index int, size types.Size, source capture.Source, cfg config.CaptureConfig) *AndroidDisplay {
	return &AndroidDisplay{
		index:  index,
		source: source,
		cache:  capture.NewCache(cfg.CacheWindow),
		worker: capture.NewWorker(fmt.Sprintf("%s/%d", serial, index), cfg.Timeout),
		log:    utils.WithFields(logrus.Fields{"device": serial, "display": index}),
		size:   size,
	}
}

func (d *AndroidDisplay) Index() int {
	return d.index
}

// Size is the size of the most recent frame, or the reported size before the
// first capture.
func (d *AndroidDisplay) Size() types.Size {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

// Capture returns a frame of the whole display. Frames younger than the
// cache window are returned as copies without touching the device.
func (d *AndroidDisplay) Capture(ctx context.Context) (*capture.Capture, error) {
	if c, ok := d.cache.Get(); ok {
		return c, nil
	}

	return d.worker.Do(ctx, func(ctx context.Context) (*capture.Capture, error) {
		// another caller may have refreshed the cache while this job was queued
		if c, ok := d.cache.Peek(); ok {
			return c, nil
		}

		raster, err := d.source.Capture(ctx)
		if err != nil {
			return nil, err
		}

		d.updateSize(raster)
		return d.cache.Put(raster), nil
	})
}

// LastCapture returns the latest frame regardless of its age.
func (d *AndroidDisplay) LastCapture() *capture.Capture {
	return d.cache.Last()
}

func (d *AndroidDisplay) Stats() capture.Stats {
	return d.cache.Stats()
}

// WorkerReplacements counts how many capture workers were abandoned after a
// timeout.
func (d *AndroidDisplay) WorkerReplacements() int {
	return d.worker.Replacements()
}

func (d *AndroidDisplay) Close() {
	d.worker.Close()
	if closer, ok := d.source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			d.log.Debugf("failed to close capture source: %v", err)
		}
	}
}

func (d *AndroidDisplay) updateSize(raster *capture.Raster) {
	size := types.Size{Width: raster.Width, Height: raster.Height}
	if size.Width == 0 || size.Height == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if size != d.size {
		d.log.Infof("display size changed %dx%d -> %dx%d", d.size.Width, d.size.Height, size.Width, size.Height)
		d.size = size
	}
}
