package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	maxDimension = 16384
	readBufSize  = 1024 * 1024
)

// HeaderPadding returns how many bytes follow width and height in a raw
// screencap dump. Android 8 added a colour space field after the format.
func HeaderPadding(androidVersion string) int {
	major, err := strconv.Atoi(strings.SplitN(strings.TrimSpace(androidVersion), ".", 2)[0])
	if err == nil && major >= 8 {
		return 8
	}
	return 4
}

// ReadRawFrame parses a raw RGBA screencap dump into a BGR raster.
func ReadRawFrame(r io.Reader, padding int) (*Raster, error) {
	br := bufio.NewReaderSize(r, readBufSize)

	var header [8]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	width := int(int32(binary.LittleEndian.Uint32(header[0:4])))
	height := int(int32(binary.LittleEndian.Uint32(header[4:8])))
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}

	if _, err := br.Discard(padding); err != nil {
		return nil, fmt.Errorf("failed to skip header padding: %w", err)
	}

	raster := NewRaster(width, height)
	row := make([]byte, width*4)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("failed to read row %d of %d: %w", y, height, err)
		}
		dst := raster.Pix[y*width*3 : (y+1)*width*3]
		for x := 0; x < width; x++ {
			// RGBA in, BGR out
			dst[x*3] = row[x*4+2]
			dst[x*3+1] = row[x*4+1]
			dst[x*3+2] = row[x*4]
		}
	}

	return raster, nil
}

// WriteRawFrame writes raster in the raw screencap layout. Used to produce
// fixtures and by the fake shell in tests.
func WriteRawFrame(w io.Writer, raster *Raster, padding int) error {
	header := make([]byte, 8+padding)
	binary.LittleEndian.PutUint32(header[0:4], uint32(raster.Width))
	binary.LittleEndian.PutUint32(header[4:8], uint32(raster.Height))
	if _, err := w.Write(header); err != nil {
		return err
	}

	row := make([]byte, raster.Width*4)
	for y := 0; y < raster.Height; y++ {
		src := raster.Pix[y*raster.Width*3 : (y+1)*raster.Width*3]
		for x := 0; x < raster.Width; x++ {
			row[x*4] = src[x*3+2]
			row[x*4+1] = src[x*3+1]
			row[x*4+2] = src[x*3]
			row[x*4+3] = 0xff
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
