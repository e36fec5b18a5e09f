// Package capture acquires screen frames from a device and caches them.
package capture

import (
	"image"
	"image/color"

	"github.com/mobile-next/mobilecv/types"
)

// Raster is a row-major image with 3 bytes per pixel in B, G, R order.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*3),
	}
}

// RasterFromImage converts any image into a BGR raster.
func RasterFromImage(img image.Image) *Raster {
	if r, ok := img.(*Raster); ok {
		return r.Clone()
	}

	b := img.Bounds()
	out := NewRaster(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out.Pix[i] = uint8(bl >> 8)
			out.Pix[i+1] = uint8(g >> 8)
			out.Pix[i+2] = uint8(r >> 8)
			i += 3
		}
	}
	return out
}

func (r *Raster) ColorModel() color.Model {
	return color.RGBAModel
}

func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

func (r *Raster) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.RGBA{}
	}
	i := (y*r.Width + x) * 3
	return color.RGBA{R: r.Pix[i+2], G: r.Pix[i+1], B: r.Pix[i], A: 0xff}
}

// Set writes a pixel given as r, g, b components.
func (r *Raster) Set(x, y int, red, green, blue uint8) {
	i := (y*r.Width + x) * 3
	r.Pix[i] = blue
	r.Pix[i+1] = green
	r.Pix[i+2] = red
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	pix := make([]byte, len(r.Pix))
	copy(pix, r.Pix)
	return &Raster{Width: r.Width, Height: r.Height, Pix: pix}
}

// Crop copies the part of r inside rect. The rect is clipped to the raster bounds.
func (r *Raster) Crop(rect types.Rect) *Raster {
	rect = rect.Intersect(types.NewRect(0, 0, r.Width, r.Height))
	out := NewRaster(rect.Width, rect.Height)
	rowBytes := rect.Width * 3
	for y := 0; y < rect.Height; y++ {
		src := ((rect.Y+y)*r.Width + rect.X) * 3
		copy(out.Pix[y*rowBytes:(y+1)*rowBytes], r.Pix[src:src+rowBytes])
	}
	return out
}
