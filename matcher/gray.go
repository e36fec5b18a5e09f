package matcher

import (
	"image"
	"image/color"

	"github.com/mobile-next/mobilecv/capture"
	"golang.org/x/image/draw"
)

// toGray converts img to an intensity plane anchored at (0,0) using the
// 0.299/0.587/0.114 luma weights.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *capture.Raster:
		for i, j := 0, 0; i < len(out.Pix); i, j = i+1, j+3 {
			out.Pix[i] = luma(src.Pix[j+2], src.Pix[j+1], src.Pix[j])
		}
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], row[:b.Dx()])
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				p := src.Pix[off+4*x:]
				out.Pix[y*out.Stride+x] = luma(p[0], p[1], p[2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				p := src.Pix[off+4*x:]
				out.Pix[y*out.Stride+x] = luma(p[0], p[1], p[2])
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				out.Pix[y*out.Stride+x] = luma(c.R, c.G, c.B)
			}
		}
	}

	return out
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// resizeGray scales g to w x h with bilinear interpolation.
func resizeGray(g *image.Gray, w, h int) *image.Gray {
	if w == g.Bounds().Dx() && h == g.Bounds().Dy() {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(out, out.Bounds(), g, g.Bounds(), draw.Src, nil)
	return out
}

// scaledSize returns the dimensions of a w x h image multiplied by f, never
// smaller than one pixel.
func scaledSize(w, h int, f float64) (int, int) {
	sw := int(float64(w)*f + 0.5)
	sh := int(float64(h)*f + 0.5)
	return max(sw, 1), max(sh, 1)
}
