package input

import (
	"fmt"

	"github.com/mobile-next/mobilecv/types"
)

// Rotation is the display rotation in quarter turns, as reported by the
// device surface orientation.
type Rotation int

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

func ParseRotation(v int) (Rotation, error) {
	if v < 0 || v > 3 {
		return 0, fmt.Errorf("invalid rotation %d", v)
	}
	return Rotation(v), nil
}

// NaturalSize returns the unrotated panel size given the current display
// size.
func NaturalSize(current types.Size, r Rotation) types.Size {
	if r%2 == 1 {
		return types.Size{Width: current.Height, Height: current.Width}
	}
	return current
}

// Remap converts a point on the rotated display into panel coordinates of a
// panel with the given natural size.
func Remap(p types.Point, r Rotation, natural types.Size) types.Point {
	nw, nh := natural.Width, natural.Height
	switch r {
	case Rotation90:
		return types.Point{X: nw - 1 - p.Y, Y: p.X}
	case Rotation180:
		return types.Point{X: nw - 1 - p.X, Y: nh - 1 - p.Y}
	case Rotation270:
		return types.Point{X: p.Y, Y: nh - 1 - p.X}
	default:
		return p
	}
}

// Unremap is the inverse of Remap.
func Unremap(p types.Point, r Rotation, natural types.Size) types.Point {
	nw, nh := natural.Width, natural.Height
	switch r {
	case Rotation90:
		return types.Point{X: p.Y, Y: nw - 1 - p.X}
	case Rotation180:
		return types.Point{X: nw - 1 - p.X, Y: nh - 1 - p.Y}
	case Rotation270:
		return types.Point{X: nh - 1 - p.Y, Y: p.X}
	default:
		return p
	}
}
