package input

import (
	"fmt"
	"testing"

	"github.com/mobile-next/mobilecv/types"
	"github.com/stretchr/testify/assert"
)

func TestRemap(t *testing.T) {
	natural := types.Size{Width: 1080, Height: 1920}

	tests := []struct {
		rotation Rotation
		in       types.Point
		want     types.Point
	}{
		{Rotation0, types.Point{X: 10, Y: 20}, types.Point{X: 10, Y: 20}},
		{Rotation90, types.Point{X: 10, Y: 20}, types.Point{X: 1059, Y: 10}},
		{Rotation180, types.Point{X: 10, Y: 20}, types.Point{X: 1069, Y: 1899}},
		{Rotation270, types.Point{X: 10, Y: 20}, types.Point{X: 20, Y: 1909}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("rotation %d", tt.rotation), func(t *testing.T) {
			assert.Equal(t, tt.want, Remap(tt.in, tt.rotation, natural))
		})
	}
}

func TestRemap_RoundTrip(t *testing.T) {
	for _, natural := range []types.Size{{Width: 1080, Height: 1920}, {Width: 2560, Height: 1600}} {
		for r := Rotation0; r <= Rotation270; r++ {
			current := NaturalSize(natural, r)
			for _, p := range []types.Point{{X: 0, Y: 0}, {X: 17, Y: 933}, {X: current.Width - 1, Y: current.Height - 1}} {
				phys := Remap(p, r, natural)
				assert.Equal(t, p, Unremap(phys, r, natural), "rotation %d point %v", r, p)
				assert.True(t, types.NewRect(0, 0, natural.Width, natural.Height).ContainsPoint(phys), "rotation %d point %v", r, p)
			}
		}
	}
}

func TestNaturalSize(t *testing.T) {
	landscape := types.Size{Width: 1920, Height: 1080}
	assert.Equal(t, types.Size{Width: 1080, Height: 1920}, NaturalSize(landscape, Rotation90))
	assert.Equal(t, landscape, NaturalSize(landscape, Rotation180))
}

func TestParseRotation(t *testing.T) {
	r, err := ParseRotation(3)
	assert.NoError(t, err)
	assert.Equal(t, Rotation270, r)

	_, err = ParseRotation(4)
	assert.Error(t, err)
}

func TestEasing(t *testing.T) {
	curves := map[string]Easing{
		"linear":      Linear,
		"ease in":     EaseInQuad,
		"ease out":    EaseOutQuad,
		"ease in out": EaseInOutQuad,
	}

	for name, curve := range curves {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, 0, curve(0), 1e-9)
			assert.InDelta(t, 1, curve(1), 1e-9)
			assert.InDelta(t, 1, curve(2), 1e-9)
			assert.InDelta(t, 0, curve(-1), 1e-9)
			prev := 0.0
			for i := 1; i <= 100; i++ {
				v := curve(float64(i) / 100)
				assert.GreaterOrEqual(t, v, prev)
				prev = v
			}
		})
	}

	assert.InDelta(t, 0.5, EaseInOutQuad(0.5), 1e-9)
	assert.InDelta(t, 0.125, EaseInOutQuad(0.25), 1e-9)
}
