package matcher

import (
	"testing"

	"github.com/mobile-next/mobilecv/types"
	"github.com/stretchr/testify/assert"
)

func TestRemoveOverlaps(t *testing.T) {
	a := FindResult{Rect: types.NewRect(0, 0, 10, 10), Score: 0.91}
	b := FindResult{Rect: types.NewRect(5, 5, 10, 10), Score: 0.97}
	c := FindResult{Rect: types.NewRect(100, 100, 10, 10), Score: 0.92}
	d := FindResult{Rect: types.NewRect(10, 0, 10, 10), Score: 0.99}
	tie := FindResult{Rect: types.NewRect(102, 102, 10, 10), Score: 0.92}

	tests := []struct {
		name  string
		input []FindResult
		want  []FindResult
	}{
		{"empty", nil, []FindResult{}},
		{"lower score removed", []FindResult{a, b}, []FindResult{b}},
		{"order does not matter", []FindResult{b, a}, []FindResult{b}},
		{"disjoint kept", []FindResult{a, c}, []FindResult{a, c}},
		{"touching edges kept", []FindResult{a, d}, []FindResult{a, d}},
		{"tie keeps first", []FindResult{c, tie}, []FindResult{c}},
		{"mixed", []FindResult{a, c, b, tie}, []FindResult{c, b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemoveOverlaps(tt.input))
		})
	}
}

func TestRemoveOverlaps_NoSurvivorsIntersect(t *testing.T) {
	var input []FindResult
	for i := 0; i < 40; i++ {
		input = append(input, FindResult{
			Rect:  types.NewRect((i*7)%60, (i*13)%60, 15, 15),
			Score: float64(i%9) / 10,
		})
	}

	kept := RemoveOverlaps(input)
	assert.NotEmpty(t, kept)
	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			assert.False(t, kept[i].Rect.Intersects(kept[j].Rect), "%v and %v overlap", kept[i], kept[j])
		}
	}
}
