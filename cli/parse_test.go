package cli

import (
	"testing"

	"github.com/mobile-next/mobilecv/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInts(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		names   []string
		want    []int
		wantErr string
	}{
		{"point", "10,20", []string{"x", "y"}, []int{10, 20}, ""},
		{"spaces", " 1, 2 ,3,4", []string{"x1", "y1", "x2", "y2"}, []int{1, 2, 3, 4}, ""},
		{"negative allowed", "-5,7", []string{"x", "y"}, []int{-5, 7}, ""},
		{"too few", "10", []string{"x", "y"}, nil, "invalid coordinate format. Expected 'x,y', got '10'"},
		{"not a number", "10,abc", []string{"x", "y"}, nil, "invalid value for y: 'abc' is not an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInts(tt.arg, tt.names...)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRegion(t *testing.T) {
	rect, err := parseRegion("")
	require.NoError(t, err)
	assert.Nil(t, rect)

	rect, err = parseRegion("10,20,300,400")
	require.NoError(t, err)
	assert.Equal(t, types.NewRect(10, 20, 300, 400), *rect)

	_, err = parseRegion("10,20,0,400")
	assert.Error(t, err)

	_, err = parseRegion("-1,0,10,10")
	assert.Error(t, err)

	_, err = parseRegion("1,2,3")
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"devices"},
		{"info"},
		{"screenshot"},
		{"find"},
		{"wait"},
		{"io", "tap"},
		{"io", "swipe"},
		{"io", "pinch"},
		{"io", "text"},
		{"io", "key"},
		{"io", "reset"},
		{"server", "start"},
		{"server", "kill"},
		{"server", "status"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
