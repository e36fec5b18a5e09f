package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mobile-next/mobilecv/types"
)

// parseInts splits a comma separated list of integers named by names,
// e.g. "x1,y1,x2,y2".
func parseInts(arg string, names ...string) ([]int, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != len(names) {
		return nil, fmt.Errorf("invalid coordinate format. Expected '%s', got '%s'", strings.Join(names, ","), arg)
	}

	values := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: '%s' is not an integer", names[i], part)
		}
		values[i] = v
	}
	return values, nil
}

// parseRegion parses "x,y,w,h". An empty string means the whole display.
func parseRegion(arg string) (*types.Rect, error) {
	if arg == "" {
		return nil, nil
	}

	v, err := parseInts(arg, "x", "y", "w", "h")
	if err != nil {
		return nil, err
	}
	if v[0] < 0 || v[1] < 0 || v[2] <= 0 || v[3] <= 0 {
		return nil, fmt.Errorf("invalid region '%s': origin must be non-negative and size positive", arg)
	}

	rect := types.NewRect(v[0], v[1], v[2], v[3])
	return &rect, nil
}
