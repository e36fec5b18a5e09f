package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mobile-next/mobilecv/matcher"
	"github.com/mobile-next/mobilecv/region"
	"github.com/mobile-next/mobilecv/types"
)

// TemplateRef names a template either by image path, or by id inside a YAML
// template set.
type TemplateRef struct {
	Template    string  `json:"template"`
	TemplateSet string  `json:"templateSet,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// FindRequest represents the parameters for a template search
type FindRequest struct {
	DeviceID string `json:"deviceId"`
	Display  int    `json:"display,omitempty"`
	TemplateRef
	Count  int         `json:"count,omitempty"`
	Region *types.Rect `json:"region,omitempty"`
}

// WaitRequest represents the parameters for waiting on a template
type WaitRequest struct {
	DeviceID string `json:"deviceId"`
	Display  int    `json:"display,omitempty"`
	TemplateRef
	Region *types.Rect `json:"region,omitempty"`
	// Vanish waits for the template to disappear instead of appearing.
	Vanish    bool `json:"vanish,omitempty"`
	TimeoutMs int  `json:"timeoutMs"`
}

// FoundMatch is one match in display coordinates.
type FoundMatch struct {
	Rect   types.Rect  `json:"rect"`
	Center types.Point `json:"center"`
	Score  float64     `json:"score"`
}

type FindResponse struct {
	Template string       `json:"template"`
	Matches  []FoundMatch `json:"matches"`
}

type WaitResponse struct {
	Template string      `json:"template"`
	Found    bool        `json:"found"`
	Vanished bool        `json:"vanished,omitempty"`
	Match    *FoundMatch `json:"match,omitempty"`
}

// Load resolves the template reference.
func (ref TemplateRef) Load() (matcher.Template, error) {
	if ref.Template == "" {
		return nil, fmt.Errorf("template is required")
	}

	if ref.TemplateSet != "" {
		set, err := matcher.LoadTemplateSet(ref.TemplateSet)
		if err != nil {
			return nil, err
		}
		tmpl, ok := set.Get(ref.Template)
		if !ok {
			return nil, fmt.Errorf("template %q not found in %s, available: %v", ref.Template, ref.TemplateSet, set.IDs())
		}
		return tmpl, nil
	}

	var opts []matcher.TemplateOption
	if ref.Threshold > 0 {
		opts = append(opts, matcher.WithThreshold(ref.Threshold))
	}
	tmpl, err := matcher.NewFileTemplate(ref.Template, opts...)
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// FindCommand searches a device display for a template
func FindCommand(ctx context.Context, req FindRequest) *CommandResponse {
	tmpl, err := req.TemplateRef.Load()
	if err != nil {
		return NewErrorResponse(err)
	}

	_, r, err := deviceRegion(ctx, req.DeviceID, req.Display, req.Region)
	if err != nil {
		return NewErrorResponse(err)
	}

	matches, err := findMatches(ctx, r, tmpl, req.Count)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to search for %s: %w", tmpl.ID(), err))
	}

	return NewSuccessResponse(FindResponse{Template: tmpl.ID(), Matches: matches})
}

// WaitCommand polls a device display until a template appears or vanishes
func WaitCommand(ctx context.Context, req WaitRequest) *CommandResponse {
	timeout, err := waitTimeout(req.TimeoutMs)
	if err != nil {
		return NewErrorResponse(err)
	}

	tmpl, err := req.TemplateRef.Load()
	if err != nil {
		return NewErrorResponse(err)
	}

	_, r, err := deviceRegion(ctx, req.DeviceID, req.Display, req.Region)
	if err != nil {
		return NewErrorResponse(err)
	}

	response, err := waitFor(ctx, r, tmpl, req.Vanish, timeout)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to wait for %s: %w", tmpl.ID(), err))
	}
	return NewSuccessResponse(response)
}

// waitTimeout converts the request timeout; -1 waits until the request is
// cancelled.
func waitTimeout(ms int) (time.Duration, error) {
	switch {
	case ms == -1:
		return region.NoTimeout, nil
	case ms <= 0:
		return 0, fmt.Errorf("timeoutMs must be positive or -1, got %d", ms)
	default:
		return time.Duration(ms) * time.Millisecond, nil
	}
}

func findMatches(ctx context.Context, r *region.Region, tmpl matcher.Template, count int) ([]FoundMatch, error) {
	results, err := r.FindBest(ctx, tmpl, count)
	if err != nil {
		return nil, err
	}

	matches := make([]FoundMatch, 0, len(results))
	for _, res := range results {
		matches = append(matches, newFoundMatch(res))
	}
	return matches, nil
}

func waitFor(ctx context.Context, r *region.Region, tmpl matcher.Template, vanish bool, timeout time.Duration) (WaitResponse, error) {
	response := WaitResponse{Template: tmpl.ID()}

	if vanish {
		gone, err := r.WaitDoesntHave(ctx, tmpl, timeout)
		if err != nil {
			return response, err
		}
		response.Vanished = gone
		response.Found = !gone
		return response, nil
	}

	match, err := r.WaitHas(ctx, tmpl, timeout)
	if err != nil {
		return response, err
	}
	if match != nil {
		found := newFoundMatch(*match)
		response.Found = true
		response.Match = &found
	}
	return response, nil
}

func newFoundMatch(m region.Match) FoundMatch {
	rect := m.Rect()
	return FoundMatch{Rect: rect, Center: rect.Center(), Score: m.Score}
}
