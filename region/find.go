package region

import (
	"context"
	"fmt"
	"time"

	"github.com/mobile-next/mobilecv/matcher"
)

// NoTimeout makes the wait helpers poll until the context ends.
const NoTimeout time.Duration = -1

// Match is a found template as a region of the same display.
type Match struct {
	*Region
	Score float64 `json:"score"`
}

// FindBest searches the region for up to count matches, best first.
func (r *Region) FindBest(ctx context.Context, tmpl matcher.Template, count int) ([]Match, error) {
	raster, err := r.Capture(ctx)
	if err != nil {
		return nil, err
	}

	results, err := r.matcher.FindBest(ctx, raster, tmpl, count)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		sub, err := r.MapRect(res.Rect)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{Region: sub, Score: res.Score})
	}
	return matches, nil
}

// Find returns the best match, if any.
func (r *Region) Find(ctx context.Context, tmpl matcher.Template) (*Match, error) {
	matches, err := r.FindBest(ctx, tmpl, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (r *Region) Has(ctx context.Context, tmpl matcher.Template) (bool, error) {
	m, err := r.Find(ctx, tmpl)
	return m != nil, err
}

func (r *Region) DoesntHave(ctx context.Context, tmpl matcher.Template) (bool, error) {
	has, err := r.Has(ctx, tmpl)
	return !has, err
}

// WaitHas polls until the template shows up. A timeout yields nil without an
// error.
func (r *Region) WaitHas(ctx context.Context, tmpl matcher.Template, timeout time.Duration) (*Match, error) {
	var found *Match
	err := r.poll(ctx, timeout, func() (bool, error) {
		m, err := r.Find(ctx, tmpl)
		found = m
		return m != nil, err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// WaitDoesntHave polls until the template is gone and reports whether that
// happened before the timeout.
func (r *Region) WaitDoesntHave(ctx context.Context, tmpl matcher.Template, timeout time.Duration) (bool, error) {
	gone := false
	err := r.poll(ctx, timeout, func() (bool, error) {
		has, err := r.Has(ctx, tmpl)
		gone = err == nil && !has
		return gone, err
	})
	return gone, err
}

func (r *Region) poll(ctx context.Context, timeout time.Duration, check func() (bool, error)) error {
	if timeout <= 0 && timeout != NoTimeout {
		return fmt.Errorf("wait requires a positive timeout or NoTimeout, got %v", timeout)
	}

	deadline := r.clock.Now().Add(timeout)
	for {
		done, err := check()
		if err != nil || done {
			return err
		}

		if timeout != NoTimeout && !r.clock.Now().Before(deadline) {
			return nil
		}
		if err := r.clock.Sleep(ctx, r.pollInterval); err != nil {
			return err
		}
	}
}
