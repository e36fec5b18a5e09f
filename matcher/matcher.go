package matcher

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mobile-next/mobilecv/types"
	"github.com/mobile-next/mobilecv/utils"
	"github.com/sirupsen/logrus"
)

const (
	DefaultWorkingWidth = 500
	DefaultThreshold    = 0.9
	DefaultRefineMargin = 50
	DefaultCacheSize    = 64

	// candidates accepted by the downscaled pass this far below the
	// threshold still get refined at full resolution
	coarseSlack   = 0.1
	maxCandidates = 256
	// below this the downscaled template carries too little signal
	minCoarseSide = 4
)

// FindResult is a match location in frame pixel coordinates.
type FindResult struct {
	Rect  types.Rect `json:"rect"`
	Score float64    `json:"score"`
}

type Option func(*Matcher)

// WithWorkingWidth sets the width frames are downscaled to for the coarse
// pass. Zero disables downscaling.
func WithWorkingWidth(width int) Option {
	return func(m *Matcher) {
		m.workingWidth = width
	}
}

func WithDefaultThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.defaultThreshold = threshold
	}
}

// WithRefineMargin sets how many pixels around a coarse candidate are
// searched again at full resolution.
func WithRefineMargin(margin int) Option {
	return func(m *Matcher) {
		m.refineMargin = margin
	}
}

func WithCacheSize(size int) Option {
	return func(m *Matcher) {
		m.cacheSize = size
	}
}

// WithOverlapFilter toggles removal of intersecting lower scoring matches.
func WithOverlapFilter(enabled bool) Option {
	return func(m *Matcher) {
		m.filterOverlap = enabled
	}
}

// Matcher finds templates inside frames using normalized cross correlation,
// first on a downscaled frame and then at full resolution around each
// candidate.
type Matcher struct {
	mu               sync.Mutex
	workingWidth     int
	defaultThreshold float64
	refineMargin     int
	cacheSize        int
	filterOverlap    bool
	cache            *lru.Cache[string, *preparedTemplate]
	log              *logrus.Entry
}

// preparedTemplate keeps the full resolution intensity plane and the
// downscaled planes per frame width.
type preparedTemplate struct {
	mu     sync.Mutex
	full   *image.Gray
	scaled map[int]*image.Gray
}

func New(opts ...Option) (*Matcher, error) {
	m := &Matcher{
		workingWidth:     DefaultWorkingWidth,
		defaultThreshold: DefaultThreshold,
		refineMargin:     DefaultRefineMargin,
		cacheSize:        DefaultCacheSize,
		filterOverlap:    true,
		log:              utils.WithFields(logrus.Fields{"component": "matcher"}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.workingWidth < 0 {
		return nil, fmt.Errorf("working width must not be negative, got %d", m.workingWidth)
	}
	if m.defaultThreshold < 0 || m.defaultThreshold > 1 {
		return nil, fmt.Errorf("default threshold %v outside [0,1]", m.defaultThreshold)
	}
	if m.refineMargin < 0 {
		return nil, fmt.Errorf("refine margin must not be negative, got %d", m.refineMargin)
	}
	if m.cacheSize < 1 {
		return nil, fmt.Errorf("cache size must be positive, got %d", m.cacheSize)
	}

	cache, err := lru.New[string, *preparedTemplate](m.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

func (m *Matcher) WorkingWidth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workingWidth
}

// SetWorkingWidth changes the coarse pass width. Cached downscaled templates
// become stale, so the cache is purged when the width changes.
func (m *Matcher) SetWorkingWidth(width int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if width == m.workingWidth {
		return
	}
	m.workingWidth = width
	m.cache.Purge()
}

func (m *Matcher) DefaultThreshold() float64 {
	return m.defaultThreshold
}

// CachedTemplates returns how many templates are currently preprocessed.
func (m *Matcher) CachedTemplates() int {
	return m.cache.Len()
}

// Find returns the best match scoring at least the template threshold.
func (m *Matcher) Find(ctx context.Context, frame image.Image, tmpl Template) (FindResult, bool, error) {
	results, err := m.FindBest(ctx, frame, tmpl, 1)
	if err != nil || len(results) == 0 {
		return FindResult{}, false, err
	}
	return results[0], true, nil
}

// FindBest returns up to count non-overlapping matches, best first. A count
// below one returns every match.
func (m *Matcher) FindBest(ctx context.Context, frame image.Image, tmpl Template, count int) ([]FindResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	threshold, ok := tmpl.Threshold()
	if !ok {
		threshold = m.defaultThreshold
	}

	m.mu.Lock()
	workingWidth := m.workingWidth
	m.mu.Unlock()

	prep, err := m.prepare(tmpl)
	if err != nil {
		return nil, err
	}

	gray := toGray(frame)
	fw, fh := gray.Bounds().Dx(), gray.Bounds().Dy()
	tw, th := prep.full.Bounds().Dx(), prep.full.Bounds().Dy()
	if tw > fw || th > fh {
		return nil, nil
	}

	var results []FindResult
	scale := 1.0
	if workingWidth > 0 && fw > workingWidth {
		scale = float64(workingWidth) / float64(fw)
	}

	small := prep.scaledFor(fw, scale)
	if scale < 1 && small.Bounds().Dx() >= minCoarseSide && small.Bounds().Dy() >= minCoarseSide {
		results, err = m.coarseToFine(ctx, gray, prep.full, small, scale, threshold)
		if err != nil {
			return nil, err
		}
	} else {
		results = m.fullResolution(gray, prep.full, threshold)
	}

	if m.filterOverlap {
		results = RemoveOverlaps(results)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if count > 0 && len(results) > count {
		results = results[:count]
	}

	m.log.WithFields(logrus.Fields{"template": tmpl.ID(), "matches": len(results)}).Debug("template search done")
	return results, nil
}

func (m *Matcher) fullResolution(gray, tpl *image.Gray, threshold float64) []FindResult {
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	var results []FindResult
	for _, p := range correlate(gray, tpl).peaks(threshold, maxCandidates) {
		results = append(results, FindResult{Rect: types.NewRect(p.x, p.y, tw, th), Score: p.score})
	}
	return results
}

func (m *Matcher) coarseToFine(ctx context.Context, gray, tpl, smallTpl *image.Gray, scale, threshold float64) ([]FindResult, error) {
	fw, fh := gray.Bounds().Dx(), gray.Bounds().Dy()
	sw, sh := scaledSize(fw, fh, scale)
	smallFrame := resizeGray(gray, sw, sh)

	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	bounds := types.NewRect(0, 0, fw, fh)

	var results []FindResult
	// neighbouring coarse peaks often refine to the same spot
	seen := make(map[types.Rect]bool)
	for _, p := range correlate(smallFrame, smallTpl).peaks(threshold-coarseSlack, maxCandidates) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		approx := types.NewRect(
			int(float64(p.x)/scale+0.5),
			int(float64(p.y)/scale+0.5),
			tw, th,
		)
		area := approx.Grow(m.refineMargin).Intersect(bounds)
		if area.Width < tw || area.Height < th {
			continue
		}

		sub := gray.SubImage(image.Rect(area.X, area.Y, area.Right(), area.Bottom())).(*image.Gray)
		best, ok := correlate(sub, tpl).best()
		if !ok || best.score < threshold {
			continue
		}

		rect := types.NewRect(area.X+best.x, area.Y+best.y, tw, th)
		if seen[rect] {
			continue
		}
		seen[rect] = true
		results = append(results, FindResult{Rect: rect, Score: best.score})
	}
	return results, nil
}

func (m *Matcher) prepare(tmpl Template) (*preparedTemplate, error) {
	if prep, ok := m.cache.Get(tmpl.ID()); ok {
		return prep, nil
	}

	img, err := tmpl.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", tmpl.ID(), err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: template %s is empty", ErrTemplateDecode, tmpl.ID())
	}

	prep := &preparedTemplate{
		full:   toGray(img),
		scaled: make(map[int]*image.Gray),
	}
	m.cache.Add(tmpl.ID(), prep)
	return prep, nil
}

// scaledFor returns the template downscaled for frames of the given width.
func (p *preparedTemplate) scaledFor(frameWidth int, scale float64) *image.Gray {
	if scale >= 1 {
		return p.full
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.scaled[frameWidth]; ok {
		return g
	}
	w, h := scaledSize(p.full.Bounds().Dx(), p.full.Bounds().Dy(), scale)
	g := resizeGray(p.full, w, h)
	p.scaled[frameWidth] = g
	return g
}
