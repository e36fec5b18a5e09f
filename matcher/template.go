package matcher

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
)

// ErrTemplateDecode is returned when a template image cannot be decoded.
var ErrTemplateDecode = errors.New("failed to decode template image")

// Template is a reference image searched for inside frames. ID must be stable
// for identical images since it keys the preprocessing cache.
type Template interface {
	ID() string
	// Threshold returns the template specific threshold, if any.
	Threshold() (float64, bool)
	Load() (image.Image, error)
}

type TemplateOption func(*baseTemplate)

// WithThreshold overrides the matcher default threshold for this template.
func WithThreshold(threshold float64) TemplateOption {
	return func(t *baseTemplate) {
		t.threshold = threshold
		t.hasThreshold = true
	}
}

type baseTemplate struct {
	id           string
	threshold    float64
	hasThreshold bool
	img          image.Image
}

func (t *baseTemplate) ID() string {
	return t.id
}

func (t *baseTemplate) Threshold() (float64, bool) {
	return t.threshold, t.hasThreshold
}

func (t *baseTemplate) Load() (image.Image, error) {
	return t.img, nil
}

// FileTemplate is a template backed by a png or jpeg file.
type FileTemplate struct {
	baseTemplate
	path string
}

// NewFileTemplate decodes path immediately so a broken file fails here rather
// than during a search.
func NewFileTemplate(path string, opts ...TemplateOption) (*FileTemplate, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template path %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrTemplateDecode, path, err)
	}

	t := &FileTemplate{baseTemplate: baseTemplate{id: abs, img: img}, path: abs}
	for _, opt := range opts {
		opt(&t.baseTemplate)
	}
	if err := validateThreshold(&t.baseTemplate); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FileTemplate) Path() string {
	return t.path
}

// ImageTemplate wraps an in-memory image under a caller chosen id.
type ImageTemplate struct {
	baseTemplate
}

func NewImageTemplate(id string, img image.Image, opts ...TemplateOption) (*ImageTemplate, error) {
	if id == "" {
		return nil, fmt.Errorf("template id is required")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: template %s is empty", ErrTemplateDecode, id)
	}

	t := &ImageTemplate{baseTemplate: baseTemplate{id: id, img: img}}
	for _, opt := range opts {
		opt(&t.baseTemplate)
	}
	if err := validateThreshold(&t.baseTemplate); err != nil {
		return nil, err
	}
	return t, nil
}

func validateThreshold(t *baseTemplate) error {
	if t.hasThreshold && (t.threshold < 0 || t.threshold > 1) {
		return fmt.Errorf("template %s threshold %v outside [0,1]", t.id, t.threshold)
	}
	return nil
}
