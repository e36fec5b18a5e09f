package matcher

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestNewFileTemplate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "button.png")
	writePNG(t, good, blockNoise(30, 20, 1))

	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))

	t.Run("decodes at construction", func(t *testing.T) {
		tmpl, err := NewFileTemplate(good, WithThreshold(0.8))
		require.NoError(t, err)

		img, err := tmpl.Load()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 30, 20), img.Bounds())

		threshold, ok := tmpl.Threshold()
		assert.True(t, ok)
		assert.Equal(t, 0.8, threshold)
		assert.Equal(t, good, tmpl.ID())
	})

	t.Run("undecodable file", func(t *testing.T) {
		_, err := NewFileTemplate(broken)
		assert.ErrorIs(t, err, ErrTemplateDecode)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileTemplate(filepath.Join(dir, "missing.png"))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrTemplateDecode)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := NewFileTemplate(good, WithThreshold(1.2))
		assert.Error(t, err)
	})
}

func TestNewImageTemplate_DefaultThreshold(t *testing.T) {
	tmpl, err := NewImageTemplate("inline", blockNoise(10, 10, 2))
	require.NoError(t, err)

	_, ok := tmpl.Threshold()
	assert.False(t, ok)

	_, err = NewImageTemplate("", blockNoise(10, 10, 2))
	assert.Error(t, err)
}

func TestLoadTemplateSet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "img"), 0o755))
	writePNG(t, filepath.Join(dir, "img", "ok.png"), blockNoise(16, 16, 3))
	writePNG(t, filepath.Join(dir, "img", "cancel.png"), blockNoise(16, 16, 4))

	setPath := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(setPath, []byte(`templates:
  - id: ok_button
    path: img/ok.png
    threshold: 0.95
  - id: cancel_button
    path: img/cancel.png
`), 0o644))

	set, err := LoadTemplateSet(setPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel_button", "ok_button"}, set.IDs())

	ok, found := set.Get("ok_button")
	require.True(t, found)
	threshold, has := ok.Threshold()
	assert.True(t, has)
	assert.Equal(t, 0.95, threshold)

	cancel, found := set.Get("cancel_button")
	require.True(t, found)
	_, has = cancel.Threshold()
	assert.False(t, has)

	_, found = set.Get("missing")
	assert.False(t, found)
}

func TestLoadTemplateSet_Errors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), blockNoise(8, 8, 5))

	tests := []struct {
		name string
		body string
	}{
		{"invalid yaml", "templates: [\n"},
		{"missing path", "templates:\n  - id: a\n"},
		{"duplicate id", "templates:\n  - id: a\n    path: a.png\n  - id: a\n    path: a.png\n"},
		{"missing image", "templates:\n  - id: b\n    path: b.png\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "set.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := LoadTemplateSet(path)
			assert.Error(t, err)
		})
	}
}
