package convert

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizer_ResizesOversizedImage(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "page_1.png", 4000, 3000)

	o := NewOptimizer(1920, 1080, 85)
	res := o.Optimize(src)

	assert.NotEqual(t, src, res.Path)
	assert.LessOrEqual(t, res.Width, 1920)
	assert.LessOrEqual(t, res.Height, 1080)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, res.Width, img.Bounds().Dx())
	assert.Equal(t, res.Height, img.Bounds().Dy())

	// Aspect ratio preserved: 4:3 source scaled to fit 1080 height.
	assert.Equal(t, 1440, res.Width)
	assert.Equal(t, 1080, res.Height)
}

func TestOptimizer_KeepsSmallImage(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "page_1.png", 640, 480)

	o := NewOptimizer(1920, 1080, 85)
	res := o.Optimize(src)

	assert.Equal(t, src, res.Path)
	assert.Equal(t, 640, res.Width)
	assert.Equal(t, 480, res.Height)
}

func TestOptimizer_NeverFails(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(dir, "missing.png")
		res := NewOptimizer(1920, 1080, 85).Optimize(missing)
		assert.Equal(t, missing, res.Path)
	})

	t.Run("corrupt image", func(t *testing.T) {
		corrupt := filepath.Join(dir, "corrupt.png")
		require.NoError(t, os.WriteFile(corrupt, []byte("not a png"), 0o644))
		res := NewOptimizer(1920, 1080, 85).Optimize(corrupt)
		assert.Equal(t, corrupt, res.Path)
	})
}
