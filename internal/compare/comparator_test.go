package compare

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNGFile(t *testing.T, path string, width, height int, fill color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestPixelComparator_IdenticalImages(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "current.png")
	reference := filepath.Join(dir, "reference.png")
	writePNGFile(t, current, 50, 50, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	writePNGFile(t, reference, 50, 50, color.RGBA{R: 200, G: 10, B: 10, A: 255})

	c := NewPixelComparator(logr.Discard())
	res, err := c.Compare(context.Background(), current, reference, Options{})
	require.NoError(t, err)

	assert.True(t, res.IsMatch)
	assert.Equal(t, 0.0, res.DifferencePercentage)
	assert.Equal(t, 2500, res.PixelsCompared)
	assert.Equal(t, 0, res.PixelsDifferent)
}

func TestPixelComparator_DifferentImages(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "current.png")
	reference := filepath.Join(dir, "reference.png")
	writePNGFile(t, current, 50, 50, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	writePNGFile(t, reference, 50, 50, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	c := NewPixelComparator(logr.Discard())
	res, err := c.Compare(context.Background(), current, reference, Options{})
	require.NoError(t, err)

	assert.False(t, res.IsMatch)
	assert.Greater(t, res.DifferencePercentage, 50.0)

	// A diff visualization is written next to the current capture.
	assert.Equal(t, current+".diff.png", res.DiffImagePath)
	assert.FileExists(t, res.DiffImagePath)
}

func TestPixelComparator_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "current.png")
	reference := filepath.Join(dir, "reference.png")
	writePNGFile(t, current, 50, 50, color.RGBA{A: 255})
	writePNGFile(t, reference, 40, 60, color.RGBA{A: 255})

	c := NewPixelComparator(logr.Discard())
	res, err := c.Compare(context.Background(), current, reference, Options{})
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.DifferencePercentage)
	assert.False(t, res.IsMatch)
}

func TestPixelComparator_MissingFile(t *testing.T) {
	dir := t.TempDir()
	reference := filepath.Join(dir, "reference.png")
	writePNGFile(t, reference, 10, 10, color.RGBA{A: 255})

	c := NewPixelComparator(logr.Discard())
	_, err := c.Compare(context.Background(), filepath.Join(dir, "nope.png"), reference, Options{})
	assert.Error(t, err)
}
