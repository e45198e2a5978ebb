// Package compare measures the visual difference between a capture and
// its reference image. The monitoring core consumes the Comparator
// interface only.
package compare

import (
	"context"
	"image"
	"image/png"
	"os"

	"github.com/go-logr/logr"
	"github.com/orisano/pixelmatch"

	"github.com/driftwatch/driftwatch/internal/apperrors"

	_ "image/jpeg"
)

// Result is the outcome of one comparison.
type Result struct {
	DifferencePercentage float64
	DiffImagePath        string
	IsMatch              bool
	PixelsCompared       int
	PixelsDifferent      int
}

// Options tunes one comparison.
type Options struct {
	// PixelThreshold is the per-pixel color distance below which two
	// pixels count as equal. Zero means the default of 0.1.
	PixelThreshold float64
}

// Comparator compares two image files.
type Comparator interface {
	Compare(ctx context.Context, currentPath, referencePath string, opts Options) (*Result, error)
}

// PixelComparator implements Comparator with a pixelmatch diff, writing
// a diff visualization PNG next to the current capture.
type PixelComparator struct {
	log logr.Logger
}

// NewPixelComparator creates a pixel-level comparator.
func NewPixelComparator(log logr.Logger) *PixelComparator {
	return &PixelComparator{log: log}
}

func (c *PixelComparator) Compare(ctx context.Context, currentPath, referencePath string, opts Options) (*Result, error) {
	current, err := loadImage(currentPath)
	if err != nil {
		return nil, err
	}
	reference, err := loadImage(referencePath)
	if err != nil {
		return nil, err
	}

	curBounds, refBounds := current.Bounds(), reference.Bounds()
	if curBounds.Dx() != refBounds.Dx() || curBounds.Dy() != refBounds.Dy() {
		// Dimension mismatch still yields a result: everything differs.
		c.log.V(1).Info("image dimensions differ",
			"current", curBounds.Size(), "reference", refBounds.Size())
		total := curBounds.Dx() * curBounds.Dy()
		return &Result{
			DifferencePercentage: 100,
			IsMatch:              false,
			PixelsCompared:       total,
			PixelsDifferent:      total,
		}, nil
	}

	threshold := opts.PixelThreshold
	if threshold <= 0 {
		threshold = 0.1
	}

	var diff image.Image
	different, err := pixelmatch.MatchPixel(current, reference,
		pixelmatch.Threshold(threshold),
		pixelmatch.WriteTo(&diff),
	)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeComparison, "pixel comparison failed", err)
	}

	total := curBounds.Dx() * curBounds.Dy()
	result := &Result{
		IsMatch:         different == 0,
		PixelsCompared:  total,
		PixelsDifferent: different,
	}
	if total > 0 {
		result.DifferencePercentage = float64(different) / float64(total) * 100
	}

	if diff != nil {
		diffPath := currentPath + ".diff.png"
		if err := writePNG(diffPath, diff); err != nil {
			// The percentage is still valid without the visualization.
			c.log.Error(err, "failed to write diff image", "path", diffPath)
		} else {
			result.DiffImagePath = diffPath
		}
	}

	return result, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeComparison, "failed to open image", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeComparison, "failed to decode image", err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
