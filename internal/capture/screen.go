package capture

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-logr/logr"

	"github.com/driftwatch/driftwatch/internal/apperrors"
	"github.com/driftwatch/driftwatch/internal/session"
)

const defaultScreenTimeout = 15 * time.Second

// ScreenProvider captures desktop targets by shelling out to the
// platform screenshot helper and cropping the requested region
// in-process.
type ScreenProvider struct {
	outDir string
	log    logr.Logger
}

// NewScreenProvider creates a provider writing capture files into outDir.
func NewScreenProvider(outDir string, log logr.Logger) *ScreenProvider {
	return &ScreenProvider{outDir: outDir, log: log}
}

func (p *ScreenProvider) Capture(ctx context.Context, target session.Target, opts Options) (*Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultScreenTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := os.MkdirAll(p.outDir, 0755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCapture, "failed to create capture directory", err)
	}

	path := filepath.Join(p.outDir, fmt.Sprintf("capture-%d.png", time.Now().UnixMilli()))
	if err := p.grab(ctx, path); err != nil {
		return nil, err
	}

	if target.Region != nil {
		if err := cropRegion(path, *target.Region); err != nil {
			return nil, err
		}
	}

	return describeImage(path)
}

// grab runs the first available platform screenshot command.
func (p *ScreenProvider) grab(ctx context.Context, path string) error {
	var candidates [][]string
	switch runtime.GOOS {
	case "darwin":
		candidates = [][]string{{"screencapture", "-x", path}}
	case "linux":
		candidates = [][]string{
			{"gnome-screenshot", "-f", path},
			{"import", "-window", "root", path},
			{"scrot", path},
		}
	default:
		return apperrors.New(apperrors.ErrCodeCapture,
			fmt.Sprintf("screen capture not supported on %s", runtime.GOOS), nil)
	}

	var lastErr error
	for _, cmd := range candidates {
		if _, err := exec.LookPath(cmd[0]); err != nil {
			lastErr = err
			continue
		}
		if out, err := exec.CommandContext(ctx, cmd[0], cmd[1:]...).CombinedOutput(); err != nil {
			lastErr = fmt.Errorf("%s: %w (%s)", cmd[0], err, string(out))
			continue
		}
		return nil
	}

	return apperrors.New(apperrors.ErrCodeCapture, "no screenshot helper succeeded", lastErr)
}

// cropRegion rewrites the image at path to the given region.
func cropRegion(path string, region session.Region) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCapture, "failed to open screenshot", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCapture, "failed to decode screenshot", err)
	}

	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return apperrors.New(apperrors.ErrCodeCapture, "region lies outside the screen", nil)
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return apperrors.New(apperrors.ErrCodeCapture, "screenshot format does not support cropping", nil)
	}

	out, err := os.Create(path)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCapture, "failed to rewrite screenshot", err)
	}
	defer out.Close()

	if err := png.Encode(out, sub.SubImage(rect)); err != nil {
		return apperrors.New(apperrors.ErrCodeCapture, "failed to encode cropped screenshot", err)
	}
	return nil
}
