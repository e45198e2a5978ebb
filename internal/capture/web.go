package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-logr/logr"

	"github.com/driftwatch/driftwatch/internal/apperrors"
	"github.com/driftwatch/driftwatch/internal/session"

	_ "image/png"
)

const defaultWebTimeout = 30 * time.Second

// WebProvider captures URL targets with a headless Chromium driven over
// the DevTools protocol.
type WebProvider struct {
	outDir      string
	browserPath string
	log         logr.Logger
}

// NewWebProvider creates a provider writing capture files into outDir.
// browserPath overrides chromedp's executable lookup when non-empty.
func NewWebProvider(outDir, browserPath string, log logr.Logger) *WebProvider {
	return &WebProvider{
		outDir:      outDir,
		browserPath: browserPath,
		log:         log,
	}
}

func (p *WebProvider) Capture(ctx context.Context, target session.Target, opts Options) (*Result, error) {
	if target.URL == "" {
		return nil, apperrors.New(apperrors.ErrCodeCapture, "url target requires a url", nil)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWebTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if p.browserPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(p.browserPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	width, height := 1280, 800
	if target.Viewport != nil {
		width, height = target.Viewport.Width, target.Viewport.Height
	}

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(target.URL),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.New(apperrors.ErrCodeCapture,
				fmt.Sprintf("capture timed out after %v", timeout), err)
		}
		return nil, apperrors.New(apperrors.ErrCodeCapture, "navigation failed", err)
	}

	if err := os.MkdirAll(p.outDir, 0755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCapture, "failed to create capture directory", err)
	}

	path := filepath.Join(p.outDir, fmt.Sprintf("capture-%d.png", time.Now().UnixMilli()))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCapture, "failed to write capture file", err)
	}

	return describeImage(path)
}

// describeImage fills a Result from a written image file.
func describeImage(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCapture, "failed to open capture file", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCapture, "failed to decode capture file", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCapture, "failed to stat capture file", err)
	}

	return &Result{
		Path:      path,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		Size:      info.Size(),
		Timestamp: time.Now().UTC(),
	}, nil
}
