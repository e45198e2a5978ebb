// Package capture produces screenshots of monitoring targets. The
// monitoring core consumes the Provider interface only; the concrete
// providers here (headless browser, OS screenshot helper) are
// replaceable I/O wrappers.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/apperrors"
	"github.com/driftwatch/driftwatch/internal/session"
)

// Result describes one produced capture file.
type Result struct {
	Path      string
	Width     int
	Height    int
	Format    string
	Size      int64
	Timestamp time.Time
}

// Options tunes a single capture call.
type Options struct {
	// Timeout bounds the whole capture. Zero means the provider's default.
	Timeout time.Duration
}

// Provider captures a target into an image file.
type Provider interface {
	Capture(ctx context.Context, target session.Target, opts Options) (*Result, error)
}

// Router dispatches captures to the provider matching the target type.
type Router struct {
	web    Provider
	screen Provider
}

// NewRouter builds a router over the per-target-type providers. Either
// provider may be nil; captures for that type then fail.
func NewRouter(web, screen Provider) *Router {
	return &Router{web: web, screen: screen}
}

func (r *Router) Capture(ctx context.Context, target session.Target, opts Options) (*Result, error) {
	switch target.Type {
	case session.TargetURL:
		if r.web == nil {
			return nil, apperrors.New(apperrors.ErrCodeCapture, "no web capture provider configured", nil)
		}
		return r.web.Capture(ctx, target, opts)
	case session.TargetScreen:
		if r.screen == nil {
			return nil, apperrors.New(apperrors.ErrCodeCapture, "no screen capture provider configured", nil)
		}
		return r.screen.Capture(ctx, target, opts)
	default:
		return nil, apperrors.New(apperrors.ErrCodeCapture,
			fmt.Sprintf("unsupported target type %q", target.Type), nil)
	}
}
