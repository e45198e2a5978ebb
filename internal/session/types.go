// Package session defines the data model for monitoring sessions: the
// session document persisted by the store, its per-tick capture records,
// and the summary derived when monitoring stops.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/apperrors"
)

// Interval bounds for a session's polling period, in seconds.
const (
	MinIntervalSeconds = 1
	MaxIntervalSeconds = 300
)

// TargetType discriminates the capture target union.
type TargetType string

const (
	TargetURL    TargetType = "url"
	TargetScreen TargetType = "screen"
)

// Viewport is the emulated browser viewport for URL targets.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Region is a desktop screen region for screen targets.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Target specifies what a session captures: a web page rendered at a
// viewport, or a region of the desktop.
type Target struct {
	Type     TargetType `json:"type"`
	URL      string     `json:"url,omitempty"`
	Viewport *Viewport  `json:"viewport,omitempty"`
	Region   *Region    `json:"region,omitempty"`
}

// Validate checks the target union is well-formed.
func (t *Target) Validate() error {
	switch t.Type {
	case TargetURL:
		if t.URL == "" {
			return apperrors.New(apperrors.ErrCodeInvalidInput, "url target requires a url", nil)
		}
	case TargetScreen:
		if t.Region != nil && (t.Region.Width <= 0 || t.Region.Height <= 0) {
			return apperrors.New(apperrors.ErrCodeInvalidInput, "screen region must have positive dimensions", nil)
		}
	default:
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown target type %q", t.Type), nil)
	}
	return nil
}

func (t Target) String() string {
	switch t.Type {
	case TargetURL:
		return t.URL
	case TargetScreen:
		if t.Region != nil {
			return fmt.Sprintf("screen %dx%d@%d,%d", t.Region.Width, t.Region.Height, t.Region.X, t.Region.Y)
		}
		return "screen"
	default:
		return string(t.Type)
	}
}

// Capture is the result of one monitoring tick.
type Capture struct {
	// RelativePath locates the stored image relative to the session's own
	// directory. Absolute paths are never persisted so a session directory
	// stays portable across machines and restores.
	RelativePath string `json:"relative_path"`
	Timestamp    time.Time `json:"timestamp"`
	// DifferencePercentage is nil when the comparison for this tick failed.
	DifferencePercentage *float64 `json:"difference_percentage,omitempty"`
	HasSignificantChange bool     `json:"has_significant_change"`
}

// Session is one continuous monitoring run against a single target and
// reference image. The document is persisted in full after every mutation.
type Session struct {
	ID                 string    `json:"id"`
	Target             Target    `json:"target"`
	IntervalSeconds    int       `json:"interval_seconds"`
	ReferenceImagePath string    `json:"reference_image_path"`
	StartTime          time.Time `json:"start_time"`
	// IsActive is true while a scheduler should drive this session. A
	// paused session keeps IsActive=true; its scheduler is merely stopped.
	IsActive     bool `json:"is_active"`
	AutoFeedback bool `json:"auto_feedback"`
	// Screenshots is append-only; insertion order is chronological order.
	Screenshots []Capture `json:"screenshots"`
}

// New builds a session with a fresh id and start time.
func New(target Target, intervalSeconds int, referenceImagePath string, autoFeedback bool) *Session {
	return &Session{
		ID:                 uuid.NewString(),
		Target:             target,
		IntervalSeconds:    intervalSeconds,
		ReferenceImagePath: referenceImagePath,
		StartTime:          time.Now().UTC(),
		IsActive:           true,
		AutoFeedback:       autoFeedback,
		Screenshots:        []Capture{},
	}
}

// AppendCapture records one tick's result. Captures are never reordered
// or mutated in place.
func (s *Session) AppendCapture(c Capture) {
	s.Screenshots = append(s.Screenshots, c)
}

// ValidateInterval checks the polling period against the allowed range.
func ValidateInterval(seconds int) error {
	if seconds < MinIntervalSeconds || seconds > MaxIntervalSeconds {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("interval must be between %d and %d seconds, got %d",
				MinIntervalSeconds, MaxIntervalSeconds, seconds), nil)
	}
	return nil
}
