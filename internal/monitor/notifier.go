package monitor

import (
	"github.com/go-logr/logr"

	"github.com/driftwatch/driftwatch/internal/session"
)

// Notifier receives significant-change events from the pipeline.
type Notifier interface {
	NotifySignificantChange(sessionID string, capture session.Capture)
}

// LogNotifier is the default Notifier; it records the event with full
// session context.
type LogNotifier struct {
	Log logr.Logger
}

func (n LogNotifier) NotifySignificantChange(sessionID string, capture session.Capture) {
	diff := 0.0
	if capture.DifferencePercentage != nil {
		diff = *capture.DifferencePercentage
	}
	n.Log.Info("significant visual change detected",
		"session", sessionID,
		"capture", capture.RelativePath,
		"difference", diff)
}

// MultiNotifier fans an event out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifySignificantChange(sessionID string, capture session.Capture) {
	for _, n := range m {
		n.NotifySignificantChange(sessionID, capture)
	}
}
