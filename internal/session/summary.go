package session

import (
	"fmt"
	"time"
)

// Summary is the derived result returned once when monitoring stops.
// It is never persisted as its own entity.
type Summary struct {
	SessionID          string    `json:"session_id"`
	Target             Target    `json:"target"`
	TotalCaptures      int       `json:"total_captures"`
	SignificantChanges int       `json:"significant_changes"`
	AverageDifference  float64   `json:"average_difference"`
	Duration           string    `json:"duration"`
	Captures           []Capture `json:"captures"`
}

// Summarize derives the stop-time summary from the session's capture
// history. The average is the arithmetic mean over captures whose
// comparison produced a value; captures with a failed comparison are
// counted in the total but excluded from the mean.
func (s *Session) Summarize(stopTime time.Time) *Summary {
	summary := &Summary{
		SessionID:     s.ID,
		Target:        s.Target,
		TotalCaptures: len(s.Screenshots),
		Duration:      formatDuration(stopTime.Sub(s.StartTime)),
		Captures:      s.Screenshots,
	}

	var sum float64
	var measured int
	for _, c := range s.Screenshots {
		if c.HasSignificantChange {
			summary.SignificantChanges++
		}
		if c.DifferencePercentage != nil {
			sum += *c.DifferencePercentage
			measured++
		}
	}
	if measured > 0 {
		summary.AverageDifference = sum / float64(measured)
	}

	return summary
}

// formatDuration renders a human-readable duration such as "1h 4m 12s".
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}
