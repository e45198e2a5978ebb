package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestNew(t *testing.T) {
	target := Target{Type: TargetURL, URL: "https://example.com", Viewport: &Viewport{Width: 1280, Height: 800}}
	s := New(target, 30, "/tmp/ref.png", true)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, target, s.Target)
	assert.Equal(t, 30, s.IntervalSeconds)
	assert.Equal(t, "/tmp/ref.png", s.ReferenceImagePath)
	assert.True(t, s.IsActive)
	assert.True(t, s.AutoFeedback)
	assert.Empty(t, s.Screenshots)
	assert.WithinDuration(t, time.Now().UTC(), s.StartTime, 5*time.Second)
}

func TestNew_UniqueIDs(t *testing.T) {
	target := Target{Type: TargetURL, URL: "https://example.com"}
	s1 := New(target, 30, "ref.png", false)
	s2 := New(target, 30, "ref.png", false)
	assert.NotEqual(t, s1.ID, s2.ID)
}

func TestAppendCapture_PreservesOrder(t *testing.T) {
	s := New(Target{Type: TargetURL, URL: "https://example.com"}, 30, "ref.png", false)

	for i := 0; i < 5; i++ {
		s.AppendCapture(Capture{
			RelativePath: "images/capture-" + string(rune('a'+i)) + ".png",
			Timestamp:    time.Now(),
		})
	}

	require.Len(t, s.Screenshots, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, "images/capture-"+string(rune('a'+i))+".png", s.Screenshots[i].RelativePath)
	}
}

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"valid url", Target{Type: TargetURL, URL: "https://example.com"}, false},
		{"url missing", Target{Type: TargetURL}, true},
		{"valid screen", Target{Type: TargetScreen}, false},
		{"valid screen region", Target{Type: TargetScreen, Region: &Region{X: 0, Y: 0, Width: 100, Height: 100}}, false},
		{"degenerate region", Target{Type: TargetScreen, Region: &Region{Width: 0, Height: 10}}, true},
		{"unknown type", Target{Type: "pdf"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, ValidateInterval(1))
	assert.NoError(t, ValidateInterval(300))
	assert.Error(t, ValidateInterval(0))
	assert.Error(t, ValidateInterval(301))
	assert.Error(t, ValidateInterval(-5))
}

func TestSummarize(t *testing.T) {
	s := New(Target{Type: TargetURL, URL: "https://example.com"}, 30, "ref.png", false)
	s.StartTime = time.Now().Add(-90 * time.Second)

	s.AppendCapture(Capture{RelativePath: "images/a.png", DifferencePercentage: floatPtr(1.0)})
	s.AppendCapture(Capture{RelativePath: "images/b.png", DifferencePercentage: floatPtr(4.2), HasSignificantChange: true})
	s.AppendCapture(Capture{RelativePath: "images/c.png"}) // comparison failed

	summary := s.Summarize(time.Now())

	assert.Equal(t, s.ID, summary.SessionID)
	assert.Equal(t, 3, summary.TotalCaptures)
	assert.Equal(t, 1, summary.SignificantChanges)
	// Mean over the two measured captures only.
	assert.InDelta(t, 2.6, summary.AverageDifference, 0.0001)
	assert.Equal(t, "1m 30s", summary.Duration)
	assert.Len(t, summary.Captures, 3)
}

func TestSummarize_Empty(t *testing.T) {
	s := New(Target{Type: TargetScreen}, 30, "ref.png", false)
	summary := s.Summarize(s.StartTime)

	assert.Equal(t, 0, summary.TotalCaptures)
	assert.Equal(t, 0, summary.SignificantChanges)
	assert.Equal(t, 0.0, summary.AverageDifference)
	assert.Equal(t, "0s", summary.Duration)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 0m 1s", formatDuration(time.Hour+time.Second))
	assert.Equal(t, "0s", formatDuration(-time.Second))
}
