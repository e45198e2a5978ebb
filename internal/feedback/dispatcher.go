// Package feedback rate-limits and bounds the concurrency of automated
// feedback analysis across all monitoring sessions. It is the bulkhead
// between the monitoring pipeline and the expensive external analyzer:
// a burst of near-simultaneous significant changes is throttled, queued,
// and eventually served, never silently dropped.
package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/driftwatch/driftwatch/internal/metrics"
)

// Analysis is the analyzer's structured result for one diff image.
type Analysis struct {
	Summary     string   `json:"summary"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Confidence  float64  `json:"confidence"`
}

// Analyzer produces feedback for a diff visualization image.
type Analyzer interface {
	Analyze(ctx context.Context, diffImagePath string) (*Analysis, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Enabled gates the whole dispatcher; when false every trigger is a
	// no-op returning false.
	Enabled bool
	// RateLimit is the minimum spacing between analyses for one session.
	RateLimit time.Duration
	// MaxConcurrent bounds simultaneously executing analyses.
	MaxConcurrent int
}

type queuedRequest struct {
	sessionKey    string
	diffImagePath string
	enqueuedAt    time.Time
}

// Dispatcher decides per (session, diff image) whether to analyze now,
// reject for being too frequent, or queue until a slot frees up.
// Rate limiting is tracked independently per session key.
type Dispatcher struct {
	analyzer Analyzer
	opts     Options
	log      logr.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu          sync.Mutex
	lastTrigger map[string]time.Time
	active      map[string]struct{}
	queue       []queuedRequest
	wg          sync.WaitGroup
}

// New creates a dispatcher over the given analyzer.
func New(analyzer Analyzer, opts Options, log logr.Logger) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Dispatcher{
		analyzer:    analyzer,
		opts:        opts,
		log:         log,
		now:         time.Now,
		lastTrigger: make(map[string]time.Time),
		active:      make(map[string]struct{}),
	}
}

// SetMetrics attaches Prometheus instrumentation. Optional; a nil
// receiver field simply disables reporting.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Trigger requests analysis of a diff image on behalf of a session.
// It returns true when the analysis was started, false when the request
// was rejected by the per-session rate limit, queued behind the
// concurrency bound, or the dispatcher is disabled.
func (d *Dispatcher) Trigger(sessionKey, diffImagePath string) bool {
	if !d.opts.Enabled {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.lastTrigger[sessionKey]; ok && now.Sub(last) < d.opts.RateLimit {
		d.log.V(1).Info("feedback rate limited", "session", sessionKey)
		if d.metrics != nil {
			d.metrics.FeedbackRejectedTotal.Inc()
		}
		return false
	}

	if len(d.active) >= d.opts.MaxConcurrent {
		d.queue = append(d.queue, queuedRequest{
			sessionKey:    sessionKey,
			diffImagePath: diffImagePath,
			enqueuedAt:    now,
		})
		d.log.V(1).Info("feedback queued", "session", sessionKey, "queueDepth", len(d.queue))
		if d.metrics != nil {
			d.metrics.FeedbackQueuedTotal.Inc()
			d.metrics.FeedbackQueueDepth.Set(float64(len(d.queue)))
		}
		return false
	}

	d.startLocked(sessionKey, diffImagePath, now)
	return true
}

// startLocked records the trigger and launches the analysis. Caller
// holds d.mu.
func (d *Dispatcher) startLocked(sessionKey, diffImagePath string, now time.Time) {
	d.lastTrigger[sessionKey] = now
	d.active[sessionKey] = struct{}{}
	if d.metrics != nil {
		d.metrics.FeedbackTriggeredTotal.Inc()
		d.metrics.FeedbackActive.Set(float64(len(d.active)))
	}

	d.wg.Add(1)
	go d.analyze(sessionKey, diffImagePath)
}

func (d *Dispatcher) analyze(sessionKey, diffImagePath string) {
	defer d.wg.Done()

	result, err := d.analyzer.Analyze(context.Background(), diffImagePath)
	if err != nil {
		// Analyzer failures never reach the session pipeline.
		d.log.Error(err, "feedback analysis failed", "session", sessionKey, "diffImage", diffImagePath)
	} else {
		d.log.Info("feedback analysis complete",
			"session", sessionKey, "issues", len(result.Issues), "confidence", result.Confidence)
	}

	d.complete(sessionKey)
}

// complete releases the session's slot and drains at most one queued
// request.
func (d *Dispatcher) complete(sessionKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.active, sessionKey)
	if d.metrics != nil {
		d.metrics.FeedbackActive.Set(float64(len(d.active)))
	}

	if len(d.queue) == 0 {
		return
	}

	head := d.queue[0]
	d.queue = d.queue[1:]
	if d.metrics != nil {
		defer func() { d.metrics.FeedbackQueueDepth.Set(float64(len(d.queue))) }()
	}

	now := d.now()
	if last, ok := d.lastTrigger[head.sessionKey]; ok && now.Sub(last) < d.opts.RateLimit {
		// Still inside its own rate-limit window; keep it for a later
		// round rather than dropping it.
		d.queue = append(d.queue, head)
		return
	}

	if len(d.active) >= d.opts.MaxConcurrent {
		d.queue = append([]queuedRequest{head}, d.queue...)
		return
	}

	d.startLocked(head.sessionKey, head.diffImagePath, now)
}

// ActiveCount returns the number of analyses currently executing.
func (d *Dispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// QueueDepth returns the number of requests waiting for a slot.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Clear resets all rate-limit history, the active set, and the queue.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastTrigger = make(map[string]time.Time)
	d.active = make(map[string]struct{})
	d.queue = nil
}

// Wait blocks until all in-flight analyses have finished. Intended for
// shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
