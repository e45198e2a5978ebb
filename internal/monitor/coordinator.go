// Package monitor owns the set of active monitoring sessions and their
// capture, compare, record, alert pipeline. It is the only component
// that talks to all three external collaborators: the capture provider,
// the comparator, and the feedback dispatcher.
package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/driftwatch/driftwatch/internal/apperrors"
	"github.com/driftwatch/driftwatch/internal/capture"
	"github.com/driftwatch/driftwatch/internal/compare"
	"github.com/driftwatch/driftwatch/internal/feedback"
	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/internal/scheduler"
	"github.com/driftwatch/driftwatch/internal/session"
	"github.com/driftwatch/driftwatch/internal/store"
)

// ReferenceWatcher is the optional hook for following baseline changes.
type ReferenceWatcher interface {
	Add(path string) error
	Remove(path string)
}

// StartSpec describes a session to create.
type StartSpec struct {
	Target             session.Target
	IntervalSeconds    int
	ReferenceImagePath string
	AutoFeedback       bool
}

// Options holds the coordinator's fixed pipeline parameters.
type Options struct {
	// SignificantChangeThreshold is the difference percentage above which
	// a tick counts as a significant change.
	SignificantChangeThreshold float64
	// DefaultIntervalSeconds applies when a StartSpec leaves the interval
	// unset.
	DefaultIntervalSeconds int
	CaptureTimeout         time.Duration

	SchedulerJitter            time.Duration
	SchedulerBackoffMultiplier float64
	SchedulerMaxBackoff        time.Duration
}

// Deps are the coordinator's collaborators. Store, Capture, and Compare
// are required; the rest are optional.
type Deps struct {
	Store      *store.Store
	Capture    capture.Provider
	Compare    compare.Comparator
	Dispatcher *feedback.Dispatcher
	Notifier   Notifier
	Watcher    ReferenceWatcher
	Metrics    *metrics.Metrics
	Log        logr.Logger
}

// managedSession pairs a session document with its scheduler. The mutex
// serializes the session's own tick against coordinator API calls; no
// two goroutines ever mutate the document concurrently.
type managedSession struct {
	mu        sync.Mutex
	session   *session.Session
	scheduler *scheduler.Scheduler
}

// Coordinator is the session state machine. Exactly one scheduler
// exists per active-or-paused session, zero for a stopped one.
type Coordinator struct {
	deps Deps
	opts Options
	log  logr.Logger

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

// New creates a coordinator. Call Init to restore persisted sessions.
func New(deps Deps, opts Options) *Coordinator {
	if opts.SignificantChangeThreshold <= 0 {
		opts.SignificantChangeThreshold = 2.0
	}
	if opts.DefaultIntervalSeconds <= 0 {
		opts.DefaultIntervalSeconds = 30
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Log: deps.Log}
	}
	return &Coordinator{
		deps:     deps,
		opts:     opts,
		log:      deps.Log,
		sessions: make(map[string]*managedSession),
	}
}

// Init restores every persisted session and resumes ticking for those
// that were active when the process last stopped. This is the crash
// recovery path: accumulated capture history is preserved and the only
// gap is at most one missed tick.
func (c *Coordinator) Init() error {
	sessions, err := c.deps.Store.LoadAll()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sess := range sessions {
		ms := &managedSession{session: sess}
		c.sessions[sess.ID] = ms

		if sess.IsActive {
			ms.scheduler = c.newScheduler(ms)
			ms.scheduler.Start()
			c.log.Info("resumed session after restart",
				"session", sess.ID, "captures", len(sess.Screenshots))
		}

		c.watchReference(sess.ReferenceImagePath)
	}

	c.updateSessionGauge()
	return nil
}

// StartMonitoring validates the spec, persists a new session, runs one
// tick synchronously so the caller always has at least one capture, and
// arms the scheduler. Returns the new session id.
func (c *Coordinator) StartMonitoring(ctx context.Context, spec StartSpec) (string, error) {
	if spec.IntervalSeconds == 0 {
		spec.IntervalSeconds = c.opts.DefaultIntervalSeconds
	}
	if err := session.ValidateInterval(spec.IntervalSeconds); err != nil {
		return "", err
	}
	if err := spec.Target.Validate(); err != nil {
		return "", err
	}
	if _, err := os.Stat(spec.ReferenceImagePath); err != nil {
		return "", apperrors.New(apperrors.ErrCodeReferenceNotFound,
			fmt.Sprintf("reference image not found: %s", spec.ReferenceImagePath), err)
	}

	sess := session.New(spec.Target, spec.IntervalSeconds, spec.ReferenceImagePath, spec.AutoFeedback)
	if err := c.deps.Store.Save(sess); err != nil {
		return "", err
	}

	ms := &managedSession{session: sess}
	ms.scheduler = c.newScheduler(ms)

	c.mu.Lock()
	c.sessions[sess.ID] = ms
	c.updateSessionGauge()
	c.mu.Unlock()

	// Initial capture before the first scheduled tick. A failure here is
	// a transient pipeline error, not a reason to refuse the session.
	if err := c.runTick(ctx, ms); err != nil {
		c.log.Error(err, "initial capture failed", "session", sess.ID)
	}

	ms.scheduler.Start()
	c.watchReference(sess.ReferenceImagePath)

	c.log.Info("monitoring started",
		"session", sess.ID, "target", sess.Target.String(), "interval", spec.IntervalSeconds)
	return sess.ID, nil
}

// StopMonitoring tears a session down: scheduler discarded, final
// snapshot persisted, on-disk state deleted, summary returned.
func (c *Coordinator) StopMonitoring(id string) (*session.Summary, error) {
	c.mu.Lock()
	ms, ok := c.sessions[id]
	if !ok {
		c.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrCodeSessionNotFound,
			fmt.Sprintf("no session with id %s", id), nil)
	}
	delete(c.sessions, id)
	c.updateSessionGauge()
	c.mu.Unlock()

	if ms.scheduler != nil {
		// An in-flight tick finishes and its capture is still recorded;
		// Wait ensures the final summary covers it.
		ms.scheduler.Stop()
		ms.scheduler.Wait()
		ms.scheduler = nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	sess := ms.session
	sess.IsActive = false
	summary := sess.Summarize(time.Now().UTC())

	// The final snapshot precedes deletion so a crash between the two
	// leaves a resumable session rather than a half-deleted one.
	if err := c.deps.Store.Save(sess); err != nil {
		c.log.Error(err, "failed to persist final snapshot", "session", id)
	}
	if err := c.deps.Store.Delete(id); err != nil {
		return nil, err
	}

	if c.deps.Watcher != nil {
		c.deps.Watcher.Remove(sess.ReferenceImagePath)
	}

	c.log.Info("monitoring stopped", "session", id, "captures", summary.TotalCaptures)
	return summary, nil
}

// PauseMonitoring stops the session's scheduler without touching its
// document or on-disk state. Returns false when no scheduler exists.
func (c *Coordinator) PauseMonitoring(id string) bool {
	c.mu.RLock()
	ms, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok || ms.scheduler == nil {
		return false
	}

	ms.scheduler.Stop()

	ms.mu.Lock()
	if err := c.deps.Store.Save(ms.session); err != nil {
		c.log.Error(err, "failed to persist session on pause", "session", id)
	}
	ms.mu.Unlock()

	c.log.Info("monitoring paused", "session", id)
	return true
}

// ResumeMonitoring restarts the scheduler of a known, active session.
func (c *Coordinator) ResumeMonitoring(id string) bool {
	c.mu.RLock()
	ms, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok || ms.scheduler == nil {
		return false
	}

	ms.mu.Lock()
	active := ms.session.IsActive
	ms.mu.Unlock()
	if !active {
		return false
	}

	ms.scheduler.Start()
	c.log.Info("monitoring resumed", "session", id)
	return true
}

// GetSession returns the in-memory session for id.
func (c *Coordinator) GetSession(id string) (*session.Session, error) {
	c.mu.RLock()
	ms, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeSessionNotFound,
			fmt.Sprintf("no session with id %s", id), nil)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	return snapshotSession(ms.session), nil
}

// GetAllSessions returns all in-memory sessions.
func (c *Coordinator) GetAllSessions() []*session.Session {
	c.mu.RLock()
	managed := make([]*managedSession, 0, len(c.sessions))
	for _, ms := range c.sessions {
		managed = append(managed, ms)
	}
	c.mu.RUnlock()

	sessions := make([]*session.Session, 0, len(managed))
	for _, ms := range managed {
		ms.mu.Lock()
		sessions = append(sessions, snapshotSession(ms.session))
		ms.mu.Unlock()
	}
	return sessions
}

// Cleanup stops every scheduler, then stops every remaining session.
// Per-session failures are collected, not fatal to the overall cleanup.
func (c *Coordinator) Cleanup() error {
	c.mu.RLock()
	ids := make([]string, 0, len(c.sessions))
	for id, ms := range c.sessions {
		ids = append(ids, id)
		if ms.scheduler != nil {
			ms.scheduler.Stop()
		}
	}
	c.mu.RUnlock()

	var result *multierror.Error
	for _, id := range ids {
		if _, err := c.StopMonitoring(id); err != nil {
			result = multierror.Append(result, fmt.Errorf("session %s: %w", id, err))
		}
	}

	if c.deps.Dispatcher != nil {
		c.deps.Dispatcher.Clear()
	}

	return result.ErrorOrNil()
}

// newScheduler binds a scheduler to the session's tick function.
func (c *Coordinator) newScheduler(ms *managedSession) *scheduler.Scheduler {
	return scheduler.New(
		func(ctx context.Context) error { return c.runTick(ctx, ms) },
		scheduler.Options{
			Interval:          time.Duration(ms.session.IntervalSeconds) * time.Second,
			MaxJitter:         c.opts.SchedulerJitter,
			BackoffMultiplier: c.opts.SchedulerBackoffMultiplier,
			MaxBackoff:        c.opts.SchedulerMaxBackoff,
		},
		c.log.WithName("scheduler").WithValues("session", ms.session.ID),
	)
}

// runTick executes one capture, compare, record, alert cycle. Any error
// propagates to the scheduler so its backoff engages.
func (c *Coordinator) runTick(ctx context.Context, ms *managedSession) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	sess := ms.session
	err := c.tickLocked(ctx, sess)
	if c.deps.Metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.deps.Metrics.TicksTotal.WithLabelValues(result).Inc()
	}
	return err
}

func (c *Coordinator) tickLocked(ctx context.Context, sess *session.Session) error {
	res, err := c.deps.Capture.Capture(ctx, sess.Target, capture.Options{Timeout: c.opts.CaptureTimeout})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCapture, "capture failed", err)
	}

	imagesDir := c.deps.Store.ImagesDir(sess.ID)
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return apperrors.New(apperrors.ErrCodeFileOperation, "failed to create images directory", err)
	}

	name := fmt.Sprintf("capture-%d%s", res.Timestamp.UnixMilli(), captureExt(res))
	dest := filepath.Join(imagesDir, name)
	if err := relocate(res.Path, dest); err != nil {
		// Tolerated: degraded or mocked capture environments may report a
		// file that was never produced.
		c.log.V(1).Info("could not relocate capture file",
			"session", sess.ID, "source", res.Path, "error", err)
	}

	var diffPct *float64
	significant := false
	var diffImagePath string

	cmp, cmpErr := c.deps.Compare.Compare(ctx, dest, sess.ReferenceImagePath, compare.Options{})
	if cmpErr == nil {
		diffPct = &cmp.DifferencePercentage
		significant = cmp.DifferencePercentage > c.opts.SignificantChangeThreshold
		diffImagePath = cmp.DiffImagePath
	}

	sess.AppendCapture(session.Capture{
		RelativePath:         filepath.Join("images", name),
		Timestamp:            res.Timestamp,
		DifferencePercentage: diffPct,
		HasSignificantChange: significant,
	})

	if err := c.deps.Store.Save(sess); err != nil {
		return err
	}

	if cmpErr != nil {
		// The capture is recorded with its difference absent; the error
		// still reaches the scheduler.
		return apperrors.New(apperrors.ErrCodeComparison, "comparison failed", cmpErr)
	}

	if significant {
		last := sess.Screenshots[len(sess.Screenshots)-1]
		c.deps.Notifier.NotifySignificantChange(sess.ID, last)
		if c.deps.Metrics != nil {
			c.deps.Metrics.SignificantChangesTotal.Inc()
		}
		if sess.AutoFeedback && c.deps.Dispatcher != nil {
			c.deps.Dispatcher.Trigger(sess.ID, diffImagePath)
		}
	}

	return nil
}

func (c *Coordinator) watchReference(path string) {
	if c.deps.Watcher == nil {
		return
	}
	if err := c.deps.Watcher.Add(path); err != nil {
		c.log.V(1).Info("failed to watch reference image", "path", path, "error", err)
	}
}

// updateSessionGauge reports the in-memory session count. Caller holds
// c.mu.
func (c *Coordinator) updateSessionGauge() {
	if c.deps.Metrics != nil {
		c.deps.Metrics.SessionsActive.Set(float64(len(c.sessions)))
	}
}

// snapshotSession returns a copy whose capture slice is detached from
// the live document, so callers can hold it across ticks.
func snapshotSession(sess *session.Session) *session.Session {
	cp := *sess
	cp.Screenshots = make([]session.Capture, len(sess.Screenshots))
	copy(cp.Screenshots, sess.Screenshots)
	return &cp
}

func captureExt(res *capture.Result) string {
	if ext := filepath.Ext(res.Path); ext != "" {
		return ext
	}
	return ".png"
}

// relocate moves src to dst, falling back to copy+remove across
// filesystems.
func relocate(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
