// Package scheduler drives a single repeating async task with three
// guarantees: invocations never overlap, every delay carries bounded
// random jitter, and consecutive failures back off exponentially until
// the next success resets the cadence.
package scheduler

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Task is the repeating unit of work. Its error never stops the
// scheduler; it only lengthens the delay before the next attempt.
type Task func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	// Interval is the base delay between invocations. Required.
	Interval time.Duration
	// MaxJitter bounds the uniform random delay added to every interval.
	// Zero disables jitter.
	MaxJitter time.Duration
	// BackoffMultiplier grows the delay after consecutive failures.
	// Values <= 1 disable backoff.
	BackoffMultiplier float64
	// MaxBackoff caps the grown delay. Defaults to Interval.
	MaxBackoff time.Duration
}

// Scheduler executes one task on a jittered, backoff-aware cadence.
// Invocations are strictly sequential: the next delay is only armed
// after the previous invocation returns.
type Scheduler struct {
	opts Options
	task Task
	log  logr.Logger

	mu                sync.Mutex
	running           bool
	consecutiveErrors int
	backoff           time.Duration
	stopCh            chan struct{}
	done              chan struct{}
}

// New creates a scheduler for the given task. Start must be called to
// arm the first invocation.
func New(task Task, opts Options, log logr.Logger) *Scheduler {
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = opts.Interval
	}
	return &Scheduler{
		opts: opts,
		task: task,
		log:  log,
	}
}

// Start arms the first delayed invocation. Calling Start on a running
// scheduler is a no-op. Any previous error count and backoff are reset.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.V(1).Info("scheduler already running, ignoring start")
		return
	}

	s.running = true
	s.consecutiveErrors = 0
	s.backoff = s.opts.Interval
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stopCh, s.done)
}

// Stop cancels the pending invocation. An in-flight task is allowed to
// finish normally; its completion does not re-arm the scheduler.
// Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.stopCh)
	s.log.V(1).Info("scheduler stopped")
}

// Running reports whether the scheduler is currently armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until the scheduler's loop has exited, including any task
// that was in flight when Stop was called. Returns immediately if the
// scheduler was never started.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *Scheduler) run(stopCh, done chan struct{}) {
	defer close(done)

	for {
		timer := time.NewTimer(s.nextDelay())
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		// The task runs against the background context: Stop must never
		// abort an invocation that is already in flight.
		err := s.task(context.Background())
		s.recordResult(err)

		select {
		case <-stopCh:
			// Stopped while the task was executing; do not re-arm.
			return
		default:
		}
	}
}

// nextDelay returns the current backoff plus uniform random jitter.
func (s *Scheduler) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.backoff
	if s.opts.MaxJitter > 0 {
		delay += rand.N(s.opts.MaxJitter)
	}
	return delay
}

// recordResult updates the error count and backoff after an invocation.
func (s *Scheduler) recordResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.consecutiveErrors = 0
		s.backoff = s.opts.Interval
		return
	}

	s.consecutiveErrors++
	s.log.Error(err, "scheduled task failed", "consecutiveErrors", s.consecutiveErrors)

	if s.opts.BackoffMultiplier > 1 {
		grown := float64(s.opts.Interval) * math.Pow(s.opts.BackoffMultiplier, float64(s.consecutiveErrors))
		s.backoff = min(time.Duration(grown), s.opts.MaxBackoff)
		s.log.V(1).Info("backing off", "delay", s.backoff)
	}
}
