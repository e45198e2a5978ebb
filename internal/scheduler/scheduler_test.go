package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_NoOverlap(t *testing.T) {
	var mu sync.Mutex
	var starts, ends []time.Time

	// Task takes much longer than the interval; executions must still be
	// strictly sequential.
	task := func(ctx context.Context) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		ends = append(ends, time.Now())
		mu.Unlock()
		return nil
	}

	s := New(task, Options{Interval: 2 * time.Millisecond}, logr.Discard())
	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Stop()
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(ends), 2, "expected at least two completed executions")
	for i := 0; i < len(ends)-1; i++ {
		assert.False(t, starts[i+1].Before(ends[i]),
			"execution %d started before execution %d completed", i+1, i)
	}
}

func TestScheduler_BackoffGrowthAndReset(t *testing.T) {
	base := 10 * time.Millisecond
	s := New(func(ctx context.Context) error { return nil }, Options{
		Interval:          base,
		BackoffMultiplier: 2,
		MaxBackoff:        80 * time.Millisecond,
	}, logr.Discard())
	s.backoff = base

	failure := errors.New("tick failed")

	expected := []time.Duration{
		20 * time.Millisecond, // base * 2^1
		40 * time.Millisecond, // base * 2^2
		80 * time.Millisecond, // base * 2^3
		80 * time.Millisecond, // capped at max backoff
	}
	for i, want := range expected {
		s.recordResult(failure)
		assert.Equal(t, want, s.nextDelay(), "delay after %d consecutive failures", i+1)
	}

	// One success resets to base.
	s.recordResult(nil)
	assert.Equal(t, base, s.nextDelay())
	assert.Equal(t, 0, s.consecutiveErrors)
}

func TestScheduler_BackoffDisabledByDefault(t *testing.T) {
	base := 10 * time.Millisecond
	s := New(func(ctx context.Context) error { return nil }, Options{Interval: base}, logr.Discard())
	s.backoff = base

	s.recordResult(errors.New("tick failed"))
	s.recordResult(errors.New("tick failed"))

	assert.Equal(t, base, s.nextDelay())
	assert.Equal(t, 2, s.consecutiveErrors)
}

func TestScheduler_JitterBounded(t *testing.T) {
	base := 10 * time.Millisecond
	jitter := 5 * time.Millisecond
	s := New(func(ctx context.Context) error { return nil }, Options{
		Interval:  base,
		MaxJitter: jitter,
	}, logr.Discard())
	s.backoff = base

	for i := 0; i < 200; i++ {
		d := s.nextDelay()
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+jitter)
	}
}

func TestScheduler_StartIdempotent(t *testing.T) {
	var mu sync.Mutex
	count := 0
	task := func(ctx context.Context) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}

	s := New(task, Options{Interval: 10 * time.Millisecond}, logr.Discard())
	s.Start()
	s.Start()
	s.Start()
	assert.True(t, s.Running())

	time.Sleep(55 * time.Millisecond)
	s.Stop()
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	// A second loop would roughly double the execution count.
	assert.LessOrEqual(t, count, 8)
	assert.GreaterOrEqual(t, count, 2)
}

func TestScheduler_StopIdempotent(t *testing.T) {
	s := New(func(ctx context.Context) error { return nil }, Options{Interval: time.Hour}, logr.Discard())
	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
	s.Wait()
}

func TestScheduler_StopCancelsPendingInvocation(t *testing.T) {
	var mu sync.Mutex
	ran := false
	s := New(func(ctx context.Context) error {
		mu.Lock()
		ran = true
		mu.Unlock()
		return nil
	}, Options{Interval: time.Hour}, logr.Discard())

	s.Start()
	s.Stop()
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, ran, "pending invocation should have been cancelled")
}

func TestScheduler_InFlightTaskCompletesAfterStop(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	completions := 0

	task := func(ctx context.Context) error {
		close(started)
		<-release
		mu.Lock()
		completions++
		mu.Unlock()
		return nil
	}

	s := New(task, Options{Interval: time.Millisecond}, logr.Discard())
	s.Start()

	<-started
	s.Stop()
	close(release)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, completions, "in-flight task must complete exactly once")
}

func TestScheduler_RestartResetsBackoff(t *testing.T) {
	base := 10 * time.Millisecond
	s := New(func(ctx context.Context) error { return nil }, Options{
		Interval:          base,
		BackoffMultiplier: 2,
		MaxBackoff:        time.Second,
	}, logr.Discard())
	s.backoff = base

	s.recordResult(errors.New("tick failed"))
	s.recordResult(errors.New("tick failed"))
	require.Greater(t, s.nextDelay(), base)

	s.Start()
	defer func() {
		s.Stop()
		s.Wait()
	}()

	assert.Equal(t, base, s.nextDelay())
}

func TestScheduler_MaxBackoffDefaultsToInterval(t *testing.T) {
	base := 10 * time.Millisecond
	s := New(func(ctx context.Context) error { return nil }, Options{
		Interval:          base,
		BackoffMultiplier: 2,
	}, logr.Discard())
	s.backoff = base

	s.recordResult(errors.New("tick failed"))
	assert.Equal(t, base, s.nextDelay())
}
