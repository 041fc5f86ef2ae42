package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(8)
	d.retryDelay = 10 * time.Millisecond
	d.Start(context.Background(), 1)
	t.Cleanup(d.Stop)
	return d
}

func TestDispatcherRunsTask(t *testing.T) {
	d := newTestDispatcher(t)

	var ran atomic.Int32
	d.Submit(Task{Name: "test", Fn: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}})

	assert.Eventually(t, func() bool { return ran.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestDispatcherRetriesThenDrops(t *testing.T) {
	d := newTestDispatcher(t)

	var attempts atomic.Int32
	d.Submit(Task{Name: "flaky", Fn: func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("boom")
	}})

	assert.Eventually(t, func() bool { return attempts.Load() == 2 },
		time.Second, 5*time.Millisecond, "one retry, then drop")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDispatcherRecoversAfterFailure(t *testing.T) {
	d := newTestDispatcher(t)

	var ok atomic.Int32
	d.Submit(Task{Name: "bad", Fn: func(ctx context.Context) error { return errors.New("boom") }})
	d.Submit(Task{Name: "good", Fn: func(ctx context.Context) error {
		ok.Add(1)
		return nil
	}})

	assert.Eventually(t, func() bool { return ok.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(1)
	// Not started: the queue fills immediately.
	d.Submit(Task{Name: "first", Fn: func(ctx context.Context) error { return nil }})
	d.Submit(Task{Name: "second", Fn: func(ctx context.Context) error { return nil }})
	// No assertion beyond not blocking; the second task is dropped.
}
