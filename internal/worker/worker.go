package worker

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Task is a fire-and-forget unit of background work.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Dispatcher runs side-effect tasks (notification delivery, durable
// snapshots) off the request path. Tasks get a bounded number of attempts
// and are dropped with a log entry after that; callers never wait on them.
type Dispatcher struct {
	tasks       chan Task
	maxAttempts int
	retryDelay  time.Duration
	taskTimeout time.Duration
	logger      *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(queueSize int) *Dispatcher {
	return &Dispatcher{
		tasks:       make(chan Task, queueSize),
		maxAttempts: 2,
		retryDelay:  2 * time.Second,
		taskTimeout: 30 * time.Second,
		logger:      util.GetLogger(),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

// Submit enqueues a task. When the queue is full the task is dropped
// immediately rather than blocking the caller.
func (d *Dispatcher) Submit(task Task) {
	select {
	case d.tasks <- task:
	default:
		util.WorkerTasksDroppedTotal.WithLabelValues(task.Name).Inc()
		d.logger.Warn("Background queue full, dropping task",
			zap.String("task", task.Name))
	}
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		close(d.tasks)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-d.tasks:
			if !ok {
				return
			}
			d.execute(ctx, task)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, task Task) {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		taskCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
		err = task.Fn(taskCtx)
		cancel()
		if err == nil {
			return
		}

		d.logger.Warn("Background task failed",
			zap.String("task", task.Name),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < d.maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryDelay):
			}
		}
	}

	// Retry-or-drop policy: after the final attempt the task is dropped and
	// the failure stays visible in logs and metrics only.
	util.WorkerTasksDroppedTotal.WithLabelValues(task.Name).Inc()
	d.logger.Error("Background task dropped after retries",
		zap.String("task", task.Name),
		zap.Error(err))
}
