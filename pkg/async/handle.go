// Package async provides the bounded, non-blocking task executor that keeps
// slow notification delivery off the caller's path.
package async

import (
	"context"
	"sync"
	"time"
)

// TaskState represents the lifecycle state of a submitted task
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskShed      TaskState = "shed"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskShed, TaskCancelled:
		return true
	}
	return false
}

// Handle tracks one submitted task.
type Handle struct {
	id          string
	submittedAt time.Time

	mu        sync.Mutex
	state     TaskState
	value     any
	err       error
	startedAt time.Time
	doneAt    time.Time
	done      chan struct{}
}

func newHandle(id string) *Handle {
	return &Handle{
		id:          id,
		submittedAt: time.Now(),
		state:       TaskQueued,
		done:        make(chan struct{}),
	}
}

// ID returns the task identifier.
func (h *Handle) ID() string { return h.id }

// State returns the current task state.
func (h *Handle) State() TaskState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task error once done, nil otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the task finishes or ctx is done. It returns the task's
// error, a shed or cancellation error, or ctx.Err().
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Value returns the task's computed value after completion.
func (h *Handle) Value() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// QueueTime is how long the task waited before starting.
func (h *Handle) QueueTime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startedAt.IsZero() {
		return 0
	}
	return h.startedAt.Sub(h.submittedAt)
}

func (h *Handle) markRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != TaskQueued {
		return false
	}
	h.state = TaskRunning
	h.startedAt = time.Now()
	return true
}

func (h *Handle) finish(state TaskState, value any, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return
	}
	h.state = state
	h.value = value
	h.err = err
	h.doneAt = time.Now()
	close(h.done)
}

// Future is a typed view over a Handle whose task computes a value.
type Future[T any] struct {
	*Handle
}

// Get waits for the value.
func (f Future[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if err := f.Wait(ctx); err != nil {
		return zero, err
	}
	v, _ := f.Value().(T)
	return v, nil
}

// Call submits a value-returning computation to e.
func Call[T any](e *Executor, fn func(ctx context.Context) (T, error)) (Future[T], error) {
	h, err := e.submit(func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return Future[T]{}, err
	}
	return Future[T]{Handle: h}, nil
}
