package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/logger"
)

// Task is a unit of work run by the executor. The context is cancelled by ShutdownNow.
type Task func(ctx context.Context) error

// Config configures the executor
type Config struct {
	QueueCapacity      int           `mapstructure:"queue_capacity" json:"queue_capacity" yaml:"queue_capacity"`
	MinWorkers         int           `mapstructure:"min_workers" json:"min_workers" yaml:"min_workers"`
	MaxWorkers         int           `mapstructure:"max_workers" json:"max_workers" yaml:"max_workers"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
	ShutdownNowTimeout time.Duration `mapstructure:"shutdown_now_timeout" json:"shutdown_now_timeout" yaml:"shutdown_now_timeout"`
}

// DefaultConfig returns the default executor configuration
func DefaultConfig() Config {
	return Config{
		QueueCapacity:      256,
		MinWorkers:         1,
		MaxWorkers:         4,
		IdleTimeout:        60 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		ShutdownNowTimeout: 5 * time.Second,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.MinWorkers <= 0 {
		c.MinWorkers = d.MinWorkers
	}
	if c.MaxWorkers < c.MinWorkers {
		c.MaxWorkers = c.MinWorkers
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.ShutdownNowTimeout <= 0 {
		c.ShutdownNowTimeout = d.ShutdownNowTimeout
	}
	return c
}

// State represents the executor lifecycle state
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Option configures optional executor collaborators
type Option func(*Executor)

// WithLogger sets the executor logger
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.logger = logger.OrDiscard(l) }
}

// WithShedCallback is invoked, outside the executor lock, for every task
// evicted by load shedding.
func WithShedCallback(fn func(*Handle)) Option {
	return func(e *Executor) { e.onShed = fn }
}

// WithFailureCallback is invoked for every task that returned an error or panicked.
func WithFailureCallback(fn func(*Handle, error)) Option {
	return func(e *Executor) { e.onFailure = fn }
}

// Executor is a bounded worker pool with a fixed-capacity FIFO queue.
//
// Submissions never block: when the queue is full and the pool is at its
// maximum size, the oldest queued task is evicted to admit the new one.
type Executor struct {
	cfg    Config
	logger logger.Logger

	onShed    func(*Handle)
	onFailure func(*Handle, error)

	mu      sync.Mutex
	queue   *ring
	workers int
	state   State
	closing chan struct{}
	wake    chan struct{}
	wg      sync.WaitGroup

	runCtx    context.Context
	cancelRun context.CancelFunc

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	shed      atomic.Int64
	cancelled atomic.Int64
}

// NewExecutor creates a running executor. Workers are started on demand.
func NewExecutor(cfg Config, opts ...Option) *Executor {
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		cfg:       cfg,
		logger:    logger.Discard,
		queue:     newRing(cfg.QueueCapacity),
		closing:   make(chan struct{}),
		wake:      make(chan struct{}, cfg.QueueCapacity),
		runCtx:    ctx,
		cancelRun: cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit enqueues task without blocking. After shutdown it fails with ErrExecutorShutdown.
func (e *Executor) Submit(t Task) (*Handle, error) {
	return e.submit(func(ctx context.Context) (any, error) {
		return nil, t(ctx)
	})
}

func (e *Executor) submit(run func(ctx context.Context) (any, error)) (*Handle, error) {
	t := &task{handle: newHandle(uuid.NewString()), run: run}

	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil, errors.New(errors.ErrExecutorShutdown, "executor is shut down")
	}
	e.submitted.Add(1)

	var evicted *task
	switch {
	case e.workers < e.cfg.MinWorkers:
		e.startWorker(t)
	case !e.queue.full():
		e.queue.push(t)
		e.signal()
	case e.workers < e.cfg.MaxWorkers:
		e.startWorker(t)
	default:
		evicted = e.queue.pop()
		e.queue.push(t)
	}
	e.mu.Unlock()

	if evicted != nil {
		e.shed.Add(1)
		evicted.handle.finish(TaskShed, nil, errors.New(errors.ErrTaskShed, "task evicted by load shedding"))
		e.logger.Warn("Executor queue full, dropped oldest task", "task_id", evicted.handle.id, "capacity", e.cfg.QueueCapacity)
		if e.onShed != nil {
			e.onShed(evicted.handle)
		}
	}
	return t.handle, nil
}

// signal wakes one waiting worker; callers hold e.mu.
func (e *Executor) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// startWorker launches a worker that runs first before polling the queue; callers hold e.mu.
func (e *Executor) startWorker(first *task) {
	e.workers++
	e.wg.Add(1)
	go e.work(first)
}

func (e *Executor) work(first *task) {
	defer e.wg.Done()

	if first != nil {
		e.run(first)
	}

	idle := time.NewTimer(e.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		t, exit := e.next()
		if exit {
			return
		}
		if t != nil {
			e.run(t)
			continue
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(e.cfg.IdleTimeout)

		select {
		case <-e.wake:
		case <-e.closing:
		case <-idle.C:
			if e.retire() {
				return
			}
		}
	}
}

// next pops a queued task. exit is true when the worker should stop because
// the executor is shutting down and the queue is empty.
func (e *Executor) next() (t *task, exit bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t = e.queue.pop(); t != nil {
		return t, false
	}
	if e.state != StateRunning {
		e.workers--
		return nil, true
	}
	return nil, false
}

// retire stops an idle worker while the pool is above its minimum size.
func (e *Executor) retire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.workers > e.cfg.MinWorkers && e.queue.len() == 0 {
		e.workers--
		e.logger.Debug("Retiring idle worker", "workers", e.workers)
		return true
	}
	return false
}

func (e *Executor) run(t *task) {
	if !t.handle.markRunning() {
		return
	}

	value, err := e.invoke(t)
	if err != nil {
		e.failed.Add(1)
		t.handle.finish(TaskFailed, value, err)
		e.logger.Error("Task failed", "task_id", t.handle.id, "error", err)
		if e.onFailure != nil {
			e.onFailure(t.handle, err)
		}
		return
	}
	e.completed.Add(1)
	t.handle.finish(TaskCompleted, value, nil)
}

func (e *Executor) invoke(t *task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrTaskPanic, "task panicked: %v", r)
			e.logger.Error("Recovered task panic", "task_id", t.handle.id, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	return t.run(e.runCtx)
}

// CanAcceptTasks reports whether the executor is running and has queue headroom.
func (e *Executor) CanAcceptTasks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning && !e.queue.full()
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish, bounded by ShutdownTimeout and ctx. When the bound is exceeded the
// executor falls back to ShutdownNow.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StateShuttingDown
		close(e.closing)
	}
	pending := e.queue.len()
	e.mu.Unlock()

	e.logger.Info("Shutting down executor", "pending", pending)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer cancel()

	if e.waitWorkers(ctx) {
		e.terminate()
		return nil
	}

	e.logger.Warn("Executor did not drain in time, forcing shutdown", "timeout", e.cfg.ShutdownTimeout)
	_, err := e.ShutdownNow()
	return err
}

// ShutdownNow cancels queued tasks, signals cancellation to running tasks and
// waits up to ShutdownNowTimeout for them to return. It reports the number of
// queued tasks that never ran.
func (e *Executor) ShutdownNow() (int, error) {
	e.mu.Lock()
	if e.state == StateRunning {
		close(e.closing)
	}
	e.state = StateTerminated
	dropped := e.queue.drain()
	e.mu.Unlock()

	e.cancelRun()
	for _, t := range dropped {
		e.cancelled.Add(1)
		t.handle.finish(TaskCancelled, nil, errors.New(errors.ErrTaskCancelled, "task cancelled by shutdown"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownNowTimeout)
	defer cancel()
	if !e.waitWorkers(ctx) {
		e.logger.Error("Executor workers still running after forced shutdown", "timeout", e.cfg.ShutdownNowTimeout)
		return len(dropped), errors.New(errors.ErrSystemTimeout, "workers did not stop before timeout")
	}
	return len(dropped), nil
}

func (e *Executor) terminate() {
	e.mu.Lock()
	e.state = StateTerminated
	e.mu.Unlock()
	e.cancelRun()
}

func (e *Executor) waitWorkers(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stats provides executor statistics
type Stats struct {
	State     string   `json:"state"`
	Workers   int      `json:"workers"`
	QueueSize int      `json:"queue_size"`
	Capacity  int      `json:"capacity"`
	Submitted int64    `json:"submitted"`
	Completed int64    `json:"completed"`
	Failed    int64    `json:"failed"`
	Shed      int64    `json:"shed"`
	Cancelled int64    `json:"cancelled"`
	Queued    []string `json:"queued,omitempty"`
}

// Stats returns a snapshot of executor statistics
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		State:     e.state.String(),
		Workers:   e.workers,
		QueueSize: e.queue.len(),
		Capacity:  e.queue.cap(),
		Queued:    e.queue.ids(),
	}
	e.mu.Unlock()
	s.Submitted = e.submitted.Load()
	s.Completed = e.completed.Load()
	s.Failed = e.failed.Load()
	s.Shed = e.shed.Load()
	s.Cancelled = e.cancelled.Load()
	return s
}

// QueueSize returns the number of queued, not yet started tasks
func (e *Executor) QueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.len()
}

// State returns the lifecycle state
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Config returns the normalized configuration
func (e *Executor) Config() Config { return e.cfg }
