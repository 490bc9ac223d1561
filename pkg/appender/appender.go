// Package appender is the entry point captured events enter the notification
// pipeline through. It decides per event whether to dispatch on the bounded
// executor or inline, detached from the caller.
package appender

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/errmonitor/pkg/async"
	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/dispatch"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

// ReportObserver receives every finished dispatch report
type ReportObserver interface {
	ObserveReport(ctx context.Context, report *receipt.Report)
}

// ObserverFunc adapts a function to ReportObserver
type ObserverFunc func(ctx context.Context, report *receipt.Report)

func (f ObserverFunc) ObserveReport(ctx context.Context, report *receipt.Report) { f(ctx, report) }

type noopObserver struct{}

func (noopObserver) ObserveReport(context.Context, *receipt.Report) {}

type observerBox struct{ ReportObserver }

// Option configures an Appender
type Option func(*Appender)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(a *Appender) { a.logger = logger.OrDiscard(l) }
}

// WithAsync enables dispatch on an executor built from cfg
func WithAsync(cfg async.Config, opts ...async.Option) Option {
	return func(a *Appender) {
		a.asyncCfg = &cfg
		a.execOpts = opts
	}
}

// WithExecutor dispatches on an existing executor. The appender shuts it
// down on Stop.
func WithExecutor(e *async.Executor) Option {
	return func(a *Appender) { a.executor = e }
}

// WithObserver sets the report observer
func WithObserver(o ReportObserver) Option {
	return func(a *Appender) { a.SetObserver(o) }
}

// Appender feeds events to the orchestrator
type Appender struct {
	orchestrator *dispatch.Orchestrator
	dests        []destination.Config
	logger       logger.Logger

	asyncCfg *async.Config
	execOpts []async.Option
	executor *async.Executor

	observer atomic.Pointer[observerBox]
	inflight sync.WaitGroup
	active   atomic.Bool
	warnOnce sync.Once
	stopOnce sync.Once
	stopErr  error
}

// New creates an Appender. The destination list is read-only afterwards.
func New(o *dispatch.Orchestrator, dests []destination.Config, opts ...Option) *Appender {
	a := &Appender{
		orchestrator: o,
		dests:        dests,
		logger:       logger.Discard,
	}
	a.observer.Store(&observerBox{noopObserver{}})
	for _, opt := range opts {
		opt(a)
	}
	if a.executor == nil && a.asyncCfg != nil {
		execOpts := append([]async.Option{async.WithLogger(a.logger)}, a.execOpts...)
		a.executor = async.NewExecutor(*a.asyncCfg, execOpts...)
	}
	return a
}

// SetObserver replaces the report observer; nil removes it.
func (a *Appender) SetObserver(o ReportObserver) {
	if o == nil {
		o = noopObserver{}
	}
	a.observer.Store(&observerBox{o})
}

// Destinations returns the configured destinations
func (a *Appender) Destinations() []destination.Config { return a.dests }

// Executor returns the dispatch executor, nil in synchronous mode
func (a *Appender) Executor() *async.Executor { return a.executor }

// Active reports whether Start succeeded and Stop has not been called.
func (a *Appender) Active() bool { return a.active.Load() }

// Start activates the appender. Without an orchestrator or an enabled
// destination it stays inactive and logs a single warning.
func (a *Appender) Start() {
	if a.orchestrator == nil || !destination.AnyEnabled(a.dests) {
		a.warnOnce.Do(func() {
			a.logger.Warn("Error notifications disabled: no orchestrator or enabled destination configured",
				"destinations", len(a.dests))
		})
		return
	}
	a.active.Store(true)
	a.logger.Info("Error notification appender started",
		"destinations", len(a.dests), "async", a.executor != nil)
}

// Stop deactivates the appender, shuts the executor down gracefully, waits
// for detached inline dispatches until ctx ends and releases gateway
// resources.
func (a *Appender) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.active.Store(false)
		if a.executor != nil {
			if err := a.executor.Shutdown(ctx); err != nil {
				a.logger.Error("Executor shutdown incomplete", "error", err)
				a.stopErr = err
			}
		}
		if err := a.waitInflight(ctx); err != nil && a.stopErr == nil {
			a.logger.Error("Inline dispatches still running at stop", "error", err)
			a.stopErr = err
		}
		if a.orchestrator != nil && a.orchestrator.Registry() != nil {
			if err := a.orchestrator.Registry().Close(); err != nil && a.stopErr == nil {
				a.stopErr = err
			}
		}
	})
	return a.stopErr
}

// Append dispatches ev to the configured destinations. It never panics and
// never reports an error; while inactive it does nothing. Inline dispatch
// runs detached from ctx and Append returns once the sends are issued.
func (a *Appender) Append(ctx context.Context, ev *event.Event) {
	if ev == nil || !a.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recovered panic while dispatching event", "event_id", ev.ID(), "panic", fmt.Sprint(r))
		}
	}()

	if a.executor != nil && a.executor.CanAcceptTasks() {
		_, err := a.executor.Submit(func(runCtx context.Context) error {
			a.dispatchAndWait(runCtx, ev)
			return nil
		})
		if err == nil {
			return
		}
		a.logger.Warn("Async dispatch unavailable, dispatching inline", "event_id", ev.ID(), "error", err)
	}
	detached := context.WithoutCancel(ctx)
	a.track(detached, a.orchestrator.Process(detached, ev, a.dests))
}

// dispatchAndWait holds the executor worker until the report completes.
// Once runCtx is cancelled the wait continues for at most the executor's
// ShutdownNowTimeout so in-flight outcomes are still observed.
func (a *Appender) dispatchAndWait(runCtx context.Context, ev *event.Event) {
	p := a.orchestrator.Process(runCtx, ev, a.dests)
	select {
	case <-p.Done():
	case <-runCtx.Done():
		bound := a.executor.Config().ShutdownNowTimeout
		timer := time.NewTimer(bound)
		defer timer.Stop()
		select {
		case <-p.Done():
		case <-timer.C:
			a.logger.Warn("Dispatch still running after cancellation, report dropped",
				"event_id", ev.ID(), "timeout", bound)
			return
		}
	}
	a.observe(context.WithoutCancel(runCtx), p.Report())
}

// track hands the report to the observer once p completes.
func (a *Appender) track(ctx context.Context, p *dispatch.Pending) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		<-p.Done()
		a.observe(ctx, p.Report())
	}()
}

func (a *Appender) waitInflight(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New(errors.ErrSystemTimeout, "inline dispatches did not finish before stop deadline")
	}
}

// Process runs the orchestrator for an explicit destination list, bypassing
// the executor. The observer sees the report once it completes.
func (a *Appender) Process(ctx context.Context, ev *event.Event, dests []destination.Config) *dispatch.Pending {
	o := a.orchestrator
	if o == nil {
		o = dispatch.New(nil)
	}
	p := o.Process(ctx, ev, dests)
	a.track(context.WithoutCancel(ctx), p)
	return p
}

func (a *Appender) observe(ctx context.Context, report *receipt.Report) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Report observer panicked", "panic", fmt.Sprint(r))
		}
	}()
	a.observer.Load().ObserveReport(ctx, report)
}
