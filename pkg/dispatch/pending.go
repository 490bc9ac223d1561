package dispatch

import (
	"context"

	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

// Pending is the asynchronous result of Process
type Pending struct {
	done   chan struct{}
	report *receipt.Report
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func completed(r *receipt.Report) *Pending {
	p := newPending()
	p.complete(r)
	return p
}

func (p *Pending) complete(r *receipt.Report) {
	p.report = r
	close(p.done)
}

// Done is closed once the report is available
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until every send finished or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*receipt.Report, error) {
	select {
	case <-p.done:
		return p.report, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrSystemTimeout, "waiting for dispatch")
	}
}

// Report returns the report, or nil while sends are still running
func (p *Pending) Report() *receipt.Report {
	select {
	case <-p.done:
		return p.report
	default:
		return nil
	}
}
