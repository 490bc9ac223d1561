// Package receipt provides delivery outcomes and the per-event dispatch report.
package receipt

import (
	"time"

	"github.com/google/uuid"

	"github.com/kart-io/errmonitor/pkg/errors"
)

// Outcome is the result of one (destination, gateway) delivery attempt.
type Outcome struct {
	Destination string        `json:"destination"`
	Gateway     string        `json:"gateway"`
	Kind        string        `json:"kind,omitempty"` // destination kind the gateway serves
	Succeeded   bool          `json:"succeeded"`
	StatusCode  int           `json:"status_code,omitempty"` // zero when no HTTP response was received
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Success creates a successful outcome.
func Success(dest, gateway string, statusCode int) Outcome {
	return Outcome{
		Destination: dest,
		Gateway:     gateway,
		Succeeded:   true,
		StatusCode:  statusCode,
		Timestamp:   time.Now(),
	}
}

// Failure creates a failed outcome. The status code is taken from err when it carries one.
func Failure(dest, gateway string, err error) Outcome {
	o := Outcome{
		Destination: dest,
		Gateway:     gateway,
		Timestamp:   time.Now(),
	}
	if err != nil {
		o.Error = err.Error()
		if code, ok := errors.StatusCodeOf(err); ok {
			o.StatusCode = code
		}
	}
	return o
}

// HasStatusCode reports whether an HTTP status was received.
func (o Outcome) HasStatusCode() bool { return o.StatusCode > 0 }

// IsTransportFailure reports a failure that never produced an HTTP response.
func (o Outcome) IsTransportFailure() bool { return !o.Succeeded && !o.HasStatusCode() }

// WithDuration returns a copy of o with the attempt duration set.
func (o Outcome) WithDuration(d time.Duration) Outcome {
	o.Duration = d
	return o
}

// Status constants
const (
	StatusEmpty   = "empty"
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Report aggregates every Outcome produced for one event.
type Report struct {
	ID         string        `json:"id"`
	EventID    string        `json:"event_id,omitempty"`
	Status     string        `json:"status"`
	Outcomes   []Outcome     `json:"outcomes"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Total      int           `json:"total"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Empty returns a report with no outcomes.
func Empty(eventID string) *Report {
	return NewReport(eventID, nil, 0)
}

// NewReport builds a report from outcomes, keeping their order.
func NewReport(eventID string, outcomes []Outcome, duration time.Duration) *Report {
	r := &Report{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Outcomes:  make([]Outcome, 0, len(outcomes)),
		Duration:  duration,
		Timestamp: time.Now(),
	}
	for _, o := range outcomes {
		r.AddOutcome(o)
	}
	r.updateStatus()
	return r
}

// AddOutcome appends an outcome and recomputes the counters.
func (r *Report) AddOutcome(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Total = len(r.Outcomes)
	if o.Succeeded {
		r.Successful++
	} else {
		r.Failed++
	}
	r.updateStatus()
}

func (r *Report) updateStatus() {
	switch {
	case r.Total == 0:
		r.Status = StatusEmpty
	case r.Failed == 0:
		r.Status = StatusSuccess
	case r.Successful == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
}

// IsEmpty returns true if no delivery was attempted
func (r *Report) IsEmpty() bool { return r.Total == 0 }

// IsSuccess returns true if every delivery succeeded
func (r *Report) IsSuccess() bool { return r.Status == StatusSuccess }

// IsPartial returns true if some deliveries succeeded
func (r *Report) IsPartial() bool { return r.Status == StatusPartial }

// IsFailed returns true if all deliveries failed
func (r *Report) IsFailed() bool { return r.Status == StatusFailed }

// SuccessRate returns the success rate as a percentage
func (r *Report) SuccessRate() float64 {
	if r.Total == 0 {
		return 0.0
	}
	return float64(r.Successful) / float64(r.Total) * 100
}

// Errors returns all error messages from failed outcomes
func (r *Report) Errors() []string {
	errs := make([]string, 0, r.Failed)
	for _, o := range r.Outcomes {
		if !o.Succeeded && o.Error != "" {
			errs = append(errs, o.Error)
		}
	}
	return errs
}

// FailedDestinations returns the destinations that had a failed outcome
func (r *Report) FailedDestinations() []string {
	names := make([]string, 0, r.Failed)
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			names = append(names, o.Destination)
		}
	}
	return names
}
