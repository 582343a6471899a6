package trash

import (
	"errors"
	"fmt"

	"github.com/babarot/stowage/internal/core/types"
)

// Status is the result of purging one entry during a bulk operation
type Status string

const (
	StatusPurged  Status = "purged"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one entry
type Outcome struct {
	ID     types.ID `json:"id"`
	Name   string   `json:"name"`
	Status Status   `json:"status"`
	Err    error    `json:"-"`
	Error  string   `json:"error,omitempty"`
}

// Report aggregates per-entry outcomes of Empty and PurgeExpired
type Report struct {
	Outcomes    []Outcome `json:"outcomes"`
	Purged      int       `json:"purged"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Interrupted bool      `json:"interrupted"`
}

func (r *Report) add(o Outcome) {
	switch o.Status {
	case StatusPurged:
		r.Purged++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
		if o.Err != nil {
			o.Error = o.Err.Error()
		}
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Err joins the errors of every failed entry, nil when none failed
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s (%s): %w", o.Name, o.ID, o.Err))
		}
	}
	return errors.Join(errs...)
}
