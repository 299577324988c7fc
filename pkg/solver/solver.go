// Package solver provides interchangeable LP/MILP backends behind an opaque
// solve(model) -> status, values contract. The model builder must not depend
// on backend behavior beyond standard LP/MILP semantics.
package solver

import (
	"context"
	"fmt"

	"github.com/dersolve/dersolve/pkg/lp"
)

// Status is the terminal state reported by a backend.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "error"
)

// Result is a backend's answer: the terminal status, one value per decision
// variable, and the objective value.
type Result struct {
	Status    Status    `json:"status"`
	Values    []float64 `json:"values"`
	Objective float64   `json:"objective"`
}

// Backend solves one decision model. Solve blocks until the backend reaches a
// terminal status; time limits, if any, are a backend concern.
type Backend interface {
	Name() string
	Solve(ctx context.Context, m *lp.Model) (Result, error)
}

// SolveError reports a non-optimal terminal status. It is not retried; the
// caller decides whether to abort a multi-window run.
type SolveError struct {
	Backend string
	Status  Status
	Err     error
}

func (e *SolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solver %s: %s: %v", e.Backend, e.Status, e.Err)
	}
	return fmt.Sprintf("solver %s: %s", e.Backend, e.Status)
}

func (e *SolveError) Unwrap() error { return e.Err }
