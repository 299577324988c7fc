package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dersolve/dersolve/pkg/lp"
)

const integralityTol = 1e-6

// branchAndBound solves a model with binary variables by depth-first search
// over simplex relaxations, branching on the most fractional binary and
// pruning nodes that cannot beat the incumbent.
func (s *Simplex) branchAndBound(ctx context.Context, m *lp.Model) (Result, error) {
	maxNodes := s.MaxNodes
	if maxNodes == 0 {
		maxNodes = DefaultMaxNodes
	}

	type node struct {
		overrides []boundOverride
	}

	stack := []node{{}}
	incumbent := Result{Status: StatusInfeasible}
	best := math.Inf(1)
	sawInfeasible := false
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusError}, &SolveError{Backend: s.Name(), Status: StatusError, Err: err}
		}
		nodes++
		if nodes > maxNodes {
			return Result{Status: StatusError}, &SolveError{
				Backend: s.Name(),
				Status:  StatusError,
				Err:     fmt.Errorf("branch and bound exceeded %d nodes", maxNodes),
			}
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		res, err := s.solveRelaxation(ctx, m, cur.overrides)
		if err != nil {
			var solveErr *SolveError
			if errors.As(err, &solveErr) && solveErr.Status == StatusInfeasible {
				sawInfeasible = true
				continue // prune
			}
			if errors.As(err, &solveErr) && solveErr.Status == StatusUnbounded {
				// the relaxation being unbounded makes the MILP unbounded or
				// infeasible; report unbounded and let the caller decide
				return Result{Status: StatusUnbounded}, err
			}
			return Result{Status: StatusError}, err
		}
		if res.Objective >= best-1e-9 {
			continue // bound
		}

		branchVar := mostFractionalBinary(m, res.Values)
		if branchVar < 0 {
			// integral solution
			best = res.Objective
			incumbent = res
			continue
		}

		// branch: explore the side closer to the relaxed value first
		zero := append(cloneOverrides(cur.overrides), boundOverride{varID: branchVar, lower: 0, upper: 0})
		one := append(cloneOverrides(cur.overrides), boundOverride{varID: branchVar, lower: 1, upper: 1})
		if res.Values[branchVar] >= 0.5 {
			stack = append(stack, node{zero}, node{one})
		} else {
			stack = append(stack, node{one}, node{zero})
		}
	}

	if incumbent.Status != StatusOptimal {
		status := StatusInfeasible
		if !sawInfeasible {
			status = StatusError
		}
		return Result{Status: status}, &SolveError{Backend: s.Name(), Status: status}
	}
	// snap binaries exactly
	for _, v := range m.Vars {
		if v.Binary {
			incumbent.Values[v.ID] = math.Round(incumbent.Values[v.ID])
		}
	}
	return incumbent, nil
}

// mostFractionalBinary returns the binary variable farthest from integrality,
// or -1 when all binaries are integral.
func mostFractionalBinary(m *lp.Model, values []float64) int {
	bestID := -1
	bestDist := integralityTol
	for _, v := range m.Vars {
		if !v.Binary {
			continue
		}
		frac := values[v.ID] - math.Floor(values[v.ID])
		dist := math.Min(frac, 1-frac)
		if dist > bestDist {
			bestDist = dist
			bestID = v.ID
		}
	}
	return bestID
}

func cloneOverrides(o []boundOverride) []boundOverride {
	out := make([]boundOverride, len(o), len(o)+1)
	copy(out, o)
	return out
}
