package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dersolve/dersolve/pkg/lp"
	"gonum.org/v1/gonum/mat"
	gonumlp "gonum.org/v1/gonum/optimize/convex/lp"
)

// Simplex solves models with gonum's dense simplex method after a presolve
// pass that drops constant constraints, folds single-variable constraints
// into bounds and fixes variables no remaining constraint touches. Models
// containing binary variables are handled by branch and bound over
// relaxations. The backend suits the daily and monthly window sizes this
// repository produces; full-year hourly models with storage should go to an
// external backend.
type Simplex struct {
	// Tolerance passed to the simplex routine; zero selects gonum's default.
	Tolerance float64
	// MaxNodes bounds the branch-and-bound tree. Zero means DefaultMaxNodes.
	MaxNodes int
}

// DefaultMaxNodes bounds branch and bound when MaxNodes is unset. The models
// built here carry a handful of indicator binaries per window, so trees stay
// tiny; the cap guards against pathological inputs.
const DefaultMaxNodes = 10000

const (
	// coeffTol decides whether a coefficient counts as touching a variable.
	coeffTol = 1e-9
	// feasTol is the slack presolve allows when checking feasibility.
	feasTol = 1e-7
)

var (
	errPresolveInfeasible = errors.New("model is infeasible")
	errPresolveUnbounded  = errors.New("model is unbounded")
)

// NewSimplex returns a Simplex backend with default settings.
func NewSimplex() *Simplex { return &Simplex{} }

func (s *Simplex) Name() string { return "simplex" }

// Solve implements Backend.
func (s *Simplex) Solve(ctx context.Context, m *lp.Model) (Result, error) {
	if !m.HasBinaries() {
		return s.solveRelaxation(ctx, m, nil)
	}
	return s.branchAndBound(ctx, m)
}

// boundOverride tightens one variable's bounds for a branch-and-bound node.
type boundOverride struct {
	varID        int
	lower, upper float64
}

// solveRelaxation converts the model (with bound overrides applied and
// integrality dropped) to standard form and runs the simplex method. Models
// that presolve away entirely are answered without touching gonum.
func (s *Simplex) solveRelaxation(ctx context.Context, m *lp.Model, overrides []boundOverride) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Status: StatusError}, &SolveError{Backend: s.Name(), Status: StatusError, Err: err}
	}

	sf, err := toStandardForm(m, overrides)
	if err != nil {
		status := StatusError
		switch {
		case errors.Is(err, errPresolveInfeasible):
			status = StatusInfeasible
		case errors.Is(err, errPresolveUnbounded):
			status = StatusUnbounded
		}
		return Result{Status: status}, &SolveError{Backend: s.Name(), Status: status, Err: err}
	}
	if sf.trivial {
		x := sf.recover(nil)
		return Result{
			Status:    StatusOptimal,
			Values:    x,
			Objective: m.Objective.Value(x),
		}, nil
	}

	optF, optX, err := gonumlp.Simplex(sf.c, sf.a, sf.b, s.Tolerance, nil)
	if err != nil {
		switch {
		case errors.Is(err, gonumlp.ErrInfeasible):
			return Result{Status: StatusInfeasible}, &SolveError{Backend: s.Name(), Status: StatusInfeasible, Err: err}
		case errors.Is(err, gonumlp.ErrUnbounded):
			return Result{Status: StatusUnbounded}, &SolveError{Backend: s.Name(), Status: StatusUnbounded, Err: err}
		default:
			return Result{Status: StatusError}, &SolveError{Backend: s.Name(), Status: StatusError, Err: err}
		}
	}

	return Result{
		Status:    StatusOptimal,
		Values:    sf.recover(optX),
		Objective: optF + sf.objOffset,
	}, nil
}

// standardForm is minimize c'y subject to a*y = b, y >= 0, plus the mapping
// back to the original variables.
type standardForm struct {
	c []float64
	a *mat.Dense
	b []float64

	// posCol[i] is variable i's column after shifting by shift[i], or -1
	// when presolve fixed the variable, in which case fixed[i] holds its
	// value. When the variable is unbounded below it is split and
	// negCol[i] >= 0 holds the negative part's column, with shift[i] = 0.
	posCol    []int
	negCol    []int
	shift     []float64
	fixed     []float64
	objOffset float64

	// trivial means presolve decided every variable; no tableau was built.
	trivial bool
}

func (sf *standardForm) recover(y []float64) []float64 {
	x := make([]float64, len(sf.posCol))
	for i := range x {
		if sf.posCol[i] < 0 {
			x[i] = sf.fixed[i]
			continue
		}
		x[i] = sf.shift[i] + y[sf.posCol[i]]
		if sf.negCol[i] >= 0 {
			x[i] -= y[sf.negCol[i]]
		}
	}
	return x
}

type denseRow struct {
	coeffs map[int]float64
	rhs    float64
}

// toStandardForm presolves the model and rewrites what survives into
// equality standard form. Presolve drops constraints whose expression holds
// no variables (failing fast when the constant part violates them), folds
// single-variable constraints into that variable's bounds, and fixes every
// variable no surviving constraint touches at whichever bound its objective
// coefficient favors. Remaining variables are shifted to a zero lower bound
// (or split into positive and negative parts when unbounded below); their
// finite upper bounds and the surviving inequality constraints gain slack
// columns.
func toStandardForm(m *lp.Model, overrides []boundOverride) (*standardForm, error) {
	n := m.NumVars()
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, v := range m.Vars {
		lower[i], upper[i] = v.Lower, v.Upper
	}
	for _, o := range overrides {
		lower[o.varID], upper[o.varID] = o.lower, o.upper
	}

	tighten := func(id int, sense lp.Sense, bound float64) {
		if sense != lp.GreaterEq && bound < upper[id] {
			upper[id] = bound
		}
		if sense != lp.LessEq && bound > lower[id] {
			lower[id] = bound
		}
	}

	var kept []lp.Constraint
	for _, con := range m.Constraints {
		varID, nsig := -1, 0
		for id, c := range con.Expr.Terms {
			if math.Abs(c) > coeffTol {
				varID = id
				if nsig++; nsig > 1 {
					break
				}
			}
		}
		switch nsig {
		case 0:
			lhs := con.Expr.Const
			var ok bool
			switch con.Sense {
			case lp.LessEq:
				ok = lhs <= con.RHS+feasTol
			case lp.GreaterEq:
				ok = lhs >= con.RHS-feasTol
			case lp.Equal:
				ok = math.Abs(lhs-con.RHS) <= feasTol
			default:
				return nil, fmt.Errorf("constraint %s has unknown sense %v", con.Name, con.Sense)
			}
			if !ok {
				return nil, fmt.Errorf("%w: constraint %s holds no variables and its constant part %.6g violates it", errPresolveInfeasible, con.Name, lhs)
			}
		case 1:
			c := con.Expr.Terms[varID]
			bound := (con.RHS - con.Expr.Const) / c
			sense := con.Sense
			if c < 0 {
				switch sense {
				case lp.LessEq:
					sense = lp.GreaterEq
				case lp.GreaterEq:
					sense = lp.LessEq
				}
			}
			tighten(varID, sense, bound)
		default:
			kept = append(kept, con)
		}
	}

	for i := 0; i < n; i++ {
		if lower[i] > upper[i]+feasTol {
			return nil, fmt.Errorf("%w: variable %s has lower bound %.6g above upper bound %.6g", errPresolveInfeasible, m.Vars[i].Name, lower[i], upper[i])
		}
		if lower[i] > upper[i] {
			upper[i] = lower[i]
		}
	}

	active := make([]bool, n)
	for _, con := range kept {
		for id, c := range con.Expr.Terms {
			if math.Abs(c) > coeffTol {
				active[id] = true
			}
		}
	}

	sf := &standardForm{
		posCol: make([]int, n),
		negCol: make([]int, n),
		shift:  make([]float64, n),
		fixed:  make([]float64, n),
	}

	cols := 0
	for i := 0; i < n; i++ {
		if !active[i] {
			sf.posCol[i], sf.negCol[i] = -1, -1
			c := m.Objective.Terms[i]
			switch {
			case c > coeffTol:
				if math.IsInf(lower[i], -1) {
					return nil, fmt.Errorf("%w: variable %s improves the objective without bound", errPresolveUnbounded, m.Vars[i].Name)
				}
				sf.fixed[i] = lower[i]
			case c < -coeffTol:
				if math.IsInf(upper[i], 1) {
					return nil, fmt.Errorf("%w: variable %s improves the objective without bound", errPresolveUnbounded, m.Vars[i].Name)
				}
				sf.fixed[i] = upper[i]
			default:
				// objective-neutral: any in-bounds value works
				switch {
				case !math.IsInf(lower[i], -1):
					sf.fixed[i] = lower[i]
				case !math.IsInf(upper[i], 1):
					sf.fixed[i] = upper[i]
				}
			}
			continue
		}
		if math.IsInf(lower[i], -1) {
			sf.posCol[i] = cols
			sf.negCol[i] = cols + 1
			cols += 2
			continue
		}
		sf.posCol[i] = cols
		sf.negCol[i] = -1
		sf.shift[i] = lower[i]
		cols++
	}

	if len(kept) == 0 {
		sf.trivial = true
		return sf, nil
	}

	// substitute builds a standard-form row from an original-variable
	// expression, returning the shifted coefficients and RHS adjustment.
	// Fixed variables contribute to the adjustment only.
	substitute := func(expr *lp.Expr) (map[int]float64, float64) {
		coeffs := make(map[int]float64, len(expr.Terms))
		adjust := expr.Const
		for id, c := range expr.Terms {
			if c == 0 {
				continue
			}
			if sf.posCol[id] < 0 {
				adjust += c * sf.fixed[id]
				continue
			}
			coeffs[sf.posCol[id]] += c
			if sf.negCol[id] >= 0 {
				coeffs[sf.negCol[id]] -= c
			}
			adjust += c * sf.shift[id]
		}
		return coeffs, adjust
	}

	var rows []denseRow
	addRow := func(coeffs map[int]float64, rhs float64, slackSign float64) {
		if slackSign != 0 {
			coeffs[cols] = slackSign
			cols++
		}
		rows = append(rows, denseRow{coeffs: coeffs, rhs: rhs})
	}

	// finite upper bounds of surviving variables become y_i + slack = ub - shift rows
	for i := 0; i < n; i++ {
		if sf.posCol[i] < 0 || math.IsInf(upper[i], 1) {
			continue
		}
		coeffs := map[int]float64{sf.posCol[i]: 1}
		if sf.negCol[i] >= 0 {
			coeffs[sf.negCol[i]] = -1
		}
		addRow(coeffs, upper[i]-sf.shift[i], 1)
	}

	for _, con := range kept {
		coeffs, adjust := substitute(con.Expr)
		rhs := con.RHS - adjust
		switch con.Sense {
		case lp.LessEq:
			addRow(coeffs, rhs, 1)
		case lp.GreaterEq:
			// negate to <= then add a slack
			for k := range coeffs {
				coeffs[k] = -coeffs[k]
			}
			addRow(coeffs, -rhs, 1)
		case lp.Equal:
			addRow(coeffs, rhs, 0)
		default:
			return nil, fmt.Errorf("constraint %s has unknown sense %v", con.Name, con.Sense)
		}
	}

	objCoeffs, objAdjust := substitute(m.Objective)
	sf.objOffset = objAdjust

	sf.c = make([]float64, cols)
	for col, c := range objCoeffs {
		sf.c[col] = c
	}
	sf.b = make([]float64, len(rows))
	a := mat.NewDense(len(rows), cols, nil)
	for r, row := range rows {
		sf.b[r] = row.rhs
		for col, c := range row.coeffs {
			a.Set(r, col, c)
		}
	}
	sf.a = a

	return sf, nil
}
