// Package lp holds the decision-model primitives shared by the model builder
// and the solver backends: variables, linear expressions, constraints and a
// single minimization objective. A Model is created fresh per optimization
// window, never mutated after solve, and discarded after value extraction.
package lp

import "fmt"

// Var is a single decision variable. Binary variables must have bounds
// within [0,1].
type Var struct {
	ID     int
	Name   string
	Lower  float64
	Upper  float64
	Binary bool
}

// Expr is a linear expression: sum of coefficient*variable terms plus a
// constant.
type Expr struct {
	Terms map[int]float64
	Const float64
}

// NewExpr returns an expression holding only the given constant.
func NewExpr(constant float64) *Expr {
	return &Expr{Terms: make(map[int]float64), Const: constant}
}

// Add accumulates coeff onto the variable's coefficient.
func (e *Expr) Add(varID int, coeff float64) *Expr {
	e.Terms[varID] += coeff
	return e
}

// AddConst accumulates onto the constant term.
func (e *Expr) AddConst(c float64) *Expr {
	e.Const += c
	return e
}

// AddExpr accumulates scale*o onto e.
func (e *Expr) AddExpr(o *Expr, scale float64) *Expr {
	for id, c := range o.Terms {
		e.Terms[id] += c * scale
	}
	e.Const += o.Const * scale
	return e
}

// Clone returns an independent copy.
func (e *Expr) Clone() *Expr {
	out := NewExpr(e.Const)
	for id, c := range e.Terms {
		out.Terms[id] = c
	}
	return out
}

// Value evaluates the expression against a variable assignment.
func (e *Expr) Value(values []float64) float64 {
	v := e.Const
	for id, c := range e.Terms {
		v += c * values[id]
	}
	return v
}

// Sense is the direction of a constraint relation.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// Constraint relates a linear expression to a right-hand side. The
// expression's constant is part of the left side; solvers move it to the RHS.
type Constraint struct {
	Name  string
	Expr  *Expr
	Sense Sense
	RHS   float64
}

// Model is one decision model: variables, constraints and a minimization
// objective.
type Model struct {
	Vars        []Var
	Constraints []Constraint
	Objective   *Expr
}

// NewModel returns an empty model with a zero objective.
func NewModel() *Model {
	return &Model{Objective: NewExpr(0)}
}

// NewVar adds a continuous variable with the given bounds and returns its ID.
// Use math.Inf for unbounded sides.
func (m *Model) NewVar(name string, lower, upper float64) int {
	id := len(m.Vars)
	m.Vars = append(m.Vars, Var{ID: id, Name: name, Lower: lower, Upper: upper})
	return id
}

// NewBinaryVar adds a binary variable and returns its ID.
func (m *Model) NewBinaryVar(name string) int {
	id := len(m.Vars)
	m.Vars = append(m.Vars, Var{ID: id, Name: name, Lower: 0, Upper: 1, Binary: true})
	return id
}

// AddConstraint appends expr SENSE rhs to the constraint set.
func (m *Model) AddConstraint(name string, expr *Expr, sense Sense, rhs float64) {
	m.Constraints = append(m.Constraints, Constraint{Name: name, Expr: expr, Sense: sense, RHS: rhs})
}

// AddToObjective accumulates scale*expr onto the minimization objective.
func (m *Model) AddToObjective(expr *Expr, scale float64) {
	m.Objective.AddExpr(expr, scale)
}

// NumVars returns the number of decision variables.
func (m *Model) NumVars() int { return len(m.Vars) }

// HasBinaries reports whether any variable is binary.
func (m *Model) HasBinaries() bool {
	for _, v := range m.Vars {
		if v.Binary {
			return true
		}
	}
	return false
}
