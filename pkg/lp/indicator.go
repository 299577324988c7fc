package lp

// Big-M linearizations of indicator implications. The indicator z must be a
// binary variable, or a continuous variable bounded to [0,1] when the caller
// relaxes integrality. bigM must be a valid upper bound on expr over the
// feasible region; a too-small M cuts off feasible points, a huge M hurts
// numerics.

// BoundByIndicator adds expr <= bigM*z, so z=0 forces expr <= 0.
func (m *Model) BoundByIndicator(name string, expr *Expr, z int, bigM float64) {
	e := expr.Clone()
	e.Add(z, -bigM)
	m.AddConstraint(name, e, LessEq, 0)
}

// BoundByComplement adds expr <= bigM*(1-z), so z=1 forces expr <= 0.
func (m *Model) BoundByComplement(name string, expr *Expr, z int, bigM float64) {
	e := expr.Clone()
	e.Add(z, bigM)
	m.AddConstraint(name, e, LessEq, bigM)
}
