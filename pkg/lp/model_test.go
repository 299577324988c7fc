package lp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExprAccumulation(t *testing.T) {
	e := NewExpr(1.5)
	e.Add(0, 2).Add(1, -1).Add(0, 3)
	assert.Equal(t, 5.0, e.Terms[0])
	assert.Equal(t, -1.0, e.Terms[1])

	o := NewExpr(0.5).Add(1, 4)
	e.AddExpr(o, 2)
	assert.Equal(t, 7.0, e.Terms[1])
	assert.Equal(t, 2.5, e.Const)

	assert.Equal(t, 2.5+5*1+7*2, e.Value([]float64{1, 2}))
}

func TestExprCloneIsIndependent(t *testing.T) {
	e := NewExpr(0).Add(0, 1)
	c := e.Clone()
	c.Add(0, 1)
	assert.Equal(t, 1.0, e.Terms[0])
	assert.Equal(t, 2.0, c.Terms[0])
}

func TestModelVars(t *testing.T) {
	m := NewModel()
	x := m.NewVar("x", 0, 10)
	z := m.NewBinaryVar("z")
	u := m.NewVar("u", 0, math.Inf(1))

	assert.Equal(t, 0, x)
	assert.True(t, m.Vars[z].Binary)
	assert.True(t, m.HasBinaries())
	assert.Equal(t, 10.0, m.Vars[x].Upper)
	assert.True(t, math.IsInf(m.Vars[u].Upper, 1))
}

func TestIndicatorBounds(t *testing.T) {
	m := NewModel()
	x := m.NewVar("x", 0, 100)
	z := m.NewBinaryVar("z")

	expr := NewExpr(0).Add(x, 1)
	m.BoundByIndicator("x_needs_z", expr, z, 100)
	m.BoundByComplement("x_blocks_z", expr, z, 100)

	assert.Len(t, m.Constraints, 2)

	// z=0: first constraint forces x <= 0
	c0 := m.Constraints[0]
	assert.Equal(t, LessEq, c0.Sense)
	assert.Equal(t, 0.0, c0.RHS)
	assert.Equal(t, -100.0, c0.Expr.Terms[z])

	// z=1: second constraint forces x <= 0
	c1 := m.Constraints[1]
	assert.Equal(t, 100.0, c1.RHS)
	assert.Equal(t, 100.0, c1.Expr.Terms[z])

	// the helper must not mutate the caller's expression
	assert.NotContains(t, expr.Terms, z)
}
