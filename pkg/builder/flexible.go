package builder

import (
	"fmt"
	"math"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/types"
)

// buildShiftable adds one deviation variable per timestep, bounded by the
// curtail (below) and recover (above) series. Deviations are energy-neutral
// over the window, and every sliding recovery window must be nonnegative in
// sum so curtailed load cannot be deferred past its recovery horizon.
func (b *Builder) buildShiftable() {
	s := b.sets
	spec := s.Scenario.Assets.Shiftable
	if !spec.Enabled {
		return
	}

	b.out.ShiftDev = make([]int, s.Steps)
	total := lp.NewExpr(0)
	for t := 0; t < s.Steps; t++ {
		dev := b.m.NewVar(fmt.Sprintf("shift_dev[%d]", t), s.CurtailKW[t], s.RecoverKW[t])
		b.out.ShiftDev[t] = dev
		b.netDemand[t].Add(dev, 1)
		total.Add(dev, 1)
	}
	b.m.AddConstraint("shift_neutral", total, lp.Equal, 0)

	w := spec.RecoveryWindowSteps
	if w >= s.Steps {
		return
	}
	for start := 0; start+w <= s.Steps; start++ {
		win := lp.NewExpr(0)
		for t := start; t < start+w; t++ {
			win.Add(b.out.ShiftDev[t], 1)
		}
		b.m.AddConstraint(fmt.Sprintf("shift_window[%d]", start), win, lp.GreaterEq, 0)
	}
}

// buildSheddable adds shed variables bounded by the base demand and charges
// the value of lost load for each shed kWh.
func (b *Builder) buildSheddable() {
	s := b.sets
	spec := s.Scenario.Assets.Sheddable
	if !spec.Enabled {
		return
	}

	b.out.Shed = make([]int, s.Steps)
	cost := lp.NewExpr(0)
	for t := 0; t < s.Steps; t++ {
		upper := math.Max(s.BaseDemand[t], 0)
		shed := b.m.NewVar(fmt.Sprintf("shed[%d]", t), 0, upper)
		b.out.Shed[t] = shed
		b.netDemand[t].Add(shed, -1)
		cost.Add(shed, spec.ValueOfLostLoad*s.StepHours)
	}
	b.addCost(types.CostShed, cost)
}
