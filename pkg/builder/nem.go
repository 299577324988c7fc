package builder

import (
	"fmt"
	"math"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/types"
)

// minQualifyingCapacityKW is the smallest installed capacity treated as a
// qualifying generating facility by the capacity-trigger linkage.
const minQualifyingCapacityKW = 1e-3

// buildNetMetering credits exports at the compiled sell price, gated by the
// export-eligibility linkage:
//
//   - net-demand trigger: exports at t are only credited once on-site load is
//     fully served, so exports[t] <= zeta[t]*M and net[t] <= (1-zeta[t])*M.
//   - capacity trigger (expansion mode with optimized PV): exports require a
//     qualifying facility, so exports[t] <= (1-zetaCap)*M and the capacity
//     variable straddles minQualifyingCapacityKW on the indicator.
//
// Indicators are binary when the scenario requests it, else relaxed to [0,1].
// Under a revenue cap the credit is a capped variable: it may not exceed the
// export revenue nor the energy charge net of non-bypassable charges.
func (b *Builder) buildNetMetering() error {
	s := b.sets

	exportUB := b.exportUpperBound()
	if exportUB == 0 {
		// net metering enabled but no asset may export; nothing to credit
		return nil
	}
	netUB := b.netDemandUpperBound()

	newIndicator := func(name string) int {
		if s.Scenario.Config.BinaryLinkage {
			return b.m.NewBinaryVar(name)
		}
		// relaxed indicator still needs explicit [0,1] bounds
		return b.m.NewVar(name, 0, 1)
	}

	for t := 0; t < s.Steps; t++ {
		zeta := newIndicator(fmt.Sprintf("export_ok[%d]", t))
		b.m.BoundByIndicator(fmt.Sprintf("exports_gated[%d]", t), b.exports[t], zeta, exportUB)
		b.m.BoundByComplement(fmt.Sprintf("net_gated[%d]", t), b.netDemand[t], zeta, netUB)
	}

	if b.out.SolarCapVar >= 0 {
		zetaCap := newIndicator("no_facility")
		capExpr := lp.NewExpr(0).Add(b.out.SolarCapVar, 1)
		b.m.BoundByComplement("facility_capacity", capExpr, zetaCap, capacityBound(s.Scenario.Assets.Solar.CapacityKW, defaultCapacityBound))
		// zetaCap=0 asserts a qualifying facility exists
		minCap := lp.NewExpr(-minQualifyingCapacityKW).Add(b.out.SolarCapVar, 1).Add(zetaCap, minQualifyingCapacityKW)
		b.m.AddConstraint("facility_min_capacity", minCap, lp.GreaterEq, 0)
		for t := 0; t < s.Steps; t++ {
			b.m.BoundByComplement(fmt.Sprintf("exports_require_facility[%d]", t), b.exports[t], zetaCap, exportUB)
		}
	}

	revenue := lp.NewExpr(0)
	for t := 0; t < s.Steps; t++ {
		revenue.AddExpr(b.exports[t], s.StepHours*s.SellPrice[t])
	}

	if !s.NEM.ApplyRevenueCap {
		credit := lp.NewExpr(0).AddExpr(revenue, -1)
		b.addCost(types.CostNEMCredit, credit)
		return nil
	}

	// capped credit: the solver maximizes it up to min(revenue, bill headroom)
	creditVar := b.m.NewVar("nem_credit", 0, math.Inf(1))
	byRevenue := lp.NewExpr(0).Add(creditVar, 1).AddExpr(revenue, -1)
	b.m.AddConstraint("nem_credit_by_revenue", byRevenue, lp.LessEq, 0)

	headroom := lp.NewExpr(0).AddExpr(b.energyCharge, 1)
	headroom.AddExpr(b.chargedEnergy, -s.NEM.NonBypassableDollarsPerKWH)
	byBill := lp.NewExpr(0).Add(creditVar, 1).AddExpr(headroom, -1)
	b.m.AddConstraint("nem_credit_by_bill", byBill, lp.LessEq, 0)

	b.addCost(types.CostNEMCredit, lp.NewExpr(0).Add(creditVar, -1))
	return nil
}
