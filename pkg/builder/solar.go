package builder

import (
	"fmt"
	"math"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/types"
)

// buildSolar splits generation into a behind-the-meter stream that offsets
// net demand and, when exporting is allowed under net metering, an export
// stream. Both are bounded jointly by the per-timestep available generation.
func (b *Builder) buildSolar() error {
	s := b.sets
	spec := s.Scenario.Assets.Solar
	if !spec.Enabled {
		return nil
	}

	optimizeCap := s.Scenario.Config.Mode == types.ModeExpansion && spec.CapacityKW.Optimize
	if optimizeCap {
		upper := math.Inf(1)
		if spec.CapacityKW.Max > 0 {
			upper = spec.CapacityKW.Max
		}
		b.out.SolarCapVar = b.m.NewVar("solar_capacity_kw", 0, upper)
	}

	exporting := spec.AllowExport && s.NEM.Enabled()

	b.out.SolarBTM = make([]int, s.Steps)
	if exporting {
		b.out.SolarExport = make([]int, s.Steps)
	}

	for t := 0; t < s.Steps; t++ {
		available := s.CapacityFactor[t] * spec.InverterEfficiency

		btm := b.m.NewVar(fmt.Sprintf("solar_btm[%d]", t), 0, math.Inf(1))
		b.out.SolarBTM[t] = btm
		b.netDemand[t].Add(btm, -1)

		// generation balance: btm + export <= available * capacity
		bal := lp.NewExpr(0).Add(btm, 1)
		if exporting {
			exp := b.m.NewVar(fmt.Sprintf("solar_export[%d]", t), 0, math.Inf(1))
			b.out.SolarExport[t] = exp
			b.exports[t].Add(exp, 1)
			bal.Add(exp, 1)
		}
		if optimizeCap {
			bal.Add(b.out.SolarCapVar, -available)
			b.m.AddConstraint(fmt.Sprintf("solar_balance[%d]", t), bal, lp.LessEq, 0)
		} else {
			b.m.AddConstraint(fmt.Sprintf("solar_balance[%d]", t), bal, lp.LessEq, available*spec.CapacityKW.Value)
		}
	}
	return nil
}
