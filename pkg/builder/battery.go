package builder

import (
	"fmt"
	"math"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/types"
)

// buildBattery adds the storage variables and the state-of-charge dynamics.
// Charging adds to net demand; behind-the-meter discharge subtracts from it;
// export discharge (under net metering) adds to total exports. The SOC chain
// anchors to the carried-forward initial fraction and must end the window at
// or above it so sequential windows cannot mine the battery down.
func (b *Builder) buildBattery() error {
	s := b.sets
	spec := s.Scenario.Assets.Storage
	if !spec.Enabled {
		return nil
	}

	expansion := s.Scenario.Config.Mode == types.ModeExpansion
	optimizeEnergy := expansion && spec.EnergyCapacityKWH.Optimize
	optimizePower := expansion && spec.PowerCapacityKW.Optimize

	if optimizeEnergy {
		upper := math.Inf(1)
		if spec.EnergyCapacityKWH.Max > 0 {
			upper = spec.EnergyCapacityKWH.Max
		}
		b.out.EnergyCapVar = b.m.NewVar("storage_energy_kwh", 0, upper)
	}
	if optimizePower {
		upper := math.Inf(1)
		if spec.PowerCapacityKW.Max > 0 {
			upper = spec.PowerCapacityKW.Max
		}
		b.out.PowerCapVar = b.m.NewVar("storage_power_kw", 0, upper)
	}

	exporting := spec.AllowExport && s.NEM.Enabled()
	if !spec.AllowGridImport && b.out.SolarBTM == nil {
		return &types.ConfigurationError{Field: "storage.allowGridImport", Reason: "non-import storage requires the solar asset"}
	}

	b.out.BatteryCharge = make([]int, s.Steps)
	b.out.BatteryBTM = make([]int, s.Steps)
	b.out.BatterySOC = make([]int, s.Steps)
	if exporting {
		b.out.BatteryExport = make([]int, s.Steps)
	}

	powerUB := math.Inf(1)
	if !optimizePower {
		powerUB = spec.PowerCapacityKW.Value
	}

	socLower, socUpper := 0.0, math.Inf(1)
	if !optimizeEnergy {
		socLower = spec.MinSOCFraction * spec.EnergyCapacityKWH.Value
		socUpper = spec.MaxSOCFraction * spec.EnergyCapacityKWH.Value
	}

	dt := s.StepHours
	for t := 0; t < s.Steps; t++ {
		ch := b.m.NewVar(fmt.Sprintf("storage_charge[%d]", t), 0, powerUB)
		btm := b.m.NewVar(fmt.Sprintf("storage_btm[%d]", t), 0, powerUB)
		soc := b.m.NewVar(fmt.Sprintf("storage_soc[%d]", t), socLower, socUpper)
		b.out.BatteryCharge[t] = ch
		b.out.BatteryBTM[t] = btm
		b.out.BatterySOC[t] = soc

		b.netDemand[t].Add(ch, 1)
		b.netDemand[t].Add(btm, -1)

		exp := -1
		if exporting {
			exp = b.m.NewVar(fmt.Sprintf("storage_export[%d]", t), 0, powerUB)
			b.out.BatteryExport[t] = exp
			b.exports[t].Add(exp, 1)
		}

		if optimizePower {
			chCap := lp.NewExpr(0).Add(ch, 1).Add(b.out.PowerCapVar, -1)
			b.m.AddConstraint(fmt.Sprintf("storage_charge_cap[%d]", t), chCap, lp.LessEq, 0)
			disCap := lp.NewExpr(0).Add(btm, 1).Add(b.out.PowerCapVar, -1)
			if exp >= 0 {
				disCap.Add(exp, 1)
			}
			b.m.AddConstraint(fmt.Sprintf("storage_discharge_cap[%d]", t), disCap, lp.LessEq, 0)
		} else if exp >= 0 {
			// combined discharge streams share the fixed power capacity
			disCap := lp.NewExpr(0).Add(btm, 1).Add(exp, 1)
			b.m.AddConstraint(fmt.Sprintf("storage_discharge_cap[%d]", t), disCap, lp.LessEq, powerUB)
		}

		if optimizeEnergy {
			socMax := lp.NewExpr(0).Add(soc, 1).Add(b.out.EnergyCapVar, -spec.MaxSOCFraction)
			b.m.AddConstraint(fmt.Sprintf("storage_soc_max[%d]", t), socMax, lp.LessEq, 0)
			socMin := lp.NewExpr(0).Add(soc, 1).Add(b.out.EnergyCapVar, -spec.MinSOCFraction)
			b.m.AddConstraint(fmt.Sprintf("storage_soc_min[%d]", t), socMin, lp.GreaterEq, 0)
		}

		// soc[t] = (1-loss)*soc[t-1] + eff_c*dt*ch[t] - dt/eff_d*(btm[t]+exp[t])
		dyn := lp.NewExpr(0).Add(soc, 1)
		dyn.Add(ch, -spec.ChargeEfficiency*dt)
		dyn.Add(btm, dt/spec.DischargeEfficiency)
		if exp >= 0 {
			dyn.Add(exp, dt/spec.DischargeEfficiency)
		}
		retain := 1 - spec.LossRate
		if t == 0 {
			if optimizeEnergy {
				dyn.Add(b.out.EnergyCapVar, -retain*s.InitialSOCFraction)
				b.m.AddConstraint("storage_dynamics[0]", dyn, lp.Equal, 0)
			} else {
				rhs := retain * s.InitialSOCFraction * spec.EnergyCapacityKWH.Value
				b.m.AddConstraint("storage_dynamics[0]", dyn, lp.Equal, rhs)
			}
		} else {
			dyn.Add(b.out.BatterySOC[t-1], -retain)
			b.m.AddConstraint(fmt.Sprintf("storage_dynamics[%d]", t), dyn, lp.Equal, 0)
		}

		if !spec.AllowGridImport {
			// charge only from concurrent solar generation
			nonImport := lp.NewExpr(0).Add(ch, 1).Add(b.out.SolarBTM[t], -1)
			b.m.AddConstraint(fmt.Sprintf("storage_non_import[%d]", t), nonImport, lp.LessEq, 0)
		}
	}

	// the window may not end below the carried-forward state
	if s.InitialSOCFraction > 0 {
		last := b.out.BatterySOC[s.Steps-1]
		terminal := lp.NewExpr(0).Add(last, 1)
		if optimizeEnergy {
			terminal.Add(b.out.EnergyCapVar, -s.InitialSOCFraction)
			b.m.AddConstraint("storage_terminal", terminal, lp.GreaterEq, 0)
		} else {
			b.m.AddConstraint("storage_terminal", terminal, lp.GreaterEq, s.InitialSOCFraction*spec.EnergyCapacityKWH.Value)
		}
	}
	return nil
}
