package builder

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/types"
)

// buildDemandCharge prices the peak variables. On a DAY-horizon window the
// monthly-category terms charge only the increment over the carried-forward
// prior peak, so the per-window costs sum to the monthly bill instead of
// charging the full peak every day. The constant shift does not change the
// optimum.
func (b *Builder) buildDemandCharge() {
	s := b.sets
	if len(s.DemandPeriods) == 0 {
		return
	}

	cost := lp.NewExpr(0)
	for k, period := range s.DemandPeriods {
		cost.Add(b.out.PeakVars[k], period.DollarsPerKW)
		if s.SingleDay && period.Category != types.DemandCategoryDailyTOU {
			cost.AddConst(-period.DollarsPerKW * period.PriorPeakKW)
		}
	}
	b.addCost(types.CostDemand, cost)
}

// buildEnergyCharge prices consumption at the compiled volumetric rate. For
// months carrying tiered rates, the tiered schedule replaces the flat rate:
// the month's consumption is split across bucket variables, one per band,
// each bounded by the band's width. Bucket filling order is only correct when
// band prices are nondecreasing, which tariff validation enforces.
func (b *Builder) buildEnergyCharge() {
	s := b.sets
	dt := s.StepHours

	flat := lp.NewExpr(0)
	tiered := lp.NewExpr(0)
	chargedEnergy := lp.NewExpr(0)

	for t := 0; t < s.Steps; t++ {
		chargedEnergy.AddExpr(b.netDemandCharged(t), dt)
	}

	tieredMonths := make(map[time.Month]bool, len(s.TieredBands))
	for m := range s.TieredBands {
		tieredMonths[m] = true
	}

	for m, steps := range s.MonthSteps {
		if tieredMonths[m] {
			continue
		}
		for _, t := range steps {
			flat.AddExpr(b.netDemandCharged(t), dt*s.EnergyScale[t]*s.EnergyPrice[t])
		}
	}

	months := make([]time.Month, 0, len(s.TieredBands))
	for m := range s.TieredBands {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	for _, m := range months {
		steps := s.MonthSteps[m]
		if len(steps) == 0 {
			continue
		}
		scale := s.EnergyScale[steps[0]]

		consumption := lp.NewExpr(0)
		for _, t := range steps {
			consumption.AddExpr(b.netDemandCharged(t), dt)
		}

		split := lp.NewExpr(0)
		for j, band := range s.TieredBands[m] {
			width := math.Inf(1)
			if !band.Unbounded() {
				width = band.UpperKWH - band.LowerKWH
			}
			bucket := b.m.NewVar(fmt.Sprintf("tier[%s][%d]", m, j), 0, width)
			split.Add(bucket, 1)
			tiered.Add(bucket, band.DollarsPerKWH*scale)
		}
		split.AddExpr(consumption, -1)
		b.m.AddConstraint(fmt.Sprintf("tier_split[%s]", m), split, lp.Equal, 0)
	}

	b.energyCharge = lp.NewExpr(0).AddExpr(flat, 1).AddExpr(tiered, 1)
	b.chargedEnergy = chargedEnergy

	if len(flat.Terms) > 0 || flat.Const != 0 {
		b.addCost(types.CostEnergy, flat)
	}
	if len(tiered.Terms) > 0 {
		b.addCost(types.CostTiered, tiered)
	}
}

// buildCustomerCharge adds the fixed daily and monthly charges as a constant
// objective term so bills reconcile against utility statements.
func (b *Builder) buildCustomerCharge() {
	s := b.sets
	total := s.Customer.DailyDollars*float64(s.Days) + s.Customer.MonthlyDollars*float64(s.Months)
	if total == 0 {
		return
	}
	b.addCost(types.CostCustomer, lp.NewExpr(total))
}
