// Package builder assembles one decision model per optimization window. The
// shared "net demand" and "total exports" expressions are accumulators: each
// enabled asset sub-builder adds its terms, then the mechanism sub-builders
// (demand charge, net metering, tiered rates, investment cost) read the final
// expressions and append objective terms or linkage constraints.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/types"
)

// DemandPeriod is one demand-charge period sliced to a window, together with
// the carried-forward peak observed earlier in the same billing month.
type DemandPeriod struct {
	Name         string
	Category     types.DemandChargeCategory
	Month        time.Month
	DollarsPerKW float64
	Mask         []float64
	PriorPeakKW  float64
}

// Sets is the immutable snapshot of one optimization window: the slice of
// every relevant series over the window's date range plus carried-forward
// state. It is produced by the horizon partitioner and consumed here.
type Sets struct {
	Start time.Time
	End   time.Time
	// StartStep is the window's offset into the full-year series.
	StartStep int
	Steps     int
	StepHours float64

	BaseDemand  []float64
	EnergyPrice []float64
	EnergyScale []float64
	SellPrice   []float64

	DemandPeriods []DemandPeriod
	// TieredBands covers only the months present in the window.
	TieredBands map[time.Month][]types.TierBand
	// MonthSteps indexes the window's timesteps by calendar month.
	MonthSteps map[time.Month][]int

	CapacityFactor []float64
	CurtailKW      []float64
	RecoverKW      []float64

	NEM      types.NEMSpec
	Customer types.CustomerCharge
	Days     int
	Months   int

	// SingleDay marks a DAY-horizon window: the current period's peak
	// variable must dominate the carried-forward prior monthly peak.
	SingleDay bool
	// InitialSOCFraction is the battery state carried from the prior window.
	InitialSOCFraction float64

	Scenario *types.Scenario
}

// Build is the assembled decision model plus the variable handles needed to
// extract a window's results. Slices indexed by timestep hold -1 style
// absent markers only through nil-ness: a disabled asset leaves its handle
// slice nil.
type Build struct {
	Model *lp.Model

	NetDemand    []*lp.Expr
	TotalExports []*lp.Expr

	PosNetDemand []int
	PeakVars     []int

	SolarBTM      []int
	SolarExport   []int
	SolarCapVar   int
	BatteryCharge []int
	BatteryBTM    []int
	BatteryExport []int
	BatterySOC    []int
	EnergyCapVar  int
	PowerCapVar   int
	ShiftDev      []int
	Shed          []int

	// CostTerms name the objective's components so the orchestrator can
	// produce a bill breakdown by evaluating each against the solution.
	CostTerms []CostTerm
}

// CostTerm is one named component of the objective.
type CostTerm struct {
	Component string
	Expr      *lp.Expr
}

// Builder accumulates variables and constraints for one window.
type Builder struct {
	sets *Sets
	m    *lp.Model

	netDemand []*lp.Expr
	exports   []*lp.Expr

	// set by buildEnergyCharge, read by the net-metering revenue cap
	energyCharge  *lp.Expr
	chargedEnergy *lp.Expr

	out *Build
}

// New prepares a builder over one window snapshot.
func New(sets *Sets) *Builder {
	return &Builder{sets: sets}
}

// Build composes the full decision model: scaffolding, enabled asset
// sub-builders in a fixed order, core constraints, then mechanisms.
func (b *Builder) Build(ctx context.Context) (*Build, error) {
	ctx = log.WithComponent(ctx, "builder")
	s := b.sets

	b.m = lp.NewModel()
	b.out = &Build{Model: b.m, SolarCapVar: -1, EnergyCapVar: -1, PowerCapVar: -1}

	// net demand starts at the base demand series; every asset adds terms
	b.netDemand = make([]*lp.Expr, s.Steps)
	for t := 0; t < s.Steps; t++ {
		b.netDemand[t] = lp.NewExpr(s.BaseDemand[t])
	}
	// total exports exists only under net metering
	if s.NEM.Enabled() {
		b.exports = make([]*lp.Expr, s.Steps)
		for t := 0; t < s.Steps; t++ {
			b.exports[t] = lp.NewExpr(0)
		}
	}

	if err := b.buildSolar(); err != nil {
		return nil, err
	}
	if err := b.buildBattery(); err != nil {
		return nil, err
	}
	b.buildShiftable()
	b.buildSheddable()

	b.buildCoreConstraints()
	b.buildDemandCharge()
	b.buildEnergyCharge()
	if s.NEM.Enabled() {
		if err := b.buildNetMetering(); err != nil {
			return nil, err
		}
	}
	if err := b.buildInvestment(); err != nil {
		return nil, err
	}
	b.buildCustomerCharge()

	// assemble the objective from the named terms
	for _, term := range b.out.CostTerms {
		b.m.AddToObjective(term.Expr, 1)
	}

	b.out.NetDemand = b.netDemand
	b.out.TotalExports = b.exports

	log.Ctx(ctx).DebugContext(ctx, "built window model",
		slog.Time("start", s.Start),
		slog.Int("vars", b.m.NumVars()),
		slog.Int("constraints", len(b.m.Constraints)),
		slog.Int("costTerms", len(b.out.CostTerms)))

	return b.out, nil
}

func (b *Builder) addCost(component string, expr *lp.Expr) {
	b.out.CostTerms = append(b.out.CostTerms, CostTerm{Component: component, Expr: expr})
}

// buildCoreConstraints pins net demand nonnegative (exports must route
// through explicit export variables, never negative net demand), creates the
// positive-net-demand variables when no demand charge exists, and the
// per-period peak-demand variables.
func (b *Builder) buildCoreConstraints() {
	s := b.sets

	for t := 0; t < s.Steps; t++ {
		b.m.AddConstraint(fmt.Sprintf("net_nonneg[%d]", t), b.netDemand[t].Clone(), lp.GreaterEq, 0)
	}

	if len(s.DemandPeriods) == 0 {
		// linearize max(net_demand, 0) for the energy charge
		b.out.PosNetDemand = make([]int, s.Steps)
		for t := 0; t < s.Steps; t++ {
			pnd := b.m.NewVar(fmt.Sprintf("pos_net[%d]", t), 0, math.Inf(1))
			b.out.PosNetDemand[t] = pnd
			e := b.netDemand[t].Clone()
			e.Add(pnd, -1)
			b.m.AddConstraint(fmt.Sprintf("pos_net_dominates[%d]", t), e, lp.LessEq, 0)
		}
		return
	}

	b.out.PeakVars = make([]int, len(s.DemandPeriods))
	for k, period := range s.DemandPeriods {
		lowerBound := 0.0
		if s.SingleDay && period.PriorPeakKW > 0 {
			// monotonic monthly peak tracking across daily windows
			lowerBound = period.PriorPeakKW
		}
		peak := b.m.NewVar(fmt.Sprintf("peak[%s]", period.Name), lowerBound, math.Inf(1))
		b.out.PeakVars[k] = peak
		for t := 0; t < s.Steps; t++ {
			if period.Mask[t] != 1 {
				continue
			}
			e := b.netDemand[t].Clone()
			e.Add(peak, -1)
			b.m.AddConstraint(fmt.Sprintf("peak_dominates[%s][%d]", period.Name, t), e, lp.LessEq, 0)
		}
	}
}

// netDemandCharged returns the expression the energy charge applies to at
// timestep t: the positive-net-demand variable when it exists, else the net
// demand expression itself.
func (b *Builder) netDemandCharged(t int) *lp.Expr {
	if b.out.PosNetDemand != nil {
		return lp.NewExpr(0).Add(b.out.PosNetDemand[t], 1)
	}
	return b.netDemand[t].Clone()
}

// netDemandUpperBound derives a big-M bound on net demand from input data
// and asset capacities.
func (b *Builder) netDemandUpperBound() float64 {
	s := b.sets
	var maxDemand float64
	for _, v := range s.BaseDemand {
		maxDemand = math.Max(maxDemand, v)
	}
	bound := maxDemand
	if s.Scenario.Assets.Storage.Enabled {
		bound += capacityBound(s.Scenario.Assets.Storage.PowerCapacityKW, defaultCapacityBound)
	}
	if s.Scenario.Assets.Shiftable.Enabled {
		var maxRecover float64
		for _, v := range s.RecoverKW {
			maxRecover = math.Max(maxRecover, v)
		}
		bound += maxRecover
	}
	return bound
}

// exportUpperBound derives a big-M bound on total exports from asset
// capacities.
func (b *Builder) exportUpperBound() float64 {
	s := b.sets
	var bound float64
	if s.Scenario.Assets.Solar.Enabled && s.Scenario.Assets.Solar.AllowExport {
		bound += capacityBound(s.Scenario.Assets.Solar.CapacityKW, defaultCapacityBound)
	}
	if s.Scenario.Assets.Storage.Enabled && s.Scenario.Assets.Storage.AllowExport {
		bound += capacityBound(s.Scenario.Assets.Storage.PowerCapacityKW, defaultCapacityBound)
	}
	return bound
}

// defaultCapacityBound stands in for an unbounded optimized capacity when a
// finite big-M is required.
const defaultCapacityBound = 1e5

func capacityBound(c types.Capacity, def float64) float64 {
	if !c.Optimize {
		return c.Value
	}
	if c.Max > 0 {
		return c.Max
	}
	return def
}
