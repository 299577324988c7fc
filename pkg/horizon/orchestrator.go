package horizon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dersolve/dersolve/pkg/builder"
	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/rates"
	"github.com/dersolve/dersolve/pkg/solver"
	"github.com/dersolve/dersolve/pkg/types"
)

// Orchestrator runs a scenario end to end: compile the tariff, partition the
// year, then build, solve and extract each window in order.
type Orchestrator struct {
	backend solver.Backend
}

// New returns an Orchestrator solving with the given backend.
func New(backend solver.Backend) *Orchestrator {
	return &Orchestrator{backend: backend}
}

// Run executes every window sequentially. A window that fails to solve stops
// the run: the partial results accumulated so far are returned alongside the
// solve error, and no retry is attempted.
func (o *Orchestrator) Run(ctx context.Context, scn *types.Scenario) (*types.RunResult, error) {
	ctx = log.WithComponent(ctx, "horizon")

	profile, err := rates.Compile(ctx, &scn.Tariff, scn.Config)
	if err != nil {
		return nil, err
	}

	result := &types.RunResult{
		Scenario:  scn.Config.Name,
		StartedAt: time.Now().UTC(),
		Costs:     make(map[string]float64),
	}
	state := initialState(scn)
	spans := windows(scn)

	log.Ctx(ctx).InfoContext(ctx, "starting run",
		slog.String("scenario", scn.Config.Name),
		slog.String("horizon", string(scn.Config.Horizon)),
		slog.String("mode", string(scn.Config.Mode)),
		slog.Int("windows", len(spans)))

	for _, sp := range spans {
		// monthly peaks reset at the billing-month boundary
		if sp.start.Month() != state.Month {
			state.Month = sp.start.Month()
			state.PriorPeaks = make(map[string]float64)
		}

		sets := buildSets(scn, profile, sp, state)
		b, err := builder.New(sets).Build(ctx)
		if err != nil {
			return nil, err
		}

		res, err := o.backend.Solve(ctx, b.Model)
		if err != nil {
			result.Failure = fmt.Sprintf("window starting %s: %v", sp.start.Format("2006-01-02"), err)
			log.Ctx(ctx).ErrorContext(ctx, "window failed to solve",
				slog.Time("start", sp.start),
				slog.String("status", string(res.Status)),
				slog.Any("error", err))
			return result, err
		}

		o.extract(result, sets, b, res)
		if scn.Config.Mode == types.ModeExpansion {
			result.Capacity = extractCapacity(scn, result, b, res)
		}
		state = nextState(scn, sets, b, res, state)
	}

	result.Completed = true
	log.Ctx(ctx).InfoContext(ctx, "run complete",
		slog.String("scenario", scn.Config.Name),
		slog.Float64("total", result.Total))
	return result, nil
}

// extract appends the window's dispatch rows and bill breakdown to the run
// result.
func (o *Orchestrator) extract(result *types.RunResult, sets *builder.Sets, b *builder.Build, res solver.Result) {
	val := func(ids []int, t int) float64 {
		if ids == nil {
			return 0
		}
		return res.Values[ids[t]]
	}

	for t := 0; t < sets.Steps; t++ {
		row := types.DispatchRow{
			Timestamp:           sets.Start.Add(time.Duration(t) * time.Duration(sets.StepHours*float64(time.Hour))),
			DemandKW:            sets.BaseDemand[t],
			NetDemandKW:         b.NetDemand[t].Value(res.Values),
			EnergyDollarsPerKWH: sets.EnergyPrice[t],
		}
		if b.TotalExports != nil {
			row.NetExportsKW = b.TotalExports[t].Value(res.Values)
			row.SellDollarsPerKWH = sets.SellPrice[t]
		}
		row.SolarBTMKW = val(b.SolarBTM, t)
		row.SolarExportKW = val(b.SolarExport, t)
		row.BatteryChargeKW = val(b.BatteryCharge, t)
		row.BatteryDischargeKW = val(b.BatteryBTM, t)
		row.BatteryExportKW = val(b.BatteryExport, t)
		row.BatterySOCKWH = val(b.BatterySOC, t)
		row.ShiftDeviationKW = val(b.ShiftDev, t)
		row.ShedKW = val(b.Shed, t)
		result.Rows = append(result.Rows, row)
	}

	window := types.WindowResult{
		Start: sets.Start,
		End:   sets.End,
		Costs: make(map[string]float64, len(b.CostTerms)),
	}
	for _, term := range b.CostTerms {
		v := term.Expr.Value(res.Values)
		window.Costs[term.Component] += v
		window.Objective += v
		result.Costs[term.Component] += v
	}
	result.Total += window.Objective
	result.Windows = append(result.Windows, window)
}

// nextState threads the battery charge and observed monthly peaks into the
// next window.
func nextState(scn *types.Scenario, sets *builder.Sets, b *builder.Build, res solver.Result, prev WindowState) WindowState {
	next := WindowState{
		SOCFraction: prev.SOCFraction,
		PriorPeaks:  prev.PriorPeaks,
		Month:       prev.Month,
	}

	if scn.Assets.Storage.Enabled && len(b.BatterySOC) > 0 {
		cap := scn.Assets.Storage.EnergyCapacityKWH.Value
		if b.EnergyCapVar >= 0 {
			cap = res.Values[b.EnergyCapVar]
		}
		if cap > 0 {
			next.SOCFraction = res.Values[b.BatterySOC[len(b.BatterySOC)-1]] / cap
		}
	}

	if sets.SingleDay {
		for k, period := range sets.DemandPeriods {
			if period.Category == types.DemandCategoryDailyTOU {
				continue
			}
			// peak variables are bounded below by the prior peak, so the
			// solved value is already the monthly running maximum
			next.PriorPeaks[period.Name] = res.Values[b.PeakVars[k]]
		}
	}
	return next
}

// extractCapacity reads the asset sizes out of the expansion window: solved
// values for optimized capacities, spec values for fixed ones.
func extractCapacity(scn *types.Scenario, result *types.RunResult, b *builder.Build, res solver.Result) types.CapacityResult {
	var out types.CapacityResult
	out.AnnualizedDollars = result.Costs[types.CostInvestment]
	if scn.Assets.Solar.Enabled {
		out.SolarKW = scn.Assets.Solar.CapacityKW.Value
		if b.SolarCapVar >= 0 {
			out.SolarKW = res.Values[b.SolarCapVar]
		}
	}
	if scn.Assets.Storage.Enabled {
		out.StorageEnergyKWH = scn.Assets.Storage.EnergyCapacityKWH.Value
		if b.EnergyCapVar >= 0 {
			out.StorageEnergyKWH = res.Values[b.EnergyCapVar]
		}
		out.StoragePowerKW = scn.Assets.Storage.PowerCapacityKW.Value
		if b.PowerCapVar >= 0 {
			out.StoragePowerKW = res.Values[b.PowerCapVar]
		}
	}
	return out
}
