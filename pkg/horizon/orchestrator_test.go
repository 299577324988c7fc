package horizon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/solver"
	"github.com/dersolve/dersolve/pkg/types"
)

func TestRunSolarDayHorizon(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonDay)
	scn.Assets.Solar = types.SolarSpec{
		Enabled:            true,
		CapacityKW:         types.Capacity{Value: 10},
		CapacityFactor:     constSeries(2023, 0.5),
		InverterEfficiency: 1,
	}

	result, err := New(solver.NewSimplex()).Run(context.Background(), scn)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Len(t, result.Windows, 365)
	require.Len(t, result.Rows, 8760)

	// 10 kW base less 5 kW of solar at $0.2/kWh, every hour of the year
	assert.InDelta(t, 8760*5*0.2, result.Total, 1e-3)
	assert.InDelta(t, result.Total, result.Costs[types.CostEnergy], 1e-6)

	row := result.Rows[12]
	assert.InDelta(t, 10.0, row.DemandKW, 1e-9)
	assert.InDelta(t, 5.0, row.SolarBTMKW, 1e-6)
	assert.InDelta(t, 5.0, row.NetDemandKW, 1e-6)
	assert.Equal(t, time.Date(2023, time.January, 1, 12, 0, 0, 0, time.UTC), row.Timestamp)
}

func TestRunBatteryStateCarriesAcrossDays(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonDay)
	scn.Assets.Storage = types.StorageSpec{
		Enabled:             true,
		EnergyCapacityKWH:   types.Capacity{Value: 20},
		PowerCapacityKW:     types.Capacity{Value: 5},
		ChargeEfficiency:    0.9,
		DischargeEfficiency: 0.9,
		MaxSOCFraction:      1,
		InitialSOCFraction:  0.5,
		AllowGridImport:     true,
	}

	result, err := New(solver.NewSimplex()).Run(context.Background(), scn)
	require.NoError(t, err)
	require.True(t, result.Completed)

	// flat prices give round-trip losses nothing to earn back: the battery
	// idles and every day hands the next one the same 10 kWh
	last := result.Rows[len(result.Rows)-1]
	assert.InDelta(t, 10.0, last.BatterySOCKWH, 1e-6)
	assert.InDelta(t, 0.0, result.Rows[5000].BatteryChargeKW, 1e-6)
	assert.InDelta(t, 8760*10*0.2, result.Total, 1e-3)
}

func TestRunMonthlyPeakCarriesAcrossDays(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonDay)
	scn.Tariff.Seasons[0].DemandMonthlyMax = 12
	// one 50 kW spike at noon on Jan 15
	spike := scn.Assets.BaseDemand.IndexOf(time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC))
	scn.Assets.BaseDemand.Values[spike] = 50

	result, err := New(solver.NewSimplex()).Run(context.Background(), scn)
	require.NoError(t, err)
	require.True(t, result.Completed)

	monthDemand := make(map[time.Month]float64)
	for _, w := range result.Windows {
		monthDemand[w.Start.Month()] += w.Costs[types.CostDemand]
	}
	// incremental daily charges must sum to rate * monthly peak
	assert.InDelta(t, 12*50, monthDemand[time.January], 1e-4)
	assert.InDelta(t, 12*10, monthDemand[time.February], 1e-4)
	assert.InDelta(t, 12*(50+11*10), result.Costs[types.CostDemand], 1e-3)
}

// failAfter delegates to a real backend for n windows, then reports the model
// infeasible.
type failAfter struct {
	inner solver.Backend
	n     int
	calls int
}

func (f *failAfter) Name() string { return "fail-after" }

func (f *failAfter) Solve(ctx context.Context, m *lp.Model) (solver.Result, error) {
	f.calls++
	if f.calls > f.n {
		return solver.Result{Status: solver.StatusInfeasible},
			&solver.SolveError{Backend: f.Name(), Status: solver.StatusInfeasible}
	}
	return f.inner.Solve(ctx, m)
}

func TestRunPreservesPartialResultsOnSolveFailure(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonDay)

	backend := &failAfter{inner: solver.NewSimplex(), n: 2}
	result, err := New(backend).Run(context.Background(), scn)

	var serr *solver.SolveError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, solver.StatusInfeasible, serr.Status)

	require.NotNil(t, result)
	assert.False(t, result.Completed)
	assert.Contains(t, result.Failure, "2023-01-03")
	assert.Len(t, result.Windows, 2)
	assert.Len(t, result.Rows, 48)
}

func TestRunMonthHorizon(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonMonth)

	result, err := New(solver.NewSimplex()).Run(context.Background(), scn)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Len(t, result.Windows, 12)
	require.Len(t, result.Rows, 8760)
	assert.InDelta(t, 8760*10*0.2, result.Total, 1e-3)

	feb := result.Windows[1]
	assert.Equal(t, time.February, feb.Start.Month())
	assert.InDelta(t, 28*24*10*0.2, feb.Costs[types.CostEnergy], 1e-6)
}

func TestRunYearHorizon(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonYear)
	scn.Tariff.Seasons[0].DemandMonthlyMax = 12

	result, err := New(solver.NewSimplex()).Run(context.Background(), scn)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Len(t, result.Windows, 1)
	require.Len(t, result.Rows, 8760)
	assert.InDelta(t, 8760*10*0.2, result.Costs[types.CostEnergy], 1e-3)
	assert.InDelta(t, 12*12*10, result.Costs[types.CostDemand], 1e-3)
}
