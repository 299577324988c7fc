package horizon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dersolve/dersolve/pkg/rates"
	"github.com/dersolve/dersolve/pkg/types"
)

func constSeries(year int, v float64) *types.TimeSeries {
	ts := types.ZeroSeries(year, 60)
	for i := range ts.Values {
		ts.Values[i] = v
	}
	return &ts
}

func flatTable(label string, rate float64) *types.TOUTable {
	tb := &types.TOUTable{}
	for h := range tb.Hours {
		tb.Hours[h] = types.TOURate{Label: label, DollarsPerKWH: rate}
	}
	return tb
}

func yearScenario(t *testing.T, year int, horizon types.Horizon) *types.Scenario {
	t.Helper()
	months := make([]time.Month, 12)
	for i := range months {
		months[i] = time.Month(i + 1)
	}
	scn, err := types.NewScenario(context.Background(),
		types.ScenarioConfig{
			Name:            "partition-test",
			Year:            year,
			IntervalMinutes: 60,
			Horizon:         horizon,
			Mode:            types.ModeDispatch,
		},
		types.TariffSpec{
			Name: "flat",
			Seasons: []types.Season{{
				Name:   "all",
				Months: months,
				Energy: flatTable("all", 0.2),
			}},
		},
		types.AssetSpecs{BaseDemand: constSeries(year, 10)},
	)
	require.NoError(t, err)
	return scn
}

func TestWindowsDayHorizon(t *testing.T) {
	scn := yearScenario(t, 2024, types.HorizonDay)
	spans := windows(scn)
	require.Len(t, spans, 366)

	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), spans[0].start)
	assert.Equal(t, 24, spans[0].steps)
	assert.Equal(t, 1, spans[0].months)
	assert.Equal(t, 0, spans[1].months)

	// Feb 1 of a leap year lands at step 31*24
	assert.Equal(t, 31*24, spans[31].startStep)
	assert.Equal(t, time.February, spans[31].start.Month())
	assert.Equal(t, 1, spans[31].months)

	last := spans[365]
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), last.start)
	assert.Equal(t, 365*24, last.startStep)
}

func TestWindowsMonthHorizon(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonMonth)
	spans := windows(scn)
	require.Len(t, spans, 12)

	assert.Equal(t, 31*24, spans[0].steps)
	assert.Equal(t, 28*24, spans[1].steps)
	assert.Equal(t, 31, spans[0].days)

	var total int
	for _, sp := range spans {
		assert.Equal(t, total, sp.startStep)
		assert.Equal(t, 1, sp.months)
		total += sp.steps
	}
	assert.Equal(t, 8760, total)
}

func TestWindowsYearHorizon(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonYear)
	spans := windows(scn)
	require.Len(t, spans, 1)
	assert.Equal(t, 8760, spans[0].steps)
	assert.Equal(t, 365, spans[0].days)
	assert.Equal(t, 12, spans[0].months)
}

func TestBuildSetsSlicesSeries(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonDay)
	profile, err := rates.Compile(context.Background(), &scn.Tariff, scn.Config)
	require.NoError(t, err)

	sp := windows(scn)[40] // Feb 10
	state := initialState(scn)
	sets := buildSets(scn, profile, sp, state)

	assert.Equal(t, 24, sets.Steps)
	assert.Equal(t, 1.0, sets.StepHours)
	assert.Len(t, sets.BaseDemand, 24)
	assert.Len(t, sets.EnergyPrice, 24)
	assert.True(t, sets.SingleDay)
	require.Contains(t, sets.MonthSteps, time.February)
	assert.Len(t, sets.MonthSteps[time.February], 24)
}

func TestBuildSetsDemandPeriodsCarryPriorPeaks(t *testing.T) {
	scn := yearScenario(t, 2023, types.HorizonDay)
	scn.Tariff.Seasons[0].DemandMonthlyMax = 12
	scn.Tariff.Scaling = types.ChargeScaling{Energy: 1, Demand: 1, TOU: 1}
	profile, err := rates.Compile(context.Background(), &scn.Tariff, scn.Config)
	require.NoError(t, err)

	state := initialState(scn)
	sp := windows(scn)[5]
	sets := buildSets(scn, profile, sp, state)
	require.Len(t, sets.DemandPeriods, 1)
	assert.Equal(t, types.DemandCategoryMonthlyMax, sets.DemandPeriods[0].Category)
	assert.Equal(t, 0.0, sets.DemandPeriods[0].PriorPeakKW)

	state.PriorPeaks[sets.DemandPeriods[0].Name] = 42
	sets = buildSets(scn, profile, sp, state)
	assert.Equal(t, 42.0, sets.DemandPeriods[0].PriorPeakKW)

	// a January mask must not appear in a February window
	feb := buildSets(scn, profile, windows(scn)[31], state)
	require.Len(t, feb.DemandPeriods, 1)
	assert.NotEqual(t, sets.DemandPeriods[0].Name, feb.DemandPeriods[0].Name)
}
