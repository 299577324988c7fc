package types

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatTariff() TariffSpec {
	var table TOUTable
	for h := range table.Hours {
		table.Hours[h] = TOURate{Label: "all_day", DollarsPerKWH: 0.20}
	}
	return TariffSpec{
		Name:    "flat",
		Seasons: []Season{{Name: "base", Energy: &table}},
	}
}

func baseAssets(year int) AssetSpecs {
	demand := ZeroSeries(year, 60)
	for i := range demand.Values {
		demand.Values[i] = 10
	}
	return AssetSpecs{BaseDemand: &demand}
}

func TestNewScenarioDefaults(t *testing.T) {
	ctx := context.Background()
	sc, err := NewScenario(ctx, ScenarioConfig{Name: "t", Year: 2023}, flatTariff(), baseAssets(2023))
	require.NoError(t, err)
	assert.Equal(t, 60, sc.Config.IntervalMinutes)
	assert.Equal(t, HorizonYear, sc.Config.Horizon)
	assert.Equal(t, ModeDispatch, sc.Config.Mode)
	assert.Equal(t, 1.0, sc.Tariff.Scaling.Energy)
}

func TestNewScenarioErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing energy table", func(t *testing.T) {
		tariff := TariffSpec{Name: "broken", Seasons: []Season{{Name: "base"}}}
		_, err := NewScenario(ctx, ScenarioConfig{Year: 2023}, tariff, baseAssets(2023))
		require.Error(t, err)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("expansion requires year horizon", func(t *testing.T) {
		cfg := ScenarioConfig{Year: 2023, Horizon: HorizonDay, Mode: ModeExpansion}
		_, err := NewScenario(ctx, cfg, flatTariff(), baseAssets(2023))
		assert.Error(t, err)
	})

	t.Run("nem v2 requires non-bypassable charge", func(t *testing.T) {
		tariff := flatTariff()
		tariff.NEM = NEMSpec{Version: NEMV2}
		_, err := NewScenario(ctx, ScenarioConfig{Year: 2023}, tariff, baseAssets(2023))
		assert.Error(t, err)
	})

	t.Run("nem v3 requires avoided cost", func(t *testing.T) {
		tariff := flatTariff()
		tariff.NEM = NEMSpec{Version: NEMV3, NonBypassableDollarsPerKWH: 0.02}
		_, err := NewScenario(ctx, ScenarioConfig{Year: 2023}, tariff, baseAssets(2023))
		assert.Error(t, err)
	})

	t.Run("non-import storage without solar", func(t *testing.T) {
		assets := baseAssets(2023)
		assets.Storage = StorageSpec{
			Enabled:           true,
			EnergyCapacityKWH: Capacity{Value: 10},
			PowerCapacityKW:   Capacity{Value: 5},
			AllowGridImport:   false,
		}
		_, err := NewScenario(ctx, ScenarioConfig{Year: 2023}, flatTariff(), assets)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-import storage")
	})

	t.Run("series year mismatch", func(t *testing.T) {
		_, err := NewScenario(ctx, ScenarioConfig{Year: 2024}, flatTariff(), baseAssets(2023))
		assert.Error(t, err)
	})
}

func TestTariffValidateSeasons(t *testing.T) {
	monthly := func(names map[string][]time.Month) TariffSpec {
		var table TOUTable
		for h := range table.Hours {
			table.Hours[h] = TOURate{Label: "flat", DollarsPerKWH: 0.1}
		}
		tariff := TariffSpec{Name: "seasonal", SeasonalMonthSplit: true}
		for n, months := range names {
			tariff.Seasons = append(tariff.Seasons, Season{Name: n, Months: months, Energy: &table})
		}
		return tariff
	}

	t.Run("partition must cover 12 months", func(t *testing.T) {
		tariff := monthly(map[string][]time.Month{
			"summer": {time.June, time.July, time.August},
		})
		_, err := tariff.Validate(2023, 60)
		assert.Error(t, err)
	})

	t.Run("overlapping months rejected", func(t *testing.T) {
		tariff := monthly(map[string][]time.Month{
			"a": {1, 2, 3, 4, 5, 6},
			"b": {6, 7, 8, 9, 10, 11},
			"c": {12},
		})
		_, err := tariff.Validate(2023, 60)
		assert.Error(t, err)
	})

	t.Run("full partition accepted", func(t *testing.T) {
		tariff := monthly(map[string][]time.Month{
			"winter": {1, 2, 3, 10, 11, 12},
			"summer": {4, 5, 6, 7, 8, 9},
		})
		_, err := tariff.Validate(2023, 60)
		assert.NoError(t, err)
	})
}

func TestTariffValidateTiers(t *testing.T) {
	tariff := flatTariff()
	tariff.TieredRates = map[time.Month][]TierBand{
		time.July: {
			{LowerKWH: 0, UpperKWH: 500, DollarsPerKWH: 0.15},
			{LowerKWH: 500, UpperKWH: 0, DollarsPerKWH: 0.25},
		},
	}
	_, err := tariff.Validate(2023, 60)
	require.NoError(t, err)

	t.Run("gap between tiers", func(t *testing.T) {
		bad := flatTariff()
		bad.TieredRates = map[time.Month][]TierBand{
			time.July: {
				{LowerKWH: 0, UpperKWH: 500, DollarsPerKWH: 0.15},
				{LowerKWH: 600, UpperKWH: 0, DollarsPerKWH: 0.25},
			},
		}
		_, err := bad.Validate(2023, 60)
		assert.Error(t, err)
	})

	t.Run("unbounded middle tier", func(t *testing.T) {
		bad := flatTariff()
		bad.TieredRates = map[time.Month][]TierBand{
			time.July: {
				{LowerKWH: 0, UpperKWH: 0, DollarsPerKWH: 0.15},
				{LowerKWH: 0, UpperKWH: 800, DollarsPerKWH: 0.25},
			},
		}
		_, err := bad.Validate(2023, 60)
		assert.Error(t, err)
	})
}

func TestTOUTableOffPeak(t *testing.T) {
	var table TOUTable
	for h := range table.Hours {
		table.Hours[h] = TOURate{Label: "peak", DollarsPerKWH: 0.30}
	}
	for h := 0; h < 7; h++ {
		table.Hours[h] = TOURate{Label: "off_peak", DollarsPerKWH: 0.08}
	}
	assert.Equal(t, TOURate{Label: "off_peak", DollarsPerKWH: 0.08}, table.OffPeak())
	assert.Equal(t, []string{"off_peak", "peak"}, table.Labels())
}
