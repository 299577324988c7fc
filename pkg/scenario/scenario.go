// Package scenario loads scenario definitions from YAML files into validated
// records. Per-timestep series may be given three ways: a constant, a daily
// profile tiled across the year, or the full list of values.
package scenario

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dersolve/dersolve/pkg/types"
)

// document is the YAML shape of a scenario file. The avoided-cost series for
// NEM v3 lives at the top level so it can use the compact series forms.
type document struct {
	Config      types.ScenarioConfig `yaml:"config"`
	Tariff      types.TariffSpec     `yaml:"tariff"`
	AvoidedCost *seriesDoc           `yaml:"avoided_cost"`
	Assets      assetsDoc            `yaml:"assets"`
}

type assetsDoc struct {
	BaseDemand *seriesDoc `yaml:"base_demand"`
	Solar      struct {
		Enabled            bool           `yaml:"enabled"`
		CapacityKW         types.Capacity `yaml:"capacity_kw"`
		CapacityFactor     *seriesDoc     `yaml:"capacity_factor"`
		InverterEfficiency float64        `yaml:"inverter_efficiency"`
		AllowExport        bool           `yaml:"allow_export"`
		CostPerKW          float64        `yaml:"cost_per_kw"`
		LifespanYears      int            `yaml:"lifespan_years"`
	} `yaml:"solar"`
	Storage   types.StorageSpec `yaml:"storage"`
	Shiftable struct {
		Enabled             bool       `yaml:"enabled"`
		CurtailKW           *seriesDoc `yaml:"curtail_kw"`
		RecoverKW           *seriesDoc `yaml:"recover_kw"`
		RecoveryWindowSteps int        `yaml:"recovery_window_steps"`
	} `yaml:"shiftable"`
	Sheddable types.SheddableDemandSpec `yaml:"sheddable"`
}

// seriesDoc is the compact YAML form of a full-year series: exactly one of
// the fields must be set.
type seriesDoc struct {
	Constant     *float64  `yaml:"constant"`
	DailyProfile []float64 `yaml:"daily_profile"`
	Values       []float64 `yaml:"values"`
}

func (s *seriesDoc) expand(field string, year, intervalMinutes int) (*types.TimeSeries, error) {
	if s == nil {
		return nil, nil
	}
	set := 0
	if s.Constant != nil {
		set++
	}
	if len(s.DailyProfile) > 0 {
		set++
	}
	if len(s.Values) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%s: exactly one of constant, daily_profile, values must be set", field)
	}

	ts := types.ZeroSeries(year, intervalMinutes)
	switch {
	case s.Constant != nil:
		for i := range ts.Values {
			ts.Values[i] = *s.Constant
		}
	case len(s.DailyProfile) > 0:
		spd := types.StepsPerDay(intervalMinutes)
		if len(s.DailyProfile) != spd {
			return nil, fmt.Errorf("%s: daily_profile has %d values, expected %d", field, len(s.DailyProfile), spd)
		}
		for i := range ts.Values {
			ts.Values[i] = s.DailyProfile[i%spd]
		}
	default:
		if len(s.Values) != len(ts.Values) {
			return nil, fmt.Errorf("%s: values has %d entries, expected %d", field, len(s.Values), len(ts.Values))
		}
		copy(ts.Values, s.Values)
	}
	return &ts, nil
}

// Load reads, expands and validates a scenario file.
func Load(ctx context.Context, path string) (*types.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return LoadBytes(ctx, data)
}

// LoadBytes expands and validates a YAML scenario document.
func LoadBytes(ctx context.Context, data []byte) (*types.Scenario, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario yaml: %w", err)
	}

	year, interval := doc.Config.Year, doc.Config.IntervalMinutes
	if interval == 0 {
		interval = 60
	}

	assets := types.AssetSpecs{
		Storage:   doc.Assets.Storage,
		Sheddable: doc.Assets.Sheddable,
	}

	base, err := doc.Assets.BaseDemand.expand("assets.base_demand", year, interval)
	if err != nil {
		return nil, err
	}
	assets.BaseDemand = base

	if doc.Assets.Solar.Enabled {
		cf, err := doc.Assets.Solar.CapacityFactor.expand("assets.solar.capacity_factor", year, interval)
		if err != nil {
			return nil, err
		}
		assets.Solar = types.SolarSpec{
			Enabled:            true,
			CapacityKW:         doc.Assets.Solar.CapacityKW,
			CapacityFactor:     cf,
			InverterEfficiency: doc.Assets.Solar.InverterEfficiency,
			AllowExport:        doc.Assets.Solar.AllowExport,
			CostPerKW:          doc.Assets.Solar.CostPerKW,
			LifespanYears:      doc.Assets.Solar.LifespanYears,
		}
	}

	if doc.Assets.Shiftable.Enabled {
		curtail, err := doc.Assets.Shiftable.CurtailKW.expand("assets.shiftable.curtail_kw", year, interval)
		if err != nil {
			return nil, err
		}
		recover, err := doc.Assets.Shiftable.RecoverKW.expand("assets.shiftable.recover_kw", year, interval)
		if err != nil {
			return nil, err
		}
		assets.Shiftable = types.ShiftableDemandSpec{
			Enabled:             true,
			CurtailKW:           curtail,
			RecoverKW:           recover,
			RecoveryWindowSteps: doc.Assets.Shiftable.RecoveryWindowSteps,
		}
	}

	if doc.AvoidedCost != nil {
		avoided, err := doc.AvoidedCost.expand("avoided_cost", year, interval)
		if err != nil {
			return nil, err
		}
		doc.Tariff.NEM.AvoidedCost = avoided
	}

	return types.NewScenario(ctx, doc.Config, doc.Tariff, assets)
}
