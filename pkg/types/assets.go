package types

// Capacity is an asset size that is either fixed (dispatch mode) or a
// decision variable bounded above by MaxKW (expansion mode).
type Capacity struct {
	Value float64 `json:"value" yaml:"value"`
	// Optimize marks the capacity as a decision variable. Only honored when
	// the scenario runs in expansion mode.
	Optimize bool `json:"optimize" yaml:"optimize"`
	// Max bounds the decision variable from above. Zero means unbounded.
	Max float64 `json:"max,omitempty" yaml:"max"`
}

// SolarSpec configures the solar PV asset.
type SolarSpec struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// CapacityKW is the installed (or optimized) nameplate capacity.
	CapacityKW Capacity `json:"capacityKW" yaml:"capacity_kw"`
	// CapacityFactor is the per-timestep generation fraction in [0,1],
	// produced by an external PV model.
	CapacityFactor *TimeSeries `json:"capacityFactor,omitempty" yaml:"capacity_factor"`
	// InverterEfficiency defaults to 1.
	InverterEfficiency float64 `json:"inverterEfficiency" yaml:"inverter_efficiency"`
	AllowExport        bool    `json:"allowExport" yaml:"allow_export"`

	// Expansion-mode economics.
	CostPerKW     float64 `json:"costPerKW,omitempty" yaml:"cost_per_kw"`
	LifespanYears int     `json:"lifespanYears,omitempty" yaml:"lifespan_years"`
}

// StorageSpec configures the battery storage asset.
type StorageSpec struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	EnergyCapacityKWH Capacity `json:"energyCapacityKWH" yaml:"energy_capacity_kwh"`
	PowerCapacityKW   Capacity `json:"powerCapacityKW" yaml:"power_capacity_kw"`

	// Efficiencies in (0,1]; both default to 0.95.
	ChargeEfficiency    float64 `json:"chargeEfficiency" yaml:"charge_efficiency"`
	DischargeEfficiency float64 `json:"dischargeEfficiency" yaml:"discharge_efficiency"`
	// LossRate is the per-timestep self-discharge fraction in [0,1).
	LossRate float64 `json:"lossRate" yaml:"loss_rate"`

	// SOC bounds as fractions of energy capacity.
	MinSOCFraction     float64 `json:"minSOCFraction" yaml:"min_soc_fraction"`
	MaxSOCFraction     float64 `json:"maxSOCFraction" yaml:"max_soc_fraction"`
	InitialSOCFraction float64 `json:"initialSOCFraction" yaml:"initial_soc_fraction"`

	AllowExport bool `json:"allowExport" yaml:"allow_export"`
	// AllowGridImport permits charging from the grid. When false the battery
	// may only charge from concurrent solar generation, which requires the
	// solar asset to be enabled.
	AllowGridImport bool `json:"allowGridImport" yaml:"allow_grid_import"`

	// Expansion-mode economics (per kWh of energy capacity).
	CostPerKWH    float64 `json:"costPerKWH,omitempty" yaml:"cost_per_kwh"`
	LifespanYears int     `json:"lifespanYears,omitempty" yaml:"lifespan_years"`
}

// ShiftableDemandSpec configures energy-neutral load shifting.
type ShiftableDemandSpec struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// CurtailKW bounds each timestep's deviation from below; values must be
	// nonpositive (kW of load that can be deferred).
	CurtailKW *TimeSeries `json:"curtailKW,omitempty" yaml:"curtail_kw"`
	// RecoverKW bounds each timestep's deviation from above; values must be
	// nonnegative (kW of extra load that can be recovered).
	RecoverKW *TimeSeries `json:"recoverKW,omitempty" yaml:"recover_kw"`
	// RecoveryWindowSteps is the sliding-window length over which net
	// deviation may not be negative, preventing indefinitely deferred
	// recovery. Defaults to one day.
	RecoveryWindowSteps int `json:"recoveryWindowSteps" yaml:"recovery_window_steps"`
}

// SheddableDemandSpec configures curtailable load with a value of lost load.
type SheddableDemandSpec struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// ValueOfLostLoad is the $/kWh cost of shedding.
	ValueOfLostLoad float64 `json:"valueOfLostLoad" yaml:"value_of_lost_load"`
}

// AssetSpecs bundles every behind-the-meter resource for a site. BaseDemand
// is always required; all other assets are optional.
type AssetSpecs struct {
	BaseDemand *TimeSeries         `json:"baseDemand" yaml:"base_demand"`
	Solar      SolarSpec           `json:"solar" yaml:"solar"`
	Storage    StorageSpec         `json:"storage" yaml:"storage"`
	Shiftable  ShiftableDemandSpec `json:"shiftable" yaml:"shiftable"`
	Sheddable  SheddableDemandSpec `json:"sheddable" yaml:"sheddable"`
}

// Validate checks all asset specs, applying defaults in the same pass and
// returning notices for any defaults taken.
func (a *AssetSpecs) Validate(year, intervalMinutes int, expansion bool) ([]string, error) {
	var notices []string

	checkSeries := func(field string, ts *TimeSeries) error {
		if ts.Year != year || ts.IntervalMinutes != intervalMinutes {
			return configErrf(field, "series must match scenario year %d and interval %d minutes", year, intervalMinutes)
		}
		if want := ExpectedSteps(year, intervalMinutes); ts.Len() != want {
			return configErrf(field, "series has %d values, expected %d", ts.Len(), want)
		}
		return nil
	}

	if a.BaseDemand == nil {
		return nil, configErrf("baseDemand", "base demand series is required")
	}
	if err := checkSeries("baseDemand", a.BaseDemand); err != nil {
		return nil, err
	}
	for i, v := range a.BaseDemand.Values {
		if v < 0 {
			return nil, configErrf("baseDemand", "negative demand %.3f at step %d", v, i)
		}
	}

	if a.Solar.Enabled {
		if a.Solar.CapacityFactor == nil {
			return nil, configErrf("solar.capacityFactor", "capacity factor series is required when solar is enabled")
		}
		if err := checkSeries("solar.capacityFactor", a.Solar.CapacityFactor); err != nil {
			return nil, err
		}
		for i, v := range a.Solar.CapacityFactor.Values {
			if v < 0 || v > 1 {
				return nil, configErrf("solar.capacityFactor", "value %.3f at step %d outside [0,1]", v, i)
			}
		}
		if a.Solar.InverterEfficiency == 0 {
			a.Solar.InverterEfficiency = 1
			notices = append(notices, "solar inverter efficiency defaulted to 1")
		}
		if a.Solar.InverterEfficiency < 0 || a.Solar.InverterEfficiency > 1 {
			return nil, configErrf("solar.inverterEfficiency", "must be within [0,1], got %.3f", a.Solar.InverterEfficiency)
		}
		if err := a.Solar.CapacityKW.validate("solar.capacityKW", expansion); err != nil {
			return nil, err
		}
		if expansion && a.Solar.CapacityKW.Optimize && a.Solar.LifespanYears <= 0 {
			return nil, configErrf("solar.lifespanYears", "lifespan is required to annualize investment cost")
		}
	}

	if a.Storage.Enabled {
		s := &a.Storage
		if s.ChargeEfficiency == 0 {
			s.ChargeEfficiency = 0.95
			notices = append(notices, "storage charge efficiency defaulted to 0.95")
		}
		if s.DischargeEfficiency == 0 {
			s.DischargeEfficiency = 0.95
			notices = append(notices, "storage discharge efficiency defaulted to 0.95")
		}
		if s.MaxSOCFraction == 0 {
			s.MaxSOCFraction = 1
			notices = append(notices, "storage max SOC fraction defaulted to 1")
		}
		if s.ChargeEfficiency <= 0 || s.ChargeEfficiency > 1 {
			return nil, configErrf("storage.chargeEfficiency", "must be within (0,1], got %.3f", s.ChargeEfficiency)
		}
		if s.DischargeEfficiency <= 0 || s.DischargeEfficiency > 1 {
			return nil, configErrf("storage.dischargeEfficiency", "must be within (0,1], got %.3f", s.DischargeEfficiency)
		}
		if s.LossRate < 0 || s.LossRate >= 1 {
			return nil, configErrf("storage.lossRate", "must be within [0,1), got %.3f", s.LossRate)
		}
		if s.MinSOCFraction < 0 || s.MinSOCFraction > 1 || s.MaxSOCFraction > 1 || s.MinSOCFraction > s.MaxSOCFraction {
			return nil, configErrf("storage.soc", "SOC fractions must satisfy 0 <= min <= max <= 1")
		}
		if s.InitialSOCFraction < s.MinSOCFraction || s.InitialSOCFraction > s.MaxSOCFraction {
			return nil, configErrf("storage.initialSOCFraction", "must be within [min, max] SOC fractions")
		}
		if err := s.EnergyCapacityKWH.validate("storage.energyCapacityKWH", expansion); err != nil {
			return nil, err
		}
		if err := s.PowerCapacityKW.validate("storage.powerCapacityKW", expansion); err != nil {
			return nil, err
		}
		if !s.AllowGridImport && !a.Solar.Enabled {
			// A battery that can only charge from solar has zero usable
			// capacity without a solar asset; refuse rather than build it.
			return nil, configErrf("storage.allowGridImport", "non-import storage requires the solar asset to be enabled")
		}
		if expansion && s.EnergyCapacityKWH.Optimize && s.LifespanYears <= 0 {
			return nil, configErrf("storage.lifespanYears", "lifespan is required to annualize investment cost")
		}
	}

	if a.Shiftable.Enabled {
		if a.Shiftable.CurtailKW == nil || a.Shiftable.RecoverKW == nil {
			return nil, configErrf("shiftable", "curtail and recover series are required when shiftable demand is enabled")
		}
		if err := checkSeries("shiftable.curtailKW", a.Shiftable.CurtailKW); err != nil {
			return nil, err
		}
		if err := checkSeries("shiftable.recoverKW", a.Shiftable.RecoverKW); err != nil {
			return nil, err
		}
		for i, v := range a.Shiftable.CurtailKW.Values {
			if v > 0 {
				return nil, configErrf("shiftable.curtailKW", "curtailment capacity must be nonpositive, got %.3f at step %d", v, i)
			}
		}
		for i, v := range a.Shiftable.RecoverKW.Values {
			if v < 0 {
				return nil, configErrf("shiftable.recoverKW", "recovery capacity must be nonnegative, got %.3f at step %d", v, i)
			}
		}
		if a.Shiftable.RecoveryWindowSteps == 0 {
			a.Shiftable.RecoveryWindowSteps = StepsPerDay(intervalMinutes)
			notices = append(notices, "shiftable recovery window defaulted to one day")
		}
		if a.Shiftable.RecoveryWindowSteps < 1 {
			return nil, configErrf("shiftable.recoveryWindowSteps", "must be positive")
		}
	}

	if a.Sheddable.Enabled && a.Sheddable.ValueOfLostLoad <= 0 {
		return nil, configErrf("sheddable.valueOfLostLoad", "a positive value of lost load is required")
	}

	return notices, nil
}

func (c *Capacity) validate(field string, expansion bool) error {
	if c.Optimize {
		if !expansion {
			return configErrf(field, "capacity optimization requires expansion mode")
		}
		if c.Max < 0 {
			return configErrf(field, "capacity upper bound must be nonnegative")
		}
		return nil
	}
	if c.Value <= 0 {
		return configErrf(field, "a positive fixed capacity is required")
	}
	return nil
}
