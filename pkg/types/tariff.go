package types

import (
	"fmt"
	"math"
	"time"
)

// TOURate is a single hour's price and the name of the time-of-use period the
// hour belongs to (e.g. "peak", "off_peak").
type TOURate struct {
	Label         string  `json:"label" yaml:"label"`
	DollarsPerKWH float64 `json:"dollarsPerKWH" yaml:"dollars_per_kwh"`
}

// TOUTable maps hour-of-day 0..23 to a rate and period label.
type TOUTable struct {
	Hours [24]TOURate `json:"hours" yaml:"hours"`
}

// OffPeak returns the lowest-rate entry in the table. It is the fallback rate
// applied on weekends/holidays when no explicit override table is supplied.
func (t *TOUTable) OffPeak() TOURate {
	best := t.Hours[0]
	for _, r := range t.Hours[1:] {
		if r.DollarsPerKWH < best.DollarsPerKWH {
			best = r
		}
	}
	return best
}

// Labels returns the distinct period labels in hour order of first appearance.
func (t *TOUTable) Labels() []string {
	var labels []string
	seen := make(map[string]bool)
	for _, r := range t.Hours {
		if r.Label != "" && !seen[r.Label] {
			seen[r.Label] = true
			labels = append(labels, r.Label)
		}
	}
	return labels
}

// DemandTOUTable maps hour-of-day 0..23 to a demand rate ($/kW) and period
// label. Hours with a zero rate and empty label are outside every period.
type DemandTOUTable struct {
	Hours [24]DemandRate `json:"hours" yaml:"hours"`
}

// DemandRate is a single hour's demand-charge rate and period label.
type DemandRate struct {
	Label        string  `json:"label" yaml:"label"`
	DollarsPerKW float64 `json:"dollarsPerKW" yaml:"dollars_per_kw"`
}

// Season defines the rate tables that apply during a set of months.
type Season struct {
	Name   string       `json:"name" yaml:"name"`
	Months []time.Month `json:"months" yaml:"months"`

	// Energy is the required base TOU table for the season.
	Energy *TOUTable `json:"energy" yaml:"energy"`
	// WeekendEnergy and HolidayEnergy are optional override tables applied
	// after the base resolution. When absent, weekend/holiday overrides fall
	// back to the season's off-peak rate.
	WeekendEnergy *TOUTable `json:"weekendEnergy,omitempty" yaml:"weekend_energy"`
	HolidayEnergy *TOUTable `json:"holidayEnergy,omitempty" yaml:"holiday_energy"`

	// DemandMonthlyMax is a flat $/kW rate applied to the monthly peak
	// regardless of hour. Zero means no monthly-max charge.
	DemandMonthlyMax float64 `json:"demandMonthlyMax,omitempty" yaml:"demand_monthly_max"`
	// DemandMonthlyTOU charges the monthly peak within each labeled period.
	DemandMonthlyTOU *DemandTOUTable `json:"demandMonthlyTOU,omitempty" yaml:"demand_monthly_tou"`
	// DemandDailyTOU charges the daily peak within each labeled period.
	DemandDailyTOU *DemandTOUTable `json:"demandDailyTOU,omitempty" yaml:"demand_daily_tou"`
}

// TierBand is one band of a tiered (inclining block) energy rate. UpperKWH of
// +Inf (or 0 on the last band) means unbounded.
type TierBand struct {
	LowerKWH      float64 `json:"lowerKWH" yaml:"lower_kwh"`
	UpperKWH      float64 `json:"upperKWH" yaml:"upper_kwh"`
	DollarsPerKWH float64 `json:"dollarsPerKWH" yaml:"dollars_per_kwh"`
}

// Unbounded reports whether the band has no upper consumption limit.
func (b TierBand) Unbounded() bool {
	return b.UpperKWH <= 0 || math.IsInf(b.UpperKWH, 1)
}

// NEMVersion selects the net-metering sell-price derivation.
type NEMVersion int

const (
	NEMDisabled NEMVersion = 0
	// NEMV1 credits exports at the full retail energy price.
	NEMV1 NEMVersion = 1
	// NEMV2 credits exports at the retail price minus the non-bypassable charge.
	NEMV2 NEMVersion = 2
	// NEMV3 credits exports at an externally supplied avoided-cost rate minus
	// the non-bypassable charge.
	NEMV3 NEMVersion = 3
)

// NEMSpec configures the net-energy-metering program.
type NEMSpec struct {
	Version NEMVersion `json:"version" yaml:"version"`
	// NonBypassableDollarsPerKWH is the charge that cannot be offset by
	// exports. Required for versions 2 and 3.
	NonBypassableDollarsPerKWH float64 `json:"nonBypassableDollarsPerKWH" yaml:"non_bypassable_dollars_per_kwh"`
	// AvoidedCost is the externally supplied $/kWh series. Required for v3.
	AvoidedCost *TimeSeries `json:"avoidedCost,omitempty" yaml:"avoided_cost"`
	// AverageAvoidedCost averages the avoided-cost series by
	// (month, hour, weekday-vs-weekend/holiday) before use.
	AverageAvoidedCost bool `json:"averageAvoidedCost" yaml:"average_avoided_cost"`
	// ApplyRevenueCap limits export credits to the energy charge net of
	// non-bypassable charges so exports can never drive the bill negative.
	ApplyRevenueCap bool `json:"applyRevenueCap" yaml:"apply_revenue_cap"`
}

// Enabled reports whether any net-metering program is active.
func (n NEMSpec) Enabled() bool { return n.Version != NEMDisabled }

// ChargeScaling holds multipliers applied to each charge family. Zero values
// default to 1 during validation.
type ChargeScaling struct {
	Energy float64 `json:"energy" yaml:"energy"`
	Demand float64 `json:"demand" yaml:"demand"`
	TOU    float64 `json:"tou" yaml:"tou"`
}

// CustomerCharge holds flat fees independent of consumption.
type CustomerCharge struct {
	DailyDollars   float64 `json:"dailyDollars" yaml:"daily_dollars"`
	MonthlyDollars float64 `json:"monthlyDollars" yaml:"monthly_dollars"`
}

// TariffSpec is the canonical tariff definition. It is read-only for the
// lifetime of a run.
type TariffSpec struct {
	Name string `json:"name" yaml:"name"`

	// SeasonalMonthSplit indicates Seasons partition the twelve months. When
	// false, exactly one season must be supplied and it covers all months.
	SeasonalMonthSplit bool     `json:"seasonalMonthSplit" yaml:"seasonal_month_split"`
	Seasons            []Season `json:"seasons" yaml:"seasons"`

	// TieredRates, when present for a month, replace the flat TOU energy
	// charge for that month with inclining consumption bands.
	TieredRates map[time.Month][]TierBand `json:"tieredRates,omitempty" yaml:"tiered_rates"`

	NEM NEMSpec `json:"nem" yaml:"nem"`

	// WeekendOffPeak and HolidayOffPeak enable the override layers applied
	// after base season/hour resolution.
	WeekendOffPeak bool `json:"weekendOffPeak" yaml:"weekend_off_peak"`
	HolidayOffPeak bool `json:"holidayOffPeak" yaml:"holiday_off_peak"`

	Scaling  ChargeScaling  `json:"scaling" yaml:"scaling"`
	Customer CustomerCharge `json:"customer" yaml:"customer"`
}

// SeasonFor returns the season covering the given month.
func (t *TariffSpec) SeasonFor(m time.Month) (*Season, error) {
	if !t.SeasonalMonthSplit {
		if len(t.Seasons) == 0 {
			return nil, configErrf("seasons", "no seasons defined")
		}
		return &t.Seasons[0], nil
	}
	for i := range t.Seasons {
		for _, sm := range t.Seasons[i].Months {
			if sm == m {
				return &t.Seasons[i], nil
			}
		}
	}
	return nil, configErrf("seasons", "no season covers month %s", m)
}

// Validate checks the tariff and applies defaults in the same pass. It
// returns the notices for any defaults taken so the caller can log them.
func (t *TariffSpec) Validate(year, intervalMinutes int) ([]string, error) {
	var notices []string

	if len(t.Seasons) == 0 {
		return nil, configErrf("seasons", "at least one season is required")
	}
	if t.SeasonalMonthSplit {
		covered := make(map[time.Month]string)
		for _, s := range t.Seasons {
			if len(s.Months) == 0 {
				return nil, configErrf("seasons", "season %q covers no months", s.Name)
			}
			for _, m := range s.Months {
				if m < time.January || m > time.December {
					return nil, configErrf("seasons", "season %q has invalid month %d", s.Name, m)
				}
				if prev, ok := covered[m]; ok {
					return nil, configErrf("seasons", "month %s covered by both %q and %q", m, prev, s.Name)
				}
				covered[m] = s.Name
			}
		}
		if len(covered) != 12 {
			return nil, configErrf("seasons", "seasons cover %d of 12 months", len(covered))
		}
	} else if len(t.Seasons) != 1 {
		return nil, configErrf("seasons", "exactly one base season required when seasonal_month_split is false, got %d", len(t.Seasons))
	}

	for i := range t.Seasons {
		if t.Seasons[i].Energy == nil {
			return nil, configErrf("seasons", "season %q has no energy TOU table (no energy charge defined)", t.Seasons[i].Name)
		}
	}

	for m, bands := range t.TieredRates {
		if len(bands) == 0 {
			return nil, configErrf("tieredRates", "month %s has an empty tier list", m)
		}
		prev := 0.0
		for i, b := range bands {
			if b.LowerKWH != prev {
				return nil, configErrf("tieredRates", "month %s tier %d lower bound %.2f does not continue from %.2f", m, i, b.LowerKWH, prev)
			}
			if i < len(bands)-1 {
				if b.Unbounded() {
					return nil, configErrf("tieredRates", "month %s tier %d is unbounded but is not the last tier", m, i)
				}
				if b.UpperKWH <= b.LowerKWH {
					return nil, configErrf("tieredRates", "month %s tier %d upper bound %.2f not above lower bound %.2f", m, i, b.UpperKWH, b.LowerKWH)
				}
				prev = b.UpperKWH
			}
		}
	}

	switch t.NEM.Version {
	case NEMDisabled, NEMV1:
	case NEMV2:
		if t.NEM.NonBypassableDollarsPerKWH <= 0 {
			return nil, configErrf("nem", "NEM v2 requires a non-bypassable charge")
		}
	case NEMV3:
		if t.NEM.AvoidedCost == nil {
			return nil, configErrf("nem", "NEM v3 requires an avoided-cost series")
		}
		if t.NEM.AvoidedCost.Year != year || t.NEM.AvoidedCost.IntervalMinutes != intervalMinutes {
			return nil, configErrf("nem", "avoided-cost series must match scenario year %d and interval %d", year, intervalMinutes)
		}
		if want := ExpectedSteps(year, intervalMinutes); t.NEM.AvoidedCost.Len() != want {
			return nil, configErrf("nem", "avoided-cost series has %d values, expected %d", t.NEM.AvoidedCost.Len(), want)
		}
	default:
		return nil, configErrf("nem", "unknown NEM version %d", t.NEM.Version)
	}

	if t.Scaling.Energy == 0 {
		t.Scaling.Energy = 1
		notices = append(notices, "tariff scaling.energy defaulted to 1")
	}
	if t.Scaling.Demand == 0 {
		t.Scaling.Demand = 1
		notices = append(notices, "tariff scaling.demand defaulted to 1")
	}
	if t.Scaling.TOU == 0 {
		t.Scaling.TOU = 1
		notices = append(notices, "tariff scaling.tou defaulted to 1")
	}
	if t.Scaling.Energy < 0 || t.Scaling.Demand < 0 || t.Scaling.TOU < 0 {
		return nil, configErrf("scaling", "scaling multipliers must be nonnegative")
	}
	if t.Customer.DailyDollars < 0 || t.Customer.MonthlyDollars < 0 {
		return nil, configErrf("customer", "customer charges must be nonnegative")
	}

	return notices, nil
}

// String implements fmt.Stringer for logging.
func (t *TariffSpec) String() string {
	return fmt.Sprintf("tariff %q (%d seasons, nem v%d)", t.Name, len(t.Seasons), t.NEM.Version)
}
