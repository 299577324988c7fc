package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/types"
)

// CompilationError indicates a rate table fails to cover required
// hours/months or a cross-reference between tariff pieces is inconsistent.
// It is fatal and raised during Compile.
type CompilationError struct {
	Reason string
}

func (e *CompilationError) Error() string {
	return "tariff compilation failed: " + e.Reason
}

func compileErrf(format string, args ...any) error {
	return &CompilationError{Reason: fmt.Sprintf(format, args...)}
}

// Profile is the compiled, dense view of a tariff over one scenario year.
// It is produced once per run and shared read-only across all windows.
type Profile struct {
	// EnergyPrice is the resolved $/kWh retail rate per timestep, before the
	// energy scaling multiplier is applied.
	EnergyPrice types.TimeSeries
	// EnergyScale is the per-timestep energy charge multiplier.
	EnergyScale types.TimeSeries
	// SellPrice is the $/kWh NEM export credit rate per timestep. Zero-valued
	// when net metering is disabled.
	SellPrice types.TimeSeries
	// DemandMasks hold one 0/1 indicator series per distinct
	// (category, label, month[, day]) demand-charge period, with rates
	// already scaled.
	DemandMasks []types.DemandMask
	// TieredBands are the consumption bands per month that define tiers.
	TieredBands map[time.Month][]types.TierBand

	NEM      types.NEMSpec
	Customer types.CustomerCharge
}

// HasDemandCharge reports whether any demand-charge period was compiled.
func (p *Profile) HasDemandCharge() bool { return len(p.DemandMasks) > 0 }

// Compile turns a tariff definition into dense per-timestep series for the
// scenario year: energy price, demand-charge indicator masks, NEM sell price,
// tiered band definitions and the scaling series.
func Compile(ctx context.Context, tariff *types.TariffSpec, cfg types.ScenarioConfig) (*Profile, error) {
	ctx = log.WithComponent(ctx, "rates")
	steps := types.ExpectedSteps(cfg.Year, cfg.IntervalMinutes)

	p := &Profile{
		EnergyPrice: types.ZeroSeries(cfg.Year, cfg.IntervalMinutes),
		EnergyScale: types.ZeroSeries(cfg.Year, cfg.IntervalMinutes),
		SellPrice:   types.ZeroSeries(cfg.Year, cfg.IntervalMinutes),
		TieredBands: tariff.TieredRates,
		NEM:         tariff.NEM,
		Customer:    tariff.Customer,
	}

	masks := make(map[string]*types.DemandMask)
	holidays := holidaySet(cfg.Year)

	for i := 0; i < steps; i++ {
		ts := p.EnergyPrice.TimestampAt(i)
		month, hour, day := ts.Month(), ts.Hour(), ts.Day()

		season, err := tariff.SeasonFor(month)
		if err != nil {
			return nil, compileErrf("resolving season: %v", err)
		}
		if season.Energy == nil {
			return nil, compileErrf("season %q has no energy TOU table", season.Name)
		}

		holiday := tariff.HolidayOffPeak && holidays[ts.YearDay()]
		weekend := tariff.WeekendOffPeak && isWeekend(ts)

		// Base season/hour resolution first; holiday and weekend rules are
		// override layers applied afterwards. An override without an explicit
		// table falls back to the season's off-peak rate.
		rate := season.Energy.Hours[hour]
		switch {
		case holiday:
			if season.HolidayEnergy != nil {
				rate = season.HolidayEnergy.Hours[hour]
			} else {
				rate = season.Energy.OffPeak()
			}
		case weekend:
			if season.WeekendEnergy != nil {
				rate = season.WeekendEnergy.Hours[hour]
			} else {
				rate = season.Energy.OffPeak()
			}
		}
		p.EnergyPrice.Values[i] = rate.DollarsPerKWH
		p.EnergyScale.Values[i] = tariff.Scaling.Energy

		// Monthly-max demand applies to every timestep of the month.
		if season.DemandMonthlyMax > 0 {
			markMask(masks, steps, i, types.DemandMask{
				Name:         maskName(types.DemandCategoryMonthlyMax, "max", month, 0),
				Category:     types.DemandCategoryMonthlyMax,
				Month:        month,
				DollarsPerKW: season.DemandMonthlyMax * tariff.Scaling.Demand,
			})
		}

		// TOU demand periods are suspended on override days: the tariff bills
		// those days as off-peak throughout.
		if holiday || weekend {
			continue
		}
		if season.DemandMonthlyTOU != nil {
			if r := season.DemandMonthlyTOU.Hours[hour]; r.Label != "" && r.DollarsPerKW > 0 {
				markMask(masks, steps, i, types.DemandMask{
					Name:         maskName(types.DemandCategoryMonthlyTOU, r.Label, month, 0),
					Category:     types.DemandCategoryMonthlyTOU,
					Month:        month,
					DollarsPerKW: r.DollarsPerKW * tariff.Scaling.TOU,
				})
			}
		}
		if season.DemandDailyTOU != nil {
			if r := season.DemandDailyTOU.Hours[hour]; r.Label != "" && r.DollarsPerKW > 0 {
				markMask(masks, steps, i, types.DemandMask{
					Name:         maskName(types.DemandCategoryDailyTOU, r.Label, month, day),
					Category:     types.DemandCategoryDailyTOU,
					Month:        month,
					Day:          day,
					DollarsPerKW: r.DollarsPerKW * tariff.Scaling.TOU,
				})
			}
		}
	}

	p.DemandMasks = sortedMasks(masks)
	if err := checkMaskExclusivity(p.DemandMasks, steps); err != nil {
		return nil, err
	}

	if tariff.NEM.Enabled() {
		sell, err := compileSellPrice(tariff, cfg, p.EnergyPrice)
		if err != nil {
			return nil, err
		}
		p.SellPrice = sell
	}

	log.Ctx(ctx).InfoContext(ctx, "compiled tariff",
		slog.String("tariff", tariff.Name),
		slog.Int("steps", steps),
		slog.Int("demandPeriods", len(p.DemandMasks)),
		slog.Int("nemVersion", int(tariff.NEM.Version)))

	return p, nil
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func maskName(cat types.DemandChargeCategory, label string, month time.Month, day int) string {
	if day > 0 {
		return fmt.Sprintf("%s/%s/%s/%02d", cat, label, month, day)
	}
	return fmt.Sprintf("%s/%s/%s", cat, label, month)
}

// markMask sets indicator[step]=1 on the named mask, creating the mask on
// first use. Dedup by name guarantees a (category, label, month[, day])
// period is never created twice.
func markMask(masks map[string]*types.DemandMask, steps, step int, proto types.DemandMask) {
	m, ok := masks[proto.Name]
	if !ok {
		proto.Indicator = make([]float64, steps)
		masks[proto.Name] = &proto
		m = &proto
	}
	m.Indicator[step] = 1
}

func sortedMasks(masks map[string]*types.DemandMask) []types.DemandMask {
	names := make([]string, 0, len(masks))
	for n := range masks {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]types.DemandMask, 0, len(names))
	for _, n := range names {
		out = append(out, *masks[n])
	}
	return out
}

// checkMaskExclusivity verifies that within one (category, month, day) group
// no timestep belongs to two periods. Periods must partition, not overlap.
func checkMaskExclusivity(masks []types.DemandMask, steps int) error {
	type groupKey struct {
		cat   types.DemandChargeCategory
		month time.Month
		day   int
	}
	groups := make(map[groupKey][]types.DemandMask)
	for _, m := range masks {
		k := groupKey{m.Category, m.Month, m.Day}
		groups[k] = append(groups[k], m)
	}
	for k, group := range groups {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < steps; i++ {
			var active int
			for _, m := range group {
				if m.Indicator[i] == 1 {
					active++
				}
			}
			if active > 1 {
				return compileErrf("overlapping %s demand periods in %s at step %d", k.cat, k.month, i)
			}
		}
	}
	return nil
}
