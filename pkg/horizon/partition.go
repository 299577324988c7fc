// Package horizon slices a scenario year into optimization windows and
// drives the build/solve/extract loop across them, threading carried state
// (battery charge, prior monthly peaks) from each window into the next.
package horizon

import (
	"time"

	"github.com/dersolve/dersolve/pkg/builder"
	"github.com/dersolve/dersolve/pkg/rates"
	"github.com/dersolve/dersolve/pkg/types"
)

// span is one optimization window's position in the scenario year.
type span struct {
	start, end time.Time
	startStep  int
	steps      int
	days       int
	months     int
}

// windows partitions the scenario year per the configured horizon. Days are
// fixed 24-hour UTC days, so spans are exact slices of the compiled series.
func windows(scn *types.Scenario) []span {
	year := scn.Config.Year
	spd := types.StepsPerDay(scn.Config.IntervalMinutes)
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	switch scn.Config.Horizon {
	case types.HorizonDay:
		days := types.DaysInYear(year)
		out := make([]span, days)
		for d := 0; d < days; d++ {
			start := jan1.Add(time.Duration(d) * 24 * time.Hour)
			months := 0
			if start.Day() == 1 {
				months = 1
			}
			out[d] = span{
				start:     start,
				end:       start.Add(24 * time.Hour),
				startStep: d * spd,
				steps:     spd,
				days:      1,
				months:    months,
			}
		}
		return out

	case types.HorizonMonth:
		out := make([]span, 0, 12)
		startStep := 0
		for m := time.January; m <= time.December; m++ {
			first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
			next := time.Date(year, m+1, 1, 0, 0, 0, 0, time.UTC)
			days := int(next.Sub(first).Hours() / 24)
			out = append(out, span{
				start:     first,
				end:       next,
				startStep: startStep,
				steps:     days * spd,
				days:      days,
				months:    1,
			})
			startStep += days * spd
		}
		return out

	default:
		days := types.DaysInYear(year)
		return []span{{
			start:     jan1,
			end:       jan1.AddDate(1, 0, 0),
			startStep: 0,
			steps:     days * spd,
			days:      days,
			months:    12,
		}}
	}
}

// WindowState is the carried-forward scalar state threaded through the
// sequential window loop. It is a value, copied forward each iteration.
type WindowState struct {
	// SOCFraction is the battery state of charge entering the window.
	SOCFraction float64
	// PriorPeaks maps demand-period names to the highest peak observed so
	// far in the current billing month. Only populated on the DAY horizon.
	PriorPeaks map[string]float64
	// Month is the billing month PriorPeaks belongs to.
	Month time.Month
}

func initialState(scn *types.Scenario) WindowState {
	return WindowState{
		SOCFraction: scn.Assets.Storage.InitialSOCFraction,
		PriorPeaks:  make(map[string]float64),
		Month:       time.January,
	}
}

// buildSets assembles the immutable window snapshot consumed by the model
// builder: every relevant series sliced to the span, the demand periods
// active in it, and the carried-forward state.
func buildSets(scn *types.Scenario, p *rates.Profile, sp span, state WindowState) *builder.Sets {
	lo := sp.startStep

	s := &builder.Sets{
		Start:       sp.start,
		End:         sp.end,
		StartStep:   sp.startStep,
		Steps:       sp.steps,
		StepHours:   p.EnergyPrice.StepHours(),
		BaseDemand:  scn.Assets.BaseDemand.Slice(lo, sp.steps),
		EnergyPrice: p.EnergyPrice.Slice(lo, sp.steps),
		EnergyScale: p.EnergyScale.Slice(lo, sp.steps),
		SellPrice:   p.SellPrice.Slice(lo, sp.steps),
		NEM:         p.NEM,
		Customer:    p.Customer,
		Days:        sp.days,
		Months:      sp.months,
		SingleDay:   scn.Config.Horizon == types.HorizonDay,

		InitialSOCFraction: state.SOCFraction,
		Scenario:           scn,
	}

	if scn.Assets.Solar.Enabled {
		s.CapacityFactor = scn.Assets.Solar.CapacityFactor.Slice(lo, sp.steps)
	}
	if scn.Assets.Shiftable.Enabled {
		s.CurtailKW = scn.Assets.Shiftable.CurtailKW.Slice(lo, sp.steps)
		s.RecoverKW = scn.Assets.Shiftable.RecoverKW.Slice(lo, sp.steps)
	}

	s.MonthSteps = make(map[time.Month][]int)
	for t := 0; t < sp.steps; t++ {
		m := p.EnergyPrice.TimestampAt(lo + t).Month()
		s.MonthSteps[m] = append(s.MonthSteps[m], t)
	}

	if len(p.TieredBands) > 0 {
		s.TieredBands = make(map[time.Month][]types.TierBand)
		for m := range s.MonthSteps {
			if bands, ok := p.TieredBands[m]; ok {
				s.TieredBands[m] = bands
			}
		}
	}

	for _, mask := range p.DemandMasks {
		window := mask.Indicator[lo : lo+sp.steps]
		active := false
		for _, v := range window {
			if v == 1 {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		s.DemandPeriods = append(s.DemandPeriods, builder.DemandPeriod{
			Name:         mask.Name,
			Category:     mask.Category,
			Month:        mask.Month,
			DollarsPerKW: mask.DollarsPerKW,
			Mask:         window,
			PriorPeakKW:  state.PriorPeaks[mask.Name],
		})
	}

	return s
}
