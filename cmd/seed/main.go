// Command seed stores a demo scenario in the configured storage provider so
// the API has something to run against a fresh firestore emulator.
package main

import (
	"context"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/storage"
	"github.com/dersolve/dersolve/pkg/types"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	db := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo scenario")

	const year = 2023
	rng := rand.New(rand.NewSource(1))

	demand := types.ZeroSeries(year, 60)
	solar := types.ZeroSeries(year, 60)
	for i := range demand.Values {
		hour := i % 24
		// Morning and evening residential peaks with a little noise.
		base := 1.2 +
			1.5*math.Exp(-sq(float64(hour)-8)/8) +
			2.5*math.Exp(-sq(float64(hour)-19)/8)
		demand.Values[i] = base + rng.Float64()*0.3

		// Daylight bell curve peaking at solar noon.
		if hour >= 6 && hour <= 18 {
			solar.Values[i] = math.Sin(math.Pi * float64(hour-6) / 12)
		}
	}

	peak := flatHours("off_peak", 0.28)
	for h := 16; h < 21; h++ {
		peak.Hours[h] = types.TOURate{Label: "peak", DollarsPerKWH: 0.52}
	}

	scn, err := types.NewScenario(ctx,
		types.ScenarioConfig{
			Name:            "demo-home",
			Year:            year,
			IntervalMinutes: 60,
			Horizon:         types.HorizonDay,
			Mode:            types.ModeDispatch,
		},
		types.TariffSpec{
			Name: "demo-tou",
			Seasons: []types.Season{{
				Name:   "all",
				Months: allMonths(),
				Energy: peak,
			}},
			NEM: types.NEMSpec{
				Version:                    types.NEMV2,
				NonBypassableDollarsPerKWH: 0.03,
				ApplyRevenueCap:            true,
			},
			WeekendOffPeak: true,
		},
		types.AssetSpecs{
			BaseDemand: &demand,
			Solar: types.SolarSpec{
				Enabled:            true,
				CapacityKW:         types.Capacity{Value: 8},
				CapacityFactor:     &solar,
				InverterEfficiency: 0.97,
				AllowExport:        true,
			},
			Storage: types.StorageSpec{
				Enabled:             true,
				EnergyCapacityKWH:   types.Capacity{Value: 27.2},
				PowerCapacityKW:     types.Capacity{Value: 10},
				ChargeEfficiency:    0.95,
				DischargeEfficiency: 0.95,
				MaxSOCFraction:      1,
				InitialSOCFraction:  0.5,
				AllowGridImport:     true,
			},
		},
	)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build demo scenario", "error", err)
		os.Exit(1)
	}

	if err := db.PutScenario(ctx, "demo-home", *scn); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store demo scenario", "error", err)
		os.Exit(1)
	}
	if err := db.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded demo scenario", "id", "demo-home")
}

func sq(v float64) float64 { return v * v }

func flatHours(label string, rate float64) *types.TOUTable {
	tb := &types.TOUTable{}
	for h := range tb.Hours {
		tb.Hours[h] = types.TOURate{Label: label, DollarsPerKWH: rate}
	}
	return tb
}

func allMonths() []time.Month {
	months := make([]time.Month, 12)
	for i := range months {
		months[i] = time.Month(i + 1)
	}
	return months
}
