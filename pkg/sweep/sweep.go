// Package sweep runs sensitivity analyses: the same scenario solved
// repeatedly with one parameter varied, as a parallel map with no shared
// mutable state between variations.
package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dersolve/dersolve/pkg/horizon"
	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/solver"
	"github.com/dersolve/dersolve/pkg/types"
)

// Parameter names the scenario field a sweep varies.
type Parameter string

const (
	ParamSolarCapacityKW     Parameter = "solar_capacity_kw"
	ParamStorageEnergyKWH    Parameter = "storage_energy_kwh"
	ParamStoragePowerKW      Parameter = "storage_power_kw"
	ParamShedValueOfLostLoad Parameter = "shed_value_of_lost_load"
)

// Request describes one sweep: the parameter and the values to try.
type Request struct {
	Parameter Parameter `json:"parameter"`
	Values    []float64 `json:"values"`
	// Parallelism bounds concurrent solves; zero means unbounded.
	Parallelism int `json:"parallelism,omitempty"`
}

// Outcome is one variation's result. A variation whose window fails to solve
// records the failure here without aborting its siblings.
type Outcome struct {
	Value  float64          `json:"value"`
	Result *types.RunResult `json:"result"`
	Error  string           `json:"error,omitempty"`
}

// Run solves one variation per value, each against its own deep copy of the
// scenario and its own orchestrator. Configuration and compilation errors
// abort the sweep; solve failures are recorded per outcome.
func Run(ctx context.Context, scn *types.Scenario, req Request, backend solver.Backend) ([]Outcome, error) {
	ctx = log.WithComponent(ctx, "sweep")
	if len(req.Values) == 0 {
		return nil, fmt.Errorf("sweep requires at least one value")
	}

	log.Ctx(ctx).InfoContext(ctx, "starting sweep",
		slog.String("parameter", string(req.Parameter)),
		slog.Int("variations", len(req.Values)))

	outcomes := make([]Outcome, len(req.Values))
	g, gctx := errgroup.WithContext(ctx)
	if req.Parallelism > 0 {
		g.SetLimit(req.Parallelism)
	}

	for i, v := range req.Values {
		g.Go(func() error {
			variant, err := cloneScenario(scn)
			if err != nil {
				return err
			}
			if err := apply(variant, req.Parameter, v); err != nil {
				return err
			}

			outcomes[i].Value = v
			result, err := horizon.New(backend).Run(gctx, variant)
			outcomes[i].Result = result
			if err != nil {
				var serr *solver.SolveError
				if errors.As(err, &serr) {
					outcomes[i].Error = err.Error()
					return nil
				}
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// cloneScenario deep-copies via JSON so variations never share series slices.
func cloneScenario(scn *types.Scenario) (*types.Scenario, error) {
	b, err := json.Marshal(scn)
	if err != nil {
		return nil, fmt.Errorf("failed to clone scenario: %w", err)
	}
	var out types.Scenario
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to clone scenario: %w", err)
	}
	return &out, nil
}

// apply sets the swept parameter. A zero capacity disables the asset rather
// than producing an invalid zero-sized one.
func apply(scn *types.Scenario, p Parameter, v float64) error {
	switch p {
	case ParamSolarCapacityKW:
		if v <= 0 {
			scn.Assets.Solar.Enabled = false
			return nil
		}
		scn.Assets.Solar.CapacityKW.Value = v
	case ParamStorageEnergyKWH:
		if v <= 0 {
			scn.Assets.Storage.Enabled = false
			return nil
		}
		scn.Assets.Storage.EnergyCapacityKWH.Value = v
	case ParamStoragePowerKW:
		if v <= 0 {
			scn.Assets.Storage.Enabled = false
			return nil
		}
		scn.Assets.Storage.PowerCapacityKW.Value = v
	case ParamShedValueOfLostLoad:
		scn.Assets.Sheddable.ValueOfLostLoad = v
	default:
		return fmt.Errorf("unknown sweep parameter: %s", p)
	}
	return nil
}
