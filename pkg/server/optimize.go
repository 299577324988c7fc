package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dersolve/dersolve/pkg/horizon"
	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/rates"
	"github.com/dersolve/dersolve/pkg/solver"
	"github.com/dersolve/dersolve/pkg/sweep"
	"github.com/dersolve/dersolve/pkg/types"
)

// scenarioRequest selects the scenario for an optimize or sweep call: either
// a stored scenario by ID or an inline document, never both.
type scenarioRequest struct {
	ScenarioID string          `json:"scenarioID,omitempty"`
	Scenario   *types.Scenario `json:"scenario,omitempty"`
}

// resolveScenario loads or validates the request's scenario. Inline scenarios
// are re-validated so a hand-built document goes through the same checks as a
// stored one.
func (s *Server) resolveScenario(ctx context.Context, req scenarioRequest) (*types.Scenario, int, error) {
	switch {
	case req.ScenarioID != "" && req.Scenario != nil:
		return nil, http.StatusBadRequest, errors.New("scenarioID and scenario are mutually exclusive")
	case req.ScenarioID != "":
		scn, err := s.storage.GetScenario(ctx, req.ScenarioID)
		if err != nil {
			return nil, http.StatusNotFound, err
		}
		return &scn, 0, nil
	case req.Scenario != nil:
		scn, err := types.NewScenario(ctx, req.Scenario.Config, req.Scenario.Tariff, req.Scenario.Assets)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		return scn, 0, nil
	default:
		return nil, http.StatusBadRequest, errors.New("scenarioID or scenario is required")
	}
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	scn, code, err := s.resolveScenario(ctx, req)
	if err != nil {
		writeJSONError(w, err.Error(), code)
		return
	}

	backend, err := s.solvers.Backend(scn.Config.Backend)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := horizon.New(backend).Run(ctx, scn)
	if err != nil && !isSolveFailure(err) {
		code := http.StatusInternalServerError
		if isScenarioError(err) {
			code = http.StatusBadRequest
		} else {
			log.Ctx(ctx).ErrorContext(ctx, "optimization failed",
				slog.String("scenario", scn.Config.Name), slog.Any("error", err))
		}
		writeJSONError(w, err.Error(), code)
		return
	}

	// A solve failure is a result, not a request error: the partial run is
	// persisted with Completed=false.
	id, err := newRunID()
	if err != nil {
		writeJSONError(w, "failed to generate run id", http.StatusInternalServerError)
		return
	}
	if err := s.storage.InsertRun(ctx, id, *result); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store run",
			slog.String("id", id), slog.Any("error", err))
		writeJSONError(w, "failed to store run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		ID     string           `json:"id"`
		Result *types.RunResult `json:"result"`
	}{ID: id, Result: result})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		scenarioRequest
		sweep.Request
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	switch req.Parameter {
	case sweep.ParamSolarCapacityKW, sweep.ParamStorageEnergyKWH,
		sweep.ParamStoragePowerKW, sweep.ParamShedValueOfLostLoad:
	default:
		writeJSONError(w, "unknown sweep parameter: "+string(req.Parameter), http.StatusBadRequest)
		return
	}
	if len(req.Values) == 0 {
		writeJSONError(w, "sweep requires at least one value", http.StatusBadRequest)
		return
	}

	scn, code, err := s.resolveScenario(ctx, req.scenarioRequest)
	if err != nil {
		writeJSONError(w, err.Error(), code)
		return
	}

	backend, err := s.solvers.Backend(scn.Config.Backend)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcomes, err := sweep.Run(ctx, scn, req.Request, backend)
	if err != nil {
		code := http.StatusInternalServerError
		if isScenarioError(err) {
			code = http.StatusBadRequest
		} else {
			log.Ctx(ctx).ErrorContext(ctx, "sweep failed",
				slog.String("scenario", scn.Config.Name), slog.Any("error", err))
		}
		writeJSONError(w, err.Error(), code)
		return
	}

	writeJSON(w, struct {
		Outcomes []sweep.Outcome `json:"outcomes"`
	}{Outcomes: outcomes})
}

// isSolveFailure reports whether the error is an infeasible/unbounded solve
// rather than a broken request or backend fault.
func isSolveFailure(err error) bool {
	var serr *solver.SolveError
	return errors.As(err, &serr)
}

// isScenarioError reports whether the error stems from the scenario contents.
func isScenarioError(err error) bool {
	var cfgErr *types.ConfigurationError
	var compErr *rates.CompilationError
	return errors.As(err, &cfgErr) || errors.As(err, &compErr)
}

func newRunID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
