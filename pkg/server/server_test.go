package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dersolve/dersolve/pkg/lp"
	"github.com/dersolve/dersolve/pkg/solver"
	"github.com/dersolve/dersolve/pkg/storage"
	"github.com/dersolve/dersolve/pkg/storage/storagemock"
	"github.com/dersolve/dersolve/pkg/sweep"
	"github.com/dersolve/dersolve/pkg/types"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	reg := solver.NewRegistry()
	reg.Register(solver.NewSimplex())
	srv := &Server{
		solvers:    reg,
		storage:    storage.NewMemory(),
		listenAddr: ":0",
	}
	return srv, srv.setupHandler()
}

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

// apiScenario builds a validated flat-rate scenario with constant demand and
// an optional fixed solar array.
func apiScenario(t *testing.T, solarKW float64) *types.Scenario {
	t.Helper()
	months := make([]time.Month, 12)
	for i := range months {
		months[i] = time.Month(i + 1)
	}
	assets := types.AssetSpecs{BaseDemand: constSeries(2023, 5)}
	if solarKW > 0 {
		assets.Solar = types.SolarSpec{
			Enabled:            true,
			CapacityKW:         types.Capacity{Value: solarKW},
			CapacityFactor:     constSeries(2023, 0.5),
			InverterEfficiency: 1,
		}
	}
	scn, err := types.NewScenario(context.Background(),
		types.ScenarioConfig{
			Name:            "api-test",
			Year:            2023,
			IntervalMinutes: 60,
			Horizon:         types.HorizonDay,
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
		assets,
	)
	require.NoError(t, err)
	return scn
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(t)
	w := getJSON(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestListBackends(t *testing.T) {
	_, h := newTestServer(t)
	var resp struct {
		Backends []string `json:"backends"`
	}
	w := getJSON(t, h, "/api/list/backends", &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, resp.Backends, "simplex")
}

func TestOptimizeInlineScenario(t *testing.T) {
	_, h := newTestServer(t)

	w := postJSON(t, h, "/api/optimize", map[string]any{
		"scenario": apiScenario(t, 0),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		ID     string          `json:"id"`
		Result types.RunResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.True(t, resp.Result.Completed)
	assert.InDelta(t, 8760*5*0.2, resp.Result.Total, 1e-6)

	// The run is stored and retrievable.
	var stored types.RunResult
	wr := getJSON(t, h, "/api/runs/"+resp.ID, &stored)
	require.Equal(t, http.StatusOK, wr.Code)
	assert.InDelta(t, resp.Result.Total, stored.Total, 1e-9)

	var list struct {
		Runs []storage.RunSummary `json:"runs"`
	}
	wl := getJSON(t, h, "/api/runs", &list)
	require.Equal(t, http.StatusOK, wl.Code)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, resp.ID, list.Runs[0].ID)
}

func TestOptimizeRequiresScenario(t *testing.T) {
	_, h := newTestServer(t)
	w := postJSON(t, h, "/api/optimize", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOptimizeUnknownBackend(t *testing.T) {
	_, h := newTestServer(t)
	scn := apiScenario(t, 0)
	scn.Config.Backend = "cplex"
	w := postJSON(t, h, "/api/optimize", map[string]any{"scenario": scn})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown solver backend")
}

func TestOptimizeUnknownScenarioID(t *testing.T) {
	_, h := newTestServer(t)
	w := postJSON(t, h, "/api/optimize", map[string]any{"scenarioID": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// infeasibleBackend reports every model as infeasible.
type infeasibleBackend struct{}

func (infeasibleBackend) Name() string { return "infeasible" }

func (b infeasibleBackend) Solve(ctx context.Context, m *lp.Model) (solver.Result, error) {
	return solver.Result{Status: solver.StatusInfeasible},
		&solver.SolveError{Backend: b.Name(), Status: solver.StatusInfeasible}
}

func TestOptimizeSolveFailureStoresPartialRun(t *testing.T) {
	srv, h := newTestServer(t)
	srv.solvers.Register(infeasibleBackend{})

	scn := apiScenario(t, 0)
	scn.Config.Backend = "infeasible"
	w := postJSON(t, h, "/api/optimize", map[string]any{"scenario": scn})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		ID     string          `json:"id"`
		Result types.RunResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Result.Completed)
	assert.NotEmpty(t, resp.Result.Failure)

	var stored types.RunResult
	wr := getJSON(t, h, "/api/runs/"+resp.ID, &stored)
	require.Equal(t, http.StatusOK, wr.Code)
	assert.False(t, stored.Completed)
}

func TestScenarioCRUD(t *testing.T) {
	_, h := newTestServer(t)
	scn := apiScenario(t, 0)

	// Store.
	b, err := json.Marshal(scn)
	require.NoError(t, err)
	req := httptest.NewRequest("PUT", "/api/scenarios/base", bytes.NewReader(b))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// List.
	var list struct {
		Scenarios []string `json:"scenarios"`
	}
	wl := getJSON(t, h, "/api/scenarios", &list)
	require.Equal(t, http.StatusOK, wl.Code)
	assert.Equal(t, []string{"base"}, list.Scenarios)

	// Fetch.
	var fetched types.Scenario
	wf := getJSON(t, h, "/api/scenarios/base", &fetched)
	require.Equal(t, http.StatusOK, wf.Code)
	assert.Equal(t, "api-test", fetched.Config.Name)

	// Optimize by reference.
	wo := postJSON(t, h, "/api/optimize", map[string]any{"scenarioID": "base"})
	require.Equal(t, http.StatusOK, wo.Code, wo.Body.String())

	// Delete.
	req = httptest.NewRequest("DELETE", "/api/scenarios/base", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	wf = getJSON(t, h, "/api/scenarios/base", nil)
	assert.Equal(t, http.StatusNotFound, wf.Code)
}

func TestPutScenarioRejectsInvalid(t *testing.T) {
	_, h := newTestServer(t)
	scn := apiScenario(t, 0)
	scn.Config.Year = 0

	b, err := json.Marshal(scn)
	require.NoError(t, err)
	req := httptest.NewRequest("PUT", "/api/scenarios/bad", bytes.NewReader(b))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	w := postJSON(t, h, "/api/sweep", map[string]any{
		"scenario":    apiScenario(t, 4),
		"parameter":   sweep.ParamSolarCapacityKW,
		"values":      []float64{0, 4},
		"parallelism": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Outcomes []sweep.Outcome `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Outcomes, 2)

	// A 4 kW array at 0.5 capacity factor offsets 2 kW of the 5 kW load.
	assert.InDelta(t, 8760*5*0.2, resp.Outcomes[0].Result.Total, 1e-6)
	assert.InDelta(t, 8760*3*0.2, resp.Outcomes[1].Result.Total, 1e-6)
}

func TestSweepUnknownParameter(t *testing.T) {
	_, h := newTestServer(t)
	w := postJSON(t, h, "/api/sweep", map[string]any{
		"scenario":  apiScenario(t, 0),
		"parameter": "grid_frequency",
		"values":    []float64{1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown sweep parameter")
}

func TestListRunsRejectsBadRange(t *testing.T) {
	_, h := newTestServer(t)
	w := getJSON(t, h, fmt.Sprintf("/api/runs?start=%s&end=%s",
		"2023-02-01T00:00:00Z", "2023-01-01T00:00:00Z"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStorageFailuresReturn500(t *testing.T) {
	db := &storagemock.MockDatabase{}
	reg := solver.NewRegistry()
	reg.Register(solver.NewSimplex())
	srv := &Server{solvers: reg, storage: db, listenAddr: ":0"}
	h := srv.setupHandler()

	db.On("ListRuns", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("firestore unavailable"))
	w := getJSON(t, h, "/api/runs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	db.On("InsertRun", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("firestore unavailable"))
	wo := postJSON(t, h, "/api/optimize", map[string]any{
		"scenario": apiScenario(t, 0),
	})
	assert.Equal(t, http.StatusInternalServerError, wo.Code)

	db.AssertExpectations(t)
}
