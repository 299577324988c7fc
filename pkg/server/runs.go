package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/storage"
	"github.com/dersolve/dersolve/pkg/types"
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	runs, err := s.storage.ListRuns(ctx, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list runs", slog.Any("error", err))
		writeJSONError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []storage.RunSummary{}
	}

	writeJSON(w, struct {
		Runs []storage.RunSummary `json:"runs"`
	}{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	run, err := s.storage.GetRun(ctx, id)
	if errors.Is(err, storage.ErrRunNotFound) {
		writeJSONError(w, "run not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get run",
			slog.String("id", id), slog.Any("error", err))
		writeJSONError(w, "failed to get run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, run)
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := s.storage.ListScenarios(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list scenarios", slog.Any("error", err))
		writeJSONError(w, "failed to list scenarios", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, struct {
		Scenarios []string `json:"scenarios"`
	}{Scenarios: ids})
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	scn, err := s.storage.GetScenario(ctx, id)
	if errors.Is(err, storage.ErrScenarioNotFound) {
		writeJSONError(w, "scenario not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get scenario",
			slog.String("id", id), slog.Any("error", err))
		writeJSONError(w, "failed to get scenario", http.StatusInternalServerError)
		return
	}

	writeJSON(w, scn)
}

func (s *Server) handlePutScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var doc types.Scenario
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	// Validate before storing so stored scenarios are always runnable.
	scn, err := types.NewScenario(ctx, doc.Config, doc.Tariff, doc.Assets)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.PutScenario(ctx, id, *scn); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store scenario",
			slog.String("id", id), slog.Any("error", err))
		writeJSONError(w, "failed to store scenario", http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		ID string `json:"id"`
	}{ID: id})
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	err := s.storage.DeleteScenario(ctx, id)
	if errors.Is(err, storage.ErrScenarioNotFound) {
		writeJSONError(w, "scenario not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete scenario",
			slog.String("id", id), slog.Any("error", err))
		writeJSONError(w, "failed to delete scenario", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" && endStr == "" {
		// Default to the last 30 days if not specified.
		end := time.Now()
		return end.Add(-30 * 24 * time.Hour), end, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	return start, end, nil
}
