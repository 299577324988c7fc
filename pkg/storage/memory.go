package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dersolve/dersolve/pkg/types"
)

// Memory is an in-process Database for local runs and tests. Records are
// stored as JSON so reads return independent copies, matching the firestore
// provider's round-trip semantics.
type Memory struct {
	mu        sync.Mutex
	scenarios map[string][]byte
	runs      map[string][]byte
	summaries map[string]RunSummary
}

var _ Database = (*Memory)(nil)

// NewMemory returns an empty in-memory Database.
func NewMemory() *Memory {
	return &Memory{
		scenarios: make(map[string][]byte),
		runs:      make(map[string][]byte),
		summaries: make(map[string]RunSummary),
	}
}

func (m *Memory) PutScenario(_ context.Context, id string, scn types.Scenario) error {
	if id == "" {
		return fmt.Errorf("scenario id cannot be empty")
	}
	b, err := json.Marshal(scn)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[id] = b
	return nil
}

func (m *Memory) GetScenario(_ context.Context, id string) (types.Scenario, error) {
	m.mu.Lock()
	b, ok := m.scenarios[id]
	m.mu.Unlock()
	if !ok {
		return types.Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	var scn types.Scenario
	if err := json.Unmarshal(b, &scn); err != nil {
		return types.Scenario{}, fmt.Errorf("failed to unmarshal scenario %s: %w", id, err)
	}
	return scn, nil
}

func (m *Memory) ListScenarios(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.scenarios))
	for id := range m.scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) DeleteScenario(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scenarios, id)
	return nil
}

func (m *Memory) InsertRun(_ context.Context, id string, run types.RunResult) error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id] = b
	m.summaries[id] = RunSummary{
		ID:        id,
		Scenario:  run.Scenario,
		StartedAt: run.StartedAt,
		Completed: run.Completed,
		Total:     run.Total,
	}
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (types.RunResult, error) {
	m.mu.Lock()
	b, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return types.RunResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	var run types.RunResult
	if err := json.Unmarshal(b, &run); err != nil {
		return types.RunResult{}, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}
	return run, nil
}

func (m *Memory) ListRuns(_ context.Context, start, end time.Time) ([]RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RunSummary
	for _, s := range m.summaries {
		if s.StartedAt.Before(start) || !s.StartedAt.Before(end) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *Memory) Close() error { return nil }
