package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dersolve/dersolve/pkg/storage"
	"github.com/dersolve/dersolve/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) PutScenario(ctx context.Context, id string, scn types.Scenario) error {
	args := m.Called(ctx, id, scn)
	return args.Error(0)
}

func (m *MockDatabase) GetScenario(ctx context.Context, id string) (types.Scenario, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Scenario), args.Error(1)
}

func (m *MockDatabase) ListScenarios(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDatabase) DeleteScenario(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatabase) InsertRun(ctx context.Context, id string, run types.RunResult) error {
	args := m.Called(ctx, id, run)
	return args.Error(0)
}

func (m *MockDatabase) GetRun(ctx context.Context, id string) (types.RunResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.RunResult), args.Error(1)
}

func (m *MockDatabase) ListRuns(ctx context.Context, start, end time.Time) ([]storage.RunSummary, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.RunSummary), args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
