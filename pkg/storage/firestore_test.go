package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dersolve/dersolve/pkg/types"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a test project ID and a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("Scenarios", func(t *testing.T) {
		scn := types.Scenario{
			Config: types.ScenarioConfig{Name: "test-site", Year: 2023, IntervalMinutes: 60},
		}
		require.NoError(t, f.PutScenario(ctx, "test-site", scn))

		got, err := f.GetScenario(ctx, "test-site")
		require.NoError(t, err)
		assert.Equal(t, "test-site", got.Config.Name)
		assert.Equal(t, 2023, got.Config.Year)

		_, err = f.GetScenario(ctx, "missing")
		assert.ErrorIs(t, err, ErrScenarioNotFound)

		ids, err := f.ListScenarios(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "test-site")

		require.NoError(t, f.DeleteScenario(ctx, "test-site"))
		_, err = f.GetScenario(ctx, "test-site")
		assert.ErrorIs(t, err, ErrScenarioNotFound)
	})

	t.Run("Runs", func(t *testing.T) {
		started := time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)
		run := types.RunResult{
			Scenario:  "test-site",
			StartedAt: started,
			Total:     1234.5,
			Completed: true,
			Costs:     map[string]float64{types.CostEnergy: 1234.5},
		}
		require.NoError(t, f.InsertRun(ctx, "run-1", run))

		got, err := f.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, 1234.5, got.Total)
		assert.True(t, got.Completed)

		_, err = f.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, ErrRunNotFound)

		list, err := f.ListRuns(ctx, started.Add(-time.Hour), started.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "run-1", list[0].ID)
		assert.Equal(t, "test-site", list[0].Scenario)
		assert.Equal(t, 1234.5, list[0].Total)

		list, err = f.ListRuns(ctx, started.Add(time.Hour), started.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
