package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/types"
)

// FirestoreProvider implements Database using Google Cloud Firestore. Each
// document carries the record as a JSON string in a "json" field plus the
// fields needed for range queries.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// PutScenario creates or replaces a scenario document in the "scenarios"
// collection as a JSON blob.
func (f *FirestoreProvider) PutScenario(ctx context.Context, id string, scn types.Scenario) error {
	if id == "" {
		return fmt.Errorf("scenario id cannot be empty")
	}
	jsonBytes, err := json.Marshal(scn)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario %s: %w", id, err)
	}
	_, err = f.client.Collection("scenarios").Doc(id).Set(ctx, map[string]interface{}{
		"json": string(jsonBytes),
		"name": scn.Config.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to save scenario %s: %w", id, err)
	}
	return nil
}

// GetScenario retrieves a scenario from the "scenarios" collection.
func (f *FirestoreProvider) GetScenario(ctx context.Context, id string) (types.Scenario, error) {
	doc, err := f.client.Collection("scenarios").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
		}
		return types.Scenario{}, fmt.Errorf("failed to get scenario %s: %w", id, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "scenario doc missing json", slog.String("scenarioID", id))
		return types.Scenario{}, fmt.Errorf("scenario %s missing json: %w", id, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "scenario doc json not string", slog.String("scenarioID", id))
		return types.Scenario{}, fmt.Errorf("scenario %s json not string", id)
	}

	var scn types.Scenario
	if err := json.Unmarshal([]byte(jsonStr), &scn); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal scenario", slog.String("scenarioID", id), slog.Any("err", err))
		return types.Scenario{}, fmt.Errorf("failed to unmarshal scenario %s: %w", id, err)
	}
	return scn, nil
}

// ListScenarios retrieves the IDs of all stored scenarios.
func (f *FirestoreProvider) ListScenarios(ctx context.Context) ([]string, error) {
	iter := f.client.Collection("scenarios").Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating scenarios: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

// DeleteScenario removes a scenario document.
func (f *FirestoreProvider) DeleteScenario(ctx context.Context, id string) error {
	_, err := f.client.Collection("scenarios").Doc(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %s: %w", id, err)
	}
	return nil
}

// InsertRun adds a run result to the "runs" collection as a JSON blob. The
// startedAt field is duplicated at the top level for range queries.
func (f *FirestoreProvider) InsertRun(ctx context.Context, id string, run types.RunResult) error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	jsonBytes, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", id, err)
	}
	_, err = f.client.Collection("runs").Doc(id).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"scenario":  run.Scenario,
		"startedAt": run.StartedAt,
		"completed": run.Completed,
		"total":     run.Total,
	})
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", id, err)
	}
	return nil
}

// GetRun retrieves a full run result, including per-timestep rows.
func (f *FirestoreProvider) GetRun(ctx context.Context, id string) (types.RunResult, error) {
	doc, err := f.client.Collection("runs").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.RunResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return types.RunResult{}, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "run doc missing json", slog.String("runID", id))
		return types.RunResult{}, fmt.Errorf("run %s missing json: %w", id, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "run doc json not string", slog.String("runID", id))
		return types.RunResult{}, fmt.Errorf("run %s json not string", id)
	}

	var run types.RunResult
	if err := json.Unmarshal([]byte(jsonStr), &run); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal run", slog.String("runID", id), slog.Any("err", err))
		return types.RunResult{}, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns retrieves summaries of runs started within the given time range.
// Only the duplicated top-level fields are read; the JSON blob stays put.
func (f *FirestoreProvider) ListRuns(ctx context.Context, start, end time.Time) ([]RunSummary, error) {
	iter := f.client.Collection("runs").
		Where("startedAt", ">=", start).
		Where("startedAt", "<", end).
		OrderBy("startedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []RunSummary
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating runs: %w", err)
		}

		s := RunSummary{ID: doc.Ref.ID}
		if v, err := doc.DataAt("scenario"); err == nil {
			s.Scenario, _ = v.(string)
		}
		if v, err := doc.DataAt("startedAt"); err == nil {
			if t, ok := v.(time.Time); ok {
				s.StartedAt = t
			}
		}
		if v, err := doc.DataAt("completed"); err == nil {
			s.Completed, _ = v.(bool)
		}
		if v, err := doc.DataAt("total"); err == nil {
			s.Total, _ = v.(float64)
		}
		out = append(out, s)
	}
	return out, nil
}
