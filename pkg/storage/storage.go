// Package storage persists scenarios and run results behind a provider
// interface. The firestore provider is the production backend; the memory
// provider serves local runs and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/dersolve/dersolve/pkg/types"
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrRunNotFound      = errors.New("run not found")
)

// RunSummary is the listing view of a stored run: metadata without the
// per-timestep rows.
type RunSummary struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	StartedAt time.Time `json:"startedAt"`
	Completed bool      `json:"completed"`
	Total     float64   `json:"total"`
}

// Database defines the interface for persisting scenarios and run results.
type Database interface {
	// Scenarios
	PutScenario(ctx context.Context, id string, scn types.Scenario) error
	GetScenario(ctx context.Context, id string) (types.Scenario, error)
	ListScenarios(ctx context.Context) ([]string, error)
	DeleteScenario(ctx context.Context, id string) error

	// Runs
	InsertRun(ctx context.Context, id string, run types.RunResult) error
	GetRun(ctx context.Context, id string) (types.RunResult, error)
	ListRuns(ctx context.Context, start, end time.Time) ([]RunSummary, error)

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "memory", "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
