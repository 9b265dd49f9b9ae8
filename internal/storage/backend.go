// Package storage provides the persistent fact stores for irfacts.
//
// It defines the FactStore interface that every backend satisfies: the two
// writer operations of the extraction database (get-or-create label, append
// fact) plus the read side used by the CLI, the query engine and the MCP
// server.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Benny93/irfacts/internal/facts"
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Run is the metadata of one extraction run.
type Run struct {
	// ID is the run's UUID. Fresh labels of the run are keyed by it.
	ID string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run ended.
	FinishedAt time.Time

	// Files is the number of input files extracted.
	Files int

	// Facts is the number of facts the run appended.
	Facts int

	// Errors is the number of recoverable extraction errors.
	Errors int

	// Warnings is the number of warnings.
	Warnings int
}

// Stats summarises the contents of a store.
type Stats struct {
	// Labels is the number of allocated labels.
	Labels int

	// Facts is the total number of facts.
	Facts int

	// ByKind counts facts per relation.
	ByKind map[string]int
}

// FactStore defines the interface for fact store implementations.
//
// Implementations must be thread-safe: several extraction sessions may share
// one store, and every identity decision goes through GetLabelFor.
type FactStore interface {
	facts.Sink

	// Lifecycle methods

	// Initialize opens or creates the store at the given path.
	// If readOnly is true, the store is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the store.
	Close() error

	// Labels

	// LookupLabel returns the label of key without creating it.
	LookupLabel(ctx context.Context, key string) (facts.Label, bool, error)

	// KeyOf returns the key a label was created for.
	KeyOf(ctx context.Context, label facts.Label) (string, bool, error)

	// Facts

	// Facts returns the facts of one relation in append order.
	Facts(ctx context.Context, kind string) ([]facts.Fact, error)

	// AllFacts returns every stored fact.
	AllFacts(ctx context.Context) ([]facts.Fact, error)

	// Stats counts labels and facts.
	Stats(ctx context.Context) (*Stats, error)

	// Runs

	// RecordRun stores the metadata of a finished run.
	RecordRun(ctx context.Context, run *Run) error

	// Runs returns all recorded runs, oldest first.
	Runs(ctx context.Context) ([]*Run, error)
}

// Open creates the backend named kind and initializes it at path.
func Open(kind, path string, readOnly bool) (FactStore, error) {
	var s FactStore
	switch kind {
	case BackendBadger, "":
		s = NewBadgerBackend()
	case BackendSQLite:
		s = NewSQLiteBackend()
	case BackendMemory:
		s = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
	if err := s.Initialize(path, readOnly); err != nil {
		return nil, err
	}
	return s, nil
}
