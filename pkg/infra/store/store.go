// Package store persists the history of training and evaluation runs
// so past results stay queryable across processes.
package store

import (
	"context"
	"errors"
)

var ErrRunNotFound = errors.New("run not found")

// RunKind tells which pipeline produced a run.
type RunKind string

const (
	RunTrain    RunKind = "train"
	RunEvaluate RunKind = "evaluate"
)

// Run is one completed pipeline execution.
type Run struct {
	ID        string  `json:"id"`
	Kind      RunKind `json:"kind"`
	Handler   string  `json:"handler"`
	ModelPath string  `json:"model_path"`
	DataDir   string  `json:"data_dir"`
	// Metrics holds the run's numeric outcome keyed by metric name,
	// accuracy and sample counts for evaluations, dataset sizes for
	// training.
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Success  bool               `json:"success"`
	Error    string             `json:"error,omitempty"`
	Duration float64            `json:"duration"`
	// CreatedAt is a unix timestamp in seconds.
	CreatedAt int64 `json:"created_at"`
}

// RunFilter narrows List results.
type RunFilter struct {
	Kind    RunKind
	Handler string
	Limit   int
	Offset  int
}

// RunStore records and queries completed runs.
type RunStore interface {
	Record(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter RunFilter) ([]Run, int, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
