package models

import "context"

// ProgressFunc receives adapter progress checkpoints in [0,100]. The
// dispatcher maps reported values into the phase's reserved band and clamps
// them monotonic; adapters just report what they know.
type ProgressFunc func(pct float64)

// ExecutionInput is everything an execution backend needs for one job.
type ExecutionInput struct {
	JobID   string
	Request PredictionRequest
	// Spec is the canonical engine input document built from Request.
	Spec []byte
}

// ExecutionBackend is the core interface both execution substrates
// implement. Never call a concrete adapter directly — always inject this
// interface; the dispatcher selects one implementation per job.
type ExecutionBackend interface {
	// Execute runs the prediction to completion and returns the raw output.
	// Errors are classified engine failures (see internal/engine).
	Execute(ctx context.Context, in ExecutionInput, report ProgressFunc) (*RawResult, error)
	// Name returns the backend identifier (e.g., "local", "runpod").
	Name() string
}
